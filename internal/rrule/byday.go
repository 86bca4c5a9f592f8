package rrule

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

var weekdayCodes = map[string]time.Weekday{
	"SU": time.Sunday,
	"MO": time.Monday,
	"TU": time.Tuesday,
	"WE": time.Wednesday,
	"TH": time.Thursday,
	"FR": time.Friday,
	"SA": time.Saturday,
}

// ByDay is a BYDAY selector: either an explicit set of weekdays, any of which
// matches, or the Ordinal-th Weekday of a month.
type ByDay struct {
	Weekdays []time.Weekday
	Ordinal  int
	Weekday  time.Weekday
}

// Every returns an explicit selector.
func Every(days ...time.Weekday) ByDay {
	return ByDay{Weekdays: days}
}

// Nth returns an ordinal selector.
func Nth(ordinal int, wd time.Weekday) ByDay {
	return ByDay{Ordinal: ordinal, Weekday: wd}
}

func (b ByDay) IsOrdinal() bool { return b.Ordinal != 0 }

// ParseByDay reads a BYDAY value. When the first token is longer than a
// weekday code the whole value is one signed ordinal followed by a code
// ("-1SU", "2FR"); otherwise it is a comma list of codes ("MO,WE").
func ParseByDay(s string) (ByDay, error) {
	tokens := strings.Split(s, ",")
	if len(tokens[0]) > 2 {
		code := s[len(s)-2:]
		wd, ok := weekdayCodes[code]
		if !ok {
			return ByDay{}, fmt.Errorf("%w: %q", ErrInvalidWeekday, code)
		}
		n, err := strconv.Atoi(s[:len(s)-2])
		if err != nil {
			return ByDay{}, fmt.Errorf("%w: %q: %w", ErrInvalidOrdinal, s, err)
		}
		if n == 0 {
			return ByDay{}, fmt.Errorf("%w: %q", ErrInvalidOrdinal, s)
		}
		return Nth(n, wd), nil
	}

	var days []time.Weekday
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		wd, ok := weekdayCodes[tok]
		if !ok {
			return ByDay{}, fmt.Errorf("%w: %q", ErrInvalidWeekday, tok)
		}
		if !slices.Contains(days, wd) {
			days = append(days, wd)
		}
	}
	if len(days) == 0 {
		return ByDay{}, fmt.Errorf("%w: empty BYDAY %q", ErrInvalidWeekday, s)
	}
	return Every(days...), nil
}

// String renders the selector in BYDAY form.
func (b ByDay) String() string {
	if b.IsOrdinal() {
		return strconv.Itoa(b.Ordinal) + weekdayCode(b.Weekday)
	}
	codes := make([]string, len(b.Weekdays))
	for i, wd := range b.Weekdays {
		codes[i] = weekdayCode(wd)
	}
	return strings.Join(codes, ",")
}

func weekdayCode(wd time.Weekday) string {
	return strings.ToUpper(wd.String()[:2])
}
