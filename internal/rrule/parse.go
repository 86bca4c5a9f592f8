package rrule

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/mo"

	"calrecur/internal/moment"
)

// Parse reads an RRULE value such as "FREQ=WEEKLY;BYDAY=MO,WE;COUNT=4".
// FREQ must come first. WKST is accepted and ignored; any key outside
// FREQ, INTERVAL, UNTIL, COUNT, BYMONTH, BYMONTHDAY and BYDAY is rejected.
func Parse(s string) (Rule, error) {
	var tokens []string
	for tok := range strings.SplitSeq(strings.TrimSpace(s), ";") {
		if tok != "" {
			tokens = append(tokens, tok)
		}
	}
	if len(tokens) == 0 || !strings.HasPrefix(strings.ToUpper(tokens[0]), "FREQ=") {
		return nil, fmt.Errorf("%w: %q", ErrMissingFrequency, s)
	}

	values := make(map[string]string, len(tokens))
	for _, tok := range tokens {
		key, value, ok := strings.Cut(tok, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: %q in %q", ErrMalformedToken, tok, s)
		}
		key = strings.ToUpper(key)
		switch key {
		case "FREQ", "INTERVAL", "UNTIL", "COUNT", "BYMONTH", "BYMONTHDAY", "BYDAY":
		case "WKST":
			continue
		default:
			return nil, fmt.Errorf("%w: %s in %q", ErrUnsupportedKey, key, s)
		}
		if _, dup := values[key]; dup {
			return nil, fmt.Errorf("%w: %s given twice in %q", ErrMalformedToken, key, s)
		}
		values[key] = strings.ToUpper(value)
	}

	freq, err := ParseFrequency(values["FREQ"])
	if err != nil {
		return nil, err
	}

	b := Bounds{Raw: s}
	if v, ok := values["INTERVAL"]; ok {
		n, err := parseInt("INTERVAL", v, 1, 0)
		if err != nil {
			return nil, err
		}
		b.Interval = mo.Some(n)
	}
	if v, ok := values["COUNT"]; ok {
		n, err := parseInt("COUNT", v, 0, 0)
		if err != nil {
			return nil, err
		}
		b.Count = mo.Some(n)
	}
	if v, ok := values["UNTIL"]; ok {
		until, err := moment.Parse(v)
		if err != nil {
			return nil, fmt.Errorf("rrule: UNTIL: %w", err)
		}
		b.Until = mo.Some(until)
	}

	month, err := optionalInt(values, "BYMONTH", 1, 12)
	if err != nil {
		return nil, err
	}
	monthDay, err := optionalInt(values, "BYMONTHDAY", 1, 31)
	if err != nil {
		return nil, err
	}
	byDay := mo.None[ByDay]()
	if v, ok := values["BYDAY"]; ok {
		sel, err := ParseByDay(v)
		if err != nil {
			return nil, fmt.Errorf("rrule: BYDAY in %q: %w", s, err)
		}
		byDay = mo.Some(sel)
	}

	switch freq {
	case FreqYearly:
		m, ok := month.Get()
		if !ok {
			return Yearly{Bounds: b}, nil
		}
		if md, ok := monthDay.Get(); ok {
			return YearlyByMonthAndMonthDay{Bounds: b, Month: m, MonthDay: md}, nil
		}
		if sel, ok := byDay.Get(); ok {
			return YearlyByMonthAndWeekday{Bounds: b, Month: m, ByDay: sel}, nil
		}
		return nil, fmt.Errorf("%w: %q", ErrMissingCompanion, s)

	case FreqMonthly:
		if md, ok := monthDay.Get(); ok {
			return MonthlyByMonthDay{Bounds: b, MonthDay: md}, nil
		}
		if sel, ok := byDay.Get(); ok {
			return MonthlyByWeekday{Bounds: b, ByDay: sel}, nil
		}
		return nil, fmt.Errorf("%w: %q", ErrMissingByDayOrMonthDay, s)

	case FreqWeekly:
		sel, ok := byDay.Get()
		if !ok {
			return Weekly{Bounds: b}, nil
		}
		if sel.IsOrdinal() {
			return nil, fmt.Errorf("%w: %s with FREQ=WEEKLY in %q", ErrInvalidOrdinal, sel, s)
		}
		return WeeklyByWeekday{Bounds: b, ByDay: sel}, nil

	default:
		return Daily{Bounds: b}, nil
	}
}

// MustParse is Parse that panics on error, for fixtures.
func MustParse(s string) Rule {
	r, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return r
}

func optionalInt(values map[string]string, key string, lo, hi int) (mo.Option[int], error) {
	v, ok := values[key]
	if !ok {
		return mo.None[int](), nil
	}
	n, err := parseInt(key, v, lo, hi)
	if err != nil {
		return mo.None[int](), err
	}
	return mo.Some(n), nil
}

// parseInt reads a decimal in [lo, hi]; hi 0 means unbounded.
func parseInt(key, v string, lo, hi int) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q: %w", ErrInvalidValue, key, v, err)
	}
	if n < lo || (hi > 0 && n > hi) {
		return 0, fmt.Errorf("%w: %s=%d out of range", ErrInvalidValue, key, n)
	}
	return n, nil
}
