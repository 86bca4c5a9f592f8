// Package moment implements calendar moments: a point in time that is either a
// whole calendar day or a specific instant. Every operation keeps the tag of its
// receiver; the two cases are only projected onto a common instant for ordering.
package moment

import (
	"fmt"
	"slices"
	"time"

	"github.com/samber/mo"
)

// Kind tags a Moment as a whole day or a timed instant.
type Kind uint8

const (
	WholeDay Kind = iota + 1
	Timed
)

func (k Kind) String() string {
	switch k {
	case WholeDay:
		return "whole-day"
	case Timed:
		return "timed"
	default:
		return "invalid"
	}
}

// Moment is an immutable calendar moment. The instant is always stored in UTC;
// whole days are stored as midnight UTC of their date.
type Moment struct {
	kind Kind
	t    time.Time
}

// NewWholeDay returns the whole day year-month-day. Out of range values are
// normalized the way time.Date normalizes them.
func NewWholeDay(year int, month time.Month, day int) Moment {
	return Moment{kind: WholeDay, t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// WholeDayOf returns the whole day carrying the date fields of t, read in t's
// own location.
func WholeDayOf(t time.Time) Moment {
	y, m, d := t.Date()
	return NewWholeDay(y, m, d)
}

// NewTimed returns the timed moment at instant t.
func NewTimed(t time.Time) Moment {
	return Moment{kind: Timed, t: t.UTC()}
}

// Fields selects the components Substitute overrides. Absent options are
// inherited from the receiver.
type Fields struct {
	Year   mo.Option[int]
	Month  mo.Option[int]
	Day    mo.Option[int]
	Hour   mo.Option[int]
	Minute mo.Option[int]
	Second mo.Option[int]
}

func (m Moment) Kind() Kind        { return m.kind }
func (m Moment) IsWholeDay() bool  { return m.kind == WholeDay }
func (m Moment) IsTimed() bool     { return m.kind == Timed }
func (m Moment) IsZero() bool      { return m.kind == 0 }
func (m Moment) Year() int         { return m.t.Year() }
func (m Moment) Month() time.Month { return m.t.Month() }
func (m Moment) Day() int          { return m.t.Day() }

func (m Moment) Weekday() time.Weekday { return m.t.Weekday() }

// Date returns the calendar date of the moment, in UTC.
func (m Moment) Date() (year int, month time.Month, day int) {
	return m.t.Date()
}

func (m Moment) Hour() int {
	if m.kind == WholeDay {
		return 0
	}
	return m.t.Hour()
}

func (m Moment) Minute() int {
	if m.kind == WholeDay {
		return 0
	}
	return m.t.Minute()
}

func (m Moment) Second() int {
	if m.kind == WholeDay {
		return 0
	}
	return m.t.Second()
}

// Instant projects the moment onto an instant: whole days become midnight UTC.
// The projection is only meant for ordering and durations.
func (m Moment) Instant() time.Time {
	return m.t
}

// In returns the moment as a time in loc for display. A whole day keeps its
// calendar date and starts at midnight in loc.
func (m Moment) In(loc *time.Location) time.Time {
	if m.kind == WholeDay {
		y, mon, d := m.t.Date()
		return time.Date(y, mon, d, 0, 0, 0, 0, loc)
	}
	return m.t.In(loc)
}

// Compare returns -1, 0 or +1 comparing the instant projections of m and o.
func (m Moment) Compare(o Moment) int { return m.t.Compare(o.t) }
func (m Moment) Before(o Moment) bool { return m.t.Before(o.t) }
func (m Moment) After(o Moment) bool  { return m.t.After(o.t) }
func (m Moment) Equal(o Moment) bool  { return m.t.Equal(o.t) }

// SameDate reports whether m and o fall on the same calendar date.
func (m Moment) SameDate(o Moment) bool {
	y1, m1, d1 := m.t.Date()
	y2, m2, d2 := o.t.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// Sub returns the duration m-o between the instant projections.
func (m Moment) Sub(o Moment) time.Duration {
	return m.t.Sub(o.t)
}

// Add returns m+d. A whole day stays a whole day: the result is truncated to
// the date the shifted instant falls on.
func (m Moment) Add(d time.Duration) Moment {
	shifted := m.t.Add(d)
	if m.kind == WholeDay {
		return WholeDayOf(shifted)
	}
	return Moment{kind: m.kind, t: shifted}
}

// AddDays returns m shifted by n calendar days.
func (m Moment) AddDays(n int) Moment {
	return Moment{kind: m.kind, t: m.t.AddDate(0, 0, n)}
}

// Substitute builds a new moment from the overridden-or-inherited fields.
// Supplying a time of day for a whole day fails instead of inventing one.
func (m Moment) Substitute(f Fields) (Moment, error) {
	year := f.Year.OrElse(m.Year())
	month := f.Month.OrElse(int(m.Month()))
	day := f.Day.OrElse(m.Day())
	if !validDate(year, month, day) {
		return Moment{}, fmt.Errorf("%w: %04d-%02d-%02d", ErrInvalidDate, year, month, day)
	}

	if m.kind == WholeDay {
		if f.Hour.IsPresent() || f.Minute.IsPresent() || f.Second.IsPresent() {
			return Moment{}, ErrConstructingTimedFromWholeDay
		}
		return NewWholeDay(year, time.Month(month), day), nil
	}

	hour := f.Hour.OrElse(m.Hour())
	minute := f.Minute.OrElse(m.Minute())
	second := f.Second.OrElse(m.Second())
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 || second < 0 || second > 59 {
		return Moment{}, fmt.Errorf("%w: %02d:%02d:%02d", ErrInvalidDate, hour, minute, second)
	}
	return NewTimed(time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC)), nil
}

// SubstituteTimeWith replaces the time of day of m with the one carried by
// other. A whole-day other carries no time and leaves m unchanged.
func (m Moment) SubstituteTimeWith(other Moment) Moment {
	if other.kind != Timed {
		return m
	}
	y, mon, d := m.t.Date()
	return NewTimed(time.Date(y, mon, d, other.Hour(), other.Minute(), other.Second(), 0, time.UTC))
}

// IncrementMonth moves m forward by n months keeping the day of month. When
// the target month lacks that day it keeps stepping one month at a time until a
// month that has it is found.
func (m Moment) IncrementMonth(n int) Moment {
	total := int(m.Month()) - 1 + n
	year := m.Year() + floorDiv(total, 12)
	month := floorMod(total, 12) + 1
	day := m.Day()

	for i := 0; i < 12 && day > daysIn(year, month); i++ {
		month++
		if month > 12 {
			month = 1
			year++
		}
	}
	return m.withDate(year, month, day)
}

// IncrementYear moves m forward by n years with month, day and time unchanged.
// Feb 29 landing in a common year rolls over to Mar 1.
func (m Moment) IncrementYear(n int) Moment {
	return m.withDate(m.Year()+n, int(m.Month()), m.Day())
}

// NextWeekday returns the earliest moment strictly after m, at least one day
// later, that falls on one of days. It reports false for an empty set.
func (m Moment) NextWeekday(days ...time.Weekday) (Moment, bool) {
	if len(days) == 0 {
		return m, false
	}
	next := m
	for range 7 {
		next = next.AddDays(1)
		if slices.Contains(days, next.Weekday()) {
			return next, true
		}
	}
	return m, false
}

// ResolveOrdinal finds the ordinal-th wd in the month of m. Positive ordinals
// count from the first of the month, negative ones back from its last day. The
// time of day of m is kept.
func (m Moment) ResolveOrdinal(ordinal int, wd time.Weekday) (Moment, error) {
	if ordinal == 0 {
		return Moment{}, ErrInvalidOrdinal
	}

	year, month := m.Year(), int(m.Month())
	cursor, step, remaining := m.withDate(year, month, 1), 1, ordinal
	if ordinal < 0 {
		cursor, step, remaining = m.withDate(year, month, daysIn(year, month)), -1, -ordinal
	}

	for range 31 {
		if int(cursor.Month()) != month {
			break
		}
		if cursor.Weekday() == wd {
			remaining--
			if remaining == 0 {
				return cursor, nil
			}
		}
		cursor = cursor.AddDays(step)
	}
	return Moment{}, fmt.Errorf("%w: %d %s in %04d-%02d", ErrOrdinalNotInMonth, ordinal, wd, year, month)
}

// String renders whole days as 2006-01-02 and timed moments as RFC 3339.
func (m Moment) String() string {
	switch m.kind {
	case WholeDay:
		return m.t.Format(time.DateOnly)
	case Timed:
		return m.t.Format(time.RFC3339)
	default:
		return "<invalid moment>"
	}
}

// Format renders the moment in iCalendar text form.
func (m Moment) Format() string {
	if m.kind == WholeDay {
		return m.t.Format(dateLayout)
	}
	return m.t.Format(utcLayout)
}

// MarshalText implements encoding.TextMarshaler using String.
func (m Moment) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// withDate keeps the tag and time of day of m on a new date. Dates that do not
// exist are normalized by time.Date.
func (m Moment) withDate(year, month, day int) Moment {
	if m.kind == WholeDay {
		return NewWholeDay(year, time.Month(month), day)
	}
	return Moment{
		kind: m.kind,
		t:    time.Date(year, time.Month(month), day, m.t.Hour(), m.t.Minute(), m.t.Second(), m.t.Nanosecond(), time.UTC),
	}
}

func daysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func validDate(year, month, day int) bool {
	return month >= 1 && month <= 12 && day >= 1 && day <= daysIn(year, month)
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func floorMod(a, b int) int {
	return a - floorDiv(a, b)*b
}
