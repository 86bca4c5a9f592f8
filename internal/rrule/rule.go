// Package rrule parses the subset of RFC 5545 RRULE values the occurrence
// engine evaluates. A parsed rule is one of eight shapes, each carrying the
// shared Bounds.
package rrule

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/mo"

	"calrecur/internal/moment"
)

// Rule is implemented by the eight rule shapes of this package only.
type Rule interface {
	Limits() Bounds
	Frequency() Frequency
	String() string
	isRule()
}

// Bounds are the parts every shape has in common.
type Bounds struct {
	Raw      string
	Until    mo.Option[moment.Moment]
	Interval mo.Option[int]
	Count    mo.Option[int]
}

func (b Bounds) Limits() Bounds { return b }

func (Bounds) isRule() {}

// IntervalOrDefault returns INTERVAL, 1 when absent.
func (b Bounds) IntervalOrDefault() int {
	return b.Interval.OrElse(1)
}

// IsExpired reports whether m is strictly after UNTIL.
func (b Bounds) IsExpired(m moment.Moment) bool {
	until, ok := b.Until.Get()
	return ok && m.After(until)
}

// IsExhausted reports whether emitted occurrences reached COUNT.
func (b Bounds) IsExhausted(emitted int) bool {
	count, ok := b.Count.Get()
	return ok && emitted >= count
}

type (
	Yearly struct {
		Bounds
	}

	YearlyByMonthAndMonthDay struct {
		Bounds
		Month    int
		MonthDay int
	}

	// YearlyByMonthAndWeekday parses but cannot be stepped.
	YearlyByMonthAndWeekday struct {
		Bounds
		Month int
		ByDay ByDay
	}

	MonthlyByMonthDay struct {
		Bounds
		MonthDay int
	}

	MonthlyByWeekday struct {
		Bounds
		ByDay ByDay
	}

	Weekly struct {
		Bounds
	}

	WeeklyByWeekday struct {
		Bounds
		ByDay ByDay
	}

	Daily struct {
		Bounds
	}
)

func (Yearly) Frequency() Frequency                   { return FreqYearly }
func (YearlyByMonthAndMonthDay) Frequency() Frequency { return FreqYearly }
func (YearlyByMonthAndWeekday) Frequency() Frequency  { return FreqYearly }
func (MonthlyByMonthDay) Frequency() Frequency        { return FreqMonthly }
func (MonthlyByWeekday) Frequency() Frequency         { return FreqMonthly }
func (Weekly) Frequency() Frequency                   { return FreqWeekly }
func (WeeklyByWeekday) Frequency() Frequency          { return FreqWeekly }
func (Daily) Frequency() Frequency                    { return FreqDaily }

func (r Yearly) String() string { return render(r, nil) }

func (r YearlyByMonthAndMonthDay) String() string {
	return render(r, []string{"BYMONTH=" + strconv.Itoa(r.Month), "BYMONTHDAY=" + strconv.Itoa(r.MonthDay)})
}

func (r YearlyByMonthAndWeekday) String() string {
	return render(r, []string{"BYMONTH=" + strconv.Itoa(r.Month), "BYDAY=" + r.ByDay.String()})
}

func (r MonthlyByMonthDay) String() string {
	return render(r, []string{"BYMONTHDAY=" + strconv.Itoa(r.MonthDay)})
}

func (r MonthlyByWeekday) String() string { return render(r, []string{"BYDAY=" + r.ByDay.String()}) }
func (r Weekly) String() string           { return render(r, nil) }
func (r WeeklyByWeekday) String() string  { return render(r, []string{"BYDAY=" + r.ByDay.String()}) }
func (r Daily) String() string            { return render(r, nil) }

// render builds the canonical RRULE text of r.
func render(r Rule, by []string) string {
	b := r.Limits()
	parts := []string{"FREQ=" + r.Frequency().String()}
	if n, ok := b.Interval.Get(); ok {
		parts = append(parts, "INTERVAL="+strconv.Itoa(n))
	}
	parts = append(parts, by...)
	if until, ok := b.Until.Get(); ok {
		parts = append(parts, "UNTIL="+until.Format())
	}
	if n, ok := b.Count.Get(); ok {
		parts = append(parts, "COUNT="+strconv.Itoa(n))
	}
	return strings.Join(parts, ";")
}

// Describe returns a short human readable summary of r, used in logs and the
// events listing.
func Describe(r Rule) string {
	if r == nil {
		return "once"
	}
	var s string
	switch r := r.(type) {
	case Yearly:
		s = "every year"
	case YearlyByMonthAndMonthDay:
		s = fmt.Sprintf("every year on %02d-%02d", r.Month, r.MonthDay)
	case YearlyByMonthAndWeekday:
		s = fmt.Sprintf("every year in month %d on %s", r.Month, r.ByDay)
	case MonthlyByMonthDay:
		s = fmt.Sprintf("every month on day %d", r.MonthDay)
	case MonthlyByWeekday:
		s = "every month on " + r.ByDay.String()
	case Weekly:
		s = "every week"
	case WeeklyByWeekday:
		s = "every week on " + r.ByDay.String()
	case Daily:
		s = "every day"
	}

	b := r.Limits()
	if n := b.IntervalOrDefault(); n > 1 {
		s += fmt.Sprintf(" (interval %d)", n)
	}
	if until, ok := b.Until.Get(); ok {
		s += " until " + until.String()
	}
	if n, ok := b.Count.Get(); ok {
		s += fmt.Sprintf(", %d times", n)
	}
	return s
}
