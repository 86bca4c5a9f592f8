// Package occurrence expands a recurring event into its concrete occurrences.
//
// An Iterator is a private cursor over one Event. Events and rules are never
// mutated, so any number of iterators may walk the same Event from different
// goroutines as long as each goroutine owns its iterator.
package occurrence

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/samber/mo"

	"calrecur/internal/moment"
	"calrecur/internal/rrule"
)

var (
	// ErrUnsupported is returned for rule shapes the engine does not step.
	ErrUnsupported = errors.New("occurrence: unsupported rule")
	// ErrPullLimit is returned when a search gives up after its pull budget.
	ErrPullLimit = errors.New("occurrence: pull limit reached")
)

// Event is the recurrence-relevant part of a calendar event. A nil Rule
// means the event happens once.
type Event struct {
	Start      moment.Moment
	End        moment.Moment
	Rule       rrule.Rule
	Exclusions []moment.Moment
}

// Duration is End - Start.
func (e Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// Excludes reports whether any exclusion falls on the date of m. Exclusions
// match by calendar date only.
func (e Event) Excludes(m moment.Moment) bool {
	return slices.ContainsFunc(e.Exclusions, m.SameDate)
}

// Interval is one occurrence, [Start, End).
type Interval struct {
	Start moment.Moment
	End   moment.Moment
}

func (iv Interval) String() string {
	return iv.Start.String() + "/" + iv.End.String()
}

type state uint8

const (
	unstarted state = iota
	active
	exhausted
)

// Iterator yields the occurrences of an Event in order.
type Iterator struct {
	ev      Event
	state   state
	last    moment.Moment
	emitted int
}

// NewIterator returns an iterator positioned before the first occurrence.
func NewIterator(ev Event) *Iterator {
	ev.Exclusions = slices.Clone(ev.Exclusions)
	return &Iterator{ev: ev}
}

// Emitted is the number of occurrences produced so far.
func (it *Iterator) Emitted() int { return it.emitted }

// Next returns the next occurrence. ok is false once the iterator is
// exhausted. An error exhausts the iterator; it is reported once.
func (it *Iterator) Next() (iv Interval, ok bool, err error) {
	switch it.state {
	case exhausted:
		return Interval{}, false, nil

	case unstarted:
		it.state = active
		it.last = it.ev.Start
		if it.ev.Rule == nil {
			it.state = exhausted
			if it.ev.Excludes(it.ev.Start) {
				return Interval{}, false, nil
			}
			return it.accept(it.ev.Start), true, nil
		}
		if !it.ev.Excludes(it.ev.Start) {
			return it.accept(it.ev.Start), true, nil
		}

	default:
		if it.ev.Rule == nil || it.ev.Rule.Limits().IsExhausted(it.emitted) {
			it.state = exhausted
			return Interval{}, false, nil
		}
	}

	bounds := it.ev.Rule.Limits()
	interval := bounds.IntervalOrDefault()
	for {
		next := it.last
		for range interval {
			next, err = Step(it.ev.Rule, next)
			if err != nil {
				it.state = exhausted
				return Interval{}, false, err
			}
			if bounds.IsExpired(next) {
				it.state = exhausted
				return Interval{}, false, nil
			}
		}
		it.last = next
		if it.ev.Excludes(next) {
			continue
		}
		return it.accept(next), true, nil
	}
}

func (it *Iterator) accept(start moment.Moment) Interval {
	it.emitted++
	it.last = start
	return Interval{Start: start, End: start.Add(it.ev.Duration())}
}

// All ranges over the remaining occurrences. An error is yielded once, as the
// last element.
func (it *Iterator) All() iter.Seq2[Interval, error] {
	return func(yield func(Interval, error) bool) {
		for {
			iv, ok, err := it.Next()
			if err != nil {
				yield(Interval{}, err)
				return
			}
			if !ok || !yield(iv, nil) {
				return
			}
		}
	}
}

// Step applies one unit of rule's frequency to last.
func Step(rule rrule.Rule, last moment.Moment) (moment.Moment, error) {
	switch r := rule.(type) {
	case rrule.Yearly, rrule.YearlyByMonthAndMonthDay:
		return last.IncrementYear(1), nil

	case rrule.MonthlyByMonthDay:
		return last.IncrementMonth(1), nil

	case rrule.MonthlyByWeekday:
		return stepMonthlyByWeekday(r.ByDay, last)

	case rrule.Weekly:
		return last.AddDays(7), nil

	case rrule.WeeklyByWeekday:
		next, ok := last.NextWeekday(r.ByDay.Weekdays...)
		if !ok {
			return moment.Moment{}, fmt.Errorf("%w: weekly rule with BYDAY=%s", ErrUnsupported, r.ByDay)
		}
		return next, nil

	case rrule.Daily:
		return last.AddDays(1), nil

	default:
		return moment.Moment{}, fmt.Errorf("%w: %v", ErrUnsupported, rule)
	}
}

// stepMonthlyByWeekday moves to the selected weekday of the following month.
// A plain weekday set takes the first match after the 1st of that month.
// Months without the ordinal-th weekday (a fifth Monday, say) are skipped.
func stepMonthlyByWeekday(sel rrule.ByDay, last moment.Moment) (moment.Moment, error) {
	month, err := last.Substitute(moment.Fields{Day: mo.Some(1)})
	if err != nil {
		return moment.Moment{}, err
	}
	if !sel.IsOrdinal() {
		next, ok := month.IncrementMonth(1).NextWeekday(sel.Weekdays...)
		if !ok {
			return moment.Moment{}, fmt.Errorf("%w: monthly rule with empty BYDAY", ErrUnsupported)
		}
		return next, nil
	}

	for range 12 {
		month = month.IncrementMonth(1)
		next, err := month.ResolveOrdinal(sel.Ordinal, sel.Weekday)
		if errors.Is(err, moment.ErrOrdinalNotInMonth) {
			continue
		}
		return next, err
	}
	return moment.Moment{}, fmt.Errorf("%w: %s in the 12 months after %s", moment.ErrOrdinalNotInMonth, sel, last)
}

// Result is an occurrence together with how it relates to the query moment.
type Result struct {
	Interval
	Overlap moment.Overlap
}

// NextOccurrenceSince returns the first occurrence of ev that has not
// finished at at. ok is false when the event has no such occurrence. A
// positive limit caps the number of occurrences pulled.
func NextOccurrenceSince(ev Event, at moment.Moment, limit int) (Result, bool, error) {
	it := NewIterator(ev)
	for {
		if limit > 0 && it.Emitted() >= limit {
			return Result{}, false, fmt.Errorf("%w: %d occurrences before %s", ErrPullLimit, limit, at)
		}
		iv, ok, err := it.Next()
		if err != nil || !ok {
			return Result{}, false, err
		}
		overlap, err := moment.Classify(at, iv.Start, iv.End)
		if err != nil {
			return Result{}, false, err
		}
		if overlap != moment.FinishesPast {
			return Result{Interval: iv, Overlap: overlap}, true, nil
		}
	}
}
