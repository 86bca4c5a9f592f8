// Package agenda answers "what is on for this day" over a set of parsed
// calendar events.
package agenda

import (
	"cmp"
	"context"
	"slices"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"calrecur/internal/ics"
	appLog "calrecur/internal/log"
	"calrecur/internal/model"
	"calrecur/internal/moment"
	"calrecur/internal/occurrence"
)

const defaultWorkers = 4

// Options tune agenda evaluation.
type Options struct {
	// Workers bounds how many events are evaluated at once.
	Workers int
	// MaxPulls caps the occurrences pulled per event. Zero or negative
	// means no cap.
	MaxPulls int
	// Location is the display zone. Nil means time.Local.
	Location *time.Location
}

// Agenda is the list of occurrences touching one date.
type Agenda struct {
	Date    moment.Moment      `json:"date"`
	Entries []model.Occurrence `json:"entries"`
	// Failures counts events whose next occurrence could not be computed.
	Failures int `json:"failures"`
}

// Compute evaluates every event against day and keeps the occurrences that
// are in progress on it: those that neither finished before day nor start
// after it. Entries are sorted by start, then summary.
//
// An event that fails to evaluate is logged and counted; it never aborts the
// others. Only cancellation of ctx is returned as an error.
func Compute(ctx context.Context, events []ics.ParsedEvent, day moment.Moment, opts Options) (Agenda, error) {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if !day.IsWholeDay() {
		day = moment.WholeDayOf(day.In(opts.Location))
	}

	events = ics.ApplyOverrides(events)
	slots := make([]*model.Occurrence, len(events))
	var failures atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, ev := range events {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			core := ev.Event()
			res, ok, err := occurrence.NextOccurrenceSince(core, reference(core, day, opts.Location), opts.MaxPulls)
			if err == nil && ok {
				res.Overlap, err = localOverlap(day, res.Interval, opts.Location)
			}
			if err != nil {
				failures.Add(1)
				appLog.Error("agenda: event evaluation failed", err,
					"source", ev.Source.ID, "uid", ev.UID, "rrule", ev.RawRRule)
				return nil
			}
			if !ok || !inProgress(res.Overlap) {
				return nil
			}
			occ := entry(ev, res, opts.Location)
			slots[i] = &occ
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Agenda{}, err
	}

	out := Agenda{Date: day, Failures: int(failures.Load()), Entries: []model.Occurrence{}}
	for _, occ := range slots {
		if occ != nil {
			out.Entries = append(out.Entries, *occ)
		}
	}
	slices.SortFunc(out.Entries, func(a, b model.Occurrence) int {
		return cmp.Or(a.Start.Compare(b.Start), cmp.Compare(a.Summary, b.Summary), cmp.Compare(a.UID, b.UID))
	})
	return out, nil
}

// Window computes the agenda for days consecutive dates starting at from.
func Window(ctx context.Context, events []ics.ParsedEvent, from moment.Moment, days int, opts Options) ([]Agenda, error) {
	if !from.IsWholeDay() {
		from = moment.WholeDayOf(from.In(cmp.Or(opts.Location, time.Local)))
	}
	out := make([]Agenda, 0, max(days, 0))
	for i := range days {
		a, err := Compute(ctx, events, from.AddDays(i), opts)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// reference is what an event is evaluated against on day: the date itself
// for whole-day events, midnight of day in loc for timed ones.
func reference(ev occurrence.Event, day moment.Moment, loc *time.Location) moment.Moment {
	if ev.Start.IsWholeDay() {
		return day
	}
	y, m, d := day.Date()
	return moment.NewTimed(time.Date(y, m, d, 0, 0, 0, 0, loc))
}

// localOverlap classifies iv against day using the dates its endpoints fall
// on in loc.
func localOverlap(day moment.Moment, iv occurrence.Interval, loc *time.Location) (moment.Overlap, error) {
	return moment.Classify(day, dateIn(iv.Start, loc), dateIn(iv.End, loc))
}

func dateIn(m moment.Moment, loc *time.Location) moment.Moment {
	if m.IsWholeDay() {
		return m
	}
	return moment.WholeDayOf(m.In(loc))
}

func inProgress(o moment.Overlap) bool {
	return o != moment.FinishesPast && o != moment.StartsFuture
}

func entry(ev ics.ParsedEvent, res occurrence.Result, loc *time.Location) model.Occurrence {
	start := res.Start.In(loc)
	end := res.End.In(loc)
	if res.End.IsWholeDay() {
		// Whole-day ends are the last day; display ends are exclusive.
		end = end.AddDate(0, 0, 1)
	}
	return model.Occurrence{
		SourceID:    ev.Source.ID,
		UID:         ev.UID,
		InstanceKey: ev.UID + "/" + res.Start.Format(),
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		Status:      ev.Status,
		AllDay:      ev.AllDay,
		Recurring:   ev.Rule != nil,
		Override:    ev.IsOverride(),
		Start:       start,
		End:         end,
		Overlap:     res.Overlap.String(),
	}
}
