package ics

import (
	"cmp"
	"errors"
	"slices"
	"time"

	appLog "calrecur/internal/log"
	"calrecur/internal/model"
	"calrecur/internal/moment"
	"calrecur/internal/occurrence"
)

const (
	defaultMaxOccurrencesPerEvent = 5000
)

// ExpandConfig controls how recurrence expansion is performed.
type ExpandConfig struct {
	// DisplayLocation is the timezone all occurrences are converted to.
	// If nil, time.Local is used.
	DisplayLocation *time.Location

	// RangeStart / RangeEnd define the inclusive time window for occurrences.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps how many occurrences are pulled per event,
	// counting those before RangeStart. If zero, defaultMaxOccurrencesPerEvent
	// is used.
	MaxOccurrencesPerEvent int
}

// ExpandResult wraps the list of expanded occurrences and information about
// events that could not be fully expanded.
type ExpandResult struct {
	Occurrences []model.Occurrence
	// TruncatedEvents records UIDs that hit the MaxOccurrencesPerEvent cap.
	TruncatedEvents []string
	// FailedEvents records UIDs whose rule could not be stepped.
	FailedEvents []string
}

// ApplyOverrides folds RECURRENCE-ID overrides into their base events: the
// replaced instance is excluded from the base event and the override stands
// on its own. Overrides without a base event are kept as they are.
func ApplyOverrides(events []ParsedEvent) []ParsedEvent {
	replaced := make(map[string][]moment.Zoned)
	for _, ev := range events {
		if rid, ok := ev.Recurrence.Get(); ok {
			replaced[ev.UID] = append(replaced[ev.UID], moment.Zoned{Location: ev.Zone, Moment: rid})
		}
	}

	out := make([]ParsedEvent, 0, len(events))
	for _, ev := range events {
		if rids := replaced[ev.UID]; len(rids) > 0 && !ev.IsOverride() && ev.Rule != nil {
			ev.Exclusions = append(slices.Clone(ev.Exclusions), rids...)
		}
		out = append(out, ev)
	}
	return out
}

// ExpandOccurrences expands events into the concrete occurrences that
// intersect [RangeStart, RangeEnd], sorted by start. It handles:
//
//   - Single non-recurring events
//   - RRULE-based recurrence
//   - EXDATE for exception removal
//   - RECURRENCE-ID overrides
//   - All-day semantics
func ExpandOccurrences(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	for _, ev := range ApplyOverrides(events) {
		occ, hitCap, err := expandEvent(ev, cfg)
		result.Occurrences = append(result.Occurrences, occ...)
		if err != nil {
			result.FailedEvents = append(result.FailedEvents, ev.UID)
			appLog.Error("expand: stepping failed", err, "uid", ev.UID, "rrule", ev.RawRRule)
		}
		if hitCap {
			result.TruncatedEvents = append(result.TruncatedEvents, ev.UID)
			appLog.Warn("expand: truncated occurrences for UID due to cap",
				"uid", ev.UID,
				"cap", cfg.MaxOccurrencesPerEvent,
			)
		}
	}

	slices.SortStableFunc(result.Occurrences, func(a, b model.Occurrence) int {
		return cmp.Or(a.Start.Compare(b.Start), cmp.Compare(a.UID, b.UID))
	})
	return result, nil
}

// expandEvent walks the occurrences of ev until one starts after RangeEnd.
// It reports whether the cap was hit before that.
func expandEvent(ev ParsedEvent, cfg ExpandConfig) ([]model.Occurrence, bool, error) {
	var out []model.Occurrence

	it := occurrence.NewIterator(ev.Event())
	for iv, err := range it.All() {
		if err != nil {
			return out, false, err
		}
		start, end := displayBounds(iv, cfg.DisplayLocation)
		if start.After(cfg.RangeEnd) {
			return out, false, nil
		}
		if timeRangesOverlap(start, end, cfg.RangeStart, cfg.RangeEnd) {
			out = append(out, makeOccurrence(ev, iv, start, end))
		}
		if it.Emitted() >= cfg.MaxOccurrencesPerEvent {
			return out, true, nil
		}
	}
	return out, false, nil
}

// displayBounds converts iv to times in loc. Whole-day occurrences span from
// midnight of their first day to midnight after their last day.
func displayBounds(iv occurrence.Interval, loc *time.Location) (time.Time, time.Time) {
	if iv.Start.IsWholeDay() {
		y, m, d := iv.Start.Date()
		start := time.Date(y, m, d, 0, 0, 0, 0, loc)
		y, m, d = iv.End.Date()
		end := time.Date(y, m, d+1, 0, 0, 0, 0, loc)
		return start, end
	}
	return iv.Start.In(loc), iv.End.In(loc)
}

// makeOccurrence converts a (possibly overriding) ParsedEvent and one of its
// intervals into a model.Occurrence.
func makeOccurrence(ev ParsedEvent, iv occurrence.Interval, start, end time.Time) model.Occurrence {
	return model.Occurrence{
		SourceID:    ev.Source.ID,
		UID:         ev.UID,
		InstanceKey: ev.UID + "/" + iv.Start.Format(),
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		Status:      ev.Status,
		AllDay:      ev.AllDay,
		Recurring:   ev.Rule != nil,
		Override:    ev.IsOverride(),
		Start:       start,
		End:         end,
	}
}

// timeRangesOverlap treats a as half-open, [aStart, aEnd), and b as closed.
// A zero-length a counts at its start.
func timeRangesOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	if aStart.After(bEnd) {
		return false
	}
	if aEnd.Equal(aStart) {
		return !aStart.Before(bStart)
	}
	return aEnd.After(bStart)
}
