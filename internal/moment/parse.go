package moment

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	dateLayout     = "20060102"
	dateTimeLayout = "20060102T150405"
	utcLayout      = "20060102T150405Z"
)

// localZone returns the offset used for floating date-times: the offset the
// process is at right now, fixed. Tests replace it.
var localZone = func() *time.Location {
	name, offset := time.Now().Zone()
	return time.FixedZone(name, offset)
}

// Parse reads a bare DATE or DATE-TIME value. Eight characters are a whole
// day; anything else is YYYYMMDDTHHMMSS, in UTC with a trailing Z and in the
// current local offset without one.
func Parse(s string) (Moment, error) {
	if len(s) == len(dateLayout) {
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			return Moment{}, fmt.Errorf("%w: %q: %w", ErrMalformed, s, err)
		}
		return WholeDayOf(t), nil
	}

	if strings.HasSuffix(s, "Z") {
		t, err := time.Parse(utcLayout, s)
		if err != nil {
			return Moment{}, fmt.Errorf("%w: %q: %w", ErrMalformed, s, err)
		}
		return NewTimed(t), nil
	}

	t, err := time.ParseInLocation(dateTimeLayout, s, localZone())
	if err != nil {
		return Moment{}, fmt.Errorf("%w: %q: %w", ErrMalformed, s, err)
	}
	return NewTimed(t), nil
}

// Zoned is a moment together with the zone it was written in.
type Zoned struct {
	Location *time.Location
	Moment   Moment
}

// ParseZoned reads a parameterized value: TZID=<zone>:<local date-time> or
// VALUE=DATE:<date>. Local times that are skipped or repeated by a DST
// transition in the zone are rejected.
func ParseZoned(s string) (Zoned, error) {
	if rest, ok := strings.CutPrefix(s, "TZID="); ok {
		name, value, found := strings.Cut(rest, ":")
		name = strings.Trim(name, `"`)
		if !found || name == "" || value == "" {
			return Zoned{}, fmt.Errorf("%w: %q", ErrMalformed, s)
		}
		loc, err := LoadZone(name)
		if err != nil {
			return Zoned{}, err
		}
		m, err := parseInZone(value, loc)
		if err != nil {
			return Zoned{}, err
		}
		return Zoned{Location: loc, Moment: m}, nil
	}

	if value, ok := strings.CutPrefix(s, "VALUE=DATE:"); ok {
		t, err := time.Parse(dateLayout, value)
		if err != nil {
			return Zoned{}, fmt.Errorf("%w: %q: %w", ErrMalformed, s, err)
		}
		return Zoned{Location: time.UTC, Moment: WholeDayOf(t)}, nil
	}

	return Zoned{}, fmt.Errorf("%w: %q", ErrMissingTZID, s)
}

var zones sync.Map // zone name -> *time.Location

// LoadZone resolves an IANA zone name, caching the result.
func LoadZone(name string) (*time.Location, error) {
	if loc, ok := zones.Load(name); ok {
		return loc.(*time.Location), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrUnknownZone, name, err)
	}
	zones.Store(name, loc)
	return loc, nil
}

func parseInZone(value string, loc *time.Location) (Moment, error) {
	switch {
	case len(value) == len(dateLayout):
		t, err := time.Parse(dateLayout, value)
		if err != nil {
			return Moment{}, fmt.Errorf("%w: %q: %w", ErrMalformed, value, err)
		}
		return WholeDayOf(t), nil
	case strings.HasSuffix(value, "Z"):
		t, err := time.Parse(utcLayout, value)
		if err != nil {
			return Moment{}, fmt.Errorf("%w: %q: %w", ErrMalformed, value, err)
		}
		return NewTimed(t), nil
	}

	wall, err := time.Parse(dateTimeLayout, value)
	if err != nil {
		return Moment{}, fmt.Errorf("%w: %q: %w", ErrMalformed, value, err)
	}
	t, err := resolveWallClock(wall, loc)
	if err != nil {
		return Moment{}, err
	}
	return NewTimed(t), nil
}

// resolveWallClock maps the wall clock reading of wall (stored as UTC) to the
// single instant in loc that shows it. Candidate offsets are sampled 14 hours
// either side, which covers any one transition.
func resolveWallClock(wall time.Time, loc *time.Location) (time.Time, error) {
	var found []time.Time
	for _, probe := range []time.Duration{-14 * time.Hour, 14 * time.Hour} {
		_, offset := wall.Add(probe).In(loc).Zone()
		candidate := wall.Add(-time.Duration(offset) * time.Second)
		if !sameWallClock(candidate.In(loc), wall) {
			continue
		}
		if len(found) == 0 || !found[0].Equal(candidate) {
			found = append(found, candidate)
		}
	}

	if len(found) != 1 {
		return time.Time{}, fmt.Errorf("%w: %s in %s (%d matching instants)",
			ErrAmbiguousTime, wall.Format(dateTimeLayout), loc, len(found))
	}
	return found[0], nil
}

func sameWallClock(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd &&
		a.Hour() == b.Hour() && a.Minute() == b.Minute() && a.Second() == b.Second()
}
