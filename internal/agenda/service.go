package agenda

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"calrecur/internal/config"
	"calrecur/internal/ics"
	appLog "calrecur/internal/log"
	"calrecur/internal/model"
	"calrecur/internal/moment"
)

var (
	// ErrNoSnapshot is returned by queries made before the first refresh.
	ErrNoSnapshot = errors.New("agenda: calendars not loaded yet")
	// ErrNoCalendars is returned by a refresh in which every source failed.
	ErrNoCalendars = errors.New("agenda: no calendar could be loaded")
)

// Snapshot is the result of one refresh run.
type Snapshot struct {
	RunID     uuid.UUID         `json:"run_id"`
	At        time.Time         `json:"at"`
	Calendars []model.Calendar  `json:"calendars"`
	Events    []ics.ParsedEvent `json:"-"`
	// Failures holds one message per source that could not be loaded.
	Failures []string `json:"failures,omitempty"`
}

// Fetcher loads raw calendar bodies.
type Fetcher interface {
	FetchAll(ctx context.Context, sources []ics.Source) ([]ics.FetchResult, error)
}

// RefreshHook is called after every refresh run, successful or not.
type RefreshHook func(ctx context.Context, run model.Run)

// Service keeps the latest snapshot of all configured calendars.
type Service struct {
	sources []ics.Source
	fetcher Fetcher
	opts    Options

	mu       sync.RWMutex
	snapshot *Snapshot
	hooks    []RefreshHook

	now func() time.Time
}

// NewService builds a Service for cfg. It does not load anything until
// Refresh is called.
func NewService(cfg *config.Config, fetcher Fetcher) (*Service, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	sources := make([]ics.Source, 0, len(cfg.Calendars))
	for _, c := range cfg.Calendars {
		sources = append(sources, ics.Source{ID: c.ID, Name: c.Name, URL: c.URL, Path: c.Path})
	}
	return &Service{
		sources: sources,
		fetcher: fetcher,
		opts: Options{
			Workers:  cfg.Workers,
			MaxPulls: cfg.MaxPulls,
			Location: loc,
		},
		now: time.Now,
	}, nil
}

// Options returns the evaluation options derived from the configuration.
func (s *Service) Options() Options { return s.opts }

// Today is the current date in the display zone.
func (s *Service) Today() moment.Moment {
	return moment.WholeDayOf(s.now().In(s.opts.Location))
}

// OnRefresh registers fn to run after each refresh.
func (s *Service) OnRefresh(fn RefreshHook) {
	s.mu.Lock()
	s.hooks = append(s.hooks, fn)
	s.mu.Unlock()
}

// Snapshot returns the latest snapshot, or nil before the first refresh.
func (s *Service) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// Refresh fetches and parses every source and swaps in the new snapshot.
// Sources that fail are recorded in Snapshot.Failures. When every source
// fails the previous snapshot is kept and an error returned.
func (s *Service) Refresh(ctx context.Context) (*Snapshot, error) {
	runID := uuid.New()
	started := s.now()
	appLog.Info("refresh start", "run_id", runID.String(), "sources", len(s.sources))

	snap := &Snapshot{RunID: runID, At: started, Calendars: []model.Calendar{}}

	results, fetchErr := s.fetcher.FetchAll(ctx, s.sources)
	if fetchErr != nil {
		for _, err := range unwrapJoined(fetchErr) {
			snap.Failures = append(snap.Failures, err.Error())
		}
	}
	if err := ctx.Err(); err != nil {
		s.notify(ctx, snap, err)
		return nil, err
	}

	for _, res := range results {
		cal, err := ics.ParseICS(res.Source, res.Body)
		if err != nil {
			snap.Failures = append(snap.Failures, fmt.Sprintf("%s: %v", res.Source.ID, err))
			continue
		}
		summary := model.Calendar{
			ID:        res.Source.ID,
			Name:      res.Source.Name,
			Events:    len(cal.Events),
			FromCache: res.FromCache,
			LoadedAt:  started,
			Timezones: cal.Timezones,
		}
		if summary.Name == "" || summary.Name == summary.ID {
			summary.Name = cmp.Or(cal.Name, summary.ID)
		}
		for _, ev := range cal.Events {
			if ev.Rule != nil {
				summary.Recurring++
			}
		}
		snap.Calendars = append(snap.Calendars, summary)
		snap.Events = append(snap.Events, cal.Events...)
	}

	if len(s.sources) > 0 && len(snap.Calendars) == 0 {
		err := fmt.Errorf("refresh %s: %w", runID, errors.Join(ErrNoCalendars, fetchErr))
		appLog.Error("refresh failed", err, "run_id", runID.String())
		s.notify(ctx, snap, err)
		return nil, err
	}

	s.mu.Lock()
	s.snapshot = snap
	s.mu.Unlock()
	s.notify(ctx, snap, nil)

	appLog.Info("refresh done", "run_id", runID.String(),
		"calendars", len(snap.Calendars),
		"events", len(snap.Events),
		"failures", len(snap.Failures),
		"took", s.now().Sub(started),
	)
	return snap, nil
}

// Agenda computes days consecutive agendas starting at from, using the
// latest snapshot.
func (s *Service) Agenda(ctx context.Context, from moment.Moment, days int) ([]Agenda, error) {
	snap := s.Snapshot()
	if snap == nil {
		return nil, ErrNoSnapshot
	}
	return Window(ctx, snap.Events, from, days, s.opts)
}

// Occurrences expands the latest snapshot over [from, to].
func (s *Service) Occurrences(from, to time.Time) (ics.ExpandResult, error) {
	snap := s.Snapshot()
	if snap == nil {
		return ics.ExpandResult{}, ErrNoSnapshot
	}
	return ics.ExpandOccurrences(snap.Events, ics.ExpandConfig{
		DisplayLocation:        s.opts.Location,
		RangeStart:             from,
		RangeEnd:               to,
		MaxOccurrencesPerEvent: s.opts.MaxPulls,
	})
}

func (s *Service) notify(ctx context.Context, snap *Snapshot, err error) {
	run := model.Run{
		ID:        snap.RunID.String(),
		At:        snap.At,
		Took:      s.now().Sub(snap.At),
		Calendars: len(snap.Calendars),
		Events:    len(snap.Events),
		Failures:  snap.Failures,
	}
	if err != nil {
		run.Err = err.Error()
	}

	s.mu.RLock()
	hooks := append([]RefreshHook(nil), s.hooks...)
	s.mu.RUnlock()
	for _, fn := range hooks {
		fn(ctx, run)
	}
}

func unwrapJoined(err error) []error {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		return j.Unwrap()
	}
	return []error{err}
}
