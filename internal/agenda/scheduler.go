package agenda

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	appLog "calrecur/internal/log"
)

const refreshTimeout = 2 * time.Minute

// Refresher is anything that can reload its calendars.
type Refresher interface {
	Refresh(ctx context.Context) (*Snapshot, error)
}

// Scheduler runs a Refresher on a standard 5-field cron spec. A run that is
// still going when the next one is due causes that next run to be skipped.
type Scheduler struct {
	c    *cron.Cron
	spec string
}

// NewScheduler registers r under spec. Nothing runs until Start.
func NewScheduler(spec string, r Refresher, loc *time.Location) (*Scheduler, error) {
	if loc == nil {
		loc = time.Local
	}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cronLogger{}),
		cron.WithChain(cron.Recover(cronLogger{}), cron.SkipIfStillRunning(cronLogger{})),
	)
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		if _, err := r.Refresh(ctx); err != nil {
			appLog.Error("scheduled refresh failed", err, "spec", spec)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("refresh schedule %q: %w", spec, err)
	}
	return &Scheduler{c: c, spec: spec}, nil
}

// Start begins running the schedule in the background.
func (s *Scheduler) Start() {
	s.c.Start()
	if entries := s.c.Entries(); len(entries) > 0 {
		appLog.Info("refresh scheduler started", "spec", s.spec, "next", entries[0].Next)
	}
}

// Next is the time of the next scheduled refresh, zero before Start.
func (s *Scheduler) Next() time.Time {
	if entries := s.c.Entries(); len(entries) > 0 {
		return entries[0].Next
	}
	return time.Time{}
}

// Stop stops the schedule and waits for a running refresh to finish or for
// ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.c.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		appLog.Warn("refresh scheduler stop timed out")
	}
}

// cronLogger routes cron's own logging into the process logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...any) {
	appLog.Debug("cron: "+msg, kv...)
}

func (cronLogger) Error(err error, msg string, kv ...any) {
	appLog.Error("cron: "+msg, err, kv...)
}
