// Package store keeps the refresh history in a SQLite database.
package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	appLog "calrecur/internal/log"
	"calrecur/internal/model"
)

//go:embed migrations/*.sql
var migrations embed.FS

const defaultRecentRuns = 20

// Store is the refresh history.
type Store struct {
	db *sql.DB
}

// Open opens the SQLite database at path and runs migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("store: database path is empty")
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_time_format=sqlite")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// SQLite has a single writer.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return err
	}
	p, err := goose.NewProvider(goose.DialectSQLite3, db, fsys, goose.WithLogger(gooseLogger{}))
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}
	results, err := p.Up(ctx)
	if err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	for _, r := range results {
		appLog.Info("store migration applied", "version", int(r.Source.Version), "took", r.Duration)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun stores run, replacing any earlier record with the same ID.
func (s *Store) RecordRun(ctx context.Context, run model.Run) error {
	failures, err := json.Marshal(nonNil(run.Failures))
	if err != nil {
		return fmt.Errorf("marshal failures: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO refresh_runs (id, started_at, took_ms, calendars, events, failures, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.At.UTC(), run.Took.Milliseconds(), run.Calendars, run.Events, string(failures), run.Err,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first. A limit of zero or less
// means the default of 20.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = defaultRecentRuns
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, took_ms, calendars, events, failures, error
		 FROM refresh_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []model.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Prune deletes runs started before cutoff and reports how many were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM refresh_runs WHERE started_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return res.RowsAffected()
}

func scanRun(scanner interface{ Scan(...any) error }) (model.Run, error) {
	var (
		run      model.Run
		tookMS   int64
		failures string
	)
	if err := scanner.Scan(&run.ID, &run.At, &tookMS, &run.Calendars, &run.Events, &failures, &run.Err); err != nil {
		return model.Run{}, err
	}
	run.Took = time.Duration(tookMS) * time.Millisecond
	if err := json.Unmarshal([]byte(failures), &run.Failures); err != nil {
		return model.Run{}, err
	}
	if len(run.Failures) == 0 {
		run.Failures = nil
	}
	return run, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// gooseLogger sends migration logs to the process logger.
type gooseLogger struct{}

func (gooseLogger) Printf(format string, v ...any) {
	appLog.Debug("goose: " + fmt.Sprintf(format, v...))
}

func (gooseLogger) Fatalf(format string, v ...any) {
	appLog.Error("goose: fatal", fmt.Errorf(format, v...))
}
