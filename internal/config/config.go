package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"calrecur/internal/validate"
)

const (
	defaultListen   = "127.0.0.1:8080"
	defaultRefresh  = "*/15 * * * *"
	defaultHorizon  = 7
	defaultWorkers  = 4
	defaultMaxPulls = 100000
	defaultCacheDir = "cache"
	defaultDatabase = "calrecur.db"
	defaultHistory  = 30
)

// CalendarConfig describes a single calendar source. Exactly one of URL and
// Path is set.
type CalendarConfig struct {
	// ID is an internal identifier used for de-dup, cache file names and logging.
	ID string `yaml:"id" json:"id" validate:"required"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
	// URL is an ICS subscription endpoint.
	URL string `yaml:"url,omitempty" json:"url,omitempty" validate:"omitempty,url"`
	// Path is a local .ics file.
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username" validate:"required"`
	Password string `yaml:"password" json:"password" validate:"required"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen" validate:"hostname_port"`

	// Timezone is the IANA zone occurrences are displayed in and "today" is
	// computed in. Empty means the process local zone.
	Timezone string `yaml:"timezone" json:"timezone" validate:"omitempty,timezone"`

	// RefreshCron is a standard 5-field cron spec (e.g. "*/15 * * * *")
	// driving periodic calendar refresh.
	RefreshCron string `yaml:"refresh" json:"refresh" validate:"cron"`

	// HorizonDays is the number of days /api/agenda covers by default.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days" validate:"min=1,max=366"`

	// Workers bounds how many events are evaluated concurrently.
	Workers int `yaml:"workers" json:"workers" validate:"min=1,max=256"`

	// MaxPulls caps the occurrences pulled per event when searching for the
	// next one. Zero means the default; a negative value disables the cap.
	MaxPulls int `yaml:"max_pulls" json:"max_pulls"`

	// CacheDir stores fetched ICS bodies and their validators.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// Database is the SQLite file holding the refresh history. Empty disables
	// the history.
	Database string `yaml:"database" json:"database"`

	// HistoryDays is how long refresh runs are kept in Database.
	HistoryDays int `yaml:"history_days" json:"history_days" validate:"min=1"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level" validate:"oneof=debug info warn error"`

	Calendars []CalendarConfig `yaml:"calendars" json:"calendars" validate:"dive"`

	// CORSOrigins lists browser origins allowed to call the API and open the
	// notification socket.
	CORSOrigins []string `yaml:"cors_origins,omitempty" json:"cors_origins,omitempty"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      defaultListen,
		RefreshCron: defaultRefresh,
		HorizonDays: defaultHorizon,
		Workers:     defaultWorkers,
		MaxPulls:    defaultMaxPulls,
		CacheDir:    defaultCacheDir,
		Database:    defaultDatabase,
		HistoryDays: defaultHistory,
		LogLevel:    "info",
		Calendars:   []CalendarConfig{},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefresh
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = defaultHorizon
	}
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.MaxPulls == 0 {
		c.MaxPulls = defaultMaxPulls
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	if c.HistoryDays <= 0 {
		c.HistoryDays = defaultHistory
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Calendars == nil {
		c.Calendars = []CalendarConfig{}
	}
	for i := range c.Calendars {
		if c.Calendars[i].ID == "" {
			c.Calendars[i].ID = fmt.Sprintf("cal%d", i+1)
		}
		if c.Calendars[i].Name == "" {
			c.Calendars[i].Name = c.Calendars[i].ID
		}
	}
}

// Validate reports configuration errors Normalize cannot repair.
func (c *Config) Validate() error {
	var errs []error
	if err := validate.Struct(c); err != nil {
		errs = append(errs, err)
	}
	seen := make(map[string]bool, len(c.Calendars))
	for _, cal := range c.Calendars {
		if seen[cal.ID] {
			errs = append(errs, fmt.Errorf("calendar %q: duplicate id", cal.ID))
		}
		seen[cal.ID] = true
		if (cal.URL == "") == (cal.Path == "") {
			errs = append(errs, fmt.Errorf("calendar %q: exactly one of url and path must be set", cal.ID))
		}
	}
	return errors.Join(errs...)
}

// Location resolves Timezone, falling back to time.Local when empty.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     permissions (creating the parent directory) and returned.
//   - Otherwise the YAML is unmarshalled, normalized and validated.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".calrecur-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
