package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	appLog "calrecur/internal/log"
)

const (
	defaultFetchTimeout = 15 * time.Second
	defaultFetchWorkers = 4
	maxBodyBytes        = 32 << 20
)

// Source is a single calendar source: an ICS subscription URL or a local
// .ics file. Exactly one of URL and Path is set.
type Source struct {
	ID   string
	Name string
	URL  string
	Path string
}

// Redacted returns a form of the source safe to log: the scheme and host of
// a URL, or the base name of a file.
func (s Source) Redacted() string {
	if s.Path != "" {
		return "file://" + filepath.Base(s.Path)
	}
	return redactURL(s.URL)
}

// FetchResult contains the outcome of fetching a single source.
type FetchResult struct {
	Source    Source
	Body      []byte // ICS payload (either freshly fetched or from cache)
	FromCache bool   // true if we reused the cached body
}

// cacheEntry holds HTTP cache metadata for a single ICS URL.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher fetches ICS feeds with HTTP caching (ETag / Last-Modified) and a
// disk-backed body cache.
type Fetcher struct {
	client   *http.Client
	cacheDir string
	workers  int
}

// NewFetcher creates a new Fetcher that keeps per-URL cache directories under
// cacheDir and fetches at most workers sources at once.
func NewFetcher(cacheDir string, workers int) *Fetcher {
	if cacheDir == "" {
		cacheDir = "./cache"
	}
	if workers <= 0 {
		workers = defaultFetchWorkers
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: defaultFetchTimeout,
		},
		cacheDir: cacheDir,
		workers:  workers,
	}
}

// FetchAll fetches all given sources concurrently. Results keep the order of
// sources and only contain sources that produced a body; failures are logged
// and returned joined.
func (f *Fetcher) FetchAll(ctx context.Context, sources []Source) ([]FetchResult, error) {
	var (
		mu   sync.Mutex
		errs []error
	)
	slots := make([]*FetchResult, len(sources))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(f.workers)
	for i, src := range sources {
		g.Go(func() error {
			res, err := f.FetchOne(ctx, src)
			if err != nil {
				appLog.Error("ics fetch failed", err, "id", src.ID, "source", src.Redacted())
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", src.ID, err))
				mu.Unlock()
				return nil
			}
			slots[i] = &res
			return nil
		})
	}
	_ = g.Wait()

	results := make([]FetchResult, 0, len(sources))
	for _, r := range slots {
		if r != nil {
			results = append(results, *r)
		}
	}
	return results, errors.Join(errs...)
}

// FetchOne fetches a single source. Files are read directly; URLs honor
// ETag and Last-Modified and fall back to the cached body on failure.
func (f *Fetcher) FetchOne(ctx context.Context, src Source) (FetchResult, error) {
	switch {
	case src.Path != "":
		return f.readFile(src)
	case src.URL == "":
		return FetchResult{}, errors.New("source has neither url nor path")
	}

	cachePath, err := f.cachePathForURL(src.URL)
	if err != nil {
		return FetchResult{}, err
	}
	if err := os.MkdirAll(cachePath, 0o700); err != nil {
		return FetchResult{}, err
	}

	meta, _ := f.loadCacheMeta(cachePath)
	cachedBody, _ := f.loadCacheBody(cachePath)
	fallback := func(reason error) (FetchResult, error) {
		if len(cachedBody) == 0 {
			return FetchResult{}, reason
		}
		appLog.Warn("ics fetch failed, using cached body", "id", src.ID, "source", src.Redacted(), "reason", reason)
		return FetchResult{Source: src, Body: cachedBody, FromCache: true}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return FetchResult{}, err
	}
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	appLog.Debug("ics fetch start", "id", src.ID, "source", src.Redacted())

	resp, err := f.client.Do(req)
	if err != nil {
		return fallback(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return fallback(err)
		}

		newMeta := cacheEntry{
			URL:          src.URL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}
		if err := f.saveCache(cachePath, newMeta, body); err != nil {
			// Log but still return the freshly fetched body.
			appLog.Error("ics cache save failed", err, "id", src.ID, "source", src.Redacted())
		}

		appLog.Info("ics fetch success", "id", src.ID, "source", src.Redacted(), "bytes", len(body))
		return FetchResult{Source: src, Body: body}, nil

	case http.StatusNotModified:
		if len(cachedBody) == 0 {
			return FetchResult{}, errors.New("received 304 Not Modified but no cached body available")
		}
		appLog.Info("ics fetch not modified; using cache", "id", src.ID, "source", src.Redacted())
		return FetchResult{Source: src, Body: cachedBody, FromCache: true}, nil

	default:
		return fallback(fmt.Errorf("unexpected status %s", resp.Status))
	}
}

func (f *Fetcher) readFile(src Source) (FetchResult, error) {
	body, err := os.ReadFile(src.Path)
	if err != nil {
		return FetchResult{}, err
	}
	appLog.Debug("ics file read", "id", src.ID, "source", src.Redacted(), "bytes", len(body))
	return FetchResult{Source: src, Body: body}, nil
}

func (f *Fetcher) cachePathForURL(u string) (string, error) {
	if u == "" {
		return "", errors.New("empty url")
	}
	sum := sha256.Sum256([]byte(u))
	// First 16 hex chars name the directory.
	dir := hex.EncodeToString(sum[:8])
	return filepath.Join(f.cacheDir, dir), nil
}

func (f *Fetcher) loadCacheMeta(cachePath string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

func (f *Fetcher) loadCacheBody(cachePath string) ([]byte, error) {
	return os.ReadFile(filepath.Join(cachePath, "body.ics"))
}

func (f *Fetcher) saveCache(cachePath string, meta cacheEntry, body []byte) error {
	// Write body first so meta never points at missing body.
	if err := os.WriteFile(filepath.Join(cachePath, "body.ics"), body, 0o600); err != nil {
		return err
	}

	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}

// redactURL keeps only scheme and host, since subscription URLs often embed
// private tokens in the path or query.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "ics://...(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
