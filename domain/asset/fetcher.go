// Package asset fetches and caches overlay payloads for the lifetime of a
// scanning session.
package asset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/soocke/marker-lens-go/config"
	"github.com/soocke/marker-lens-go/domain/recognition"
)

var (
	// ErrStale is returned for a fetch that completed after Release.
	ErrStale = errors.New("asset: result is stale")
	// ErrReleased is returned by Request once the fetcher has been released.
	ErrReleased = errors.New("asset: fetcher released")
)

// Asset is a resolved overlay payload. Path is empty for content that is
// opened by reference (links).
type Asset struct {
	TargetID  string
	Type      recognition.ContentType
	Locator   string
	Path      string
	Size      int64
	FetchedAt time.Time
}

// Stats is a snapshot of fetcher counters.
type Stats struct {
	Requests int64
	Hits     int64
	Shared   int64
	Fetches  int64
	Failures int64
	Cached   int
}

// Fetcher resolves payloads with at most one concurrent fetch per target id.
// Results are cached in a bounded LRU whose evictions delete the local file,
// except for the two payloads handed out last: the newest is about to be
// shown and the one before it is on screen until the overlay swaps. Their
// files are deleted once they fall out of that window.
// Fetcher is safe for concurrent use.
type Fetcher struct {
	src     Source
	logger  *slog.Logger
	timeout time.Duration
	cache   *lru.Cache[string, *Asset]
	group   singleflight.Group

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex // guards dir, released, served, orphans and the generation/cache handoff
	dir      string
	released bool
	gen      atomic.Uint64
	served   [2]string         // payload paths handed out last, newest first
	orphans  map[string]string // path to target id, evicted while served

	requests, hits, shared, fetches, failures atomic.Int64
}

// NewFetcher returns a fetcher reading payloads from src.
func NewFetcher(src Source, cfg *config.Config, logger *slog.Logger) (*Fetcher, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	size := cfg.AssetCacheSize
	if size <= 0 {
		size = 1
	}
	f := &Fetcher{src: src, logger: logger, timeout: cfg.FetchTimeout()}
	cache, err := lru.NewWithEvict(size, f.evicted)
	if err != nil {
		return nil, fmt.Errorf("asset: create cache: %w", err)
	}
	f.cache = cache
	f.ctx, f.cancel = context.WithCancel(context.Background())
	return f, nil
}

// evicted runs inside cache.Add and cache.Purge, both called with f.mu held.
func (f *Fetcher) evicted(id string, a *Asset) {
	if a == nil || a.Path == "" {
		return
	}
	if !f.released && (a.Path == f.served[0] || a.Path == f.served[1]) {
		if f.orphans == nil {
			f.orphans = map[string]string{}
		}
		f.orphans[a.Path] = id
		return
	}
	f.remove(id, a.Path)
}

func (f *Fetcher) remove(id, p string) {
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) && f.logger != nil {
		f.logger.Debug("asset.evict", "target", id, "error", err)
	}
}

// serve records a as handed out and deletes evicted payloads that left the
// served window. f.mu must be held.
func (f *Fetcher) serve(a *Asset) {
	if a.Path == "" || a.Path == f.served[0] {
		return
	}
	f.served[1], f.served[0] = f.served[0], a.Path
	for p, id := range f.orphans {
		if p != f.served[0] && p != f.served[1] {
			delete(f.orphans, p)
			f.remove(id, p)
		}
	}
}

// cached looks targetID up and marks a hit as served.
func (f *Fetcher) cached(targetID string) (*Asset, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.cache.Get(targetID)
	if ok {
		f.serve(a)
	}
	return a, ok
}

// Request returns the payload for targetID. Cached payloads return without
// I/O; concurrent requests for the same id share one fetch. ctx only bounds
// how long this caller waits. Failures are returned, never retried.
func (f *Fetcher) Request(ctx context.Context, targetID string, ct recognition.ContentType, locator string) (*Asset, error) {
	f.requests.Add(1)
	f.mu.Lock()
	released := f.released
	f.mu.Unlock()
	if released {
		return nil, ErrReleased
	}
	if a, ok := f.cached(targetID); ok {
		f.hits.Add(1)
		return a, nil
	}
	gen := f.gen.Load()
	ch := f.group.DoChan(targetID, func() (any, error) {
		if a, ok := f.cached(targetID); ok {
			return a, nil
		}
		return f.fetch(gen, targetID, ct, locator)
	})
	select {
	case r := <-ch:
		if r.Shared {
			f.shared.Add(1)
		}
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*Asset), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *Fetcher) fetch(gen uint64, targetID string, ct recognition.ContentType, locator string) (*Asset, error) {
	f.fetches.Add(1)
	a := &Asset{TargetID: targetID, Type: ct, Locator: locator}
	var err error
	if ct.NeedsDownload() {
		err = f.download(a)
	}
	a.FetchedAt = time.Now()

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gen.Load() != gen || f.released {
		if a.Path != "" {
			_ = os.Remove(a.Path)
		}
		return nil, ErrStale
	}
	if err != nil {
		f.failures.Add(1)
		if f.logger != nil {
			f.logger.Warn("asset.fetch failed", "target", targetID, "error", err)
		}
		return nil, err
	}
	f.cache.Add(targetID, a)
	f.serve(a)
	if f.logger != nil {
		f.logger.Debug("asset.fetched", "target", targetID, "bytes", a.Size)
	}
	return a, nil
}

func (f *Fetcher) download(a *Asset) error {
	dir, err := f.sessionDir()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(f.ctx, f.timeout)
	defer cancel()
	rc, err := f.src.Open(ctx, a.Locator)
	if err != nil {
		return fmt.Errorf("asset: fetch %s: %w", a.TargetID, err)
	}
	defer rc.Close()
	out, err := os.CreateTemp(dir, safeName(a.TargetID)+"-*"+extension(a.Locator))
	if err != nil {
		return fmt.Errorf("asset: create file: %w", err)
	}
	a.Path = out.Name()
	n, err := io.Copy(out, rc)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(a.Path)
		a.Path = ""
		return fmt.Errorf("asset: fetch %s: %w", a.TargetID, err)
	}
	a.Size = n
	return nil
}

func (f *Fetcher) sessionDir() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.released {
		return "", ErrReleased
	}
	if f.dir == "" {
		dir, err := os.MkdirTemp("", "markerlens-*")
		if err != nil {
			return "", fmt.Errorf("asset: session dir: %w", err)
		}
		f.dir = dir
	}
	return f.dir, nil
}

// Release cancels in-flight fetches, marks their results stale, purges the
// cache and deletes the session directory. Safe to call more than once.
func (f *Fetcher) Release() {
	if f == nil {
		return
	}
	f.mu.Lock()
	if f.released {
		f.mu.Unlock()
		return
	}
	f.released = true
	f.gen.Add(1)
	f.cancel()
	f.cache.Purge()
	f.served, f.orphans = [2]string{}, nil
	dir := f.dir
	f.dir = ""
	f.mu.Unlock()
	if dir != "" {
		if err := os.RemoveAll(dir); err != nil && f.logger != nil {
			f.logger.Warn("asset.release", "error", err)
		}
	}
}

// Cached reports whether a payload for targetID is in the cache.
func (f *Fetcher) Cached(targetID string) bool {
	return f.cache.Contains(targetID)
}

// Stats returns a snapshot of the counters.
func (f *Fetcher) Stats() Stats {
	return Stats{
		Requests: f.requests.Load(),
		Hits:     f.hits.Load(),
		Shared:   f.shared.Load(),
		Fetches:  f.fetches.Load(),
		Failures: f.failures.Load(),
		Cached:   f.cache.Len(),
	}
}

func safeName(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "asset"
	}
	return b.String()
}

func extension(locator string) string {
	p := locator
	if u, err := url.Parse(locator); err == nil && u.Path != "" {
		p = u.Path
	}
	ext := path.Ext(strings.ReplaceAll(p, "\\", "/"))
	if len(ext) > 8 || strings.ContainsAny(ext, "*?") {
		return ""
	}
	return ext
}
