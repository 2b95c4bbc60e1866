package asset

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soocke/marker-lens-go/config"
	"github.com/soocke/marker-lens-go/domain/recognition"
)

// gatedSource blocks every Open until the gate is closed or ctx ends, and
// tracks how many opens run concurrently per locator.
type gatedSource struct {
	gate    chan struct{}
	started chan string
	err     error

	mu      sync.Mutex
	active  map[string]int
	maxSeen map[string]int
	opens   atomic.Int64
}

func newGatedSource() *gatedSource {
	return &gatedSource{
		gate:    make(chan struct{}),
		started: make(chan string, 16),
		active:  map[string]int{},
		maxSeen: map[string]int{},
	}
}

func (s *gatedSource) Open(ctx context.Context, locator string) (io.ReadCloser, error) {
	s.opens.Add(1)
	s.mu.Lock()
	s.active[locator]++
	if s.active[locator] > s.maxSeen[locator] {
		s.maxSeen[locator] = s.active[locator]
	}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.active[locator]--
		s.mu.Unlock()
	}()
	s.started <- locator
	select {
	case <-s.gate:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if s.err != nil {
		return nil, s.err
	}
	return io.NopCloser(strings.NewReader("payload:" + locator)), nil
}

func newTestFetcher(t *testing.T, src Source, size int) *Fetcher {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.AssetCacheSize = size
	f, err := NewFetcher(src, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(f.Release)
	return f
}

func TestFetcher_ConcurrentRequestsShareOneFetch(t *testing.T) {
	src := newGatedSource()
	f := newTestFetcher(t, src, 4)

	const callers = 8
	results := make([]*Asset, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.Request(context.Background(), "A", recognition.ContentVideo, "https://cdn/a.mp4")
		}(i)
	}
	<-src.started
	time.Sleep(20 * time.Millisecond)
	close(src.gate)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, results[0], results[i])
	}
	assert.EqualValues(t, 1, src.opens.Load())
	assert.Equal(t, 1, src.maxSeen["https://cdn/a.mp4"])
	data, err := os.ReadFile(results[0].Path)
	require.NoError(t, err)
	assert.Equal(t, "payload:https://cdn/a.mp4", string(data))
	assert.Equal(t, ".mp4", filepath.Ext(results[0].Path))

	// cached: no further I/O
	again, err := f.Request(context.Background(), "A", recognition.ContentVideo, "https://cdn/a.mp4")
	require.NoError(t, err)
	assert.Same(t, results[0], again)
	assert.EqualValues(t, 1, src.opens.Load())
	st := f.Stats()
	assert.EqualValues(t, 1, st.Fetches)
	assert.GreaterOrEqual(t, st.Hits, int64(1))
}

func TestFetcher_FailureIsReturnedAndNotCached(t *testing.T) {
	src := newGatedSource()
	src.err = errors.New("connection reset")
	close(src.gate)
	f := newTestFetcher(t, src, 4)

	_, err := f.Request(context.Background(), "B", recognition.ContentAudio, "https://cdn/b.mp3")
	require.ErrorIs(t, err, src.err)
	assert.False(t, f.Cached("B"))

	src.err = nil
	a, err := f.Request(context.Background(), "B", recognition.ContentAudio, "https://cdn/b.mp3")
	require.NoError(t, err)
	assert.Equal(t, "B", a.TargetID)
	assert.EqualValues(t, 2, src.opens.Load())
	assert.EqualValues(t, 1, f.Stats().Failures)
}

func TestFetcher_ReleaseMakesInFlightStale(t *testing.T) {
	src := newGatedSource()
	f := newTestFetcher(t, src, 4)

	done := make(chan error, 1)
	go func() {
		_, err := f.Request(context.Background(), "B", recognition.Content3D, "https://cdn/b.glb")
		done <- err
	}()
	<-src.started
	f.Release()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrStale)
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight request did not resolve after release")
	}
	_, err := f.Request(context.Background(), "B", recognition.Content3D, "https://cdn/b.glb")
	assert.ErrorIs(t, err, ErrReleased)
	assert.Equal(t, 0, f.Stats().Cached)
}

func TestFetcher_ReleaseRemovesSessionFiles(t *testing.T) {
	src := newGatedSource()
	close(src.gate)
	f := newTestFetcher(t, src, 4)
	a, err := f.Request(context.Background(), "A", recognition.ContentVideo, "https://cdn/a.mp4")
	require.NoError(t, err)
	dir := filepath.Dir(a.Path)
	f.Release()
	f.Release()
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err), "session dir still present")
}

func TestFetcher_EvictionDeletesFile(t *testing.T) {
	src := newGatedSource()
	close(src.gate)
	f := newTestFetcher(t, src, 1)
	a, err := f.Request(context.Background(), "A", recognition.ContentVideo, "https://cdn/a.mp4")
	require.NoError(t, err)
	_, err = f.Request(context.Background(), "B", recognition.ContentVideo, "https://cdn/b.mp4")
	require.NoError(t, err)
	_, err = f.Request(context.Background(), "C", recognition.ContentVideo, "https://cdn/c.mp4")
	require.NoError(t, err)
	_, err = os.Stat(a.Path)
	assert.True(t, os.IsNotExist(err), "evicted payload still on disk")
	assert.False(t, f.Cached("A"))
}

func TestFetcher_EvictionKeepsServedPayloads(t *testing.T) {
	src := newGatedSource()
	close(src.gate)
	f := newTestFetcher(t, src, 1)
	a, err := f.Request(context.Background(), "A", recognition.ContentVideo, "https://cdn/a.mp4")
	require.NoError(t, err)
	b, err := f.Request(context.Background(), "B", recognition.ContentVideo, "https://cdn/b.mp4")
	require.NoError(t, err)
	assert.False(t, f.Cached("A"))
	assert.FileExists(t, a.Path, "payload on screen until the overlay swaps")
	assert.FileExists(t, b.Path)

	c, err := f.Request(context.Background(), "C", recognition.ContentVideo, "https://cdn/c.mp4")
	require.NoError(t, err)
	_, err = os.Stat(a.Path)
	assert.True(t, os.IsNotExist(err), "payload outside the served window still on disk")
	assert.FileExists(t, b.Path)
	assert.FileExists(t, c.Path)

	// a link hands out no file and leaves the window as it is
	_, err = f.Request(context.Background(), "L", recognition.ContentLink, "https://example.com/page")
	require.NoError(t, err)
	assert.False(t, f.Cached("C"))
	assert.FileExists(t, b.Path)
	assert.FileExists(t, c.Path)
}

func TestFetcher_LinkSkipsDownload(t *testing.T) {
	src := newGatedSource()
	f := newTestFetcher(t, src, 4)
	a, err := f.Request(context.Background(), "L", recognition.ContentLink, "https://example.com/page")
	require.NoError(t, err)
	assert.Empty(t, a.Path)
	assert.EqualValues(t, 0, src.opens.Load())
}

func TestFetcher_CallerContextOnlyStopsWaiting(t *testing.T) {
	src := newGatedSource()
	f := newTestFetcher(t, src, 4)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := f.Request(ctx, "A", recognition.ContentVideo, "https://cdn/a.mp4")
		errc <- err
	}()
	<-src.started
	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)
	close(src.gate)
	require.Eventually(t, func() bool { return f.Cached("A") }, time.Second, 5*time.Millisecond)
}

func TestHTTPSource_StatusAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	src := NewDefaultSource(srv.Client(), "")
	rc, err := src.Open(context.Background(), srv.URL+"/clip.mp4")
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "ok", string(body))

	_, err = src.Open(context.Background(), srv.URL+"/missing")
	assert.ErrorContains(t, err, "404")
	_, err = src.Open(context.Background(), "ftp://host/file")
	assert.ErrorContains(t, err, "unsupported scheme")
}

func TestFileSourceAndLoadImage(t *testing.T) {
	dir := t.TempDir()
	img := image.NewGray(image.Rect(0, 0, 4, 3))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "marker.png"), buf.Bytes(), 0o644))

	src := NewDefaultSource(nil, dir)
	got, err := LoadImage(context.Background(), src, "marker.png")
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 3), got.Bounds())

	_, err = LoadImage(context.Background(), src, "file://"+filepath.ToSlash(filepath.Join(dir, "marker.png")))
	require.NoError(t, err)
	_, err = LoadImage(context.Background(), src, "absent.png")
	assert.Error(t, err)
}
