package scan

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soocke/marker-lens-go/analytics"
	"github.com/soocke/marker-lens-go/config"
	"github.com/soocke/marker-lens-go/domain/asset"
	"github.com/soocke/marker-lens-go/domain/capture"
	"github.com/soocke/marker-lens-go/domain/overlay"
	"github.com/soocke/marker-lens-go/domain/recognition"
	"github.com/soocke/marker-lens-go/domain/vision"
	"github.com/soocke/marker-lens-go/store"
)

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

var discardLogger = slog.New(slog.NewTextHandler(discardWriter{}, nil))

func texturedImage(w, h int, seed int64) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 128, 128, 128, 255
	}
	rng := rand.New(rand.NewSource(seed))
	for n := 0; n < 60; n++ {
		x0, y0 := rng.Intn(w-20), rng.Intn(h-20)
		x1, y1 := x0+8+rng.Intn(40), y0+8+rng.Intn(40)
		c := color.RGBA{uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256)), 255}
		for y := y0; y < y1 && y < h; y++ {
			for x := x0; x < x1 && x < w; x++ {
				img.SetRGBA(x, y, c)
			}
		}
	}
	return img
}

type fakeFrames struct {
	mu  sync.Mutex
	seq uint64
	img *image.RGBA
}

func (f *fakeFrames) bump() {
	f.mu.Lock()
	f.seq++
	f.mu.Unlock()
}

func (f *fakeFrames) LatestFrame() capture.FrameSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return capture.FrameSnapshot{Image: f.img, CapturedAt: time.Now(), Sequence: f.seq}
}

func (f *fakeFrames) Running() bool { return true }

// scriptDetector reports next as detected; an empty id is a miss.
type scriptDetector struct {
	next  string
	calls int
}

func (d *scriptDetector) Detect(image.Image) (recognition.RecognitionResult, error) {
	d.calls++
	if d.next == "" {
		return recognition.RecognitionResult{}, nil
	}
	return recognition.RecognitionResult{Detected: true, TargetID: d.next, Confidence: 40}, nil
}

type fakeFetcher struct {
	mu       sync.Mutex
	requests map[string]int
	failures map[string]int // remaining failures per target
	gate     chan struct{}
	released bool
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{requests: map[string]int{}, failures: map[string]int{}}
}

func (f *fakeFetcher) Request(ctx context.Context, id string, ct recognition.ContentType, locator string) (*asset.Asset, error) {
	f.mu.Lock()
	f.requests[id]++
	gate := f.gate
	fail := f.failures[id] > 0
	if fail {
		f.failures[id]--
	}
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail {
		return nil, errors.New("network down")
	}
	return &asset.Asset{TargetID: id, Type: ct, Locator: locator, Path: "/tmp/" + id}, nil
}

func (f *fakeFetcher) Release() {
	f.mu.Lock()
	f.released = true
	f.mu.Unlock()
}

func (f *fakeFetcher) count(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[id]
}

type fakeOverlay struct {
	activated []string
	err       error
	polls     int
	disposed  int
}

func (o *fakeOverlay) Activate(t *recognition.Target, a *asset.Asset) error {
	var warn *overlay.PlaybackWarning
	if o.err != nil && !errors.As(o.err, &warn) {
		return o.err
	}
	o.activated = append(o.activated, t.ID)
	return o.err
}

func (o *fakeOverlay) Poll()    { o.polls++ }
func (o *fakeOverlay) Dispose() { o.disposed++ }

func (o *fakeOverlay) Active() (string, recognition.ContentType, bool) {
	if len(o.activated) == 0 {
		return "", "", false
	}
	return o.activated[len(o.activated)-1], recognition.ContentVideo, true
}

func (o *fakeOverlay) Pending() (string, bool) { return "", false }

type fakeEmitter struct {
	mu     sync.Mutex
	events []analytics.ScanEvent
	closed int
}

func (e *fakeEmitter) Emit(ev analytics.ScanEvent) {
	e.mu.Lock()
	e.events = append(e.events, ev)
	e.mu.Unlock()
}

func (e *fakeEmitter) Close() error {
	e.closed++
	return nil
}

type harness struct {
	loop    *Loop
	frames  *fakeFrames
	det     *scriptDetector
	fetcher *fakeFetcher
	ov      *fakeOverlay
	em      *fakeEmitter
}

func newHarness(t *testing.T, ids ...string) *harness {
	t.Helper()
	ov := &fakeOverlay{}
	targets := make([]harnessTarget, 0, len(ids))
	for _, id := range ids {
		targets = append(targets, harnessTarget{id: id, kind: recognition.ContentVideo})
	}
	h := newHarnessWith(t, ov, targets...)
	h.ov = ov
	return h
}

type harnessTarget struct {
	id   string
	kind recognition.ContentType
}

// newHarnessWith runs the loop against ov, which may be a real overlay
// manager. h.ov is left nil.
func newHarnessWith(t *testing.T, ov Overlay, targets ...harnessTarget) *harness {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.TickIntervalMs = 0
	engine := vision.NewORBEngine(vision.ORBOptions{})
	h := &harness{
		frames:  &fakeFrames{img: image.NewRGBA(image.Rect(0, 0, 8, 8))},
		det:     &scriptDetector{},
		fetcher: newFakeFetcher(),
		em:      &fakeEmitter{},
	}
	sess := NewSession(cfg, engine, h.fetcher, ov, h.em, discardLogger)
	sess.Matcher = h.det
	for i, tg := range targets {
		locator := tg.id + ".mp4"
		if tg.kind == recognition.ContentLink {
			locator = "https://example.com/" + tg.id
		}
		ok := sess.Registry.Register(tg.id, texturedImage(200, 150, int64(i+1)), recognition.Content{Type: tg.kind, Locator: locator})
		require.True(t, ok, "register %s", tg.id)
	}
	h.loop = NewLoop(sess, h.frames, cfg, discardLogger)
	t.Cleanup(h.loop.Teardown)
	return h
}

// see feeds one new frame in which id is detected.
func (h *harness) see(id string) {
	h.det.next = id
	h.frames.bump()
	h.loop.Tick(time.Now())
}

func (h *harness) seeN(id string, n int) {
	for range n {
		h.see(id)
	}
}

// settle ticks until the in-flight fetch has been applied.
func (h *harness) settle(t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.loop.inflight != "" {
		if time.Now().After(deadline) {
			t.Fatalf("fetch for %s never settled", h.loop.inflight)
		}
		time.Sleep(time.Millisecond)
		h.loop.Tick(time.Now())
	}
}

func TestLoop_StableDetectionActivatesOnce(t *testing.T) {
	h := newHarness(t, "a", "b")
	h.seeN("a", 2)
	assert.Equal(t, 0, h.fetcher.count("a"))
	h.see("a")
	h.settle(t)

	assert.Equal(t, 1, h.fetcher.count("a"))
	assert.Equal(t, []string{"a"}, h.ov.activated)
	require.Len(t, h.em.events, 1)
	assert.Equal(t, "a", h.em.events[0].TargetID)
	assert.Equal(t, h.loop.Session().ID, h.em.events[0].SessionID)

	h.seeN("a", 5)
	assert.Equal(t, 1, h.fetcher.count("a"), "reaffirmed target must not refetch")
	st := h.loop.Stats()
	assert.EqualValues(t, 1, st.Switches)
	assert.EqualValues(t, 1, st.Activations)
	assert.EqualValues(t, 8, st.Processed)
}

func TestLoop_MissKeepsActiveTarget(t *testing.T) {
	h := newHarness(t, "a")
	h.seeN("a", 3)
	h.settle(t)

	h.seeN("", 10)
	active, ok := h.loop.Session().Stabilizer.Active()
	assert.True(t, ok)
	assert.Equal(t, "a", active)
	assert.Zero(t, h.ov.disposed)

	h.seeN("a", 3)
	assert.Equal(t, 1, h.fetcher.count("a"))
}

func TestLoop_FetchFailureRollsBackAndRetries(t *testing.T) {
	h := newHarness(t, "a", "b")
	h.seeN("a", 3)
	h.settle(t)

	h.fetcher.failures["b"] = 1
	h.seeN("b", 3)
	h.settle(t)
	active, _ := h.loop.Session().Stabilizer.Active()
	assert.Equal(t, "a", active, "failed switch rolls back to the displayed target")
	assert.Equal(t, []string{"a"}, h.ov.activated)

	h.seeN("b", 3)
	h.settle(t)
	assert.Equal(t, 2, h.fetcher.count("b"))
	assert.Equal(t, []string{"a", "b"}, h.ov.activated)
	assert.EqualValues(t, 1, h.loop.Stats().FetchFailures)
}

func TestLoop_SwitchIgnoredWhileFetchInFlight(t *testing.T) {
	h := newHarness(t, "a", "b")
	h.fetcher.gate = make(chan struct{})
	h.seeN("a", 3)
	require.Equal(t, "a", h.loop.inflight)

	h.seeN("b", 3)
	assert.EqualValues(t, 1, h.loop.Stats().Guarded)
	assert.Equal(t, 0, h.fetcher.count("b"))
	active, _ := h.loop.Session().Stabilizer.Active()
	assert.Equal(t, "a", active)

	close(h.fetcher.gate)
	h.settle(t)
	assert.Equal(t, []string{"a"}, h.ov.activated)

	h.seeN("b", 3)
	h.settle(t)
	assert.Equal(t, []string{"a", "b"}, h.ov.activated)
	assert.Len(t, h.em.events, 2)
}

func TestLoop_TeardownDiscardsInFlightFetch(t *testing.T) {
	h := newHarness(t, "a")
	h.fetcher.gate = make(chan struct{})
	h.seeN("a", 3)
	require.Eventually(t, func() bool { return h.fetcher.count("a") == 1 }, time.Second, time.Millisecond)

	h.loop.Teardown()
	close(h.fetcher.gate)
	time.Sleep(20 * time.Millisecond)
	h.loop.Tick(time.Now())
	h.loop.Teardown()

	assert.Empty(t, h.ov.activated)
	assert.Equal(t, 1, h.ov.disposed)
	assert.Equal(t, 1, h.em.closed)
	assert.True(t, h.fetcher.released)
	assert.Equal(t, 0, h.loop.Session().Registry.Len())

	calls := h.det.calls
	h.see("a")
	assert.Equal(t, calls, h.det.calls, "torn down loop must not process frames")
}

func TestLoop_StaleGenerationDiscarded(t *testing.T) {
	h := newHarness(t, "a")
	h.loop.results <- fetchResult{gen: h.loop.gen + 1, targetID: "a", asset: &asset.Asset{TargetID: "a"}}
	h.loop.Tick(time.Now())
	assert.Empty(t, h.ov.activated)
	assert.EqualValues(t, 1, h.loop.Stats().Stale)
}

func TestLoop_PlaybackWarningStillDisplays(t *testing.T) {
	h := newHarness(t, "a")
	h.ov.err = &overlay.PlaybackWarning{TargetID: "a", Err: errors.New("no audio device")}
	h.seeN("a", 3)
	h.settle(t)
	assert.Equal(t, []string{"a"}, h.ov.activated)
	active, _ := h.loop.Session().Stabilizer.Active()
	assert.Equal(t, "a", active)

	h.fetcher.failures["a"] = 0
	h.seeN("a", 5)
	assert.Equal(t, 1, h.fetcher.count("a"), "silent overlay counts as displayed")
}

func TestLoop_ActivateErrorRollsBack(t *testing.T) {
	h := newHarness(t, "a")
	h.ov.err = overlay.ErrNoPayload
	h.seeN("a", 3)
	h.settle(t)
	_, ok := h.loop.Session().Stabilizer.Active()
	assert.False(t, ok)
}

type nopElement struct{}

func (nopElement) Close() error             { return nil }
func (nopElement) Update(image.Image) error { return nil }

type nopSurface struct{}

func (nopSurface) ShowLabel(string) (overlay.Element, error)           { return nopElement{}, nil }
func (nopSurface) ShowImage(image.Image) (overlay.ImageElement, error) { return nopElement{}, nil }
func (nopSurface) OpenPage(string) (overlay.Element, error)            { return nopElement{}, nil }

type nopPlayer struct{}

func (nopPlayer) Play(context.Context, string, overlay.PlayOptions) (overlay.Playback, error) {
	return nopPlayback{}, nil
}

type nopPlayback struct{}

func (nopPlayback) Stop() error { return nil }

func newLinkHarness(t *testing.T) (*harness, *overlay.Manager) {
	t.Helper()
	mgr := overlay.NewManager(overlay.Collaborators{Surface: nopSurface{}, Player: nopPlayer{}}, config.DefaultConfig(), discardLogger)
	h := newHarnessWith(t, mgr,
		harnessTarget{id: "l", kind: recognition.ContentLink},
		harnessTarget{id: "b", kind: recognition.ContentAudio},
		harnessTarget{id: "c", kind: recognition.ContentAudio},
	)
	return h, mgr
}

func TestLoop_FailedFetchAfterClosedLinkRollsBackToShownOverlay(t *testing.T) {
	h, mgr := newLinkHarness(t)
	h.seeN("l", 3)
	h.settle(t)
	id, _, _ := mgr.Active()
	require.Equal(t, "l", id)

	h.seeN("b", 3)
	h.settle(t)
	parked, ok := mgr.Pending()
	require.True(t, ok)
	require.Equal(t, "b", parked)

	require.NoError(t, mgr.CloseLink())
	id, _, _ = mgr.Active()
	require.Equal(t, "b", id)

	h.fetcher.failures["c"] = 1
	h.seeN("c", 3)
	h.settle(t)
	active, _ := h.loop.Session().Stabilizer.Active()
	assert.Equal(t, "b", active, "rollback follows the overlay, not the last direct activation")

	h.seeN("l", 3)
	h.settle(t)
	id, _, _ = mgr.Active()
	assert.Equal(t, "l", id, "link can be shown again")
	assert.Equal(t, 2, h.fetcher.count("l"))
}

func TestLoop_FailedFetchBehindOpenLinkRollsBackToParked(t *testing.T) {
	h, mgr := newLinkHarness(t)
	h.seeN("l", 3)
	h.settle(t)
	h.seeN("b", 3)
	h.settle(t)

	h.fetcher.failures["c"] = 1
	h.seeN("c", 3)
	h.settle(t)
	active, _ := h.loop.Session().Stabilizer.Active()
	assert.Equal(t, "b", active, "parked activation is what shows once the link closes")

	// the page is confirmed again while b is parked
	h.seeN("l", 3)
	h.settle(t)
	_, ok := mgr.Pending()
	assert.False(t, ok)
	require.NoError(t, mgr.CloseLink())
	_, _, ok = mgr.Active()
	assert.False(t, ok)
}

func TestLoop_ThrottleAndUnchangedFrames(t *testing.T) {
	h := newHarness(t, "a")
	h.loop.cfg.TickIntervalMs = 100
	now := time.Now()
	h.det.next = "a"
	h.frames.bump()
	h.loop.Tick(now)
	h.frames.bump()
	h.loop.Tick(now.Add(10 * time.Millisecond))
	h.loop.Tick(now.Add(200 * time.Millisecond))
	h.loop.Tick(now.Add(400 * time.Millisecond))

	st := h.loop.Stats()
	assert.EqualValues(t, 2, st.Processed)
	assert.EqualValues(t, 1, st.Throttled)
	assert.EqualValues(t, 1, st.Idle)
	assert.Equal(t, 4, h.ov.polls)
}

func TestLoop_ObserverSeesPending(t *testing.T) {
	h := newHarness(t, "a")
	var got []Observation
	h.loop.OnObservation = func(o Observation) { got = append(got, o) }
	h.seeN("a", 2)
	h.see("")
	require.Len(t, got, 3)
	assert.True(t, got[1].Detected)
	assert.Equal(t, "a", got[1].Pending)
	assert.Equal(t, 2, got[1].PendingCount)
	assert.False(t, got[2].Detected)
	assert.Zero(t, got[2].PendingCount)
	assert.Empty(t, got[1].Switched)

	h.seeN("a", 3)
	require.Len(t, got, 6)
	assert.Equal(t, "a", got[5].Switched)
	assert.Equal(t, "a", got[5].Active)
}

func TestLoop_NilAndPartialTeardown(t *testing.T) {
	var l *Loop
	l.Teardown()
	l.Tick(time.Now())
	assert.Equal(t, Stats{}, l.Stats())

	bare := NewLoop(nil, nil, nil, nil)
	bare.Teardown()
	bare.Tick(time.Now())
}

type memSource map[string][]byte

func (m memSource) Open(_ context.Context, locator string) (io.ReadCloser, error) {
	b, ok := m[locator]
	if !ok {
		return nil, fmt.Errorf("%s: not found", locator)
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestLoop_StartRegistersLoadableTargets(t *testing.T) {
	h := newHarness(t)
	src := memSource{
		"one.png":   pngBytes(t, texturedImage(200, 150, 11)),
		"blank.png": pngBytes(t, image.NewRGBA(image.Rect(0, 0, 120, 90))),
		"two.png":   pngBytes(t, texturedImage(200, 150, 12)),
	}
	recs := []store.TargetRecord{
		{ID: "one", MarkerImageURL: "one.png", ContentURL: "one.mp4", ContentType: recognition.ContentVideo},
		{ID: "missing", MarkerImageURL: "nope.png", ContentURL: "x.mp3", ContentType: recognition.ContentAudio},
		{ID: "blank", MarkerImageURL: "blank.png", ContentURL: "https://example.com", ContentType: recognition.ContentLink},
		{ID: "two", MarkerImageURL: "two.png", ContentURL: "https://example.com", ContentType: recognition.ContentLink},
	}
	n, err := h.loop.Start(context.Background(), src, recs)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"one", "two"}, h.loop.Session().Registry.IDs())
	tgt, ok := h.loop.Session().Registry.Target("two")
	require.True(t, ok)
	assert.Equal(t, recognition.ContentLink, tgt.Content.Type)

	h.loop.Teardown()
	_, err = h.loop.Start(context.Background(), src, recs)
	assert.Error(t, err)
}
