package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/soocke/marker-lens-go/analytics"
	"github.com/soocke/marker-lens-go/config"
	"github.com/soocke/marker-lens-go/domain/asset"
	"github.com/soocke/marker-lens-go/domain/capture"
	"github.com/soocke/marker-lens-go/domain/overlay"
	"github.com/soocke/marker-lens-go/domain/recognition"
	"github.com/soocke/marker-lens-go/domain/tracking"
	"github.com/soocke/marker-lens-go/domain/vision"
)

// Observation describes one processed frame for the host UI.
type Observation struct {
	Sequence   uint64
	Detected   bool
	TargetID   string
	Confidence int
	// Switched names the target whose confirmed switch started an activation
	// on this frame.
	Switched string
	// Outline is the marker quadrilateral in frame coordinates.
	Outline      [4]vision.Point
	Active       string
	Pending      string
	PendingCount int
	Duration     time.Duration
}

type fetchResult struct {
	gen      uint64
	targetID string
	asset    *asset.Asset
	err      error
}

// Loop is the scan orchestrator. Tick is called by the host's frame
// callback; all pipeline state is touched only from that goroutine. Fetches
// run in goroutines and report back through a channel drained at the start
// of each tick; results from an older generation are discarded.
type Loop struct {
	sess   *Session
	source capture.FrameSource
	cfg    *config.Config
	logger *slog.Logger

	// OnObservation, if set, receives every processed frame.
	OnObservation func(Observation)

	ctx    context.Context
	cancel context.CancelFunc

	gen      uint64
	inflight string
	results  chan fetchResult
	lastRun  time.Time
	lastSeq  uint64

	teardownOnce sync.Once
	torn         atomic.Bool

	stats loopStats
}

// NewLoop returns a loop over sess reading frames from source.
func NewLoop(sess *Session, source capture.FrameSource, cfg *config.Config, logger *slog.Logger) *Loop {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	l := &Loop{sess: sess, source: source, cfg: cfg, logger: logger, results: make(chan fetchResult, 8)}
	l.ctx, l.cancel = context.WithCancel(context.Background())
	return l
}

// Session returns the loop's session.
func (l *Loop) Session() *Session { return l.sess }

// Tick advances the pipeline by at most one frame.
func (l *Loop) Tick(now time.Time) {
	if l == nil || l.sess == nil || l.torn.Load() {
		return
	}
	defer l.recoverLog("tick")
	l.drainFetches()
	if l.sess.Overlay != nil {
		l.sess.Overlay.Poll()
	}
	if !l.lastRun.IsZero() && now.Sub(l.lastRun) < l.cfg.TickInterval() {
		l.stats.throttled.Add(1)
		return
	}
	if l.source == nil || !l.source.Running() {
		return
	}
	snap := l.source.LatestFrame()
	if snap.Image == nil || snap.Sequence == l.lastSeq {
		l.stats.idle.Add(1)
		return
	}
	l.lastRun, l.lastSeq = now, snap.Sequence
	l.process(snap, now)
}

func (l *Loop) process(snap capture.FrameSnapshot, now time.Time) {
	start := time.Now()
	res, err := l.sess.Matcher.Detect(snap.Image)
	if err != nil {
		l.stats.frameErrors.Add(1)
		if l.logger != nil {
			l.logger.Warn("scan.frame", "sequence", snap.Sequence, "error", err)
		}
		res = recognition.RecognitionResult{}
	}
	l.stats.processed.Add(1)
	obs := Observation{Sequence: snap.Sequence, Detected: res.Detected, TargetID: res.TargetID, Confidence: res.Confidence}
	if res.Detected {
		l.stats.detections.Add(1)
		if t, ok := l.sess.Registry.Target(res.TargetID); ok {
			obs.Outline = recognition.Outline(t, res.Transform)
		}
	}
	_ = res.Close()

	ev, switched := l.sess.Stabilizer.Evaluate(res)
	if switched && l.onSwitch(ev, now) {
		obs.Switched = ev.TargetID
	}
	obs.Active, _ = l.sess.Stabilizer.Active()
	obs.Pending, obs.PendingCount = l.sess.Stabilizer.Pending()
	obs.Duration = time.Since(start)
	l.stats.lastDuration.Store(int64(obs.Duration))
	if l.OnObservation != nil {
		l.OnObservation(obs)
	}
}

// onSwitch reports whether the switch started a fetch.
func (l *Loop) onSwitch(ev tracking.SwitchEvent, now time.Time) bool {
	if l.inflight != "" {
		if l.inflight != ev.TargetID {
			// an activation is still resolving; the new target has to be
			// confirmed again once it settles
			l.stats.guarded.Add(1)
			l.sess.Stabilizer.Restore(l.inflight)
			if l.logger != nil {
				l.logger.Debug("scan.switch ignored", "target", ev.TargetID, "inflight", l.inflight)
			}
		}
		return false
	}
	t, ok := l.sess.Registry.Target(ev.TargetID)
	if !ok {
		l.rollback()
		return false
	}
	l.stats.switches.Add(1)
	if l.logger != nil {
		l.logger.Info("scan.switch", "target", ev.TargetID, "previous", ev.Previous)
	}
	if l.sess.Analytics != nil {
		l.sess.Analytics.Emit(analytics.ScanEvent{SessionID: l.sess.ID, TargetID: ev.TargetID, Timestamp: now})
	}
	l.inflight = t.ID
	go l.fetch(l.ctx, l.gen, t)
	return true
}

func (l *Loop) fetch(ctx context.Context, gen uint64, t *recognition.Target) {
	res := fetchResult{gen: gen, targetID: t.ID}
	defer func() {
		if r := recover(); r != nil {
			res.asset, res.err = nil, fmt.Errorf("fetch panic: %v", r)
			if l.logger != nil {
				l.logger.Error("scan.fetch panic", "target", t.ID, "panic", r, "stack", string(debug.Stack()))
			}
		}
		select {
		case l.results <- res:
		case <-ctx.Done():
		}
	}()
	res.asset, res.err = l.sess.Fetcher.Request(ctx, t.ID, t.Content.Type, t.Content.Locator)
}

func (l *Loop) drainFetches() {
	for {
		select {
		case r := <-l.results:
			l.applyFetch(r)
		default:
			return
		}
	}
}

func (l *Loop) applyFetch(r fetchResult) {
	if r.gen != l.gen {
		l.stats.stale.Add(1)
		return
	}
	if r.targetID == l.inflight {
		l.inflight = ""
	}
	if r.err != nil {
		l.stats.fetchFailures.Add(1)
		if l.logger != nil {
			l.logger.Warn("scan.fetch failed", "target", r.targetID, "error", r.err)
		}
		l.rollback()
		return
	}
	t, ok := l.sess.Registry.Target(r.targetID)
	if !ok {
		l.rollback()
		return
	}
	err := l.sess.Overlay.Activate(t, r.asset)
	var warn *overlay.PlaybackWarning
	switch {
	case err == nil:
	case errors.As(err, &warn):
		if l.logger != nil {
			l.logger.Warn("scan.playback", "target", t.ID, "error", err)
		}
	case errors.Is(err, overlay.ErrDeferred):
		// the link overlay stays until the user closes it
	default:
		if l.logger != nil {
			l.logger.Warn("scan.activate failed", "target", t.ID, "error", err)
		}
		l.rollback()
		return
	}
	l.stats.activations.Add(1)
}

// rollback points the stabilizer back at what the overlay shows so that a
// later confirmation of the failed target retries. The overlay can change
// outside the loop (a closed link applies its parked activation), so its
// state is read rather than remembered.
func (l *Loop) rollback() {
	l.sess.Stabilizer.Restore(l.shown())
}

// shown names the target the user sees or will see once an open link is
// closed.
func (l *Loop) shown() string {
	if l.sess.Overlay == nil {
		return ""
	}
	if id, ok := l.sess.Overlay.Pending(); ok {
		return id
	}
	if id, _, ok := l.sess.Overlay.Active(); ok {
		return id
	}
	return ""
}

// Teardown invalidates in-flight work and releases every session resource.
// It runs once; later calls and calls on a partially built loop are no-ops.
func (l *Loop) Teardown() {
	if l == nil {
		return
	}
	l.teardownOnce.Do(func() {
		l.torn.Store(true)
		l.gen++
		if l.cancel != nil {
			l.cancel()
		}
		if l.sess == nil {
			return
		}
		if l.sess.Overlay != nil {
			l.sess.Overlay.Dispose()
		}
		l.sess.Registry.Clear()
		if l.sess.Fetcher != nil {
			l.sess.Fetcher.Release()
		}
		if l.sess.Analytics != nil {
			if err := l.sess.Analytics.Close(); err != nil && l.logger != nil {
				l.logger.Warn("scan.analytics close", "error", err)
			}
		}
		if l.logger != nil {
			st := l.Stats()
			l.logger.Info("scan.teardown", "session", l.sess.ID.String(), "processed", st.Processed, "switches", st.Switches)
		}
	})
}

func (l *Loop) recoverLog(where string) {
	if r := recover(); r != nil && l.logger != nil {
		l.logger.Error("panic recovered", "where", where, "panic", r, "stack", string(debug.Stack()))
	}
}
