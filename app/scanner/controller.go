package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/soocke/marker-lens-go/analytics"
	"github.com/soocke/marker-lens-go/assets"
	"github.com/soocke/marker-lens-go/config"
	"github.com/soocke/marker-lens-go/domain/asset"
	"github.com/soocke/marker-lens-go/domain/capture"
	"github.com/soocke/marker-lens-go/domain/overlay"
	"github.com/soocke/marker-lens-go/domain/scan"
	"github.com/soocke/marker-lens-go/domain/vision"
	"github.com/soocke/marker-lens-go/store"
	"github.com/soocke/marker-lens-go/ui/presenter"
)

// ErrNoTargets is returned by Begin when no target could be registered.
var ErrNoTargets = errors.New("no usable targets")

// TargetStore provides the persisted target table and records scans.
type TargetStore interface {
	Targets(ctx context.Context) ([]store.TargetRecord, error)
	analytics.Sink
}

// Controller builds a fresh scan session whenever scanning is enabled
// and tears it down when scanning stops. Begin, End and CloseLink run on
// the UI thread; Stats may be called from any goroutine.
type Controller struct {
	Config *config.Config
	Frames capture.FrameSource
	Source asset.Source
	// Store is optional. Without it targets come from TargetsPath or the
	// bundled samples and scans are only logged.
	Store       TargetStore
	TargetsPath string
	Surface     overlay.Surface
	Player      overlay.Player
	Animator    overlay.Animator
	Observe     func(scan.Observation)
	Logger      *slog.Logger

	loop    atomic.Pointer[scan.Loop]
	manager *overlay.Manager
}

var _ presenter.ScanLifecycle = (*Controller)(nil)

func engineOptions(cfg *config.Config) vision.ORBOptions {
	return vision.ORBOptions{
		FastThreshold: cfg.FastThreshold,
		ClipLimit:     cfg.ClaheClipLimit,
		Tiles:         cfg.ClaheTiles,
	}
}

// Begin loads the targets and starts a session. Calling Begin while a
// session is live is a no-op.
func (c *Controller) Begin() error {
	if c.loop.Load() != nil {
		return nil
	}
	cfg := c.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.FetchTimeout())
	defer cancel()

	records, origin, err := c.targets(ctx)
	if err != nil {
		return err
	}
	fetcher, err := asset.NewFetcher(c.Source, cfg, c.Logger)
	if err != nil {
		return err
	}
	mgr := overlay.NewManager(overlay.Collaborators{
		Surface:  c.Surface,
		Player:   c.Player,
		Animator: c.Animator,
	}, cfg, c.Logger)
	var sink analytics.Sink
	if c.Store != nil {
		sink = c.Store
	}
	sess := scan.NewSession(cfg, newEngine(cfg), fetcher, mgr, analytics.NewEmitter(sink, 0, c.Logger), c.Logger)
	loop := scan.NewLoop(sess, c.Frames, cfg, c.Logger)
	loop.OnObservation = c.Observe

	n, err := loop.Start(ctx, c.Source, records)
	if err == nil && n == 0 {
		err = ErrNoTargets
	}
	if err != nil {
		loop.Teardown()
		return err
	}
	c.manager = mgr
	c.loop.Store(loop)
	if c.Logger != nil {
		c.Logger.Info("scan.begin", "session", sess.ID.String(), "targets", n, "records", len(records), "origin", origin)
	}
	return nil
}

func (c *Controller) targets(ctx context.Context) ([]store.TargetRecord, string, error) {
	if c.Store != nil {
		recs, err := c.Store.Targets(ctx)
		if err != nil {
			return nil, "", fmt.Errorf("load targets: %w", err)
		}
		if len(recs) > 0 {
			return recs, "database", nil
		}
	}
	if c.TargetsPath != "" {
		recs, err := store.LoadTargetsJSON(c.TargetsPath)
		if err != nil {
			return nil, "", err
		}
		return recs, c.TargetsPath, nil
	}
	recs, err := assets.SampleTargets()
	return recs, assets.Scheme, err
}

// End tears the live session down. Idempotent.
func (c *Controller) End() {
	loop := c.loop.Swap(nil)
	c.manager = nil
	if loop == nil {
		return
	}
	loop.Teardown()
	if c.Logger != nil {
		st := loop.Stats()
		c.Logger.Info("scan.end",
			"processed", st.Processed,
			"detections", st.Detections,
			"switches", st.Switches,
			"activations", st.Activations,
			"fetch_failures", st.FetchFailures,
		)
	}
}

// Loop returns the live loop or nil.
func (c *Controller) Loop() presenter.ScanLoop {
	if l := c.loop.Load(); l != nil {
		return l
	}
	return nil
}

// Stats reports the live loop's counters.
func (c *Controller) Stats() (scan.Stats, bool) {
	l := c.loop.Load()
	if l == nil {
		return scan.Stats{}, false
	}
	return l.Stats(), true
}

// CloseLink closes an open link overlay, applying any activation parked
// behind it.
func (c *Controller) CloseLink() {
	if c.manager == nil {
		return
	}
	if err := c.manager.CloseLink(); err != nil && c.Logger != nil {
		c.Logger.Warn("overlay.close link", "error", err)
	}
}
