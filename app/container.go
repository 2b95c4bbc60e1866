package app

import (
	"log/slog"
	"net/http"

	"github.com/soocke/marker-lens-go/app/desktop"
	"github.com/soocke/marker-lens-go/app/scanner"
	"github.com/soocke/marker-lens-go/assets"
	"github.com/soocke/marker-lens-go/config"
	"github.com/soocke/marker-lens-go/domain/asset"
	"github.com/soocke/marker-lens-go/domain/capture"
	"github.com/soocke/marker-lens-go/domain/scan"
	"github.com/soocke/marker-lens-go/ui/model"
	"github.com/soocke/marker-lens-go/ui/presenter"
	"github.com/soocke/marker-lens-go/ui/view"
)

// Options carries what main resolved from flags.
type Options struct {
	ConfigPath  string
	TargetsPath string
	// Store is nil when no database could be opened.
	Store  scanner.TargetStore
	Logger *slog.Logger
}

// AppContainer assembles models, services, presenters and the root view.
type AppContainer struct {
	Config     *config.Config
	Logger     *slog.Logger
	Scan       *model.ScanModel
	Session    *model.SessionModel
	CaptureSvc capture.CaptureService
	Controller *scanner.Controller
	RootView   *view.RootView

	// Presenters
	SessionPresenter *presenter.SessionPresenter
	ScanPresenter    *presenter.ScanPresenter
	CapturePresenter *presenter.CapturePresenter
	Loop             *presenter.Loop
}

// BuildContainer constructs all components that do not need Tk. Presenters
// are attached by Wire once the root view is built.
func BuildContainer(cfg *config.Config, opts Options) *AppContainer {
	c := &AppContainer{Config: cfg, Logger: opts.Logger}
	c.Scan = &model.ScanModel{}
	c.Session = model.NewSessionModel()
	c.CaptureSvc = capture.NewCaptureService(opts.Logger, nil, 0)
	c.RootView = view.NewRootView(cfg, opts.ConfigPath, opts.Logger)
	c.CaptureSvc.SetRegion(c.RootView.Region.Region)

	src := asset.NewDefaultSource(&http.Client{Timeout: cfg.FetchTimeout()}, "")
	src[assets.Scheme] = assets.Source{}

	c.Controller = &scanner.Controller{
		Config:      cfg,
		Frames:      c.CaptureSvc,
		Source:      src,
		Store:       opts.Store,
		TargetsPath: opts.TargetsPath,
		Player:      &desktop.CommandPlayer{Command: cfg.PlayerCommand, Logger: opts.Logger},
		Animator:    view.TclAnimator{},
		Logger:      opts.Logger,
	}
	return c
}

// Wire attaches presenters to the built view. schedule re-arms the UI tick.
func (c *AppContainer) Wire(schedule func()) {
	c.Controller.Surface = c.RootView.Overlay
	c.ScanPresenter = presenter.NewScanPresenter(
		c.Scan.Enabled,
		c.Controller.Loop,
		c.CaptureSvc,
		c.Scan,
		c.Session,
		c.RootView,
		c.Logger,
	)
	c.Controller.Observe = func(o scan.Observation) { c.ScanPresenter.Observe(o) }
	c.SessionPresenter = presenter.NewSessionPresenter(c.Session, c.Scan, c.RootView)
	c.CapturePresenter = presenter.NewCapturePresenter(c.Scan, c.CaptureSvc, c.Controller, c.RootView, c.Logger)
	c.Loop = presenter.NewLoop(c.SessionPresenter, c.ScanPresenter, schedule)
}

// DebugStats samples the live scan loop for the debug logger.
func (c *AppContainer) DebugStats() (scan.Stats, capture.CaptureStats, bool) {
	st, ok := c.Controller.Stats()
	return st, c.CaptureSvc.Stats(), ok
}
