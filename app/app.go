package app

import (
	"fmt"
	"time"

	"github.com/soocke/marker-lens-go/app/desktop"
	"github.com/soocke/marker-lens-go/config"
	"github.com/soocke/marker-lens-go/debug"
	"github.com/soocke/marker-lens-go/ui/view"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"
)

const (
	tick          = 33 * time.Millisecond
	debugInterval = 5 * time.Second
)

type app struct {
	title   string
	width   int
	height  int
	c       *AppContainer
	afterID string
	exiting bool
}

// NewApp prepares the main window. Nothing is shown until Start.
func NewApp(title string, width, height int, cfg *config.Config, opts Options) *app {
	a := &app{title: title, width: width, height: height}
	a.c = BuildContainer(cfg, opts)

	App.WmTitle(title)
	WmProtocol(App, "WM_DELETE_WINDOW", a.exitHandler)
	WmGeometry(App, fmt.Sprintf("%dx%d+100+100", width, height))
	return a
}

// Start builds the UI, starts the update loop and blocks in the Tk event
// loop until the window is closed.
func (a *app) Start() {
	c := a.c
	c.RootView.Build(view.Handlers{
		ToggleScan: func() { c.CapturePresenter.Toggle() },
		CloseLink:  c.Controller.CloseLink,
		Exit:       a.exitHandler,
		OpenPage:   desktop.OpenURL,
	})
	c.Wire(a.scheduleUpdate)

	if c.Config.Debug && c.Logger != nil {
		debug.StartGoroutineLogger(debugInterval, c.Logger)
		debug.StartMemLogger(debugInterval, c.Logger)
		debug.StartScanLogger(debugInterval, c.Logger, c.DebugStats)
	}

	a.scheduleUpdate()
	App.Wait()
}

func (a *app) update() {
	if a.exiting {
		return
	}
	a.c.Loop.Tick()
}

func (a *app) exitHandler() {
	if a.exiting {
		return
	}
	a.exiting = true
	if a.afterID != "" {
		TclAfterCancel(a.afterID)
	}
	if a.c.CapturePresenter != nil {
		a.c.CapturePresenter.Disable()
	}
	a.c.Controller.End()
	a.c.CaptureSvc.Stop()
	Destroy(App)
}

func (a *app) scheduleUpdate() {
	if a.exiting {
		return
	}
	a.afterID = TclAfter(tick, a.update)
}
