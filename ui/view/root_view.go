package view

import (
	"image"
	"log/slog"
	"time"

	"github.com/soocke/marker-lens-go/config"
	"github.com/soocke/marker-lens-go/domain/vision"
	"github.com/soocke/marker-lens-go/ui/theme"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"
)

// RootView composes the top-level application layout and wires UI callbacks.
// It owns high-level subviews but exposes minimal exported fields for presenters.
type RootView struct {
	cfg     *config.Config
	cfgPath string
	logger  *slog.Logger

	// Subviews
	Stats       SessionStats
	ConfigPanel ConfigPanel
	CapturePrev CapturePreview
	Overlay     *OverlaySurface
	Region      *RegionSelector

	StateLabel *TLabelWidget
}

// Handlers are the user actions the root view exposes.
type Handlers struct {
	ToggleScan func()
	CloseLink  func()
	Exit       func()
	// OpenPage opens link overlays outside the window.
	OpenPage func(url string) error
}

func NewRootView(cfg *config.Config, cfgPath string, logger *slog.Logger) *RootView {
	return &RootView{cfg: cfg, cfgPath: cfgPath, logger: logger, Region: NewRegionSelector(cfg, cfgPath, logger)}
}

// Build constructs the layout.
func (rv *RootView) Build(h Handlers) {
	if rv == nil {
		return
	}
	theme.InitStyles()

	statsFrame := Frame()
	Grid(statsFrame, Row(0), Column(0), Columnspan(4), Sticky("w"), Padx("0.3m"), Pady("0.3m"))
	rv.Stats = NewSessionStats(statsFrame, 0, 0)
	rv.StateLabel = TLabel(Txt("Idle"), Style(theme.StyleStateLabel))
	Grid(rv.StateLabel, In(statsFrame), Row(1), Column(0), Columnspan(4), Sticky("we"), Padx("0.2m"), Pady("0.3m"))

	btnFrame := Frame()
	Grid(btnFrame, Row(0), Column(4), Sticky("ne"), Padx("0.3m"), Pady("0.3m"))
	buttons := []*TButtonWidget{
		TButton(Txt("Toggle Scan"), Style(theme.StylePrimaryButton), Command(h.ToggleScan)),
		TButton(Txt("Scan Region"), Command(rv.Region.OpenOrFocus)),
		TButton(Txt("Close Link"), Command(h.CloseLink)),
		TButton(Txt("Exit"), Style(theme.StyleDangerButton), Command(h.Exit)),
	}
	for i, b := range buttons {
		Grid(b, In(btnFrame), Row(i), Column(0), Sticky("we"), Padx("0.2m"), Pady("0.2m"))
	}

	rv.ConfigPanel = NewConfigPanel(rv.cfg, rv.cfgPath, rv.logger)
	row := rv.ConfigPanel.Build(1)
	rv.CapturePrev = NewCapturePreview(row)
	rv.Overlay = NewOverlaySurface(row+1, h.OpenPage, rv.logger)
}

// SetStateLabel updates the state label text.
func (rv *RootView) SetStateLabel(text string) {
	if rv != nil && rv.StateLabel != nil {
		rv.StateLabel.Configure(Txt(text))
	}
}

// ConfigEditable toggles config panel editability.
func (rv *RootView) ConfigEditable(enabled bool) {
	if rv != nil && rv.ConfigPanel != nil {
		rv.ConfigPanel.SetEditable(enabled)
	}
}

// UpdateCapture proxies to the capture preview.
func (rv *RootView) UpdateCapture(img image.Image, outline *[4]vision.Point) {
	if rv != nil && rv.CapturePrev != nil {
		rv.CapturePrev.UpdateCapture(img, outline)
	}
}

// PreviewReset clears the capture preview.
func (rv *RootView) PreviewReset() {
	if rv != nil && rv.CapturePrev != nil {
		rv.CapturePrev.Reset()
	}
}

func (rv *RootView) SetSession(session, total time.Duration) {
	if rv != nil && rv.Stats != nil {
		rv.Stats.SetSession(session, total)
	}
}

func (rv *RootView) SetScans(switches, distinct int) {
	if rv != nil && rv.Stats != nil {
		rv.Stats.SetScans(switches, distinct)
	}
}

func (rv *RootView) SetLoopStats(processed, detections uint64, last time.Duration) {
	if rv != nil && rv.Stats != nil {
		rv.Stats.SetLoopStats(processed, detections, last)
	}
}
