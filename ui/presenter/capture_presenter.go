package presenter

import "log/slog"

// CaptureModel provides enabled state access.
type CaptureModel interface {
	Enabled() bool
	SetEnabled(bool)
}

// LifecycleContract narrows what the presenter needs from the capture layer.
type LifecycleContract interface {
	Start()
	Stop()
}

// ScanLifecycle creates and tears down scan sessions.
type ScanLifecycle interface {
	Begin() error
	End()
}

// CaptureView updates UI elements affected by toggling the scan.
type CaptureView interface {
	PreviewReset()
	ConfigEditable(bool)
	SetStateLabel(string)
}

// CapturePresenter owns presentation logic for toggling scanning on and off.
type CapturePresenter struct {
	model   CaptureModel
	service LifecycleContract
	scan    ScanLifecycle
	view    CaptureView
	logger  *slog.Logger
}

func NewCapturePresenter(model CaptureModel, service LifecycleContract, scan ScanLifecycle, view CaptureView, logger *slog.Logger) *CapturePresenter {
	return &CapturePresenter{model: model, service: service, scan: scan, view: view, logger: logger}
}

func (c *CapturePresenter) ready() bool {
	return c != nil && c.model != nil && c.service != nil && c.scan != nil && c.view != nil
}

// Enable starts a scan session and the capture service. If the session
// cannot be built nothing is started. Idempotent.
func (c *CapturePresenter) Enable() {
	if !c.ready() || c.model.Enabled() {
		return
	}
	if err := c.scan.Begin(); err != nil {
		if c.logger != nil {
			c.logger.Error("scan begin failed", "error", err)
		}
		c.view.SetStateLabel("Scan unavailable: " + err.Error())
		return
	}
	c.service.Start()
	c.model.SetEnabled(true)
	c.view.ConfigEditable(false)
	c.view.SetStateLabel("Searching…")
}

// Disable stops capture and tears the session down, resetting the preview.
// Idempotent.
func (c *CapturePresenter) Disable() {
	if !c.ready() || !c.model.Enabled() {
		return
	}
	c.service.Stop()
	c.scan.End()
	c.model.SetEnabled(false)
	c.view.PreviewReset()
	c.view.ConfigEditable(true)
	c.view.SetStateLabel("Idle")
}

// Toggle flips enabled state delegating to Enable/Disable.
func (c *CapturePresenter) Toggle() {
	if !c.ready() {
		return
	}
	if c.model.Enabled() {
		c.Disable()
		return
	}
	c.Enable()
}
