package presenter

import (
	"time"

	"github.com/soocke/marker-lens-go/ui/model"
)

// CaptureEnabledModel reports whether scanning is enabled.
type CaptureEnabledModel interface{ Enabled() bool }

// SessionView displays formatted session durations and scan counts.
type SessionView interface {
	SetSession(session, total time.Duration)
	SetScans(switches, distinct int)
}

// SessionPresenter pushes session durations and counts from the model to
// the view.
type SessionPresenter struct {
	sess *model.SessionModel
	cap  CaptureEnabledModel
	view SessionView
}

// NewSessionPresenter returns a new SessionPresenter.
func NewSessionPresenter(sess *model.SessionModel, cap CaptureEnabledModel, view SessionView) *SessionPresenter {
	return &SessionPresenter{sess: sess, cap: cap, view: view}
}

// Tick advances the session model and updates the view.
func (p *SessionPresenter) Tick(now time.Time) {
	if p == nil || p.sess == nil || p.cap == nil || p.view == nil {
		return
	}
	p.sess.OnTick(p.cap.Enabled(), now)
	s, t := p.sess.Values()
	p.view.SetSession(s, t)
	p.view.SetScans(p.sess.Scans())
}
