package model

import (
	"sync/atomic"

	"github.com/soocke/marker-lens-go/domain/scan"
)

// ScanModel tracks whether scanning is enabled and the most recent
// observation. The zero value is disabled and usable. Enabled is atomic
// because UI callbacks and presenter ticks may race; the observation is only
// touched on the UI thread.
type ScanModel struct {
	enabled atomic.Bool
	last    scan.Observation
	fresh   bool
}

// Enabled reports whether scanning is currently enabled.
func (m *ScanModel) Enabled() bool {
	if m == nil {
		return false
	}
	return m.enabled.Load()
}

// SetEnabled stores the enabled flag. Disabling forgets the last observation.
func (m *ScanModel) SetEnabled(b bool) {
	if m == nil {
		return
	}
	if m.enabled.Swap(b) && !b {
		m.last, m.fresh = scan.Observation{}, false
	}
}

// Observe records a processed frame.
func (m *ScanModel) Observe(o scan.Observation) {
	if m == nil {
		return
	}
	m.last, m.fresh = o, true
}

// TakeObservation returns the observation recorded since the previous call,
// if any.
func (m *ScanModel) TakeObservation() (scan.Observation, bool) {
	if m == nil || !m.fresh {
		return scan.Observation{}, false
	}
	m.fresh = false
	return m.last, true
}

// Last returns the most recent observation regardless of freshness.
func (m *ScanModel) Last() scan.Observation {
	if m == nil {
		return scan.Observation{}
	}
	return m.last
}
