// Package tracking turns noisy per-frame recognition results into stable
// active-target decisions.
package tracking

import "github.com/soocke/marker-lens-go/domain/recognition"

// SwitchEvent announces a newly confirmed active target.
type SwitchEvent struct {
	TargetID string
	// Previous is the target that was active before the switch, empty if none.
	Previous string
}

// Stabilizer is a hysteresis state machine. A target becomes active only
// after threshold consecutive detections of it; a frame without detection
// resets the pending count but never deactivates the current target.
//
// Not safe for concurrent use.
type Stabilizer struct {
	threshold int
	activeID  string
	potential string
	count     int
}

// NewStabilizer returns a stabilizer confirming after threshold consecutive
// frames. Thresholds below 1 are treated as 1.
func NewStabilizer(threshold int) *Stabilizer {
	if threshold < 1 {
		threshold = 1
	}
	return &Stabilizer{threshold: threshold}
}

// Evaluate feeds one frame result and reports a switch when a new target has
// been confirmed.
func (s *Stabilizer) Evaluate(r recognition.RecognitionResult) (SwitchEvent, bool) {
	if !r.Detected || r.TargetID == "" {
		s.potential, s.count = "", 0
		return SwitchEvent{}, false
	}
	if r.TargetID == s.activeID {
		s.potential, s.count = "", 0
		return SwitchEvent{}, false
	}
	if r.TargetID == s.potential {
		s.count++
	} else {
		s.potential, s.count = r.TargetID, 1
	}
	if s.count < s.threshold {
		return SwitchEvent{}, false
	}
	ev := SwitchEvent{TargetID: r.TargetID, Previous: s.activeID}
	s.activeID = r.TargetID
	s.potential, s.count = "", 0
	return ev, true
}

// Active returns the confirmed active target.
func (s *Stabilizer) Active() (string, bool) {
	return s.activeID, s.activeID != ""
}

// Pending returns the candidate target and its consecutive count.
func (s *Stabilizer) Pending() (string, int) {
	return s.potential, s.count
}

// Restore sets the active target without emitting an event. The scan loop
// uses it to roll back a switch whose activation failed, so that a later
// confirmation of the same target retries.
func (s *Stabilizer) Restore(activeID string) {
	s.activeID = activeID
	s.potential, s.count = "", 0
}

// Reset returns the stabilizer to its initial state.
func (s *Stabilizer) Reset() {
	s.activeID, s.potential, s.count = "", "", 0
}
