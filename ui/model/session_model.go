package model

import (
	"time"
)

// SessionModel tracks the current scan session duration, the accumulated
// active time and how many marker switches were confirmed. Presenters poll
// Values and Scans and push them to the view. The zero value is ready to use.
type SessionModel struct {
	active      bool
	start       time.Time
	current     time.Duration
	accumulated time.Duration

	scans   int
	targets map[string]struct{}
}

// NewSessionModel returns a pointer to a ready-to-use SessionModel.
func NewSessionModel() *SessionModel { return &SessionModel{} }

// OnTick advances the model using the current scan state and timestamp.
func (m *SessionModel) OnTick(scanning bool, now time.Time) {
	if m == nil {
		return
	}
	switch {
	case scanning && !m.active:
		m.active, m.start, m.current = true, now, 0
		m.scans, m.targets = 0, nil
	case scanning:
		m.current = now.Sub(m.start)
	case m.active:
		m.current = now.Sub(m.start)
		m.accumulated += m.current
		m.active = false
	}
}

// RecordScan counts one confirmed switch to targetID in the current session.
func (m *SessionModel) RecordScan(targetID string) {
	if m == nil || targetID == "" {
		return
	}
	if m.targets == nil {
		m.targets = make(map[string]struct{})
	}
	m.scans++
	m.targets[targetID] = struct{}{}
}

// Values returns the current session duration and the total accumulated
// duration, including the ongoing session.
func (m *SessionModel) Values() (session, total time.Duration) {
	if m == nil {
		return 0, 0
	}
	session, total = m.current, m.accumulated
	if m.active {
		total += session
	}
	return
}

// Scans returns the switch count and the number of distinct targets seen in
// the current (or last) session.
func (m *SessionModel) Scans() (switches, distinct int) {
	if m == nil {
		return 0, 0
	}
	return m.scans, len(m.targets)
}
