package view

import (
	"fmt"
	"time"

	//lint:ignore ST1001 Dot import for concise Tk widget DSL.
	. "modernc.org/tk9.0"
)

// SessionStats shows session durations, scan counts and loop timing.
type SessionStats interface {
	SetSession(session, total time.Duration)
	SetScans(switches, distinct int)
	SetLoopStats(processed, detections uint64, last time.Duration)
}

type sessionStats struct {
	sessionLbl *LabelWidget
	totalLbl   *LabelWidget
	scansLbl   *LabelWidget
	loopLbl    *LabelWidget
}

// NewSessionStats grids the stat labels inside parent at row, starting at
// startCol.
func NewSessionStats(parent *FrameWidget, row, startCol int) SessionStats {
	s := &sessionStats{
		sessionLbl: Label(Width(14), Txt("Session: 00:00")),
		totalLbl:   Label(Width(14), Txt("Total: 00:00")),
		scansLbl:   Label(Width(20), Txt("Scans: 0 (0 targets)")),
		loopLbl:    Label(Width(30), Txt("Frames: 0")),
	}
	for i, lbl := range []*LabelWidget{s.sessionLbl, s.totalLbl, s.scansLbl, s.loopLbl} {
		Grid(lbl, In(parent), Row(row), Column(startCol+i), Sticky("w"), Padx("0.2m"))
	}
	return s
}

func clock(d time.Duration) string {
	seconds := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

func (s *sessionStats) SetSession(session, total time.Duration) {
	if s == nil {
		return
	}
	s.sessionLbl.Configure(Txt("Session: " + clock(session)))
	s.totalLbl.Configure(Txt("Total: " + clock(total)))
}

func (s *sessionStats) SetScans(switches, distinct int) {
	if s == nil {
		return
	}
	s.scansLbl.Configure(Txt(fmt.Sprintf("Scans: %d (%d targets)", switches, distinct)))
}

func (s *sessionStats) SetLoopStats(processed, detections uint64, last time.Duration) {
	if s == nil {
		return
	}
	s.loopLbl.Configure(Txt(fmt.Sprintf("Frames: %d  hits: %d  %dms", processed, detections, last.Milliseconds())))
}
