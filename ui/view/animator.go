package view

import (
	"time"

	"github.com/soocke/marker-lens-go/domain/overlay"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"
)

// TclAnimator schedules overlay animation steps on the Tk event loop.
type TclAnimator struct{}

var _ overlay.Animator = TclAnimator{}

func (TclAnimator) Start(interval time.Duration, step func(dt time.Duration)) (stop func()) {
	var (
		id      string
		stopped bool
		last    = time.Now()
		tick    func()
	)
	tick = func() {
		if stopped {
			return
		}
		now := time.Now()
		step(now.Sub(last))
		last = now
		if !stopped {
			id = TclAfter(interval, tick)
		}
	}
	id = TclAfter(interval, tick)
	return func() {
		if stopped {
			return
		}
		stopped = true
		TclAfterCancel(id)
	}
}
