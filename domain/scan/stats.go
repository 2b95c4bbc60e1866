package scan

import (
	"sync/atomic"
	"time"
)

type loopStats struct {
	processed     atomic.Uint64
	detections    atomic.Uint64
	throttled     atomic.Uint64
	idle          atomic.Uint64
	frameErrors   atomic.Uint64
	switches      atomic.Uint64
	guarded       atomic.Uint64
	activations   atomic.Uint64
	fetchFailures atomic.Uint64
	stale         atomic.Uint64
	lastDuration  atomic.Int64
}

// Stats summarises loop behaviour for instrumentation. Counters may be read
// from any goroutine.
type Stats struct {
	Processed     uint64
	Detections    uint64
	Throttled     uint64
	Idle          uint64
	FrameErrors   uint64
	Switches      uint64
	Guarded       uint64
	Activations   uint64
	FetchFailures uint64
	Stale         uint64
	LastDuration  time.Duration
}

// Stats returns a snapshot of the loop counters.
func (l *Loop) Stats() Stats {
	if l == nil {
		return Stats{}
	}
	return Stats{
		Processed:     l.stats.processed.Load(),
		Detections:    l.stats.detections.Load(),
		Throttled:     l.stats.throttled.Load(),
		Idle:          l.stats.idle.Load(),
		FrameErrors:   l.stats.frameErrors.Load(),
		Switches:      l.stats.switches.Load(),
		Guarded:       l.stats.guarded.Load(),
		Activations:   l.stats.activations.Load(),
		FetchFailures: l.stats.fetchFailures.Load(),
		Stale:         l.stats.stale.Load(),
		LastDuration:  time.Duration(l.stats.lastDuration.Load()),
	}
}
