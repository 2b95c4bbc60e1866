// Package analytics delivers scan events to a sink without ever blocking or
// failing the caller.
package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	defaultBuffer  = 64
	deliverTimeout = 5 * time.Second
)

// ScanEvent records one confirmed target switch.
type ScanEvent struct {
	ID        uuid.UUID
	SessionID uuid.UUID
	TargetID  string
	Timestamp time.Time
}

// Sink persists scan events.
type Sink interface {
	RecordScan(ctx context.Context, ev ScanEvent) error
}

// Stats counts emitter outcomes.
type Stats struct {
	Emitted   uint64
	Delivered uint64
	Dropped   uint64
	Failed    uint64
}

// Emitter queues events for a background worker. Emit never blocks; events
// are dropped when the queue is full or the emitter is closed. Sink errors
// are logged and counted only.
type Emitter struct {
	sink   Sink
	logger *slog.Logger
	ch     chan ScanEvent
	done   chan struct{}

	mu     sync.RWMutex
	closed bool

	emitted, delivered, dropped, failed atomic.Uint64
}

// NewEmitter starts an emitter. A nil sink only logs events.
func NewEmitter(sink Sink, buffer int, logger *slog.Logger) *Emitter {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	e := &Emitter{sink: sink, logger: logger, ch: make(chan ScanEvent, buffer), done: make(chan struct{})}
	go e.run()
	return e
}

// Emit queues ev. A zero ID or timestamp is filled in.
func (e *Emitter) Emit(ev ScanEvent) {
	if e == nil {
		return
	}
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		e.dropped.Add(1)
		return
	}
	select {
	case e.ch <- ev:
		e.emitted.Add(1)
	default:
		e.dropped.Add(1)
		if e.logger != nil {
			e.logger.Debug("analytics.drop", "target", ev.TargetID)
		}
	}
}

func (e *Emitter) run() {
	defer close(e.done)
	for ev := range e.ch {
		e.deliver(ev)
	}
}

func (e *Emitter) deliver(ev ScanEvent) {
	defer func() {
		if r := recover(); r != nil {
			e.failed.Add(1)
			if e.logger != nil {
				e.logger.Error("analytics.sink panic", "panic", fmt.Sprint(r))
			}
		}
	}()
	if e.sink == nil {
		if e.logger != nil {
			e.logger.Info("scan", "target", ev.TargetID, "session", ev.SessionID.String())
		}
		e.delivered.Add(1)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
	defer cancel()
	if err := e.sink.RecordScan(ctx, ev); err != nil {
		e.failed.Add(1)
		if e.logger != nil {
			e.logger.Warn("analytics.deliver", "target", ev.TargetID, "error", err)
		}
		return
	}
	e.delivered.Add(1)
}

// Close stops accepting events and waits for queued ones to be delivered.
// Safe to call more than once.
func (e *Emitter) Close() error {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		close(e.ch)
	}
	e.mu.Unlock()
	<-e.done
	return nil
}

// Stats returns a snapshot of the counters.
func (e *Emitter) Stats() Stats {
	return Stats{
		Emitted:   e.emitted.Load(),
		Delivered: e.delivered.Load(),
		Dropped:   e.dropped.Load(),
		Failed:    e.failed.Load(),
	}
}
