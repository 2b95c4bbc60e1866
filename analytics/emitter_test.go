package analytics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySink struct {
	mu     sync.Mutex
	events []ScanEvent
	err    error
	block  chan struct{}
}

func (s *memorySink) RecordScan(_ context.Context, ev ScanEvent) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, ev)
	return nil
}

func TestEmitter_DeliversAndFillsDefaults(t *testing.T) {
	sink := &memorySink{}
	e := NewEmitter(sink, 8, nil)
	session := uuid.New()
	e.Emit(ScanEvent{SessionID: session, TargetID: "A"})
	e.Emit(ScanEvent{SessionID: session, TargetID: "B", Timestamp: time.Unix(100, 0)})
	require.NoError(t, e.Close())

	require.Len(t, sink.events, 2)
	assert.Equal(t, "A", sink.events[0].TargetID)
	assert.NotEqual(t, uuid.Nil, sink.events[0].ID)
	assert.False(t, sink.events[0].Timestamp.IsZero())
	assert.Equal(t, time.Unix(100, 0), sink.events[1].Timestamp)
	assert.EqualValues(t, 2, e.Stats().Delivered)
}

func TestEmitter_SinkFailureIsSwallowed(t *testing.T) {
	sink := &memorySink{err: errors.New("disk full")}
	e := NewEmitter(sink, 8, nil)
	e.Emit(ScanEvent{TargetID: "A"})
	require.NoError(t, e.Close())
	assert.EqualValues(t, 1, e.Stats().Failed)
}

func TestEmitter_NeverBlocksWhenFull(t *testing.T) {
	sink := &memorySink{block: make(chan struct{})}
	e := NewEmitter(sink, 1, nil)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			e.Emit(ScanEvent{TargetID: "A"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a slow sink")
	}
	close(sink.block)
	require.NoError(t, e.Close())
	st := e.Stats()
	assert.Positive(t, st.Dropped)
	assert.EqualValues(t, 50, st.Emitted+st.Dropped)
}

func TestEmitter_EmitAfterCloseDrops(t *testing.T) {
	e := NewEmitter(nil, 1, nil)
	require.NoError(t, e.Close())
	require.NoError(t, e.Close())
	e.Emit(ScanEvent{TargetID: "late"})
	assert.EqualValues(t, 1, e.Stats().Dropped)

	var nilEmitter *Emitter
	nilEmitter.Emit(ScanEvent{})
	assert.NoError(t, nilEmitter.Close())
}
