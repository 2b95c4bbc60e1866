package capture

import (
	"image"
	"log/slog"
	"sync/atomic"
	"time"
)

const (
	captureStatsLogInterval = 5 * time.Second
	defaultFrameInterval    = 33 * time.Millisecond
)

// CaptureService acquires screen frames (region or full screen) on its own
// goroutine and exposes the latest one to the scan loop. Use
// NewCaptureService to construct an instance.
type CaptureService interface {
	FrameSource
	Start()
	Stop()
	SetRegion(RegionFunc)
	Stats() CaptureStats
}

type captureService struct {
	running  atomic.Bool
	latest   atomic.Pointer[FrameSnapshot]
	region   atomic.Pointer[RegionFunc]
	grabber  Grabber
	interval time.Duration
	logger   *slog.Logger
	// stop is closed by Stop; done is closed when the loop has exited.
	stop chan struct{}
	done chan struct{}

	captures     atomic.Uint64
	failures     atomic.Uint64
	captureNanos atomic.Uint64
	sequence     atomic.Uint64
}

// NewCaptureService returns a stopped service reading from grabber every
// interval. A nil grabber uses Screen; a non-positive interval defaults to
// roughly 30 frames per second.
func NewCaptureService(logger *slog.Logger, grabber Grabber, interval time.Duration) CaptureService {
	if grabber == nil {
		grabber = Screen
	}
	if interval <= 0 {
		interval = defaultFrameInterval
	}
	return &captureService{grabber: grabber, interval: interval, logger: logger}
}

func (s *captureService) SetRegion(fn RegionFunc) {
	if fn == nil {
		s.region.Store(nil)
		return
	}
	s.region.Store(&fn)
}

func (s *captureService) LatestFrame() FrameSnapshot {
	snap := s.latest.Load()
	if snap == nil {
		return FrameSnapshot{}
	}
	return *snap
}

func (s *captureService) Running() bool { return s.running.Load() }

func (s *captureService) Stats() CaptureStats {
	captures := s.captures.Load()
	var avg time.Duration
	if captures > 0 {
		avg = time.Duration(s.captureNanos.Load() / captures)
	}
	snapshot := s.LatestFrame()
	var age time.Duration
	if !snapshot.CapturedAt.IsZero() {
		age = time.Since(snapshot.CapturedAt)
	}
	return CaptureStats{
		Captures:       captures,
		Failures:       s.failures.Load(),
		AvgCapture:     avg,
		LastCapture:    snapshot.CapturedAt,
		LatestFrameAge: age,
		Sequence:       snapshot.Sequence,
	}
}

func (s *captureService) Start() {
	if !s.running.CompareAndSwap(false, true) {
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop(s.stop, s.done)
}

func (s *captureService) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	close(s.stop)
	<-s.done
	// drop the last frame so a restarted scan never sees a stale image
	s.latest.Store(nil)
}

func (s *captureService) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	frameTicker := time.NewTicker(s.interval)
	defer frameTicker.Stop()
	logTicker := time.NewTicker(captureStatsLogInterval)
	defer logTicker.Stop()
	for {
		s.captureOnce()
		select {
		case <-stop:
			return
		case <-logTicker.C:
			s.logStats()
		case <-frameTicker.C:
		}
	}
}

func (s *captureService) captureOnce() {
	var region image.Rectangle
	if fn := s.region.Load(); fn != nil {
		if r := (*fn)(); r != nil {
			region = *r
		}
	}
	start := time.Now()
	img, err := s.grabber.Grab(region)
	if err != nil || img == nil {
		s.failures.Add(1)
		if err != nil && s.logger != nil {
			s.logger.Error("capture.grab", "region", region.String(), "error", err)
		}
		return
	}
	s.captureNanos.Add(uint64(time.Since(start).Nanoseconds()))
	s.captures.Add(1)
	seq := s.sequence.Add(1)
	s.latest.Store(&FrameSnapshot{Image: img, CapturedAt: time.Now(), Sequence: seq})
}

func (s *captureService) logStats() {
	if s.logger == nil {
		return
	}
	stats := s.Stats()
	s.logger.Debug("capture.stats",
		"captures", stats.Captures,
		"failures", stats.Failures,
		"avg_capture", stats.AvgCapture,
		"age", stats.LatestFrameAge,
	)
}
