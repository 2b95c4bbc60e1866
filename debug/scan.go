package debug

import (
	"log/slog"
	"time"

	"github.com/soocke/marker-lens-go/domain/capture"
	"github.com/soocke/marker-lens-go/domain/scan"
)

// ScanSampler returns the live loop counters, the capture counters and
// whether a session is running.
type ScanSampler func() (scan.Stats, capture.CaptureStats, bool)

// StartScanLogger periodically logs pipeline counters. Intervals without a
// running session are skipped.
func StartScanLogger(interval time.Duration, logger *slog.Logger, sample ScanSampler) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for range t.C {
			st, cs, ok := sample()
			if !ok {
				continue
			}
			logger.Info("scan-stats",
				slog.Uint64("processed", st.Processed),
				slog.Uint64("detections", st.Detections),
				slog.Uint64("idle", st.Idle),
				slog.Uint64("switches", st.Switches),
				slog.Uint64("guarded", st.Guarded),
				slog.Uint64("activations", st.Activations),
				slog.Uint64("fetch_failures", st.FetchFailures),
				slog.Uint64("stale", st.Stale),
				slog.Duration("last_match", st.LastDuration),
				slog.Uint64("captures", cs.Captures),
				slog.Duration("avg_capture", cs.AvgCapture),
				slog.Duration("frame_age", cs.LatestFrameAge),
			)
		}
	}()
}
