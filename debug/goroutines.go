// Package debug holds runtime loggers started when config.Debug is set.
package debug

import (
	"log/slog"
	"runtime/metrics"
	"time"
)

var goroutineMetrics = []string{
	"/sched/goroutines:goroutines",
	"/memory/classes/heap/stacks:bytes",
	"/memory/classes/os-stacks:bytes",
	"/gc/cycles/total:gc-cycles",
}

// StartGoroutineLogger logs goroutine count, stack memory and GC cycles every
// interval. Every fetch and scene load runs on its own goroutine, so a count
// that keeps climbing across scan sessions points at a leak.
func StartGoroutineLogger(interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = time.Second
	}
	samples := make([]metrics.Sample, len(goroutineMetrics))
	for i, name := range goroutineMetrics {
		samples[i].Name = name
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for range t.C {
			metrics.Read(samples)
			logger.Info("goroutine-stacks",
				slog.Uint64("goroutines", sampleUint(samples[0])),
				slog.Uint64("stack_inuse", sampleUint(samples[1])),
				slog.Uint64("stack_os", sampleUint(samples[2])),
				slog.Uint64("gc_cycles", sampleUint(samples[3])),
			)
		}
	}()
}

func sampleUint(s metrics.Sample) uint64 {
	if s.Value.Kind() != metrics.KindUint64 {
		return 0
	}
	return s.Value.Uint64()
}
