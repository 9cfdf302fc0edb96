package pipeline

import (
	"context"
	"log/slog"
)

// ProgressEvent is emitted once per finished unit, successful or not.
// Completed runs 1..Total within a batch.
type ProgressEvent struct {
	Batch     string
	Completed int
	Total     int
	Label     string
	Failed    bool
}

// Reporter receives progress events. The orchestrator calls Report from a
// single goroutine per batch, so implementations need no locking for that.
type Reporter interface {
	Report(ev ProgressEvent)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(ev ProgressEvent)

// Report calls f.
func (f ReporterFunc) Report(ev ProgressEvent) { f(ev) }

type nopReporter struct{}

func (nopReporter) Report(ProgressEvent) {}

// LogReporter logs each event at debug level and the last one at info.
func LogReporter(logger *slog.Logger) Reporter {
	return ReporterFunc(func(ev ProgressEvent) {
		level := slog.LevelDebug
		if ev.Completed == ev.Total {
			level = slog.LevelInfo
		}
		logger.Log(context.Background(), level, "Progress",
			"batch", ev.Batch,
			"completed", ev.Completed,
			"total", ev.Total,
			"item", ev.Label,
			"failed", ev.Failed)
	})
}
