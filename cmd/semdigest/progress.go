package main

import (
	"io"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/progress"

	"github.com/c360studio/semdigest/pipeline"
)

// barReporter draws one progress tracker per orchestrator batch.
type barReporter struct {
	mu       sync.Mutex
	pw       progress.Writer
	trackers map[string]*progress.Tracker
}

func newBarReporter(w io.Writer) *barReporter {
	pw := progress.NewWriter()
	pw.SetOutputWriter(w)
	pw.SetAutoStop(false)
	pw.SetTrackerLength(30)
	pw.SetUpdateFrequency(100 * time.Millisecond)
	pw.SetStyle(progress.StyleDefault)
	pw.Style().Visibility.ETA = true
	pw.Style().Visibility.Percentage = true
	go pw.Render()

	return &barReporter{pw: pw, trackers: make(map[string]*progress.Tracker)}
}

// Report implements pipeline.Reporter.
func (b *barReporter) Report(ev pipeline.ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tracker, ok := b.trackers[ev.Batch]
	if !ok {
		tracker = &progress.Tracker{Message: ev.Batch, Total: int64(ev.Total), Units: progress.UnitsDefault}
		b.pw.AppendTracker(tracker)
		b.trackers[ev.Batch] = tracker
	}

	if ev.Failed {
		tracker.IncrementWithError(1)
	} else {
		tracker.Increment(1)
	}
	if ev.Completed >= ev.Total {
		tracker.MarkAsDone()
	}
}

// Stop renders the final state and stops the writer.
func (b *barReporter) Stop() {
	b.mu.Lock()
	for _, t := range b.trackers {
		if !t.IsDone() {
			t.MarkAsDone()
		}
	}
	b.mu.Unlock()

	// Let the renderer draw completed trackers before stopping.
	time.Sleep(150 * time.Millisecond)
	b.pw.Stop()
	for b.pw.IsRenderInProgress() {
		time.Sleep(10 * time.Millisecond)
	}
}
