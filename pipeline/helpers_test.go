package pipeline

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/c360studio/semdigest/record"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type staticSource struct {
	records []*record.Record
	err     error
}

func (s *staticSource) Fetch(context.Context) ([]*record.Record, error) {
	return s.records, s.err
}

func newRecords(n int) []*record.Record {
	recs := make([]*record.Record, n)
	for i := range recs {
		recs[i] = &record.Record{ID: int64(i + 1), Title: "story " + string(rune('A'+i))}
	}
	return recs
}

// markerStage appends its marker to the record summary.
func markerStage(marker string) Stage {
	return StageFunc(func(_ context.Context, rec *record.Record) (*record.Record, error) {
		rec.Summary += marker
		return rec, nil
	})
}

type recordingSink struct {
	mu       sync.Mutex
	payloads []string
	metas    []Metadata
	fail     bool
}

func (s *recordingSink) Deliver(_ context.Context, payload string, meta Metadata) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads = append(s.payloads, payload)
	s.metas = append(s.metas, meta)
	return !s.fail
}

type titleRenderer struct {
	err error
}

func (r titleRenderer) Render(d *Digest) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	out := ""
	for _, a := range d.Articles {
		out += a.Title + ";"
	}
	return out, nil
}

type memoryIndex struct {
	mu   sync.Mutex
	docs map[int64]*record.Record
	err  error
}

func (m *memoryIndex) Persist(_ context.Context, rec *record.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.docs == nil {
		m.docs = make(map[int64]*record.Record)
	}
	m.docs[rec.ID] = rec
	return nil
}

type eventLog struct {
	mu     sync.Mutex
	events []ProgressEvent
}

func (l *eventLog) Report(ev ProgressEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) completedCounts(batch string) []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	var counts []int
	for _, ev := range l.events {
		if ev.Batch == batch {
			counts = append(counts, ev.Completed)
		}
	}
	return counts
}

type closer struct {
	closed *[]string
	name   string
}

func (c closer) Close() error {
	*c.closed = append(*c.closed, c.name)
	return nil
}

func (c closer) Fetch(context.Context) ([]*record.Record, error) { return nil, nil }

func (c closer) Transform(_ context.Context, rec *record.Record) (*record.Record, error) {
	return rec, nil
}
