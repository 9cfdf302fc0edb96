package pipeline

import (
	"errors"
	"testing"
	"time"

	"github.com/c360studio/semdigest/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = func() time.Time { return time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC) }

func testPipeline(src Source, stages Chain, renderer Renderer, sink Sink) *Pipeline {
	return &Pipeline{
		Source:       src,
		Stages:       stages,
		Renderer:     renderer,
		Sink:         sink,
		SourceName:   "static",
		RendererName: "titles",
		SinkName:     "recording",
	}
}

func TestRunner_StaticPassthroughScenario(t *testing.T) {
	events := &eventLog{}
	sink := &recordingSink{}
	idx := &memoryIndex{}
	p := testPipeline(&staticSource{records: newRecords(3)}, Chain{markerStage("")}, titleRenderer{}, sink)

	report, err := NewRunner(p,
		WithRunWorkers(2),
		WithIndex(idx),
		WithRunReporter(events),
		WithRunLogger(discardLogger()),
		WithClock(fixedNow),
	).Run(t.Context())
	require.NoError(t, err)

	assert.Equal(t, 3, report.Fetched)
	assert.Equal(t, 3, report.Processed)
	assert.Zero(t, report.Failed)
	assert.Equal(t, []int{1, 2, 3}, events.completedCounts("processing"))

	assert.Equal(t, "story A;story B;story C;", report.Payload)
	assert.Equal(t, 3, report.Persisted)
	assert.Len(t, idx.docs, 3)

	assert.Equal(t, 3, report.Delivered)
	require.Len(t, sink.payloads, 3)
	for _, payload := range sink.payloads {
		assert.Equal(t, report.Payload, payload)
	}
	for _, meta := range sink.metas {
		assert.Equal(t, report.RunID, meta.RunID)
		assert.Equal(t, 3, meta.Articles)
	}
}

func TestRunner_DigestFollowsSourceOrder(t *testing.T) {
	recs := newRecords(4)
	recs[0].ID, recs[3].ID = 40, 1
	sink := &recordingSink{}
	p := testPipeline(&staticSource{records: recs}, nil, titleRenderer{}, sink)

	report, err := NewRunner(p, WithRunWorkers(4), WithDelivery(config.DeliveryOnce), WithRunLogger(discardLogger())).Run(t.Context())
	require.NoError(t, err)

	assert.Equal(t, "story A;story B;story C;story D;", report.Payload)
	assert.Equal(t, 1, report.Delivered)
	require.Len(t, sink.metas, 1)
	assert.Zero(t, sink.metas[0].ID)
}

func TestRunner_PartialFailure(t *testing.T) {
	sink := &recordingSink{}
	p := testPipeline(&staticSource{records: newRecords(5)}, Chain{failingOn(3)}, titleRenderer{}, sink)

	report, err := NewRunner(p, WithRunWorkers(3), WithRunLogger(discardLogger())).Run(t.Context())
	require.NoError(t, err)

	assert.Equal(t, 4, report.Processed)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, "story A;story B;story D;story E;", report.Payload)
	assert.Equal(t, 4, report.Delivered)
}

func TestRunner_SourceErrorContinues(t *testing.T) {
	p := testPipeline(&staticSource{records: newRecords(1), err: errors.New("partial listing")}, nil, titleRenderer{}, &recordingSink{})

	report, err := NewRunner(p, WithRunLogger(discardLogger())).Run(t.Context())
	require.NoError(t, err)

	assert.EqualError(t, report.SourceError, "partial listing")
	assert.Equal(t, 1, report.Processed)
}

func TestRunner_EmptyBatch(t *testing.T) {
	sink := &recordingSink{}
	p := testPipeline(&staticSource{}, nil, titleRenderer{}, sink)

	report, err := NewRunner(p, WithRunLogger(discardLogger())).Run(t.Context())
	require.NoError(t, err)

	assert.Zero(t, report.Processed)
	assert.Empty(t, report.Payload)
	assert.Empty(t, sink.payloads, "per-record delivery sends nothing for an empty batch")
}

func TestRunner_RenderErrorSkipsDelivery(t *testing.T) {
	sink := &recordingSink{}
	idx := &memoryIndex{}
	p := testPipeline(&staticSource{records: newRecords(2)}, nil, titleRenderer{err: errors.New("bad template")}, sink)

	report, err := NewRunner(p, WithIndex(idx), WithRunLogger(discardLogger())).Run(t.Context())
	require.NoError(t, err)

	assert.EqualError(t, report.RenderError, "bad template")
	assert.Empty(t, sink.payloads)
	assert.Equal(t, 2, report.Persisted, "records are indexed even when rendering fails")
}

func TestRunner_DeliveryAndPersistFailuresCounted(t *testing.T) {
	sink := &recordingSink{fail: true}
	idx := &memoryIndex{err: errors.New("bucket gone")}
	p := testPipeline(&staticSource{records: newRecords(3)}, nil, titleRenderer{}, sink)

	report, err := NewRunner(p, WithIndex(idx), WithRunLogger(discardLogger())).Run(t.Context())
	require.NoError(t, err)

	assert.Equal(t, 3, report.Processed)
	assert.Equal(t, 3, report.PersistFailures)
	assert.Equal(t, 3, report.DeliveryFailures)
	assert.Len(t, sink.payloads, 3, "delivery is attempted even when persistence fails")
}

func TestRunner_InvalidWorkers(t *testing.T) {
	p := testPipeline(&staticSource{}, nil, titleRenderer{}, &recordingSink{})

	_, err := NewRunner(p, WithRunWorkers(0)).Run(t.Context())
	assert.ErrorContains(t, err, "worker count")
}
