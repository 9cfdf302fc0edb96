package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/c360studio/semdigest/record"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failingOn(id int64) Stage {
	return StageFunc(func(_ context.Context, rec *record.Record) (*record.Record, error) {
		if rec.ID == id {
			return nil, errors.New("upstream exploded")
		}
		return rec, nil
	})
}

func resultIDs(res *BatchResult) map[int64]bool {
	ids := make(map[int64]bool, len(res.Records))
	for _, r := range res.Records {
		ids[r.ID] = true
	}
	return ids
}

func TestNewOrchestrator_WorkerValidation(t *testing.T) {
	_, err := NewOrchestrator(nil, WithWorkers(0))
	assert.ErrorContains(t, err, "worker count must be at least 1")

	o, err := NewOrchestrator(nil)
	require.NoError(t, err)
	assert.Equal(t, 4, o.Workers())
}

func TestRunBatch_FailureIsolation(t *testing.T) {
	events := &eventLog{}
	o, err := NewOrchestrator(Chain{markerStage("A"), failingOn(3)},
		WithWorkers(2), WithReporter(events), WithLogger(discardLogger()))
	require.NoError(t, err)

	res := o.RunBatch(t.Context(), newRecords(5))

	assert.Equal(t, 5, res.Total)
	assert.Equal(t, 1, res.Failed)
	assert.Len(t, res.Records, 4)
	assert.Equal(t, map[int64]bool{1: true, 2: true, 4: true, 5: true}, resultIDs(res))

	counts := events.completedCounts("processing")
	if diff := cmp.Diff([]int{1, 2, 3, 4, 5}, counts); diff != "" {
		t.Errorf("progress counts mismatch (-want +got):\n%s", diff)
	}
	for _, ev := range events.events {
		assert.Equal(t, 5, ev.Total)
		assert.Equal(t, ev.Label == "story C", ev.Failed)
	}
}

func TestRunBatch_SuccessSubsetNoDuplicates(t *testing.T) {
	input := newRecords(20)
	o, err := NewOrchestrator(Chain{failingOn(7), failingOn(13)}, WithWorkers(3), WithLogger(discardLogger()))
	require.NoError(t, err)

	res := o.RunBatch(t.Context(), input)

	seen := make(map[*record.Record]bool)
	inputSet := make(map[*record.Record]bool)
	for _, r := range input {
		inputSet[r] = true
	}
	for _, r := range res.Records {
		assert.False(t, seen[r], "duplicate record %d", r.ID)
		assert.True(t, inputSet[r], "record %d not from input", r.ID)
		seen[r] = true
	}
	assert.Equal(t, 18, len(res.Records))
	assert.Equal(t, 2, res.Failed)
}

func TestRunBatch_PanicIsUnitFailure(t *testing.T) {
	o, err := NewOrchestrator(Chain{StageFunc(func(_ context.Context, rec *record.Record) (*record.Record, error) {
		if rec.ID == 2 {
			var m map[string]int
			m["x"] = 1
		}
		return rec, nil
	})}, WithWorkers(2), WithLogger(discardLogger()))
	require.NoError(t, err)

	res := o.RunBatch(t.Context(), newRecords(3))
	assert.Equal(t, 1, res.Failed)
	assert.Len(t, res.Records, 2)
}

func TestRunBatch_NilRecord(t *testing.T) {
	o, err := NewOrchestrator(nil, WithWorkers(1), WithLogger(discardLogger()))
	require.NoError(t, err)

	res := o.RunBatch(t.Context(), []*record.Record{{ID: 1}, nil})
	assert.Equal(t, 1, res.Failed)
	assert.Len(t, res.Records, 1)
}

func TestRunBatch_Empty(t *testing.T) {
	events := &eventLog{}
	o, err := NewOrchestrator(Chain{markerStage("A")}, WithReporter(events))
	require.NoError(t, err)

	res := o.RunBatch(t.Context(), nil)
	assert.Empty(t, res.Records)
	assert.NotNil(t, res.Records)
	assert.Empty(t, events.events)
}

func TestRunBatch_BoundedConcurrency(t *testing.T) {
	var current, peak atomic.Int32
	slow := StageFunc(func(_ context.Context, rec *record.Record) (*record.Record, error) {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		current.Add(-1)
		return rec, nil
	})

	o, err := NewOrchestrator(Chain{slow}, WithWorkers(3))
	require.NoError(t, err)

	res := o.RunBatch(t.Context(), newRecords(12))
	assert.Len(t, res.Records, 12)
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.GreaterOrEqual(t, peak.Load(), int32(1))
}

func TestRunBatch_HookFailureKeepsRecord(t *testing.T) {
	var hooked atomic.Int32
	hook := func(_ context.Context, rec *record.Record) (*record.Record, error) {
		hooked.Add(1)
		switch rec.ID {
		case 2:
			return nil, errors.New("index unavailable")
		case 3:
			panic("sink exploded")
		}
		rec.Summary = "hooked"
		return rec, nil
	}

	o, err := NewOrchestrator(Chain{markerStage("A")},
		WithWorkers(2), WithPostProcess(hook), WithLogger(discardLogger()))
	require.NoError(t, err)

	res := o.RunBatch(t.Context(), newRecords(3))

	assert.Equal(t, int32(3), hooked.Load())
	assert.Equal(t, 0, res.Failed)
	assert.Equal(t, 2, res.HookFailures)
	assert.Len(t, res.Records, 3)
	res.SortByID()
	assert.Equal(t, "hooked", res.Records[0].Summary)
	assert.Equal(t, "A", res.Records[1].Summary)
}

func TestRunBatch_HookNotCalledOnFailure(t *testing.T) {
	var hooked atomic.Int32
	o, err := NewOrchestrator(Chain{failingOn(1)},
		WithPostProcess(func(_ context.Context, rec *record.Record) (*record.Record, error) {
			hooked.Add(1)
			return rec, nil
		}), WithLogger(discardLogger()))
	require.NoError(t, err)

	o.RunBatch(t.Context(), newRecords(2))
	assert.Equal(t, int32(1), hooked.Load())
}

func TestRunBatch_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	o, err := NewOrchestrator(Chain{failingOn(2)},
		WithName("enrich"), WithMetrics(m), WithLogger(discardLogger()),
		WithPostProcess(func(_ context.Context, rec *record.Record) (*record.Record, error) {
			return nil, errors.New("nope")
		}))
	require.NoError(t, err)

	o.RunBatch(t.Context(), newRecords(4))

	assert.Equal(t, 3.0, testutil.ToFloat64(m.units.WithLabelValues("enrich", "succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.units.WithLabelValues("enrich", "failed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.hookFailures.WithLabelValues("enrich")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.inflight.WithLabelValues("enrich")))
}

func TestLogReporter(t *testing.T) {
	rep := LogReporter(discardLogger())
	rep.Report(ProgressEvent{Batch: "processing", Completed: 1, Total: 1, Label: "x"})
}
