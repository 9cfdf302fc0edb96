package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/c360studio/semdigest/config"
	"github.com/c360studio/semdigest/record"
	"github.com/google/uuid"
)

// Report summarizes one run.
type Report struct {
	RunID            string
	Fetched          int
	Processed        int
	Failed           int
	Persisted        int
	PersistFailures  int
	Delivered        int
	DeliveryFailures int
	Payload          string
	RenderError      error
	SourceError      error
	Duration         time.Duration
}

// Runner drives one pipeline run: fetch, enrich, assemble, render, then a
// second pass that indexes and delivers each processed record.
type Runner struct {
	pipeline *Pipeline
	index    Indexer
	workers  int
	delivery string
	reporter Reporter
	logger   *slog.Logger
	metrics  *Metrics
	now      func() time.Time
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithIndex persists every processed record to idx.
func WithIndex(idx Indexer) RunnerOption {
	return func(r *Runner) { r.index = idx }
}

// WithRunWorkers sets the worker count for both passes.
func WithRunWorkers(n int) RunnerOption {
	return func(r *Runner) { r.workers = n }
}

// WithDelivery selects config.DeliveryPerRecord or config.DeliveryOnce.
func WithDelivery(mode string) RunnerOption {
	return func(r *Runner) { r.delivery = mode }
}

// WithRunReporter sets the progress reporter for both passes.
func WithRunReporter(rep Reporter) RunnerOption {
	return func(r *Runner) { r.reporter = rep }
}

// WithRunLogger sets the logger.
func WithRunLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = logger }
}

// WithRunMetrics records orchestrator metrics in m.
func WithRunMetrics(m *Metrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// WithClock overrides the time source used to stamp digests.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

// NewRunner creates a runner for p.
func NewRunner(p *Pipeline, opts ...RunnerOption) *Runner {
	r := &Runner{
		pipeline: p,
		workers:  config.DefaultWorkers,
		delivery: config.DeliveryPerRecord,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the pipeline once. Source, stage, render, persistence and
// delivery failures are logged and reflected in the report; the only error
// returned is an invalid runner configuration.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{RunID: uuid.New().String()}
	logger := r.logger.With("run_id", report.RunID)

	enrich, err := r.orchestrator(r.pipeline.Stages, "processing", nil, logger)
	if err != nil {
		return nil, err
	}

	records, err := r.pipeline.Source.Fetch(ctx)
	if err != nil {
		report.SourceError = err
		logger.Error("Source fetch failed", "source", r.pipeline.SourceName, "error", err)
	}
	report.Fetched = len(records)
	logger.Info("Fetched records", "source", r.pipeline.SourceName, "count", len(records))

	// Digest order follows the source's order, not completion order.
	rank := make(map[int64]int, len(records))
	for i, rec := range records {
		if rec != nil {
			rank[rec.ID] = i
		}
	}
	processed := enrich.RunBatch(ctx, records)
	sort.SliceStable(processed.Records, func(i, j int) bool {
		return rank[processed.Records[i].ID] < rank[processed.Records[j].ID]
	})
	report.Processed = len(processed.Records)
	report.Failed = processed.Failed

	digest := Assemble(processed.Records, r.now())
	payload, err := r.pipeline.Renderer.Render(digest)
	if err != nil {
		report.RenderError = err
		logger.Error("Render failed, skipping delivery", "formatter", r.pipeline.RendererName, "error", err)
	}
	report.Payload = payload

	var persisted, persistFailed, delivered, deliveryFailed atomic.Int64
	var hooks []PostProcessFunc

	if r.index != nil {
		persist := PersistHook(r.index)
		hooks = append(hooks, func(ctx context.Context, rec *record.Record) (*record.Record, error) {
			out, err := persist(ctx, rec)
			if err != nil {
				persistFailed.Add(1)
				return nil, err
			}
			persisted.Add(1)
			return out, nil
		})
	}

	if report.RenderError == nil && r.delivery == config.DeliveryPerRecord {
		deliver := DeliverHook(r.pipeline.Sink, payload, func(rec *record.Record) Metadata {
			return RecordMetadata(report.RunID, rec, digest)
		})
		hooks = append(hooks, func(ctx context.Context, rec *record.Record) (*record.Record, error) {
			out, err := deliver(ctx, rec)
			if err != nil {
				deliveryFailed.Add(1)
				return nil, fmt.Errorf("%s: %w", r.pipeline.SinkName, err)
			}
			delivered.Add(1)
			return out, nil
		})
	}

	if len(hooks) > 0 && len(processed.Records) > 0 {
		post, err := r.orchestrator(nil, "delivery", ComposeHooks(hooks...), logger)
		if err != nil {
			return nil, err
		}
		post.RunBatch(ctx, processed.Records)
	}

	if report.RenderError == nil && r.delivery == config.DeliveryOnce {
		if r.pipeline.Sink.Deliver(ctx, payload, DigestMetadata(report.RunID, digest)) {
			delivered.Add(1)
		} else {
			deliveryFailed.Add(1)
		}
	}

	report.Persisted = int(persisted.Load())
	report.PersistFailures = int(persistFailed.Load())
	report.Delivered = int(delivered.Load())
	report.DeliveryFailures = int(deliveryFailed.Load())
	report.Duration = time.Since(start)

	logger.Info("Run complete",
		"processed", report.Processed,
		"failed", report.Failed,
		"persisted", report.Persisted,
		"delivered", report.Delivered,
		"duration", report.Duration)
	return report, nil
}

func (r *Runner) orchestrator(chain Chain, name string, hook PostProcessFunc, logger *slog.Logger) (*Orchestrator, error) {
	return NewOrchestrator(chain,
		WithWorkers(r.workers),
		WithName(name),
		WithPostProcess(hook),
		WithReporter(r.reporter),
		WithLogger(logger),
		WithMetrics(r.metrics),
	)
}
