package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/c360studio/semdigest/config"
	"github.com/c360studio/semdigest/record"
	"golang.org/x/sync/errgroup"
)

// PostProcessFunc runs on a worker after a record's chain succeeds.
// A returned record replaces the chain output; nil keeps it.
type PostProcessFunc func(ctx context.Context, rec *record.Record) (*record.Record, error)

// BatchResult is the outcome of one RunBatch call.
type BatchResult struct {
	// Records holds the successful outputs in completion order.
	Records []*record.Record

	Total        int
	Failed       int
	HookFailures int
	Duration     time.Duration
}

// SortByID orders Records by record ID.
func (r *BatchResult) SortByID() {
	sort.SliceStable(r.Records, func(i, j int) bool { return r.Records[i].ID < r.Records[j].ID })
}

// Orchestrator runs a chain over a batch on a fixed pool of workers.
// Each unit (one record through the chain and hook) is isolated: its failure
// or panic is logged and counted, and the rest of the batch continues.
type Orchestrator struct {
	chain    Chain
	workers  int
	name     string
	hook     PostProcessFunc
	reporter Reporter
	logger   *slog.Logger
	metrics  *Metrics
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithWorkers sets the pool size.
func WithWorkers(n int) Option {
	return func(o *Orchestrator) { o.workers = n }
}

// WithName labels the batch in logs, progress events and metrics.
func WithName(name string) Option {
	return func(o *Orchestrator) { o.name = name }
}

// WithPostProcess sets the per-record hook.
func WithPostProcess(fn PostProcessFunc) Option {
	return func(o *Orchestrator) { o.hook = fn }
}

// WithReporter sets the progress reporter.
func WithReporter(r Reporter) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.reporter = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics records unit outcomes in m.
func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// NewOrchestrator creates an orchestrator for chain. The worker count is fixed
// here and defaults to config.DefaultWorkers.
func NewOrchestrator(chain Chain, opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{
		chain:    chain,
		workers:  config.DefaultWorkers,
		name:     "processing",
		reporter: nopReporter{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.workers < 1 {
		return nil, fmt.Errorf("worker count must be at least 1, got %d", o.workers)
	}
	return o, nil
}

// Workers returns the pool size.
func (o *Orchestrator) Workers() int { return o.workers }

type unit struct {
	rec *record.Record
}

type outcome struct {
	label    string
	rec      *record.Record
	err      error
	hookErr  error
	duration time.Duration
}

// RunBatch processes every record and waits for all of them. It never fails
// as a whole; per-unit failures are reported in the result. Every submitted
// unit runs to completion; ctx is handed to stages but not used to abandon units.
func (o *Orchestrator) RunBatch(ctx context.Context, records []*record.Record) *BatchResult {
	start := time.Now()
	total := len(records)
	result := &BatchResult{Total: total, Records: make([]*record.Record, 0, total)}
	if total == 0 {
		return result
	}

	jobs := make(chan unit)
	outcomes := make(chan outcome)

	var g errgroup.Group
	for i := 0; i < min(o.workers, total); i++ {
		g.Go(func() error {
			for u := range jobs {
				outcomes <- o.process(ctx, u)
			}
			return nil
		})
	}

	go func() {
		for _, rec := range records {
			jobs <- unit{rec: rec}
		}
		close(jobs)
	}()

	go func() {
		_ = g.Wait()
		close(outcomes)
	}()

	// Only this goroutine touches result and the reporter.
	completed := 0
	for out := range outcomes {
		completed++
		o.metrics.observe(o.name, out)

		if out.err != nil {
			result.Failed++
			o.logger.Error("Unit failed",
				"batch", o.name,
				"item", out.label,
				"error", out.err)
		} else {
			result.Records = append(result.Records, out.rec)
			if out.hookErr != nil {
				result.HookFailures++
				o.logger.Warn("Post-processing failed",
					"batch", o.name,
					"item", out.label,
					"error", out.hookErr)
			}
		}

		o.reporter.Report(ProgressEvent{
			Batch:     o.name,
			Completed: completed,
			Total:     total,
			Label:     out.label,
			Failed:    out.err != nil,
		})
	}

	result.Duration = time.Since(start)
	return result
}

func (o *Orchestrator) process(ctx context.Context, u unit) (out outcome) {
	out.label = u.rec.Label()
	start := time.Now()
	o.metrics.started(o.name)
	defer func() {
		o.metrics.finished(o.name)
		out.duration = time.Since(start)
	}()

	if u.rec == nil {
		out.err = fmt.Errorf("nil record")
		return out
	}

	rec, err := o.applyChain(ctx, u.rec)
	if err != nil {
		out.err = err
		return out
	}
	out.rec = rec

	if o.hook != nil {
		if hooked, err := o.applyHook(ctx, rec); err != nil {
			out.hookErr = err
		} else if hooked != nil {
			out.rec = hooked
		}
	}
	return out
}

func (o *Orchestrator) applyChain(ctx context.Context, rec *record.Record) (out *record.Record, err error) {
	defer func() {
		if p := recover(); p != nil {
			out, err = nil, fmt.Errorf("stage panicked: %v", p)
		}
	}()
	return o.chain.Apply(ctx, rec)
}

func (o *Orchestrator) applyHook(ctx context.Context, rec *record.Record) (out *record.Record, err error) {
	defer func() {
		if p := recover(); p != nil {
			out, err = nil, fmt.Errorf("post-process panicked: %v", p)
		}
	}()
	return o.hook(ctx, rec)
}
