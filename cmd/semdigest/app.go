package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360studio/semdigest/components"
	"github.com/c360studio/semdigest/config"
	"github.com/c360studio/semdigest/llm"
	"github.com/c360studio/semdigest/model"
	"github.com/c360studio/semdigest/natsembed"
	"github.com/c360studio/semdigest/pipeline"
	"github.com/c360studio/semdigest/storage"
)

// Progress display modes.
const (
	progressBar  = "bar"
	progressLog  = "log"
	progressNone = "none"
)

type runOptions struct {
	configPath  string
	workers     int
	progress    string
	watch       bool
	dryRun      bool
	out         io.Writer
	progressOut io.Writer
}

// App wires shared services for one run: NATS (embedded or external), the
// article index, the LLM client and the metrics registry.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	// NATS
	embedded *natsembed.Server
	natsConn *nats.Conn
	js       jetstream.JetStream

	store   storage.Store
	llm     llm.Completer
	http    *http.Client
	promReg *prometheus.Registry
	metrics *pipeline.Metrics
}

// NewApp creates an application for cfg. Call Start before Run.
func NewApp(cfg *config.Config, logger *slog.Logger) *App {
	promReg := prometheus.NewRegistry()
	return &App{
		cfg:     cfg,
		logger:  logger,
		http:    &http.Client{Timeout: 30 * time.Second},
		promReg: promReg,
		metrics: pipeline.NewMetrics(promReg),
	}
}

// Start connects NATS when the index or destination needs it, then opens
// the index and builds the LLM client.
func (a *App) Start(ctx context.Context) error {
	if a.cfg.NeedsNATS() {
		if err := a.startNATS(); err != nil {
			return err
		}
	}

	store, err := storage.Open(ctx, a.cfg.Index, a.js)
	if err != nil {
		return fmt.Errorf("initialize index: %w", err)
	}
	a.store = store

	a.llm = llm.NewClient(model.FromConfig(a.cfg.Models),
		llm.WithLogger(a.logger.With("component", "llm")))
	return nil
}

func (a *App) startNATS() error {
	if a.cfg.NATS.URL != "" && !a.cfg.NATS.Embedded {
		a.logger.Info("Connecting to NATS", "url", a.cfg.NATS.URL)
		conn, err := nats.Connect(a.cfg.NATS.URL, nats.Name(appName))
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
		a.natsConn = conn
	} else {
		a.logger.Debug("Starting embedded NATS server", "store_dir", a.cfg.NATS.StoreDir)
		srv, err := natsembed.Start(natsembed.Options{StoreDir: a.cfg.NATS.StoreDir})
		if err != nil {
			return err
		}
		a.embedded = srv
		a.natsConn = srv.Conn
	}

	js, err := jetstream.New(a.natsConn)
	if err != nil {
		return fmt.Errorf("create JetStream context: %w", err)
	}
	a.js = js
	return nil
}

// Run builds the pipeline from the config and runs it once.
func (a *App) Run(ctx context.Context, opts runOptions) (*pipeline.Report, error) {
	reg, err := components.NewRegistry()
	if err != nil {
		return nil, err
	}

	p, err := pipeline.Build(&a.cfg.Pipeline, reg, pipeline.Dependencies{
		Logger:     a.logger,
		LLM:        a.llm,
		HTTPClient: a.http,
		NATS:       a.natsConn,
	})
	if err != nil {
		return nil, err
	}
	defer p.Close()

	if opts.dryRun {
		p.Sink = &writerSink{w: opts.out}
		p.SinkName = "dry-run"
	}

	runnerOpts := []pipeline.RunnerOption{
		pipeline.WithRunWorkers(a.cfg.Runtime.Workers),
		pipeline.WithDelivery(a.cfg.Runtime.Delivery),
		pipeline.WithRunLogger(a.logger),
		pipeline.WithRunMetrics(a.metrics),
	}
	if a.store != nil {
		runnerOpts = append(runnerOpts, pipeline.WithIndex(a.store))
	}

	var bar *barReporter
	switch opts.progress {
	case progressBar:
		bar = newBarReporter(opts.progressOut)
		runnerOpts = append(runnerOpts, pipeline.WithRunReporter(bar))
	case progressLog:
		runnerOpts = append(runnerOpts, pipeline.WithRunReporter(pipeline.LogReporter(a.logger)))
	}

	report, err := pipeline.NewRunner(p, runnerOpts...).Run(ctx)
	if bar != nil {
		bar.Stop()
	}
	if err != nil {
		return nil, err
	}

	if path := a.cfg.Metrics.Textfile; path != "" {
		if err := prometheus.WriteToTextfile(path, a.promReg); err != nil {
			a.logger.Warn("Failed to write metrics textfile", "path", path, "error", err)
		}
	}
	return report, nil
}

// Shutdown closes the index and NATS.
func (a *App) Shutdown() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("Failed to close index", "error", err)
		}
	}
	if a.embedded != nil {
		a.embedded.Shutdown()
	} else if a.natsConn != nil {
		_ = a.natsConn.Drain()
		a.natsConn.Close()
	}
}

// runOnce loads the config, applies flag overrides and runs the pipeline.
func runOnce(ctx context.Context, opts runOptions, logger *slog.Logger) (*pipeline.Report, error) {
	cfg, err := loadConfig(opts, logger)
	if err != nil {
		return nil, err
	}

	app := NewApp(cfg, logger)
	defer app.Shutdown()
	if err := app.Start(ctx); err != nil {
		return nil, err
	}

	report, err := app.Run(ctx, opts)
	if err != nil {
		return nil, err
	}
	writeSummary(opts.out, report)
	return report, nil
}

func loadConfig(opts runOptions, logger *slog.Logger) (*config.Config, error) {
	switch opts.progress {
	case progressBar, progressLog, progressNone:
	default:
		return nil, fmt.Errorf("unknown progress mode %q", opts.progress)
	}

	cfg, err := config.NewLoader(logger).Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.workers > 0 {
		cfg.Runtime.Workers = opts.workers
	}
	if opts.dryRun {
		cfg.Index.Backend = config.IndexMemory
	}
	return cfg, nil
}

// writerSink prints payloads instead of delivering them.
type writerSink struct {
	w io.Writer
}

func (s *writerSink) Deliver(_ context.Context, payload string, meta pipeline.Metadata) bool {
	_, err := fmt.Fprintf(s.w, "----- %s -----\n%s\n", meta.Title, payload)
	return err == nil
}
