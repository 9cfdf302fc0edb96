// Package pipeline builds a source → stages → renderer → sink pipeline from
// configuration and runs batches of records through it on a bounded worker pool.
package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/c360studio/semdigest/llm"
	"github.com/c360studio/semdigest/record"
	"github.com/nats-io/nats.go"
)

// Source produces the batch for a run.
type Source interface {
	Fetch(ctx context.Context) ([]*record.Record, error)
}

// Stage enriches one record. Stages degrade in place (record.Degrade) for
// upstream failures they can absorb; a returned error fails the whole unit.
type Stage interface {
	Transform(ctx context.Context, rec *record.Record) (*record.Record, error)
}

// StageFunc adapts a function to Stage.
type StageFunc func(ctx context.Context, rec *record.Record) (*record.Record, error)

// Transform calls f.
func (f StageFunc) Transform(ctx context.Context, rec *record.Record) (*record.Record, error) {
	return f(ctx, rec)
}

// Renderer turns an assembled digest into a payload.
type Renderer interface {
	Render(digest *Digest) (string, error)
}

// Sink delivers a payload. Deliver never returns an error: implementations
// log failures and report false.
type Sink interface {
	Deliver(ctx context.Context, payload string, meta Metadata) bool
}

// Dependencies are the shared services handed to every component constructor.
// Any field may be nil; constructors that need one return an error.
type Dependencies struct {
	Logger     *slog.Logger
	LLM        llm.Completer
	HTTPClient *http.Client
	NATS       *nats.Conn
}

// ComponentLogger returns a logger scoped to a component type.
func (d Dependencies) ComponentLogger(name string) *slog.Logger {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("component", name)
}

// Factories build a component from its JSON args.
type (
	SourceFactory   func(args json.RawMessage, deps Dependencies) (Source, error)
	StageFactory    func(args json.RawMessage, deps Dependencies) (Stage, error)
	RendererFactory func(args json.RawMessage, deps Dependencies) (Renderer, error)
	SinkFactory     func(args json.RawMessage, deps Dependencies) (Sink, error)
)
