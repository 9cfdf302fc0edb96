// Package summarizer is a pipeline stage that asks an LLM for a short
// summary of each record's content.
package summarizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/c360studio/semdigest/llm"
	"github.com/c360studio/semdigest/model"
	"github.com/c360studio/semdigest/pipeline"
	"github.com/c360studio/semdigest/record"
)

// Name is the registered stage type.
const Name = "summarizer"

// NoContentSummary is written when there is nothing to summarize.
const NoContentSummary = "No content available to summarize"

var errNoContent = errors.New("no content")

const promptTemplate = "Please provide a concise summary of the following text in 2-3 sentences:\n\n%s"

// Config holds the summarizer args.
type Config struct {
	// Capability selects the model chain.
	Capability string `json:"capability"`

	// MaxTokens caps the reply; 0 uses the endpoint limit.
	MaxTokens int `json:"max_tokens"`
}

// DefaultConfig returns the default summarizer config.
func DefaultConfig() Config {
	return Config{Capability: string(model.CapabilitySummarization)}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if !model.Capability(c.Capability).IsValid() {
		return fmt.Errorf("unknown capability %q", c.Capability)
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must not be negative")
	}
	return nil
}

// Stage summarizes article content.
//
// Degrades in place: a record with no usable content gets NoContentSummary,
// and an LLM failure gets "Error generating summary: <err>".
type Stage struct {
	cfg    Config
	llm    llm.Completer
	logger *slog.Logger
}

// New creates a summarizer stage.
func New(cfg Config, client llm.Completer, logger *slog.Logger) (*Stage, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if client == nil {
		return nil, fmt.Errorf("%w: LLM client", pipeline.ErrMissingDependency)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Stage{cfg: cfg, llm: client, logger: logger}, nil
}

// NewComponent is the pipeline factory for summarizer.
func NewComponent(args json.RawMessage, deps pipeline.Dependencies) (pipeline.Stage, error) {
	cfg := DefaultConfig()
	if err := pipeline.DecodeArgs(args, &cfg); err != nil {
		return nil, err
	}
	return New(cfg, deps.LLM, deps.ComponentLogger(Name))
}

// Transform fills rec.Summary.
func (s *Stage) Transform(ctx context.Context, rec *record.Record) (*record.Record, error) {
	if strings.TrimSpace(rec.Content) == "" || rec.FieldDegraded(record.FieldContent) {
		rec.Summary = NoContentSummary
		rec.Degrade(Name, record.FieldSummary, errNoContent)
		return rec, nil
	}

	resp, err := s.llm.Complete(ctx, llm.Request{
		Capability:  s.cfg.Capability,
		Messages:    []llm.Message{{Role: "user", Content: fmt.Sprintf(promptTemplate, rec.Content)}},
		Temperature: llm.Temperature(0),
		MaxTokens:   s.cfg.MaxTokens,
	})
	if err != nil {
		s.logger.Warn("Summary generation failed", "item", rec.Label(), "error", err)
		rec.Summary = fmt.Sprintf("Error generating summary: %v", err)
		rec.Degrade(Name, record.FieldSummary, err)
		return rec, nil
	}

	rec.Summary = strings.TrimSpace(resp.Content)
	s.logger.Debug("Summarized", "item", rec.Label(), "model", resp.Model)
	return rec, nil
}
