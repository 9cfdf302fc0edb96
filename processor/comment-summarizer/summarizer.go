// Package commentsummarizer is a pipeline stage that condenses each of a
// record's discussion comments to a sentence or two.
package commentsummarizer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/c360studio/semdigest/llm"
	"github.com/c360studio/semdigest/model"
	"github.com/c360studio/semdigest/pipeline"
	"github.com/c360studio/semdigest/record"
)

// Name is the registered stage type.
const Name = "comment_summarizer"

const promptTemplate = "Please provide a brief 1-2 sentence summary of this Hacker News comment:\n\n%s"

// Config holds the comment_summarizer args.
type Config struct {
	Capability string `json:"capability"`

	// MaxComments bounds how many comments are summarized; 0 means all.
	MaxComments int `json:"max_comments"`
}

// DefaultConfig returns the default config.
func DefaultConfig() Config {
	return Config{Capability: string(model.CapabilityFast)}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if !model.Capability(c.Capability).IsValid() {
		return fmt.Errorf("unknown capability %q", c.Capability)
	}
	if c.MaxComments < 0 {
		return fmt.Errorf("max_comments must not be negative")
	}
	return nil
}

// Stage summarizes comments one LLM call at a time.
//
// Degrades in place: any failure leaves CommentSummaries empty.
type Stage struct {
	cfg    Config
	llm    llm.Completer
	logger *slog.Logger
}

// New creates a comment summarizer stage.
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

// NewComponent is the pipeline factory for comment_summarizer.
func NewComponent(args json.RawMessage, deps pipeline.Dependencies) (pipeline.Stage, error) {
	cfg := DefaultConfig()
	if err := pipeline.DecodeArgs(args, &cfg); err != nil {
		return nil, err
	}
	return New(cfg, deps.LLM, deps.ComponentLogger(Name))
}

// Transform fills rec.CommentSummaries, skipping blank comments.
func (s *Stage) Transform(ctx context.Context, rec *record.Record) (*record.Record, error) {
	summaries := []string{}
	for _, comment := range rec.Comments {
		if strings.TrimSpace(comment) == "" {
			continue
		}
		if s.cfg.MaxComments > 0 && len(summaries) == s.cfg.MaxComments {
			break
		}

		resp, err := s.llm.Complete(ctx, llm.Request{
			Capability:  s.cfg.Capability,
			Messages:    []llm.Message{{Role: "user", Content: fmt.Sprintf(promptTemplate, comment)}},
			Temperature: llm.Temperature(0),
		})
		if err != nil {
			s.logger.Warn("Comment summary failed", "item", rec.Label(), "error", err)
			rec.CommentSummaries = []string{}
			rec.Degrade(Name, record.FieldCommentSummaries, err)
			return rec, nil
		}
		summaries = append(summaries, strings.TrimSpace(resp.Content))
	}

	rec.CommentSummaries = summaries
	return rec, nil
}
