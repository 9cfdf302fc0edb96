// Package contenttagger is a pipeline stage that classifies each record
// against a fixed tag vocabulary with LLM-assigned relevance scores.
package contenttagger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/c360studio/semdigest/llm"
	"github.com/c360studio/semdigest/pipeline"
	"github.com/c360studio/semdigest/record"
)

// Name is the registered stage type.
const Name = "content_tagger"

var (
	errNoContent = errors.New("no content")
	errNoArray   = errors.New("reply contains no JSON array")
)

const promptTemplate = `Analyze the following text and assign relevant tags from the provided list.
For each assigned tag, provide a relevance score between 0.0 and 1.0, where 1.0 means highly relevant.
Only include tags with a score >= %v. Return the result as a JSON array of objects with 'name' and 'score' fields.

Available tags: %s

Text to analyze:
Title: %s

Content: %s

Return format example:
[
    {"name": "tag1", "score": 0.9},
    {"name": "tag2", "score": 0.7}
]`

// Stage tags records.
//
// Degrades in place: Tags becomes an empty list when content is missing or
// degraded, the LLM fails, or the reply cannot be parsed.
type Stage struct {
	cfg    Config
	known  map[string]bool
	llm    llm.Completer
	logger *slog.Logger
}

// New creates a tagger stage. cfg is used as given; environment fallbacks
// are applied by NewComponent.
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
	if len(cfg.AvailableTags) == 0 {
		logger.Warn("No tags configured, every record will get an empty tag list")
	}

	known := make(map[string]bool, len(cfg.AvailableTags))
	for _, tag := range cfg.AvailableTags {
		known[tag] = true
	}
	return &Stage{cfg: cfg, known: known, llm: client, logger: logger}, nil
}

// NewComponent is the pipeline factory for content_tagger.
func NewComponent(args json.RawMessage, deps pipeline.Dependencies) (pipeline.Stage, error) {
	cfg := DefaultConfig()
	if err := pipeline.DecodeArgs(args, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	return New(cfg, deps.LLM, deps.ComponentLogger(Name))
}

// Transform fills rec.Tags.
func (s *Stage) Transform(ctx context.Context, rec *record.Record) (*record.Record, error) {
	rec.Tags = []record.Tag{}

	if strings.TrimSpace(rec.Content) == "" || rec.FieldDegraded(record.FieldContent) {
		rec.Degrade(Name, record.FieldTags, errNoContent)
		return rec, nil
	}
	if len(s.known) == 0 {
		return rec, nil
	}

	resp, err := s.llm.Complete(ctx, llm.Request{
		Capability:  s.cfg.Capability,
		Messages:    []llm.Message{{Role: "user", Content: s.prompt(rec)}},
		Temperature: llm.Temperature(0),
	})
	if err != nil {
		s.logger.Warn("Tag generation failed", "item", rec.Label(), "error", err)
		rec.Degrade(Name, record.FieldTags, err)
		return rec, nil
	}

	tags, err := s.parseTags(resp.Content)
	if err != nil {
		s.logger.Warn("Could not parse tags", "item", rec.Label(), "error", err)
		rec.Degrade(Name, record.FieldTags, err)
		return rec, nil
	}

	rec.Tags = tags
	return rec, nil
}

func (s *Stage) prompt(rec *record.Record) string {
	content := rec.Content
	if runes := []rune(content); len(runes) > s.cfg.MaxContentChars {
		content = string(runes[:s.cfg.MaxContentChars])
	}
	return fmt.Sprintf(promptTemplate, s.cfg.Threshold(), strings.Join(s.cfg.AvailableTags, ", "), rec.Title, content)
}

// parseTags keeps only well-formed entries naming a known tag whose score
// lies within [threshold, 1].
func (s *Stage) parseTags(reply string) ([]record.Tag, error) {
	raw := llm.ExtractJSONArray(reply)
	if raw == "" {
		return nil, errNoArray
	}

	var entries []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}

	threshold := s.cfg.Threshold()
	tags := []record.Tag{}
	for _, entry := range entries {
		var candidate struct {
			Name  string `json:"name"`
			Score any    `json:"score"`
		}
		if err := json.Unmarshal(entry, &candidate); err != nil {
			continue
		}
		score, ok := toScore(candidate.Score)
		if !ok || !s.known[candidate.Name] || score < threshold || score > 1 {
			continue
		}
		tags = append(tags, record.Tag{Name: candidate.Name, Score: score})
	}
	return tags, nil
}

// toScore accepts numbers and numeric strings.
func toScore(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
