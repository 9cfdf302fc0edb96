// Package static is a pipeline source that replays fixed records, given
// inline in the config or loaded from JSON files matched by a glob.
package static

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/c360studio/semdigest/pipeline"
	"github.com/c360studio/semdigest/record"
)

// Name is the registered source type.
const Name = "static"

// Config holds the static source args.
type Config struct {
	// Records are returned first, in order.
	Records []record.Record `json:"records"`

	// Glob matches JSON files, each holding one record or an array of records.
	// Relative patterns are resolved against BaseDir.
	Glob string `json:"glob"`

	BaseDir string `json:"base_dir"`
}

// Source returns the configured records on every Fetch. Each call hands out
// fresh copies so stages cannot leak state between runs.
type Source struct {
	cfg Config
}

// New validates cfg and, when a glob is set, checks that it compiles.
func New(cfg Config) (*Source, error) {
	if len(cfg.Records) == 0 && cfg.Glob == "" {
		return nil, fmt.Errorf("records or glob is required")
	}
	if cfg.Glob != "" && !doublestar.ValidatePattern(filepath.ToSlash(cfg.Glob)) {
		return nil, fmt.Errorf("invalid glob %q", cfg.Glob)
	}
	return &Source{cfg: cfg}, nil
}

// NewComponent is the pipeline factory for static.
func NewComponent(args json.RawMessage, _ pipeline.Dependencies) (pipeline.Source, error) {
	var cfg Config
	if err := pipeline.DecodeArgs(args, &cfg); err != nil {
		return nil, err
	}
	return New(cfg)
}

// Fetch returns inline records followed by file records in path order.
func (s *Source) Fetch(_ context.Context) ([]*record.Record, error) {
	out := make([]*record.Record, 0, len(s.cfg.Records))
	for i := range s.cfg.Records {
		rec := s.cfg.Records[i]
		out = append(out, &rec)
	}

	if s.cfg.Glob == "" {
		return out, nil
	}

	pattern := s.cfg.Glob
	if !filepath.IsAbs(pattern) && s.cfg.BaseDir != "" {
		pattern = filepath.Join(s.cfg.BaseDir, pattern)
	}
	paths, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return out, fmt.Errorf("glob %q: %w", pattern, err)
	}

	for _, path := range paths {
		recs, err := readFile(path)
		if err != nil {
			return out, err
		}
		out = append(out, recs...)
	}
	return out, nil
}

func readFile(path string) ([]*record.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var recs []*record.Record
		if err := json.Unmarshal(data, &recs); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		return recs, nil
	}

	var rec record.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return []*record.Record{&rec}, nil
}
