// Package file is a sink that writes each payload to a timestamped file.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/c360studio/semdigest/pipeline"
)

// Name is the registered sink type.
const Name = "file"

// Config holds the file sink args.
type Config struct {
	OutputDir string `json:"output_dir"`

	// Extension overrides the file extension. Empty picks html or md from
	// the payload.
	Extension string `json:"extension"`
}

// Sink writes digest_<YYYYmmdd_HHMMSS>.<ext> files into OutputDir. Within
// one second later files get a numeric suffix instead of overwriting.
type Sink struct {
	dir    string
	ext    string
	now    func() time.Time
	logger *slog.Logger
}

// New creates the output directory and returns the sink.
func New(cfg Config, logger *slog.Logger) (*Sink, error) {
	if cfg.OutputDir == "" {
		return nil, fmt.Errorf("output_dir is required")
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{
		dir:    cfg.OutputDir,
		ext:    strings.TrimPrefix(cfg.Extension, "."),
		now:    time.Now,
		logger: logger,
	}, nil
}

// NewComponent is the pipeline factory for file.
func NewComponent(args json.RawMessage, deps pipeline.Dependencies) (pipeline.Sink, error) {
	cfg := Config{OutputDir: "output"}
	if err := pipeline.DecodeArgs(args, &cfg); err != nil {
		return nil, err
	}
	return New(cfg, deps.ComponentLogger(Name))
}

// Deliver implements pipeline.Sink.
func (s *Sink) Deliver(_ context.Context, payload string, meta pipeline.Metadata) bool {
	path, err := s.write(payload)
	if err != nil {
		s.logger.Error("Failed to write digest", "dir", s.dir, "title", meta.Title, "error", err)
		return false
	}
	s.logger.Info("Wrote digest", "path", path, "title", meta.Title)
	return true
}

func (s *Sink) write(payload string) (string, error) {
	ext := s.ext
	if ext == "" {
		ext = "md"
		if pipeline.LooksLikeHTML(payload) {
			ext = "html"
		}
	}

	stem := "digest_" + s.now().Format("20060102_150405")
	for n := 1; n < 1000; n++ {
		name := stem + "." + ext
		if n > 1 {
			name = fmt.Sprintf("%s_%d.%s", stem, n, ext)
		}
		path := filepath.Join(s.dir, name)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		if _, err := f.WriteString(payload); err != nil {
			f.Close()
			return "", err
		}
		return path, f.Close()
	}
	return "", fmt.Errorf("no free file name for %s", stem)
}
