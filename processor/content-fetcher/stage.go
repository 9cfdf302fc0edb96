// Package contentfetcher is a pipeline stage that downloads each record's
// URL and stores the extracted content and outbound links on the record.
package contentfetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/c360studio/semdigest/pipeline"
	"github.com/c360studio/semdigest/record"
	"github.com/c360studio/semdigest/source/weburl"
)

// Name is the registered stage type.
const Name = "content_fetcher"

// Stage fetches article content.
//
// On any fetch or parse failure the record is degraded in place:
// Content becomes "Error fetching content: <err>" and Links is emptied.
type Stage struct {
	cfg     Config
	fetcher *Fetcher
	logger  *slog.Logger
}

// New creates a stage from a config.
func New(cfg Config, logger *slog.Logger) (*Stage, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	policy := weburl.Policy{AllowHTTP: cfg.AllowHTTP, AllowPrivate: cfg.AllowPrivate}
	return &Stage{
		cfg:     cfg,
		fetcher: NewFetcher(policy, cfg.GetTimeout(), cfg.UserAgent, cfg.MaxContentSize),
		logger:  logger,
	}, nil
}

// NewComponent is the pipeline factory for content_fetcher.
func NewComponent(args json.RawMessage, deps pipeline.Dependencies) (pipeline.Stage, error) {
	cfg := DefaultConfig()
	if err := pipeline.DecodeArgs(args, &cfg); err != nil {
		return nil, err
	}
	return New(cfg, deps.ComponentLogger(Name))
}

// Transform never returns an error; failures degrade the record.
func (s *Stage) Transform(ctx context.Context, rec *record.Record) (*record.Record, error) {
	content, links, err := s.extract(ctx, rec.URL)
	if err != nil {
		s.logger.Debug("Content fetch failed", "item", rec.Label(), "url", rec.URL, "error", err)
		rec.Content = fmt.Sprintf("Error fetching content: %v", err)
		rec.Links = []string{}
		rec.Degrade(Name, record.FieldContent, err)
		return rec, nil
	}

	rec.Content = truncate(content, s.cfg.MaxChars)
	rec.Links = links
	return rec, nil
}

func (s *Stage) extract(ctx context.Context, rawURL string) (string, []string, error) {
	page, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return "", nil, err
	}

	base, err := url.Parse(page.URL)
	if err != nil {
		return "", nil, fmt.Errorf("parse final URL: %w", err)
	}

	doc, err := parse(page.Body)
	if err != nil {
		return "", nil, fmt.Errorf("parse HTML: %w", err)
	}
	links := extractLinks(doc, base)

	if s.cfg.Mode == ModeMarkdown {
		markdown, err := extractMarkdown(doc)
		if err != nil {
			return "", nil, fmt.Errorf("convert to markdown: %w", err)
		}
		return markdown, links, nil
	}
	return extractText(doc), links, nil
}
