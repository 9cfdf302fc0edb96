// Package hackernews is a pipeline source reading ranked stories from the
// Hacker News API.
package hackernews

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/c360studio/semdigest/pipeline"
	"github.com/c360studio/semdigest/record"
	nethtml "golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
)

// Name is the registered source type.
const Name = "hackernews"

// Source fetches ranked stories. Only stories with an external URL are kept.
type Source struct {
	cfg    Config
	client *Client
	logger *slog.Logger
}

// New creates a source from a validated config.
func New(cfg Config, httpClient *http.Client, logger *slog.Logger) (*Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	scoped := *httpClient
	scoped.Timeout = cfg.GetTimeout()

	return &Source{
		cfg:    cfg,
		client: NewClient(cfg.BaseURL, &scoped),
		logger: logger,
	}, nil
}

// NewComponent is the pipeline factory for hackernews.
func NewComponent(args json.RawMessage, deps pipeline.Dependencies) (pipeline.Source, error) {
	cfg := DefaultConfig()
	if err := pipeline.DecodeArgs(args, &cfg); err != nil {
		return nil, err
	}
	return New(cfg, deps.HTTPClient, deps.ComponentLogger(Name))
}

// Fetch returns stories in ranking order. A failed listing is an error; a
// failed story is logged and skipped.
func (s *Source) Fetch(ctx context.Context) ([]*record.Record, error) {
	ids, err := s.client.StoryIDs(ctx, s.cfg.List)
	if err != nil {
		return nil, err
	}
	if len(ids) > s.cfg.Limit {
		ids = ids[:s.cfg.Limit]
	}

	slots := make([]*record.Record, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, id := range ids {
		g.Go(func() error {
			rec, err := s.story(gctx, id)
			switch {
			case errors.Is(err, errNoURL):
				s.logger.Debug("Skipping story without URL", "id", id)
				return nil
			case err != nil:
				s.logger.Warn("Skipping story", "id", id, "error", err)
				return nil
			}
			slots[i] = rec
			return nil
		})
	}
	_ = g.Wait()

	stories := make([]*record.Record, 0, len(slots))
	for _, rec := range slots {
		if rec != nil {
			stories = append(stories, rec)
		}
	}
	s.logger.Debug("Fetched stories", "list", s.cfg.List, "ranked", len(ids), "kept", len(stories))
	return stories, nil
}

var errNoURL = errors.New("story has no URL")

func (s *Source) story(ctx context.Context, id int64) (*record.Record, error) {
	item, err := s.client.Item(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil || item.Deleted || item.Dead {
		return nil, fmt.Errorf("item %d unavailable", id)
	}
	if item.URL == "" {
		return nil, errNoURL
	}

	rec := &record.Record{
		ID:    id,
		Title: item.Title,
		URL:   item.URL,
		By:    item.By,
		Score: item.Score,
	}
	if item.Time > 0 {
		rec.CreatedAt = time.Unix(item.Time, 0).UTC()
	}
	if s.cfg.Comments > 0 {
		rec.Comments = s.comments(ctx, item)
	}
	return rec, nil
}

// comments fetches the first top-level comments. Failures drop single comments.
func (s *Source) comments(ctx context.Context, story *Item) []string {
	kids := story.Kids
	if len(kids) > s.cfg.Comments {
		kids = kids[:s.cfg.Comments]
	}

	comments := make([]string, 0, len(kids))
	for _, kid := range kids {
		item, err := s.client.Item(ctx, kid)
		if err != nil {
			s.logger.Debug("Skipping comment", "story", story.ID, "comment", kid, "error", err)
			continue
		}
		if item == nil || item.Deleted || item.Dead || item.Text == "" {
			continue
		}
		comments = append(comments, PlainText(item.Text))
	}
	return comments
}

// PlainText reduces HN comment markup (<p>, <a>, <i>, entities) to text,
// keeping paragraph breaks.
func PlainText(markup string) string {
	var b strings.Builder
	z := nethtml.NewTokenizer(strings.NewReader(markup))
	for {
		switch z.Next() {
		case nethtml.ErrorToken:
			return strings.TrimSpace(b.String())
		case nethtml.TextToken:
			b.Write(z.Text())
		case nethtml.StartTagToken, nethtml.SelfClosingTagToken:
			if name, _ := z.TagName(); string(name) == "p" && b.Len() > 0 {
				b.WriteString("\n\n")
			}
		}
	}
}
