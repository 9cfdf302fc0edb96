// Package nats is a sink that publishes each payload to a NATS subject,
// optionally through a JetStream stream for durable, de-duplicated delivery.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/c360studio/semdigest/pipeline"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Name is the registered sink type.
const Name = "nats"

// Metadata headers set on every message.
const (
	HeaderRunID       = "Semdigest-Run-Id"
	HeaderItemID      = "Semdigest-Item-Id"
	HeaderTitle       = "Semdigest-Title"
	HeaderArticles    = "Semdigest-Articles"
	HeaderGeneratedAt = "Semdigest-Generated-At"
	HeaderContentType = "Content-Type"
)

// Config holds the nats sink args.
type Config struct {
	Subject string `json:"subject"`

	// Stream, when set, is created or updated to capture Subject and
	// messages are published through JetStream with a per-delivery
	// Nats-Msg-Id.
	Stream string `json:"stream"`

	Timeout string `json:"timeout"`
}

// DefaultConfig returns the default nats sink config.
func DefaultConfig() Config {
	return Config{Subject: "semdigest.digests", Timeout: "5s"}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Subject == "" {
		return fmt.Errorf("subject is required")
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout format: %w", err)
	}
	return nil
}

// Sink publishes payloads.
type Sink struct {
	cfg     Config
	conn    *nats.Conn
	js      jetstream.JetStream
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a sink on conn, ensuring the stream when one is configured.
func New(ctx context.Context, cfg Config, conn *nats.Conn, logger *slog.Logger) (*Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, fmt.Errorf("%w: NATS connection", pipeline.ErrMissingDependency)
	}
	if logger == nil {
		logger = slog.Default()
	}
	timeout, _ := time.ParseDuration(cfg.Timeout)

	s := &Sink{cfg: cfg, conn: conn, timeout: timeout, logger: logger}
	if cfg.Stream == "" {
		return s, nil
	}

	js, err := jetstream.New(conn)
	if err != nil {
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if _, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     cfg.Stream,
		Subjects: []string{cfg.Subject},
	}); err != nil {
		return nil, fmt.Errorf("ensure stream %s: %w", cfg.Stream, err)
	}
	s.js = js
	return s, nil
}

// NewComponent is the pipeline factory for nats.
func NewComponent(args json.RawMessage, deps pipeline.Dependencies) (pipeline.Sink, error) {
	cfg := DefaultConfig()
	if err := pipeline.DecodeArgs(args, &cfg); err != nil {
		return nil, err
	}
	return New(context.Background(), cfg, deps.NATS, deps.ComponentLogger(Name))
}

// Deliver implements pipeline.Sink.
func (s *Sink) Deliver(ctx context.Context, payload string, meta pipeline.Metadata) bool {
	msg := s.message(payload, meta)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var err error
	if s.js != nil {
		_, err = s.js.PublishMsg(ctx, msg, jetstream.WithMsgID(msgID(meta)))
	} else {
		if err = s.conn.PublishMsg(msg); err == nil {
			err = s.conn.FlushWithContext(ctx)
		}
	}
	if err != nil {
		s.logger.Error("Failed to publish digest", "subject", s.cfg.Subject, "title", meta.Title, "error", err)
		return false
	}

	s.logger.Debug("Published digest", "subject", s.cfg.Subject, "title", meta.Title)
	return true
}

func (s *Sink) message(payload string, meta pipeline.Metadata) *nats.Msg {
	msg := nats.NewMsg(s.cfg.Subject)
	msg.Data = []byte(payload)

	contentType := "text/markdown; charset=utf-8"
	if pipeline.LooksLikeHTML(payload) {
		contentType = "text/html; charset=utf-8"
	}
	msg.Header.Set(HeaderContentType, contentType)
	msg.Header.Set(HeaderRunID, meta.RunID)
	if meta.ID != 0 {
		msg.Header.Set(HeaderItemID, strconv.FormatInt(meta.ID, 10))
	}
	if meta.Title != "" {
		msg.Header.Set(HeaderTitle, meta.Title)
	}
	msg.Header.Set(HeaderArticles, strconv.Itoa(meta.Articles))
	if !meta.GeneratedAt.IsZero() {
		msg.Header.Set(HeaderGeneratedAt, meta.GeneratedAt.UTC().Format(time.RFC3339))
	}
	return msg
}

// msgID identifies one delivery so JetStream drops redelivered duplicates.
func msgID(meta pipeline.Metadata) string {
	if meta.ID != 0 {
		return meta.RunID + "." + strconv.FormatInt(meta.ID, 10)
	}
	return meta.RunID
}
