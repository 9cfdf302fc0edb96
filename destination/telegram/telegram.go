// Package telegram is a sink that posts each payload to a chat through the
// Telegram Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/c360studio/semdigest/pipeline"
)

// Name is the registered sink type.
const Name = "telegram"

// MaxMessageRunes is the Bot API message length limit.
const MaxMessageRunes = 4096

// Config holds the telegram sink args.
type Config struct {
	BotToken string `json:"bot_token"`
	ChatID   string `json:"chat_id"`

	// APIURL is the Bot API root, overridable for tests and proxies.
	APIURL string `json:"api_url"`

	Timeout string `json:"timeout"`
}

// DefaultConfig returns the default telegram config.
func DefaultConfig() Config {
	return Config{APIURL: "https://api.telegram.org", Timeout: "15s"}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch {
	case c.BotToken == "":
		return fmt.Errorf("bot_token is required")
	case c.ChatID == "":
		return fmt.Errorf("chat_id is required")
	case c.APIURL == "":
		return fmt.Errorf("api_url is required")
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout format: %w", err)
	}
	return nil
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Sink sends one message per delivery. HTML payloads are reduced to their
// body and sent in HTML parse mode, anything else in Markdown mode.
type Sink struct {
	endpoint string
	chatID   string
	client   *http.Client
	logger   *slog.Logger
}

// New creates a telegram sink. A nil client gets one with the configured timeout.
func New(cfg Config, client *http.Client, logger *slog.Logger) (*Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if client == nil {
		timeout, _ := time.ParseDuration(cfg.Timeout)
		client = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{
		endpoint: strings.TrimRight(cfg.APIURL, "/") + "/bot" + cfg.BotToken + "/sendMessage",
		chatID:   cfg.ChatID,
		client:   client,
		logger:   logger,
	}, nil
}

// NewComponent is the pipeline factory for telegram.
func NewComponent(args json.RawMessage, deps pipeline.Dependencies) (pipeline.Sink, error) {
	cfg := DefaultConfig()
	if err := pipeline.DecodeArgs(args, &cfg); err != nil {
		return nil, err
	}
	return New(cfg, deps.HTTPClient, deps.ComponentLogger(Name))
}

// Deliver implements pipeline.Sink.
func (s *Sink) Deliver(ctx context.Context, payload string, meta pipeline.Metadata) bool {
	if err := s.send(ctx, payload); err != nil {
		// The endpoint embeds the bot token; never log it.
		s.logger.Error("Failed to send telegram message", "chat_id", s.chatID, "title", meta.Title, "error", err)
		return false
	}
	s.logger.Info("Sent telegram message", "chat_id", s.chatID, "title", meta.Title)
	return true
}

func (s *Sink) send(ctx context.Context, payload string) error {
	body, err := json.Marshal(buildMessage(s.chatID, payload))
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		// url.Error carries the token-bearing URL.
		return fmt.Errorf("post sendMessage: %w", unwrapURLError(err))
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var api apiResponse
	_ = json.Unmarshal(respBody, &api)

	if resp.StatusCode != http.StatusOK || !api.OK {
		if api.Description != "" {
			return fmt.Errorf("HTTP %d: %s", resp.StatusCode, api.Description)
		}
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return nil
}

func buildMessage(chatID, payload string) sendMessageRequest {
	mode := "Markdown"
	text := payload
	if pipeline.LooksLikeHTML(payload) {
		mode = "HTML"
		text = pipeline.HTMLBody(payload)
	}
	return sendMessageRequest{ChatID: chatID, Text: capMessage(text), ParseMode: mode}
}

// capMessage keeps text within MaxMessageRunes, marking the cut with "...".
func capMessage(text string) string {
	runes := []rune(text)
	if len(runes) <= MaxMessageRunes {
		return text
	}
	return string(runes[:MaxMessageRunes-3]) + "..."
}

func unwrapURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}
