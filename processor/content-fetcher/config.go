package contentfetcher

import (
	"fmt"
	"time"
)

// Extraction modes.
const (
	ModeText     = "text"
	ModeMarkdown = "markdown"
)

// Config holds the content_fetcher args.
type Config struct {
	// Mode is text (visible text, whitespace collapsed) or markdown
	// (main content area converted to markdown).
	Mode string `json:"mode"`

	// Timeout bounds the whole request, as a Go duration string.
	Timeout string `json:"timeout"`

	// MaxChars truncates the extracted content, counted in runes.
	MaxChars int `json:"max_chars"`

	// MaxContentSize is the largest response body accepted, in bytes.
	MaxContentSize int64 `json:"max_content_size"`

	UserAgent string `json:"user_agent"`

	// AllowHTTP permits plain http article URLs.
	AllowHTTP bool `json:"allow_http"`

	// AllowPrivate permits loopback and private network targets.
	AllowPrivate bool `json:"allow_private"`
}

// DefaultConfig mirrors a plain GET with a 10s timeout and a 4000 character cap.
func DefaultConfig() Config {
	return Config{
		Mode:           ModeText,
		Timeout:        "10s",
		MaxChars:       4000,
		MaxContentSize: 5 * 1024 * 1024,
		UserAgent:      "semdigest-content-fetcher/1.0",
		AllowHTTP:      true,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeText, ModeMarkdown:
	default:
		return fmt.Errorf("mode must be %q or %q, got %q", ModeText, ModeMarkdown, c.Mode)
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout format: %w", err)
	}
	if c.MaxChars <= 0 {
		return fmt.Errorf("max_chars must be positive")
	}
	if c.MaxContentSize <= 0 {
		return fmt.Errorf("max_content_size must be positive")
	}
	return nil
}

// GetTimeout returns the parsed timeout.
func (c *Config) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}
