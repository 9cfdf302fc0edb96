package hackernews

import (
	"fmt"
	"time"
)

// Config holds the hackernews source args.
type Config struct {
	// List is the story ranking to read: best, top or new.
	List string `json:"list"`

	// Limit caps how many ranked IDs are fetched.
	Limit int `json:"limit"`

	// Comments is the number of top-level comments fetched per story (0 = none).
	Comments int `json:"comments"`

	// BaseURL is the Firebase API root.
	BaseURL string `json:"base_url"`

	// Timeout bounds each API request, as a Go duration string.
	Timeout string `json:"timeout"`

	// Concurrency bounds parallel item requests.
	Concurrency int `json:"concurrency"`
}

// DefaultConfig returns the top 25 "best" stories without comments.
func DefaultConfig() Config {
	return Config{
		List:        "best",
		Limit:       25,
		BaseURL:     "https://hacker-news.firebaseio.com/v0",
		Timeout:     "10s",
		Concurrency: 8,
	}
}

// Validate checks the config.
func (c *Config) Validate() error {
	switch c.List {
	case "best", "top", "new":
	default:
		return fmt.Errorf("list must be best, top or new, got %q", c.List)
	}
	if c.Limit < 1 {
		return fmt.Errorf("limit must be positive")
	}
	if c.Comments < 0 {
		return fmt.Errorf("comments must not be negative")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be positive")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	return nil
}

// GetTimeout returns the parsed request timeout.
func (c *Config) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}
