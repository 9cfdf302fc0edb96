package contenttagger

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/c360studio/semdigest/model"
)

// DefaultScoreThreshold is the minimum relevance kept when neither args nor
// TAG_SCORE_THRESHOLD set one.
const DefaultScoreThreshold = 0.6

// Config holds the content_tagger args.
type Config struct {
	// AvailableTags is the tag vocabulary. Empty falls back to the
	// comma-separated AVAILABLE_TAGS environment variable.
	AvailableTags []string `json:"available_tags"`

	// ScoreThreshold is the lowest score kept. Unset falls back to
	// TAG_SCORE_THRESHOLD, then DefaultScoreThreshold.
	ScoreThreshold *float64 `json:"score_threshold"`

	// MaxContentChars bounds how much content goes into the prompt.
	MaxContentChars int `json:"max_content_chars"`

	Capability string `json:"capability"`
}

// DefaultConfig returns the default tagger config.
func DefaultConfig() Config {
	return Config{
		MaxContentChars: 2000,
		Capability:      string(model.CapabilityTagging),
	}
}

// applyEnv fills unset fields from the environment.
func (c *Config) applyEnv(getenv func(string) string) error {
	if len(c.AvailableTags) == 0 {
		c.AvailableTags = splitTags(getenv("AVAILABLE_TAGS"))
	}
	if c.ScoreThreshold == nil {
		threshold := DefaultScoreThreshold
		if v := strings.TrimSpace(getenv("TAG_SCORE_THRESHOLD")); v != "" {
			parsed, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("TAG_SCORE_THRESHOLD: %w", err)
			}
			threshold = parsed
		}
		c.ScoreThreshold = &threshold
	}
	return nil
}

// Threshold returns the effective score threshold.
func (c *Config) Threshold() float64 {
	if c.ScoreThreshold == nil {
		return DefaultScoreThreshold
	}
	return *c.ScoreThreshold
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if t := c.Threshold(); t < 0 || t > 1 {
		return fmt.Errorf("score_threshold must be within [0, 1], got %v", t)
	}
	if c.MaxContentChars <= 0 {
		return fmt.Errorf("max_content_chars must be positive")
	}
	if !model.Capability(c.Capability).IsValid() {
		return fmt.Errorf("unknown capability %q", c.Capability)
	}
	return nil
}

func splitTags(s string) []string {
	var tags []string
	for _, tag := range strings.Split(s, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
