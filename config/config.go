// Package config loads the semdigest YAML document: the four pipeline
// sections plus the runtime, index, NATS, model and metrics settings.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/c360studio/semdigest/model"
	"gopkg.in/yaml.v3"
)

// DefaultWorkers is the worker pool size when neither the config file nor
// MAX_WORKER_THREADS sets one.
const DefaultWorkers = 4

// Delivery modes for the post-processing pass.
const (
	DeliveryPerRecord = "per_record"
	DeliveryOnce      = "once"
)

// Index backends.
const (
	IndexNATS   = "nats"
	IndexSQLite = "sqlite"
	IndexMemory = "memory"
	IndexNone   = "none"
)

// Config is the complete semdigest configuration.
type Config struct {
	Pipeline PipelineConfig `yaml:",inline"`

	Runtime RuntimeConfig         `yaml:"runtime"`
	Index   IndexConfig           `yaml:"index"`
	NATS    NATSConfig            `yaml:"nats"`
	Models  *model.RegistryConfig `yaml:"models,omitempty"`
	Metrics MetricsConfig         `yaml:"metrics"`
}

// PipelineConfig names the component for each pipeline section.
// Sections are not validated here; the pipeline builder reports missing or
// unknown types as configuration errors.
type PipelineConfig struct {
	Source       *ComponentSpec   `yaml:"source"`
	Transformers []*ComponentSpec `yaml:"transformers"`
	Formatter    *ComponentSpec   `yaml:"formatter"`
	Destination  *ComponentSpec   `yaml:"destination"`
}

// ComponentSpec selects a registered component type and its constructor args.
type ComponentSpec struct {
	Type string         `yaml:"type"`
	Args map[string]any `yaml:"args,omitempty"`
}

// RawArgs returns Args as a JSON object for the component's constructor.
func (s *ComponentSpec) RawArgs() (json.RawMessage, error) {
	if len(s.Args) == 0 {
		return json.RawMessage("{}"), nil
	}
	data, err := json.Marshal(s.Args)
	if err != nil {
		return nil, fmt.Errorf("encode args for %q: %w", s.Type, err)
	}
	return data, nil
}

// RuntimeConfig configures batch execution.
type RuntimeConfig struct {
	// Workers is the orchestrator pool size, read once per run.
	Workers int `yaml:"workers"`

	// Delivery is per_record (one delivery per processed record, each carrying
	// that record as metadata) or once (a single delivery per run).
	Delivery string `yaml:"delivery"`
}

// IndexConfig selects the durable article index.
type IndexConfig struct {
	Backend string `yaml:"backend"`

	// Bucket is the JetStream KV bucket for the nats backend.
	Bucket string `yaml:"bucket"`

	// Path is the database file for the sqlite backend.
	Path string `yaml:"path"`
}

// NATSConfig configures the NATS connection.
type NATSConfig struct {
	// URL is the NATS server URL (empty = use embedded server).
	URL string `yaml:"url"`

	Embedded bool `yaml:"embedded"`

	// StoreDir holds JetStream data for the embedded server.
	StoreDir string `yaml:"store_dir"`
}

// MetricsConfig configures metric export.
type MetricsConfig struct {
	// Textfile, when set, receives the run's metrics in Prometheus text format.
	Textfile string `yaml:"textfile"`
}

// DefaultConfig returns a Config with defaults for every non-pipeline section.
func DefaultConfig() *Config {
	return &Config{
		Runtime: RuntimeConfig{
			Workers:  DefaultWorkers,
			Delivery: DeliveryPerRecord,
		},
		Index: IndexConfig{
			Backend: IndexNATS,
			Bucket:  "SEMDIGEST_ARTICLES",
			Path:    filepath.Join(".semdigest", "index.db"),
		},
		NATS: NATSConfig{
			Embedded: true,
			StoreDir: filepath.Join(".semdigest", "nats"),
		},
	}
}

// StarterConfig returns DefaultConfig with a complete Hacker News digest
// pipeline, the document written by "semdigest init".
func StarterConfig() *Config {
	cfg := DefaultConfig()
	cfg.Pipeline = PipelineConfig{
		Source: &ComponentSpec{Type: "hackernews", Args: map[string]any{"list": "best", "limit": 25}},
		Transformers: []*ComponentSpec{
			{Type: "content_fetcher"},
			{Type: "summarizer"},
			{Type: "content_tagger", Args: map[string]any{"available_tags": []string{"AI", "Programming", "Security", "Startups"}}},
		},
		Formatter:   &ComponentSpec{Type: "html"},
		Destination: &ComponentSpec{Type: "file", Args: map[string]any{"output_dir": "output"}},
	}
	cfg.Runtime.Delivery = DeliveryOnce
	return cfg
}

// Validate checks the non-pipeline sections.
func (c *Config) Validate() error {
	if c.Runtime.Workers < 1 {
		return fmt.Errorf("runtime.workers must be at least 1, got %d", c.Runtime.Workers)
	}
	switch c.Runtime.Delivery {
	case DeliveryPerRecord, DeliveryOnce:
	default:
		return fmt.Errorf("runtime.delivery must be %q or %q, got %q", DeliveryPerRecord, DeliveryOnce, c.Runtime.Delivery)
	}

	switch c.Index.Backend {
	case IndexNATS:
		if c.Index.Bucket == "" {
			return fmt.Errorf("index.bucket is required for the nats backend")
		}
	case IndexSQLite:
		if c.Index.Path == "" {
			return fmt.Errorf("index.path is required for the sqlite backend")
		}
	case IndexMemory, IndexNone:
	default:
		return fmt.Errorf("unknown index.backend %q", c.Index.Backend)
	}

	if c.Models != nil {
		if err := c.Models.Validate(); err != nil {
			return fmt.Errorf("models: %w", err)
		}
	}
	return nil
}

// NeedsNATS reports whether the configured index or destination uses NATS.
func (c *Config) NeedsNATS() bool {
	if c.Index.Backend == IndexNATS {
		return true
	}
	return c.Pipeline.Destination != nil && c.Pipeline.Destination.Type == "nats"
}

// Parse decodes a YAML document over the defaults. ${VAR} and ${VAR:-default}
// references must already be expanded.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// SaveToFile writes the configuration as YAML.
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
