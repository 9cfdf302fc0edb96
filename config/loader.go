package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	semconfig "github.com/c360studio/semstreams/config"
)

// ProjectConfigFile is looked up in the working directory and its parents
// when no explicit path is given.
const ProjectConfigFile = "semdigest.yaml"

// Environment overrides applied after the file is decoded.
const (
	EnvWorkers = "MAX_WORKER_THREADS"
	EnvNATSURL = "NATS_URL"
)

// ErrNoConfig is returned when no path is given and no project file exists.
var ErrNoConfig = errors.New("no config file found")

// Loader reads configuration files and applies environment overrides.
type Loader struct {
	logger *slog.Logger
	lookup func(string) (string, bool)
}

// NewLoader creates a loader that reads overrides from the process environment.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger, lookup: os.LookupEnv}
}

// Load reads path (or the nearest semdigest.yaml when path is empty),
// expands environment references, decodes it over the defaults, applies
// MAX_WORKER_THREADS and NATS_URL, and validates the result.
func (l *Loader) Load(path string) (*Config, error) {
	if path == "" {
		path = l.findProjectConfig()
		if path == "" {
			return nil, ErrNoConfig
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg, err := Parse([]byte(semconfig.ExpandEnvWithDefaults(string(data))))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	l.logger.Debug("Loaded config", slog.String("path", path))

	if err := l.applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (l *Loader) applyEnv(cfg *Config) error {
	if v, ok := l.lookup(EnvWorkers); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvWorkers, err)
		}
		l.logger.Debug("Worker count from environment", slog.Int("workers", n))
		cfg.Runtime.Workers = n
	}

	if v, ok := l.lookup(EnvNATSURL); ok && v != "" {
		cfg.NATS.URL = v
		cfg.NATS.Embedded = false
	}
	return nil
}

// findProjectConfig searches for semdigest.yaml in the current and parent directories.
func (l *Loader) findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		candidate := filepath.Join(dir, ProjectConfigFile)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
