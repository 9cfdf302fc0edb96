package model

import (
	"sort"
	"sync"
)

// Registry resolves capabilities to model endpoints.
// It is safe for concurrent use; stages running on different workers share one registry.
type Registry struct {
	mu           sync.RWMutex
	capabilities map[Capability]*CapabilityConfig
	endpoints    map[string]*EndpointConfig
	defaultModel string
	health       *healthState
}

// CapabilityConfig defines model preferences for a capability.
type CapabilityConfig struct {
	Description string `yaml:"description" json:"description"`

	// Preferred lists endpoint names in order of preference.
	Preferred []string `yaml:"preferred" json:"preferred"`

	// Fallback lists backup endpoints tried after every preferred one.
	Fallback []string `yaml:"fallback" json:"fallback"`
}

// EndpointConfig defines an available model endpoint.
type EndpointConfig struct {
	// Provider is the wire format: openai, ollama or anthropic.
	Provider string `yaml:"provider" json:"provider"`

	// URL is the API base URL. Empty uses the provider default.
	URL string `yaml:"url,omitempty" json:"url,omitempty"`

	// Model is the identifier sent to the provider.
	Model string `yaml:"model" json:"model"`

	// MaxTokens caps completion length.
	MaxTokens int `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`

	// APIKeyEnv names the environment variable holding the API key.
	// Empty uses the provider's conventional variable.
	APIKeyEnv string `yaml:"api_key_env,omitempty" json:"api_key_env,omitempty"`
}

// NewRegistry creates a registry from explicit capability and endpoint tables.
func NewRegistry(caps map[Capability]*CapabilityConfig, endpoints map[string]*EndpointConfig) *Registry {
	if caps == nil {
		caps = make(map[Capability]*CapabilityConfig)
	}
	if endpoints == nil {
		endpoints = make(map[string]*EndpointConfig)
	}
	return &Registry{
		capabilities: caps,
		endpoints:    endpoints,
		defaultModel: "gpt-mini",
		health:       newHealthState(DefaultHealthConfig()),
	}
}

// NewDefaultRegistry creates a registry used when the config has no models section:
// a hosted OpenAI model first, a local Ollama model as fallback.
func NewDefaultRegistry() *Registry {
	return NewRegistry(
		map[Capability]*CapabilityConfig{
			CapabilitySummarization: {
				Description: "Article and comment summaries",
				Preferred:   []string{"gpt-mini"},
				Fallback:    []string{"llama3.2"},
			},
			CapabilityTagging: {
				Description: "Tag classification with JSON output",
				Preferred:   []string{"gpt-mini"},
				Fallback:    []string{"llama3.2"},
			},
			CapabilityFast: {
				Description: "Quick responses, simple tasks",
				Preferred:   []string{"llama3.2"},
				Fallback:    []string{"gpt-mini"},
			},
		},
		map[string]*EndpointConfig{
			"gpt-mini": {
				Provider:  "openai",
				URL:       "https://api.openai.com/v1",
				Model:     "gpt-4o-mini",
				MaxTokens: 1024,
			},
			"llama3.2": {
				Provider:  "ollama",
				URL:       "http://localhost:11434/v1",
				Model:     "llama3.2",
				MaxTokens: 1024,
			},
		},
	)
}

// Resolve returns the first preferred endpoint for a capability.
func (r *Registry) Resolve(cap Capability) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if cfg, ok := r.capabilities[cap]; ok && len(cfg.Preferred) > 0 {
		return cfg.Preferred[0]
	}
	return r.defaultModel
}

// GetFallbackChain returns all endpoints for a capability in order of preference.
func (r *Registry) GetFallbackChain(cap Capability) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if cfg, ok := r.capabilities[cap]; ok {
		chain := make([]string, 0, len(cfg.Preferred)+len(cfg.Fallback))
		chain = append(chain, cfg.Preferred...)
		chain = append(chain, cfg.Fallback...)
		if len(chain) > 0 {
			return chain
		}
	}
	return []string{r.defaultModel}
}

// GetEndpoint returns the endpoint configuration for a name, or nil.
func (r *Registry) GetEndpoint(name string) *EndpointConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.endpoints[name]
}

// SetCapability updates or adds a capability configuration.
func (r *Registry) SetCapability(cap Capability, cfg *CapabilityConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.capabilities[cap] = cfg
}

// SetEndpoint updates or adds an endpoint configuration.
func (r *Registry) SetEndpoint(name string, cfg *EndpointConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.endpoints[name] = cfg
}

// SetDefault sets the endpoint used for capabilities with no configuration.
func (r *Registry) SetDefault(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.defaultModel = name
}

// ListCapabilities returns the configured capabilities, sorted.
func (r *Registry) ListCapabilities() []Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()

	caps := make([]Capability, 0, len(r.capabilities))
	for cap := range r.capabilities {
		caps = append(caps, cap)
	}
	sort.Slice(caps, func(i, j int) bool { return caps[i] < caps[j] })
	return caps
}

// ListEndpoints returns the configured endpoint names, sorted.
func (r *Registry) ListEndpoints() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.endpoints))
	for name := range r.endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
