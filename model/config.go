package model

import "fmt"

// RegistryConfig is the "models" section of the semdigest config file.
type RegistryConfig struct {
	Capabilities map[string]*CapabilityConfig `yaml:"capabilities" json:"capabilities"`
	Endpoints    map[string]*EndpointConfig   `yaml:"endpoints" json:"endpoints"`
	Default      string                       `yaml:"default,omitempty" json:"default,omitempty"`
}

// Validate checks that every endpoint referenced by a capability is defined.
func (c *RegistryConfig) Validate() error {
	for name, ep := range c.Endpoints {
		if ep == nil {
			return fmt.Errorf("endpoint %q: empty definition", name)
		}
		if ep.Model == "" {
			return fmt.Errorf("endpoint %q: model is required", name)
		}
		switch ep.Provider {
		case "openai", "ollama", "anthropic":
		default:
			return fmt.Errorf("endpoint %q: unsupported provider %q", name, ep.Provider)
		}
	}
	for cap, cfg := range c.Capabilities {
		if cfg == nil {
			continue
		}
		for _, name := range append(append([]string{}, cfg.Preferred...), cfg.Fallback...) {
			if _, ok := c.Endpoints[name]; !ok {
				return fmt.Errorf("capability %q references unknown endpoint %q", cap, name)
			}
		}
	}
	if c.Default != "" {
		if _, ok := c.Endpoints[c.Default]; !ok {
			return fmt.Errorf("default endpoint %q is not defined", c.Default)
		}
	}
	return nil
}

// FromConfig builds a registry from configuration. A nil or empty config
// yields the default registry.
func FromConfig(cfg *RegistryConfig) *Registry {
	if cfg == nil || len(cfg.Endpoints) == 0 {
		return NewDefaultRegistry()
	}

	caps := make(map[Capability]*CapabilityConfig, len(cfg.Capabilities))
	for k, v := range cfg.Capabilities {
		caps[ParseCapability(k)] = v
	}

	r := NewRegistry(caps, cfg.Endpoints)
	switch {
	case cfg.Default != "":
		r.SetDefault(cfg.Default)
	default:
		// Any configured endpoint beats a built-in name that is not defined here.
		if names := r.ListEndpoints(); len(names) > 0 {
			r.SetDefault(names[0])
		}
	}
	return r
}
