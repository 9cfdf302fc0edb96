package model

import (
	"sync"
	"time"
)

// EndpointHealth is a snapshot of an endpoint's circuit breaker.
type EndpointHealth struct {
	LastSuccess  time.Time `json:"last_success,omitempty"`
	LastFailure  time.Time `json:"last_failure,omitempty"`
	FailureCount int       `json:"failure_count"`
	CircuitOpen  bool      `json:"circuit_open"`
	OpenedAt     time.Time `json:"opened_at,omitempty"`
}

// HealthConfig configures the per-endpoint circuit breaker.
type HealthConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit.
	FailureThreshold int

	// RecoveryTimeout is how long an open circuit rejects an endpoint
	// before a trial request is let through.
	RecoveryTimeout time.Duration
}

// DefaultHealthConfig returns the breaker settings used by NewRegistry.
func DefaultHealthConfig() HealthConfig {
	return HealthConfig{
		FailureThreshold: 3,
		RecoveryTimeout:  30 * time.Second,
	}
}

type healthState struct {
	mu       sync.Mutex
	config   HealthConfig
	statuses map[string]*EndpointHealth
	now      func() time.Time
}

func newHealthState(cfg HealthConfig) *healthState {
	return &healthState{
		config:   cfg,
		statuses: make(map[string]*EndpointHealth),
		now:      time.Now,
	}
}

func (h *healthState) status(name string) *EndpointHealth {
	s, ok := h.statuses[name]
	if !ok {
		s = &EndpointHealth{}
		h.statuses[name] = s
	}
	return s
}

// MarkEndpointSuccess closes the endpoint's circuit and resets its failure count.
func (r *Registry) MarkEndpointSuccess(name string) {
	r.health.mu.Lock()
	defer r.health.mu.Unlock()

	s := r.health.status(name)
	s.LastSuccess = r.health.now()
	s.FailureCount = 0
	s.CircuitOpen = false
}

// MarkEndpointFailure records a failure and opens the circuit at the threshold.
func (r *Registry) MarkEndpointFailure(name string) {
	r.health.mu.Lock()
	defer r.health.mu.Unlock()

	s := r.health.status(name)
	s.LastFailure = r.health.now()
	s.FailureCount++
	if s.FailureCount >= r.health.config.FailureThreshold && !s.CircuitOpen {
		s.CircuitOpen = true
		s.OpenedAt = s.LastFailure
	}
}

// IsEndpointAvailable reports whether requests may be sent to the endpoint.
// An open circuit becomes half-open once RecoveryTimeout has elapsed.
func (r *Registry) IsEndpointAvailable(name string) bool {
	r.health.mu.Lock()
	defer r.health.mu.Unlock()

	s, ok := r.health.statuses[name]
	if !ok || !s.CircuitOpen {
		return true
	}
	return r.health.now().Sub(s.OpenedAt) > r.health.config.RecoveryTimeout
}

// GetEndpointHealth returns a copy of the endpoint's health, or nil if it has
// never been used.
func (r *Registry) GetEndpointHealth(name string) *EndpointHealth {
	r.health.mu.Lock()
	defer r.health.mu.Unlock()

	s, ok := r.health.statuses[name]
	if !ok {
		return nil
	}
	snapshot := *s
	return &snapshot
}

// GetAvailableFallbackChain returns the capability's fallback chain without
// endpoints whose circuit is open. When every endpoint is open the full chain
// is returned.
func (r *Registry) GetAvailableFallbackChain(cap Capability) []string {
	chain := r.GetFallbackChain(cap)
	available := make([]string, 0, len(chain))
	for _, name := range chain {
		if r.IsEndpointAvailable(name) {
			available = append(available, name)
		}
	}
	if len(available) == 0 {
		return chain
	}
	return available
}

// SetHealthConfig replaces the breaker settings.
func (r *Registry) SetHealthConfig(cfg HealthConfig) {
	r.health.mu.Lock()
	defer r.health.mu.Unlock()

	r.health.config = cfg
}

// ResetEndpointHealth forgets everything known about an endpoint.
func (r *Registry) ResetEndpointHealth(name string) {
	r.health.mu.Lock()
	defer r.health.mu.Unlock()

	delete(r.health.statuses, name)
}
