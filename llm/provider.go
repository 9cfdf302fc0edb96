package llm

import (
	"net/http"
	"sort"
	"sync"
)

// Provider adapts the client to one completion wire format.
type Provider interface {
	// Name is the identifier used in EndpointConfig.Provider.
	Name() string

	// APIKeyEnv is the environment variable conventionally holding the key.
	APIKeyEnv() string

	BuildURL(baseURL string) string

	// SetHeaders adds authentication and provider headers. apiKey may be empty.
	SetHeaders(req *http.Request, apiKey string)

	BuildRequestBody(model string, messages []Message, temperature *float64, maxTokens int) ([]byte, error)

	ParseResponse(body []byte) (*Response, error)
}

var (
	providerRegistry = make(map[string]Provider)
	providerMu       sync.RWMutex
)

// RegisterProvider adds a provider. A later registration with the same name wins.
func RegisterProvider(p Provider) {
	providerMu.Lock()
	defer providerMu.Unlock()
	providerRegistry[p.Name()] = p
}

// GetProvider returns the provider registered under name, or nil.
func GetProvider(name string) Provider {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return providerRegistry[name]
}

// ListProviders returns the registered provider names, sorted.
func ListProviders() []string {
	providerMu.RLock()
	defer providerMu.RUnlock()

	names := make([]string, 0, len(providerRegistry))
	for name := range providerRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
