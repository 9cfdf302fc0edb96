package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/c360studio/semdigest/llm"
	_ "github.com/c360studio/semdigest/llm/providers"
	"github.com/c360studio/semdigest/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openAIHandler(t *testing.T, content string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test-model", body["model"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model": "test-model",
			"choices": []map[string]any{{
				"message":       map[string]string{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
			"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	}
}

func newTestClient(registry *model.Registry) *llm.Client {
	return llm.NewClient(registry,
		llm.WithRetryConfig(llm.RetryConfig{MaxAttempts: 2, BackoffBase: time.Millisecond, BackoffMultiplier: 1, MaxBackoff: time.Millisecond}),
		llm.WithGetenv(func(string) string { return "test-key" }),
	)
}

func registryFor(urls ...string) *model.Registry {
	endpoints := make(map[string]*model.EndpointConfig)
	names := make([]string, 0, len(urls))
	for i, u := range urls {
		name := string(rune('a' + i))
		endpoints[name] = &model.EndpointConfig{Provider: "openai", URL: u + "/v1", Model: "test-model"}
		names = append(names, name)
	}
	return model.NewRegistry(map[model.Capability]*model.CapabilityConfig{
		model.CapabilitySummarization: {Preferred: names},
	}, endpoints)
}

func TestClient_Complete(t *testing.T) {
	server := httptest.NewServer(openAIHandler(t, "A short summary."))
	defer server.Close()

	client := newTestClient(registryFor(server.URL))
	resp, err := client.Complete(context.Background(), llm.Request{
		Capability:  "summarization",
		Messages:    []llm.Message{{Role: "user", Content: "Summarize this"}},
		Temperature: llm.Temperature(0),
	})
	require.NoError(t, err)

	assert.Equal(t, "A short summary.", resp.Content)
	assert.Equal(t, "a", resp.Endpoint)
	assert.Equal(t, 15, resp.Usage.TotalTokens)
	assert.NotEmpty(t, resp.RequestID)
}

func TestClient_FallbackOnTransientError(t *testing.T) {
	var failing atomic.Int32
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		failing.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()
	up := httptest.NewServer(openAIHandler(t, "from fallback"))
	defer up.Close()

	client := newTestClient(registryFor(down.URL, up.URL))
	resp, err := client.Complete(context.Background(), llm.Request{
		Capability: "summarization",
		Messages:   []llm.Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "from fallback", resp.Content)
	assert.Equal(t, "b", resp.Endpoint)
	assert.Equal(t, int32(2), failing.Load(), "transient errors are retried before falling back")
}

func TestClient_FatalErrorStopsFallback(t *testing.T) {
	var secondCalled atomic.Bool
	unauthorized := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"bad key"}`))
	}))
	defer unauthorized.Close()
	second := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		secondCalled.Store(true)
	}))
	defer second.Close()

	client := newTestClient(registryFor(unauthorized.URL, second.URL))
	_, err := client.Complete(context.Background(), llm.Request{
		Capability: "summarization",
		Messages:   []llm.Message{{Role: "user", Content: "hi"}},
	})
	require.Error(t, err)

	assert.True(t, llm.IsFatal(err))
	assert.Contains(t, err.Error(), "status 401")
	assert.False(t, secondCalled.Load())
}

func TestClient_Validation(t *testing.T) {
	client := newTestClient(model.NewDefaultRegistry())

	_, err := client.Complete(context.Background(), llm.Request{Messages: []llm.Message{{Role: "user", Content: "x"}}})
	assert.ErrorContains(t, err, "capability is required")

	_, err = client.Complete(context.Background(), llm.Request{Capability: "summarization"})
	assert.ErrorContains(t, err, "at least one message")
}

func TestClient_UnknownProviderIsFatal(t *testing.T) {
	registry := model.NewRegistry(
		map[model.Capability]*model.CapabilityConfig{model.CapabilityTagging: {Preferred: []string{"x"}}},
		map[string]*model.EndpointConfig{"x": {Provider: "carrier-pigeon", Model: "m"}},
	)

	_, err := newTestClient(registry).Complete(context.Background(), llm.Request{
		Capability: "tagging",
		Messages:   []llm.Message{{Role: "user", Content: "x"}},
	})
	require.Error(t, err)
	assert.True(t, llm.IsFatal(err))
}
