package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/c360studio/semdigest/llm"
)

// OpenAIServer is an httptest server speaking the OpenAI chat completions
// wire format. Replies are routed by the request's "model" field.
//
// Each model owns a fixture sequence: the Nth call returns the Nth entry and
// the last entry repeats once the sequence is exhausted. Reply, when set,
// overrides fixtures for every model.
type OpenAIServer struct {
	*httptest.Server

	mu       sync.Mutex
	fixtures map[string][]string
	calls    map[string]int
	requests []CapturedRequest

	// Reply computes the assistant message for a request. A non-nil error
	// answers with HTTP 500 so the client retries and eventually fails.
	Reply func(model string, msgs []llm.Message) (string, error)
}

// CapturedRequest is one chat completion call received by the server.
type CapturedRequest struct {
	Model     string
	Messages  []llm.Message
	CallIndex int
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []llm.Message `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      llm.Message `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatResponse struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Created int64          `json:"created"`
	Model   string         `json:"model"`
	Choices []chatChoice   `json:"choices"`
	Usage   llm.TokenUsage `json:"usage"`
}

// NewOpenAIServer starts a fake server serving the given fixture sequences.
// It is closed when the test ends. Point an openai endpoint at URL()+"/v1".
func NewOpenAIServer(t testing.TB, fixtures map[string][]string) *OpenAIServer {
	t.Helper()

	s := &OpenAIServer{
		fixtures: make(map[string][]string, len(fixtures)),
		calls:    make(map[string]int),
	}
	for model, seq := range fixtures {
		s.fixtures[model] = append([]string(nil), seq...)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", s.handleChatCompletions)
	mux.HandleFunc("GET /v1/models", s.handleModels)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	})

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// BaseURL is the OpenAI-style base URL, including the /v1 prefix.
func (s *OpenAIServer) BaseURL() string {
	return s.URL + "/v1"
}

// Requests returns every captured call, optionally filtered by model.
func (s *OpenAIServer) Requests(model string) []CapturedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []CapturedRequest
	for _, r := range s.requests {
		if model == "" || r.Model == model {
			out = append(out, r)
		}
	}
	return out
}

// Calls returns the number of completions served for model.
func (s *OpenAIServer) Calls(model string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[model]
}

func (s *OpenAIServer) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.calls[req.Model]++
	callIndex := s.calls[req.Model]
	s.requests = append(s.requests, CapturedRequest{
		Model:     req.Model,
		Messages:  req.Messages,
		CallIndex: callIndex,
	})
	seq, ok := s.fixtures[req.Model]
	reply := s.Reply
	s.mu.Unlock()

	var content string
	switch {
	case reply != nil:
		out, err := reply(req.Model, req.Messages)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		content = out
	case !ok || len(seq) == 0:
		http.Error(w, fmt.Sprintf("no fixture for model %q", req.Model), http.StatusNotFound)
		return
	case callIndex <= len(seq):
		content = seq[callIndex-1]
	default:
		content = seq[len(seq)-1]
	}

	writeJSON(w, chatResponse{
		ID:      fmt.Sprintf("chatcmpl-%s-%d", req.Model, callIndex),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []chatChoice{{
			Message:      llm.Message{Role: "assistant", Content: content},
			FinishReason: "stop",
		}},
		Usage: llm.TokenUsage{
			PromptTokens:     len(content) / 4,
			CompletionTokens: len(content) / 4,
			TotalTokens:      len(content) / 2,
		},
	})
}

func (s *OpenAIServer) handleModels(w http.ResponseWriter, _ *http.Request) {
	type modelEntry struct {
		ID      string `json:"id"`
		Object  string `json:"object"`
		OwnedBy string `json:"owned_by"`
	}

	s.mu.Lock()
	names := make([]string, 0, len(s.fixtures))
	for name := range s.fixtures {
		names = append(names, name)
	}
	s.mu.Unlock()
	sort.Strings(names)

	data := make([]modelEntry, 0, len(names))
	for _, name := range names {
		data = append(data, modelEntry{ID: name, Object: "model", OwnedBy: "semdigest-test"})
	}
	writeJSON(w, map[string]any{"object": "list", "data": data})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
