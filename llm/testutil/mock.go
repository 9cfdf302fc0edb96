// Package testutil provides test doubles for the llm package.
package testutil

import (
	"context"
	"sync"

	"github.com/c360studio/semdigest/llm"
)

// MockLLMClient is a thread-safe llm.Completer for tests.
//
// Reply, when set, computes the response from the request; otherwise
// Responses are returned in sequence. Err takes precedence over both.
type MockLLMClient struct {
	mu            sync.Mutex
	Responses     []*llm.Response
	Reply         func(req llm.Request) (string, error)
	Err           error
	requests      []llm.Request
	responseIndex int
}

// Complete implements llm.Completer.
func (m *MockLLMClient) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)

	if m.Err != nil {
		return nil, m.Err
	}

	if m.Reply != nil {
		content, err := m.Reply(req)
		if err != nil {
			return nil, err
		}
		return &llm.Response{Content: content, Model: "test-model"}, nil
	}

	if m.responseIndex < len(m.Responses) {
		resp := m.Responses[m.responseIndex]
		m.responseIndex++
		return resp, nil
	}

	return &llm.Response{Content: "", Model: "test-model"}, nil
}

// GetCallCount returns the number of Complete calls.
func (m *MockLLMClient) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns a copy of every request received.
func (m *MockLLMClient) Requests() []llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]llm.Request(nil), m.requests...)
}

// Reset clears recorded requests and the response cursor.
func (m *MockLLMClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
	m.responseIndex = 0
}
