// Package llm provides a provider-agnostic completion client with retry and
// fallback across the endpoints configured in a model.Registry.
package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"time"

	"github.com/c360studio/semdigest/model"
	"github.com/google/uuid"
)

// maxResponseSize limits the completion body read from a provider.
const maxResponseSize = 10 * 1024 * 1024

// Completer is the narrow interface LLM-backed stages depend on.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Client is a provider-agnostic LLM client with retry and fallback support.
type Client struct {
	registry    *model.Registry
	httpClient  *http.Client
	retryConfig RetryConfig
	logger      *slog.Logger
	getenv      func(string) string
}

// Message is a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request defines a completion request.
type Request struct {
	// Capability selects the endpoint chain ("summarization", "tagging", ...).
	Capability string

	Messages []Message

	// Temperature nil uses the endpoint default; 0 is deterministic.
	Temperature *float64

	// MaxTokens 0 uses the endpoint's configured limit.
	MaxTokens int
}

// TokenUsage reports token consumption for one call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a completion result.
type Response struct {
	RequestID    string
	Content      string
	Model        string
	Endpoint     string
	Usage        TokenUsage
	FinishReason string
}

// Temperature returns a pointer to t for use in Request.Temperature.
func Temperature(t float64) *float64 {
	return &t
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithRetryConfig sets the retry configuration.
func WithRetryConfig(cfg RetryConfig) ClientOption {
	return func(client *Client) {
		client.retryConfig = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(client *Client) {
		client.logger = logger
	}
}

// WithGetenv overrides how API keys are looked up.
func WithGetenv(getenv func(string) string) ClientOption {
	return func(client *Client) {
		client.getenv = getenv
	}
}

// NewClient creates a client that resolves endpoints through registry.
func NewClient(registry *model.Registry, opts ...ClientOption) *Client {
	c := &Client{
		registry:    registry,
		retryConfig: DefaultRetryConfig(),
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		logger: slog.Default(),
		getenv: os.Getenv,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Complete sends a completion request, walking the capability's fallback chain.
// Transient failures are retried per endpoint; a fatal failure stops the walk.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	if req.Capability == "" {
		return nil, fmt.Errorf("capability is required")
	}
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("at least one message is required")
	}

	requestID := uuid.New().String()
	chain := c.registry.GetAvailableFallbackChain(model.ParseCapability(req.Capability))

	var lastErr error
	for _, name := range chain {
		endpoint := c.registry.GetEndpoint(name)
		if endpoint == nil {
			c.logger.Debug("No endpoint for model, skipping", "model", name)
			continue
		}

		resp, err := c.tryEndpoint(ctx, endpoint, name, req)
		if err == nil {
			resp.RequestID = requestID
			resp.Endpoint = name
			return resp, nil
		}
		lastErr = err

		if IsFatal(err) {
			return nil, err
		}
		c.logger.Warn("Endpoint failed, trying fallback",
			"request_id", requestID,
			"model", name,
			"provider", endpoint.Provider,
			"error", err)
	}

	if lastErr == nil {
		return nil, fmt.Errorf("no endpoints configured for capability %s", req.Capability)
	}
	return nil, fmt.Errorf("all endpoints failed for capability %s: %w", req.Capability, lastErr)
}

func (c *Client) tryEndpoint(ctx context.Context, ep *model.EndpointConfig, name string, req Request) (*Response, error) {
	var lastErr error

	for attempt := 1; attempt <= c.retryConfig.MaxAttempts; attempt++ {
		resp, err := c.doRequest(ctx, ep, req)
		if err == nil {
			c.registry.MarkEndpointSuccess(name)
			return resp, nil
		}
		lastErr = err

		// Auth and request errors say nothing about endpoint health.
		if IsFatal(err) {
			return nil, err
		}

		if attempt < c.retryConfig.MaxAttempts {
			backoff := c.calculateBackoff(attempt)
			c.logger.Debug("Request failed, retrying",
				"attempt", attempt,
				"max_attempts", c.retryConfig.MaxAttempts,
				"backoff", backoff,
				"error", err)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	c.registry.MarkEndpointFailure(name)
	return nil, lastErr
}

// calculateBackoff computes exponential backoff with +/-25% jitter.
func (c *Client) calculateBackoff(attempt int) time.Duration {
	multiplier := 1.0
	for i := 1; i < attempt; i++ {
		multiplier *= c.retryConfig.BackoffMultiplier
	}

	backoff := time.Duration(float64(c.retryConfig.BackoffBase) * multiplier)
	if backoff > c.retryConfig.MaxBackoff {
		backoff = c.retryConfig.MaxBackoff
	}

	jitter := float64(backoff) * 0.25 * (rand.Float64()*2 - 1)
	return backoff + time.Duration(jitter)
}

func (c *Client) doRequest(ctx context.Context, ep *model.EndpointConfig, req Request) (*Response, error) {
	provider := GetProvider(ep.Provider)
	if provider == nil {
		return nil, NewFatalError(fmt.Errorf("unknown provider: %s", ep.Provider))
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = ep.MaxTokens
	}

	body, err := provider.BuildRequestBody(ep.Model, req.Messages, req.Temperature, maxTokens)
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("build request body: %w", err))
	}

	url := provider.BuildURL(ep.URL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("create HTTP request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	keyEnv := ep.APIKeyEnv
	if keyEnv == "" {
		keyEnv = provider.APIKeyEnv()
	}
	provider.SetHeaders(httpReq, c.getenv(keyEnv))

	c.logger.Debug("Sending LLM request",
		"provider", ep.Provider,
		"model", ep.Model,
		"messages", len(req.Messages))

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("HTTP request failed: %w", err))
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("read response body: %w", err))
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, classifyHTTPError(httpResp.StatusCode, respBody)
	}

	resp, err := provider.ParseResponse(respBody)
	if err != nil {
		return nil, NewFatalError(err)
	}
	return resp, nil
}

// classifyHTTPError maps 429 and 5xx to transient errors and everything else to fatal.
func classifyHTTPError(statusCode int, body []byte) error {
	bodyStr := string(body)
	if len(bodyStr) > 200 {
		bodyStr = bodyStr[:200] + "..."
	}

	err := fmt.Errorf("LLM API error (status %d): %s", statusCode, bodyStr)
	if statusCode == http.StatusTooManyRequests || statusCode >= 500 {
		return NewTransientError(err)
	}
	return NewFatalError(err)
}
