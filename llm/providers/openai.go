package providers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/c360studio/semdigest/llm"
)

// OpenAIProvider speaks the chat completions format used by OpenAI and
// OpenRouter.
type OpenAIProvider struct {
	defaultURL string
	keyEnv     string
}

func init() {
	llm.RegisterProvider(&OpenAIProvider{defaultURL: "https://api.openai.com/v1", keyEnv: "OPENAI_API_KEY"})
}

func (o *OpenAIProvider) Name() string { return "openai" }

func (o *OpenAIProvider) APIKeyEnv() string { return o.keyEnv }

// BuildURL appends /chat/completions unless baseURL already ends with it.
func (o *OpenAIProvider) BuildURL(baseURL string) string {
	if baseURL == "" {
		baseURL = o.defaultURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	if strings.HasSuffix(baseURL, "/chat/completions") {
		return baseURL
	}
	return baseURL + "/chat/completions"
}

func (o *OpenAIProvider) SetHeaders(req *http.Request, apiKey string) {
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []llm.Message `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
}

func (o *OpenAIProvider) BuildRequestBody(model string, messages []llm.Message, temperature *float64, maxTokens int) ([]byte, error) {
	req := chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
	}
	if maxTokens > 0 {
		req.MaxTokens = &maxTokens
	}
	return json.Marshal(req)
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage llm.TokenUsage `json:"usage"`
}

func (o *OpenAIProvider) ParseResponse(body []byte) (*llm.Response, error) {
	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse %s response: %w", o.Name(), err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	return &llm.Response{
		Content:      resp.Choices[0].Message.Content,
		Model:        resp.Model,
		Usage:        resp.Usage,
		FinishReason: resp.Choices[0].FinishReason,
	}, nil
}
