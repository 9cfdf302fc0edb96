package providers

import "github.com/c360studio/semdigest/llm"

// OllamaProvider is the OpenAI-compatible API served by Ollama, vLLM and
// similar local runtimes.
type OllamaProvider struct {
	OpenAIProvider
}

func init() {
	llm.RegisterProvider(&OllamaProvider{
		OpenAIProvider: OpenAIProvider{defaultURL: "http://localhost:11434/v1", keyEnv: "OLLAMA_API_KEY"},
	})
}

func (o *OllamaProvider) Name() string { return "ollama" }
