package llm

import (
	"errors"
	"fmt"

	"github.com/nikhilbhutani/livetranslate/internal/config"
	"github.com/nikhilbhutani/livetranslate/internal/models"
)

var ErrMissingCredential = errors.New("missing credential")

// NewProvider builds the backend for a model descriptor. A descriptor
// without its own credential falls back to the key configured for its
// provider kind.
func NewProvider(desc models.ModelDescriptor, fallback config.LLMConfig) (Provider, error) {
	switch desc.Provider {
	case models.ProviderOpenAI:
		key := firstNonEmpty(desc.Credential, fallback.OpenAIKey)
		if key == "" {
			return nil, fmt.Errorf("openai model %q: %w", desc.ID, ErrMissingCredential)
		}
		if desc.Endpoint != "" {
			return NewOpenAICompatibleProvider("openai", key, desc.Endpoint), nil
		}
		return NewOpenAIProvider(key), nil

	case models.ProviderGemini:
		key := firstNonEmpty(desc.Credential, fallback.GeminiKey)
		if key == "" {
			return nil, fmt.Errorf("gemini model %q: %w", desc.ID, ErrMissingCredential)
		}
		return NewOpenAICompatibleProvider("gemini", key, firstNonEmpty(desc.Endpoint, GeminiOpenAIBaseURL)), nil

	case models.ProviderAnthropic:
		key := firstNonEmpty(desc.Credential, fallback.AnthropicKey)
		if key == "" {
			return nil, fmt.Errorf("anthropic model %q: %w", desc.ID, ErrMissingCredential)
		}
		return NewAnthropicProvider(key, desc.Endpoint), nil

	case models.ProviderOllama:
		url := firstNonEmpty(desc.Endpoint, fallback.OllamaURL)
		if url == "" {
			return nil, fmt.Errorf("ollama model %q: missing endpoint", desc.ID)
		}
		return NewOllamaProvider(url), nil
	}

	return nil, fmt.Errorf("provider %q not supported", desc.Provider)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
