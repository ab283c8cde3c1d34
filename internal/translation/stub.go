package translation

import (
	"context"
	"strings"
	"time"

	"github.com/nikhilbhutani/livetranslate/internal/models"
)

// StubTranslatorConfig configures the stub translator behavior.
type StubTranslatorConfig struct {
	// ProcessingDelay simulates translation latency.
	ProcessingDelay time.Duration
	// Dictionary maps target language to source text to translated text.
	// Unknown text is returned as "[target] " + text.
	Dictionary map[string]map[string]string
}

// DefaultStubTranslatorConfig returns sensible defaults for development.
func DefaultStubTranslatorConfig() *StubTranslatorConfig {
	return &StubTranslatorConfig{
		ProcessingDelay: 150 * time.Millisecond,
		Dictionary: map[string]map[string]string{
			"English": {
				"こんにちは":      "Hello.",
				"こんにちは 元気ですか": "Hello. How are you?",
				"ありがとう":      "Thank you.",
			},
		},
	}
}

// StubTranslator returns deterministic translations without any network.
type StubTranslator struct {
	config *StubTranslatorConfig
}

func NewStubTranslator(config *StubTranslatorConfig) *StubTranslator {
	if config == nil {
		config = DefaultStubTranslatorConfig()
	}
	return &StubTranslator{config: config}
}

func (s *StubTranslator) Translate(ctx context.Context, text, targetLanguage, _ string, _ models.ModelDescriptor) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	if s.config.ProcessingDelay > 0 {
		timer := time.NewTimer(s.config.ProcessingDelay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return "", Classify(ctx.Err(), "stub")
		}
	}

	if dict, ok := s.config.Dictionary[targetLanguage]; ok {
		if out, ok := dict[text]; ok {
			return out, nil
		}
	}
	return "[" + targetLanguage + "] " + text, nil
}
