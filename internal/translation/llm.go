package translation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nikhilbhutani/livetranslate/internal/config"
	"github.com/nikhilbhutani/livetranslate/internal/llm"
	"github.com/nikhilbhutani/livetranslate/internal/models"
	"github.com/nikhilbhutani/livetranslate/internal/prompt"
)

// ProviderFactory builds the chat backend for a descriptor.
type ProviderFactory func(desc models.ModelDescriptor, fallback config.LLMConfig) (llm.Provider, error)

type LLMTranslatorConfig struct {
	Fallback       config.LLMConfig
	PromptTemplate string
	Recorder       UsageRecorder
	Logger         *slog.Logger
	NewProvider    ProviderFactory
}

// LLMTranslator translates by prompting a chat-completion model.
type LLMTranslator struct {
	fallback    config.LLMConfig
	template    string
	recorder    UsageRecorder
	logger      *slog.Logger
	newProvider ProviderFactory

	mu        sync.Mutex
	providers map[models.ModelDescriptor]llm.Provider
}

func NewLLMTranslator(cfg LLMTranslatorConfig) (*LLMTranslator, error) {
	if cfg.PromptTemplate != "" {
		if err := prompt.Validate(cfg.PromptTemplate); err != nil {
			return nil, fmt.Errorf("prompt template: %w", err)
		}
	}
	if cfg.NewProvider == nil {
		cfg.NewProvider = llm.NewProvider
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &LLMTranslator{
		fallback:    cfg.Fallback,
		template:    cfg.PromptTemplate,
		recorder:    cfg.Recorder,
		logger:      cfg.Logger,
		newProvider: cfg.NewProvider,
		providers:   make(map[models.ModelDescriptor]llm.Provider),
	}, nil
}

func (t *LLMTranslator) Translate(ctx context.Context, text, targetLanguage, sourceLanguage string, model models.ModelDescriptor) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	p, err := t.provider(model)
	if err != nil {
		return "", Classify(err, string(model.Provider))
	}

	msg, err := prompt.Translation(t.template, sourceLanguage, targetLanguage, text)
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}

	resp, err := p.ChatCompletion(ctx, llm.ChatRequest{
		Model:    model.ModelAPIName,
		Messages: []llm.Message{{Role: "user", Content: msg}},
	})
	if err != nil {
		return "", Classify(err, p.Name())
	}
	if resp == nil || resp.Content == nil {
		return "", Classify(ErrMalformedResponse, p.Name())
	}

	t.record(ctx, model, resp)
	return strings.TrimSpace(*resp.Content), nil
}

func (t *LLMTranslator) provider(model models.ModelDescriptor) (llm.Provider, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if p, ok := t.providers[model]; ok {
		return p, nil
	}
	p, err := t.newProvider(model, t.fallback)
	if err != nil {
		return nil, err
	}
	t.providers[model] = p
	return p, nil
}

func (t *LLMTranslator) record(ctx context.Context, model models.ModelDescriptor, resp *llm.ChatResponse) {
	if t.recorder == nil {
		return
	}
	rec := llm.UsageRecord{
		SessionID:    SessionIDFromContext(ctx),
		ModelID:      model.ID,
		Provider:     resp.Provider,
		Model:        model.ModelAPIName,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
		TotalTokens:  resp.TotalTokens,
		CostUSD:      resp.CostUSD,
		LatencyMs:    resp.LatencyMs,
		Timestamp:    time.Now().UTC(),
	}
	if err := t.recorder.RecordUsage(ctx, rec); err != nil {
		t.logger.Warn("failed to record usage", "model_id", model.ID, "error", err)
	}
}
