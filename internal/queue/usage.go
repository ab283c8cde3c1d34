package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/livetranslate/internal/models"
)

// UsageStore persists usage rows.
type UsageStore interface {
	LogLLMUsage(ctx context.Context, record models.LLMUsageLog) error
}

type UsageWorker struct {
	store  UsageStore
	logger *slog.Logger
}

func NewUsageWorker(store UsageStore, logger *slog.Logger) *UsageWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &UsageWorker{store: store, logger: logger}
}

func (w *UsageWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload UsageRecordPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}

	record := models.LLMUsageLog{
		ID:           uuid.New(),
		SessionID:    payload.SessionID,
		ModelID:      payload.ModelID,
		Provider:     payload.Provider,
		Model:        payload.Model,
		InputTokens:  payload.InputTokens,
		OutputTokens: payload.OutputTokens,
		TotalTokens:  payload.TotalTokens,
		CostUSD:      payload.CostUSD,
		LatencyMs:    payload.LatencyMs,
		CreatedAt:    payload.Timestamp,
	}
	if err := w.store.LogLLMUsage(ctx, record); err != nil {
		return fmt.Errorf("log usage: %w", err)
	}

	w.logger.Debug("usage recorded",
		"session_id", payload.SessionID,
		"model_id", payload.ModelID,
		"total_tokens", payload.TotalTokens,
	)
	return nil
}
