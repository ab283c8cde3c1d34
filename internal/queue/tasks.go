package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/livetranslate/internal/llm"
)

const (
	TypeUsageRecord = "usage:record"
)

// UsageRecordPayload is the body of a usage:record task. It carries
// accounting data only, never transcript or translation text.
type UsageRecordPayload struct {
	SessionID    string    `json:"session_id,omitempty"`
	ModelID      string    `json:"model_id"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	TotalTokens  int       `json:"total_tokens"`
	CostUSD      float64   `json:"cost_usd"`
	LatencyMs    int64     `json:"latency_ms"`
	Timestamp    time.Time `json:"timestamp"`
}

func NewUsageRecordTask(rec llm.UsageRecord) (*asynq.Task, error) {
	data, err := json.Marshal(UsageRecordPayload(rec))
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(TypeUsageRecord, data, asynq.MaxRetry(3), asynq.Timeout(30*time.Second)), nil
}
