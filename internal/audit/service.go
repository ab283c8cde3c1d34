package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nikhilbhutani/livetranslate/internal/models"
)

// DB is the subset of *pgxpool.Pool the service uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type Service struct {
	db DB
}

func NewService(db DB) *Service {
	return &Service{db: db}
}

func (s *Service) LogLLMUsage(ctx context.Context, record models.LLMUsageLog) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO llm_usage_logs (id, session_id, model_id, provider, model, input_tokens, output_tokens, total_tokens, cost_usd, latency_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (id) DO NOTHING`,
		record.ID, record.SessionID, record.ModelID, record.Provider, record.Model,
		record.InputTokens, record.OutputTokens, record.TotalTokens,
		record.CostUSD, record.LatencyMs, record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert LLM usage log: %w", err)
	}

	return nil
}

type UsageSummary struct {
	ModelID      string  `json:"model_id"`
	Provider     string  `json:"provider"`
	Model        string  `json:"model"`
	TotalCalls   int     `json:"total_calls"`
	Sessions     int     `json:"sessions"`
	TotalTokens  int     `json:"total_tokens"`
	TotalCostUSD float64 `json:"total_cost_usd"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

// usageQuery builds the summary query for an optional time window.
func usageQuery(startDate, endDate *time.Time) (string, []any) {
	query := `SELECT model_id, provider, model, COUNT(*) AS total_calls,
			         COUNT(DISTINCT session_id) AS sessions,
			         COALESCE(SUM(total_tokens), 0) AS total_tokens,
			         COALESCE(SUM(cost_usd), 0)::float8 AS total_cost_usd,
			         COALESCE(AVG(latency_ms), 0)::float8 AS avg_latency_ms
			  FROM llm_usage_logs WHERE 1=1`
	var args []any
	argIdx := 1

	if startDate != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *startDate)
		argIdx++
	}
	if endDate != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *endDate)
	}

	query += " GROUP BY model_id, provider, model ORDER BY total_cost_usd DESC"
	return query, args
}

func (s *Service) GetUsageSummary(ctx context.Context, startDate, endDate *time.Time) ([]UsageSummary, error) {
	query, args := usageQuery(startDate, endDate)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query usage summary: %w", err)
	}
	defer rows.Close()

	summaries := []UsageSummary{}
	for rows.Next() {
		var us UsageSummary
		if err := rows.Scan(&us.ModelID, &us.Provider, &us.Model, &us.TotalCalls, &us.Sessions,
			&us.TotalTokens, &us.TotalCostUSD, &us.AvgLatencyMs); err != nil {
			return nil, fmt.Errorf("scan usage summary: %w", err)
		}
		summaries = append(summaries, us)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate usage summary: %w", err)
	}
	return summaries, nil
}
