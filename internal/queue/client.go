package queue

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/livetranslate/internal/config"
	"github.com/nikhilbhutani/livetranslate/internal/llm"
)

type Client struct {
	client *asynq.Client
}

func NewClient(cfg config.RedisConfig) *Client {
	return &Client{
		client: asynq.NewClient(RedisOpt(cfg)),
	}
}

// RedisOpt converts the Redis configuration for asynq clients and servers.
func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) EnqueueUsageRecord(ctx context.Context, rec llm.UsageRecord) error {
	task, err := NewUsageRecordTask(rec)
	if err != nil {
		return err
	}
	if _, err := c.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("enqueue %s: %w", TypeUsageRecord, err)
	}
	return nil
}

// UsageRecorder forwards translation usage to the worker queue.
type UsageRecorder struct {
	client *Client
}

func NewUsageRecorder(c *Client) *UsageRecorder {
	return &UsageRecorder{client: c}
}

func (r *UsageRecorder) RecordUsage(ctx context.Context, rec llm.UsageRecord) error {
	return r.client.EnqueueUsageRecord(ctx, rec)
}
