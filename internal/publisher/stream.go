package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/XavierBriggs/fortuna/services/schema-compiler/pkg/models"
)

// DefaultMaxLen bounds the event stream (approximate trimming)
const DefaultMaxLen = 10000

// StreamPublisher publishes compile events to a Redis stream
type StreamPublisher struct {
	client    *redis.Client
	streamKey string
	maxLen    int64
}

// NewStreamPublisher creates a new stream publisher
func NewStreamPublisher(client *redis.Client, streamKey string) *StreamPublisher {
	return &StreamPublisher{
		client:    client,
		streamKey: streamKey,
		maxLen:    DefaultMaxLen,
	}
}

// Name identifies the sink
func (p *StreamPublisher) Name() string {
	return "event_stream"
}

// HandleRun publishes the event for every run, failed ones included
func (p *StreamPublisher) HandleRun(ctx context.Context, run models.CompileRun, _ *models.CompiledSchema) error {
	return p.PublishEvent(ctx, run.Event())
}

// PublishEvent appends one compile event to the stream
func (p *StreamPublisher) PublishEvent(ctx context.Context, event models.CompileEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling compile event: %w", err)
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.streamKey,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data":   string(data),
			"app_id": event.AppID,
			"run_id": event.RunID,
			"status": string(event.Status),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("publishing to %s: %w", p.streamKey, err)
	}
	return nil
}
