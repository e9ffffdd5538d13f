package consumer

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/XavierBriggs/fortuna/services/schema-compiler/pkg/models"
)

// Message represents a consumed compile request
type Message struct {
	ID        string
	StreamKey string
	Request   models.CompileRequest
}

// StreamConsumer reads compile requests from a Redis stream.
// Each entry carries "app_id" and "schema" (standard base64 of the blob).
type StreamConsumer struct {
	redis      *redis.Client
	consumerID string
	groupName  string
	batchSize  int64
	blockTime  time.Duration
	maxBytes   int64
	logger     *zap.Logger
}

// NewStreamConsumer creates a new stream consumer
func NewStreamConsumer(redisClient *redis.Client, consumerID, groupName string, maxBytes int64, logger *zap.Logger) *StreamConsumer {
	return &StreamConsumer{
		redis:      redisClient,
		consumerID: consumerID,
		groupName:  groupName,
		batchSize:  10,
		blockTime:  5 * time.Second,
		maxBytes:   maxBytes,
		logger:     logger,
	}
}

// ConsumeStream reads messages from a Redis stream until ctx is done
func (c *StreamConsumer) ConsumeStream(ctx context.Context, streamKey string) (<-chan Message, <-chan error) {
	messageCh := make(chan Message, c.batchSize)
	errorCh := make(chan error, 1)

	go func() {
		defer close(messageCh)
		defer close(errorCh)

		if err := c.createConsumerGroup(ctx, streamKey); err != nil {
			errorCh <- fmt.Errorf("failed to create consumer group: %w", err)
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			messages, err := c.readMessages(ctx, streamKey)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				select {
				case errorCh <- fmt.Errorf("error reading messages: %w", err):
				default:
				}
				// back off so a dead connection doesn't spin
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Second):
				}
				continue
			}

			for _, msg := range messages {
				select {
				case messageCh <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return messageCh, errorCh
}

// readMessages reads a batch of messages from the stream
func (c *StreamConsumer) readMessages(ctx context.Context, streamKey string) ([]Message, error) {
	streams, err := c.redis.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.groupName,
		Consumer: c.consumerID,
		Streams:  []string{streamKey, ">"},
		Count:    c.batchSize,
		Block:    c.blockTime,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// No new messages, not an error
			return nil, nil
		}
		return nil, err
	}

	var messages []Message
	for _, stream := range streams {
		for _, xmsg := range stream.Messages {
			req, err := c.decodeRequest(xmsg.Values)
			if err != nil {
				c.logger.Warn("dropping malformed compile request",
					zap.String("stream", streamKey),
					zap.String("message_id", xmsg.ID),
					zap.Error(err),
				)
				// ACK the message anyway to prevent reprocessing
				if ackErr := c.AckMessage(ctx, streamKey, xmsg.ID); ackErr != nil {
					c.logger.Error("ack failed", zap.String("message_id", xmsg.ID), zap.Error(ackErr))
				}
				continue
			}

			messages = append(messages, Message{
				ID:        xmsg.ID,
				StreamKey: streamKey,
				Request:   req,
			})
		}
	}

	return messages, nil
}

func (c *StreamConsumer) decodeRequest(values map[string]interface{}) (models.CompileRequest, error) {
	appID, _ := values["app_id"].(string)
	if err := models.ValidateAppID(appID); err != nil {
		return models.CompileRequest{}, fmt.Errorf("app_id %q: %w", appID, err)
	}

	encoded, ok := values["schema"].(string)
	if !ok || encoded == "" {
		return models.CompileRequest{}, errors.New("missing schema field")
	}
	if c.maxBytes > 0 && int64(base64.StdEncoding.DecodedLen(len(encoded))) > c.maxBytes+2 {
		return models.CompileRequest{}, fmt.Errorf("schema exceeds %d bytes", c.maxBytes)
	}

	schema, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return models.CompileRequest{}, fmt.Errorf("decoding schema: %w", err)
	}
	if c.maxBytes > 0 && int64(len(schema)) > c.maxBytes {
		return models.CompileRequest{}, fmt.Errorf("schema exceeds %d bytes", c.maxBytes)
	}

	return models.CompileRequest{
		AppID:  appID,
		Schema: schema,
		Source: "stream",
	}, nil
}

// AckMessage acknowledges a message has been processed
func (c *StreamConsumer) AckMessage(ctx context.Context, streamKey, messageID string) error {
	return c.redis.XAck(ctx, streamKey, c.groupName, messageID).Err()
}

// createConsumerGroup creates the consumer group if it doesn't exist
func (c *StreamConsumer) createConsumerGroup(ctx context.Context, streamKey string) error {
	err := c.redis.XGroupCreateMkStream(ctx, streamKey, c.groupName, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}
