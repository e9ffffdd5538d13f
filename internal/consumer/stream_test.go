package consumer

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const streamKey = "schemas.raw"

func newConsumer(t *testing.T, maxBytes int64) (*StreamConsumer, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	c := NewStreamConsumer(client, "compiler-test", "schema-compiler", maxBytes, zap.NewNop())
	c.blockTime = 50 * time.Millisecond
	return c, client
}

func add(t *testing.T, client *redis.Client, values map[string]interface{}) string {
	t.Helper()
	id, err := client.XAdd(context.Background(), &redis.XAddArgs{Stream: streamKey, Values: values}).Result()
	require.NoError(t, err)
	return id
}

func TestConsumeStream_DecodesRequests(t *testing.T) {
	c, client := newConsumer(t, 1024)

	blob := []byte{0x00, '4', '8', '0', 0x00, 0x08, 0x08}
	add(t, client, map[string]interface{}{"app_id": "../etc", "schema": base64.StdEncoding.EncodeToString(blob)})
	add(t, client, map[string]interface{}{"app_id": "480", "schema": "%%%not base64"})
	goodID := add(t, client, map[string]interface{}{"app_id": "480", "schema": base64.StdEncoding.EncodeToString(blob)})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	messages, _ := c.ConsumeStream(ctx, streamKey)

	select {
	case msg := <-messages:
		assert.Equal(t, goodID, msg.ID)
		assert.Equal(t, streamKey, msg.StreamKey)
		assert.Equal(t, "480", msg.Request.AppID)
		assert.Equal(t, "stream", msg.Request.Source)
		assert.Equal(t, blob, msg.Request.Schema)

		// malformed entries were acked on read, only the good one is pending
		pending, err := client.XPending(ctx, streamKey, "schema-compiler").Result()
		require.NoError(t, err)
		assert.Equal(t, int64(1), pending.Count)

		require.NoError(t, c.AckMessage(ctx, streamKey, msg.ID))
		pending, err = client.XPending(ctx, streamKey, "schema-compiler").Result()
		require.NoError(t, err)
		assert.Zero(t, pending.Count)
	case <-ctx.Done():
		t.Fatal("timed out waiting for message")
	}
}

func TestDecodeRequest_SizeLimit(t *testing.T) {
	c, _ := newConsumer(t, 4)

	_, err := c.decodeRequest(map[string]interface{}{
		"app_id": "480",
		"schema": base64.StdEncoding.EncodeToString([]byte("12345")),
	})
	assert.Error(t, err)

	req, err := c.decodeRequest(map[string]interface{}{
		"app_id": "480",
		"schema": base64.StdEncoding.EncodeToString([]byte("1234")),
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("1234"), req.Schema)
}

func TestDecodeRequest_MissingFields(t *testing.T) {
	c, _ := newConsumer(t, 0)

	_, err := c.decodeRequest(map[string]interface{}{"schema": "AA=="})
	assert.Error(t, err)

	_, err = c.decodeRequest(map[string]interface{}{"app_id": "480"})
	assert.Error(t, err)
}

func TestCreateConsumerGroup_Idempotent(t *testing.T) {
	c, _ := newConsumer(t, 0)
	ctx := context.Background()

	require.NoError(t, c.createConsumerGroup(ctx, streamKey))
	require.NoError(t, c.createConsumerGroup(ctx, streamKey))
}
