package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/XavierBriggs/fortuna/services/schema-compiler/pkg/models"
)

type mockHub struct {
	unregistered []*Client
}

func (m *mockHub) Unregister(c *Client) {
	m.unregistered = append(m.unregistered, c)
}

func newTestClient() *Client {
	return NewClient("test-client", nil, &mockHub{}, zap.NewNop())
}

func TestClient_MatchesFilter(t *testing.T) {
	tests := []struct {
		name     string
		filter   models.SubscriptionFilter
		appID    string
		expected bool
	}{
		{"empty filter matches everything", models.SubscriptionFilter{}, "480", true},
		{"app filter matches", models.SubscriptionFilter{AppIDs: []string{"570", "480"}}, "480", true},
		{"app filter doesn't match", models.SubscriptionFilter{AppIDs: []string{"570"}}, "480", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient()
			c.SetFilter(tt.filter)
			assert.Equal(t, tt.expected, c.MatchesFilter(models.CompileEvent{AppID: tt.appID}))
		})
	}
}

func TestClient_TrySend(t *testing.T) {
	c := newTestClient()

	for i := 0; i < sendBufferSize; i++ {
		require.True(t, c.TrySend(models.ServerMessage{Type: models.MessageTypeCompileEvent}))
	}
	assert.False(t, c.TrySend(models.ServerMessage{Type: models.MessageTypeCompileEvent}))
	assert.Equal(t, 100.0, c.GetStats().BufferUtilization)
}

func TestClient_HandleSubscribe(t *testing.T) {
	c := newTestClient()

	c.handleClientMessage(models.ClientMessage{
		Type:    models.MessageTypeSubscribe,
		Payload: map[string]interface{}{"app_ids": []interface{}{"480", "620"}},
	})
	assert.Equal(t, []string{"480", "620"}, c.GetFilter().AppIDs)

	c.handleClientMessage(models.ClientMessage{Type: models.MessageTypeUnsubscribe})
	assert.Empty(t, c.GetFilter().AppIDs)
}

func TestClient_InvalidFilterAndUnknownType(t *testing.T) {
	c := newTestClient()

	c.handleClientMessage(models.ClientMessage{
		Type:    models.MessageTypeSubscribe,
		Payload: map[string]interface{}{"app_ids": "480"},
	})
	c.handleClientMessage(models.ClientMessage{Type: "dance"})

	require.Len(t, c.Send, 2)
	first := <-c.Send
	assert.Equal(t, models.MessageTypeError, first.Type)
	assert.Equal(t, "invalid_filter", first.Payload.(models.ErrorMessage).Code)

	second := <-c.Send
	assert.Equal(t, "unknown_message_type", second.Payload.(models.ErrorMessage).Code)
}

func TestClient_Heartbeat(t *testing.T) {
	c := newTestClient()
	c.handleClientMessage(models.ClientMessage{Type: models.MessageTypeHeartbeat})

	msg := <-c.Send
	assert.Equal(t, models.MessageTypeHeartbeat, msg.Type)
	assert.Equal(t, "test-client", msg.Payload.(models.ConnectionStats).ClientID)
}
