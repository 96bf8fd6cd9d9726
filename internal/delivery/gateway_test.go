package delivery

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/huynd94/system-live-chat/internal/chat"
	"github.com/huynd94/system-live-chat/internal/domain"
)

type fakeSender struct {
	mu     sync.Mutex
	events []domain.ServerEvent
}

func (f *fakeSender) Send(event domain.ServerEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeSender) Events() []domain.ServerEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.ServerEvent, len(f.events))
	copy(out, f.events)
	return out
}

func newTestGateway(t *testing.T) (*Gateway, *chat.Rooms) {
	t.Helper()
	logger := zap.NewNop()
	rooms := chat.NewRooms(logger)
	presence := chat.NewPresence()
	gateway := NewGateway(nil, nil, rooms, presence, nil, nil, "local-origin", logger)
	return gateway, rooms
}

func TestDecode(t *testing.T) {
	payload, err := decode[domain.ConversationRefPayload](json.RawMessage(`{"conversationId":"conv-1"}`))
	require.NoError(t, err)
	assert.Equal(t, "conv-1", payload.ConversationID)

	_, err = decode[domain.ConversationRefPayload](nil)
	assert.True(t, domain.IsValidation(err))

	_, err = decode[domain.ConversationRefPayload](json.RawMessage(`{"conversationId":42}`))
	assert.True(t, domain.IsValidation(err))
}

func TestRequireBinding(t *testing.T) {
	gateway, _ := newTestGateway(t)

	conn := chat.NewCustomerConnection("c1", &fakeSender{})
	assert.True(t, domain.IsValidation(gateway.requireBinding(conn, "")))
	assert.True(t, domain.IsValidation(gateway.requireBinding(conn, "conv-1")),
		"unbound connection may not reference any conversation")

	conn.ConversationID = "conv-1"
	assert.NoError(t, gateway.requireBinding(conn, "conv-1"))
	assert.True(t, domain.IsValidation(gateway.requireBinding(conn, "conv-2")),
		"connection is scoped to the conversation it started")
}

func TestReportError_Scoping(t *testing.T) {
	gateway, _ := newTestGateway(t)

	sender := &fakeSender{}
	conn := chat.NewCustomerConnection("c1", sender)

	gateway.reportError(conn, domain.ErrConflict)
	gateway.reportError(conn, domain.NewValidationError("content", "required"))
	gateway.reportError(conn, domain.StoreError("save", errors.New("timeout")))

	events := sender.Events()
	require.Len(t, events, 3)
	for _, event := range events {
		assert.Equal(t, domain.EventError, event.Type)
		assert.False(t, event.Success)
		assert.NotEmpty(t, event.Error)
	}
	// Store internals never leak to the wire.
	assert.NotContains(t, events[2].Error, "timeout")
}

func TestHandleMessageEvent_SkipsOwnOrigin(t *testing.T) {
	gateway, rooms := newTestGateway(t)

	sender := &fakeSender{}
	conn := chat.NewCustomerConnection("c1", sender)
	rooms.Join(conn, "conv-1")

	local := domain.MessageEvent{
		Origin:  "local-origin",
		Message: domain.Message{ID: "m1", ConversationID: "conv-1"},
	}
	gateway.HandleMessageEvent(local)
	assert.Empty(t, sender.Events(), "own events were already broadcast at acceptance")

	remote := domain.MessageEvent{
		Origin:  "remote-origin",
		Message: domain.Message{ID: "m2", ConversationID: "conv-1"},
	}
	gateway.HandleMessageEvent(remote)

	events := sender.Events()
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventNewMessage, events[0].Type)
}

func TestHandleTypingEvent_MapsRoles(t *testing.T) {
	gateway, rooms := newTestGateway(t)

	sender := &fakeSender{}
	conn := chat.NewCustomerConnection("c1", sender)
	rooms.Join(conn, "conv-1")

	gateway.HandleTypingEvent(domain.TypingEvent{
		Origin: "remote", ConversationID: "conv-1",
		UserID: "agent-1", UserType: "agent", IsTyping: true,
	})
	gateway.HandleTypingEvent(domain.TypingEvent{
		Origin: "remote", ConversationID: "conv-1",
		UserID: "agent-1", UserType: "agent", IsTyping: false,
	})
	gateway.HandleTypingEvent(domain.TypingEvent{
		Origin: "remote", ConversationID: "conv-1",
		UserType: "customer", IsTyping: true,
	})

	events := sender.Events()
	require.Len(t, events, 3)
	assert.Equal(t, domain.EventAgentTyping, events[0].Type)
	assert.Equal(t, domain.EventAgentStopTyping, events[1].Type)
	assert.Equal(t, domain.EventCustomerTyping, events[2].Type)
}

func TestHandleConnectionStatusEvent(t *testing.T) {
	gateway, rooms := newTestGateway(t)

	sender := &fakeSender{}
	conn := chat.NewAgentConnection("a1", &domain.Agent{ID: "agent-1", Name: "An"}, sender)
	rooms.Join(conn, "conv-1")

	gateway.HandleConnectionStatusEvent(domain.ConnectionStatusEvent{
		Origin:           "remote",
		ConversationID:   "conv-1",
		ConnectionStatus: map[string]interface{}{"event": "customer_disconnected"},
	})
	gateway.HandleConnectionStatusEvent(domain.ConnectionStatusEvent{
		Origin:           "local-origin",
		ConversationID:   "conv-1",
		ConnectionStatus: map[string]interface{}{"event": "customer_disconnected"},
	})

	events := sender.Events()
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventCustomerOffline, events[0].Type)
}
