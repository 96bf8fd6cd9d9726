package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huynd94/system-live-chat/internal/domain"
)

func TestRelay_SendValidation(t *testing.T) {
	core := newTestCore()
	ctx := context.Background()

	_, err := core.relay.Send(ctx, "", "hello", domain.SenderCustomer, domain.SenderInfo{})
	assert.True(t, domain.IsValidation(err))

	_, err = core.relay.Send(ctx, "conv-1", "   ", domain.SenderCustomer, domain.SenderInfo{})
	assert.True(t, domain.IsValidation(err))

	long := strings.Repeat("a", domain.MaxMessageLength+1)
	_, err = core.relay.Send(ctx, "conv-1", long, domain.SenderCustomer, domain.SenderInfo{})
	assert.True(t, domain.IsValidation(err))
}

func TestRelay_SendUnknownConversation(t *testing.T) {
	core := newTestCore()
	_, err := core.relay.Send(context.Background(), "no-such-id", "hello", domain.SenderCustomer, domain.SenderInfo{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRelay_AgentSend(t *testing.T) {
	core := newTestCore()
	ctx := context.Background()

	customerSender := &fakeSender{}
	customer := NewCustomerConnection("c1", customerSender)
	conversation := startConversation(t, core, customer)

	_, err := core.lifecycle.Assign(ctx, conversation.ID, "agent-1")
	require.NoError(t, err)

	message, err := core.relay.Send(ctx, conversation.ID, "Hello", domain.SenderAgent,
		domain.SenderInfo{ID: "agent-1", Name: "An"})
	require.NoError(t, err)

	assert.Equal(t, domain.SenderAgent, message.Sender)
	assert.Equal(t, "Hello", message.Content)
	assert.Equal(t, "An", message.SenderInfo.Name)

	// Persisted and summarized.
	messages := core.store.Messages()
	require.Len(t, messages, 1)
	stored := core.store.conversation(conversation.ID)
	require.NotNil(t, stored.LastMessage)
	assert.Equal(t, "Hello", stored.LastMessage.Content)
	assert.Equal(t, domain.SenderAgent, stored.LastMessage.Sender)

	// The customer connection received the fan-out.
	require.NotEmpty(t, customerSender.Events())
	last := customerSender.Events()[len(customerSender.Events())-1]
	assert.Equal(t, domain.EventNewMessage, last.Type)
}

func TestRelay_AgentSendOutsideAssignmentForbidden(t *testing.T) {
	core := newTestCore()
	ctx := context.Background()
	conversation := startConversation(t, core, NewCustomerConnection("c1", &fakeSender{}))

	// Unassigned conversation: any agent send is forbidden.
	_, err := core.relay.Send(ctx, conversation.ID, "Hello", domain.SenderAgent,
		domain.SenderInfo{ID: "agent-1", Name: "An"})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = core.lifecycle.Assign(ctx, conversation.ID, "agent-1")
	require.NoError(t, err)

	_, err = core.relay.Send(ctx, conversation.ID, "Hello", domain.SenderAgent,
		domain.SenderInfo{ID: "agent-2", Name: "Binh"})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.Empty(t, core.store.Messages())
}

func TestRelay_SendOnClosedConversation(t *testing.T) {
	core := newTestCore()
	ctx := context.Background()
	conversation := startConversation(t, core, NewCustomerConnection("c1", &fakeSender{}))

	_, err := core.lifecycle.Assign(ctx, conversation.ID, "agent-1")
	require.NoError(t, err)
	_, err = core.lifecycle.Close(ctx, conversation.ID, "agent-1")
	require.NoError(t, err)

	_, err = core.relay.Send(ctx, conversation.ID, "Hello", domain.SenderAgent,
		domain.SenderInfo{ID: "agent-1", Name: "An"})
	assert.ErrorIs(t, err, domain.ErrClosed)

	_, err = core.relay.Send(ctx, conversation.ID, "Hi", domain.SenderCustomer, domain.SenderInfo{})
	assert.ErrorIs(t, err, domain.ErrClosed)

	assert.Empty(t, core.store.Messages(), "no message may be persisted after close")
}

func TestRelay_CustomerSenderNameDefaultsToProfile(t *testing.T) {
	core := newTestCore()
	customer := NewCustomerConnection("c1", &fakeSender{})
	conversation := startConversation(t, core, customer)

	message, err := core.relay.Send(context.Background(), conversation.ID, "Hi", domain.SenderCustomer, domain.SenderInfo{})
	require.NoError(t, err)
	assert.Equal(t, "Lan", message.SenderInfo.Name)
}

func TestRelay_OrderingWithinConversation(t *testing.T) {
	core := newTestCore()
	ctx := context.Background()

	observerSender := &fakeSender{}
	customer := NewCustomerConnection("c1", observerSender)
	conversation := startConversation(t, core, customer)

	// Concurrent senders; whatever order the relay accepts is the order
	// every member must observe.
	const senders = 8
	const perSender = 10
	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < perSender; j++ {
				_, err := core.relay.Send(ctx, conversation.ID,
					fmt.Sprintf("msg %d-%d", n, j), domain.SenderCustomer, domain.SenderInfo{Name: "Lan"})
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	accepted := core.store.Messages()
	require.Len(t, accepted, senders*perSender)

	var observed []string
	for _, event := range observerSender.Events() {
		if event.Type != domain.EventNewMessage {
			continue
		}
		data := event.Data.(map[string]interface{})
		message := data["message"].(*domain.Message)
		observed = append(observed, message.ID)
	}

	require.Len(t, observed, len(accepted))
	for i := range accepted {
		assert.Equal(t, accepted[i].ID, observed[i], "delivery order must match acceptance order")
	}
}

func TestRelay_TypingBroadcastsWithoutPersisting(t *testing.T) {
	core := newTestCore()
	ctx := context.Background()

	customerSender := &fakeSender{}
	customer := NewCustomerConnection("c1", customerSender)
	conversation := startConversation(t, core, customer)

	agentSender := &fakeSender{}
	agentConn := NewAgentConnection("a1", newTestAgent("agent-1", "An"), agentSender)
	core.rooms.Join(agentConn, conversation.ID)

	require.NoError(t, core.relay.Typing(ctx, agentConn, conversation.ID, true))
	require.NoError(t, core.relay.Typing(ctx, agentConn, conversation.ID, false))
	require.NoError(t, core.relay.Typing(ctx, customer, conversation.ID, true))

	assert.Empty(t, core.store.Messages())
	assert.Contains(t, customerSender.EventTypes(), domain.EventAgentTyping)
	assert.Contains(t, customerSender.EventTypes(), domain.EventAgentStopTyping)
	assert.Contains(t, agentSender.EventTypes(), domain.EventCustomerTyping)

	// The originator never hears its own typing echo.
	assert.NotContains(t, agentSender.EventTypes(), domain.EventAgentTyping)
	assert.NotContains(t, customerSender.EventTypes(), domain.EventCustomerTyping)
}

func TestRelay_TypingRequiresConversationID(t *testing.T) {
	core := newTestCore()
	conn := NewCustomerConnection("c1", &fakeSender{})
	err := core.relay.Typing(context.Background(), conn, "", true)
	assert.True(t, domain.IsValidation(err))
}

func TestRelay_StoreFailureSurfaces(t *testing.T) {
	core := newTestCore()
	conversation := startConversation(t, core, NewCustomerConnection("c1", &fakeSender{}))

	core.store.saveErr = fmt.Errorf("connection reset")
	_, err := core.relay.Send(context.Background(), conversation.ID, "Hello", domain.SenderCustomer, domain.SenderInfo{Name: "Lan"})
	assert.ErrorIs(t, err, domain.ErrStore)
}
