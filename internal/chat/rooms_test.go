package chat

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/huynd94/system-live-chat/internal/domain"
)

func TestRooms_JoinBroadcastLeave(t *testing.T) {
	rooms := NewRooms(zap.NewNop())
	agentSender := &fakeSender{}
	customerSender := &fakeSender{}
	agentConn := NewAgentConnection("c1", newTestAgent("agent-1", "An"), agentSender)
	customerConn := NewCustomerConnection("c2", customerSender)

	rooms.Join(agentConn, "conv-1")
	rooms.Join(customerConn, "conv-1")
	require.Equal(t, 2, rooms.MemberCount("conv-1"))

	rooms.Broadcast("conv-1", domain.NewServerEvent("ping", nil), nil)
	assert.Equal(t, []string{"ping"}, agentSender.EventTypes())
	assert.Equal(t, []string{"ping"}, customerSender.EventTypes())

	rooms.Leave(agentConn, "conv-1")
	rooms.Broadcast("conv-1", domain.NewServerEvent("ping", nil), nil)
	assert.Len(t, agentSender.Events(), 1)
	assert.Len(t, customerSender.Events(), 2)
}

func TestRooms_BroadcastExcludesOriginator(t *testing.T) {
	rooms := NewRooms(zap.NewNop())
	originSender := &fakeSender{}
	otherSender := &fakeSender{}
	origin := NewCustomerConnection("c1", originSender)
	other := NewAgentConnection("c2", newTestAgent("agent-1", "An"), otherSender)

	rooms.Join(origin, "conv-1")
	rooms.Join(other, "conv-1")

	rooms.Broadcast("conv-1", domain.NewServerEvent(domain.EventCustomerTyping, nil), origin)

	assert.Empty(t, originSender.Events())
	assert.Equal(t, []string{domain.EventCustomerTyping}, otherSender.EventTypes())
}

func TestRooms_BroadcastEmptyRoomIsNoop(t *testing.T) {
	rooms := NewRooms(zap.NewNop())
	assert.NotPanics(t, func() {
		rooms.Broadcast("no-such-room", domain.NewServerEvent("ping", nil), nil)
	})
}

func TestRooms_BroadcastAgents(t *testing.T) {
	rooms := NewRooms(zap.NewNop())
	senderA := &fakeSender{}
	senderB := &fakeSender{}
	customerSender := &fakeSender{}

	rooms.RegisterAgent(NewAgentConnection("c1", newTestAgent("agent-1", "An"), senderA))
	rooms.RegisterAgent(NewAgentConnection("c2", newTestAgent("agent-2", "Binh"), senderB))
	customer := NewCustomerConnection("c3", customerSender)
	rooms.Join(customer, "conv-1")

	rooms.BroadcastAgents(domain.NewServerEvent(domain.EventNewConversation, nil))

	assert.Equal(t, []string{domain.EventNewConversation}, senderA.EventTypes())
	assert.Equal(t, []string{domain.EventNewConversation}, senderB.EventTypes())
	assert.Empty(t, customerSender.Events(), "agent-only broadcast must not reach customers")
}

func TestRooms_DropRemovesEverywhere(t *testing.T) {
	rooms := NewRooms(zap.NewNop())
	sender := &fakeSender{}
	conn := NewAgentConnection("c1", newTestAgent("agent-1", "An"), sender)

	rooms.RegisterAgent(conn)
	rooms.Join(conn, "conv-1")
	rooms.Join(conn, "conv-2")
	require.Len(t, rooms.ConversationsOf(conn), 2)

	rooms.Drop(conn)

	assert.Empty(t, rooms.ConversationsOf(conn))
	assert.Equal(t, 0, rooms.MemberCount("conv-1"))
	assert.Equal(t, 0, rooms.MemberCount("conv-2"))

	rooms.BroadcastAgents(domain.NewServerEvent(domain.EventNewConversation, nil))
	assert.Empty(t, sender.Events())
}

func TestRooms_FailingConnectionIsDropped(t *testing.T) {
	rooms := NewRooms(zap.NewNop())
	broken := NewCustomerConnection("c1", &fakeSender{failWith: errors.New("write: broken pipe")})
	healthySender := &fakeSender{}
	healthy := NewAgentConnection("c2", newTestAgent("agent-1", "An"), healthySender)

	rooms.Join(broken, "conv-1")
	rooms.Join(healthy, "conv-1")

	rooms.Broadcast("conv-1", domain.NewServerEvent("ping", nil), nil)

	assert.Equal(t, 1, rooms.MemberCount("conv-1"))
	assert.Equal(t, []string{"ping"}, healthySender.EventTypes())
}

func TestRooms_SequentialBroadcastsKeepOrder(t *testing.T) {
	rooms := NewRooms(zap.NewNop())
	sender := &fakeSender{}
	conn := NewCustomerConnection("c1", sender)
	rooms.Join(conn, "conv-1")

	const n = 50
	for i := 0; i < n; i++ {
		rooms.Broadcast("conv-1", domain.NewServerEvent(fmt.Sprintf("event-%03d", i), nil), nil)
	}

	types := sender.EventTypes()
	require.Len(t, types, n)
	for i := 0; i < n; i++ {
		assert.Equal(t, fmt.Sprintf("event-%03d", i), types[i])
	}
}
