package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/huynd94/system-live-chat/internal/domain"
)

// Lifecycle owns the conversation state machine (waiting -> active ->
// closed) and assignment exclusivity. Every state transition runs inside
// the per-conversation critical section shared with the message relay.
type Lifecycle struct {
	conversations ConversationStore
	agents        AgentStore
	rooms         *Rooms
	presence      *Presence
	locks         *ConversationLocks
	producer      EventProducer
	origin        string
	logger        *zap.Logger
}

func NewLifecycle(
	conversations ConversationStore,
	agents AgentStore,
	rooms *Rooms,
	presence *Presence,
	locks *ConversationLocks,
	producer EventProducer,
	origin string,
	logger *zap.Logger,
) *Lifecycle {
	return &Lifecycle{
		conversations: conversations,
		agents:        agents,
		rooms:         rooms,
		presence:      presence,
		locks:         locks,
		producer:      producer,
		origin:        origin,
		logger:        logger,
	}
}

// Start creates a waiting conversation for an anonymous customer, binds
// the initiating connection as its sole customer, and notifies every
// connected agent about the new unassigned work.
func (l *Lifecycle) Start(ctx context.Context, conn *Connection, payload domain.StartConversationPayload) (*domain.Conversation, error) {
	if strings.TrimSpace(payload.Customer.Name) == "" {
		return nil, domain.NewValidationError("customer.name", "required")
	}
	if strings.TrimSpace(payload.Customer.Phone) == "" {
		return nil, domain.NewValidationError("customer.phone", "required")
	}
	if conn.ConversationID != "" {
		return nil, domain.NewValidationError("conversation", "connection already bound to a conversation")
	}

	now := time.Now().UTC()
	conversation := &domain.Conversation{
		ID:               uuid.NewString(),
		Customer:         payload.Customer,
		Status:           domain.StatusWaiting,
		IsCustomerOnline: true,
		WebsiteURL:       payload.WebsiteURL,
		UserAgent:        payload.UserAgent,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := l.conversations.Save(ctx, conversation); err != nil {
		return nil, domain.StoreError("save conversation", err)
	}

	conn.ConversationID = conversation.ID
	l.rooms.Join(conn, conversation.ID)
	l.presence.CustomerUp(conversation.ID, conn)

	l.rooms.BroadcastAgents(domain.NewServerEvent(domain.EventNewConversation, map[string]interface{}{
		"conversation": conversation,
	}))
	l.mirrorConnectionStatus(ctx, conversation.ID, "customer_connected")

	l.logger.Info("conversation started",
		zap.String("conversation_id", conversation.ID),
		zap.String("customer_name", conversation.Customer.Name))

	return conversation, nil
}

// Assign binds an agent to a waiting conversation. First committer wins:
// concurrent attempts for the same conversation resolve under the
// per-conversation lock so exactly one succeeds and the rest observe a
// conflict. Re-assigning to the current owner is a no-op success.
func (l *Lifecycle) Assign(ctx context.Context, conversationID, agentID string) (*domain.Conversation, error) {
	unlock := l.locks.Lock(conversationID)
	defer unlock()

	conversation, err := l.find(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	if conversation.Status == domain.StatusClosed {
		return nil, domain.ErrClosed
	}
	if conversation.AssignedAgent == agentID {
		return conversation, nil
	}
	if conversation.AssignedAgent != "" {
		return nil, domain.ErrConflict
	}

	conversation.AssignedAgent = agentID
	conversation.Status = domain.StatusActive
	conversation.UpdatedAt = time.Now().UTC()

	if err := l.conversations.Save(ctx, conversation); err != nil {
		return nil, domain.StoreError("save conversation", err)
	}

	// Subscribe the owner's live connection, if any, so messages flow
	// without an explicit join.
	if agentConn := l.presence.AgentConnection(agentID); agentConn != nil {
		l.rooms.Join(agentConn, conversationID)
	}

	l.logger.Info("conversation assigned",
		zap.String("conversation_id", conversationID),
		zap.String("agent_id", agentID))

	return conversation, nil
}

// Close marks a conversation terminal. Only the assigned agent may close;
// subscribers stay connected but no further messages are accepted.
func (l *Lifecycle) Close(ctx context.Context, conversationID, agentID string) (*domain.Conversation, error) {
	unlock := l.locks.Lock(conversationID)
	defer unlock()

	conversation, err := l.find(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	if conversation.AssignedAgent != agentID {
		return nil, domain.ErrForbidden
	}
	if conversation.Status == domain.StatusClosed {
		return conversation, nil
	}

	conversation.Status = domain.StatusClosed
	conversation.UpdatedAt = time.Now().UTC()

	if err := l.conversations.Save(ctx, conversation); err != nil {
		return nil, domain.StoreError("save conversation", err)
	}

	l.logger.Info("conversation closed",
		zap.String("conversation_id", conversationID),
		zap.String("agent_id", agentID))

	return conversation, nil
}

// CustomerDisconnect records the customer going offline and tells the
// agents left in the room. The conversation itself stays as it was.
func (l *Lifecycle) CustomerDisconnect(ctx context.Context, conn *Connection) {
	conversationID := conn.ConversationID
	if conversationID == "" {
		return
	}

	l.presence.CustomerDown(conversationID, conn)

	unlock := l.locks.Lock(conversationID)
	conversation, err := l.find(ctx, conversationID)
	if err == nil {
		conversation.IsCustomerOnline = false
		conversation.UpdatedAt = time.Now().UTC()
		if saveErr := l.conversations.Save(ctx, conversation); saveErr != nil {
			l.logger.Error("failed to persist customer offline flag",
				zap.String("conversation_id", conversationID), zap.Error(saveErr))
		}
	} else if !errors.Is(err, domain.ErrNotFound) {
		l.logger.Error("failed to load conversation on customer disconnect",
			zap.String("conversation_id", conversationID), zap.Error(err))
	}
	unlock()

	l.rooms.Broadcast(conversationID, domain.NewServerEvent(domain.EventCustomerOffline, nil), conn)
	l.mirrorConnectionStatus(ctx, conversationID, "customer_disconnected")
}

// AgentConnected admits an authenticated agent connection: marks the
// agent online, registers it for global notifications, and re-subscribes
// it to every waiting or active conversation assigned to it. This is what
// restores room membership after a reconnect.
func (l *Lifecycle) AgentConnected(ctx context.Context, conn *Connection) ([]domain.Conversation, error) {
	agentID := conn.AgentID()

	l.presence.AgentUp(conn)
	l.rooms.RegisterAgent(conn)

	if err := l.agents.SetOnline(ctx, agentID, true); err != nil {
		l.logger.Error("failed to mark agent online",
			zap.String("agent_id", agentID), zap.Error(err))
	}

	assigned, err := l.conversations.FindAssigned(ctx, agentID,
		[]string{domain.StatusWaiting, domain.StatusActive})
	if err != nil {
		return nil, domain.StoreError("find assigned conversations", err)
	}

	for _, conversation := range assigned {
		l.rooms.Join(conn, conversation.ID)
	}

	l.logger.Info("agent connected",
		zap.String("agent_id", agentID),
		zap.Int("rejoined_conversations", len(assigned)))

	return assigned, nil
}

// AgentDisconnected removes the agent connection from presence and from
// every room. In-flight writes it triggered still complete.
func (l *Lifecycle) AgentDisconnected(ctx context.Context, conn *Connection) {
	agentID := conn.AgentID()

	l.rooms.Drop(conn)
	l.presence.AgentDown(conn)

	// A replacement connection may already be up; only the last writer
	// flips the durable flag off.
	if !l.presence.IsAgentOnline(agentID) {
		if err := l.agents.SetOnline(ctx, agentID, false); err != nil {
			l.logger.Error("failed to mark agent offline",
				zap.String("agent_id", agentID), zap.Error(err))
		}
	}

	l.logger.Info("agent disconnected", zap.String("agent_id", agentID))
}

func (l *Lifecycle) find(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	conversation, err := l.conversations.Find(ctx, conversationID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.StoreError("find conversation", err)
	}
	return conversation, nil
}

func (l *Lifecycle) mirrorConnectionStatus(ctx context.Context, conversationID, event string) {
	status := domain.ConnectionStatusEvent{
		Origin:         l.origin,
		ConversationID: conversationID,
		ConnectionStatus: map[string]interface{}{
			"event":              event,
			"customer_connected": l.presence.IsCustomerOnline(conversationID),
			"room_members":       l.rooms.MemberCount(conversationID),
		},
		Timestamp: time.Now().UTC(),
	}
	if err := l.producer.Publish(ctx, status); err != nil {
		l.logger.Warn("failed to mirror connection status",
			zap.String("conversation_id", conversationID), zap.Error(err))
	}
}
