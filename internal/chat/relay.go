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

// Relay validates and persists inbound chat messages, updates the
// conversation summary, and fans the result out to the room. The persist
// and broadcast run inside the per-conversation critical section, so room
// members observe messages in acceptance order.
type Relay struct {
	conversations ConversationStore
	messages      MessageStore
	rooms         *Rooms
	locks         *ConversationLocks
	producer      EventProducer
	origin        string
	logger        *zap.Logger
}

func NewRelay(
	conversations ConversationStore,
	messages MessageStore,
	rooms *Rooms,
	locks *ConversationLocks,
	producer EventProducer,
	origin string,
	logger *zap.Logger,
) *Relay {
	return &Relay{
		conversations: conversations,
		messages:      messages,
		rooms:         rooms,
		locks:         locks,
		producer:      producer,
		origin:        origin,
		logger:        logger,
	}
}

// Send accepts one inbound chat message. For the agent path the sender
// must be the assigned agent; the customer path only requires the
// conversation to exist and be open.
func (r *Relay) Send(ctx context.Context, conversationID, content, sender string, senderInfo domain.SenderInfo) (*domain.Message, error) {
	if conversationID == "" {
		return nil, domain.NewValidationError("conversationId", "required")
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, domain.NewValidationError("content", "required")
	}
	if len([]rune(content)) > domain.MaxMessageLength {
		return nil, domain.NewValidationError("content", "exceeds maximum length")
	}

	unlock := r.locks.Lock(conversationID)
	defer unlock()

	conversation, err := r.conversations.Find(ctx, conversationID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.StoreError("find conversation", err)
	}

	if conversation.Status == domain.StatusClosed {
		return nil, domain.ErrClosed
	}
	if sender == domain.SenderAgent && conversation.AssignedAgent != senderInfo.ID {
		return nil, domain.ErrForbidden
	}
	if sender == domain.SenderCustomer && senderInfo.Name == "" {
		senderInfo.Name = conversation.Customer.Name
	}

	now := time.Now().UTC()
	message := &domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Content:        content,
		Sender:         sender,
		SenderInfo:     senderInfo,
		MessageType:    "text",
		CreatedAt:      now,
	}

	if err := r.messages.SaveMessage(ctx, message); err != nil {
		return nil, domain.StoreError("save message", err)
	}

	conversation.LastMessage = &domain.LastMessage{
		Content:   content,
		Timestamp: now,
		Sender:    sender,
	}
	conversation.UpdatedAt = now
	if err := r.conversations.Save(ctx, conversation); err != nil {
		return nil, domain.StoreError("save conversation", err)
	}

	r.rooms.Broadcast(conversationID, domain.NewServerEvent(domain.EventNewMessage, map[string]interface{}{
		"message":      message,
		"conversation": conversation,
	}), nil)

	mirror := domain.MessageEvent{Origin: r.origin, Message: *message, Conversation: conversation}
	if err := r.producer.Publish(ctx, mirror); err != nil {
		r.logger.Warn("failed to mirror message",
			zap.String("conversation_id", conversationID), zap.Error(err))
	}

	r.logger.Debug("message relayed",
		zap.String("conversation_id", conversationID),
		zap.String("message_id", message.ID),
		zap.String("sender", sender))

	return message, nil
}

// Typing relays a typing indicator to the rest of the room. Advisory
// only: never persisted, no delivery guarantee, no validation beyond the
// conversation id being present.
func (r *Relay) Typing(ctx context.Context, conn *Connection, conversationID string, isTyping bool) error {
	if conversationID == "" {
		return domain.NewValidationError("conversationId", "required")
	}

	var event domain.ServerEvent
	if conn.Role == RoleAgent {
		data := map[string]interface{}{
			"agentId":   conn.AgentID(),
			"agentName": conn.Agent.Name,
		}
		if isTyping {
			event = domain.NewServerEvent(domain.EventAgentTyping, data)
		} else {
			event = domain.NewServerEvent(domain.EventAgentStopTyping, map[string]interface{}{
				"agentId": conn.AgentID(),
			})
		}
	} else {
		if isTyping {
			event = domain.NewServerEvent(domain.EventCustomerTyping, nil)
		} else {
			event = domain.NewServerEvent(domain.EventCustomerStopTyping, nil)
		}
	}

	r.rooms.Broadcast(conversationID, event, conn)

	mirror := domain.TypingEvent{
		Origin:         r.origin,
		ConversationID: conversationID,
		UserID:         conn.AgentID(),
		UserType:       string(conn.Role),
		IsTyping:       isTyping,
		Timestamp:      time.Now().UTC(),
	}
	if err := r.producer.Publish(ctx, mirror); err != nil {
		r.logger.Debug("failed to mirror typing indicator",
			zap.String("conversation_id", conversationID), zap.Error(err))
	}

	return nil
}
