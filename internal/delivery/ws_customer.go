package delivery

import (
	"context"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/huynd94/system-live-chat/internal/chat"
	"github.com/huynd94/system-live-chat/internal/domain"
)

// HandleCustomer runs one anonymous customer websocket connection. The
// connection carries no identity until it starts a conversation; from
// then on it is bound to that single conversation id.
func (g *Gateway) HandleCustomer(c *websocket.Conn) {
	defer c.Close()

	ctx := context.Background()
	sender := &wsSender{conn: c}
	conn := chat.NewCustomerConnection(uuid.NewString(), sender)
	log := g.logger.With(zap.String("connection_id", conn.ID))

	defer func() {
		if conn.ConversationID != "" {
			g.mirrorLeave(ctx, conn.ConversationID, conn)
		}
		g.lifecycle.CustomerDisconnect(ctx, conn)
		g.rooms.Drop(conn)
		log.Info("customer websocket closed")
	}()

	for {
		var event domain.ClientEvent
		if err := c.ReadJSON(&event); err != nil {
			log.Debug("customer websocket read ended", zap.Error(err))
			return
		}
		g.dispatchCustomerEvent(ctx, conn, event, log)
	}
}

func (g *Gateway) dispatchCustomerEvent(ctx context.Context, conn *chat.Connection, event domain.ClientEvent, log *zap.Logger) {
	switch event.Type {
	case domain.EventStartConversation:
		payload, err := decode[domain.StartConversationPayload](event.Data)
		if err != nil {
			g.reportError(conn, err)
			return
		}
		conversation, err := g.lifecycle.Start(ctx, conn, payload)
		if err != nil {
			g.reportError(conn, err)
			return
		}
		if err := conn.Send(domain.NewServerEvent(domain.EventConversationStarted, map[string]interface{}{
			"conversationId": conversation.ID,
			"conversation":   conversation,
		})); err != nil {
			log.Warn("failed to confirm conversation start", zap.Error(err))
		}
		g.mirrorJoin(ctx, conversation.ID, conn)

	case domain.EventSendMessage:
		payload, err := decode[domain.SendMessagePayload](event.Data)
		if err != nil {
			g.reportError(conn, err)
			return
		}
		if err := g.requireBinding(conn, payload.ConversationID); err != nil {
			g.reportError(conn, err)
			return
		}
		var senderInfo domain.SenderInfo
		if payload.SenderInfo != nil {
			senderInfo = *payload.SenderInfo
		}
		if _, err := g.relay.Send(ctx, payload.ConversationID, payload.Content, domain.SenderCustomer, senderInfo); err != nil {
			g.reportError(conn, err)
		}

	case domain.EventTyping, domain.EventStopTyping:
		payload, err := decode[domain.ConversationRefPayload](event.Data)
		if err != nil {
			g.reportError(conn, err)
			return
		}
		if err := g.requireBinding(conn, payload.ConversationID); err != nil {
			g.reportError(conn, err)
			return
		}
		isTyping := event.Type == domain.EventTyping
		if err := g.relay.Typing(ctx, conn, payload.ConversationID, isTyping); err != nil {
			g.reportError(conn, err)
			return
		}
		if err := g.redis.SetUserTyping(ctx, payload.ConversationID, conn.ID, isTyping); err != nil {
			log.Debug("failed to mirror typing flag", zap.Error(err))
		}

	default:
		log.Debug("ignoring unknown customer event", zap.String("event_type", event.Type))
	}
}

// requireBinding keeps a customer connection scoped to the single
// conversation it started.
func (g *Gateway) requireBinding(conn *chat.Connection, conversationID string) error {
	if conversationID == "" {
		return domain.NewValidationError("conversationId", "required")
	}
	if conn.ConversationID == "" {
		return domain.NewValidationError("conversationId", "no conversation started on this connection")
	}
	if conn.ConversationID != conversationID {
		return domain.NewValidationError("conversationId", "connection is bound to a different conversation")
	}
	return nil
}
