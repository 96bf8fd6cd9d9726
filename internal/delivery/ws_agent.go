package delivery

import (
	"context"
	"encoding/json"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/huynd94/system-live-chat/internal/chat"
	"github.com/huynd94/system-live-chat/internal/domain"
)

// HandleAgent runs one agent websocket connection. Admission requires a
// bearer token resolving to an active agent; the connection is refused
// before any event is processed otherwise.
func (g *Gateway) HandleAgent(c *websocket.Conn) {
	defer c.Close()

	ctx := context.Background()
	sender := &wsSender{conn: c}

	agent, err := g.authenticator.Authenticate(ctx, c.Query("token"))
	if err != nil {
		_ = sender.Send(domain.NewErrorEvent("authentication failed"))
		g.logger.Warn("agent connection refused", zap.Error(err))
		return
	}

	conn := chat.NewAgentConnection(uuid.NewString(), agent, sender)
	log := g.logger.With(zap.String("agent_id", agent.ID), zap.String("connection_id", conn.ID))

	assigned, err := g.lifecycle.AgentConnected(ctx, conn)
	if err != nil {
		// Presence is up but rejoin failed; the agent can still join
		// rooms explicitly.
		g.reportError(conn, err)
	}
	for _, conversation := range assigned {
		g.mirrorJoin(ctx, conversation.ID, conn)
	}
	if err := g.redis.SetAgentOnline(ctx, agent.ID, true); err != nil {
		log.Warn("failed to mirror agent online flag", zap.Error(err))
	}

	defer func() {
		for _, conversationID := range g.rooms.ConversationsOf(conn) {
			g.mirrorLeave(ctx, conversationID, conn)
		}
		g.lifecycle.AgentDisconnected(ctx, conn)
		if !g.presence.IsAgentOnline(agent.ID) {
			if err := g.redis.SetAgentOnline(ctx, agent.ID, false); err != nil {
				log.Warn("failed to mirror agent offline flag", zap.Error(err))
			}
		}
		log.Info("agent websocket closed")
	}()

	for {
		var event domain.ClientEvent
		if err := c.ReadJSON(&event); err != nil {
			log.Debug("agent websocket read ended", zap.Error(err))
			return
		}
		g.dispatchAgentEvent(ctx, conn, event, log)
	}
}

func (g *Gateway) dispatchAgentEvent(ctx context.Context, conn *chat.Connection, event domain.ClientEvent, log *zap.Logger) {
	switch event.Type {
	case domain.EventSendMessage:
		payload, err := decode[domain.SendMessagePayload](event.Data)
		if err != nil {
			g.reportError(conn, err)
			return
		}
		senderInfo := domain.SenderInfo{
			ID:     conn.Agent.ID,
			Name:   conn.Agent.Name,
			Avatar: conn.Agent.Avatar,
		}
		if _, err := g.relay.Send(ctx, payload.ConversationID, payload.Content, domain.SenderAgent, senderInfo); err != nil {
			g.reportError(conn, err)
		}

	case domain.EventJoinConversation:
		payload, err := decode[domain.ConversationRefPayload](event.Data)
		if err != nil {
			g.reportError(conn, err)
			return
		}
		if payload.ConversationID == "" {
			g.reportError(conn, domain.NewValidationError("conversationId", "required"))
			return
		}
		// Joining a conversation assigned to another agent is allowed as
		// read-only observation; sending stays forbidden.
		g.rooms.Join(conn, payload.ConversationID)
		g.rooms.Broadcast(payload.ConversationID,
			domain.NewServerEvent(domain.EventAgentViewing, map[string]interface{}{
				"agentId":   conn.Agent.ID,
				"agentName": conn.Agent.Name,
			}), conn)
		g.mirrorJoin(ctx, payload.ConversationID, conn)

	case domain.EventLeaveConversation:
		payload, err := decode[domain.ConversationRefPayload](event.Data)
		if err != nil {
			g.reportError(conn, err)
			return
		}
		g.rooms.Leave(conn, payload.ConversationID)
		g.mirrorLeave(ctx, payload.ConversationID, conn)

	case domain.EventTyping, domain.EventStopTyping:
		payload, err := decode[domain.ConversationRefPayload](event.Data)
		if err != nil {
			g.reportError(conn, err)
			return
		}
		isTyping := event.Type == domain.EventTyping
		if err := g.relay.Typing(ctx, conn, payload.ConversationID, isTyping); err != nil {
			g.reportError(conn, err)
			return
		}
		if err := g.redis.SetUserTyping(ctx, payload.ConversationID, conn.Agent.ID, isTyping); err != nil {
			log.Debug("failed to mirror typing flag", zap.Error(err))
		}

	default:
		// Unknown events are ignored, not fatal.
		log.Debug("ignoring unknown agent event", zap.String("event_type", event.Type))
	}
}

func (g *Gateway) mirrorJoin(ctx context.Context, conversationID string, conn *chat.Connection) {
	if err := g.redis.AddUserToConversation(ctx, conversationID, mirrorUserID(conn), string(conn.Role)); err != nil {
		g.logger.Warn("failed to mirror room join",
			zap.String("conversation_id", conversationID), zap.Error(err))
	}
}

func (g *Gateway) mirrorLeave(ctx context.Context, conversationID string, conn *chat.Connection) {
	if err := g.redis.RemoveUserFromConversation(ctx, conversationID, mirrorUserID(conn)); err != nil {
		g.logger.Warn("failed to mirror room leave",
			zap.String("conversation_id", conversationID), zap.Error(err))
	}
}

// mirrorUserID keys the Redis presence mirror: agents by identity so a
// reconnect replaces the old entry, anonymous customers by connection.
func mirrorUserID(conn *chat.Connection) string {
	if conn.Role == chat.RoleAgent {
		return conn.AgentID()
	}
	return conn.ID
}

// decode unmarshals an event payload, mapping malformed JSON to a
// validation error so it surfaces as a scoped error event.
func decode[T any](data json.RawMessage) (T, error) {
	var payload T
	if len(data) == 0 {
		return payload, domain.NewValidationError("data", "required")
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return payload, domain.NewValidationError("data", "malformed payload")
	}
	return payload, nil
}
