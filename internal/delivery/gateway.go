// Package delivery exposes the chat core over fiber: websocket endpoints
// for agents and customers, and the dashboard REST surface.
package delivery

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/huynd94/system-live-chat/internal/auth"
	"github.com/huynd94/system-live-chat/internal/chat"
	"github.com/huynd94/system-live-chat/internal/domain"
	"github.com/huynd94/system-live-chat/internal/infrastructure/redis"
)

// Gateway admits websocket connections, dispatches their inbound events
// to the lifecycle and relay services, and bridges events mirrored by
// other instances into the local rooms.
type Gateway struct {
	lifecycle     *chat.Lifecycle
	relay         *chat.Relay
	rooms         *chat.Rooms
	presence      *chat.Presence
	authenticator *auth.Authenticator
	redis         *redis.RedisClient
	origin        string
	logger        *zap.Logger
}

func NewGateway(
	lifecycle *chat.Lifecycle,
	relay *chat.Relay,
	rooms *chat.Rooms,
	presence *chat.Presence,
	authenticator *auth.Authenticator,
	redisClient *redis.RedisClient,
	origin string,
	logger *zap.Logger,
) *Gateway {
	return &Gateway{
		lifecycle:     lifecycle,
		relay:         relay,
		rooms:         rooms,
		presence:      presence,
		authenticator: authenticator,
		redis:         redisClient,
		origin:        origin,
		logger:        logger,
	}
}

// wsSender serializes writes to one websocket connection. Fan-out workers
// and the event loop both write, so every write goes through the mutex.
type wsSender struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *wsSender) Send(event domain.ServerEvent) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("websocket write panic: %v", r)
		}
	}()
	return s.conn.WriteJSON(event)
}

// reportError maps a failure to a scoped error event on the originating
// connection. Business-rule errors carry their own message; store
// failures are logged and surfaced generically.
func (g *Gateway) reportError(conn *chat.Connection, err error) {
	switch {
	case domain.IsValidation(err),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrForbidden),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrClosed):
		conn.SendError(err.Error())
	case errors.Is(err, domain.ErrStore):
		g.logger.Error("store failure", zap.String("connection_id", conn.ID), zap.Error(err))
		conn.SendError("temporary failure, please try again")
	default:
		g.logger.Error("unexpected failure", zap.String("connection_id", conn.ID), zap.Error(err))
		conn.SendError("internal error")
	}
}

// HandleMessageEvent relays a message accepted by another instance to the
// room members connected here.
func (g *Gateway) HandleMessageEvent(event domain.MessageEvent) {
	if event.Origin == g.origin {
		return
	}
	g.rooms.Broadcast(event.Message.ConversationID,
		domain.NewServerEvent(domain.EventNewMessage, map[string]interface{}{
			"message":      event.Message,
			"conversation": event.Conversation,
		}), nil)
}

func (g *Gateway) HandleTypingEvent(event domain.TypingEvent) {
	if event.Origin == g.origin {
		return
	}

	var serverEvent domain.ServerEvent
	switch {
	case event.UserType == string(chat.RoleAgent) && event.IsTyping:
		serverEvent = domain.NewServerEvent(domain.EventAgentTyping, map[string]interface{}{
			"agentId": event.UserID,
		})
	case event.UserType == string(chat.RoleAgent):
		serverEvent = domain.NewServerEvent(domain.EventAgentStopTyping, map[string]interface{}{
			"agentId": event.UserID,
		})
	case event.IsTyping:
		serverEvent = domain.NewServerEvent(domain.EventCustomerTyping, nil)
	default:
		serverEvent = domain.NewServerEvent(domain.EventCustomerStopTyping, nil)
	}
	g.rooms.Broadcast(event.ConversationID, serverEvent, nil)
}

func (g *Gateway) HandleConnectionStatusEvent(event domain.ConnectionStatusEvent) {
	if event.Origin == g.origin {
		return
	}
	if kind, _ := event.ConnectionStatus["event"].(string); kind == "customer_disconnected" {
		g.rooms.Broadcast(event.ConversationID,
			domain.NewServerEvent(domain.EventCustomerOffline, nil), nil)
	}
}
