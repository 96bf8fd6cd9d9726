// Package chat implements the real-time routing core: presence tracking,
// room fan-out, conversation lifecycle and message relay.
package chat

import (
	"github.com/huynd94/system-live-chat/internal/domain"
)

type Role string

const (
	RoleAgent    Role = "agent"
	RoleCustomer Role = "customer"
)

// Sender delivers a single event to one live connection. Implementations
// must be safe for concurrent use; the websocket implementation serializes
// writes with a per-connection mutex.
type Sender interface {
	Send(event domain.ServerEvent) error
}

// Connection is the ephemeral state of one live socket. It never survives
// a disconnect or a process restart.
type Connection struct {
	ID    string
	Role  Role
	Agent *domain.Agent // agent connections only

	// ConversationID is the single conversation a customer connection is
	// bound to, set when the customer starts a conversation. Only the
	// connection's own event loop writes it.
	ConversationID string

	sender Sender
}

func NewAgentConnection(id string, agent *domain.Agent, sender Sender) *Connection {
	return &Connection{ID: id, Role: RoleAgent, Agent: agent, sender: sender}
}

func NewCustomerConnection(id string, sender Sender) *Connection {
	return &Connection{ID: id, Role: RoleCustomer, sender: sender}
}

func (c *Connection) Send(event domain.ServerEvent) error {
	return c.sender.Send(event)
}

// SendError reports a scoped failure back to this connection only.
func (c *Connection) SendError(message string) {
	_ = c.sender.Send(domain.NewErrorEvent(message))
}

// AgentID returns the authenticated agent id, or "" for customers.
func (c *Connection) AgentID() string {
	if c.Agent == nil {
		return ""
	}
	return c.Agent.ID
}
