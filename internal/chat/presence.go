package chat

import (
	"sync"
)

// Presence tracks which agent identities and which conversation ids
// currently have a live connection. Pure in-memory state; membership is
// only mutated through this type's methods.
//
// Agent presence is last writer wins: a second connection for the same
// agent id replaces the first, and the stale connection's disconnect does
// not knock the newer one offline.
type Presence struct {
	mu        sync.RWMutex
	agents    map[string]*Connection // agent id -> live connection
	customers map[string]*Connection // conversation id -> customer connection
}

func NewPresence() *Presence {
	return &Presence{
		agents:    make(map[string]*Connection),
		customers: make(map[string]*Connection),
	}
}

func (p *Presence) AgentUp(conn *Connection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.agents[conn.AgentID()] = conn
}

// AgentDown removes the agent's presence entry, unless a newer connection
// has already replaced conn.
func (p *Presence) AgentDown(conn *Connection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if current, ok := p.agents[conn.AgentID()]; ok && current == conn {
		delete(p.agents, conn.AgentID())
	}
}

func (p *Presence) IsAgentOnline(agentID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.agents[agentID]
	return ok
}

// AgentConnection returns the live connection for an agent, or nil.
func (p *Presence) AgentConnection(agentID string) *Connection {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.agents[agentID]
}

func (p *Presence) OnlineAgentIDs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]string, 0, len(p.agents))
	for id := range p.agents {
		ids = append(ids, id)
	}
	return ids
}

func (p *Presence) CustomerUp(conversationID string, conn *Connection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.customers[conversationID] = conn
}

func (p *Presence) CustomerDown(conversationID string, conn *Connection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if current, ok := p.customers[conversationID]; ok && current == conn {
		delete(p.customers, conversationID)
	}
}

func (p *Presence) IsCustomerOnline(conversationID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.customers[conversationID]
	return ok
}
