package chat

import (
	"sync"

	"go.uber.org/zap"

	"github.com/huynd94/system-live-chat/internal/domain"
)

// Rooms maps a conversation id to the set of live connections subscribed
// to it: the bound customer plus every agent that joined or was
// auto-subscribed. It also keeps the global set of agent connections so
// new-conversation notifications reach agents that are in no room yet.
//
// Membership is only mutated through Join, Leave, RegisterAgent and Drop.
type Rooms struct {
	mu      sync.RWMutex
	members map[string]map[*Connection]struct{}
	joined  map[*Connection]map[string]struct{}
	agents  map[*Connection]struct{}
	logger  *zap.Logger
}

func NewRooms(logger *zap.Logger) *Rooms {
	return &Rooms{
		members: make(map[string]map[*Connection]struct{}),
		joined:  make(map[*Connection]map[string]struct{}),
		agents:  make(map[*Connection]struct{}),
		logger:  logger,
	}
}

func (r *Rooms) Join(conn *Connection, conversationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[conversationID]; !ok {
		r.members[conversationID] = make(map[*Connection]struct{})
	}
	r.members[conversationID][conn] = struct{}{}

	if _, ok := r.joined[conn]; !ok {
		r.joined[conn] = make(map[string]struct{})
	}
	r.joined[conn][conversationID] = struct{}{}
}

func (r *Rooms) Leave(conn *Connection, conversationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(conn, conversationID)
}

func (r *Rooms) leaveLocked(conn *Connection, conversationID string) {
	if set, ok := r.members[conversationID]; ok {
		delete(set, conn)
		if len(set) == 0 {
			delete(r.members, conversationID)
		}
	}
	if set, ok := r.joined[conn]; ok {
		delete(set, conversationID)
		if len(set) == 0 {
			delete(r.joined, conn)
		}
	}
}

// RegisterAgent adds an agent connection to the global notification set.
func (r *Rooms) RegisterAgent(conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[conn] = struct{}{}
}

// Drop removes the connection from every room and from the agent set.
// Called on disconnect; leaving is implicit.
func (r *Rooms) Drop(conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for conversationID := range r.joined[conn] {
		if set, ok := r.members[conversationID]; ok {
			delete(set, conn)
			if len(set) == 0 {
				delete(r.members, conversationID)
			}
		}
	}
	delete(r.joined, conn)
	delete(r.agents, conn)
}

// Broadcast fans an event out to every member of the conversation's room,
// optionally excluding the originator. A room with zero members is a
// legal no-op.
func (r *Rooms) Broadcast(conversationID string, event domain.ServerEvent, exclude *Connection) {
	r.mu.RLock()
	targets := make([]*Connection, 0, len(r.members[conversationID]))
	for conn := range r.members[conversationID] {
		if conn != exclude {
			targets = append(targets, conn)
		}
	}
	r.mu.RUnlock()

	r.send(targets, event)
}

// BroadcastAgents fans an event out to every connected agent, room
// membership aside. Used for new-conversation notifications.
func (r *Rooms) BroadcastAgents(event domain.ServerEvent) {
	r.mu.RLock()
	targets := make([]*Connection, 0, len(r.agents))
	for conn := range r.agents {
		targets = append(targets, conn)
	}
	r.mu.RUnlock()

	r.send(targets, event)
}

// send delivers concurrently and waits for completion, so sequential
// broadcasts to the same room are observed in order by every member.
func (r *Rooms) send(targets []*Connection, event domain.ServerEvent) {
	if len(targets) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, conn := range targets {
		wg.Add(1)
		go func(c *Connection) {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					r.logger.Warn("recovered from panic during broadcast",
						zap.String("connection_id", c.ID), zap.Any("panic", rec))
				}
			}()

			if err := c.Send(event); err != nil {
				r.logger.Warn("failed to deliver event, dropping connection",
					zap.String("connection_id", c.ID),
					zap.String("event_type", event.Type),
					zap.Error(err))
				r.Drop(c)
			}
		}(conn)
	}
	wg.Wait()
}

// MemberCount reports the current size of a conversation's room.
func (r *Rooms) MemberCount(conversationID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members[conversationID])
}

// ConversationsOf lists the rooms a connection is currently a member of.
func (r *Rooms) ConversationsOf(conn *Connection) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.joined[conn]))
	for id := range r.joined[conn] {
		ids = append(ids, id)
	}
	return ids
}
