package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// PresenceEntry is one live participant as stored in the conversation
// presence hash.
type PresenceEntry struct {
	UserID   string    `json:"user_id"`
	UserType string    `json:"user_type"`
	JoinedAt time.Time `json:"joined_at"`
}

// ConversationPresence is the dashboard view of who is live in a
// conversation.
type ConversationPresence struct {
	Users             map[string]PresenceEntry `json:"users"`
	CustomerConnected bool                     `json:"customer_connected"`
	AgentConnected    bool                     `json:"agent_connected"`
	TotalCustomers    int                      `json:"total_customer"`
	TotalAgents       int                      `json:"total_agent"`
}

func conversationUsersKey(conversationID string) string {
	return fmt.Sprintf("conversation:%s:users", conversationID)
}

func (r *RedisClient) AddUserToConversation(ctx context.Context, conversationID, userID, userType string) error {
	entry, err := json.Marshal(PresenceEntry{
		UserID:   userID,
		UserType: userType,
		JoinedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return r.client.HSet(ctx, conversationUsersKey(conversationID), userID, entry).Err()
}

func (r *RedisClient) RemoveUserFromConversation(ctx context.Context, conversationID, userID string) error {
	return r.client.HDel(ctx, conversationUsersKey(conversationID), userID).Err()
}

// GetConversationUsers returns who is live in a conversation, with
// customer/agent rollups for the dashboard.
func (r *RedisClient) GetConversationUsers(ctx context.Context, conversationID string) (*ConversationPresence, error) {
	raw, err := r.client.HGetAll(ctx, conversationUsersKey(conversationID)).Result()
	if err != nil {
		return nil, err
	}

	presence := &ConversationPresence{Users: make(map[string]PresenceEntry, len(raw))}
	for userID, value := range raw {
		var entry PresenceEntry
		if err := json.Unmarshal([]byte(value), &entry); err != nil {
			continue
		}
		switch entry.UserType {
		case "customer":
			presence.TotalCustomers++
		case "agent":
			presence.TotalAgents++
		}
		presence.Users[userID] = entry
	}
	presence.CustomerConnected = presence.TotalCustomers > 0
	presence.AgentConnected = presence.TotalAgents > 0

	return presence, nil
}

// SetAgentOnline mirrors the agent online flag for the dashboard agent
// list.
func (r *RedisClient) SetAgentOnline(ctx context.Context, agentID string, online bool) error {
	const key = "agents:online"
	if online {
		return r.client.HSet(ctx, key, agentID, time.Now().UTC().Format(time.RFC3339)).Err()
	}
	return r.client.HDel(ctx, key, agentID).Err()
}

// SetUserTyping keeps a short-lived typing marker. The TTL is a UI
// concern, not a protocol guarantee.
func (r *RedisClient) SetUserTyping(ctx context.Context, conversationID, userID string, isTyping bool) error {
	key := fmt.Sprintf("conversation:%s:typing:%s", conversationID, userID)
	if isTyping {
		return r.client.Set(ctx, key, "true", 30*time.Second).Err()
	}
	return r.client.Del(ctx, key).Err()
}

func (r *RedisClient) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisClient) Close() error {
	return r.client.Close()
}
