package domain

import (
	"time"
)

// Conversation status lifecycle: waiting -> active -> closed.
const (
	StatusWaiting = "waiting"
	StatusActive  = "active"
	StatusClosed  = "closed"
)

// Message sender kinds.
const (
	SenderCustomer = "customer"
	SenderAgent    = "agent"
)

// MaxMessageLength bounds chat message content, in runes.
const MaxMessageLength = 4000

type Agent struct {
	ID       string     `bson:"_id" json:"id"`
	Name     string     `bson:"name" json:"name"`
	Email    string     `bson:"email" json:"email"`
	Password string     `bson:"password" json:"-"`
	Avatar   string     `bson:"avatar,omitempty" json:"avatar,omitempty"`
	IsOnline bool       `bson:"is_online" json:"is_online"`
	IsActive bool       `bson:"is_active" json:"is_active"`
	LastSeen *time.Time `bson:"last_seen,omitempty" json:"last_seen,omitempty"`
}

// PublicSnapshot strips credentials for embedding in wire events.
func (a *Agent) PublicSnapshot() map[string]interface{} {
	return map[string]interface{}{
		"id":        a.ID,
		"name":      a.Name,
		"avatar":    a.Avatar,
		"is_online": a.IsOnline,
	}
}

type CustomerProfile struct {
	Name         string                 `bson:"name" json:"name"`
	Phone        string                 `bson:"phone" json:"phone"`
	Email        string                 `bson:"email,omitempty" json:"email,omitempty"`
	Address      string                 `bson:"address,omitempty" json:"address,omitempty"`
	CustomFields map[string]interface{} `bson:"custom_fields,omitempty" json:"custom_fields,omitempty"`
}

type LastMessage struct {
	Content   string    `bson:"content" json:"content"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
	Sender    string    `bson:"sender" json:"sender"`
}

type Conversation struct {
	ID               string          `bson:"_id" json:"conversation_id"`
	Customer         CustomerProfile `bson:"customer" json:"customer"`
	AssignedAgent    string          `bson:"assigned_agent,omitempty" json:"assigned_agent,omitempty"`
	Status           string          `bson:"status" json:"status"`
	IsCustomerOnline bool            `bson:"is_customer_online" json:"is_customer_online"`
	LastMessage      *LastMessage    `bson:"last_message,omitempty" json:"last_message,omitempty"`
	WebsiteURL       string          `bson:"website_url,omitempty" json:"website_url,omitempty"`
	UserAgent        string          `bson:"user_agent,omitempty" json:"user_agent,omitempty"`
	CreatedAt        time.Time       `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `bson:"updated_at" json:"updated_at"`
}

// SenderInfo is the sender display snapshot captured when a message is
// created, never live-joined afterwards.
type SenderInfo struct {
	ID     string `bson:"id,omitempty" json:"id,omitempty"`
	Name   string `bson:"name" json:"name"`
	Avatar string `bson:"avatar,omitempty" json:"avatar,omitempty"`
}

type Message struct {
	ID             string     `bson:"_id" json:"id"`
	ConversationID string     `bson:"conversation_id" json:"conversation_id"`
	Content        string     `bson:"content" json:"content"`
	Sender         string     `bson:"sender" json:"sender"`
	SenderInfo     SenderInfo `bson:"sender_info" json:"sender_info"`
	MessageType    string     `bson:"message_type" json:"message_type"`
	CreatedAt      time.Time  `bson:"created_at" json:"created_at"`
}
