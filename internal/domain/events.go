package domain

import (
	"encoding/json"
	"time"
)

// Inbound event types. Customer connections may send start_conversation,
// send_message, typing and stop_typing; agent connections may send
// send_message, join_conversation, leave_conversation, typing and
// stop_typing. Anything else is ignored.
const (
	EventStartConversation = "start_conversation"
	EventSendMessage       = "send_message"
	EventJoinConversation  = "join_conversation"
	EventLeaveConversation = "leave_conversation"
	EventTyping            = "typing"
	EventStopTyping        = "stop_typing"
)

// Outbound event types.
const (
	EventConversationStarted = "conversation_started"
	EventNewConversation     = "new_conversation"
	EventNewMessage          = "new_message"
	EventAgentTyping         = "agent_typing"
	EventAgentStopTyping     = "agent_stop_typing"
	EventCustomerTyping      = "customer_typing"
	EventCustomerStopTyping  = "customer_stop_typing"
	EventCustomerOffline     = "customer_offline"
	EventAgentViewing        = "agent_viewing"
	EventError               = "error"
)

// ClientEvent is the inbound frame. Data is decoded per Type; a frame
// whose payload does not match the schema for its tag is rejected with a
// validation error back to the sender only.
type ClientEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ServerEvent is the outbound envelope.
type ServerEvent struct {
	Type    string      `json:"type"`
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func NewServerEvent(eventType string, data interface{}) ServerEvent {
	return ServerEvent{Type: eventType, Success: true, Data: data}
}

func NewErrorEvent(message string) ServerEvent {
	return ServerEvent{Type: EventError, Success: false, Error: message}
}

type StartConversationPayload struct {
	Customer   CustomerProfile `json:"customer"`
	WebsiteURL string          `json:"websiteUrl"`
	UserAgent  string          `json:"userAgent"`
}

type SendMessagePayload struct {
	ConversationID string      `json:"conversationId"`
	Content        string      `json:"content"`
	SenderInfo     *SenderInfo `json:"senderInfo,omitempty"`
}

// ConversationRefPayload covers join_conversation, leave_conversation,
// typing and stop_typing, which all carry only the conversation id.
type ConversationRefPayload struct {
	ConversationID string `json:"conversationId"`
}

// MessageEvent mirrors accepted messages to the event pipeline so sibling
// service instances can fan them out to their own room members. Origin is
// the producing instance id; consumers skip their own events.
type MessageEvent struct {
	Origin       string        `json:"origin"`
	Message      Message       `json:"message"`
	Conversation *Conversation `json:"conversation,omitempty"`
}

// TypingEvent mirrors typing bursts to the event pipeline. Never persisted.
type TypingEvent struct {
	Origin         string    `json:"origin"`
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	UserType       string    `json:"user_type"`
	IsTyping       bool      `json:"is_typing"`
	Timestamp      time.Time `json:"timestamp"`
}

// ConnectionStatusEvent mirrors connect/disconnect transitions to the
// event pipeline.
type ConnectionStatusEvent struct {
	Origin           string                 `json:"origin"`
	ConversationID   string                 `json:"conversation_id"`
	ConnectionStatus map[string]interface{} `json:"connection_status"`
	Timestamp        time.Time              `json:"timestamp"`
}
