package chat

import (
	"context"

	"github.com/huynd94/system-live-chat/internal/domain"
)

// ConversationStore is the durable-store collaborator for conversations.
// The store is the single source of truth for conversation content;
// in-memory state only tracks who is currently listening.
type ConversationStore interface {
	Save(ctx context.Context, conversation *domain.Conversation) error
	Find(ctx context.Context, id string) (*domain.Conversation, error)
	FindAssigned(ctx context.Context, agentID string, statuses []string) ([]domain.Conversation, error)
}

// MessageStore persists immutable, append-only messages.
type MessageStore interface {
	SaveMessage(ctx context.Context, message *domain.Message) error
}

// AgentStore is the credential collaborator's agent directory.
type AgentStore interface {
	FindByID(ctx context.Context, id string) (*domain.Agent, error)
	SetOnline(ctx context.Context, id string, online bool) error
}

// EventProducer mirrors accepted events to the event pipeline for sibling
// services. Mirror failures are logged, never surfaced to connections.
type EventProducer interface {
	Publish(ctx context.Context, event interface{}) error
}
