package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/huynd94/system-live-chat/internal/domain"
)

// fakeSender records delivered events in order.
type fakeSender struct {
	mu       sync.Mutex
	events   []domain.ServerEvent
	failWith error
}

func (f *fakeSender) Send(event domain.ServerEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakeSender) Events() []domain.ServerEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.ServerEvent, len(f.events))
	copy(out, f.events)
	return out
}

func (f *fakeSender) EventTypes() []string {
	events := f.Events()
	types := make([]string, len(events))
	for i, event := range events {
		types[i] = event.Type
	}
	return types
}

// memStore is an in-memory durable store for conversations, messages and
// agents. Values are copied on the way in and out, as a real store would.
type memStore struct {
	mu            sync.Mutex
	conversations map[string]domain.Conversation
	messages      []domain.Message
	agents        map[string]domain.Agent
	saveErr       error
}

func newMemStore() *memStore {
	return &memStore{
		conversations: make(map[string]domain.Conversation),
		agents:        make(map[string]domain.Agent),
	}
}

func (m *memStore) Save(ctx context.Context, conversation *domain.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.conversations[conversation.ID] = *conversation
	return nil
}

func (m *memStore) Find(ctx context.Context, id string) (*domain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conversation, ok := m.conversations[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := conversation
	return &out, nil
}

func (m *memStore) FindAssigned(ctx context.Context, agentID string, statuses []string) ([]domain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Conversation
	for _, conversation := range m.conversations {
		if conversation.AssignedAgent != agentID {
			continue
		}
		for _, status := range statuses {
			if conversation.Status == status {
				out = append(out, conversation)
				break
			}
		}
	}
	return out, nil
}

func (m *memStore) SaveMessage(ctx context.Context, message *domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.messages = append(m.messages, *message)
	return nil
}

func (m *memStore) Messages() []domain.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Message, len(m.messages))
	copy(out, m.messages)
	return out
}

func (m *memStore) FindByID(ctx context.Context, id string) (*domain.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	agent, ok := m.agents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := agent
	return &out, nil
}

func (m *memStore) SetOnline(ctx context.Context, id string, online bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	agent, ok := m.agents[id]
	if !ok {
		return domain.ErrNotFound
	}
	agent.IsOnline = online
	m.agents[id] = agent
	return nil
}

func (m *memStore) addAgent(agent domain.Agent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agents[agent.ID] = agent
}

func (m *memStore) conversation(id string) domain.Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conversations[id]
}

// memProducer records mirrored events.
type memProducer struct {
	mu     sync.Mutex
	events []interface{}
}

func (m *memProducer) Publish(ctx context.Context, event interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// testCore wires a lifecycle and relay over shared in-memory
// collaborators.
type testCore struct {
	store     *memStore
	producer  *memProducer
	presence  *Presence
	rooms     *Rooms
	locks     *ConversationLocks
	lifecycle *Lifecycle
	relay     *Relay
}

func newTestCore() *testCore {
	store := newMemStore()
	producer := &memProducer{}
	presence := NewPresence()
	logger := zap.NewNop()
	rooms := NewRooms(logger)
	locks := NewConversationLocks()

	return &testCore{
		store:     store,
		producer:  producer,
		presence:  presence,
		rooms:     rooms,
		locks:     locks,
		lifecycle: NewLifecycle(store, store, rooms, presence, locks, producer, "test-origin", logger),
		relay:     NewRelay(store, store, rooms, locks, producer, "test-origin", logger),
	}
}

func testTimeout(t *testing.T) <-chan time.Time {
	t.Helper()
	return time.After(2 * time.Second)
}

func newTestAgent(id, name string) *domain.Agent {
	now := time.Now()
	return &domain.Agent{
		ID:       id,
		Name:     name,
		Email:    id + "@example.com",
		IsActive: true,
		LastSeen: &now,
	}
}
