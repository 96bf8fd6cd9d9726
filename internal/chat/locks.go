package chat

import (
	"sync"
)

// ConversationLocks serializes state-changing operations per conversation
// id, so assignment check-then-write and message append are atomic for a
// given conversation while unrelated conversations proceed in parallel.
// Entries are reference counted and removed when the last holder unlocks.
type ConversationLocks struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func NewConversationLocks() *ConversationLocks {
	return &ConversationLocks{locks: make(map[string]*lockEntry)}
}

// Lock acquires the critical section for a conversation id and returns
// the matching unlock function.
func (l *ConversationLocks) Lock(conversationID string) func() {
	l.mu.Lock()
	entry, ok := l.locks[conversationID]
	if !ok {
		entry = &lockEntry{}
		l.locks[conversationID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, conversationID)
		}
		l.mu.Unlock()
	}
}
