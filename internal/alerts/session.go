package alerts

import (
	"context"
	"sync"
)

// SessionState is what one session has dismissed or read.
type SessionState struct {
	Dismissed map[string]struct{}
	Read      map[string]struct{}
}

// IsDismissed reports whether the alert id was dismissed.
func (s SessionState) IsDismissed(id string) bool {
	_, ok := s.Dismissed[id]
	return ok
}

// IsRead reports whether the alert id was marked read.
func (s SessionState) IsRead(id string) bool {
	_, ok := s.Read[id]
	return ok
}

// SessionStore keeps per-session notification state.
type SessionStore interface {
	State(ctx context.Context, session string) (SessionState, error)
	Dismiss(ctx context.Context, session string, ids ...string) error
	MarkRead(ctx context.Context, session string, ids ...string) error
}

// MemoryStore is a process-local SessionStore.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*SessionState
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*SessionState)}
}

// State returns a copy of the session's state.
func (m *MemoryStore) State(_ context.Context, session string) (SessionState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := SessionState{Dismissed: map[string]struct{}{}, Read: map[string]struct{}{}}
	if s, ok := m.sessions[session]; ok {
		for id := range s.Dismissed {
			out.Dismissed[id] = struct{}{}
		}
		for id := range s.Read {
			out.Read[id] = struct{}{}
		}
	}
	return out, nil
}

// Dismiss hides ids from the session's view.
func (m *MemoryStore) Dismiss(_ context.Context, session string, ids ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.session(session)
	for _, id := range ids {
		s.Dismissed[id] = struct{}{}
	}
	return nil
}

// MarkRead flags ids as read for the session.
func (m *MemoryStore) MarkRead(_ context.Context, session string, ids ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.session(session)
	for _, id := range ids {
		s.Read[id] = struct{}{}
	}
	return nil
}

func (m *MemoryStore) session(name string) *SessionState {
	s, ok := m.sessions[name]
	if !ok {
		s = &SessionState{Dismissed: map[string]struct{}{}, Read: map[string]struct{}{}}
		m.sessions[name] = s
	}
	return s
}
