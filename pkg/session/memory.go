package session

import (
	"context"
	"sync"

	"github.com/kadirpekel/sentinel/pkg/message"
)

// memoryStore is an in-memory Store implementation guarded by a
// single RWMutex over a map of per-session message slices. Good
// enough for a single-process deployment or tests; does not survive a
// restart.
type memoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]message.Message
}

// NewMemoryStore returns a process-local Store.
func NewMemoryStore() Store {
	return &memoryStore{sessions: make(map[string][]message.Message)}
}

func (s *memoryStore) GetMessages(ctx context.Context, sessionID string) ([]message.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.sessions[sessionID]
	out := make([]message.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *memoryStore) Append(ctx context.Context, sessionID string, user, assistant message.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sessionID] = append(s.sessions[sessionID], user, assistant)
	return nil
}

func (s *memoryStore) Clear(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; ok {
		s.sessions[sessionID] = nil
	}
	return nil
}

func (s *memoryStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)
	return nil
}

func (s *memoryStore) ListSessions(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *memoryStore) MessageCount(ctx context.Context, sessionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.sessions[sessionID]), nil
}
