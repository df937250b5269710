package session

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/caremesh-ai/triage/pkg/common/models"
)

// MemoryStore keeps serialized session snapshots in process memory. It is the
// default backend and the one the test suite runs against. Snapshots go
// through JSON like every other backend, so callers never share mutable state
// with the store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string][]byte)}
}

func (s *MemoryStore) Load(ctx context.Context, sessionID string) (*models.Session, error) {
	s.mu.RLock()
	raw, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	var session models.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *MemoryStore) Save(ctx context.Context, session *models.Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.sessions[session.ID] = raw
	s.mu.Unlock()
	return nil
}
