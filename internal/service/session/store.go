package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/mamadbah2/materialbot/internal/domain/models"
)

// Store persists one conversation per user until it is explicitly cleared.
type Store interface {
	Get(ctx context.Context, userID string) (*models.Session, bool, error)
	Set(ctx context.Context, userID string, session *models.Session) error
	Clear(ctx context.Context, userID string) error
}

// MemoryStore keeps sessions in process memory. Sessions are held encoded,
// as the Redis store does, so callers never share drafts with the store.
type MemoryStore struct {
	sessions map[string][]byte
	mu       sync.RWMutex
	now      func() time.Time
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string][]byte),
		now:      time.Now,
	}
}

// Get retrieves the current session for a user.
func (s *MemoryStore) Get(_ context.Context, userID string) (*models.Session, bool, error) {
	s.mu.RLock()
	raw, exists := s.sessions[userID]
	s.mu.RUnlock()
	if !exists {
		return nil, false, nil
	}

	var state models.Session
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, false, fmt.Errorf("decode session: %w", err)
	}
	return &state, true, nil
}

// Set replaces the session of a user.
func (s *MemoryStore) Set(_ context.Context, userID string, session *models.Session) error {
	if session == nil {
		return s.Clear(context.Background(), userID)
	}
	state := *session
	state.UpdatedAt = s.now()

	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[userID] = raw
	return nil
}

// Clear removes a user's session.
func (s *MemoryStore) Clear(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
	return nil
}
