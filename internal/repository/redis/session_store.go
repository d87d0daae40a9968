package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/mamadbah2/materialbot/internal/apperrors"
	"github.com/mamadbah2/materialbot/internal/domain/models"
)

// SessionStore keeps conversation sessions in Redis as JSON documents.
type SessionStore struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// Option configures a SessionStore.
type Option func(*SessionStore)

// WithTTL expires idle sessions. Zero keeps them until cleared.
func WithTTL(ttl time.Duration) Option {
	return func(s *SessionStore) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for sessions.
func WithPrefix(prefix string) Option {
	return func(s *SessionStore) {
		s.prefix = prefix
	}
}

// NewSessionStore builds a store on an existing client.
func NewSessionStore(client *backend.Client, opts ...Option) *SessionStore {
	store := &SessionStore{
		client: client,
		prefix: "materialbot:",
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *SessionStore) key(userID string) string {
	return s.prefix + "session:" + userID
}

// Get loads the session of userID.
func (s *SessionStore) Get(ctx context.Context, userID string) (*models.Session, bool, error) {
	val, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get session from redis: %w: %w", apperrors.ErrCollaborator, err)
	}

	var session models.Session
	if err := json.Unmarshal(val, &session); err != nil {
		return nil, false, fmt.Errorf("decode session: %w", err)
	}
	return &session, true, nil
}

// Set stores the session of userID.
func (s *SessionStore) Set(ctx context.Context, userID string, session *models.Session) error {
	if session == nil {
		return s.Clear(ctx, userID)
	}
	state := *session
	state.UpdatedAt = s.now()

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(userID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session to redis: %w: %w", apperrors.ErrCollaborator, err)
	}
	return nil
}

// Clear removes the session of userID.
func (s *SessionStore) Clear(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("delete session from redis: %w: %w", apperrors.ErrCollaborator, err)
	}
	return nil
}
