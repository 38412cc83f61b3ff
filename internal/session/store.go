// AngelaMos | 2026
// store.go

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/carterperez-dev/templates/auth-backend/internal/cache"
	"github.com/carterperez-dev/templates/auth-backend/internal/core"
)

const idBytes = 24

var ErrNotFound = errors.New("session not found")

// Snapshot is the part of a user kept inside a session record.
type Snapshot struct {
	ID    string  `json:"id"`
	Email string  `json:"email"`
	Name  *string `json:"name"`
	Role  string  `json:"role"`
}

type Record struct {
	UserID string    `json:"userId"`
	User   *Snapshot `json:"user,omitempty"`
}

// Store keeps session records under sess:<id> with a fixed TTL.
type Store struct {
	backend cache.Store
	ttl     time.Duration
}

func NewStore(backend cache.Store, ttl time.Duration) *Store {
	return &Store{backend: backend, ttl: ttl}
}

func (s *Store) TTL() time.Duration {
	return s.ttl
}

func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	raw, err := s.backend.Get(ctx, cache.SessionKey(id))
	if errors.Is(err, cache.ErrMiss) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}

	return &rec, nil
}

func (s *Store) Set(ctx context.Context, id string, rec *Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	if err := s.backend.Set(ctx, cache.SessionKey(id), raw, s.ttl); err != nil {
		return fmt.Errorf("set session: %w", err)
	}

	return nil
}

func (s *Store) Destroy(ctx context.Context, id string) error {
	if err := s.backend.Del(ctx, cache.SessionKey(id)); err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}
	return nil
}

// Regenerate drops the record under oldID, if any, and returns a fresh id.
func (s *Store) Regenerate(ctx context.Context, oldID string) (string, error) {
	if oldID != "" {
		if err := s.Destroy(ctx, oldID); err != nil {
			return "", err
		}
	}
	return NewID()
}

func NewID() (string, error) {
	id, err := core.GenerateSecureToken(idBytes)
	if err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return id, nil
}
