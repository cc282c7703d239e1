// Package session hands out short-lived session tokens to callers whose
// credential was accepted. Tokens live in the cache and expire on their own.
package session

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/keygate/internal/cache"
)

// Session is an authenticated session created after a successful verification.
type Session struct {
	Token        uuid.UUID `json:"session_token"`
	CredentialID int64     `json:"-"`
	ExpiresAt    time.Time `json:"session_expires_at"`
}

// Manager creates, checks and ends sessions.
type Manager struct {
	cache cache.Cache
	ttl   time.Duration
	now   func() time.Time
}

// NewManager creates a Manager whose sessions last ttl.
func NewManager(c cache.Cache, ttl time.Duration) *Manager {
	return &Manager{cache: c, ttl: ttl, now: time.Now}
}

// Create starts a session for the given credential.
func (m *Manager) Create(ctx context.Context, credentialID int64) (Session, error) {
	s := Session{
		Token:        uuid.New(),
		CredentialID: credentialID,
		ExpiresAt:    m.now().UTC().Add(m.ttl),
	}
	value := []byte(strconv.FormatInt(credentialID, 10))
	if err := m.cache.Set(ctx, cache.SessionKey(s.Token), value, m.ttl); err != nil {
		return Session{}, fmt.Errorf("store session: %w", err)
	}
	return s, nil
}

// Lookup returns the live session named by token. A token that is not a UUID,
// or whose session has expired, yields found == false and no error.
func (m *Manager) Lookup(ctx context.Context, token string) (Session, bool, error) {
	id, err := uuid.Parse(token)
	if err != nil {
		return Session{}, false, nil
	}
	key := cache.SessionKey(id)

	raw, found, err := m.cache.Get(ctx, key)
	if err != nil {
		return Session{}, false, fmt.Errorf("look up session: %w", err)
	}
	if !found {
		return Session{}, false, nil
	}
	credentialID, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return Session{}, false, fmt.Errorf("decode session %s: %w", id, err)
	}

	remaining, found, err := m.cache.TTL(ctx, key)
	if err != nil {
		return Session{}, false, fmt.Errorf("session ttl: %w", err)
	}
	if !found {
		// Expired between the two reads.
		return Session{}, false, nil
	}

	return Session{
		Token:        id,
		CredentialID: credentialID,
		ExpiresAt:    m.now().UTC().Add(remaining).Truncate(time.Second),
	}, true, nil
}

// Authenticated reports whether token names a live session.
func (m *Manager) Authenticated(ctx context.Context, token string) (bool, error) {
	_, found, err := m.Lookup(ctx, token)
	return found, err
}

// End removes the session. Ending an unknown or malformed token is a no-op.
func (m *Manager) End(ctx context.Context, token string) error {
	id, err := uuid.Parse(token)
	if err != nil {
		return nil
	}
	if err := m.cache.Delete(ctx, cache.SessionKey(id)); err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return nil
}
