package store

import (
	"context"
	"errors"
	"time"

	"github.com/kiranshivaraju/keygate/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the data access interface. All database operations go through here.
// Implementations must be safe for concurrent use.
type Store interface {
	Ping(ctx context.Context) error

	// InsertCredential persists a new credential and returns its id.
	// A colliding hash yields ErrDuplicateKey.
	InsertCredential(ctx context.Context, c *models.Credential) (int64, error)
	GetCredentialByHash(ctx context.Context, hash string) (*models.Credential, error)
	// IncrementCredentialUsage bumps used_count and last_used_at in a single
	// statement and returns the count as it was before the increment.
	IncrementCredentialUsage(ctx context.Context, id int64, usedAt time.Time) (int, error)
	SetCredentialRevoked(ctx context.Context, id int64, revoked bool) error
	DeleteCredential(ctx context.Context, id int64) error
	// ListCredentials returns every credential, newest first.
	ListCredentials(ctx context.Context) ([]*models.Credential, error)
}

// nullIfEmpty maps blank annotations to SQL NULL.
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
