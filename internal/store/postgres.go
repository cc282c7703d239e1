package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/keygate/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const credentialColumns = `id, credential_hash, display_hint, issued_to, tag, one_time,
	issued_at, expires_at, used_count, last_used_at, revoked`

func (s *PostgresStore) InsertCredential(ctx context.Context, c *models.Credential) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO access_credentials (credential_hash, display_hint, issued_to, tag, one_time, issued_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		c.Hash, c.Hint, nullIfEmpty(c.IssuedTo), nullIfEmpty(c.Tag), c.OneTime, c.IssuedAt, c.ExpiresAt,
	).Scan(&id)
	if err != nil {
		if isDuplicateKeyError(err) {
			return 0, ErrDuplicateKey
		}
		return 0, fmt.Errorf("insert credential: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) GetCredentialByHash(ctx context.Context, hash string) (*models.Credential, error) {
	c, err := scanCredential(s.pool.QueryRow(ctx,
		`SELECT `+credentialColumns+` FROM access_credentials WHERE credential_hash = $1`, hash))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get credential by hash: %w", err)
	}
	return c, nil
}

// IncrementCredentialUsage relies on the row lock taken by UPDATE: concurrent
// callers on the same id are serialized and each observes a distinct prior count.
func (s *PostgresStore) IncrementCredentialUsage(ctx context.Context, id int64, usedAt time.Time) (int, error) {
	var prior int
	err := s.pool.QueryRow(ctx,
		`UPDATE access_credentials SET used_count = used_count + 1, last_used_at = $2
		 WHERE id = $1
		 RETURNING used_count - 1`, id, usedAt,
	).Scan(&prior)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("increment credential usage: %w", err)
	}
	return prior, nil
}

func (s *PostgresStore) SetCredentialRevoked(ctx context.Context, id int64, revoked bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE access_credentials SET revoked = $2 WHERE id = $1`, id, revoked)
	if err != nil {
		return fmt.Errorf("set credential revoked: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteCredential(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM access_credentials WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListCredentials(ctx context.Context) ([]*models.Credential, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+credentialColumns+` FROM access_credentials ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	creds := []*models.Credential{}
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		creds = append(creds, c)
	}
	return creds, rows.Err()
}

func scanCredential(row pgx.Row) (*models.Credential, error) {
	var c models.Credential
	var issuedTo, tag *string
	if err := row.Scan(&c.ID, &c.Hash, &c.Hint, &issuedTo, &tag, &c.OneTime,
		&c.IssuedAt, &c.ExpiresAt, &c.UsedCount, &c.LastUsedAt, &c.Revoked); err != nil {
		return nil, err
	}
	c.IssuedTo = derefString(issuedTo)
	c.Tag = derefString(tag)
	return &c, nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
