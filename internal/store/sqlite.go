package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kiranshivaraju/keygate/pkg/models"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteStore implements the Store interface on an embedded SQLite file.
// Timestamps are stored as RFC 3339 UTC text.
type SQLiteStore struct {
	db *DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLiteStore.
func NewSQLiteStore(db *DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.Reader.PingContext(ctx)
}

func (s *SQLiteStore) InsertCredential(ctx context.Context, c *models.Credential) (int64, error) {
	const query = `INSERT INTO access_credentials (credential_hash, display_hint, issued_to, tag, one_time, issued_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := s.db.Writer.ExecContext(ctx, query,
		c.Hash, c.Hint, nullIfEmpty(c.IssuedTo), nullIfEmpty(c.Tag), c.OneTime,
		formatTime(c.IssuedAt), formatTimePtr(c.ExpiresAt))
	if err != nil {
		if isSQLiteUniqueError(err) {
			return 0, ErrDuplicateKey
		}
		return 0, fmt.Errorf("insert credential: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert credential: last insert id: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) GetCredentialByHash(ctx context.Context, hash string) (*models.Credential, error) {
	c, err := scanSQLiteCredential(s.db.Reader.QueryRowContext(ctx,
		`SELECT `+credentialColumns+` FROM access_credentials WHERE credential_hash = ?`, hash))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get credential by hash: %w", err)
	}
	return c, nil
}

// IncrementCredentialUsage runs on the single writer connection, so the
// read-modify-write inside the UPDATE cannot interleave with another caller.
func (s *SQLiteStore) IncrementCredentialUsage(ctx context.Context, id int64, usedAt time.Time) (int, error) {
	var prior int
	err := s.db.Writer.QueryRowContext(ctx,
		`UPDATE access_credentials SET used_count = used_count + 1, last_used_at = ?
		 WHERE id = ?
		 RETURNING used_count - 1`, formatTime(usedAt), id,
	).Scan(&prior)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("increment credential usage: %w", err)
	}
	return prior, nil
}

func (s *SQLiteStore) SetCredentialRevoked(ctx context.Context, id int64, revoked bool) error {
	res, err := s.db.Writer.ExecContext(ctx,
		`UPDATE access_credentials SET revoked = ? WHERE id = ?`, revoked, id)
	if err != nil {
		return fmt.Errorf("set credential revoked: %w", err)
	}
	return requireAffected(res)
}

func (s *SQLiteStore) DeleteCredential(ctx context.Context, id int64) error {
	res, err := s.db.Writer.ExecContext(ctx, `DELETE FROM access_credentials WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return requireAffected(res)
}

func (s *SQLiteStore) ListCredentials(ctx context.Context) ([]*models.Credential, error) {
	rows, err := s.db.Reader.QueryContext(ctx,
		`SELECT `+credentialColumns+` FROM access_credentials ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	creds := []*models.Credential{}
	for rows.Next() {
		c, err := scanSQLiteCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		creds = append(creds, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}
	return creds, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteCredential(row rowScanner) (*models.Credential, error) {
	var c models.Credential
	var issuedTo, tag, expiresAt, lastUsedAt sql.NullString
	var issuedAt string
	if err := row.Scan(&c.ID, &c.Hash, &c.Hint, &issuedTo, &tag, &c.OneTime,
		&issuedAt, &expiresAt, &c.UsedCount, &lastUsedAt, &c.Revoked); err != nil {
		return nil, err
	}
	c.IssuedTo = issuedTo.String
	c.Tag = tag.String

	var err error
	if c.IssuedAt, err = parseTime(issuedAt); err != nil {
		return nil, fmt.Errorf("parse issued_at: %w", err)
	}
	if c.ExpiresAt, err = parseNullTime(expiresAt); err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}
	if c.LastUsedAt, err = parseNullTime(lastUsedAt); err != nil {
		return nil, fmt.Errorf("parse last_used_at: %w", err)
	}
	return &c, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func isSQLiteUniqueError(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}
