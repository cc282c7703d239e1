package store_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kiranshivaraju/keygate/internal/store"
	"github.com/kiranshivaraju/keygate/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newCredential builds an unsaved credential with a unique hash.
func newCredential(hash string) *models.Credential {
	return &models.Credential{
		Hash:     hash,
		Hint:     "ABC…XYZ",
		OneTime:  true,
		IssuedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

// runStoreSuite exercises the Store contract against any backend.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("InsertAndGet", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		exp := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Microsecond)
		c := newCredential("hash-insert")
		c.IssuedTo = "tester@example.com"
		c.Tag = "beta"
		c.ExpiresAt = &exp

		id, err := s.InsertCredential(ctx, c)
		require.NoError(t, err)
		assert.Positive(t, id)

		got, err := s.GetCredentialByHash(ctx, "hash-insert")
		require.NoError(t, err)
		assert.Equal(t, id, got.ID)
		assert.Equal(t, "ABC…XYZ", got.Hint)
		assert.Equal(t, "tester@example.com", got.IssuedTo)
		assert.Equal(t, "beta", got.Tag)
		assert.True(t, got.OneTime)
		assert.True(t, c.IssuedAt.Equal(got.IssuedAt))
		require.NotNil(t, got.ExpiresAt)
		assert.True(t, exp.Equal(*got.ExpiresAt))
		assert.Equal(t, 0, got.UsedCount)
		assert.Nil(t, got.LastUsedAt)
		assert.False(t, got.Revoked)
	})

	t.Run("BlankAnnotationsRoundTrip", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.InsertCredential(ctx, newCredential("hash-blank"))
		require.NoError(t, err)

		got, err := s.GetCredentialByHash(ctx, "hash-blank")
		require.NoError(t, err)
		assert.Empty(t, got.IssuedTo)
		assert.Empty(t, got.Tag)
		assert.Nil(t, got.ExpiresAt)
	})

	t.Run("DuplicateHash", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.InsertCredential(ctx, newCredential("hash-dup"))
		require.NoError(t, err)

		_, err = s.InsertCredential(ctx, newCredential("hash-dup"))
		assert.ErrorIs(t, err, store.ErrDuplicateKey)
	})

	t.Run("GetNotFound", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetCredentialByHash(context.Background(), "missing")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("IncrementUsageReturnsPriorCount", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		id, err := s.InsertCredential(ctx, newCredential("hash-incr"))
		require.NoError(t, err)

		usedAt := time.Now().UTC().Truncate(time.Microsecond)
		prior, err := s.IncrementCredentialUsage(ctx, id, usedAt)
		require.NoError(t, err)
		assert.Equal(t, 0, prior)

		prior, err = s.IncrementCredentialUsage(ctx, id, usedAt.Add(time.Second))
		require.NoError(t, err)
		assert.Equal(t, 1, prior)

		got, err := s.GetCredentialByHash(ctx, "hash-incr")
		require.NoError(t, err)
		assert.Equal(t, 2, got.UsedCount)
		require.NotNil(t, got.LastUsedAt)
		assert.True(t, usedAt.Add(time.Second).Equal(*got.LastUsedAt))
	})

	t.Run("IncrementUsageNotFound", func(t *testing.T) {
		s := newStore(t)
		_, err := s.IncrementCredentialUsage(context.Background(), 999, time.Now())
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("ConcurrentIncrementsSeeDistinctPriors", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		id, err := s.InsertCredential(ctx, newCredential("hash-race"))
		require.NoError(t, err)

		const workers = 8
		var wg sync.WaitGroup
		priors := make(chan int, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				prior, err := s.IncrementCredentialUsage(ctx, id, time.Now())
				if assert.NoError(t, err) {
					priors <- prior
				}
			}()
		}
		wg.Wait()
		close(priors)

		seen := map[int]bool{}
		for p := range priors {
			assert.False(t, seen[p], "prior count %d observed twice", p)
			seen[p] = true
		}
		assert.Len(t, seen, workers)
	})

	t.Run("SetRevoked", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		id, err := s.InsertCredential(ctx, newCredential("hash-revoke"))
		require.NoError(t, err)

		require.NoError(t, s.SetCredentialRevoked(ctx, id, true))
		got, err := s.GetCredentialByHash(ctx, "hash-revoke")
		require.NoError(t, err)
		assert.True(t, got.Revoked)

		// Repeating the same value still matches the row.
		require.NoError(t, s.SetCredentialRevoked(ctx, id, true))

		require.NoError(t, s.SetCredentialRevoked(ctx, id, false))
		got, err = s.GetCredentialByHash(ctx, "hash-revoke")
		require.NoError(t, err)
		assert.False(t, got.Revoked)
	})

	t.Run("SetRevokedNotFound", func(t *testing.T) {
		s := newStore(t)
		err := s.SetCredentialRevoked(context.Background(), 12345, true)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		id, err := s.InsertCredential(ctx, newCredential("hash-delete"))
		require.NoError(t, err)

		require.NoError(t, s.DeleteCredential(ctx, id))

		_, err = s.GetCredentialByHash(ctx, "hash-delete")
		assert.ErrorIs(t, err, store.ErrNotFound)

		err = s.DeleteCredential(ctx, id)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("ListNewestFirst", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		var ids []int64
		for i := 0; i < 3; i++ {
			id, err := s.InsertCredential(ctx, newCredential(fmt.Sprintf("hash-list-%d", i)))
			require.NoError(t, err)
			ids = append(ids, id)
		}

		creds, err := s.ListCredentials(ctx)
		require.NoError(t, err)
		require.Len(t, creds, 3)
		assert.Equal(t, ids[2], creds[0].ID)
		assert.Equal(t, ids[1], creds[1].ID)
		assert.Equal(t, ids[0], creds[2].ID)
		assert.Less(t, ids[0], ids[1])
		assert.Less(t, ids[1], ids[2])
	})

	t.Run("ListEmpty", func(t *testing.T) {
		s := newStore(t)
		creds, err := s.ListCredentials(context.Background())
		require.NoError(t, err)
		assert.Empty(t, creds)
	})

	t.Run("IDsAreNotReusedAfterDelete", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		first, err := s.InsertCredential(ctx, newCredential("hash-reuse-1"))
		require.NoError(t, err)
		require.NoError(t, s.DeleteCredential(ctx, first))

		second, err := s.InsertCredential(ctx, newCredential("hash-reuse-2"))
		require.NoError(t, err)
		assert.Greater(t, second, first)
	})
}
