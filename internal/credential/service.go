// Package credential issues, verifies and administers access credentials.
// Plaintexts exist only in the return value of Issue; everything at rest is
// a digest plus a short hint.
package credential

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/kiranshivaraju/keygate/internal/store"
	"github.com/kiranshivaraju/keygate/pkg/models"
)

const (
	defaultMaxCount        = 1000
	defaultMaxValidityDays = 3650
)

// IssueParams describes a batch of credentials to issue.
type IssueParams struct {
	Count        int
	ValidityDays int
	OneTime      bool
	Tag          string
	IssuedTo     string
}

// Service is the credential lifecycle manager. It keeps no state between
// calls beyond what the Store persists.
type Service struct {
	store           store.Store
	now             func() time.Time
	random          io.Reader
	maxCount        int
	maxValidityDays int
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithRandom overrides the randomness source used to generate plaintexts.
func WithRandom(r io.Reader) Option {
	return func(s *Service) {
		s.random = r
	}
}

// WithLimits bounds issuance requests.
func WithLimits(maxCount, maxValidityDays int) Option {
	return func(s *Service) {
		s.maxCount = maxCount
		s.maxValidityDays = maxValidityDays
	}
}

// NewService creates a Service backed by st.
func NewService(st store.Store, opts ...Option) *Service {
	s := &Service{
		store:           st,
		now:             time.Now,
		maxCount:        defaultMaxCount,
		maxValidityDays: defaultMaxValidityDays,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue generates up to p.Count credentials. A unit whose hash collides with
// an existing record is skipped, so callers must check len of the result.
// If the store fails mid-batch, the units already persisted are returned
// together with the error.
func (s *Service) Issue(ctx context.Context, p IssueParams) ([]models.IssuedCredential, error) {
	if p.Count < 1 || p.Count > s.maxCount {
		return nil, fmt.Errorf("%w: must be between 1 and %d, got %d", ErrInvalidCount, s.maxCount, p.Count)
	}
	if p.ValidityDays < 0 || p.ValidityDays > s.maxValidityDays {
		return nil, fmt.Errorf("%w: must be between 0 and %d, got %d", ErrInvalidValidity, s.maxValidityDays, p.ValidityDays)
	}

	issuedAt := s.now().UTC()
	var expiresAt *time.Time
	if p.ValidityDays > 0 {
		exp := issuedAt.AddDate(0, 0, p.ValidityDays)
		expiresAt = &exp
	}
	tag := strings.TrimSpace(p.Tag)
	issuedTo := strings.TrimSpace(p.IssuedTo)

	issued := make([]models.IssuedCredential, 0, p.Count)
	skipped := 0
	for i := 0; i < p.Count; i++ {
		plaintext, err := Generate(s.random)
		if err != nil {
			return issued, fmt.Errorf("generate credential: %w", err)
		}
		hint := Hint(plaintext)

		id, err := s.store.InsertCredential(ctx, &models.Credential{
			Hash:      Hash(plaintext),
			Hint:      hint,
			IssuedTo:  issuedTo,
			Tag:       tag,
			OneTime:   p.OneTime,
			IssuedAt:  issuedAt,
			ExpiresAt: expiresAt,
		})
		if errors.Is(err, store.ErrDuplicateKey) {
			skipped++
			continue
		}
		if err != nil {
			return issued, fmt.Errorf("insert credential: %w", err)
		}

		issued = append(issued, models.IssuedCredential{
			ID:        id,
			Plaintext: plaintext,
			Hint:      hint,
			IssuedTo:  issuedTo,
			Tag:       tag,
			OneTime:   p.OneTime,
			ExpiresAt: expiresAt,
		})
	}

	if skipped > 0 {
		slog.Warn("credential hash collisions skipped", "requested", p.Count, "skipped", skipped)
	}
	slog.Info("credentials issued",
		"requested", p.Count,
		"issued", len(issued),
		"one_time", p.OneTime,
		"validity_days", p.ValidityDays,
		"tag", tag,
	)
	return issued, nil
}

// Verify checks a presented plaintext and records the usage. Rejections are
// reported in the Outcome; the error is reserved for store failures.
//
// The usage counter is bumped before the one-time check, so the repeat
// presentation of a one-time credential is still counted and then rejected.
func (s *Service) Verify(ctx context.Context, plaintext string) (Outcome, error) {
	plaintext = strings.TrimSpace(plaintext)
	if plaintext == "" {
		return rejected(ReasonEmptyInput, 0), nil
	}

	c, err := s.store.GetCredentialByHash(ctx, Hash(plaintext))
	if errors.Is(err, store.ErrNotFound) {
		return rejected(ReasonInvalidCredential, 0), nil
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("look up credential: %w", err)
	}

	now := s.now().UTC()
	if c.Revoked {
		return s.reject(ReasonRevoked, c.ID), nil
	}
	if c.Expired(now) {
		return s.reject(ReasonExpired, c.ID), nil
	}

	prior, err := s.store.IncrementCredentialUsage(ctx, c.ID, now)
	if errors.Is(err, store.ErrNotFound) {
		// Deleted between lookup and increment.
		return rejected(ReasonInvalidCredential, 0), nil
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("record credential usage: %w", err)
	}

	if c.OneTime && prior >= 1 {
		return s.reject(ReasonAlreadyUsed, c.ID), nil
	}

	slog.Info("credential accepted", "credential_id", c.ID, "used_count", prior+1)
	return accepted(c.ID), nil
}

func (s *Service) reject(r Reason, id int64) Outcome {
	slog.Info("credential rejected", "credential_id", id, "reason", string(r))
	return rejected(r, id)
}

// SetState applies an administrative transition to the credential with id.
func (s *Service) SetState(ctx context.Context, id int64, action Action) error {
	var err error
	switch action {
	case ActionRevoke:
		err = s.store.SetCredentialRevoked(ctx, id, true)
	case ActionReinstate:
		err = s.store.SetCredentialRevoked(ctx, id, false)
	case ActionDelete:
		err = s.store.DeleteCredential(ctx, id)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%s credential %d: %w", action, id, err)
	}

	slog.Info("credential state changed", "credential_id", id, "action", string(action))
	return nil
}

// List returns every credential, newest first, with digests stripped.
func (s *Service) List(ctx context.Context) ([]*models.Credential, error) {
	creds, err := s.store.ListCredentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	for _, c := range creds {
		c.Hash = ""
	}
	return creds, nil
}

// Now returns the service clock's current time, for callers that derive
// display status from listed credentials.
func (s *Service) Now() time.Time {
	return s.now().UTC()
}
