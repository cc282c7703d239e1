package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	mw "github.com/kiranshivaraju/keygate/internal/api/middleware"
	"github.com/kiranshivaraju/keygate/internal/api/response"
	"github.com/kiranshivaraju/keygate/internal/session"
)

// SessionChecker looks up and ends sessions.
type SessionChecker interface {
	Lookup(ctx context.Context, token string) (session.Session, bool, error)
	End(ctx context.Context, token string) error
}

type sessionStatus struct {
	Authenticated bool       `json:"authenticated"`
	ExpiresAt     *time.Time `json:"session_expires_at,omitempty"`
}

// NewSessionStatusHandler returns an http.HandlerFunc for GET /api/v1/session.
func NewSessionStatusHandler(sessions SessionChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, found, err := sessions.Lookup(r.Context(), mw.BearerToken(r))
		if err != nil {
			slog.Error("check session failed", "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}
		status := sessionStatus{Authenticated: found}
		if found {
			status.ExpiresAt = &s.ExpiresAt
		}
		response.JSON(w, status)
	}
}

// NewEndSessionHandler returns an http.HandlerFunc for DELETE /api/v1/session.
func NewEndSessionHandler(sessions SessionChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := sessions.End(r.Context(), mw.BearerToken(r)); err != nil {
			slog.Error("end session failed", "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}
		response.NoContent(w)
	}
}
