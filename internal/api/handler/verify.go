package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/kiranshivaraju/keygate/internal/api/response"
	"github.com/kiranshivaraju/keygate/internal/credential"
	"github.com/kiranshivaraju/keygate/internal/session"
)

const maxVerifyBody = 4 << 10

// Verifier checks a presented access key.
type Verifier interface {
	Verify(ctx context.Context, plaintext string) (credential.Outcome, error)
}

// SessionStarter opens a session after a successful verification.
type SessionStarter interface {
	Create(ctx context.Context, credentialID int64) (session.Session, error)
}

type verifyResponse struct {
	Accepted         bool      `json:"accepted"`
	SessionToken     string    `json:"session_token"`
	SessionExpiresAt time.Time `json:"session_expires_at"`
}

var reasonStatus = map[credential.Reason]int{
	credential.ReasonEmptyInput:        http.StatusBadRequest,
	credential.ReasonInvalidCredential: http.StatusUnauthorized,
	credential.ReasonRevoked:           http.StatusForbidden,
	credential.ReasonExpired:           http.StatusForbidden,
	credential.ReasonAlreadyUsed:       http.StatusForbidden,
}

// NewVerifyHandler returns an http.HandlerFunc for POST /api/v1/verify.
func NewVerifyHandler(v Verifier, sessions SessionStarter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Credential string `json:"credential"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxVerifyBody)).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		outcome, err := v.Verify(r.Context(), req.Credential)
		if err != nil {
			slog.Error("verify credential failed", "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}

		if !outcome.Accepted {
			status, ok := reasonStatus[outcome.Reason]
			if !ok {
				status = http.StatusUnauthorized
			}
			response.Error(w, status, string(outcome.Reason), outcome.Reason.Message(), nil)
			return
		}

		s, err := sessions.Create(r.Context(), outcome.CredentialID)
		if err != nil {
			slog.Error("create session failed", "credential_id", outcome.CredentialID, "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}

		response.JSON(w, verifyResponse{
			Accepted:         true,
			SessionToken:     s.Token.String(),
			SessionExpiresAt: s.ExpiresAt,
		})
	}
}
