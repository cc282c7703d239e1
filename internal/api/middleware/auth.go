package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/kiranshivaraju/keygate/internal/api/response"
	"golang.org/x/crypto/bcrypt"
)

// AdminAuth guards administrative routes with a single shared password,
// compared against its bcrypt hash.
type AdminAuth struct {
	passwordHash []byte
}

// NewAdminAuth creates a new AdminAuth middleware from a bcrypt hash.
func NewAdminAuth(passwordHash string) *AdminAuth {
	return &AdminAuth{passwordHash: []byte(passwordHash)}
}

// Authenticate rejects requests whose Bearer token does not match the
// administrator password.
func (a *AdminAuth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		password := BearerToken(r)
		if password == "" {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Missing or invalid Authorization header", nil)
			return
		}

		if err := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)); err != nil {
			slog.Warn("admin authentication failed", "remote_addr", r.RemoteAddr)
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Invalid administrator password", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// BearerToken returns the token from an "Authorization: Bearer" header, or
// an empty string.
func BearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
