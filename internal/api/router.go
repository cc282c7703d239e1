package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	mw "github.com/kiranshivaraju/keygate/internal/api/middleware"
	"github.com/kiranshivaraju/keygate/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	AdminAuth       *mw.AdminAuth
	VerifyRateLimit *mw.RateLimit

	HealthHandler        http.HandlerFunc
	VerifyHandler        http.HandlerFunc
	SessionStatusHandler http.HandlerFunc
	EndSessionHandler    http.HandlerFunc
	IssueHandler         http.HandlerFunc
	ListHandler          http.HandlerFunc
	SetStateHandler      http.HandlerFunc
	DeleteHandler        http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)
	r.Use(mw.ClientIP)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	// Public routes
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	r.With(deps.VerifyRateLimit.Limit).Post("/api/v1/verify", orNotImplemented(deps.VerifyHandler))

	r.Get("/api/v1/session", orNotImplemented(deps.SessionStatusHandler))
	r.Delete("/api/v1/session", orNotImplemented(deps.EndSessionHandler))

	// Admin routes
	r.Group(func(r chi.Router) {
		r.Use(deps.AdminAuth.Authenticate)

		r.Post("/api/v1/admin/credentials", orNotImplemented(deps.IssueHandler))
		r.Get("/api/v1/admin/credentials", orNotImplemented(deps.ListHandler))
		r.Post("/api/v1/admin/credentials/{id}/state", orNotImplemented(deps.SetStateHandler))
		r.Delete("/api/v1/admin/credentials/{id}", orNotImplemented(deps.DeleteHandler))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
