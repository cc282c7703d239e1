package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/kiranshivaraju/keygate/internal/api/response"
)

// Recovery turns a handler panic into a 500 envelope. The request id is
// echoed in the details so a caller can quote it when reporting the failure.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				reqID := chimw.GetReqID(r.Context())
				slog.Error("panic recovered",
					"error", rec,
					"stack", string(debug.Stack()),
					"request_id", reqID,
					"method", r.Method,
					"path", r.URL.Path,
				)

				var details any
				if reqID != "" {
					details = map[string]string{"request_id": reqID}
				}
				response.Error(w, http.StatusInternalServerError,
					"INTERNAL_ERROR", "An unexpected error occurred", details)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
