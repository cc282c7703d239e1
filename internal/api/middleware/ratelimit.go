package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/kiranshivaraju/keygate/internal/api/response"
	"github.com/kiranshivaraju/keygate/internal/cache"
)

const (
	defaultRequestsPerMinute = 10
	rateLimitWindow          = 60 * time.Second
)

// RateLimit counts requests per client IP in fixed one-minute windows kept in
// the cache. Cache failures let the request through.
type RateLimit struct {
	cache          cache.Cache
	scope          string
	requestsPerMin int
	now            func() time.Time
}

// NewRateLimit creates a RateLimit. scope separates the counters of
// independently limited routes.
func NewRateLimit(c cache.Cache, scope string, requestsPerMin int) *RateLimit {
	if requestsPerMin <= 0 {
		requestsPerMin = defaultRequestsPerMinute
	}
	return &RateLimit{cache: c, scope: scope, requestsPerMin: requestsPerMin, now: time.Now}
}

// Limit rejects a client with 429 once it exceeds the per-minute budget.
// It relies on ClientIP having run first.
func (rl *RateLimit) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, ok := GetClientIP(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		key := cache.RateLimitKey(rl.scope, ip)
		count, err := rl.cache.IncrWithExpiry(r.Context(), key, rateLimitWindow)
		if err != nil {
			slog.Warn("rate limit check failed", "scope", rl.scope, "error", err)
			next.ServeHTTP(w, r)
			return
		}

		reset := rl.windowRemaining(r, key)
		remaining := max(rl.requestsPerMin-int(count), 0)

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(rl.requestsPerMin))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(rl.now().Add(reset).Unix(), 10))

		if count > int64(rl.requestsPerMin) {
			slog.Warn("rate limit exceeded", "scope", rl.scope, "client_ip", ip, "count", count)
			h.Set("Retry-After", strconv.Itoa(int(math.Ceil(reset.Seconds()))))
			response.Error(w, http.StatusTooManyRequests,
				"RATE_LIMIT_EXCEEDED", "Too many requests", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// windowRemaining reports how long until the counter at key resets, falling
// back to a full window when the cache cannot say.
func (rl *RateLimit) windowRemaining(r *http.Request, key string) time.Duration {
	d, found, err := rl.cache.TTL(r.Context(), key)
	if err != nil || !found || d <= 0 {
		return rateLimitWindow
	}
	return d
}
