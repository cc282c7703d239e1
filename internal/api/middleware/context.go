package middleware

import (
	"context"
	"net"
	"net/http"
)

type contextKey string

const clientIPKey contextKey = "client_ip"

func SetClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

func GetClientIP(r *http.Request) (string, bool) {
	ip, ok := r.Context().Value(clientIPKey).(string)
	return ip, ok && ip != ""
}

// ClientIP records the caller's address in the request context. It expects
// chi's RealIP to have already rewritten RemoteAddr behind a proxy.
func ClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		next.ServeHTTP(w, r.WithContext(SetClientIP(r.Context(), ip)))
	})
}
