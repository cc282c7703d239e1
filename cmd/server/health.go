package main

import (
	"context"
	"net/http"

	"github.com/kiranshivaraju/keygate/internal/api/response"
)

const (
	statusOK       = "ok"
	statusDegraded = "degraded"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// healthHandler reports the credential store and session cache. Any failed
// ping turns the whole response into a 503.
func healthHandler(driver string, st, c pinger) http.HandlerFunc {
	deps := []struct {
		name string
		p    pinger
	}{
		{"database", st},
		{"cache", c},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		checks := make(map[string]string, len(deps))
		healthy := true
		for _, d := range deps {
			checks[d.name] = statusOK
			if err := d.p.Ping(r.Context()); err != nil {
				checks[d.name] = statusDegraded
				healthy = false
			}
		}

		if !healthy {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}
		response.JSON(w, map[string]any{
			"status":       statusOK,
			"store_driver": driver,
			"services":     checks,
		})
	}
}
