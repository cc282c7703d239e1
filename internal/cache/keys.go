package cache

import (
	"fmt"

	"github.com/google/uuid"
)

// Key layout:
//
//	session:<token>                 credential id of an open session
//	ratelimit:<scope>:<subject>     request counter for one window
func SessionKey(token uuid.UUID) string {
	return fmt.Sprintf("session:%s", token)
}

func RateLimitKey(scope, subject string) string {
	return fmt.Sprintf("ratelimit:%s:%s", scope, subject)
}
