package auth

import (
	"context"
	"time"
)

// TokenBlacklist stores revoked token IDs so logout actually invalidates the
// session cookie before its natural expiry.
type TokenBlacklist interface {
	// Add blacklists a jti until the token's original expiry, after which the
	// entry may be discarded.
	Add(ctx context.Context, jti string, originalTokenExpTime time.Time) error
	// IsBlacklisted checks whether a jti has been revoked.
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
}
