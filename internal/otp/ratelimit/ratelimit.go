// Package ratelimit throttles challenge issuance per card number.
package ratelimit

import (
	"context"
	"time"
)

// Result is the outcome of one rate-limit check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter counts issuance events per key within a trailing window. Allow
// records the event when it is permitted; a denied call records nothing.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}
