// Package ratelimit enforces the per-identity daily question quota.
// Authenticated identities are unlimited; the guest identity is capped per
// calendar day.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Guest is the sentinel identity for unauthenticated callers.
const Guest = "guest"

// Counters expire 24h after their first increment.
const counterTTL = 24 * time.Hour

// Counter is the shared counter store. IncrBelowCap atomically checks the
// current count against cap and increments only when below it, (re)setting
// the key's expiry. A rejected call must leave the counter untouched.
// Implementations must be safe across concurrent callers and processes.
type Counter interface {
	IncrBelowCap(ctx context.Context, key string, cap int, ttl time.Duration) (bool, error)
}

// Limiter decides whether an identity may submit another question today.
type Limiter struct {
	counter Counter
	cap     int
	now     func() time.Time
}

// New creates a Limiter with the given daily guest cap.
func New(counter Counter, dailyCap int) *Limiter {
	return &Limiter{
		counter: counter,
		cap:     dailyCap,
		now:     time.Now,
	}
}

// Admit reports whether the identity may submit a question. Non-guest
// identities are always admitted without touching the counter store.
func (l *Limiter) Admit(ctx context.Context, identity string) (bool, error) {
	if identity != Guest {
		return true, nil
	}

	// Calendar day in the service-local time zone.
	day := l.now().Format("2006-01-02")
	key := fmt.Sprintf("user:%s:questions:%s", identity, day)
	return l.counter.IncrBelowCap(ctx, key, l.cap, counterTTL)
}
