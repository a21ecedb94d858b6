// Package ratelimit implements a fixed-window request limiter with a
// pluggable counter store: in-memory for single-process deployments, Redis
// for multi-process deployments where limits must be global.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LuisFaxas/faxas-property-sub000/internal/auth"
)

// Tier is the (limit, window) pair applied to a principal.
type Tier struct {
	Limit  int64
	Window time.Duration
}

// TierFor resolves the tier from the principal's global role. Pure function:
// it mutates nothing and is itself never rate limited.
func TierFor(role auth.Role) Tier {
	switch role {
	case auth.RoleAdmin:
		return Tier{Limit: 1000, Window: time.Minute}
	case auth.RoleStaff:
		return Tier{Limit: 600, Window: time.Minute}
	case auth.RoleContractor:
		return Tier{Limit: 300, Window: time.Minute}
	default:
		return Tier{Limit: 100, Window: time.Minute}
	}
}

// Store tracks one counter per key. Incr atomically applies the fixed-window
// state machine: reset the window if it elapsed, then increment, returning
// the post-increment count and the time elapsed inside the current window.
type Store interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int64, elapsed time.Duration, err error)
}

// Result reports the outcome of one admission check.
type Result struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// Limiter applies a Tier to a Store.
type Limiter struct {
	store Store
}

func New(store Store) (*Limiter, error) {
	if store == nil {
		return nil, errors.New("ratelimit: store is required")
	}
	return &Limiter{store: store}, nil
}

// Check admits or denies one request for the key. Denials carry a positive
// retry-after equal to the remainder of the current window. Distinct keys
// never share a counter.
func (l *Limiter) Check(ctx context.Context, key string, tier Tier) (Result, error) {
	if tier.Limit <= 0 || tier.Window <= 0 {
		return Result{}, fmt.Errorf("ratelimit: invalid tier %+v", tier)
	}
	count, elapsed, err := l.store.Incr(ctx, key, tier.Window)
	if err != nil {
		return Result{}, fmt.Errorf("ratelimit: counter store: %w", err)
	}
	if count > tier.Limit {
		retry := tier.Window - elapsed
		if retry <= 0 {
			retry = time.Second
		}
		return Result{Allowed: false, RetryAfter: retry}, nil
	}
	return Result{Allowed: true, Remaining: tier.Limit - count}, nil
}
