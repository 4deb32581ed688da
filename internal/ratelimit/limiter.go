package ratelimit

import (
	"context"
	"time"
)

// Limiter spaces out consecutive adapter batch calls for a provider. It is
// purely time-based: the delay only needs to hold within a single run, so
// there is no token state to persist.
type Limiter struct {
	defaultDelay time.Duration
	perProvider  map[string]time.Duration
}

// New creates a limiter with a default inter-batch delay and optional
// per-provider overrides.
func New(defaultDelay time.Duration, perProvider map[string]time.Duration) *Limiter {
	overrides := make(map[string]time.Duration, len(perProvider))
	for k, v := range perProvider {
		overrides[k] = v
	}
	return &Limiter{
		defaultDelay: defaultDelay,
		perProvider:  overrides,
	}
}

// Delay returns the configured delay for a provider.
func (l *Limiter) Delay(provider string) time.Duration {
	if d, ok := l.perProvider[provider]; ok {
		return d
	}
	return l.defaultDelay
}

// Wait blocks for the provider's delay or until the context is cancelled.
func (l *Limiter) Wait(ctx context.Context, provider string) error {
	d := l.Delay(provider)
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
