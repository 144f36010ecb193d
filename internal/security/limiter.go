package security

import (
	"context"
	"fmt"
	"time"
)

// Decision is the outcome of one rate-limit check.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter is a fixed-window counter per client identity.
type Limiter struct {
	store Store
	now   func() time.Time
}

func NewLimiter(store Store) *Limiter {
	return &Limiter{store: store, now: time.Now}
}

// Check counts one request from clientID. The window opens with the first
// request; the request after limit within window is refused until the
// window has passed.
func (l *Limiter) Check(ctx context.Context, clientID string, limit int, window time.Duration) (Decision, error) {
	now := l.now()
	e, ok, err := l.store.Get(ctx, clientID)
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit lookup: %w", err)
	}
	if !ok || now.Sub(e.Start) >= window {
		e = Entry{Count: 0, Start: now}
	}
	if e.Count >= limit {
		return Decision{Allowed: false, RetryAfter: window - now.Sub(e.Start)}, nil
	}
	e.Count++
	if err := l.store.Set(ctx, clientID, e); err != nil {
		return Decision{}, fmt.Errorf("rate limit update: %w", err)
	}
	return Decision{Allowed: true, Remaining: limit - e.Count}, nil
}

// Sweep drops windows that ended before now.
func (l *Limiter) Sweep(ctx context.Context, window time.Duration) (int, error) {
	return l.store.Sweep(ctx, l.now().Add(-window), 0)
}

// Debouncer refuses a second submission of the same key within cooldown.
type Debouncer struct {
	store    Store
	cooldown time.Duration
	now      func() time.Time
}

func NewDebouncer(store Store, cooldown time.Duration) *Debouncer {
	return &Debouncer{store: store, cooldown: cooldown, now: time.Now}
}

func (d *Debouncer) SafeToSubmit(ctx context.Context, key string) (bool, error) {
	e, ok, err := d.store.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("debounce lookup: %w", err)
	}
	return !ok || d.now().Sub(e.Start) >= d.cooldown, nil
}

func (d *Debouncer) RecordSubmission(ctx context.Context, key string) error {
	if err := d.store.Set(ctx, key, Entry{Count: 1, Start: d.now()}); err != nil {
		return fmt.Errorf("debounce record: %w", err)
	}
	return nil
}

// Clear forgets the submission recorded for key.
func (d *Debouncer) Clear(ctx context.Context, key string) error {
	if err := d.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("debounce clear: %w", err)
	}
	return nil
}

func (d *Debouncer) Sweep(ctx context.Context) (int, error) {
	return d.store.Sweep(ctx, d.now().Add(-d.cooldown), 0)
}
