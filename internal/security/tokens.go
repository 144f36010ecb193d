package security

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// tokenBytes of randomness give a 64 character hex token.
const tokenBytes = 32

var ErrMalformedToken = errors.New("malformed security token")

// GenerateToken returns a fresh CSRF token.
func GenerateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// WellFormed reports whether tok looks like a token GenerateToken made.
func WellFormed(tok string) bool {
	if len(tok) != tokenBytes*2 {
		return false
	}
	_, err := hex.DecodeString(tok)
	return err == nil
}

// Tokens is the CSRF registry: generate, register, verify, consume.
type Tokens struct {
	store Store
	ttl   time.Duration
	max   int
	keep  int
	now   func() time.Time
}

func NewTokens(store Store, ttl time.Duration, max, keep int) *Tokens {
	return &Tokens{store: store, ttl: ttl, max: max, keep: keep, now: time.Now}
}

// Issue generates a token and registers it.
func (t *Tokens) Issue(ctx context.Context) (string, error) {
	tok, err := GenerateToken()
	if err != nil {
		return "", err
	}
	if err := t.Register(ctx, tok); err != nil {
		return "", err
	}
	return tok, nil
}

// Register records tok with the current time. When the registry grows past
// its limit, expired and then oldest tokens are evicted.
func (t *Tokens) Register(ctx context.Context, tok string) error {
	if !WellFormed(tok) {
		return ErrMalformedToken
	}
	if err := t.store.Set(ctx, tok, Entry{Start: t.now()}); err != nil {
		return fmt.Errorf("register token: %w", err)
	}
	n, err := t.store.Len(ctx)
	if err != nil {
		return fmt.Errorf("count tokens: %w", err)
	}
	if t.max > 0 && n > t.max {
		if _, err := t.store.Sweep(ctx, t.now().Add(-t.ttl), t.keep); err != nil {
			return fmt.Errorf("evict tokens: %w", err)
		}
	}
	return nil
}

// Verify reports whether tok is registered and younger than the TTL.
// Expired tokens are dropped on sight.
func (t *Tokens) Verify(ctx context.Context, tok string) (bool, error) {
	if !WellFormed(tok) {
		return false, nil
	}
	e, ok, err := t.store.Get(ctx, tok)
	if err != nil {
		return false, fmt.Errorf("verify token: %w", err)
	}
	if !ok {
		return false, nil
	}
	if t.now().Sub(e.Start) > t.ttl {
		_ = t.store.Delete(ctx, tok)
		return false, nil
	}
	return true, nil
}

// Consume removes tok. Consuming an unknown token is not an error.
func (t *Tokens) Consume(ctx context.Context, tok string) error {
	if err := t.store.Delete(ctx, tok); err != nil {
		return fmt.Errorf("consume token: %w", err)
	}
	return nil
}

// Sweep drops expired tokens and returns how many went.
func (t *Tokens) Sweep(ctx context.Context) (int, error) {
	return t.store.Sweep(ctx, t.now().Add(-t.ttl), 0)
}
