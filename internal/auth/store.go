// Package auth caches registry bearer tokens and decides when they must be renewed.
package auth

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// RenewalWindow is how long before its real expiry a token is treated as expired.
const RenewalWindow = 3 * time.Second

// Grant is what one authenticate call returns.
type Grant struct {
	Token     string
	ExpiresIn time.Duration
}

// Authenticator exchanges an API key for a Grant.
type Authenticator interface {
	Authenticate(ctx context.Context, endpoint, apiKey string) (Grant, error)
}

// Token is an immutable bearer token with its absolute expiry.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// ShouldRenew reports whether now falls inside the renewal window.
func (t Token) ShouldRenew(now time.Time) bool {
	return !now.Before(t.ExpiresAt.Add(-RenewalWindow))
}

// ExpiresAtMillis returns the expiry as epoch milliseconds.
func (t Token) ExpiresAtMillis() int64 {
	return t.ExpiresAt.UnixMilli()
}

// Store hands out cached tokens per endpoint and API key. Each credential pair
// has its own lock held across lookup, renewal and replacement, so concurrent
// callers for one pair share a single authenticate call while other pairs
// proceed independently.
type Store struct {
	mu            sync.Mutex
	authenticator Authenticator
	now           func() time.Time
	entries       map[string]*entry
	logger        *slog.Logger
}

// entry is the cache slot of one credential pair. token and valid are only
// touched while lock is held.
type entry struct {
	lock  *semaphore.Weighted
	token Token
	valid bool
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithLogger sets the logger used for renewal events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore creates an empty token store backed by authenticator.
func NewStore(authenticator Authenticator, opts ...Option) *Store {
	s := &Store{
		authenticator: authenticator,
		now:           time.Now,
		entries:       make(map[string]*entry),
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Token returns a valid token for the credential pair, authenticating only
// when none is cached or the cached one is inside its renewal window.
// Authentication errors are returned unchanged and leave the cache as it was.
// A caller waiting behind another authentication gives up when ctx ends.
func (s *Store) Token(ctx context.Context, endpoint, apiKey string) (Token, error) {
	e := s.entry(endpoint + ":" + apiKey)
	if err := e.lock.Acquire(ctx, 1); err != nil {
		return Token{}, err
	}
	defer e.lock.Release(1)

	now := s.now()
	if e.valid && !e.token.ShouldRenew(now) {
		return e.token, nil
	}

	grant, err := s.authenticator.Authenticate(ctx, endpoint, apiKey)
	if err != nil {
		return Token{}, err
	}

	e.token = Token{Value: grant.Token, ExpiresAt: now.Add(grant.ExpiresIn)}
	e.valid = true

	s.logger.Debug("obtained api token",
		"endpoint", endpoint,
		"expires_at", e.token.ExpiresAt.UTC().Format(time.RFC3339))

	return e.token, nil
}

func (s *Store) entry(key string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		e = &entry{lock: semaphore.NewWeighted(1)}
		s.entries[key] = e
	}
	return e
}
