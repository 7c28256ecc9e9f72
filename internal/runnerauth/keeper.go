package runnerauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/juju/clock"
)

const (
	// DefaultRefreshMargin is how long before expiry a session is renewed.
	DefaultRefreshMargin = time.Hour

	minRefreshInterval = time.Minute
	maxRetryBackoff    = 5 * time.Minute
)

// Exchanger obtains a new session for an API key.
type Exchanger interface {
	Exchange(ctx context.Context, apiKey string) (*Session, error)
}

// SessionKeeper holds a current Session and renews it before it expires.
type SessionKeeper struct {
	exchanger Exchanger
	apiKey    string
	margin    time.Duration
	clock     clock.Clock
	logger    *slog.Logger

	mu      sync.RWMutex
	current *Session
}

// NewSessionKeeper creates a SessionKeeper. A non-positive margin uses
// DefaultRefreshMargin; a nil clock uses the wall clock.
func NewSessionKeeper(exchanger Exchanger, apiKey string, margin time.Duration, clk clock.Clock, logger *slog.Logger) *SessionKeeper {
	if margin <= 0 {
		margin = DefaultRefreshMargin
	}
	if clk == nil {
		clk = clock.WallClock
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionKeeper{
		exchanger: exchanger,
		apiKey:    apiKey,
		margin:    margin,
		clock:     clk,
		logger:    logger,
	}
}

// Start performs the initial exchange. It must succeed before Run is useful.
func (k *SessionKeeper) Start(ctx context.Context) (*Session, error) {
	sess, err := k.exchanger.Exchange(ctx, k.apiKey)
	if err != nil {
		return nil, err
	}
	k.set(sess)
	return sess, nil
}

// Current returns the most recent session, or nil before Start succeeds.
func (k *SessionKeeper) Current() *Session {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.current
}

// Run renews the session ahead of expiry until ctx is cancelled. Transient
// failures are retried with backoff; a rejected credential ends Run with an
// error.
func (k *SessionKeeper) Run(ctx context.Context) error {
	sess := k.Current()
	if sess == nil {
		return errors.New("session keeper not started")
	}

	wait := k.untilRefresh(sess)
	backoff := minRefreshInterval

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-k.clock.After(wait):
		}

		next, err := k.exchanger.Exchange(ctx, k.apiKey)
		if err == nil {
			k.set(next)
			backoff = minRefreshInterval
			wait = k.untilRefresh(next)
			k.logger.Info("session refreshed", "expires_at", next.ExpiresAt, "next_refresh_in", wait)
			continue
		}

		if ctx.Err() != nil {
			return nil
		}

		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Terminal() {
			return fmt.Errorf("refresh session: %w", err)
		}

		k.logger.Warn("session refresh failed, retrying", "error", err, "retry_in", backoff)
		wait = backoff
		backoff = min(backoff*2, maxRetryBackoff)
	}
}

func (k *SessionKeeper) set(sess *Session) {
	k.mu.Lock()
	k.current = sess
	k.mu.Unlock()
}

// untilRefresh is the delay until sess should be renewed, never shorter than
// minRefreshInterval.
func (k *SessionKeeper) untilRefresh(sess *Session) time.Duration {
	wait := sess.ExpiresAt.Sub(k.clock.Now()) - k.margin
	if wait < minRefreshInterval {
		return minRefreshInterval
	}
	return wait
}
