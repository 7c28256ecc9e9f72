package runnerauth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

// fakeExchanger issues sessions that expire ttl after the clock's now, or
// returns the next queued error.
type fakeExchanger struct {
	mu    sync.Mutex
	clock *testclock.Clock
	ttl   time.Duration
	errs  []error
	count int
}

func (f *fakeExchanger) Exchange(_ context.Context, apiKey string) (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &Session{
		Token:     apiKey + "-session",
		UserID:    "u1",
		ExpiresAt: f.clock.Now().Add(f.ttl),
	}, nil
}

func (f *fakeExchanger) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startKeeper(t *testing.T, ex *fakeExchanger, margin time.Duration) (*SessionKeeper, context.CancelFunc, <-chan error) {
	t.Helper()

	k := NewSessionKeeper(ex, "tok_abc", margin, ex.clock, discardLogger())
	_, err := k.Start(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- k.Run(ctx) }()
	t.Cleanup(cancel)

	return k, cancel, done
}

func TestSessionKeeper_Start(t *testing.T) {
	clk := testclock.NewClock(testTime)
	ex := &fakeExchanger{clock: clk, ttl: 24 * time.Hour}
	k := NewSessionKeeper(ex, "tok_abc", 0, clk, discardLogger())

	assert.Nil(t, k.Current())

	sess, err := k.Start(context.Background())

	require.NoError(t, err)
	assert.Equal(t, sess, k.Current())
	assert.Equal(t, testTime.Add(24*time.Hour), sess.ExpiresAt)
}

func TestSessionKeeper_StartFails(t *testing.T) {
	clk := testclock.NewClock(testTime)
	ex := &fakeExchanger{clock: clk, errs: []error{&APIError{StatusCode: http.StatusUnauthorized, Message: "Invalid API key"}}}
	k := NewSessionKeeper(ex, "tok_abc", 0, clk, discardLogger())

	_, err := k.Start(context.Background())

	require.Error(t, err)
	assert.Nil(t, k.Current())
}

func TestSessionKeeper_RunRequiresStart(t *testing.T) {
	clk := testclock.NewClock(testTime)
	k := NewSessionKeeper(&fakeExchanger{clock: clk}, "tok_abc", 0, clk, discardLogger())

	err := k.Run(context.Background())

	require.Error(t, err)
}

func TestSessionKeeper_RefreshesBeforeExpiry(t *testing.T) {
	clk := testclock.NewClock(testTime)
	ex := &fakeExchanger{clock: clk, ttl: 2 * time.Hour}
	k, cancel, done := startKeeper(t, ex, time.Hour)

	require.NoError(t, clk.WaitAdvance(time.Hour, time.Second, 1))
	require.Eventually(t, func() bool { return ex.calls() == 2 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return k.Current().ExpiresAt.Equal(testTime.Add(3 * time.Hour))
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, clk.WaitAdvance(time.Hour, time.Second, 1))
	require.Eventually(t, func() bool { return ex.calls() == 3 }, time.Second, 5*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestSessionKeeper_ShortTTLUsesMinimumInterval(t *testing.T) {
	clk := testclock.NewClock(testTime)
	ex := &fakeExchanger{clock: clk, ttl: 30 * time.Minute}
	_, cancel, done := startKeeper(t, ex, time.Hour)

	require.NoError(t, clk.WaitAdvance(minRefreshInterval, time.Second, 1))
	require.Eventually(t, func() bool { return ex.calls() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestSessionKeeper_RetriesTransientFailure(t *testing.T) {
	clk := testclock.NewClock(testTime)
	ex := &fakeExchanger{clock: clk, ttl: 2 * time.Hour, errs: []error{nil, errors.New("connection refused")}}
	k, cancel, done := startKeeper(t, ex, time.Hour)
	first := k.Current()

	require.NoError(t, clk.WaitAdvance(time.Hour, time.Second, 1))
	require.Eventually(t, func() bool { return ex.calls() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, first, k.Current(), "failed refresh keeps the previous session")

	require.NoError(t, clk.WaitAdvance(minRefreshInterval, time.Second, 1))
	require.Eventually(t, func() bool { return ex.calls() == 3 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return k.Current() != first }, time.Second, 5*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestSessionKeeper_StopsOnRejectedCredential(t *testing.T) {
	clk := testclock.NewClock(testTime)
	ex := &fakeExchanger{
		clock: clk,
		ttl:   2 * time.Hour,
		errs:  []error{nil, &APIError{StatusCode: http.StatusUnauthorized, Message: "Invalid API key"}},
	}
	_, _, done := startKeeper(t, ex, time.Hour)

	require.NoError(t, clk.WaitAdvance(time.Hour, time.Second, 1))

	select {
	case err := <-done:
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after the credential was rejected")
	}
}
