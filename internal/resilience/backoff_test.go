package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(attempts int) Policy {
	return Policy{Attempts: attempts, Initial: time.Millisecond, Max: 5 * time.Millisecond, Factor: 2}
}

func TestCall_FirstAttemptSucceeds(t *testing.T) {
	calls := 0
	v, err := Call(context.Background(), fastPolicy(3), func(context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 1, calls)
}

func TestCall_RetriesTransient(t *testing.T) {
	calls := 0
	var notified []int
	p := fastPolicy(3)
	p.Notify = func(attempt int, _ error) { notified = append(notified, attempt) }

	v, err := Call(context.Background(), p, func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, Transient(errors.New("busy"), 503)
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, notified)
}

func TestCall_ExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := Call(context.Background(), fastPolicy(2), func(context.Context) (int, error) {
		calls++
		return 0, Transient(errors.New("busy"), 429)
	})
	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.True(t, IsTransient(err))
}

func TestCall_StopsOnPermanentError(t *testing.T) {
	calls := 0
	_, err := Call(context.Background(), fastPolicy(5), func(context.Context) (int, error) {
		calls++
		return 0, errors.New("bad request")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestCall_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Call(ctx, Policy{Attempts: 5, Initial: time.Second}, func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, Transient(errors.New("busy"), 503)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestCall_CustomRetryable(t *testing.T) {
	calls := 0
	p := fastPolicy(3)
	p.Retryable = func(error) bool { return true }
	_, err := Call(context.Background(), p, func(context.Context) (int, error) {
		calls++
		return 0, errors.New("always")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestPolicyFromSettings(t *testing.T) {
	p := PolicyFromSettings(0, 0, 0)
	assert.Equal(t, 1, p.Attempts)
	assert.Equal(t, 500*time.Millisecond, p.Initial)

	p = PolicyFromSettings(4, 100, 2000)
	assert.Equal(t, 5, p.Attempts)
	assert.Equal(t, 100*time.Millisecond, p.Initial)
	assert.Equal(t, 2*time.Second, p.Max)
}

func TestDelay_GrowsAndCaps(t *testing.T) {
	p := Policy{Attempts: 10, Initial: 10 * time.Millisecond, Max: 50 * time.Millisecond, Factor: 2}.normalized()
	assert.Equal(t, 10*time.Millisecond, p.delay(1))
	assert.Equal(t, 20*time.Millisecond, p.delay(2))
	assert.Equal(t, 40*time.Millisecond, p.delay(3))
	assert.Equal(t, 50*time.Millisecond, p.delay(4))
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.True(t, IsTransient(fmt.Errorf("wrap: %w", Transient(errors.New("x"), 502))))
	assert.True(t, IsTransient(errors.New("read tcp: connection reset by peer")))
	assert.False(t, IsTransient(errors.New("invalid level")))
}

func TestIsTransientStatus(t *testing.T) {
	for _, c := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientStatus(c), c)
	}
	for _, c := range []int{200, 400, 401, 404, 501} {
		assert.False(t, IsTransientStatus(c), c)
	}
}
