package resilient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/jwalitptl/exchange-api/pkg/errors"
)

func testConfig(endpoint string) Config {
	cfg := DefaultConfig(endpoint)
	cfg.BackoffDelays = []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}
	return cfg
}

var errConnReset = errors.New("connection reset")

func transientOnly(err error) bool { return !errors.As(err, new(*HTTPStatusError)) }

func TestDoSucceedsFirstAttempt(t *testing.T) {
	c := NewClient(testConfig("node-1"), transientOnly, nil)

	body, err := c.Do(context.Background(), func(ctx context.Context) ([]byte, error) {
		return []byte("ok"), nil
	})

	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), body)
	assert.Equal(t, 0, c.Breaker().Failures())
}

func TestDoRetriesTransientThenSucceeds(t *testing.T) {
	c := NewClient(testConfig("node-1"), transientOnly, nil)

	calls := 0
	body, err := c.Do(context.Background(), func(ctx context.Context) ([]byte, error) {
		calls++
		if calls < 3 {
			return nil, errConnReset
		}
		return []byte("ok"), nil
	})

	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), body)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 0, c.Breaker().Failures())
}

func TestDoExhaustedAttemptsCountOneFailure(t *testing.T) {
	c := NewClient(testConfig("node-1"), transientOnly, nil)

	calls := 0
	_, err := c.Do(context.Background(), func(ctx context.Context) ([]byte, error) {
		calls++
		return nil, errConnReset
	})

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrTransientNetwork, apperrors.Kind(err))
	assert.Equal(t, 3, calls)
	assert.Equal(t, 1, c.Breaker().Failures())
}

func TestDoPermanentFailsImmediately(t *testing.T) {
	c := NewClient(testConfig("node-1"), transientOnly, nil)

	calls := 0
	_, err := c.Do(context.Background(), func(ctx context.Context) ([]byte, error) {
		calls++
		return nil, &HTTPStatusError{StatusCode: 404}
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, c.Breaker().Failures())
}

func TestDoOpensCircuitAfterThreshold(t *testing.T) {
	c := NewClient(testConfig("node-1"), transientOnly, nil)

	fail := func(ctx context.Context) ([]byte, error) { return nil, errConnReset }

	// Five exhausted retry loops, one breaker failure each.
	for i := 0; i < 5; i++ {
		_, err := c.Do(context.Background(), fail)
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrTransientNetwork, apperrors.Kind(err))
	}
	assert.Equal(t, StateOpen, c.Breaker().State())

	// The sixth call fails fast without touching the network.
	calls := 0
	_, err := c.Do(context.Background(), func(ctx context.Context) ([]byte, error) {
		calls++
		return nil, errConnReset
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCircuitOpen, apperrors.Kind(err))
	assert.Equal(t, 0, calls)
}

func TestDoTrialCallAfterResetTimeout(t *testing.T) {
	cfg := testConfig("node-1")
	cfg.FailureThreshold = 1
	cfg.ResetTimeout = 10 * time.Millisecond
	c := NewClient(cfg, transientOnly, nil)

	_, err := c.Do(context.Background(), func(ctx context.Context) ([]byte, error) {
		return nil, errConnReset
	})
	require.Error(t, err)
	assert.Equal(t, StateOpen, c.Breaker().State())

	time.Sleep(20 * time.Millisecond)

	body, err := c.Do(context.Background(), func(ctx context.Context) ([]byte, error) {
		return []byte("recovered"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("recovered"), body)
	assert.Equal(t, StateClosed, c.Breaker().State())
}

func TestDoRespectsContextCancellation(t *testing.T) {
	cfg := testConfig("node-1")
	cfg.BackoffDelays = []time.Duration{time.Minute}
	c := NewClient(cfg, transientOnly, nil)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := c.Do(ctx, func(ctx context.Context) ([]byte, error) {
			return nil, errConnReset
		})
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("retry loop did not abort on cancellation")
	}
}

func TestDoCancelledBeforeFirstAttempt(t *testing.T) {
	c := NewClient(testConfig("node-1"), transientOnly, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := c.Do(ctx, func(ctx context.Context) ([]byte, error) {
		calls++
		return []byte("ok"), nil
	})

	require.Error(t, err)
	assert.Equal(t, 0, calls)
}
