package resilient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/jwalitptl/exchange-api/pkg/errors"
)

func TestBreakerOpensAtThreshold(t *testing.T) {
	b := NewBreaker("node-1", 5, 60*time.Second)

	for i := 0; i < 4; i++ {
		b.RecordFailure()
		assert.Equal(t, StateClosed, b.State())
	}

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())

	err := b.Allow()
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCircuitOpen, apperrors.Kind(err))
}

func TestBreakerHalfOpenSingleTrial(t *testing.T) {
	b := NewBreaker("node-1", 1, 10*time.Millisecond)
	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())

	time.Sleep(20 * time.Millisecond)

	// First caller after the reset timeout gets the trial.
	require.NoError(t, b.Allow())
	assert.Equal(t, StateHalfOpen, b.State())

	// Everyone else keeps failing fast until the trial resolves.
	require.Error(t, b.Allow())

	b.RecordSuccess()
	assert.Equal(t, StateClosed, b.State())
	require.NoError(t, b.Allow())
}

func TestBreakerReopensOnFailedTrial(t *testing.T) {
	b := NewBreaker("node-1", 1, 10*time.Millisecond)
	b.RecordFailure()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, b.Allow())

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())
	require.Error(t, b.Allow())
}

func TestBreakerSuccessResetsCounter(t *testing.T) {
	b := NewBreaker("node-1", 5, time.Minute)
	b.RecordFailure()
	b.RecordFailure()
	assert.Equal(t, 2, b.Failures())

	b.RecordSuccess()
	assert.Equal(t, 0, b.Failures())
}

func TestBreakerPermanentLeavesCounter(t *testing.T) {
	b := NewBreaker("node-1", 5, time.Minute)
	b.RecordFailure()
	b.RecordFailure()

	b.RecordPermanent()
	assert.Equal(t, 2, b.Failures())
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerAbandonedTrialReturnsToOpen(t *testing.T) {
	b := NewBreaker("node-1", 1, 10*time.Millisecond)
	b.RecordFailure()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, b.Allow())
	assert.Equal(t, StateHalfOpen, b.State())

	b.Abandon()
	assert.Equal(t, StateOpen, b.State())

	// The reset timeout already elapsed, so the next caller gets the trial.
	require.NoError(t, b.Allow())
	assert.Equal(t, StateHalfOpen, b.State())
}

func TestBreakerStateChangeHook(t *testing.T) {
	b := NewBreaker("node-1", 1, time.Minute)

	var transitions []string
	b.OnStateChange(func(endpoint, from, to string) {
		transitions = append(transitions, from+">"+to)
	})

	b.RecordFailure()
	b.RecordSuccess()

	assert.Equal(t, []string{"closed>open", "open>closed"}, transitions)
}
