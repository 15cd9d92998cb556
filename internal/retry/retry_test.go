package retry_test

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/olusolaa/bedrock-kb-provisioner/internal/errors"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/log"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/retry"
)

func fastConfig(attempts int) retry.Config {
	return retry.Config{
		MinDelay:    time.Millisecond,
		MaxDelay:    3 * time.Millisecond,
		MaxAttempts: attempts,
	}
}

func TestExecuteSucceedsFirstAttempt(t *testing.T) {
	policy := retry.NewPolicy(fastConfig(5), log.Nop())

	calls := 0
	err := policy.Execute(context.Background(), "op", func(ctx context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestExecuteRetriesTransientUntilSuccess(t *testing.T) {
	policy := retry.NewPolicy(fastConfig(5), log.Nop())

	calls := 0
	err := policy.Execute(context.Background(), "op", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("throttled")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestExecuteExhaustsAttemptBudget(t *testing.T) {
	policy := retry.NewPolicy(fastConfig(4), log.Nop())

	sentinel := errors.New("still throttled")
	calls := 0
	err := policy.Execute(context.Background(), "op", func(ctx context.Context) error {
		calls++
		return sentinel
	})

	require.Error(t, err)
	assert.Equal(t, 4, calls)
	assert.True(t, apperrors.Is(err, apperrors.CodeTransientExhausted))
	assert.ErrorIs(t, err, sentinel)
}

func TestExecuteStopsOnMarkedPermanent(t *testing.T) {
	policy := retry.NewPolicy(fastConfig(5), log.Nop())

	sentinel := errors.New("bad input")
	calls := 0
	err := policy.Execute(context.Background(), "op", func(ctx context.Context) error {
		calls++
		return retry.Permanent(sentinel)
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls, "a permanent error must not be retried")
	assert.True(t, apperrors.Is(err, apperrors.CodePermanent))
	assert.ErrorIs(t, err, sentinel)
}

func TestExecuteStopsOnClassifierPermanent(t *testing.T) {
	sentinel := errors.New("validation failed")
	classifier := func(err error) retry.Class {
		if errors.Is(err, sentinel) {
			return retry.ClassPermanent
		}
		return retry.ClassTransient
	}
	policy := retry.NewPolicy(fastConfig(5), log.Nop(), retry.WithClassifier(classifier))

	calls := 0
	err := policy.Execute(context.Background(), "op", func(ctx context.Context) error {
		calls++
		return sentinel
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, apperrors.Is(err, apperrors.CodePermanent))
}

func TestExecuteObservesCancellationBeforeAttempt(t *testing.T) {
	policy := retry.NewPolicy(fastConfig(5), log.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := policy.Execute(ctx, "op", func(ctx context.Context) error {
		t.Fatal("op must not run on a cancelled context")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExecuteObservesCancellationDuringBackoff(t *testing.T) {
	policy := retry.NewPolicy(retry.Config{
		MinDelay:    200 * time.Millisecond,
		MaxDelay:    400 * time.Millisecond,
		MaxAttempts: 5,
	}, log.Nop())

	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	start := time.Now()
	err := policy.Execute(ctx, "op", func(ctx context.Context) error {
		calls++
		cancel()
		return errors.New("transient")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), 200*time.Millisecond,
		"cancellation must interrupt the backoff sleep")
}

func TestExecuteDelaysStayWithinConfiguredBounds(t *testing.T) {
	cfg := retry.Config{
		MinDelay:    10 * time.Millisecond,
		MaxDelay:    20 * time.Millisecond,
		MaxAttempts: 4,
	}
	policy := retry.NewPolicy(cfg, log.Nop(), retry.WithRand(rand.New(rand.NewSource(42))))

	var stamps []time.Time
	err := policy.Execute(context.Background(), "op", func(ctx context.Context) error {
		stamps = append(stamps, time.Now())
		return errors.New("transient")
	})
	require.Error(t, err)
	require.Len(t, stamps, 4)

	for i := 1; i < len(stamps); i++ {
		gap := stamps[i].Sub(stamps[i-1])
		assert.GreaterOrEqual(t, gap, cfg.MinDelay, "delay %d below minimum", i)
		// Generous upper bound; timers fire late under load but never early.
		assert.Less(t, gap, 10*cfg.MaxDelay, "delay %d far above maximum", i)
	}
}

func TestNewPolicyFillsDefaults(t *testing.T) {
	policy := retry.NewPolicy(retry.Config{}, log.Nop())

	cfg := policy.Config()
	assert.Equal(t, retry.DefaultConfig().MaxAttempts, cfg.MaxAttempts)
	assert.Equal(t, retry.DefaultConfig().MinDelay, cfg.MinDelay)
	assert.GreaterOrEqual(t, cfg.MaxDelay, cfg.MinDelay)
}
