package poll_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olusolaa/bedrock-kb-provisioner/internal/core/domain"
	apperrors "github.com/olusolaa/bedrock-kb-provisioner/internal/errors"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/log"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/poll"
)

func fastPoller(timeout time.Duration) *poll.Poller {
	return poll.NewPoller(poll.Config{Interval: time.Millisecond, Timeout: timeout}, log.Nop())
}

func activeSnap() domain.StatusSnapshot {
	return domain.StatusSnapshot{
		Status:  domain.StatusActive,
		Detail:  "ACTIVE",
		Outputs: domain.Outputs{"collection_endpoint": "https://example.aoss.amazonaws.com"},
	}
}

func creatingSnap() domain.StatusSnapshot {
	return domain.StatusSnapshot{Status: domain.StatusCreating, Detail: "CREATING"}
}

func TestAwaitReadyImmediatelyActive(t *testing.T) {
	p := fastPoller(time.Second)

	calls := 0
	snap, err := p.AwaitReady(context.Background(), "collection", func(ctx context.Context) (domain.StatusSnapshot, error) {
		calls++
		return activeSnap(), nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, snap.Ready())
	assert.Equal(t, "https://example.aoss.amazonaws.com", snap.Outputs["collection_endpoint"])
}

func TestAwaitReadyPollsUntilActive(t *testing.T) {
	p := fastPoller(time.Second)

	calls := 0
	snap, err := p.AwaitReady(context.Background(), "collection", func(ctx context.Context) (domain.StatusSnapshot, error) {
		calls++
		if calls < 4 {
			return creatingSnap(), nil
		}
		return activeSnap(), nil
	})

	require.NoError(t, err)
	assert.Equal(t, 4, calls)
	assert.True(t, snap.Ready())
}

func TestAwaitReadyFailureStateIsTerminal(t *testing.T) {
	p := fastPoller(time.Second)

	calls := 0
	_, err := p.AwaitReady(context.Background(), "collection", func(ctx context.Context) (domain.StatusSnapshot, error) {
		calls++
		return domain.StatusSnapshot{Status: domain.StatusFailed, Detail: "FAILED: internal error"}, nil
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls, "a failed resource must not be polled again")
	assert.True(t, apperrors.Is(err, apperrors.CodeResourceFailed))
	assert.Contains(t, err.Error(), "FAILED: internal error")
}

func TestAwaitReadyToleratesNotFoundAfterCreation(t *testing.T) {
	p := fastPoller(time.Second)

	calls := 0
	snap, err := p.AwaitReady(context.Background(), "role", func(ctx context.Context) (domain.StatusSnapshot, error) {
		calls++
		if calls < 3 {
			return domain.StatusSnapshot{}, apperrors.New(apperrors.CodeResourceNotFound, "not visible yet")
		}
		return activeSnap(), nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, snap.Ready())
}

func TestAwaitReadyTimesOut(t *testing.T) {
	p := poll.NewPoller(poll.Config{Interval: 5 * time.Millisecond, Timeout: 25 * time.Millisecond}, log.Nop())

	start := time.Now()
	_, err := p.AwaitReady(context.Background(), "collection", func(ctx context.Context) (domain.StatusSnapshot, error) {
		return creatingSnap(), nil
	})

	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeProvisioningTimeout))
	assert.Contains(t, err.Error(), string(domain.StatusCreating))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestAwaitReadyCancellationIsNotATimeout(t *testing.T) {
	p := poll.NewPoller(poll.Config{Interval: 50 * time.Millisecond, Timeout: time.Minute}, log.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	_, err := p.AwaitReady(ctx, "collection", func(ctx context.Context) (domain.StatusSnapshot, error) {
		cancel()
		return creatingSnap(), nil
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, apperrors.Is(err, apperrors.CodeProvisioningTimeout))
}

func TestAwaitReadySurfacesDescribeErrors(t *testing.T) {
	p := fastPoller(time.Second)

	sentinel := errors.New("access denied")
	calls := 0
	_, err := p.AwaitReady(context.Background(), "collection", func(ctx context.Context) (domain.StatusSnapshot, error) {
		calls++
		return domain.StatusSnapshot{}, sentinel
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, sentinel)
}
