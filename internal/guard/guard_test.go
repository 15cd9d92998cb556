package guard_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olusolaa/bedrock-kb-provisioner/internal/core/ports"
	apperrors "github.com/olusolaa/bedrock-kb-provisioner/internal/errors"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/guard"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/log"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/retry"
)

func newGuard(attempts int) *guard.Guard {
	policy := retry.NewPolicy(retry.Config{
		MinDelay:    time.Millisecond,
		MaxDelay:    2 * time.Millisecond,
		MaxAttempts: attempts,
	}, log.Nop())
	return guard.New(policy, log.Nop())
}

func TestEnsureExistsAdoptsExistingResource(t *testing.T) {
	g := newGuard(3)

	createCalls := 0
	ref, adopted, err := g.EnsureExists(context.Background(), "execution-role",
		func(ctx context.Context) (ports.ResourceRef, bool, error) {
			return ports.ResourceRef{ID: "existing-role"}, true, nil
		},
		func(ctx context.Context) (ports.ResourceRef, error) {
			createCalls++
			return ports.ResourceRef{}, nil
		},
	)

	require.NoError(t, err)
	assert.True(t, adopted)
	assert.Equal(t, "existing-role", ref.ID)
	assert.Zero(t, createCalls, "create must not run when the probe finds the resource")
}

func TestEnsureExistsCreatesWhenAbsent(t *testing.T) {
	g := newGuard(3)

	createCalls := 0
	ref, adopted, err := g.EnsureExists(context.Background(), "execution-role",
		func(ctx context.Context) (ports.ResourceRef, bool, error) {
			return ports.ResourceRef{}, false, nil
		},
		func(ctx context.Context) (ports.ResourceRef, error) {
			createCalls++
			return ports.ResourceRef{ID: "new-role"}, nil
		},
	)

	require.NoError(t, err)
	assert.False(t, adopted)
	assert.Equal(t, "new-role", ref.ID)
	assert.Equal(t, 1, createCalls)
}

func TestEnsureExistsRetriesProbe(t *testing.T) {
	g := newGuard(5)

	probeCalls := 0
	_, adopted, err := g.EnsureExists(context.Background(), "collection",
		func(ctx context.Context) (ports.ResourceRef, bool, error) {
			probeCalls++
			if probeCalls < 3 {
				return ports.ResourceRef{}, false, errors.New("throttled")
			}
			return ports.ResourceRef{ID: "col-1"}, true, nil
		},
		func(ctx context.Context) (ports.ResourceRef, error) {
			t.Fatal("create must not run")
			return ports.ResourceRef{}, nil
		},
	)

	require.NoError(t, err)
	assert.True(t, adopted)
	assert.Equal(t, 3, probeCalls)
}

func TestEnsureExistsSurfacesExhaustedProbe(t *testing.T) {
	g := newGuard(2)

	createCalls := 0
	_, _, err := g.EnsureExists(context.Background(), "collection",
		func(ctx context.Context) (ports.ResourceRef, bool, error) {
			return ports.ResourceRef{}, false, errors.New("throttled")
		},
		func(ctx context.Context) (ports.ResourceRef, error) {
			createCalls++
			return ports.ResourceRef{}, nil
		},
	)

	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeTransientExhausted))
	assert.Zero(t, createCalls, "create must not run when existence is unknown")
}

func TestEnsureExistsNeverRetriesCreate(t *testing.T) {
	g := newGuard(5)

	sentinel := errors.New("create blew up")
	createCalls := 0
	_, _, err := g.EnsureExists(context.Background(), "knowledge-base",
		func(ctx context.Context) (ports.ResourceRef, bool, error) {
			return ports.ResourceRef{}, false, nil
		},
		func(ctx context.Context) (ports.ResourceRef, error) {
			createCalls++
			return ports.ResourceRef{}, sentinel
		},
	)

	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, createCalls, "creation is never a retry target")
}
