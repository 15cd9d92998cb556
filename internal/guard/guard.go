// Package guard makes resource creation safe to re-run. A probe decides
// whether the named resource already exists before the creation primitive is
// allowed to fire, so a rerun after a partial failure adopts what the
// previous run left behind instead of duplicating it.
package guard

import (
	"context"

	"github.com/olusolaa/bedrock-kb-provisioner/internal/core/ports"
	apperrors "github.com/olusolaa/bedrock-kb-provisioner/internal/errors"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/retry"
)

type Guard struct {
	retry  *retry.Policy
	logger ports.Logger
}

func New(policy *retry.Policy, logger ports.Logger) *Guard {
	return &Guard{retry: policy, logger: logger}
}

// EnsureExists returns the identifiers of the resource named by key. The
// probe is retried through the retry policy (probes are cheap and hit the
// same eventually-consistent backends as everything else); when it reports
// absence, create is called exactly once — creation is never a retry target,
// duplicate resources being worse than a failed run.
//
// The returned bool reports whether an existing resource was adopted.
func (g *Guard) EnsureExists(
	ctx context.Context,
	key string,
	probe func(ctx context.Context) (ports.ResourceRef, bool, error),
	create func(ctx context.Context) (ports.ResourceRef, error),
) (ports.ResourceRef, bool, error) {
	var (
		ref    ports.ResourceRef
		exists bool
	)

	err := g.retry.Execute(ctx, "probe "+key, func(ctx context.Context) error {
		var probeErr error
		ref, exists, probeErr = probe(ctx)
		return probeErr
	})
	if err != nil {
		return ports.ResourceRef{}, false, apperrors.Wrapf(err,
			apperrors.CodePlatformAPIError, "could not determine whether %s exists", key)
	}

	if exists {
		g.logger.Infof(ctx, "%s already exists (id %s), skipping creation", key, ref.ID)
		return ref, true, nil
	}

	g.logger.Infof(ctx, "%s does not exist, creating", key)
	ref, err = create(ctx)
	if err != nil {
		return ports.ResourceRef{}, false, err
	}
	return ref, false, nil
}
