package ports

import (
	"context"

	"github.com/olusolaa/bedrock-kb-provisioner/internal/core/domain"
)

type ProvisioningPipeline interface {
	// Run executes all steps in dependency order. The returned RunResult is
	// non-nil even on error so partial progress can be reported.
	Run(ctx context.Context) (*domain.RunResult, error)
}
