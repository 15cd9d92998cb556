package ports

import (
	"context"

	"github.com/olusolaa/bedrock-kb-provisioner/internal/core/domain"
)

type Reporter interface {
	// Report renders the outcome of a provisioning run.
	Report(ctx context.Context, result *domain.RunResult) error
	// ReportInspection renders the live state of previously provisioned
	// resources, as produced by the status and verify commands.
	ReportInspection(ctx context.Context, rows []domain.StepInspection) error
}
