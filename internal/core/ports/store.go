package ports

import (
	"context"

	"github.com/olusolaa/bedrock-kb-provisioner/internal/core/domain"
)

// RecordStore persists the provisioning record for downstream retrieval
// tooling. Save is called incrementally after each step completes, so a
// partially successful run still leaves a usable record behind.
type RecordStore interface {
	Type() string
	Save(ctx context.Context, record *domain.Record) error
	Load(ctx context.Context) (map[string]domain.Outputs, error)
}
