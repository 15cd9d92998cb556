package ports

import (
	"context"

	"github.com/olusolaa/bedrock-kb-provisioner/internal/core/domain"
)

// ResourceRef identifies a created or adopted resource between the creation
// and polling phases of a step.
type ResourceRef struct {
	// ID is the primary identifier passed back to Describe.
	ID string
	// Seed holds identifiers already known at creation time (ARNs, names).
	// The pipeline merges these with the outputs read from the final ready
	// snapshot.
	Seed domain.Outputs
}

// Step is one unit of the provisioning pipeline: a single resource type with
// its creation call, status probe, and declared dependency inputs.
//
// Probe and Describe must be side-effect free. Create must be safe to call
// exactly once per logical resource; the pipeline never retries it — a rerun
// after failure reaches the existing resource through Probe instead.
//
// Adapters normalize vendor status strings into domain.ResourceStatus, so
// readiness and failure are uniform snapshot predicates rather than
// per-step callbacks.
type Step interface {
	Name() string
	DependsOn() []string

	// Probe reports whether the step's logical resource already exists.
	// On true, the returned ref identifies it and Create is skipped.
	Probe(ctx context.Context, in domain.Inputs) (ResourceRef, bool, error)

	// Create invokes the external creation primitive.
	Create(ctx context.Context, in domain.Inputs) (ResourceRef, error)

	// Describe polls the current status of an already-identified resource.
	Describe(ctx context.Context, ref ResourceRef) (domain.StatusSnapshot, error)
}
