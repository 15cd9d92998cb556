package steps

import (
	"context"

	"github.com/olusolaa/bedrock-kb-provisioner/internal/adapters/platform/aws/aoss"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/core/domain"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/core/ports"
)

// VectorCollection provisions the OpenSearch Serverless VECTORSEARCH
// collection backing the knowledge base. Collection creation is the slow
// resource in the chain (several minutes is normal), so this is the step the
// readiness poller exists for.
type VectorCollection struct {
	aoss *aoss.Handler
	name string
}

func NewVectorCollection(handler *aoss.Handler, name string) *VectorCollection {
	return &VectorCollection{aoss: handler, name: name}
}

func (s *VectorCollection) Name() string        { return domain.StepVectorCollection }
func (s *VectorCollection) DependsOn() []string { return []string{domain.StepRolePolicies} }

func (s *VectorCollection) Probe(ctx context.Context, _ domain.Inputs) (ports.ResourceRef, bool, error) {
	info, found, err := s.aoss.GetCollectionByName(ctx, s.name)
	if err != nil || !found {
		return ports.ResourceRef{}, false, err
	}
	return collectionRef(info), true, nil
}

func (s *VectorCollection) Create(ctx context.Context, _ domain.Inputs) (ports.ResourceRef, error) {
	info, err := s.aoss.CreateCollection(ctx, s.name)
	if err != nil {
		return ports.ResourceRef{}, err
	}
	return collectionRef(info), nil
}

func (s *VectorCollection) Describe(ctx context.Context, ref ports.ResourceRef) (domain.StatusSnapshot, error) {
	return s.aoss.DescribeCollection(ctx, ref.ID)
}

func collectionRef(info aoss.CollectionInfo) ports.ResourceRef {
	seed := domain.Outputs{
		domain.KeyCollectionID:  info.ID,
		domain.KeyCollectionARN: info.ARN,
	}
	// The endpoint is empty until the collection turns ACTIVE; the final
	// describe snapshot supplies it then.
	if info.Endpoint != "" {
		seed[domain.KeyCollectionEndpoint] = info.Endpoint
	}
	return ports.ResourceRef{ID: info.ID, Seed: seed}
}
