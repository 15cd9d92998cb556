package steps

import (
	"context"
	"strconv"

	"github.com/olusolaa/bedrock-kb-provisioner/internal/adapters/platform/aws/aoss"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/core/domain"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/core/ports"
	apperrors "github.com/olusolaa/bedrock-kb-provisioner/internal/errors"
)

// VectorIndex provisions the k-NN index inside the collection. There is no
// control-plane API for indexes, so the adapter talks to the collection's
// data-plane endpoint with SigV4-signed HTTP.
type VectorIndex struct {
	index       *aoss.IndexClient
	name        string
	vectorField string
	dimension   int

	// endpoint is resolved from the vector-collection outputs during Probe
	// or Create; a step runs on a single goroutine so plain assignment is
	// fine.
	endpoint string
}

func NewVectorIndex(client *aoss.IndexClient, name, vectorField string, dimension int) *VectorIndex {
	return &VectorIndex{
		index:       client,
		name:        name,
		vectorField: vectorField,
		dimension:   dimension,
	}
}

func (s *VectorIndex) Name() string        { return domain.StepVectorIndex }
func (s *VectorIndex) DependsOn() []string { return []string{domain.StepVectorCollection} }

func (s *VectorIndex) outputs() domain.Outputs {
	return domain.Outputs{
		domain.KeyIndexName:          s.name,
		domain.KeyVectorField:        s.vectorField,
		domain.KeyEmbeddingDimension: strconv.Itoa(s.dimension),
	}
}

func (s *VectorIndex) Probe(ctx context.Context, in domain.Inputs) (ports.ResourceRef, bool, error) {
	if err := s.resolveEndpoint(in); err != nil {
		return ports.ResourceRef{}, false, err
	}
	exists, err := s.index.IndexExists(ctx, s.endpoint, s.name)
	if err != nil || !exists {
		return ports.ResourceRef{}, false, err
	}
	return ports.ResourceRef{ID: s.name, Seed: s.outputs()}, true, nil
}

func (s *VectorIndex) Create(ctx context.Context, in domain.Inputs) (ports.ResourceRef, error) {
	if err := s.resolveEndpoint(in); err != nil {
		return ports.ResourceRef{}, err
	}
	if err := s.index.CreateIndex(ctx, s.endpoint, s.name, s.vectorField, s.dimension); err != nil {
		return ports.ResourceRef{}, err
	}
	return ports.ResourceRef{ID: s.name, Seed: s.outputs()}, nil
}

func (s *VectorIndex) Describe(ctx context.Context, ref ports.ResourceRef) (domain.StatusSnapshot, error) {
	exists, err := s.index.IndexExists(ctx, s.endpoint, ref.ID)
	if err != nil {
		return domain.StatusSnapshot{}, err
	}
	if !exists {
		// A fresh index can take a moment to show up on the search path.
		return domain.StatusSnapshot{
			Status: domain.StatusCreating,
			Detail: "index not searchable yet",
		}, nil
	}
	return domain.StatusSnapshot{
		Status:  domain.StatusActive,
		Detail:  "index exists",
		Outputs: s.outputs(),
	}, nil
}

func (s *VectorIndex) resolveEndpoint(in domain.Inputs) error {
	endpoint, ok := in.Lookup(domain.StepVectorCollection, domain.KeyCollectionEndpoint)
	if !ok || endpoint == "" {
		return apperrors.Newf(apperrors.CodeUnresolvedDependency,
			"%s output %s missing from inputs", domain.StepVectorCollection, domain.KeyCollectionEndpoint)
	}
	s.endpoint = endpoint
	return nil
}
