package steps

import (
	"context"

	"github.com/olusolaa/bedrock-kb-provisioner/internal/adapters/platform/aws/bedrock"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/core/domain"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/core/ports"
	apperrors "github.com/olusolaa/bedrock-kb-provisioner/internal/errors"
)

// KnowledgeBase provisions the Bedrock knowledge base that pairs the
// embedding model with the vector store.
type KnowledgeBase struct {
	bedrock           *bedrock.Handler
	name              string
	embeddingModelARN string
	vectorField       string
}

func NewKnowledgeBase(handler *bedrock.Handler, name, embeddingModelARN, vectorField string) *KnowledgeBase {
	return &KnowledgeBase{
		bedrock:           handler,
		name:              name,
		embeddingModelARN: embeddingModelARN,
		vectorField:       vectorField,
	}
}

func (s *KnowledgeBase) Name() string { return domain.StepKnowledgeBase }

func (s *KnowledgeBase) DependsOn() []string {
	// vector-collection is declared even though vector-index implies it:
	// the binding needs the collection ARN from its outputs.
	return []string{domain.StepExecutionRole, domain.StepVectorCollection, domain.StepVectorIndex}
}

func (s *KnowledgeBase) Probe(ctx context.Context, _ domain.Inputs) (ports.ResourceRef, bool, error) {
	info, found, err := s.bedrock.FindKnowledgeBaseByName(ctx, s.name)
	if err != nil || !found {
		return ports.ResourceRef{}, false, err
	}
	return knowledgeBaseRef(info), true, nil
}

func (s *KnowledgeBase) Create(ctx context.Context, in domain.Inputs) (ports.ResourceRef, error) {
	roleARN, ok := in.Lookup(domain.StepExecutionRole, domain.KeyRoleARN)
	if !ok {
		return ports.ResourceRef{}, apperrors.Newf(apperrors.CodeUnresolvedDependency,
			"%s output %s missing from inputs", domain.StepExecutionRole, domain.KeyRoleARN)
	}
	collectionARN, ok := in.Lookup(domain.StepVectorCollection, domain.KeyCollectionARN)
	if !ok {
		return ports.ResourceRef{}, apperrors.Newf(apperrors.CodeUnresolvedDependency,
			"%s output %s missing from inputs", domain.StepVectorCollection, domain.KeyCollectionARN)
	}
	indexName, ok := in.Lookup(domain.StepVectorIndex, domain.KeyIndexName)
	if !ok {
		return ports.ResourceRef{}, apperrors.Newf(apperrors.CodeUnresolvedDependency,
			"%s output %s missing from inputs", domain.StepVectorIndex, domain.KeyIndexName)
	}

	info, err := s.bedrock.CreateKnowledgeBase(ctx, s.name, roleARN, s.embeddingModelARN,
		bedrock.VectorStoreBinding{
			CollectionARN: collectionARN,
			IndexName:     indexName,
			VectorField:   s.vectorField,
		})
	if err != nil {
		return ports.ResourceRef{}, err
	}
	return knowledgeBaseRef(info), nil
}

func (s *KnowledgeBase) Describe(ctx context.Context, ref ports.ResourceRef) (domain.StatusSnapshot, error) {
	return s.bedrock.DescribeKnowledgeBase(ctx, ref.ID)
}

func knowledgeBaseRef(info bedrock.KnowledgeBaseInfo) ports.ResourceRef {
	return ports.ResourceRef{
		ID: info.ID,
		Seed: domain.Outputs{
			domain.KeyKnowledgeBaseID:  info.ID,
			domain.KeyKnowledgeBaseARN: info.ARN,
		},
	}
}
