package steps

import (
	"context"

	"github.com/olusolaa/bedrock-kb-provisioner/internal/adapters/platform/aws/bedrock"
	s3adapter "github.com/olusolaa/bedrock-kb-provisioner/internal/adapters/platform/aws/s3"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/core/domain"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/core/ports"
	apperrors "github.com/olusolaa/bedrock-kb-provisioner/internal/errors"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/retry"
)

// DataSource attaches the source document bucket to the knowledge base. The
// bucket itself is a precondition, not a managed resource: if it does not
// exist the step fails without retrying, since no amount of waiting makes a
// bucket appear.
type DataSource struct {
	bedrock *bedrock.Handler
	s3      *s3adapter.Handler
	name    string
	bucket  string

	// knowledgeBaseID is resolved from inputs during Probe or Create and
	// reused by Describe.
	knowledgeBaseID string
}

func NewDataSource(bedrockHandler *bedrock.Handler, s3Handler *s3adapter.Handler, name, bucket string) *DataSource {
	return &DataSource{
		bedrock: bedrockHandler,
		s3:      s3Handler,
		name:    name,
		bucket:  bucket,
	}
}

func (s *DataSource) Name() string        { return domain.StepDataSource }
func (s *DataSource) DependsOn() []string { return []string{domain.StepKnowledgeBase} }

func (s *DataSource) Probe(ctx context.Context, in domain.Inputs) (ports.ResourceRef, bool, error) {
	if err := s.resolveKnowledgeBase(in); err != nil {
		return ports.ResourceRef{}, false, err
	}
	if err := s.checkBucket(ctx); err != nil {
		return ports.ResourceRef{}, false, err
	}

	info, found, err := s.bedrock.FindDataSourceByName(ctx, s.knowledgeBaseID, s.name)
	if err != nil || !found {
		return ports.ResourceRef{}, false, err
	}
	return s.dataSourceRef(info), true, nil
}

func (s *DataSource) Create(ctx context.Context, in domain.Inputs) (ports.ResourceRef, error) {
	if err := s.resolveKnowledgeBase(in); err != nil {
		return ports.ResourceRef{}, err
	}

	info, err := s.bedrock.CreateDataSource(ctx, s.knowledgeBaseID, s.name, s3adapter.BucketARN(s.bucket))
	if err != nil {
		return ports.ResourceRef{}, err
	}
	return s.dataSourceRef(info), nil
}

func (s *DataSource) Describe(ctx context.Context, ref ports.ResourceRef) (domain.StatusSnapshot, error) {
	return s.bedrock.DescribeDataSource(ctx, s.knowledgeBaseID, ref.ID)
}

func (s *DataSource) checkBucket(ctx context.Context) error {
	exists, err := s.s3.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if !exists {
		return retry.Permanent(apperrors.NewUserFacing(apperrors.CodeResourceNotFound,
			"source bucket "+s.bucket+" does not exist",
			"Create the bucket and upload the source documents, or point source.bucket at an existing one"))
	}
	return nil
}

func (s *DataSource) resolveKnowledgeBase(in domain.Inputs) error {
	id, ok := in.Lookup(domain.StepKnowledgeBase, domain.KeyKnowledgeBaseID)
	if !ok {
		return apperrors.Newf(apperrors.CodeUnresolvedDependency,
			"%s output %s missing from inputs", domain.StepKnowledgeBase, domain.KeyKnowledgeBaseID)
	}
	s.knowledgeBaseID = id
	return nil
}

func (s *DataSource) dataSourceRef(info bedrock.DataSourceInfo) ports.ResourceRef {
	return ports.ResourceRef{
		ID: info.ID,
		Seed: domain.Outputs{
			domain.KeyDataSourceID: info.ID,
			domain.KeySourceBucket: s.bucket,
		},
	}
}
