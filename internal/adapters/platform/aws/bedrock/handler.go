// Package bedrock wraps the Bedrock Agent control plane for knowledge bases
// and their data sources.
package bedrock

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	agent "github.com/aws/aws-sdk-go-v2/service/bedrockagent"
	agenttypes "github.com/aws/aws-sdk-go-v2/service/bedrockagent/types"

	aws_errors "github.com/olusolaa/bedrock-kb-provisioner/internal/adapters/platform/aws/errors"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/adapters/platform/aws/shared"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/core/domain"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/core/ports"
)

const serviceName = "bedrock-agent"

// AgentClientInterface is the slice of the SDK Bedrock Agent client the
// handler needs.
type AgentClientInterface interface {
	CreateKnowledgeBase(ctx context.Context, params *agent.CreateKnowledgeBaseInput, optFns ...func(*agent.Options)) (*agent.CreateKnowledgeBaseOutput, error)
	GetKnowledgeBase(ctx context.Context, params *agent.GetKnowledgeBaseInput, optFns ...func(*agent.Options)) (*agent.GetKnowledgeBaseOutput, error)
	ListKnowledgeBases(ctx context.Context, params *agent.ListKnowledgeBasesInput, optFns ...func(*agent.Options)) (*agent.ListKnowledgeBasesOutput, error)
	CreateDataSource(ctx context.Context, params *agent.CreateDataSourceInput, optFns ...func(*agent.Options)) (*agent.CreateDataSourceOutput, error)
	GetDataSource(ctx context.Context, params *agent.GetDataSourceInput, optFns ...func(*agent.Options)) (*agent.GetDataSourceOutput, error)
	ListDataSources(ctx context.Context, params *agent.ListDataSourcesInput, optFns ...func(*agent.Options)) (*agent.ListDataSourcesOutput, error)
}

type KnowledgeBaseInfo struct {
	ID   string
	ARN  string
	Name string
}

type DataSourceInfo struct {
	ID   string
	Name string
}

// VectorStoreBinding describes the OpenSearch Serverless backing of a
// knowledge base.
type VectorStoreBinding struct {
	CollectionARN string
	IndexName     string
	VectorField   string
}

type Handler struct {
	client       AgentClientInterface
	limiter      shared.RateLimiter
	errorHandler shared.ErrorHandler
	logger       ports.Logger
}

type HandlerOption func(*Handler)

func WithClient(client AgentClientInterface) HandlerOption {
	return func(h *Handler) {
		if client != nil {
			h.client = client
		}
	}
}

func WithErrorHandler(handler shared.ErrorHandler) HandlerOption {
	return func(h *Handler) {
		if handler != nil {
			h.errorHandler = handler
		}
	}
}

func NewHandler(cfg aws.Config, limiter shared.RateLimiter, logger ports.Logger, opts ...HandlerOption) *Handler {
	h := &Handler{
		client:       agent.NewFromConfig(cfg),
		limiter:      limiter,
		errorHandler: &aws_errors.DefaultErrorHandler{},
		logger:       logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// FindKnowledgeBaseByName probes for an existing knowledge base. Names are
// not unique server-side, so the first match wins; the tool always derives
// names from its own config, which keeps them effectively unique.
func (h *Handler) FindKnowledgeBaseByName(ctx context.Context, name string) (KnowledgeBaseInfo, bool, error) {
	var token *string
	for {
		if err := h.limiter.Wait(ctx); err != nil {
			return KnowledgeBaseInfo{}, false, err
		}

		out, err := h.client.ListKnowledgeBases(ctx, &agent.ListKnowledgeBasesInput{
			NextToken: token,
		})
		if err != nil {
			return KnowledgeBaseInfo{}, false, h.errorHandler.Handle(serviceName, "ListKnowledgeBases", err, ctx)
		}

		for _, summary := range out.KnowledgeBaseSummaries {
			if aws.ToString(summary.Name) == name {
				// The summary has no ARN; fetch the full record.
				info, _, err := h.getKnowledgeBase(ctx, aws.ToString(summary.KnowledgeBaseId))
				if err != nil {
					return KnowledgeBaseInfo{}, false, err
				}
				return info, true, nil
			}
		}

		if out.NextToken == nil {
			return KnowledgeBaseInfo{}, false, nil
		}
		token = out.NextToken
	}
}

// CreateKnowledgeBase pairs the embedding model with the vector store.
func (h *Handler) CreateKnowledgeBase(ctx context.Context, name, roleARN, embeddingModelARN string, binding VectorStoreBinding) (KnowledgeBaseInfo, error) {
	if err := h.limiter.Wait(ctx); err != nil {
		return KnowledgeBaseInfo{}, err
	}

	out, err := h.client.CreateKnowledgeBase(ctx, &agent.CreateKnowledgeBaseInput{
		Name:    aws.String(name),
		RoleArn: aws.String(roleARN),
		KnowledgeBaseConfiguration: &agenttypes.KnowledgeBaseConfiguration{
			Type: agenttypes.KnowledgeBaseTypeVector,
			VectorKnowledgeBaseConfiguration: &agenttypes.VectorKnowledgeBaseConfiguration{
				EmbeddingModelArn: aws.String(embeddingModelARN),
			},
		},
		StorageConfiguration: &agenttypes.StorageConfiguration{
			Type: agenttypes.KnowledgeBaseStorageTypeOpensearchServerless,
			OpensearchServerlessConfiguration: &agenttypes.OpenSearchServerlessConfiguration{
				CollectionArn:   aws.String(binding.CollectionARN),
				VectorIndexName: aws.String(binding.IndexName),
				FieldMapping: &agenttypes.OpenSearchServerlessFieldMapping{
					VectorField:   aws.String(binding.VectorField),
					TextField:     aws.String("AMAZON_BEDROCK_TEXT_CHUNK"),
					MetadataField: aws.String("AMAZON_BEDROCK_METADATA"),
				},
			},
		},
	})
	if err != nil {
		return KnowledgeBaseInfo{}, h.errorHandler.Handle(serviceName, "CreateKnowledgeBase", err, ctx)
	}

	kb := out.KnowledgeBase
	h.logger.Debugf(ctx, "Created knowledge base %s (id %s)", name, aws.ToString(kb.KnowledgeBaseId))
	return KnowledgeBaseInfo{
		ID:   aws.ToString(kb.KnowledgeBaseId),
		ARN:  aws.ToString(kb.KnowledgeBaseArn),
		Name: aws.ToString(kb.Name),
	}, nil
}

// DescribeKnowledgeBase maps the knowledge base's vendor status into a
// snapshot, carrying failure reasons for diagnostics.
func (h *Handler) DescribeKnowledgeBase(ctx context.Context, id string) (domain.StatusSnapshot, error) {
	info, kb, err := h.getKnowledgeBase(ctx, id)
	if err != nil {
		return domain.StatusSnapshot{}, err
	}

	detail := string(kb.Status)
	if len(kb.FailureReasons) > 0 {
		detail += ": " + strings.Join(kb.FailureReasons, "; ")
	}

	snap := domain.StatusSnapshot{
		Status: mapKnowledgeBaseStatus(kb.Status),
		Detail: detail,
	}
	if snap.Status == domain.StatusActive {
		snap.Outputs = domain.Outputs{
			domain.KeyKnowledgeBaseID:  info.ID,
			domain.KeyKnowledgeBaseARN: info.ARN,
		}
	}
	return snap, nil
}

func (h *Handler) getKnowledgeBase(ctx context.Context, id string) (KnowledgeBaseInfo, *agenttypes.KnowledgeBase, error) {
	if err := h.limiter.Wait(ctx); err != nil {
		return KnowledgeBaseInfo{}, nil, err
	}

	out, err := h.client.GetKnowledgeBase(ctx, &agent.GetKnowledgeBaseInput{
		KnowledgeBaseId: aws.String(id),
	})
	if err != nil {
		return KnowledgeBaseInfo{}, nil, h.errorHandler.Handle(serviceName, "GetKnowledgeBase", err, ctx)
	}

	kb := out.KnowledgeBase
	return KnowledgeBaseInfo{
		ID:   aws.ToString(kb.KnowledgeBaseId),
		ARN:  aws.ToString(kb.KnowledgeBaseArn),
		Name: aws.ToString(kb.Name),
	}, kb, nil
}

// FindDataSourceByName probes for an existing data source on the knowledge
// base.
func (h *Handler) FindDataSourceByName(ctx context.Context, knowledgeBaseID, name string) (DataSourceInfo, bool, error) {
	var token *string
	for {
		if err := h.limiter.Wait(ctx); err != nil {
			return DataSourceInfo{}, false, err
		}

		out, err := h.client.ListDataSources(ctx, &agent.ListDataSourcesInput{
			KnowledgeBaseId: aws.String(knowledgeBaseID),
			NextToken:       token,
		})
		if err != nil {
			return DataSourceInfo{}, false, h.errorHandler.Handle(serviceName, "ListDataSources", err, ctx)
		}

		for _, summary := range out.DataSourceSummaries {
			if aws.ToString(summary.Name) == name {
				return DataSourceInfo{
					ID:   aws.ToString(summary.DataSourceId),
					Name: aws.ToString(summary.Name),
				}, true, nil
			}
		}

		if out.NextToken == nil {
			return DataSourceInfo{}, false, nil
		}
		token = out.NextToken
	}
}

// CreateDataSource attaches an S3 bucket to the knowledge base.
func (h *Handler) CreateDataSource(ctx context.Context, knowledgeBaseID, name, bucketARN string) (DataSourceInfo, error) {
	if err := h.limiter.Wait(ctx); err != nil {
		return DataSourceInfo{}, err
	}

	out, err := h.client.CreateDataSource(ctx, &agent.CreateDataSourceInput{
		KnowledgeBaseId: aws.String(knowledgeBaseID),
		Name:            aws.String(name),
		DataSourceConfiguration: &agenttypes.DataSourceConfiguration{
			Type: agenttypes.DataSourceTypeS3,
			S3Configuration: &agenttypes.S3DataSourceConfiguration{
				BucketArn: aws.String(bucketARN),
			},
		},
	})
	if err != nil {
		return DataSourceInfo{}, h.errorHandler.Handle(serviceName, "CreateDataSource", err, ctx)
	}

	ds := out.DataSource
	h.logger.Debugf(ctx, "Created data source %s (id %s)", name, aws.ToString(ds.DataSourceId))
	return DataSourceInfo{
		ID:   aws.ToString(ds.DataSourceId),
		Name: aws.ToString(ds.Name),
	}, nil
}

// DescribeDataSource maps the data source's vendor status into a snapshot.
func (h *Handler) DescribeDataSource(ctx context.Context, knowledgeBaseID, dataSourceID string) (domain.StatusSnapshot, error) {
	if err := h.limiter.Wait(ctx); err != nil {
		return domain.StatusSnapshot{}, err
	}

	out, err := h.client.GetDataSource(ctx, &agent.GetDataSourceInput{
		KnowledgeBaseId: aws.String(knowledgeBaseID),
		DataSourceId:    aws.String(dataSourceID),
	})
	if err != nil {
		return domain.StatusSnapshot{}, h.errorHandler.Handle(serviceName, "GetDataSource", err, ctx)
	}

	ds := out.DataSource
	snap := domain.StatusSnapshot{
		Status: mapDataSourceStatus(ds.Status),
		Detail: string(ds.Status),
	}
	if snap.Status == domain.StatusActive {
		snap.Outputs = domain.Outputs{
			domain.KeyDataSourceID: aws.ToString(ds.DataSourceId),
		}
	}
	return snap, nil
}

func mapKnowledgeBaseStatus(status agenttypes.KnowledgeBaseStatus) domain.ResourceStatus {
	switch status {
	case agenttypes.KnowledgeBaseStatusActive:
		return domain.StatusActive
	case agenttypes.KnowledgeBaseStatusCreating, agenttypes.KnowledgeBaseStatusUpdating:
		return domain.StatusCreating
	case agenttypes.KnowledgeBaseStatusFailed, agenttypes.KnowledgeBaseStatusDeleting, agenttypes.KnowledgeBaseStatusDeleteUnsuccessful:
		return domain.StatusFailed
	default:
		return domain.StatusUnknown
	}
}

func mapDataSourceStatus(status agenttypes.DataSourceStatus) domain.ResourceStatus {
	switch status {
	case agenttypes.DataSourceStatusAvailable:
		return domain.StatusActive
	case agenttypes.DataSourceStatusDeleting, agenttypes.DataSourceStatusDeleteUnsuccessful:
		return domain.StatusFailed
	default:
		return domain.StatusUnknown
	}
}
