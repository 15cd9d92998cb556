// Package aoss wraps the OpenSearch Serverless control plane (collections,
// security/access policies) and data plane (index creation) used to back a
// Bedrock knowledge base with a vector search collection.
package aoss

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	oss "github.com/aws/aws-sdk-go-v2/service/opensearchserverless"
	osstypes "github.com/aws/aws-sdk-go-v2/service/opensearchserverless/types"

	aws_errors "github.com/olusolaa/bedrock-kb-provisioner/internal/adapters/platform/aws/errors"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/adapters/platform/aws/shared"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/core/domain"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/core/ports"
	apperrors "github.com/olusolaa/bedrock-kb-provisioner/internal/errors"
)

const serviceName = "aoss"

// AOSSClientInterface is the slice of the SDK OpenSearch Serverless client
// the handler needs.
type AOSSClientInterface interface {
	CreateCollection(ctx context.Context, params *oss.CreateCollectionInput, optFns ...func(*oss.Options)) (*oss.CreateCollectionOutput, error)
	BatchGetCollection(ctx context.Context, params *oss.BatchGetCollectionInput, optFns ...func(*oss.Options)) (*oss.BatchGetCollectionOutput, error)
	CreateSecurityPolicy(ctx context.Context, params *oss.CreateSecurityPolicyInput, optFns ...func(*oss.Options)) (*oss.CreateSecurityPolicyOutput, error)
	GetSecurityPolicy(ctx context.Context, params *oss.GetSecurityPolicyInput, optFns ...func(*oss.Options)) (*oss.GetSecurityPolicyOutput, error)
	CreateAccessPolicy(ctx context.Context, params *oss.CreateAccessPolicyInput, optFns ...func(*oss.Options)) (*oss.CreateAccessPolicyOutput, error)
	GetAccessPolicy(ctx context.Context, params *oss.GetAccessPolicyInput, optFns ...func(*oss.Options)) (*oss.GetAccessPolicyOutput, error)
}

// CollectionInfo carries the identifiers the pipeline records for a
// collection.
type CollectionInfo struct {
	ID       string
	ARN      string
	Name     string
	Endpoint string
}

type Handler struct {
	client       AOSSClientInterface
	limiter      shared.RateLimiter
	errorHandler shared.ErrorHandler
	logger       ports.Logger
}

type HandlerOption func(*Handler)

func WithClient(client AOSSClientInterface) HandlerOption {
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
		client:       oss.NewFromConfig(cfg),
		limiter:      limiter,
		errorHandler: &aws_errors.DefaultErrorHandler{},
		logger:       logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HasSecurityPolicy probes for an encryption or network policy by name.
func (h *Handler) HasSecurityPolicy(ctx context.Context, name string, policyType osstypes.SecurityPolicyType) (bool, error) {
	if err := h.limiter.Wait(ctx); err != nil {
		return false, err
	}

	_, err := h.client.GetSecurityPolicy(ctx, &oss.GetSecurityPolicyInput{
		Name: aws.String(name),
		Type: policyType,
	})
	if err != nil {
		handled := h.errorHandler.Handle(serviceName, "GetSecurityPolicy", err, ctx)
		if apperrors.Is(handled, apperrors.CodeResourceNotFound) {
			return false, nil
		}
		return false, handled
	}
	return true, nil
}

// HasEncryptionPolicy probes for the encryption policy by name.
func (h *Handler) HasEncryptionPolicy(ctx context.Context, name string) (bool, error) {
	return h.HasSecurityPolicy(ctx, name, osstypes.SecurityPolicyTypeEncryption)
}

// HasNetworkPolicy probes for the network policy by name.
func (h *Handler) HasNetworkPolicy(ctx context.Context, name string) (bool, error) {
	return h.HasSecurityPolicy(ctx, name, osstypes.SecurityPolicyTypeNetwork)
}

// CreateEncryptionPolicy creates the AWS-owned-key encryption policy the
// collection requires before it can be created.
func (h *Handler) CreateEncryptionPolicy(ctx context.Context, policyName, collectionName string) error {
	doc, err := EncryptionPolicyDoc(collectionName)
	if err != nil {
		return err
	}
	return h.createSecurityPolicy(ctx, policyName, osstypes.SecurityPolicyTypeEncryption, doc)
}

// CreateNetworkPolicy creates the public-access network policy.
func (h *Handler) CreateNetworkPolicy(ctx context.Context, policyName, collectionName string) error {
	doc, err := NetworkPolicyDoc(collectionName)
	if err != nil {
		return err
	}
	return h.createSecurityPolicy(ctx, policyName, osstypes.SecurityPolicyTypeNetwork, doc)
}

func (h *Handler) createSecurityPolicy(ctx context.Context, name string, policyType osstypes.SecurityPolicyType, doc string) error {
	if err := h.limiter.Wait(ctx); err != nil {
		return err
	}

	_, err := h.client.CreateSecurityPolicy(ctx, &oss.CreateSecurityPolicyInput{
		Name:   aws.String(name),
		Type:   policyType,
		Policy: aws.String(doc),
	})
	if err != nil {
		return h.errorHandler.Handle(serviceName, "CreateSecurityPolicy", err, ctx)
	}

	h.logger.Debugf(ctx, "Created %s security policy %s", policyType, name)
	return nil
}

// HasAccessPolicy probes for a data access policy by name.
func (h *Handler) HasAccessPolicy(ctx context.Context, name string) (bool, error) {
	if err := h.limiter.Wait(ctx); err != nil {
		return false, err
	}

	_, err := h.client.GetAccessPolicy(ctx, &oss.GetAccessPolicyInput{
		Name: aws.String(name),
		Type: osstypes.AccessPolicyTypeData,
	})
	if err != nil {
		handled := h.errorHandler.Handle(serviceName, "GetAccessPolicy", err, ctx)
		if apperrors.Is(handled, apperrors.CodeResourceNotFound) {
			return false, nil
		}
		return false, handled
	}
	return true, nil
}

// CreateDataAccessPolicy grants the given principals data-plane access to
// the collection and its indexes.
func (h *Handler) CreateDataAccessPolicy(ctx context.Context, policyName, collectionName string, principals []string) error {
	doc, err := DataAccessPolicyDoc(collectionName, principals)
	if err != nil {
		return err
	}

	if err := h.limiter.Wait(ctx); err != nil {
		return err
	}

	_, err = h.client.CreateAccessPolicy(ctx, &oss.CreateAccessPolicyInput{
		Name:   aws.String(policyName),
		Type:   osstypes.AccessPolicyTypeData,
		Policy: aws.String(doc),
	})
	if err != nil {
		return h.errorHandler.Handle(serviceName, "CreateAccessPolicy", err, ctx)
	}

	h.logger.Debugf(ctx, "Created data access policy %s", policyName)
	return nil
}

// GetCollectionByName probes for a collection. Absence is not an error.
func (h *Handler) GetCollectionByName(ctx context.Context, name string) (CollectionInfo, bool, error) {
	if err := h.limiter.Wait(ctx); err != nil {
		return CollectionInfo{}, false, err
	}

	out, err := h.client.BatchGetCollection(ctx, &oss.BatchGetCollectionInput{
		Names: []string{name},
	})
	if err != nil {
		return CollectionInfo{}, false, h.errorHandler.Handle(serviceName, "BatchGetCollection", err, ctx)
	}
	if len(out.CollectionDetails) == 0 {
		return CollectionInfo{}, false, nil
	}
	return collectionInfo(out.CollectionDetails[0]), true, nil
}

// CreateCollection creates a VECTORSEARCH collection. The endpoint is not
// known until the collection reaches ACTIVE; Describe fills it in.
func (h *Handler) CreateCollection(ctx context.Context, name string) (CollectionInfo, error) {
	if err := h.limiter.Wait(ctx); err != nil {
		return CollectionInfo{}, err
	}

	out, err := h.client.CreateCollection(ctx, &oss.CreateCollectionInput{
		Name: aws.String(name),
		Type: osstypes.CollectionTypeVectorsearch,
	})
	if err != nil {
		return CollectionInfo{}, h.errorHandler.Handle(serviceName, "CreateCollection", err, ctx)
	}

	detail := out.CreateCollectionDetail
	h.logger.Debugf(ctx, "Created collection %s (id %s)", name, aws.ToString(detail.Id))
	return CollectionInfo{
		ID:   aws.ToString(detail.Id),
		ARN:  aws.ToString(detail.Arn),
		Name: aws.ToString(detail.Name),
	}, nil
}

// DescribeCollection maps the collection's vendor status into a snapshot.
func (h *Handler) DescribeCollection(ctx context.Context, id string) (domain.StatusSnapshot, error) {
	if err := h.limiter.Wait(ctx); err != nil {
		return domain.StatusSnapshot{}, err
	}

	out, err := h.client.BatchGetCollection(ctx, &oss.BatchGetCollectionInput{
		Ids: []string{id},
	})
	if err != nil {
		return domain.StatusSnapshot{}, h.errorHandler.Handle(serviceName, "BatchGetCollection", err, ctx)
	}
	if len(out.CollectionDetails) == 0 {
		return domain.StatusSnapshot{}, apperrors.Newf(apperrors.CodeResourceNotFound,
			"collection %s not found", id)
	}

	detail := out.CollectionDetails[0]
	snap := domain.StatusSnapshot{
		Status: mapCollectionStatus(detail.Status),
		Detail: string(detail.Status),
	}
	if snap.Status == domain.StatusActive {
		info := collectionInfo(detail)
		snap.Outputs = domain.Outputs{
			domain.KeyCollectionID:       info.ID,
			domain.KeyCollectionARN:      info.ARN,
			domain.KeyCollectionEndpoint: info.Endpoint,
		}
	}
	return snap, nil
}

func collectionInfo(detail osstypes.CollectionDetail) CollectionInfo {
	return CollectionInfo{
		ID:       aws.ToString(detail.Id),
		ARN:      aws.ToString(detail.Arn),
		Name:     aws.ToString(detail.Name),
		Endpoint: aws.ToString(detail.CollectionEndpoint),
	}
}

func mapCollectionStatus(status osstypes.CollectionStatus) domain.ResourceStatus {
	switch status {
	case osstypes.CollectionStatusActive:
		return domain.StatusActive
	case osstypes.CollectionStatusCreating:
		return domain.StatusCreating
	case osstypes.CollectionStatusFailed, osstypes.CollectionStatusDeleting:
		return domain.StatusFailed
	default:
		return domain.StatusUnknown
	}
}
