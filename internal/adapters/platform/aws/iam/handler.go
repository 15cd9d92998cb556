package iam

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsiam "github.com/aws/aws-sdk-go-v2/service/iam"

	aws_errors "github.com/olusolaa/bedrock-kb-provisioner/internal/adapters/platform/aws/errors"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/adapters/platform/aws/shared"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/core/ports"
	apperrors "github.com/olusolaa/bedrock-kb-provisioner/internal/errors"
)

const serviceName = "iam"

// IAMClientInterface is the slice of the SDK IAM client the handler needs.
type IAMClientInterface interface {
	CreateRole(ctx context.Context, params *awsiam.CreateRoleInput, optFns ...func(*awsiam.Options)) (*awsiam.CreateRoleOutput, error)
	GetRole(ctx context.Context, params *awsiam.GetRoleInput, optFns ...func(*awsiam.Options)) (*awsiam.GetRoleOutput, error)
	PutRolePolicy(ctx context.Context, params *awsiam.PutRolePolicyInput, optFns ...func(*awsiam.Options)) (*awsiam.PutRolePolicyOutput, error)
	GetRolePolicy(ctx context.Context, params *awsiam.GetRolePolicyInput, optFns ...func(*awsiam.Options)) (*awsiam.GetRolePolicyOutput, error)
}

// RoleInfo carries the identifiers the pipeline records for a role.
type RoleInfo struct {
	Name string
	ARN  string
}

type Handler struct {
	client       IAMClientInterface
	limiter      shared.RateLimiter
	errorHandler shared.ErrorHandler
	logger       ports.Logger
}

type HandlerOption func(*Handler)

func WithClient(client IAMClientInterface) HandlerOption {
	return func(h *Handler) {
		if client != nil {
			h.client = client
		}
	}
}

func WithRateLimiter(limiter shared.RateLimiter) HandlerOption {
	return func(h *Handler) {
		if limiter != nil {
			h.limiter = limiter
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
		client:       awsiam.NewFromConfig(cfg),
		limiter:      limiter,
		errorHandler: &aws_errors.DefaultErrorHandler{},
		logger:       logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// GetRole probes for an existing role. Absence is not an error.
func (h *Handler) GetRole(ctx context.Context, name string) (RoleInfo, bool, error) {
	if err := h.limiter.Wait(ctx); err != nil {
		return RoleInfo{}, false, err
	}

	out, err := h.client.GetRole(ctx, &awsiam.GetRoleInput{RoleName: aws.String(name)})
	if err != nil {
		handled := h.errorHandler.Handle(serviceName, "GetRole", err, ctx)
		if apperrors.Is(handled, apperrors.CodeResourceNotFound) {
			return RoleInfo{}, false, nil
		}
		return RoleInfo{}, false, handled
	}

	return RoleInfo{
		Name: aws.ToString(out.Role.RoleName),
		ARN:  aws.ToString(out.Role.Arn),
	}, true, nil
}

// CreateExecutionRole creates the knowledge-base execution role with the
// Bedrock trust policy attached.
func (h *Handler) CreateExecutionRole(ctx context.Context, name string) (RoleInfo, error) {
	trust, err := BedrockTrustPolicy()
	if err != nil {
		return RoleInfo{}, err
	}

	if err := h.limiter.Wait(ctx); err != nil {
		return RoleInfo{}, err
	}

	out, err := h.client.CreateRole(ctx, &awsiam.CreateRoleInput{
		RoleName:                 aws.String(name),
		AssumeRolePolicyDocument: aws.String(trust),
		Description:              aws.String("Execution role for Bedrock knowledge base ingestion"),
	})
	if err != nil {
		return RoleInfo{}, h.errorHandler.Handle(serviceName, "CreateRole", err, ctx)
	}

	h.logger.Debugf(ctx, "Created IAM role %s", name)
	return RoleInfo{
		Name: aws.ToString(out.Role.RoleName),
		ARN:  aws.ToString(out.Role.Arn),
	}, nil
}

// HasRolePolicy probes for an inline policy on the role.
func (h *Handler) HasRolePolicy(ctx context.Context, roleName, policyName string) (bool, error) {
	if err := h.limiter.Wait(ctx); err != nil {
		return false, err
	}

	_, err := h.client.GetRolePolicy(ctx, &awsiam.GetRolePolicyInput{
		RoleName:   aws.String(roleName),
		PolicyName: aws.String(policyName),
	})
	if err != nil {
		handled := h.errorHandler.Handle(serviceName, "GetRolePolicy", err, ctx)
		if apperrors.Is(handled, apperrors.CodeResourceNotFound) {
			return false, nil
		}
		return false, handled
	}
	return true, nil
}

// PutRolePolicy attaches an inline policy document to the role. The call is
// idempotent on the IAM side, but the pipeline still probes first so a
// rerun is observable as a skip rather than a rewrite.
func (h *Handler) PutRolePolicy(ctx context.Context, roleName, policyName, document string) error {
	if err := h.limiter.Wait(ctx); err != nil {
		return err
	}

	_, err := h.client.PutRolePolicy(ctx, &awsiam.PutRolePolicyInput{
		RoleName:       aws.String(roleName),
		PolicyName:     aws.String(policyName),
		PolicyDocument: aws.String(document),
	})
	if err != nil {
		return h.errorHandler.Handle(serviceName, "PutRolePolicy", err, ctx)
	}

	h.logger.Debugf(ctx, "Put inline policy %s on role %s", policyName, roleName)
	return nil
}
