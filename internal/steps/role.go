// Package steps binds the AWS adapters to the pipeline's Step contract: one
// implementation per resource in the knowledge-base chain.
package steps

import (
	"context"

	"github.com/olusolaa/bedrock-kb-provisioner/internal/adapters/platform/aws/iam"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/core/domain"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/core/ports"
	apperrors "github.com/olusolaa/bedrock-kb-provisioner/internal/errors"
)

// ExecutionRole provisions the IAM role the knowledge base assumes to reach
// the embedding model, the vector store, and the source bucket.
type ExecutionRole struct {
	iam      *iam.Handler
	roleName string
}

func NewExecutionRole(handler *iam.Handler, roleName string) *ExecutionRole {
	return &ExecutionRole{iam: handler, roleName: roleName}
}

func (s *ExecutionRole) Name() string        { return domain.StepExecutionRole }
func (s *ExecutionRole) DependsOn() []string { return nil }

func (s *ExecutionRole) Probe(ctx context.Context, _ domain.Inputs) (ports.ResourceRef, bool, error) {
	info, found, err := s.iam.GetRole(ctx, s.roleName)
	if err != nil || !found {
		return ports.ResourceRef{}, false, err
	}
	return roleRef(info), true, nil
}

func (s *ExecutionRole) Create(ctx context.Context, _ domain.Inputs) (ports.ResourceRef, error) {
	info, err := s.iam.CreateExecutionRole(ctx, s.roleName)
	if err != nil {
		return ports.ResourceRef{}, err
	}
	return roleRef(info), nil
}

func (s *ExecutionRole) Describe(ctx context.Context, ref ports.ResourceRef) (domain.StatusSnapshot, error) {
	info, found, err := s.iam.GetRole(ctx, ref.ID)
	if err != nil {
		return domain.StatusSnapshot{}, err
	}
	if !found {
		// CreateRole already returned, so absence is a read-replica lag.
		return domain.StatusSnapshot{}, apperrors.Newf(apperrors.CodeResourceNotFound,
			"role %s not visible yet", ref.ID)
	}
	return domain.StatusSnapshot{
		Status: domain.StatusActive,
		Detail: "role exists",
		Outputs: domain.Outputs{
			domain.KeyRoleARN:  info.ARN,
			domain.KeyRoleName: info.Name,
		},
	}, nil
}

func roleRef(info iam.RoleInfo) ports.ResourceRef {
	return ports.ResourceRef{
		ID: info.Name,
		Seed: domain.Outputs{
			domain.KeyRoleARN:  info.ARN,
			domain.KeyRoleName: info.Name,
		},
	}
}
