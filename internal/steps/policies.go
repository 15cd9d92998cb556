package steps

import (
	"context"

	"github.com/olusolaa/bedrock-kb-provisioner/internal/adapters/platform/aws/aoss"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/adapters/platform/aws/iam"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/core/domain"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/core/ports"
	apperrors "github.com/olusolaa/bedrock-kb-provisioner/internal/errors"
)

// PolicyNames groups the names of the four policies the role-policies step
// owns.
type PolicyNames struct {
	Encryption string
	Network    string
	Access     string
	Inline     string
}

// RolePolicies provisions the policy set the rest of the chain depends on:
// the role's inline execution policy plus the OpenSearch Serverless
// encryption, network, and data-access policies.
//
// The step is a composite, so Create fills in whatever subset is missing
// rather than assuming a clean slate; a rerun after a partial failure picks
// up where the previous run stopped.
type RolePolicies struct {
	iam  *iam.Handler
	aoss *aoss.Handler

	names              PolicyNames
	collectionName     string
	embeddingModelARN  string
	sourceBucket       string
	collectionResource string
	callerARN          string
}

func NewRolePolicies(iamHandler *iam.Handler, aossHandler *aoss.Handler, names PolicyNames,
	collectionName, collectionResource, embeddingModelARN, sourceBucket, callerARN string) *RolePolicies {
	return &RolePolicies{
		iam:                iamHandler,
		aoss:               aossHandler,
		names:              names,
		collectionName:     collectionName,
		collectionResource: collectionResource,
		embeddingModelARN:  embeddingModelARN,
		sourceBucket:       sourceBucket,
		callerARN:          callerARN,
	}
}

func (s *RolePolicies) Name() string        { return domain.StepRolePolicies }
func (s *RolePolicies) DependsOn() []string { return []string{domain.StepExecutionRole} }

func (s *RolePolicies) outputs() domain.Outputs {
	return domain.Outputs{
		domain.KeyEncryptionPolicyName: s.names.Encryption,
		domain.KeyNetworkPolicyName:    s.names.Network,
		domain.KeyAccessPolicyName:     s.names.Access,
	}
}

func (s *RolePolicies) Probe(ctx context.Context, in domain.Inputs) (ports.ResourceRef, bool, error) {
	roleName, err := s.roleName(in)
	if err != nil {
		return ports.ResourceRef{}, false, err
	}

	missing, err := s.missingPolicies(ctx, roleName)
	if err != nil {
		return ports.ResourceRef{}, false, err
	}
	if len(missing) > 0 {
		return ports.ResourceRef{}, false, nil
	}
	return ports.ResourceRef{ID: s.names.Access, Seed: s.outputs()}, true, nil
}

func (s *RolePolicies) Create(ctx context.Context, in domain.Inputs) (ports.ResourceRef, error) {
	roleName, err := s.roleName(in)
	if err != nil {
		return ports.ResourceRef{}, err
	}
	roleARN, _ := in.Lookup(domain.StepExecutionRole, domain.KeyRoleARN)

	missing, err := s.missingPolicies(ctx, roleName)
	if err != nil {
		return ports.ResourceRef{}, err
	}

	for _, name := range missing {
		switch name {
		case s.names.Encryption:
			err = s.aoss.CreateEncryptionPolicy(ctx, s.names.Encryption, s.collectionName)
		case s.names.Network:
			err = s.aoss.CreateNetworkPolicy(ctx, s.names.Network, s.collectionName)
		case s.names.Access:
			err = s.aoss.CreateDataAccessPolicy(ctx, s.names.Access, s.collectionName,
				principals(s.callerARN, roleARN))
		case s.names.Inline:
			var doc string
			doc, err = iam.ExecutionPolicy(s.embeddingModelARN, s.collectionResource, s.sourceBucket)
			if err == nil {
				err = s.iam.PutRolePolicy(ctx, roleName, s.names.Inline, doc)
			}
		}
		if err != nil {
			return ports.ResourceRef{}, err
		}
	}

	return ports.ResourceRef{ID: s.names.Access, Seed: s.outputs()}, nil
}

func (s *RolePolicies) Describe(ctx context.Context, _ ports.ResourceRef) (domain.StatusSnapshot, error) {
	// IAM and AOSS policies have no CREATING phase; the snapshot flips to
	// Active as soon as every policy is readable.
	missing, err := s.missingPolicies(ctx, "")
	if err != nil {
		return domain.StatusSnapshot{}, err
	}
	if len(missing) > 0 {
		return domain.StatusSnapshot{
			Status: domain.StatusCreating,
			Detail: "policies not yet visible: " + missing[0],
		}, nil
	}
	return domain.StatusSnapshot{
		Status:  domain.StatusActive,
		Detail:  "all policies present",
		Outputs: s.outputs(),
	}, nil
}

// missingPolicies lists the policies that do not exist yet, in creation
// order. With an empty roleName the inline policy check is skipped, which is
// what Describe wants: the role name is not part of the resource ref and the
// inline policy was already verified during Create.
func (s *RolePolicies) missingPolicies(ctx context.Context, roleName string) ([]string, error) {
	var missing []string

	ok, err := s.aoss.HasEncryptionPolicy(ctx, s.names.Encryption)
	if err != nil {
		return nil, err
	}
	if !ok {
		missing = append(missing, s.names.Encryption)
	}

	ok, err = s.aoss.HasNetworkPolicy(ctx, s.names.Network)
	if err != nil {
		return nil, err
	}
	if !ok {
		missing = append(missing, s.names.Network)
	}

	ok, err = s.aoss.HasAccessPolicy(ctx, s.names.Access)
	if err != nil {
		return nil, err
	}
	if !ok {
		missing = append(missing, s.names.Access)
	}

	if roleName != "" {
		ok, err = s.iam.HasRolePolicy(ctx, roleName, s.names.Inline)
		if err != nil {
			return nil, err
		}
		if !ok {
			missing = append(missing, s.names.Inline)
		}
	}

	return missing, nil
}

func (s *RolePolicies) roleName(in domain.Inputs) (string, error) {
	name, ok := in.Lookup(domain.StepExecutionRole, domain.KeyRoleName)
	if !ok {
		return "", apperrors.Newf(apperrors.CodeUnresolvedDependency,
			"%s output %s missing from inputs", domain.StepExecutionRole, domain.KeyRoleName)
	}
	return name, nil
}

func principals(callerARN, roleARN string) []string {
	var out []string
	if callerARN != "" {
		out = append(out, callerARN)
	}
	if roleARN != "" {
		out = append(out, roleARN)
	}
	return out
}
