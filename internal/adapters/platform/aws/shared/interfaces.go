package shared

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// RateLimiter throttles AWS API calls across all adapters so polling loops
// and concurrent steps cannot exceed the account's control-plane limits.
type RateLimiter interface {
	Wait(ctx context.Context) error
}

// ErrorHandler maps raw SDK errors into application errors with the right
// code (auth, not-found, generic API failure).
type ErrorHandler interface {
	Handle(service, operation string, err error, ctx context.Context) error
}

// STSClientInterface is the slice of the SDK STS client used to resolve the
// caller identity for access-policy principals.
type STSClientInterface interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}
