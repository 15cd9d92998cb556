package errors_test

import (
	"context"
	stderrs "errors"
	"testing"

	"github.com/stretchr/testify/assert"

	aws_errors "github.com/olusolaa/bedrock-kb-provisioner/internal/adapters/platform/aws/errors"
	apperrors "github.com/olusolaa/bedrock-kb-provisioner/internal/errors"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/retry"
)

// codedError mimics an AWS API error.
type codedError struct {
	code string
	msg  string
}

func (e *codedError) Error() string     { return e.msg }
func (e *codedError) ErrorCode() string { return e.code }

func TestHandleAWSErrorMapsCodes(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		err      error
		expected apperrors.Code
	}{
		{
			name:     "access denied becomes auth error",
			err:      &codedError{code: "AccessDeniedException", msg: "nope"},
			expected: apperrors.CodePlatformAuthError,
		},
		{
			name:     "expired token becomes auth error",
			err:      &codedError{code: "ExpiredTokenException", msg: "token expired"},
			expected: apperrors.CodePlatformAuthError,
		},
		{
			name:     "resource not found",
			err:      &codedError{code: "ResourceNotFoundException", msg: "gone"},
			expected: apperrors.CodeResourceNotFound,
		},
		{
			name:     "iam no such entity",
			err:      &codedError{code: "NoSuchEntity", msg: "role missing"},
			expected: apperrors.CodeResourceNotFound,
		},
		{
			name:     "anything else is a platform API error",
			err:      &codedError{code: "ThrottlingException", msg: "slow down"},
			expected: apperrors.CodePlatformAPIError,
		},
		{
			name:     "plain error without a code",
			err:      stderrs.New("connection reset"),
			expected: apperrors.CodePlatformAPIError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handled := aws_errors.HandleAWSError("iam", "GetRole", tt.err, ctx)
			assert.True(t, apperrors.Is(handled, tt.expected),
				"got %v, want code %s", handled, tt.expected)
			assert.ErrorIs(t, handled, tt.err)
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected retry.Class
	}{
		{"nil is transient", nil, retry.ClassTransient},
		{"throttling is transient", &codedError{code: "ThrottlingException", msg: "slow down"}, retry.ClassTransient},
		{"conflict is transient", &codedError{code: "ConflictException", msg: "busy"}, retry.ClassTransient},
		{"validation is permanent", &codedError{code: "ValidationException", msg: "bad field"}, retry.ClassPermanent},
		{"malformed policy is permanent", &codedError{code: "MalformedPolicyDocument", msg: "bad json"}, retry.ClassPermanent},
		{"access denied is permanent", &codedError{code: "AccessDeniedException", msg: "nope"}, retry.ClassPermanent},
		{"quota exceeded is permanent", &codedError{code: "ServiceQuotaExceededException", msg: "limit"}, retry.ClassPermanent},
		{"unknown plain error is transient", stderrs.New("connection reset"), retry.ClassTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, aws_errors.Classify(tt.err))
		})
	}
}

func TestClassifyHonoursHandledAuthErrors(t *testing.T) {
	handled := aws_errors.HandleAWSError("sts", "GetCallerIdentity",
		&codedError{code: "UnrecognizedClientException", msg: "bad creds"}, context.Background())

	assert.Equal(t, retry.ClassPermanent, aws_errors.Classify(handled))
}
