// Package errors maps AWS SDK failures into the application error taxonomy
// and classifies them for the retry policy.
package errors

import (
	"context"
	stderrs "errors"
	"fmt"
	"strings"

	"github.com/aws/smithy-go"

	"github.com/olusolaa/bedrock-kb-provisioner/internal/errors"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/retry"
)

// HandleAWSError wraps an AWS error with application context: the service
// and operation that failed, and a code the upper layers can act on.
func HandleAWSError(service, operation string, err error, ctx context.Context) error {
	if err == nil {
		return errors.New(errors.CodeInternal,
			fmt.Sprintf("unexpected nil error in AWS error handler for %s", service))
	}

	if ctx.Err() != nil || err == context.Canceled || err == context.DeadlineExceeded {
		return errors.Wrap(err, errors.CodePlatformAPIError,
			fmt.Sprintf("context canceled during AWS %s %s call", service, operation))
	}

	code := apiErrorCode(err)
	errMsg := err.Error()

	switch {
	case isAuthCode(code) || containsAny(errMsg, "AuthFailure", "UnauthorizedOperation", "AccessDenied", "not authorized"):
		return errors.Wrap(err, errors.CodePlatformAuthError,
			fmt.Sprintf("AWS authorization error during %s %s", service, operation))
	case isNotFoundCode(code) || containsAny(errMsg, "NotFound", "not found", "does not exist", "NoSuchBucket"):
		return errors.Wrap(err, errors.CodeResourceNotFound,
			fmt.Sprintf("%s %s target not found", service, operation))
	default:
		return errors.Wrap(err, errors.CodePlatformAPIError,
			fmt.Sprintf("AWS %s %s failed", service, operation))
	}
}

// Classify implements retry.Classifier for AWS errors. Unknown errors count
// as transient: eventual-consistency races surface under surprising codes
// and retrying a genuinely permanent error just costs a few attempts.
func Classify(err error) retry.Class {
	if err == nil {
		return retry.ClassTransient
	}

	if errors.Is(err, errors.CodePlatformAuthError) ||
		errors.Is(err, errors.CodeConfigValidation) ||
		errors.Is(err, errors.CodePermanent) {
		return retry.ClassPermanent
	}

	code := apiErrorCode(err)
	if code != "" {
		if isPermanentCode(code) {
			return retry.ClassPermanent
		}
		return retry.ClassTransient
	}

	if containsAny(err.Error(), "AccessDenied", "UnauthorizedOperation", "AuthFailure", "ValidationException", "MalformedPolicyDocument") {
		return retry.ClassPermanent
	}
	return retry.ClassTransient
}

func apiErrorCode(err error) string {
	// Type assertion first so hand-rolled mock errors work in tests.
	if mockErr, ok := err.(interface{ ErrorCode() string }); ok && mockErr != nil {
		return mockErr.ErrorCode()
	}
	var apiErr smithy.APIError
	if stderrs.As(err, &apiErr) && apiErr != nil {
		return apiErr.ErrorCode()
	}
	return ""
}

func isPermanentCode(code string) bool {
	permanent := []string{
		"ValidationException",
		"MalformedPolicyDocument",
		"MalformedPolicyDocumentException",
		"InvalidInput",
		"InvalidParameterValue",
		"InvalidParameterCombination",
		"AccessDeniedException",
		"AccessDenied",
		"UnauthorizedOperation",
		"AuthFailure",
		"UnrecognizedClientException",
		"ServiceQuotaExceededException",
		"LimitExceededException",
	}
	for _, p := range permanent {
		if code == p {
			return true
		}
	}
	return false
}

func isAuthCode(code string) bool {
	switch code {
	case "AccessDeniedException", "AccessDenied", "UnauthorizedOperation",
		"AuthFailure", "UnrecognizedClientException", "ExpiredTokenException":
		return true
	}
	return false
}

func isNotFoundCode(code string) bool {
	switch code {
	case "ResourceNotFoundException", "EntityNotFoundException",
		"NotFoundException", "NoSuchEntity", "NoSuchBucket", "NoSuchKey":
		return true
	}
	return false
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// DefaultErrorHandler implements the shared.ErrorHandler interface.
type DefaultErrorHandler struct{}

func (d *DefaultErrorHandler) Handle(service, operation string, err error, ctx context.Context) error {
	return HandleAWSError(service, operation, err, ctx)
}
