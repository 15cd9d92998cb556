// Package s3 probes the source document bucket a data source ingests from.
package s3

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	aws_errors "github.com/olusolaa/bedrock-kb-provisioner/internal/adapters/platform/aws/errors"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/adapters/platform/aws/shared"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/core/ports"
	apperrors "github.com/olusolaa/bedrock-kb-provisioner/internal/errors"
)

const serviceName = "s3"

// S3ClientInterface is the slice of the SDK S3 client the handler needs.
type S3ClientInterface interface {
	HeadBucket(ctx context.Context, params *awss3.HeadBucketInput, optFns ...func(*awss3.Options)) (*awss3.HeadBucketOutput, error)
}

type Handler struct {
	client       S3ClientInterface
	limiter      shared.RateLimiter
	errorHandler shared.ErrorHandler
	logger       ports.Logger
}

type HandlerOption func(*Handler)

func WithClient(client S3ClientInterface) HandlerOption {
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
		client:       awss3.NewFromConfig(cfg),
		limiter:      limiter,
		errorHandler: &aws_errors.DefaultErrorHandler{},
		logger:       logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// BucketExists reports whether the source bucket is reachable with the
// caller's credentials. HeadBucket distinguishes absence from access denial,
// so a permission problem surfaces as an error rather than "not found".
func (h *Handler) BucketExists(ctx context.Context, name string) (bool, error) {
	if err := h.limiter.Wait(ctx); err != nil {
		return false, err
	}

	_, err := h.client.HeadBucket(ctx, &awss3.HeadBucketInput{
		Bucket: aws.String(name),
	})
	if err != nil {
		handled := h.errorHandler.Handle(serviceName, "HeadBucket", err, ctx)
		if appErr, ok := handled.(*apperrors.AppError); ok && appErr.Code == apperrors.CodeResourceNotFound {
			return false, nil
		}
		return false, handled
	}

	h.logger.Debugf(ctx, "Source bucket %s is reachable", name)
	return true, nil
}

// BucketARN builds the ARN form the Bedrock data-source API expects.
func BucketARN(name string) string {
	return "arn:aws:s3:::" + name
}
