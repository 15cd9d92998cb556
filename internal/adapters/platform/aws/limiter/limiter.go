package limiter

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/olusolaa/bedrock-kb-provisioner/internal/core/ports"
)

const (
	defaultRateLimitRPS = 10
	minRateLimitRPS     = 1
	maxRateLimitRPS     = 100
)

// Limiter is a shared token bucket over every AWS control-plane call the
// tool makes. The pipeline's polling loops are the main pressure source, so
// one limiter instance is shared across all adapters.
type Limiter struct {
	limiter *rate.Limiter
	logger  ports.Logger
}

func New(rps int, logger ports.Logger) *Limiter {
	limitValue := defaultRateLimitRPS
	if rps >= minRateLimitRPS && rps <= maxRateLimitRPS {
		limitValue = rps
	} else if rps != 0 {
		logger.Warnf(context.Background(),
			"Invalid AWS API RPS configured (%d), using default %d RPS. Valid range: %d-%d.",
			rps, defaultRateLimitRPS, minRateLimitRPS, maxRateLimitRPS)
	}

	logger.Debugf(context.Background(), "AWS API rate limiter initialized: %d RPS", limitValue)
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(limitValue), limitValue),
		logger:  logger,
	}
}

func (l *Limiter) Wait(ctx context.Context) error {
	err := l.limiter.Wait(ctx)
	if err != nil && ctx.Err() == nil {
		l.logger.Warnf(ctx, "Error waiting for AWS API rate limiter: %v", err)
	}
	return err
}
