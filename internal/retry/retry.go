// Package retry implements jittered-backoff retry for transient failures.
//
// Delays are drawn uniformly from [MinDelay, MaxDelay] rather than doubling,
// which desynchronizes concurrent callers hammering the same
// eventually-consistent backend.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/olusolaa/bedrock-kb-provisioner/internal/core/ports"
	apperrors "github.com/olusolaa/bedrock-kb-provisioner/internal/errors"
)

// Class partitions errors into retryable and terminal.
type Class int

const (
	// ClassTransient errors (throttling, eventual-consistency races) are
	// retried until the attempt budget runs out.
	ClassTransient Class = iota
	// ClassPermanent errors (validation, authorization) fail immediately.
	ClassPermanent
)

// Classifier decides whether an error is worth retrying.
type Classifier func(error) Class

type Config struct {
	MinDelay    time.Duration `yaml:"min_delay" mapstructure:"min_delay"`
	MaxDelay    time.Duration `yaml:"max_delay" mapstructure:"max_delay"`
	MaxAttempts int           `yaml:"max_attempts" mapstructure:"max_attempts"`
}

func DefaultConfig() Config {
	return Config{
		MinDelay:    1 * time.Second,
		MaxDelay:    8 * time.Second,
		MaxAttempts: 5,
	}
}

type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not retryable regardless of what the classifier
// would say.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err carries the Permanent marker.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Policy executes operations with retry. The zero value is not usable; build
// one with NewPolicy.
type Policy struct {
	cfg      Config
	classify Classifier
	logger   ports.Logger
	rng      *rand.Rand
}

type Option func(*Policy)

// WithClassifier replaces the default classifier (which treats every error
// as transient unless marked with Permanent).
func WithClassifier(c Classifier) Option {
	return func(p *Policy) {
		if c != nil {
			p.classify = c
		}
	}
}

// WithRand fixes the jitter source, for deterministic tests.
func WithRand(r *rand.Rand) Option {
	return func(p *Policy) {
		if r != nil {
			p.rng = r
		}
	}
}

func NewPolicy(cfg Config, logger ports.Logger, opts ...Option) *Policy {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}
	if cfg.MinDelay <= 0 {
		cfg.MinDelay = DefaultConfig().MinDelay
	}
	if cfg.MaxDelay < cfg.MinDelay {
		cfg.MaxDelay = cfg.MinDelay
	}

	p := &Policy{
		cfg:      cfg,
		classify: func(error) Class { return ClassTransient },
		logger:   logger,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Policy) Config() Config {
	return p.cfg
}

// Execute runs op, retrying transient failures with jittered delays until it
// succeeds, a permanent error surfaces, the attempt budget is exhausted, or
// ctx is cancelled. Each attempt is logged so retries stay observable.
func (p *Policy) Execute(ctx context.Context, name string, op func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := op(ctx)
		if err == nil {
			if attempt > 1 {
				p.logger.Debugf(ctx, "%s succeeded on attempt %d", name, attempt)
			}
			return nil
		}
		lastErr = err

		if IsPermanent(err) || p.classify(err) == ClassPermanent {
			p.logger.Debugf(ctx, "%s failed permanently on attempt %d: %v", name, attempt, err)
			return apperrors.Recode(err, apperrors.CodePermanent, name+" failed with a non-retryable error")
		}

		if attempt == p.cfg.MaxAttempts {
			break
		}

		delay := p.jitter()
		p.logger.Warnf(ctx, "%s attempt %d/%d failed, retrying in %v: %v",
			name, attempt, p.cfg.MaxAttempts, delay.Round(time.Millisecond), err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return apperrors.Recodef(lastErr, apperrors.CodeTransientExhausted,
		"%s still failing after %d attempts", name, p.cfg.MaxAttempts)
}

// jitter draws a delay uniformly from [MinDelay, MaxDelay].
func (p *Policy) jitter() time.Duration {
	span := int64(p.cfg.MaxDelay - p.cfg.MinDelay)
	if span <= 0 {
		return p.cfg.MinDelay
	}
	return p.cfg.MinDelay + time.Duration(p.rng.Int63n(span+1))
}
