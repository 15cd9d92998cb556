// Package poll blocks until a resource's status reaches a terminal state.
//
// This is status polling, not error retry: the interval is fixed (callers
// pick one the describe primitive's rate limits can absorb, tens of seconds
// for slow-provisioning resources) and cancellation is observed at every
// interval boundary.
package poll

import (
	"context"
	"time"

	"github.com/olusolaa/bedrock-kb-provisioner/internal/core/domain"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/core/ports"
	apperrors "github.com/olusolaa/bedrock-kb-provisioner/internal/errors"
)

type Config struct {
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

func DefaultConfig() Config {
	return Config{
		Interval: 30 * time.Second,
		Timeout:  10 * time.Minute,
	}
}

type Poller struct {
	cfg    Config
	logger ports.Logger
}

func NewPoller(cfg Config, logger ports.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Poller{cfg: cfg, logger: logger}
}

func (p *Poller) Config() Config {
	return p.cfg
}

// AwaitReady repeatedly invokes describe until the snapshot is Active
// (returned), Failed (RESOURCE_FAILED), the wall-clock budget elapses
// (PROVISIONING_TIMEOUT), or ctx is cancelled.
//
// A RESOURCE_NOT_FOUND from describe right after creation is an
// eventual-consistency race, not a failure; polling continues until the
// resource becomes visible or the budget runs out.
func (p *Poller) AwaitReady(ctx context.Context, name string, describe func(ctx context.Context) (domain.StatusSnapshot, error)) (domain.StatusSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	deadline, _ := ctx.Deadline()
	var last domain.StatusSnapshot

	for {
		snap, err := describe(ctx)
		switch {
		case err == nil:
			last = snap
			if snap.Failed() {
				return snap, apperrors.Newf(apperrors.CodeResourceFailed,
					"%s entered a failure state: %s", name, snap.Detail)
			}
			if snap.Ready() {
				return snap, nil
			}
			p.logger.Debugf(ctx, "%s not ready yet (status %s), next poll in %v",
				name, snap.Status, p.cfg.Interval)
		case apperrors.Is(err, apperrors.CodeResourceNotFound):
			p.logger.Debugf(ctx, "%s not yet visible, next poll in %v", name, p.cfg.Interval)
		default:
			if ctx.Err() != nil {
				return last, p.timeoutOrCancel(ctx, name, last)
			}
			return last, err
		}

		if time.Until(deadline) < p.cfg.Interval {
			return last, apperrors.Newf(apperrors.CodeProvisioningTimeout,
				"%s not ready within %v (last status %s)", name, p.cfg.Timeout, statusOrUnknown(last))
		}

		timer := time.NewTimer(p.cfg.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return last, p.timeoutOrCancel(ctx, name, last)
		case <-timer.C:
		}
	}
}

func (p *Poller) timeoutOrCancel(ctx context.Context, name string, last domain.StatusSnapshot) error {
	if ctx.Err() == context.DeadlineExceeded {
		return apperrors.Newf(apperrors.CodeProvisioningTimeout,
			"%s not ready within %v (last status %s)", name, p.cfg.Timeout, statusOrUnknown(last))
	}
	return ctx.Err()
}

func statusOrUnknown(snap domain.StatusSnapshot) domain.ResourceStatus {
	if snap.Status == "" {
		return domain.StatusUnknown
	}
	return snap.Status
}
