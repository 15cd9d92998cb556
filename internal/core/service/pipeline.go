package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/olusolaa/bedrock-kb-provisioner/internal/core/domain"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/core/ports"
	apperrors "github.com/olusolaa/bedrock-kb-provisioner/internal/errors"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/guard"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/poll"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/retry"
)

// StepTiming bundles the per-step budgets. Retry bounds creation-adjacent
// API errors; Poll bounds wall-clock readiness waiting. They are independent
// because resource types have very different provisioning latencies.
type StepTiming struct {
	Retry retry.Config `yaml:"retry" mapstructure:"retry"`
	Poll  poll.Config  `yaml:"poll" mapstructure:"poll"`
}

func DefaultStepTiming() StepTiming {
	return StepTiming{
		Retry: retry.DefaultConfig(),
		Poll:  poll.DefaultConfig(),
	}
}

type stepRuntime struct {
	step   ports.Step
	guard  *guard.Guard
	poller *poll.Poller
	done   chan struct{} // closed once the step is Ready and its outputs merged
	result domain.StepResult
}

// ProvisioningPipeline orders steps by their declared dependencies and
// executes them. Steps with no interdependency run concurrently; each step
// waits only on its own dependencies. On the first failure the shared context
// is cancelled, already-ready steps keep their record entries, and waiting
// steps never start — a rerun resumes from the failure point through the
// idempotency guard.
type ProvisioningPipeline struct {
	steps  map[string]*stepRuntime
	order  []string
	record *domain.Record
	store  ports.RecordStore
	logger ports.Logger

	mu         sync.Mutex
	failedStep string
}

// NewPipeline validates the step graph and builds per-step retry policies
// and pollers. timings may be nil or partial; missing steps fall back to def.
func NewPipeline(
	steps []ports.Step,
	timings map[string]StepTiming,
	def StepTiming,
	classifier retry.Classifier,
	record *domain.Record,
	store ports.RecordStore,
	logger ports.Logger,
) (*ProvisioningPipeline, error) {
	if record == nil {
		return nil, apperrors.New(apperrors.CodeInternal, "record cannot be nil")
	}
	if len(steps) == 0 {
		return nil, apperrors.New(apperrors.CodeConfigValidation, "pipeline has no steps")
	}

	order, err := topologicalOrder(steps)
	if err != nil {
		return nil, err
	}

	runtimes := make(map[string]*stepRuntime, len(steps))
	for _, s := range steps {
		timing, ok := timings[s.Name()]
		if !ok {
			timing = def
		}
		stepLogger := logger.WithFields(map[string]any{"step": s.Name()})
		policy := retry.NewPolicy(timing.Retry, stepLogger, retry.WithClassifier(classifier))
		runtimes[s.Name()] = &stepRuntime{
			step:   s,
			guard:  guard.New(policy, stepLogger),
			poller: poll.NewPoller(timing.Poll, stepLogger),
			done:   make(chan struct{}),
			result: domain.StepResult{Name: s.Name(), State: domain.StepPending},
		}
	}

	return &ProvisioningPipeline{
		steps:  runtimes,
		order:  order,
		record: record,
		store:  store,
		logger: logger,
	}, nil
}

func (p *ProvisioningPipeline) Run(ctx context.Context) (*domain.RunResult, error) {
	start := time.Now()
	p.logger.Infof(ctx, "Starting provisioning pipeline with %d steps: %v", len(p.order), p.order)

	g, childCtx := errgroup.WithContext(ctx)
	for _, name := range p.order {
		rt := p.steps[name]
		g.Go(func() error {
			return p.runStep(childCtx, rt)
		})
	}

	runErr := g.Wait()

	result := p.collectResult(time.Since(start), runErr)
	if runErr != nil {
		p.logger.Errorf(ctx, runErr, "Pipeline halted at step %q; %d of %d steps ready",
			result.FailedStep, readyCount(result), len(p.order))
		return result, runErr
	}

	if p.store != nil {
		if err := p.store.Save(ctx, p.record); err != nil {
			wrapped := apperrors.Wrap(err, apperrors.CodeRecordIOError, "failed to persist provisioning record")
			p.logger.Errorf(ctx, wrapped, "Record persistence failed after successful run")
			result.Succeeded = false
			return result, wrapped
		}
	}

	p.logger.Infof(ctx, "Provisioning pipeline completed in %v", result.Duration.Round(time.Millisecond))
	return result, nil
}

func (p *ProvisioningPipeline) runStep(ctx context.Context, rt *stepRuntime) error {
	name := rt.step.Name()
	start := time.Now()

	defer func() {
		rt.result.Duration = time.Since(start)
	}()

	// Wait for every declared dependency to reach Ready. The errgroup
	// cancels ctx on the first failure anywhere in the pipeline, so a step
	// blocked here never starts once something upstream has failed.
	for _, dep := range rt.step.DependsOn() {
		select {
		case <-p.steps[dep].done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	rt.result.State = domain.StepResolving
	inputs, err := p.resolveInputs(rt.step)
	if err != nil {
		return p.failStep(ctx, rt, err)
	}

	rt.result.State = domain.StepCreating
	ref, reused, err := rt.guard.EnsureExists(ctx, name,
		func(ctx context.Context) (ports.ResourceRef, bool, error) {
			return rt.step.Probe(ctx, inputs)
		},
		func(ctx context.Context) (ports.ResourceRef, error) {
			return rt.step.Create(ctx, inputs)
		},
	)
	if err != nil {
		return p.failStep(ctx, rt, err)
	}
	rt.result.Reused = reused

	rt.result.State = domain.StepPolling
	snap, err := rt.poller.AwaitReady(ctx, name, func(ctx context.Context) (domain.StatusSnapshot, error) {
		rt.result.Attempts++
		return rt.step.Describe(ctx, ref)
	})
	if err != nil {
		return p.failStep(ctx, rt, err)
	}

	outputs := mergeOutputs(ref, snap)
	p.record.Merge(name, outputs)
	rt.result.State = domain.StepReady
	rt.result.Outputs = outputs

	// Persist after every completed step so a later failure still leaves a
	// resumable record behind.
	if p.store != nil {
		p.mu.Lock()
		saveErr := p.store.Save(ctx, p.record)
		p.mu.Unlock()
		if saveErr != nil {
			return p.failStep(ctx, rt, apperrors.Wrapf(saveErr,
				apperrors.CodeRecordIOError, "failed to persist record after step %s", name))
		}
	}

	p.logger.Infof(ctx, "Step %s ready in %v (reused=%t)", name,
		time.Since(start).Round(time.Millisecond), reused)
	close(rt.done)
	return nil
}

// resolveInputs gathers the outputs of all declared dependencies. A missing
// entry here means a dependency closed its done channel without writing
// outputs, which the pipeline treats as a structural defect.
func (p *ProvisioningPipeline) resolveInputs(step ports.Step) (domain.Inputs, error) {
	inputs := make(domain.Inputs, len(step.DependsOn()))
	for _, dep := range step.DependsOn() {
		out, ok := p.record.Get(dep)
		if !ok {
			return nil, apperrors.Newf(apperrors.CodeUnresolvedDependency,
				"step %q requires outputs of %q which are not in the record", step.Name(), dep)
		}
		inputs[dep] = out
	}
	return inputs, nil
}

func (p *ProvisioningPipeline) failStep(ctx context.Context, rt *stepRuntime, err error) error {
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		// Cancelled from outside (or by another step's failure), not a
		// failure of this step.
		return err
	}
	rt.result.State = domain.StepFailed
	rt.result.Error = err

	p.mu.Lock()
	if p.failedStep == "" {
		p.failedStep = rt.step.Name()
	}
	p.mu.Unlock()

	p.logger.Errorf(ctx, err, "Step %s failed", rt.step.Name())
	return err
}

func (p *ProvisioningPipeline) collectResult(elapsed time.Duration, runErr error) *domain.RunResult {
	result := &domain.RunResult{
		Succeeded: runErr == nil,
		Duration:  elapsed,
		Steps:     make([]domain.StepResult, 0, len(p.order)),
	}
	p.mu.Lock()
	result.FailedStep = p.failedStep
	p.mu.Unlock()

	for _, name := range p.order {
		result.Steps = append(result.Steps, p.steps[name].result)
	}
	return result
}

func mergeOutputs(ref ports.ResourceRef, snap domain.StatusSnapshot) domain.Outputs {
	merged := make(domain.Outputs, len(ref.Seed)+len(snap.Outputs))
	for k, v := range ref.Seed {
		merged[k] = v
	}
	for k, v := range snap.Outputs {
		merged[k] = v
	}
	return merged
}

func readyCount(result *domain.RunResult) int {
	n := 0
	for _, s := range result.Steps {
		if s.State == domain.StepReady {
			n++
		}
	}
	return n
}
