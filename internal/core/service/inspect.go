package service

import (
	"context"

	"github.com/google/go-cmp/cmp"

	"github.com/olusolaa/bedrock-kb-provisioner/internal/core/domain"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/core/ports"
	apperrors "github.com/olusolaa/bedrock-kb-provisioner/internal/errors"
)

// Inspector re-describes previously provisioned resources without mutating
// anything. It drives the same Step implementations as the pipeline, so the
// read path exercised here is exactly the one provisioning trusts.
type Inspector struct {
	steps  map[string]ports.Step
	order  []string
	store  ports.RecordStore
	logger ports.Logger
}

func NewInspector(steps []ports.Step, store ports.RecordStore, logger ports.Logger) (*Inspector, error) {
	order, err := topologicalOrder(steps)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]ports.Step, len(steps))
	for _, s := range steps {
		byName[s.Name()] = s
	}
	return &Inspector{steps: byName, order: order, store: store, logger: logger}, nil
}

// Status loads the record and describes each recorded resource.
func (i *Inspector) Status(ctx context.Context) ([]domain.StepInspection, error) {
	entries, err := i.load(ctx)
	if err != nil {
		return nil, err
	}
	return i.describeAll(ctx, entries, false), nil
}

// Verify loads the record, re-describes each recorded resource, and diffs
// the persisted outputs against the live values.
func (i *Inspector) Verify(ctx context.Context, diffKeysOnly bool) ([]domain.StepInspection, error) {
	entries, err := i.load(ctx)
	if err != nil {
		return nil, err
	}

	statuses := i.describeAll(ctx, entries, true)
	for idx := range statuses {
		st := &statuses[idx]
		if !st.Recorded || !st.Found || st.Err != nil {
			continue
		}
		recorded := entries[st.Step]
		live := liveOutputs(recorded, st.Snapshot.Outputs, diffKeysOnly)
		st.Drift = cmp.Diff(recorded, live)
	}
	return statuses, nil
}

func (i *Inspector) load(ctx context.Context) (map[string]domain.Outputs, error) {
	entries, err := i.store.Load(ctx)
	if err != nil {
		if apperrors.Is(err, apperrors.CodeResourceNotFound) {
			return nil, apperrors.WrapUserFacing(err, apperrors.CodeResourceNotFound,
				"no provisioning record found",
				"Run 'kb-provision provision' first, or point --record at the right file")
		}
		return nil, err
	}
	return entries, nil
}

func (i *Inspector) describeAll(ctx context.Context, entries map[string]domain.Outputs, collectOutputs bool) []domain.StepInspection {
	// Probe rediscovers each resource from the recorded outputs of its
	// dependencies, then Describe fetches the live state. Both are
	// side-effect free by the Step contract.
	inputs := domain.Inputs(entries)

	statuses := make([]domain.StepInspection, 0, len(i.order))
	for _, name := range i.order {
		st := domain.StepInspection{Step: name}
		if _, ok := entries[name]; !ok {
			statuses = append(statuses, st)
			continue
		}
		st.Recorded = true

		step := i.steps[name]
		ref, found, err := step.Probe(ctx, inputs)
		if err != nil {
			st.Err = err
			statuses = append(statuses, st)
			continue
		}
		if !found {
			statuses = append(statuses, st)
			continue
		}
		st.Found = true

		snap, err := step.Describe(ctx, ref)
		if err != nil {
			st.Err = err
			statuses = append(statuses, st)
			continue
		}
		if collectOutputs {
			merged := ref.Seed.Clone()
			if merged == nil {
				merged = domain.Outputs{}
			}
			for k, v := range snap.Outputs {
				merged[k] = v
			}
			snap.Outputs = merged
		}
		st.Snapshot = snap
		statuses = append(statuses, st)
	}
	return statuses
}

// liveOutputs restricts live values to the recorded key set when asked, so
// the diff flags changed identifiers without flagging keys the record never
// carried.
func liveOutputs(recorded, live domain.Outputs, keysOnly bool) domain.Outputs {
	if !keysOnly {
		return live
	}
	out := domain.Outputs{}
	for k := range recorded {
		out[k] = live[k]
	}
	return out
}
