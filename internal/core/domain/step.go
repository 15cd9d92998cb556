package domain

import "time"

// StepState tracks a step through the pipeline state machine:
// Pending -> Resolving -> Creating -> Polling -> Ready, or Failed at any
// point after Pending.
type StepState string

const (
	StepPending   StepState = "PENDING"
	StepResolving StepState = "RESOLVING"
	StepCreating  StepState = "CREATING"
	StepPolling   StepState = "POLLING"
	StepReady     StepState = "READY"
	StepFailed    StepState = "FAILED"
)

func (s StepState) String() string {
	return string(s)
}

// Inputs carries the outputs of a step's declared dependencies, keyed by the
// dependency's step name.
type Inputs map[string]Outputs

// Lookup returns a single named identifier from a dependency's outputs.
func (in Inputs) Lookup(step, key string) (string, bool) {
	out, ok := in[step]
	if !ok {
		return "", false
	}
	v, ok := out[key]
	return v, ok
}

// StepResult is the per-step outcome of a pipeline run.
type StepResult struct {
	Name     string
	State    StepState
	Reused   bool // an existing resource was adopted instead of created
	Attempts int  // describe calls issued while waiting for readiness
	Duration time.Duration
	Outputs  Outputs
	Error    error
}

// RunResult aggregates a whole pipeline run for reporting.
type RunResult struct {
	Succeeded  bool
	FailedStep string
	Steps      []StepResult
	Duration   time.Duration
}

// StepInspection is one row of a status or verify report: the live state of
// a previously provisioned resource.
type StepInspection struct {
	Step     string
	Recorded bool // the record has an entry for this step
	Found    bool // the resource was located on the platform
	Snapshot StatusSnapshot
	// Drift is a textual diff of recorded-vs-live outputs; empty when in
	// sync. Only filled by verify.
	Drift string
	Err   error
}
