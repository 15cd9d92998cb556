package json

import (
	"context"
	"io"
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/olusolaa/bedrock-kb-provisioner/internal/core/domain"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/core/ports"
)

const ReporterTypeJSON = "json"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Config struct {
	Pretty bool `yaml:"pretty" mapstructure:"pretty"`
}

type Reporter struct {
	config Config
	writer io.Writer
	logger ports.Logger
}

func NewReporter(cfg Config, logger ports.Logger) (*Reporter, error) {
	return &Reporter{
		config: cfg,
		writer: os.Stdout,
		logger: logger,
	}, nil
}

type jsonReport struct {
	Summary jsonSummary    `json:"summary"`
	Steps   []jsonStepItem `json:"steps"`
}

type jsonSummary struct {
	Succeeded  bool   `json:"succeeded"`
	FailedStep string `json:"failed_step,omitempty"`
	TotalSteps int    `json:"total_steps"`
	Ready      int    `json:"ready"`
	Adopted    int    `json:"adopted"`
	Failed     int    `json:"failed"`
	DurationMS int64  `json:"duration_ms"`
}

type jsonStepItem struct {
	Name         string            `json:"name"`
	State        domain.StepState  `json:"state"`
	Reused       bool              `json:"reused"`
	Attempts     int               `json:"attempts,omitempty"`
	DurationMS   int64             `json:"duration_ms"`
	Outputs      map[string]string `json:"outputs,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
}

func (r *Reporter) Report(ctx context.Context, result *domain.RunResult) error {
	if result == nil {
		result = &domain.RunResult{}
	}

	report := jsonReport{
		Summary: jsonSummary{
			Succeeded:  result.Succeeded,
			FailedStep: result.FailedStep,
			TotalSteps: len(result.Steps),
			DurationMS: result.Duration.Milliseconds(),
		},
		Steps: make([]jsonStepItem, 0, len(result.Steps)),
	}

	for _, step := range result.Steps {
		if ctx.Err() != nil {
			r.logger.Warnf(ctx, "JSON report generation cancelled")
			return ctx.Err()
		}

		switch step.State {
		case domain.StepReady:
			report.Summary.Ready++
			if step.Reused {
				report.Summary.Adopted++
			}
		case domain.StepFailed:
			report.Summary.Failed++
		}

		item := jsonStepItem{
			Name:       step.Name,
			State:      step.State,
			Reused:     step.Reused,
			Attempts:   step.Attempts,
			DurationMS: step.Duration.Milliseconds(),
			Outputs:    step.Outputs,
		}
		if step.Error != nil {
			item.ErrorMessage = step.Error.Error()
		}
		report.Steps = append(report.Steps, item)
	}

	return r.encode(ctx, report)
}

type jsonInspectionReport struct {
	GeneratedAt time.Time            `json:"generated_at"`
	Resources   []jsonInspectionItem `json:"resources"`
}

type jsonInspectionItem struct {
	Step         string            `json:"step"`
	Recorded     bool              `json:"recorded"`
	Found        bool              `json:"found"`
	Status       string            `json:"status,omitempty"`
	Detail       string            `json:"detail,omitempty"`
	Outputs      map[string]string `json:"outputs,omitempty"`
	Drift        string            `json:"drift,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
}

func (r *Reporter) ReportInspection(ctx context.Context, rows []domain.StepInspection) error {
	report := jsonInspectionReport{
		GeneratedAt: time.Now().UTC(),
		Resources:   make([]jsonInspectionItem, 0, len(rows)),
	}

	for _, row := range rows {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		item := jsonInspectionItem{
			Step:     row.Step,
			Recorded: row.Recorded,
			Found:    row.Found,
			Status:   string(row.Snapshot.Status),
			Detail:   row.Snapshot.Detail,
			Outputs:  row.Snapshot.Outputs,
			Drift:    row.Drift,
		}
		if row.Err != nil {
			item.ErrorMessage = row.Err.Error()
		}
		report.Resources = append(report.Resources, item)
	}

	return r.encode(ctx, report)
}

func (r *Reporter) encode(ctx context.Context, v any) error {
	encoder := json.NewEncoder(r.writer)
	if r.config.Pretty {
		encoder.SetIndent("", "  ")
	}

	if err := encoder.Encode(v); err != nil {
		r.logger.Errorf(ctx, err, "Failed to encode JSON report")
		return err
	}
	return nil
}
