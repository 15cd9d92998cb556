package text

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/olusolaa/bedrock-kb-provisioner/internal/core/domain"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/core/ports"
	apperrors "github.com/olusolaa/bedrock-kb-provisioner/internal/errors"
)

const ReporterTypeText = "text"

type Config struct {
	NoColor bool `yaml:"no_color" mapstructure:"no_color"`
}

type Reporter struct {
	config Config
	writer io.Writer
	logger ports.Logger
}

func NewReporter(cfg Config, logger ports.Logger) (*Reporter, error) {
	if cfg.NoColor || !isTerminal(os.Stdout) {
		color.NoColor = true
	}

	return &Reporter{
		config: cfg,
		writer: os.Stdout,
		logger: logger,
	}, nil
}

func isTerminal(f *os.File) bool {
	stat, _ := f.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

func (r *Reporter) Report(ctx context.Context, result *domain.RunResult) error {
	if result == nil || len(result.Steps) == 0 {
		fmt.Fprintln(r.writer, "No steps were executed.")
		return nil
	}

	tw := tabwriter.NewWriter(r.writer, 0, 8, 2, ' ', 0)
	defer tw.Flush()

	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	fmt.Fprintln(tw, "Provisioning Report")
	fmt.Fprintln(tw, "===================")
	fmt.Fprintln(tw, "State\tStep\tDuration\tDetails")
	fmt.Fprintln(tw, "-----\t----\t--------\t-------")

	readyCount := 0
	reusedCount := 0
	failedCount := 0
	skippedCount := 0

	for _, step := range result.Steps {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		stateStr := ""
		details := ""

		switch step.State {
		case domain.StepReady:
			readyCount++
			stateStr = green("[READY]")
			if step.Reused {
				reusedCount++
				details = "Adopted existing resource."
			} else {
				details = "Created."
			}
			if step.Attempts > 1 {
				details += fmt.Sprintf(" Became ready after %d status checks.", step.Attempts)
			}
			details += " " + formatOutputs(step.Outputs)
		case domain.StepFailed:
			failedCount++
			stateStr = red("[FAILED]")
			details = fmt.Sprintf("%s: %v", errorKind(step.Error), step.Error)
			if appErr := (*apperrors.AppError)(nil); errors.As(step.Error, &appErr) {
				if appErr.IsUserFacing && appErr.SuggestedAction != "" {
					details += fmt.Sprintf(" Suggestion: %s", appErr.SuggestedAction)
				}
			}
		case domain.StepPending:
			skippedCount++
			stateStr = yellow("[SKIPPED]")
			details = "Not started; an upstream step failed first."
		default:
			stateStr = cyan(fmt.Sprintf("[%s]", step.State))
			details = "Interrupted mid-phase."
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", stateStr, step.Name, formatDuration(step.Duration), details)
	}

	fmt.Fprintln(tw, "\nSummary:")
	fmt.Fprintln(tw, "-------")
	fmt.Fprintf(tw, "Total Steps:\t%d\n", len(result.Steps))
	fmt.Fprintf(tw, "Ready:\t%s (of which adopted: %d)\n", green(readyCount), reusedCount)
	fmt.Fprintf(tw, "Failed:\t%s\n", red(failedCount))
	fmt.Fprintf(tw, "Skipped:\t%s\n", yellow(skippedCount))
	fmt.Fprintf(tw, "Total Duration:\t%s\n", formatDuration(result.Duration))
	if result.Succeeded {
		fmt.Fprintf(tw, "Outcome:\t%s\n", green("SUCCESS"))
	} else {
		fmt.Fprintf(tw, "Outcome:\t%s (failed at: %s)\n", red("FAILURE"), result.FailedStep)
	}

	return nil
}

func (r *Reporter) ReportInspection(ctx context.Context, rows []domain.StepInspection) error {
	if len(rows) == 0 {
		fmt.Fprintln(r.writer, "Nothing recorded yet.")
		return nil
	}

	tw := tabwriter.NewWriter(r.writer, 0, 8, 2, ' ', 0)
	defer tw.Flush()

	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	magenta := color.New(color.FgMagenta).SprintFunc()

	fmt.Fprintln(tw, "Resource Status")
	fmt.Fprintln(tw, "===============")
	fmt.Fprintln(tw, "Status\tStep\tDetails")
	fmt.Fprintln(tw, "------\t----\t-------")

	driftCount := 0
	for _, row := range rows {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		statusStr := ""
		details := ""

		switch {
		case row.Err != nil:
			statusStr = magenta("[ERROR]")
			details = fmt.Sprintf("Describe failed: %v", row.Err)
		case !row.Recorded:
			statusStr = yellow("[UNRECORDED]")
			details = "No record entry; not provisioned yet."
		case !row.Found:
			statusStr = red("[MISSING]")
			details = "Recorded but not found on the platform."
		case row.Drift != "":
			driftCount++
			statusStr = red("[DRIFT]")
			details = "Recorded outputs differ from live values (see below)."
		case row.Snapshot.Failed():
			statusStr = red("[FAILED]")
			details = row.Snapshot.Detail
		case row.Snapshot.Ready():
			statusStr = green("[OK]")
			details = row.Snapshot.Detail
		default:
			statusStr = yellow(fmt.Sprintf("[%s]", row.Snapshot.Status))
			details = row.Snapshot.Detail
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\n", statusStr, row.Step, details)
	}

	if driftCount > 0 {
		fmt.Fprintln(tw, "\nDrift details:")
		for _, row := range rows {
			if row.Drift == "" {
				continue
			}
			fmt.Fprintf(tw, "\n%s:\n%s\n", row.Step, indent(row.Drift, "  "))
		}
	}

	return nil
}

func formatOutputs(outputs domain.Outputs) string {
	if len(outputs) == 0 {
		return ""
	}
	// Pick the single most useful identifier rather than dumping the map.
	for _, key := range []string{
		domain.KeyKnowledgeBaseID, domain.KeyDataSourceID, domain.KeyCollectionEndpoint,
		domain.KeyIndexName, domain.KeyRoleARN, domain.KeyAccessPolicyName,
	} {
		if v, ok := outputs[key]; ok && v != "" {
			return fmt.Sprintf("%s=%s", key, v)
		}
	}
	return ""
}

func errorKind(err error) string {
	code := apperrors.GetCode(err)
	if code == "" {
		return "error"
	}
	return string(code)
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(10 * time.Millisecond).String()
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
