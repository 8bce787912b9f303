// Package report holds the run report and checks the aggregate artifact.
//
// A [RunReport] is built once at the end of a run from the collected stage
// results and is not modified afterwards. It is persisted as YAML next to
// the run's outputs so a finished run can be inspected later.
//
// Key types:
//   - [Status] is the outcome of [Verify] on the aggregate artifact
//   - [RunReport] is the complete record of one run
//   - [Warning] is one non-fatal anomaly surfaced to the operator
//   - [Writer] persists a RunReport; [ReadFile] loads it back
package report

import (
	"os"
	"time"

	"readqc/internal/sample"
	"readqc/internal/tool"
)

// Status is the advisory state of the aggregate report artifact.
type Status string

// Aggregate artifact states.
const (
	StatusPresent Status = "present"
	StatusEmpty   Status = "empty"
	StatusMissing Status = "missing"
)

// Verify checks the aggregate artifact at path.
//
// Present requires a regular file with size > 0. The result is advisory and
// never changes a run's exit status.
func Verify(path string) Status {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return StatusMissing
	}
	if info.Size() == 0 {
		return StatusEmpty
	}
	return StatusPresent
}

// WarningKind classifies a non-fatal anomaly.
type WarningKind string

// Warning kinds. None of them abort a run.
const (
	WarnMissingMate      WarningKind = "missing-mate"
	WarnUnreadableInput  WarningKind = "unreadable-input"
	WarnStageFailure     WarningKind = "stage-failure"
	WarnToleratedFailure WarningKind = "tolerated-failure"
	WarnMissingOutput    WarningKind = "missing-output"
	WarnLogWrite         WarningKind = "log-write-failure"
	WarnReportMissing    WarningKind = "aggregate-report-missing"
	WarnReportEmpty      WarningKind = "aggregate-report-empty"
	WarnAggregateFailed  WarningKind = "aggregate-failure"
)

// WarningKinds lists every kind in display order.
var WarningKinds = []WarningKind{
	WarnMissingMate,
	WarnUnreadableInput,
	WarnStageFailure,
	WarnToleratedFailure,
	WarnMissingOutput,
	WarnLogWrite,
	WarnReportMissing,
	WarnReportEmpty,
	WarnAggregateFailed,
}

// Warning is one non-fatal anomaly recorded during a run.
type Warning struct {
	Kind     WarningKind `yaml:"kind"`
	SampleID string      `yaml:"sample_id,omitempty"`
	Stage    string      `yaml:"stage,omitempty"`
	Message  string      `yaml:"message"`
}

// SampleOutcome is the terminal state of one sample.
type SampleOutcome struct {
	SampleID    string       `yaml:"sample_id"`
	ForwardPath string       `yaml:"forward_path"`
	ReversePath string       `yaml:"reverse_path"`
	State       sample.State `yaml:"state"`
	FailedAt    string       `yaml:"failed_at,omitempty"`
	Reason      string       `yaml:"reason,omitempty"`

	// ReadsBefore and ReadsAfter come from fastp's JSON report when present.
	ReadsBefore int64 `yaml:"reads_before,omitempty"`
	ReadsAfter  int64 `yaml:"reads_after,omitempty"`
}

// Succeeded reports whether the sample completed every per-sample stage.
func (o SampleOutcome) Succeeded() bool {
	return o.State == sample.StatePostQCDone
}

// RunReport is the complete, immutable record of one run.
type RunReport struct {
	RunID      string    `yaml:"run_id"`
	StartedAt  time.Time `yaml:"started_at"`
	FinishedAt time.Time `yaml:"finished_at"`
	InputDir   string    `yaml:"input_dir"`
	OutputDir  string    `yaml:"output_dir"`
	Threads    int       `yaml:"threads"`

	Samples  []SampleOutcome    `yaml:"samples"`
	Skipped  []sample.Skipped   `yaml:"skipped,omitempty"`
	Results  []tool.StageResult `yaml:"results"`
	Warnings []Warning          `yaml:"warnings,omitempty"`

	// Aggregate is the single aggregate-stage result; nil only if the
	// aggregator could not be started.
	Aggregate *tool.StageResult `yaml:"aggregate,omitempty"`

	ReportPath   string `yaml:"report_path"`
	ReportStatus Status `yaml:"report_status"`
}

// Duration returns the wall-clock length of the run.
func (r *RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Counts returns how many samples completed and how many failed.
func (r *RunReport) Counts() (completed, failed int) {
	for _, s := range r.Samples {
		if s.Succeeded() {
			completed++
		} else {
			failed++
		}
	}
	return completed, failed
}

// WarningsOf returns the warnings of the given kind in recorded order.
func (r *RunReport) WarningsOf(kind WarningKind) []Warning {
	var out []Warning
	for _, w := range r.Warnings {
		if w.Kind == kind {
			out = append(out, w)
		}
	}
	return out
}

// Outcome returns the outcome for sampleID.
func (r *RunReport) Outcome(sampleID string) (SampleOutcome, bool) {
	for _, s := range r.Samples {
		if s.SampleID == sampleID {
			return s, true
		}
	}
	return SampleOutcome{}, false
}
