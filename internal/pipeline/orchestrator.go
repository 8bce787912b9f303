// Package pipeline runs paired-end samples through raw QC, trimming, post-trim
// QC and a single aggregate report.
//
// The [Orchestrator] drives every discovered sample from its current state to
// a terminal state, one global stage at a time. A stage does not start until
// every sample has finished the previous one. A sample that fails is marked
// failed and takes no further part, but its siblings continue and the
// aggregate stage always runs.
//
// Key concepts:
//   - Stage order comes from [stage.Chain]
//   - Each invocation goes through a [tool.Runner]
//   - Progress is reported through [Progress]
//   - The outcome is an immutable [report.RunReport]
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"readqc/internal/fastp"
	"readqc/internal/fastq"
	runlog "readqc/internal/log"
	"readqc/internal/report"
	"readqc/internal/sample"
	"readqc/internal/stage"
	"readqc/internal/tool"
)

// totalStages counts the per-sample chain plus the aggregate stage.
const totalStages = 4

// Progress receives run events for display.
//
// Calls are serialized by the orchestrator. The output package's Printer
// implements this interface.
type Progress interface {
	RunHeader(runID, inputDir, outputDir string, samples, threads int)
	StageStart(index, total int, name, scope string)
	StageResult(r tool.StageResult)
	Warning(w report.Warning)
}

// Orchestrator runs one pipeline invocation at a time.
//
// Orchestrator uses dependency injection for testability: the [tool.Runner]
// executes tools and [Progress] displays events. Use [NewOrchestrator] to
// create an instance and [Orchestrator.Run] to execute a run.
type Orchestrator struct {
	runner    tool.Runner
	progress  Progress
	preflight func(commands ...string) error
	probe     func(forward, reverse string) error
	now       func() time.Time
}

// NewOrchestrator creates an Orchestrator with the required dependencies.
//
// Tools are checked with [tool.Preflight] and inputs with [fastq.ProbePair]
// unless replaced with [Orchestrator.SetPreflight].
func NewOrchestrator(runner tool.Runner, progress Progress) *Orchestrator {
	return &Orchestrator{
		runner:    runner,
		progress:  progress,
		preflight: tool.Preflight,
		probe:     fastq.ProbePair,
		now:       time.Now,
	}
}

// SetPreflight replaces the tool availability check.
//
// Tests pair this with a [tool.MockRunner] so no real tools are needed.
func (o *Orchestrator) SetPreflight(fn func(commands ...string) error) {
	o.preflight = fn
}

// sampleRun is the mutable per-sample record for one run. Each sampleRun is
// touched by at most one goroutine per stage, and the stage barrier orders
// those accesses.
type sampleRun struct {
	unit        sample.Unit
	failedAt    stage.Name
	reason      string
	readsBefore int64
	readsAfter  int64
}

func (s *sampleRun) fail(at stage.Name, reason string) {
	s.unit.State = sample.StateFailed
	s.failedAt = at
	s.reason = reason
}

// run holds the shared state of one [Orchestrator.Run] call.
type run struct {
	cfg      RunConfig
	layout   stage.Layout
	commands stage.Commands
	logger   *zap.Logger

	mu       sync.Mutex
	results  []tool.StageResult
	warnings []report.Warning
}

// Run executes the full pipeline for cfg.
//
// Run returns an error only when the run cannot start: [ErrConfig] for
// configuration problems and [tool.ErrToolUnavailable] when a tool is
// missing. Once stages begin, per-sample failures and an absent aggregate
// report are recorded in the returned report, never returned as errors. Tool
// availability is checked before any output directory is created.
func (o *Orchestrator) Run(ctx context.Context, cfg RunConfig) (*report.RunReport, error) {
	startedAt := o.now()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if err := o.preflight(cfg.FastQC, cfg.Fastp, cfg.MultiQC); err != nil {
		return nil, err
	}

	discovery, err := sample.Discover(cfg.InputDir, cfg.Rules)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if err := discovery.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	layout := stage.Layout{Root: cfg.OutputDir}
	if err := layout.Create(); err != nil {
		return nil, fmt.Errorf("%w: output directory is not writable: %v", ErrConfig, err)
	}

	runID := uuid.NewString()
	r := &run{
		cfg:      cfg,
		layout:   layout,
		commands: cfg.commands(),
		logger:   zap.NewNop(),
	}

	logger, closeLog, err := runlog.Open(layout.RunLog(), cfg.LogLevel, runID)
	if err != nil {
		r.warn(o.progress, report.Warning{Kind: report.WarnLogWrite, Message: err.Error()})
	} else {
		r.logger = logger
		defer closeLog()
	}

	o.progress.RunHeader(runID, cfg.InputDir, cfg.OutputDir, len(discovery.Units), cfg.Threads)
	r.logger.Info("run started",
		zap.String("input_dir", cfg.InputDir),
		zap.String("output_dir", cfg.OutputDir),
		zap.Strings("sample_ids", discovery.SampleIDs()),
		zap.Int("skipped", len(discovery.Skipped)),
		zap.Int("threads", cfg.Threads),
		zap.Int("workers", cfg.workers()),
	)

	for _, s := range discovery.Skipped {
		r.warn(o.progress, report.Warning{
			Kind:     report.WarnMissingMate,
			SampleID: s.SampleID,
			Message:  fmt.Sprintf("no mate for %s (expected %s)", s.ForwardPath, s.ExpectedReverse),
		})
	}

	samples := make([]*sampleRun, len(discovery.Units))
	for i, u := range discovery.Units {
		samples[i] = &sampleRun{unit: u}
	}

	for i, step := range stage.Chain() {
		var active []*sampleRun
		for _, s := range samples {
			if due(s, step) {
				active = append(active, s)
			}
		}

		r.mu.Lock()
		o.progress.StageStart(i+1, totalStages, string(step.Stage), pluralize(len(active), "sample"))
		r.mu.Unlock()

		p := pool.New().WithMaxGoroutines(cfg.workers())
		for _, s := range active {
			p.Go(func() {
				o.runStep(ctx, r, step, s)
			})
		}
		p.Wait()
	}

	agg := o.aggregate(ctx, r)

	reportPath := layout.ReportPath(cfg.ReportFilename)
	status := report.Verify(reportPath)
	switch status {
	case report.StatusMissing:
		r.warn(o.progress, report.Warning{Kind: report.WarnReportMissing, Stage: string(stage.Aggregate), Message: "aggregate report not found at " + reportPath})
	case report.StatusEmpty:
		r.warn(o.progress, report.Warning{Kind: report.WarnReportEmpty, Stage: string(stage.Aggregate), Message: "aggregate report is empty at " + reportPath})
	}

	rr := &report.RunReport{
		RunID:        runID,
		StartedAt:    startedAt,
		FinishedAt:   o.now(),
		InputDir:     cfg.InputDir,
		OutputDir:    cfg.OutputDir,
		Threads:      cfg.Threads,
		Samples:      outcomes(samples),
		Skipped:      discovery.Skipped,
		Results:      r.results,
		Warnings:     r.warnings,
		Aggregate:    agg,
		ReportPath:   reportPath,
		ReportStatus: status,
	}

	completed, failed := rr.Counts()
	r.logger.Info("run finished",
		zap.Int("completed", completed),
		zap.Int("failed", failed),
		zap.String("report_status", string(status)),
		zap.Duration("duration", rr.Duration()),
	)

	writer := report.NewWriter(layout.RunReportPath())
	if err := writer.Write(rr); err != nil {
		// The report is already final; the failure is shown but not recorded in it.
		w := report.Warning{Kind: report.WarnLogWrite, Message: err.Error()}
		o.progress.Warning(w)
		r.logger.Warn("run report not written", zap.String("path", writer.Path()), zap.Error(err))
	} else {
		r.logger.Info("run report written", zap.String("path", writer.Path()))
	}

	return rr, nil
}

// due reports whether step is the next stage for s. Samples in a terminal
// state are never due.
func due(s *sampleRun, step stage.Step) bool {
	steps, err := stage.Remaining(s.unit.State)
	if err != nil {
		return false
	}
	return steps[0].Stage == step.Stage
}

// runStep runs one per-sample stage and moves the sample to its next state.
func (o *Orchestrator) runStep(ctx context.Context, r *run, step stage.Step, s *sampleRun) {
	id := s.unit.SampleID

	if err := ctx.Err(); err != nil {
		s.fail(step.Stage, "run cancelled")
		r.logger.Warn("stage skipped", zap.String("sample_id", id), zap.String("stage", string(step.Stage)), zap.Error(err))
		return
	}

	var inv tool.Invocation
	switch step.Stage {
	case stage.RawQC:
		if err := o.probe(s.unit.ForwardPath, s.unit.ReversePath); err != nil {
			s.fail(step.Stage, err.Error())
			r.warn(o.progress, report.Warning{Kind: report.WarnUnreadableInput, SampleID: id, Stage: string(step.Stage), Message: err.Error()})
			return
		}
		inv = r.invocation(id, step.Stage, r.cfg.FastQC,
			r.commands.FastQC(r.layout.PreTrimDir(), s.unit.ForwardPath, s.unit.ReversePath))

	case stage.Trim:
		if err := os.MkdirAll(r.layout.TrimmedDir(id), 0755); err != nil {
			s.fail(step.Stage, err.Error())
			r.warn(o.progress, report.Warning{Kind: report.WarnStageFailure, SampleID: id, Stage: string(step.Stage), Message: err.Error()})
			return
		}
		outR1, outR2 := r.layout.TrimmedReads(id)
		html, json := r.layout.FastpReports(id)
		inv = r.invocation(id, step.Stage, r.cfg.Fastp,
			r.commands.Fastp(s.unit.ForwardPath, s.unit.ReversePath, outR1, outR2, html, json))

	case stage.PostQC:
		outR1, outR2 := r.layout.TrimmedReads(id)
		inv = r.invocation(id, step.Stage, r.cfg.FastQC,
			r.commands.FastQC(r.layout.PostTrimDir(), outR1, outR2))

	default:
		s.fail(step.Stage, "unknown stage")
		return
	}

	res, err := o.runner.Run(ctx, inv)
	if err != nil {
		s.fail(step.Stage, err.Error())
		kind := report.WarnStageFailure
		if errors.Is(err, tool.ErrLogWrite) {
			kind = report.WarnLogWrite
		}
		r.warn(o.progress, report.Warning{Kind: kind, SampleID: id, Stage: string(step.Stage), Message: err.Error()})
		return
	}
	r.record(o.progress, res)

	if !res.Succeeded() {
		reason := exitReason(inv.Command, res.ExitCode)
		if step.Stage == stage.RawQC && r.cfg.RawQCTolerant {
			r.warn(o.progress, report.Warning{Kind: report.WarnToleratedFailure, SampleID: id, Stage: string(step.Stage), Message: reason + ", continuing"})
		} else {
			s.fail(step.Stage, reason)
			r.warn(o.progress, report.Warning{Kind: report.WarnStageFailure, SampleID: id, Stage: string(step.Stage), Message: reason + ", see " + res.LogPath})
			return
		}
	}

	if step.Stage == stage.Trim {
		if ok := o.checkTrimmed(r, s); !ok {
			return
		}
	}

	s.unit.State = step.To
}

// checkTrimmed requires both trimmed reads to be non-empty and reads the
// fastp JSON report for read counts. Counts are advisory.
func (o *Orchestrator) checkTrimmed(r *run, s *sampleRun) bool {
	id := s.unit.SampleID
	outR1, outR2 := r.layout.TrimmedReads(id)
	for _, p := range []string{outR1, outR2} {
		info, err := os.Stat(p)
		if err != nil || !info.Mode().IsRegular() || info.Size() == 0 {
			msg := "trimmed output missing or empty: " + p
			s.fail(stage.Trim, msg)
			r.warn(o.progress, report.Warning{Kind: report.WarnMissingOutput, SampleID: id, Stage: string(stage.Trim), Message: msg})
			return false
		}
	}

	_, jsonReport := r.layout.FastpReports(id)
	summary, err := fastp.ReadFile(jsonReport)
	if err != nil {
		r.logger.Debug("fastp summary unavailable", zap.String("sample_id", id), zap.Error(err))
		return true
	}
	s.readsBefore = summary.Before.TotalReads
	s.readsAfter = summary.After.TotalReads
	r.logger.Info("trim summary",
		zap.String("sample_id", id),
		zap.Int64("reads_before", s.readsBefore),
		zap.Int64("reads_after", s.readsAfter),
		zap.Float64("retained", summary.RetainedFraction()),
	)
	return true
}

// aggregate runs the aggregator exactly once, whatever the sample outcomes.
// Failures are warnings; the returned result is nil only when the tool could
// not be started.
func (o *Orchestrator) aggregate(ctx context.Context, r *run) *tool.StageResult {
	r.mu.Lock()
	o.progress.StageStart(totalStages, totalStages, string(stage.Aggregate), "run-level")
	r.mu.Unlock()

	inv := tool.Invocation{
		Stage:   string(stage.Aggregate),
		Command: r.cfg.MultiQC,
		Args:    r.commands.MultiQC(r.layout.MultiQCDir(), r.layout.PreTrimDir(), r.layout.PostTrimDir()),
		LogPath: r.layout.AggregateLog(),
		Timeout: r.cfg.StageTimeout,
	}

	res, err := o.runner.Run(ctx, inv)
	if err != nil {
		r.warn(o.progress, report.Warning{Kind: report.WarnAggregateFailed, Stage: inv.Stage, Message: err.Error()})
		return nil
	}
	r.record(o.progress, res)
	if !res.Succeeded() {
		r.warn(o.progress, report.Warning{Kind: report.WarnAggregateFailed, Stage: inv.Stage, Message: exitReason(inv.Command, res.ExitCode) + ", see " + res.LogPath})
	}
	return &res
}

func (r *run) invocation(sampleID string, name stage.Name, command string, args []string) tool.Invocation {
	return tool.Invocation{
		SampleID: sampleID,
		Stage:    string(name),
		Command:  command,
		Args:     args,
		LogPath:  r.layout.SampleLog(sampleID, name),
		Timeout:  r.cfg.StageTimeout,
	}
}

// record appends a result and reports it.
func (r *run) record(progress Progress, res tool.StageResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
	progress.StageResult(res)
	r.logger.Info("stage finished",
		zap.String("sample_id", res.SampleID),
		zap.String("stage", res.Stage),
		zap.String("command", res.Command),
		zap.Int("exit_code", res.ExitCode),
		zap.Duration("duration", res.Duration()),
		zap.String("log_path", res.LogPath),
	)
}

// warn appends a warning and reports it.
func (r *run) warn(progress Progress, w report.Warning) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, w)
	progress.Warning(w)
	r.logger.Warn(w.Message,
		zap.String("kind", string(w.Kind)),
		zap.String("sample_id", w.SampleID),
		zap.String("stage", w.Stage),
	)
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func exitReason(command string, code int) string {
	if code == tool.ExitTimeout {
		return command + " timed out"
	}
	return fmt.Sprintf("%s exited with code %d", command, code)
}

func outcomes(samples []*sampleRun) []report.SampleOutcome {
	out := make([]report.SampleOutcome, len(samples))
	for i, s := range samples {
		out[i] = report.SampleOutcome{
			SampleID:    s.unit.SampleID,
			ForwardPath: s.unit.ForwardPath,
			ReversePath: s.unit.ReversePath,
			State:       s.unit.State,
			FailedAt:    string(s.failedAt),
			Reason:      s.reason,
			ReadsBefore: s.readsBefore,
			ReadsAfter:  s.readsAfter,
		}
	}
	return out
}
