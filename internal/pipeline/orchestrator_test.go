package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"readqc/internal/config"
	"readqc/internal/output"
	"readqc/internal/report"
	"readqc/internal/sample"
	"readqc/internal/stage"
	"readqc/internal/tool"
)

const fastqRecord = "@read1\nACGTACGT\n+\nIIIIIIII\n"

// writeReads creates FASTQ files under dir.
func writeReads(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(fastqRecord), 0644))
	}
}

// argAfter returns the argument following flag.
func argAfter(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

// fakeTools returns an OnRun that behaves like the real tools: fastp writes
// both trimmed reads and its JSON report, multiqc writes the HTML report.
func fakeTools(t *testing.T) func(inv tool.Invocation) (int, error) {
	return func(inv tool.Invocation) (int, error) {
		switch inv.Command {
		case "fastp":
			for _, flag := range []string{"-o", "-O"} {
				require.NoError(t, os.WriteFile(argAfter(inv.Args, flag), []byte(fastqRecord), 0644))
			}
			js := `{"summary":{"before_filtering":{"total_reads":2000},"after_filtering":{"total_reads":1800}}}`
			require.NoError(t, os.WriteFile(argAfter(inv.Args, "-j"), []byte(js), 0644))
		case "multiqc":
			path := filepath.Join(argAfter(inv.Args, "-o"), argAfter(inv.Args, "-n"))
			require.NoError(t, os.WriteFile(path, []byte("<html></html>"), 0644))
		}
		return 0, nil
	}
}

func testConfig(t *testing.T, input string) RunConfig {
	t.Helper()
	cfg, err := NewRunConfig(config.DefaultConfig(), input, filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)
	cfg.LogLevel = zapcore.DebugLevel
	return cfg
}

func newTestOrchestrator(runner tool.Runner) *Orchestrator {
	o := NewOrchestrator(runner, output.NewPrinterWithWriter(io.Discard))
	o.SetPreflight(func(...string) error { return nil })
	return o
}

func countStage(invs []tool.Invocation, name stage.Name) int {
	n := 0
	for _, inv := range invs {
		if inv.Stage == string(name) {
			n++
		}
	}
	return n
}

func TestRun_FailureIsolation(t *testing.T) {
	input := t.TempDir()
	writeReads(t, input,
		"s1_R1_001.fastq.gz", "s1_R2_001.fastq.gz",
		"s2_1.fastq.gz",
		"s3_R1.fastq.gz", "s3_R2.fastq.gz",
	)

	fake := fakeTools(t)
	runner := &tool.MockRunner{OnRun: func(inv tool.Invocation) (int, error) {
		if inv.Command == "fastp" && inv.SampleID == "s3" {
			return 1, nil
		}
		return fake(inv)
	}}

	cfg := testConfig(t, input)
	rr, err := newTestOrchestrator(runner).Run(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{"raw-qc", "trim", "post-qc"}, runner.Stages("s1"))
	assert.Equal(t, []string{"raw-qc", "trim"}, runner.Stages("s3"))
	assert.Equal(t, 1, countStage(runner.Invocations(), stage.Aggregate))

	s1, ok := rr.Outcome("s1")
	require.True(t, ok)
	assert.Equal(t, sample.StatePostQCDone, s1.State)
	assert.Equal(t, int64(2000), s1.ReadsBefore)
	assert.Equal(t, int64(1800), s1.ReadsAfter)

	s3, ok := rr.Outcome("s3")
	require.True(t, ok)
	assert.Equal(t, sample.StateFailed, s3.State)
	assert.Equal(t, "trim", s3.FailedAt)
	assert.Equal(t, "fastp exited with code 1", s3.Reason)

	require.Len(t, rr.Skipped, 1)
	assert.Equal(t, "s2", rr.Skipped[0].SampleID)
	require.Len(t, rr.WarningsOf(report.WarnMissingMate), 1)
	require.Len(t, rr.WarningsOf(report.WarnStageFailure), 1)
	assert.Equal(t, "s3", rr.WarningsOf(report.WarnStageFailure)[0].SampleID)

	assert.Equal(t, report.StatusPresent, rr.ReportStatus)
	require.NotNil(t, rr.Aggregate)
	assert.FileExists(t, filepath.Join(cfg.OutputDir, "run_report.yaml"))
	assert.FileExists(t, filepath.Join(cfg.OutputDir, "logs", "pipeline.jsonl"))
	assert.NotEmpty(t, rr.RunID)
}

func TestRun_InvocationArguments(t *testing.T) {
	input := t.TempDir()
	writeReads(t, input, "s1_R1_001.fastq.gz", "s1_R2_001.fastq.gz")

	runner := &tool.MockRunner{OnRun: fakeTools(t)}
	cfg := testConfig(t, input)
	_, err := newTestOrchestrator(runner).Run(context.Background(), cfg)
	require.NoError(t, err)

	invs := runner.Invocations()
	require.Len(t, invs, 4)
	layout := stage.Layout{Root: cfg.OutputDir}

	assert.Equal(t, "fastqc", invs[0].Command)
	assert.Equal(t, []string{"-t", "8", "-o", layout.PreTrimDir(),
		filepath.Join(input, "s1_R1_001.fastq.gz"), filepath.Join(input, "s1_R2_001.fastq.gz")}, invs[0].Args)
	assert.Equal(t, layout.SampleLog("s1", stage.RawQC), invs[0].LogPath)

	assert.Equal(t, "fastp", invs[1].Command)
	outR1, _ := layout.TrimmedReads("s1")
	assert.Equal(t, outR1, argAfter(invs[1].Args, "-o"))
	assert.Contains(t, invs[1].Args, "--detect_adapter_for_pe")

	assert.Equal(t, "fastqc", invs[2].Command)
	assert.Equal(t, layout.PostTrimDir(), argAfter(invs[2].Args, "-o"))

	assert.Equal(t, "multiqc", invs[3].Command)
	assert.Empty(t, invs[3].SampleID)
	assert.Equal(t, layout.AggregateLog(), invs[3].LogPath)
	assert.Equal(t, []string{"-f", "-m", "fastqc", "-o", layout.MultiQCDir(), "-n", "multiqc_report.html",
		layout.PreTrimDir(), layout.PostTrimDir()}, invs[3].Args)
}

func TestRun_NoSamplesStillAggregates(t *testing.T) {
	runner := &tool.MockRunner{}
	cfg := testConfig(t, t.TempDir())

	var out bytes.Buffer
	o := NewOrchestrator(runner, output.NewPrinterWithWriter(&out))
	o.SetPreflight(func(...string) error { return nil })

	rr, err := o.Run(context.Background(), cfg)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "[1/4] raw-qc (0 samples)")
	assert.Contains(t, out.String(), "[4/4] aggregate (run-level)")

	invs := runner.Invocations()
	require.Len(t, invs, 1)
	assert.Equal(t, string(stage.Aggregate), invs[0].Stage)
	assert.Empty(t, rr.Samples)
	assert.Equal(t, report.StatusMissing, rr.ReportStatus)
	assert.Len(t, rr.WarningsOf(report.WarnReportMissing), 1)

	for _, dir := range (stage.Layout{Root: cfg.OutputDir}).Dirs() {
		assert.DirExists(t, dir)
	}
}

func TestRun_AllSamplesFailStillAggregates(t *testing.T) {
	input := t.TempDir()
	writeReads(t, input, "a_R1.fastq.gz", "a_R2.fastq.gz", "b_R1.fastq.gz", "b_R2.fastq.gz")

	runner := &tool.MockRunner{OnRun: func(inv tool.Invocation) (int, error) {
		if inv.Command == "multiqc" {
			return 0, nil
		}
		return 2, nil
	}}

	rr, err := newTestOrchestrator(runner).Run(context.Background(), testConfig(t, input))
	require.NoError(t, err)

	completed, failed := rr.Counts()
	assert.Equal(t, 0, completed)
	assert.Equal(t, 2, failed)
	assert.Equal(t, 1, countStage(runner.Invocations(), stage.Aggregate))
	assert.Equal(t, 0, countStage(runner.Invocations(), stage.Trim))
}

func TestRun_MissingToolCreatesNothing(t *testing.T) {
	input := t.TempDir()
	writeReads(t, input, "s1_R1.fastq.gz", "s1_R2.fastq.gz")
	runner := &tool.MockRunner{}
	cfg := testConfig(t, input)

	o := NewOrchestrator(runner, output.NewPrinterWithWriter(io.Discard))
	var checked []string
	o.SetPreflight(func(commands ...string) error {
		checked = commands
		return fmt.Errorf("%w: not found in PATH: [fastp]", tool.ErrToolUnavailable)
	})

	_, err := o.Run(context.Background(), cfg)

	require.Error(t, err)
	assert.True(t, errors.Is(err, tool.ErrToolUnavailable))
	assert.Equal(t, []string{"fastqc", "fastp", "multiqc"}, checked)
	assert.Empty(t, runner.Invocations())
	assert.NoDirExists(t, cfg.OutputDir)
}

func TestRun_ConfigErrors(t *testing.T) {
	notADir := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(notADir, []byte("x"), 0644))

	tests := []struct {
		name  string
		input string
	}{
		{name: "missing input", input: filepath.Join(t.TempDir(), "nope")},
		{name: "input is a file", input: notADir},
		{name: "empty input", input: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &tool.MockRunner{}
			cfg := testConfig(t, tt.input)

			o := NewOrchestrator(runner, output.NewPrinterWithWriter(io.Discard))
			o.SetPreflight(func(...string) error {
				t.Fatal("preflight must not run before input validation")
				return nil
			})

			_, err := o.Run(context.Background(), cfg)
			assert.True(t, errors.Is(err, ErrConfig))
			assert.NoDirExists(t, cfg.OutputDir)
		})
	}
}

func TestRun_SampleIDCollision(t *testing.T) {
	input := t.TempDir()
	writeReads(t, input,
		"a_S1_R1_001.fastq.gz", "a_S1_R2_001.fastq.gz",
		"a_S1_R1.fastq.gz", "a_S1_R2.fastq.gz",
	)
	runner := &tool.MockRunner{}
	cfg := testConfig(t, input)

	_, err := newTestOrchestrator(runner).Run(context.Background(), cfg)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfig))
	assert.Contains(t, err.Error(), "a_S1")
	assert.Empty(t, runner.Invocations())
	assert.NoDirExists(t, cfg.OutputDir)
}

func TestRun_UnwritableOutput(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	cfg := testConfig(t, t.TempDir())
	cfg.OutputDir = filepath.Join(blocker, "out")

	_, err := newTestOrchestrator(&tool.MockRunner{}).Run(context.Background(), cfg)
	assert.True(t, errors.Is(err, ErrConfig))
}

func TestRun_RawQCFailure(t *testing.T) {
	failRaw := func(t *testing.T) func(inv tool.Invocation) (int, error) {
		fake := fakeTools(t)
		return func(inv tool.Invocation) (int, error) {
			if inv.Stage == string(stage.RawQC) {
				return 1, nil
			}
			return fake(inv)
		}
	}

	t.Run("fails the sample by default", func(t *testing.T) {
		input := t.TempDir()
		writeReads(t, input, "s1_R1.fastq.gz", "s1_R2.fastq.gz")
		runner := &tool.MockRunner{OnRun: failRaw(t)}

		rr, err := newTestOrchestrator(runner).Run(context.Background(), testConfig(t, input))
		require.NoError(t, err)

		o, _ := rr.Outcome("s1")
		assert.Equal(t, sample.StateFailed, o.State)
		assert.Equal(t, "raw-qc", o.FailedAt)
		assert.Equal(t, []string{"raw-qc"}, runner.Stages("s1"))
	})

	t.Run("continues when tolerated", func(t *testing.T) {
		input := t.TempDir()
		writeReads(t, input, "s1_R1.fastq.gz", "s1_R2.fastq.gz")
		runner := &tool.MockRunner{OnRun: failRaw(t)}
		cfg := testConfig(t, input)
		cfg.RawQCTolerant = true

		rr, err := newTestOrchestrator(runner).Run(context.Background(), cfg)
		require.NoError(t, err)

		o, _ := rr.Outcome("s1")
		assert.Equal(t, sample.StatePostQCDone, o.State)
		assert.Len(t, rr.WarningsOf(report.WarnToleratedFailure), 1)
		assert.Empty(t, rr.WarningsOf(report.WarnStageFailure))
	})
}

func TestRun_UnreadableInput(t *testing.T) {
	input := t.TempDir()
	writeReads(t, input, "good_R1.fastq.gz", "good_R2.fastq.gz", "bad_R2.fastq.gz")
	require.NoError(t, os.WriteFile(filepath.Join(input, "bad_R1.fastq.gz"), []byte("garbage\n"), 0644))

	runner := &tool.MockRunner{OnRun: fakeTools(t)}
	rr, err := newTestOrchestrator(runner).Run(context.Background(), testConfig(t, input))
	require.NoError(t, err)

	bad, _ := rr.Outcome("bad")
	assert.Equal(t, sample.StateFailed, bad.State)
	assert.Equal(t, "raw-qc", bad.FailedAt)
	assert.Empty(t, runner.Stages("bad"))
	require.Len(t, rr.WarningsOf(report.WarnUnreadableInput), 1)

	good, _ := rr.Outcome("good")
	assert.Equal(t, sample.StatePostQCDone, good.State)
}

func TestRun_EmptyTrimmedOutputFailsSample(t *testing.T) {
	input := t.TempDir()
	writeReads(t, input, "s1_R1.fastq.gz", "s1_R2.fastq.gz")

	fake := fakeTools(t)
	runner := &tool.MockRunner{OnRun: func(inv tool.Invocation) (int, error) {
		code, err := fake(inv)
		if inv.Command == "fastp" {
			require.NoError(t, os.WriteFile(argAfter(inv.Args, "-O"), nil, 0644))
		}
		return code, err
	}}

	rr, err := newTestOrchestrator(runner).Run(context.Background(), testConfig(t, input))
	require.NoError(t, err)

	o, _ := rr.Outcome("s1")
	assert.Equal(t, sample.StateFailed, o.State)
	assert.Equal(t, "trim", o.FailedAt)
	assert.Len(t, rr.WarningsOf(report.WarnMissingOutput), 1)
	assert.Equal(t, []string{"raw-qc", "trim"}, runner.Stages("s1"))
}

func TestRun_RunnerErrorIsolated(t *testing.T) {
	input := t.TempDir()
	writeReads(t, input, "a_R1.fastq.gz", "a_R2.fastq.gz", "b_R1.fastq.gz", "b_R2.fastq.gz")

	fake := fakeTools(t)
	runner := &tool.MockRunner{OnRun: func(inv tool.Invocation) (int, error) {
		if inv.SampleID == "a" && inv.Stage == string(stage.PostQC) {
			return 0, fmt.Errorf("%w: %s", tool.ErrLogWrite, inv.LogPath)
		}
		return fake(inv)
	}}

	rr, err := newTestOrchestrator(runner).Run(context.Background(), testConfig(t, input))
	require.NoError(t, err)

	a, _ := rr.Outcome("a")
	assert.Equal(t, "post-qc", a.FailedAt)
	b, _ := rr.Outcome("b")
	assert.Equal(t, sample.StatePostQCDone, b.State)
	assert.Len(t, rr.WarningsOf(report.WarnLogWrite), 1)
}

func TestRun_StageBarrierWithWorkers(t *testing.T) {
	input := t.TempDir()
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		writeReads(t, input, id+"_R1.fastq.gz", id+"_R2.fastq.gz")
	}

	runner := &tool.MockRunner{OnRun: fakeTools(t)}
	cfg := testConfig(t, input)
	cfg.Workers = 3

	rr, err := newTestOrchestrator(runner).Run(context.Background(), cfg)
	require.NoError(t, err)

	completed, _ := rr.Counts()
	assert.Equal(t, 5, completed)

	// Every invocation of a stage precedes every invocation of the next.
	order := map[string]int{"raw-qc": 0, "trim": 1, "post-qc": 2, "aggregate": 3}
	last := 0
	for _, inv := range runner.Invocations() {
		assert.GreaterOrEqual(t, order[inv.Stage], last, "stage %s ran out of order", inv.Stage)
		last = order[inv.Stage]
	}
	assert.Len(t, rr.Results, 16)
}

func TestRun_AggregateFailureIsWarning(t *testing.T) {
	runner := &tool.MockRunner{OnRun: func(inv tool.Invocation) (int, error) {
		return 0, fmt.Errorf("%w: multiqc", tool.ErrToolUnavailable)
	}}

	rr, err := newTestOrchestrator(runner).Run(context.Background(), testConfig(t, t.TempDir()))
	require.NoError(t, err)

	assert.Nil(t, rr.Aggregate)
	assert.Len(t, rr.WarningsOf(report.WarnAggregateFailed), 1)
	assert.Equal(t, report.StatusMissing, rr.ReportStatus)
}

func TestRun_CancelledContextSkipsSamples(t *testing.T) {
	input := t.TempDir()
	writeReads(t, input, "s1_R1.fastq.gz", "s1_R2.fastq.gz")
	runner := &tool.MockRunner{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rr, err := newTestOrchestrator(runner).Run(ctx, testConfig(t, input))
	require.NoError(t, err)

	o, _ := rr.Outcome("s1")
	assert.Equal(t, sample.StateFailed, o.State)
	assert.Equal(t, "run cancelled", o.Reason)
	assert.Empty(t, runner.Stages("s1"))
}

func TestDue(t *testing.T) {
	chain := stage.Chain()
	tests := []struct {
		name  string
		state sample.State
		want  []bool
	}{
		{name: "discovered", state: sample.StateDiscovered, want: []bool{true, false, false}},
		{name: "raw qc done", state: sample.StateRawQCDone, want: []bool{false, true, false}},
		{name: "trimmed", state: sample.StateTrimmed, want: []bool{false, false, true}},
		{name: "complete", state: sample.StatePostQCDone, want: []bool{false, false, false}},
		{name: "failed", state: sample.StateFailed, want: []bool{false, false, false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &sampleRun{unit: sample.Unit{SampleID: "s1", State: tt.state}}
			for i, step := range chain {
				assert.Equal(t, tt.want[i], due(s, step), "stage %s", step.Stage)
			}
		})
	}
}

func TestPluralize(t *testing.T) {
	assert.Equal(t, "0 samples", pluralize(0, "sample"))
	assert.Equal(t, "1 sample", pluralize(1, "sample"))
	assert.Equal(t, "3 samples", pluralize(3, "sample"))
}

func TestNewRunConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.QC.TolerateRawFailure = true
	cfg.Log.Level = "warn"

	rc, err := NewRunConfig(cfg, "/in", "/out")
	require.NoError(t, err)

	assert.Equal(t, "/in", rc.InputDir)
	assert.Equal(t, 8, rc.Threads)
	assert.Len(t, rc.Rules, 3)
	assert.Equal(t, "_R1_001", rc.Rules[0].ForwardMarker)
	assert.True(t, rc.RawQCTolerant)
	assert.Equal(t, zapcore.WarnLevel, rc.LogLevel)
	assert.Equal(t, 20, rc.Trim.QualifiedQuality)

	cfg.Log.Level = "chatty"
	_, err = NewRunConfig(cfg, "/in", "/out")
	assert.True(t, errors.Is(err, ErrConfig))
}
