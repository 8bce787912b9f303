// Package stage defines the pipeline stages and the per-sample state machine.
//
// The per-sample chain is raw-qc → trim → post-qc; each step names the state
// a sample must be in to run it and the state it moves to on success. The
// aggregate stage runs once per run after every sample reaches a terminal
// state, so it is not part of the chain.
//
// Key types:
//   - [Name] identifies a stage
//   - [Step] is one transition in the per-sample chain
//   - [Layout] is the output directory layout of one run
//   - [Commands] builds argument lists for the external tools
package stage

import (
	"errors"

	"readqc/internal/sample"
)

// Name identifies a pipeline stage.
type Name string

// Stage names in execution order.
const (
	RawQC     Name = "raw-qc"
	Trim      Name = "trim"
	PostQC    Name = "post-qc"
	Aggregate Name = "aggregate"
)

// ErrSampleComplete is returned by [Remaining] for a sample that already
// reached a terminal state. Callers should skip the sample, not fail it.
var ErrSampleComplete = errors.New("sample is in a terminal state, no stage needed")

// Step is a single transition in the per-sample chain.
type Step struct {
	// Stage is the stage to run.
	Stage Name

	// From is the state a sample must be in for this step to run.
	From sample.State

	// To is the state the sample moves to when the step succeeds.
	To sample.State
}

// chain is the per-sample transition order.
var chain = []Step{
	{Stage: RawQC, From: sample.StateDiscovered, To: sample.StateRawQCDone},
	{Stage: Trim, From: sample.StateRawQCDone, To: sample.StateTrimmed},
	{Stage: PostQC, From: sample.StateTrimmed, To: sample.StatePostQCDone},
}

// Chain returns the per-sample steps in execution order.
func Chain() []Step {
	out := make([]Step, len(chain))
	copy(out, chain)
	return out
}

// Remaining returns the steps still ahead of a sample in state s.
//
// Returns [ErrSampleComplete] for terminal states.
func Remaining(s sample.State) ([]Step, error) {
	if s.Terminal() {
		return nil, ErrSampleComplete
	}
	for i, step := range chain {
		if step.From == s {
			return Chain()[i:], nil
		}
	}
	return nil, ErrSampleComplete
}

// LogName returns the log file base name for a stage, matching the tool it
// runs: fastqc_pre, fastp, fastqc_post and multiqc_final.
func (n Name) LogName() string {
	switch n {
	case RawQC:
		return "fastqc_pre"
	case Trim:
		return "fastp"
	case PostQC:
		return "fastqc_post"
	case Aggregate:
		return "multiqc_final"
	}
	return string(n)
}
