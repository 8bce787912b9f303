package tool

import (
	"context"
	"sync"
)

// MockRunner implements [Runner] for testing without spawning processes.
//
// Every invocation is recorded. OnRun, when set, decides the exit code and may
// create the files a real tool would write. MockRunner is safe for concurrent
// use.
type MockRunner struct {
	// OnRun returns the exit code and error for an invocation.
	// When nil, every invocation succeeds with exit code 0.
	OnRun func(inv Invocation) (int, error)

	mu          sync.Mutex
	invocations []Invocation
}

// Run records the invocation and returns the scripted outcome.
func (m *MockRunner) Run(ctx context.Context, inv Invocation) (StageResult, error) {
	m.mu.Lock()
	m.invocations = append(m.invocations, inv)
	m.mu.Unlock()

	result := StageResult{
		SampleID: inv.SampleID,
		Stage:    inv.Stage,
		Command:  inv.Command,
		LogPath:  inv.LogPath,
	}
	if m.OnRun == nil {
		return result, nil
	}
	code, err := m.OnRun(inv)
	result.ExitCode = code
	return result, err
}

// Invocations returns a copy of all recorded invocations in call order.
func (m *MockRunner) Invocations() []Invocation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Invocation, len(m.invocations))
	copy(out, m.invocations)
	return out
}

// Stages returns the stage name of each recorded invocation for sampleID.
func (m *MockRunner) Stages(sampleID string) []string {
	var stages []string
	for _, inv := range m.Invocations() {
		if inv.SampleID == sampleID {
			stages = append(stages, inv.Stage)
		}
	}
	return stages
}
