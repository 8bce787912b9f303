package sample

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrDuplicateSampleID is returned by [Discovery.Validate] when two pairs
// derive the same sample id. Colliding pairs are never merged.
var ErrDuplicateSampleID = errors.New("duplicate sample id")

// State is the per-sample progress through the pipeline.
type State string

// Sample states in transition order. [StateFailed] is terminal and can be
// entered from any non-terminal state.
const (
	StateDiscovered State = "discovered"
	StateRawQCDone  State = "raw-qc-done"
	StateTrimmed    State = "trimmed"
	StatePostQCDone State = "post-qc-done"
	StateFailed     State = "failed"
)

// Terminal reports whether no further stage runs for a sample in state s.
func (s State) Terminal() bool {
	return s == StatePostQCDone || s == StateFailed
}

// Unit is one forward/reverse read pair belonging to a single sample.
type Unit struct {
	// SampleID is derived from ForwardPath by [Rule.SampleID].
	SampleID string

	// ForwardPath and ReversePath are absolute paths to the R1 and R2 reads.
	ForwardPath string
	ReversePath string

	// Rule is the naming convention that produced this pair.
	Rule Rule

	// State is [StateDiscovered] for every unit returned by [Discover].
	State State
}

// SkipReason classifies why a forward read did not become a [Unit].
type SkipReason string

// SkipMissingMate means the expected reverse read does not exist.
const SkipMissingMate SkipReason = "missing-mate"

// Skipped records a forward read that was found but could not be paired.
type Skipped struct {
	Reason          SkipReason `yaml:"reason"`
	SampleID        string     `yaml:"sample_id"`
	ForwardPath     string     `yaml:"forward_path"`
	ExpectedReverse string     `yaml:"expected_reverse"`
}

// String returns the operator-facing warning text.
func (s Skipped) String() string {
	return fmt.Sprintf("%s: %s (expected mate %s)", s.SampleID, s.Reason, filepath.Base(s.ExpectedReverse))
}

// Discovery is the ordered, deduplicated result of a discovery pass.
type Discovery struct {
	// Units are the paired samples in rule order, then lexical file order.
	Units []Unit

	// Skipped lists forward reads without a mate, in the same order.
	Skipped []Skipped
}

// Discover enumerates forward reads under dir using rules in order.
//
// Each forward read is processed under the first rule whose glob matches it;
// later rules never see a path an earlier rule already produced. A forward
// read whose mate is absent is reported in [Discovery.Skipped] rather than
// dropped. An empty directory yields an empty Discovery and no error.
//
// Discover returns an error only when dir cannot be read or a glob is
// malformed.
func Discover(dir string, rules []Rule) (*Discovery, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read input directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("input path is not a directory: %s", dir)
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve input directory: %w", err)
	}

	d := &Discovery{}
	seen := make(map[string]bool)

	for _, rule := range rules {
		matches, err := filepath.Glob(filepath.Join(absDir, rule.ForwardGlob))
		if err != nil {
			return nil, fmt.Errorf("bad forward glob %q: %w", rule.ForwardGlob, err)
		}
		sort.Strings(matches)

		for _, match := range matches {
			if fi, err := os.Stat(match); err != nil || fi.IsDir() {
				continue
			}
			key := resolve(match)
			if seen[key] {
				continue
			}
			seen[key] = true

			reverse, ok := rule.Mate(match)
			if !ok {
				continue
			}
			id := rule.SampleID(match)

			if !isFile(reverse) {
				d.Skipped = append(d.Skipped, Skipped{
					Reason:          SkipMissingMate,
					SampleID:        id,
					ForwardPath:     match,
					ExpectedReverse: reverse,
				})
				continue
			}

			d.Units = append(d.Units, Unit{
				SampleID:    id,
				ForwardPath: match,
				ReversePath: reverse,
				Rule:        rule,
				State:       StateDiscovered,
			})
		}
	}

	return d, nil
}

// Validate checks that every sample id in the discovery is unique.
//
// The returned error wraps [ErrDuplicateSampleID] and names each colliding
// id with the forward reads that produced it.
func (d *Discovery) Validate() error {
	byID := make(map[string][]string)
	var order []string
	for _, u := range d.Units {
		if _, ok := byID[u.SampleID]; !ok {
			order = append(order, u.SampleID)
		}
		byID[u.SampleID] = append(byID[u.SampleID], filepath.Base(u.ForwardPath))
	}

	var dups []string
	for _, id := range order {
		if files := byID[id]; len(files) > 1 {
			dups = append(dups, fmt.Sprintf("%s (%s)", id, strings.Join(files, ", ")))
		}
	}
	if len(dups) > 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateSampleID, strings.Join(dups, "; "))
	}
	return nil
}

// SampleIDs returns the ids of all units in discovery order.
func (d *Discovery) SampleIDs() []string {
	ids := make([]string, len(d.Units))
	for i, u := range d.Units {
		ids[i] = u.SampleID
	}
	return ids
}

// resolve returns a canonical key for path, following symlinks when possible.
func resolve(path string) string {
	if real, err := filepath.EvalSymlinks(path); err == nil {
		return real
	}
	return path
}

func isFile(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}
