// Package sample discovers paired-end read files and groups them into samples.
//
// Discovery is a pure filesystem pass: no tools are invoked and nothing is
// written. The orchestrator consumes the materialized [Discovery] afterwards,
// which keeps pairing logic testable on its own.
//
// Key types:
//   - [Rule] is one naming convention mapping a forward read to its mate
//   - [Unit] is one discovered forward/reverse pair with a sample id
//   - [Skipped] records a forward read that could not be paired
//   - [Discovery] is the ordered result of [Discover]
package sample

import (
	"path/filepath"
	"strings"
)

// Rule is a paired-end naming convention.
//
// ForwardGlob selects forward reads inside the input directory. The mate of
// a forward read is found by replacing ForwardMarker with ReverseMarker in
// its file name, for example "_R1_001" → "_R2_001" or "_1." → "_2.".
type Rule struct {
	ForwardGlob   string
	ForwardMarker string
	ReverseMarker string
}

// DefaultRules returns the conventions recognised when none are configured.
func DefaultRules() []Rule {
	return []Rule{
		{ForwardGlob: "*_R1_001.fastq.gz", ForwardMarker: "_R1_001", ReverseMarker: "_R2_001"},
		{ForwardGlob: "*_R1.fastq.gz", ForwardMarker: "_R1.", ReverseMarker: "_R2."},
		{ForwardGlob: "*_1.fastq.gz", ForwardMarker: "_1.", ReverseMarker: "_2."},
	}
}

// Mate returns the expected reverse-read path for forwardPath.
//
// Only the last occurrence of the marker in the file name is replaced, so
// directory names and earlier parts of the name are never rewritten. ok is
// false when the file name does not contain the marker. Mate does not touch
// the filesystem.
func (r Rule) Mate(forwardPath string) (reversePath string, ok bool) {
	dir, base := filepath.Split(forwardPath)
	idx := strings.LastIndex(base, r.ForwardMarker)
	if idx < 0 || r.ForwardMarker == "" {
		return "", false
	}
	mate := base[:idx] + r.ReverseMarker + base[idx+len(r.ForwardMarker):]
	return dir + mate, true
}

// SampleID derives the sample identifier from a forward-read path.
//
// The forward marker and everything after it are dropped from the file name,
// then the first two underscore-delimited tokens of what remains are kept:
//
//	s1_R1_001.fastq.gz          → s1
//	Liver_S3_L001_R1_001.fastq.gz → Liver_S3
//	SRR0001_1.fastq.gz          → SRR0001
//
// The result is deterministic but not guaranteed unique; use
// [Discovery.Validate] to detect collisions.
func (r Rule) SampleID(forwardPath string) string {
	base := filepath.Base(forwardPath)
	if idx := strings.LastIndex(base, r.ForwardMarker); idx > 0 && r.ForwardMarker != "" {
		base = base[:idx]
	} else {
		base = trimReadExtensions(base)
	}
	tokens := strings.SplitN(base, "_", 3)
	if len(tokens) > 2 {
		tokens = tokens[:2]
	}
	return strings.Join(tokens, "_")
}

// readExtensions are stripped when a file name carries no usable marker.
var readExtensions = []string{".gz", ".fastq", ".fq"}

func trimReadExtensions(name string) string {
	for _, ext := range readExtensions {
		name = strings.TrimSuffix(name, ext)
	}
	return name
}
