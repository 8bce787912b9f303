// Package fastp reads the JSON report fastp writes with -j.
//
// Only the read and base counts before and after filtering are extracted;
// they are carried into the run report for the operator. fastp owns every
// other number in its report.
package fastp

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Counts are the totals fastp reports for one side of filtering.
type Counts struct {
	TotalReads int64   `json:"total_reads"`
	TotalBases int64   `json:"total_bases"`
	Q30Rate    float64 `json:"q30_rate"`
}

// FilteringResult is fastp's breakdown of why reads were dropped.
type FilteringResult struct {
	PassedFilterReads int64 `json:"passed_filter_reads"`
	LowQualityReads   int64 `json:"low_quality_reads"`
	TooManyNReads     int64 `json:"too_many_N_reads"`
	TooShortReads     int64 `json:"too_short_reads"`
}

// report mirrors the subset of fastp's JSON layout that is decoded.
type report struct {
	Summary struct {
		BeforeFiltering Counts `json:"before_filtering"`
		AfterFiltering  Counts `json:"after_filtering"`
	} `json:"summary"`
	FilteringResult FilteringResult `json:"filtering_result"`
}

// Summary is the parsed trimming outcome for one sample.
type Summary struct {
	Before    Counts
	After     Counts
	Filtering FilteringResult
}

// RetainedFraction returns the share of reads that survived filtering, or 0
// when fastp saw no reads.
func (s Summary) RetainedFraction() float64 {
	if s.Before.TotalReads == 0 {
		return 0
	}
	return float64(s.After.TotalReads) / float64(s.Before.TotalReads)
}

// ReadFile parses the fastp JSON report at path.
func ReadFile(path string) (*Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open fastp report: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a fastp JSON report. Unknown fields are ignored.
func Parse(r io.Reader) (*Summary, error) {
	var raw report
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse fastp report: %w", err)
	}
	return &Summary{
		Before:    raw.Summary.BeforeFiltering,
		After:     raw.Summary.AfterFiltering,
		Filtering: raw.FilteringResult,
	}, nil
}
