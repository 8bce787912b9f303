package stage

import (
	"os"
	"path/filepath"
	"strconv"
)

// Output subdirectories created under the run's output directory.
const (
	DirPreTrim  = "fastqc_pre_trim"
	DirTrimmed  = "trimmed"
	DirPostTrim = "fastqc_post_trim"
	DirMultiQC  = "multiqc"
	DirLogs     = "logs"
)

// Layout resolves every path the pipeline writes under one output directory.
type Layout struct {
	Root string
}

// Dirs returns the top-level directories in creation order.
func (l Layout) Dirs() []string {
	return []string{
		filepath.Join(l.Root, DirPreTrim),
		filepath.Join(l.Root, DirTrimmed),
		filepath.Join(l.Root, DirPostTrim),
		filepath.Join(l.Root, DirMultiQC),
		filepath.Join(l.Root, DirLogs),
	}
}

// Create makes every directory in [Layout.Dirs].
func (l Layout) Create() error {
	for _, dir := range l.Dirs() {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

// PreTrimDir is where FastQC writes raw-read reports.
func (l Layout) PreTrimDir() string { return filepath.Join(l.Root, DirPreTrim) }

// PostTrimDir is where FastQC writes trimmed-read reports.
func (l Layout) PostTrimDir() string { return filepath.Join(l.Root, DirPostTrim) }

// MultiQCDir is where MultiQC writes the aggregate report.
func (l Layout) MultiQCDir() string { return filepath.Join(l.Root, DirMultiQC) }

// LogsDir holds one log per tool invocation.
func (l Layout) LogsDir() string { return filepath.Join(l.Root, DirLogs) }

// TrimmedDir is the per-sample directory for fastp outputs.
func (l Layout) TrimmedDir(sampleID string) string {
	return filepath.Join(l.Root, DirTrimmed, sampleID)
}

// TrimmedReads returns the forward and reverse fastp output paths.
func (l Layout) TrimmedReads(sampleID string) (forward, reverse string) {
	dir := l.TrimmedDir(sampleID)
	return filepath.Join(dir, sampleID+"_R1.trimmed.fastq.gz"),
		filepath.Join(dir, sampleID+"_R2.trimmed.fastq.gz")
}

// FastpReports returns the fastp HTML and JSON report paths.
func (l Layout) FastpReports(sampleID string) (html, json string) {
	dir := l.TrimmedDir(sampleID)
	return filepath.Join(dir, sampleID+".fastp.html"),
		filepath.Join(dir, sampleID+".fastp.json")
}

// SampleLog returns logs/<sampleID>_<stage log name>.log.
func (l Layout) SampleLog(sampleID string, n Name) string {
	return filepath.Join(l.LogsDir(), sampleID+"_"+n.LogName()+".log")
}

// AggregateLog returns logs/multiqc_final.log.
func (l Layout) AggregateLog() string {
	return filepath.Join(l.LogsDir(), Aggregate.LogName()+".log")
}

// RunLog returns the structured run log path.
func (l Layout) RunLog() string {
	return filepath.Join(l.LogsDir(), "pipeline.jsonl")
}

// ReportPath returns the aggregate artifact path checked after aggregation.
func (l Layout) ReportPath(filename string) string {
	return filepath.Join(l.MultiQCDir(), filename)
}

// RunReportPath returns the path of the persisted run report.
func (l Layout) RunReportPath() string {
	return filepath.Join(l.Root, "run_report.yaml")
}

// TrimOptions are the fastp options passed by [Commands.Fastp].
type TrimOptions struct {
	QualifiedQuality   int
	LengthRequired     int
	DetectAdapterForPE bool
}

// Commands builds argument lists for the three external tools.
type Commands struct {
	Threads      int
	Trim         TrimOptions
	ReportModule string
	ReportName   string
}

// FastQC returns the arguments for a FastQC run over both reads of a pair.
func (c Commands) FastQC(outDir, forward, reverse string) []string {
	return []string{
		"-t", strconv.Itoa(c.Threads),
		"-o", outDir,
		forward, reverse,
	}
}

// Fastp returns the arguments for a paired-end fastp run.
func (c Commands) Fastp(forward, reverse, outForward, outReverse, htmlReport, jsonReport string) []string {
	args := []string{
		"-i", forward,
		"-I", reverse,
		"-o", outForward,
		"-O", outReverse,
		"-q", strconv.Itoa(c.Trim.QualifiedQuality),
		"-l", strconv.Itoa(c.Trim.LengthRequired),
	}
	if c.Trim.DetectAdapterForPE {
		args = append(args, "--detect_adapter_for_pe")
	}
	return append(args,
		"-w", strconv.Itoa(c.Threads),
		"-h", htmlReport,
		"-j", jsonReport,
	)
}

// MultiQC returns the arguments for the aggregate run over inputDirs.
//
// MultiQC is told to overwrite (-f) and to process whatever exists in the
// input directories, including nothing.
func (c Commands) MultiQC(outDir string, inputDirs ...string) []string {
	args := []string{"-f"}
	if c.ReportModule != "" {
		args = append(args, "-m", c.ReportModule)
	}
	args = append(args, "-o", outDir, "-n", c.ReportName)
	return append(args, inputDirs...)
}
