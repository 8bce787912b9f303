// Package output renders pipeline progress for the terminal.
//
// Boxes and headers are drawn with lipgloss; warning and failure lines use
// fatih/color so they stand out in long runs. Both degrade to plain text
// when the writer is not a terminal.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"

	"readqc/internal/report"
	"readqc/internal/sample"
	"readqc/internal/tool"
)

var (
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 2)

	titleStyle = lipgloss.NewStyle().Bold(true)

	stageStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))

	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Printer writes progress, warnings and the final summary.
//
// Printer is safe for concurrent use only when the underlying writer is;
// the pipeline serializes calls itself.
type Printer struct {
	out    io.Writer
	warn   *color.Color
	failed *color.Color
	ok     *color.Color
}

// NewPrinter creates a Printer writing to stdout.
func NewPrinter() *Printer {
	return NewPrinterWithWriter(os.Stdout)
}

// NewPrinterWithWriter creates a Printer writing to w.
func NewPrinterWithWriter(w io.Writer) *Printer {
	return &Printer{
		out:    w,
		warn:   color.New(color.FgYellow, color.Bold),
		failed: color.New(color.FgRed, color.Bold),
		ok:     color.New(color.FgGreen),
	}
}

// SetColor forces colored warning lines on or off.
func (p *Printer) SetColor(enabled bool) {
	for _, c := range []*color.Color{p.warn, p.failed, p.ok} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
}

// RunHeader prints the run banner.
func (p *Printer) RunHeader(runID, inputDir, outputDir string, samples, threads int) {
	body := strings.Join([]string{
		titleStyle.Render("readqc"),
		fmt.Sprintf("Run:     %s", runID),
		fmt.Sprintf("Input:   %s", inputDir),
		fmt.Sprintf("Output:  %s", outputDir),
		fmt.Sprintf("Samples: %d | Threads: %d", samples, threads),
		"Stages:  raw-qc → trim → post-qc → aggregate",
	}, "\n")
	fmt.Fprintln(p.out, boxStyle.Render(body))
}

// StageStart prints the header for one global stage. scope describes what
// the stage runs over, such as "3 samples"; empty omits it.
func (p *Printer) StageStart(index, total int, name, scope string) {
	fmt.Fprintln(p.out)
	header := stageStyle.Render(fmt.Sprintf("[%d/%d] %s", index, total, name))
	if scope == "" {
		fmt.Fprintln(p.out, header)
		return
	}
	fmt.Fprintf(p.out, "%s %s\n", header, mutedStyle.Render("("+scope+")"))
}

// StageResult prints one invocation outcome.
func (p *Printer) StageResult(r tool.StageResult) {
	label := r.SampleID
	if label == "" {
		label = r.Command
	}
	dur := r.Duration().Round(time.Millisecond)
	if r.Succeeded() {
		p.ok.Fprintf(p.out, "  ✓ %-20s %s\n", label, dur)
		return
	}
	p.failed.Fprintf(p.out, "  ✗ %-20s %s | exit code %d | log %s\n", label, dur, r.ExitCode, r.LogPath)
}

// Warning prints one non-fatal anomaly on its own line.
func (p *Printer) Warning(w report.Warning) {
	subject := w.SampleID
	if w.Stage != "" {
		if subject != "" {
			subject += " "
		}
		subject += "@" + w.Stage
	}
	if subject != "" {
		subject = " " + subject
	}
	p.warn.Fprintf(p.out, "  ! warning [%s]%s: %s\n", w.Kind, subject, w.Message)
}

// Discovery prints the discovered samples and skipped reads.
func (p *Printer) Discovery(d *sample.Discovery) {
	fmt.Fprintf(p.out, "%s\n", titleStyle.Render(fmt.Sprintf("Discovered %d samples", len(d.Units))))
	for _, u := range d.Units {
		fmt.Fprintf(p.out, "  %-20s %s\n", u.SampleID, mutedStyle.Render(u.ForwardPath))
		fmt.Fprintf(p.out, "  %-20s %s\n", "", mutedStyle.Render(u.ReversePath))
	}
	for _, s := range d.Skipped {
		p.warn.Fprintf(p.out, "  ! skipped %s\n", s.String())
	}
}

// Summary prints the final run summary box.
func (p *Printer) Summary(r *report.RunReport) {
	completed, failed := r.Counts()

	var lines []string
	if failed == 0 {
		lines = append(lines, titleStyle.Render("✓ RUN COMPLETE"))
	} else {
		lines = append(lines, titleStyle.Render("✓ RUN COMPLETE WITH FAILURES"))
	}
	lines = append(lines, fmt.Sprintf("Completed: %d | Failed: %d | Skipped: %d", completed, failed, len(r.Skipped)))
	lines = append(lines, "")
	for _, s := range r.Samples {
		if s.Succeeded() {
			line := fmt.Sprintf("✓ %-20s", s.SampleID)
			if s.ReadsBefore > 0 {
				line += fmt.Sprintf(" reads %d → %d", s.ReadsBefore, s.ReadsAfter)
			}
			lines = append(lines, line)
			continue
		}
		lines = append(lines, fmt.Sprintf("✗ %-20s failed at %s", s.SampleID, s.FailedAt))
	}
	for _, s := range r.Skipped {
		lines = append(lines, fmt.Sprintf("○ %-20s (%s)", s.SampleID, s.Reason))
	}
	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("Report:   %s (%s)", r.ReportPath, r.ReportStatus))
	lines = append(lines, "Warnings: "+warningCounts(r))
	lines = append(lines, fmt.Sprintf("Total:    %s", r.Duration().Round(time.Second)))

	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, boxStyle.Render(strings.Join(lines, "\n")))
}

// Outcome prints the detail of one sample from a finished run.
func (p *Printer) Outcome(r *report.RunReport, o report.SampleOutcome) {
	lines := []string{
		titleStyle.Render(o.SampleID),
		fmt.Sprintf("State:   %s", o.State),
		fmt.Sprintf("Forward: %s", o.ForwardPath),
		fmt.Sprintf("Reverse: %s", o.ReversePath),
	}
	if o.FailedAt != "" {
		lines = append(lines, fmt.Sprintf("Failed:  %s (%s)", o.FailedAt, o.Reason))
	}
	if o.ReadsBefore > 0 {
		lines = append(lines, fmt.Sprintf("Reads:   %d → %d", o.ReadsBefore, o.ReadsAfter))
	}
	for _, res := range r.Results {
		if res.SampleID != o.SampleID {
			continue
		}
		lines = append(lines, fmt.Sprintf("  %-8s exit %d  %s", res.Stage, res.ExitCode, res.LogPath))
	}
	fmt.Fprintln(p.out, boxStyle.Render(strings.Join(lines, "\n")))
}

// warningCounts renders the warning total followed by a per-kind breakdown.
func warningCounts(r *report.RunReport) string {
	var parts []string
	for _, kind := range report.WarningKinds {
		if n := len(r.WarningsOf(kind)); n > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", kind, n))
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%d", len(r.Warnings))
	}
	return fmt.Sprintf("%d (%s)", len(r.Warnings), strings.Join(parts, ", "))
}

// Error prints a fatal error line.
func (p *Printer) Error(err error) {
	p.failed.Fprintf(p.out, "Error: %v\n", err)
}
