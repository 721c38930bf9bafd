package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"xhsdl/pkg/batch"
)

// BatchProgress renders a one-line progress bar for a batch run
type BatchProgress struct {
	mu        sync.Mutex
	w         io.Writer
	list      string
	total     int
	done      int
	processed int
	skipped   int
	failed    int
	comments  int
	current   string
	startTime time.Time
	verbose   bool
	now       func() time.Time
}

// NewBatchProgress creates a display for total items of list. Verbose mode
// prints one line per item instead of redrawing the bar.
func NewBatchProgress(w io.Writer, list string, total int, verbose bool) *BatchProgress {
	return &BatchProgress{
		w:         w,
		list:      list,
		total:     total,
		startTime: time.Now(),
		verbose:   verbose,
		now:       time.Now,
	}
}

// Item records one outcome; it is shaped to serve as batch.Options.Progress
func (p *BatchProgress) Item(res batch.ItemResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done++
	p.current = res.ID
	switch res.Outcome {
	case batch.OutcomeProcessed, batch.OutcomeResumed:
		p.processed++
	case batch.OutcomeSkipped:
		p.skipped++
	default:
		p.failed++
	}
	p.comments += res.Comments

	if p.verbose {
		p.printItem(res)
		return
	}
	p.printProgress()
}

func (p *BatchProgress) printItem(res batch.ItemResult) {
	mark := Green("✓")
	switch res.Outcome {
	case batch.OutcomeSkipped:
		mark = Yellow("↷")
	case batch.OutcomeFailed:
		mark = Red("✗")
	case batch.OutcomeResumed:
		mark = Dim("•")
	}
	line := fmt.Sprintf("%s [%d/%d] %s", mark, p.done, p.total, res.ID)
	if res.Comments > 0 {
		line += Dim(fmt.Sprintf(" • %d comments", res.Comments))
	}
	if res.Error != "" {
		line += " • " + Red(res.Error)
	}
	fmt.Fprintln(p.w, line)
}

// printProgress prints the progress line
func (p *BatchProgress) printProgress() {
	progress := 0.0
	if p.total > 0 {
		progress = float64(p.done) / float64(p.total)
	}
	barWidth := 20
	filled := int(progress * float64(barWidth))
	if filled > barWidth {
		filled = barWidth
	}
	bar := strings.Repeat("━", filled) + strings.Repeat("─", barWidth-filled)

	line := fmt.Sprintf("%s [%s] %d/%d • %d comments • %s",
		Cyan(p.list),
		bar,
		p.done,
		p.total,
		p.comments,
		p.calculateETA(),
	)
	if p.current != "" {
		line += fmt.Sprintf(" • %s", p.current)
	}
	if p.failed+p.skipped > 0 {
		line += fmt.Sprintf(" • %s", Red(fmt.Sprintf("%d skipped/failed", p.failed+p.skipped)))
	}

	fmt.Fprintf(p.w, "\r%s\r%s", strings.Repeat(" ", 120), line)
}

// Complete prints the report summary
func (p *BatchProgress) Complete(report *batch.Report) {
	p.mu.Lock()
	defer p.mu.Unlock()

	status := Green("✓")
	if report.Stopped {
		status = Yellow("■ stopped")
	}
	fmt.Fprintf(p.w, "\n\n%s %d/%d notes from %s\n", status, report.Processed+report.Resumed, report.Total, Cyan(report.List))
	fmt.Fprintf(p.w, "  %s %d comments in %s\n", Dim("•"), p.comments, formatDuration(report.Elapsed))
	if report.Resumed > 0 {
		fmt.Fprintf(p.w, "  %s %d resumed from checkpoint\n", Dim("•"), report.Resumed)
	}
	if report.Skipped > 0 {
		fmt.Fprintf(p.w, "  %s %d never became ready\n", Dim("•"), report.Skipped)
	}
	if report.Failed > 0 {
		fmt.Fprintf(p.w, "  %s %d failed\n", Dim("•"), report.Failed)
	}
}

// calculateETA estimates time remaining
func (p *BatchProgress) calculateETA() string {
	if p.done == 0 {
		return "calculating..."
	}
	elapsed := p.now().Sub(p.startTime)
	rate := float64(p.done) / elapsed.Seconds()
	if rate <= 0 {
		return "calculating..."
	}
	remaining := p.total - p.done
	if remaining <= 0 {
		return "done"
	}
	return formatDuration(time.Duration(float64(remaining)/rate) * time.Second)
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

// FormatBytes formats bytes in a human-readable way
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
