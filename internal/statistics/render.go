package statistics

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7A8291"))
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#EBCB8B")).Bold(true)
)

// SummaryRow is one label/value line of the end-of-run table.
type SummaryRow struct {
	Label string
	Value string
	Warn  bool
}

// Rows returns the end-of-run figures in display order.
func (s *Statistics) Rows() []SummaryRow {
	s.mutex.RLock()
	duration := s.Duration
	s.mutex.RUnlock()

	count := func(v *int64) string { return fmt.Sprint(atomic.LoadInt64(v)) }
	errors := s.GetFilesWithErrors()
	bestEffort := atomic.LoadInt64(&s.FilesBestEffort)

	rows := []SummaryRow{
		{Label: "Files scanned", Value: count(&s.TotalFilesFound)},
		{Label: "Over target", Value: count(&s.FilesOversized)},
		{Label: "Compressed", Value: count(&s.FilesCompressed)},
		{Label: "Met target", Value: count(&s.FilesMetTarget)},
		{Label: "Best effort", Value: fmt.Sprint(bestEffort), Warn: bestEffort > 0},
		{Label: "Converted", Value: count(&s.FilesConverted)},
		{Label: "Skipped", Value: count(&s.FilesSkipped)},
		{Label: "Errors", Value: fmt.Sprint(errors), Warn: errors > 0},
	}
	if n := atomic.LoadInt64(&s.FilesDryRun); n > 0 {
		rows = append(rows, SummaryRow{Label: "Dry run", Value: fmt.Sprint(n)})
	}
	return append(rows,
		SummaryRow{Label: "Size before", Value: formatBytes(atomic.LoadInt64(&s.BytesBefore))},
		SummaryRow{Label: "Size after", Value: formatBytes(atomic.LoadInt64(&s.BytesAfter))},
		SummaryRow{Label: "Saved", Value: fmt.Sprintf("%s (%.1f%%)", formatBytes(s.BytesSaved()), s.PercentSaved())},
		SummaryRow{Label: "Duration", Value: duration.Round(time.Millisecond).String()},
	)
}

// RenderSummary lays rows out as a two-column table.
func RenderSummary(rows []SummaryRow) string {
	labelWidth := 0
	valueWidth := 0
	for _, row := range rows {
		labelWidth = max(labelWidth, len(row.Label))
		valueWidth = max(valueWidth, len(row.Value))
	}

	hline := strings.Repeat("-", labelWidth+valueWidth+3)
	lines := []string{hline}

	for _, row := range rows {
		style := valueStyle
		if row.Warn {
			style = warnStyle
		}
		label := padRight(row.Label, labelWidth)
		value := padRight(row.Value, valueWidth)
		lines = append(lines, fmt.Sprintf("%s | %s", labelStyle.Render(label), style.Render(value)))
	}

	lines = append(lines, hline)
	return strings.Join(lines, "\n")
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
