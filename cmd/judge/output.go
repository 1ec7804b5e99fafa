package main

import (
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/competitive-cli/judge/pkg/judges"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Padding(0, 1).Foreground(lipgloss.Color("#3498db"))
	cellStyle     = lipgloss.NewStyle().Padding(0, 1)
	acceptedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#2ecc71"))
	pendingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#f1c40f"))
	rejectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#e74c3c"))
)

func renderTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...).
		Rows(rows...).
		String()
}

func verdictStyle(verdict judges.Verdict) lipgloss.Style {
	switch {
	case verdict == judges.Accepted:
		return acceptedStyle
	case !verdict.IsTerminal():
		return pendingStyle
	default:
		return rejectedStyle
	}
}

func renderVerdict(verdict judges.Verdict) string {
	return verdictStyle(verdict).Render(verdict.Title())
}

func renderRecords(records []judges.SubmissionRecord) string {
	rows := make([][]string, 0, len(records))
	for _, record := range records {
		label := record.VerdictLabel
		if label == "" {
			label = record.Verdict.Title()
		}
		submitted := ""
		if !record.SubmittedAt.IsZero() {
			submitted = record.SubmittedAt.Local().Format(time.DateTime)
		}
		rows = append(rows, []string{
			string(record.ID),
			submitted,
			record.Problem,
			record.Language,
			verdictStyle(record.Verdict).Render(label),
			strconv.FormatInt(record.Runtime.Milliseconds(), 10) + " ms",
			strconv.FormatInt(record.MemoryKB, 10) + " KB",
		})
	}
	return renderTable(
		[]string{"ID", "Submitted", "Problem", "Language", "Verdict", "Time", "Memory"},
		rows,
	)
}
