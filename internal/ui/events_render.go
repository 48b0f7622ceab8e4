package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// EventRow is one event line for rendering
type EventRow struct {
	ID      string
	Kind    string
	When    string
	Summary string
}

// RenderEventList renders events as a bordered table, newest first.
func RenderEventList(rows []EventRow, width int) string {
	if len(rows) == 0 {
		return TableHintStyle.Render("No events.")
	}

	tblRows := make([][]string, 0, len(rows))
	for _, r := range rows {
		summary := r.Summary
		maxTextWidth := width - 44
		if maxTextWidth < 10 {
			maxTextWidth = 10
		}
		if len(summary) > maxTextWidth {
			summary = summary[:maxTextWidth-3] + "..."
		}
		tblRows = append(tblRows, []string{r.ID, r.Kind, r.When, summary})
	}

	return NewResultTable(width).
		Headers("ID", "Kind", "When", "Summary").
		Rows(tblRows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return TableHeaderStyle
			}
			style := lipgloss.NewStyle().Padding(0, 1).Align(lipgloss.Left)
			switch col {
			case 0:
				style = style.Foreground(ColorAccent)
			case 1:
				style = style.Foreground(ColorMuted)
			}
			return style
		}).
		String()
}
