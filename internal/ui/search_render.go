package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var searchTitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorAccent)

// SearchResultItem represents a single search hit for rendering
type SearchResultItem struct {
	ID   string
	Text string
	When string
}

// SearchViewModel holds data for rendering the search result sections
type SearchViewModel struct {
	Query  string
	Events []SearchResultItem
	Tasks  []SearchResultItem
	Facts  []SearchResultItem
}

// RenderSearchResults renders each non-empty section as a bordered
// table under a query header. Facts are project-wide; events and tasks
// are session-scoped.
func RenderSearchResults(vm *SearchViewModel, width int) string {
	sections := []string{
		searchTitleStyle.Render(fmt.Sprintf("Results for %q", vm.Query)),
	}

	if s := renderResultSection("Event", vm.Events, width); s != "" {
		sections = append(sections, s)
	}
	if s := renderResultSection("Task", vm.Tasks, width); s != "" {
		sections = append(sections, s)
	}
	if s := renderResultSection("Fact", vm.Facts, width); s != "" {
		sections = append(sections, s)
	}

	if len(sections) == 1 {
		sections = append(sections, RenderMuted("No matches."))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderResultSection renders one result list as a 3-column table
func renderResultSection(title string, items []SearchResultItem, width int) string {
	if len(items) == 0 {
		return ""
	}

	rows := make([][]string, 0, len(items))
	for _, item := range items {
		text := item.Text
		maxTextWidth := width - 30
		if maxTextWidth < 10 {
			maxTextWidth = 10
		}
		if len(text) > maxTextWidth {
			text = text[:maxTextWidth-3] + "..."
		}
		rows = append(rows, []string{item.ID, text, item.When})
	}

	return table.New().
		Headers("ID", title, "When").
		Border(lipgloss.RoundedBorder()).
		BorderStyle(TableBorderStyle).
		Width(width).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return TableHeaderStyle
			}
			style := lipgloss.NewStyle().Padding(0, 1).Align(lipgloss.Left)
			if col == 0 {
				style = style.Foreground(ColorAccent)
			}
			return style
		}).
		String()
}
