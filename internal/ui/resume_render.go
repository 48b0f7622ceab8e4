package ui

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// PointerItem represents one bundle pointer for rendering
type PointerItem struct {
	Type string
	ID   string
	Text string
	Cost int
}

// BundleViewModel holds data for rendering a resume bundle
type BundleViewModel struct {
	SessionID     string
	Now           string // markdown Now card
	Pointers      []PointerItem
	TokenEstimate int
	Budget        int
}

// RenderBundle renders the Now card as markdown, then the pointer
// table, then a budget summary line.
func RenderBundle(vm *BundleViewModel, width int) string {
	var sections []string

	sections = append(sections, RenderMarkdown(vm.Now))

	if len(vm.Pointers) > 0 {
		rows := make([][]string, 0, len(vm.Pointers))
		for _, p := range vm.Pointers {
			text := p.Text
			maxTextWidth := width - 36
			if maxTextWidth < 10 {
				maxTextWidth = 10
			}
			if len(text) > maxTextWidth {
				text = text[:maxTextWidth-3] + "..."
			}
			rows = append(rows, []string{p.Type, p.ID, text, strconv.Itoa(p.Cost)})
		}

		tbl := table.New().
			Headers("Type", "ID", "Pointer", "Tokens").
			Border(lipgloss.RoundedBorder()).
			BorderStyle(TableBorderStyle).
			Width(width).
			Rows(rows...).
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return TableHeaderStyle
				}
				style := lipgloss.NewStyle().Padding(0, 1).Align(lipgloss.Left)
				switch col {
				case 0:
					style = style.Foreground(ColorMuted)
				case 1:
					style = style.Foreground(ColorAccent)
				case 3:
					style = style.Align(lipgloss.Right)
				}
				return style
			})
		sections = append(sections, tbl.String())
	}

	summary := fmt.Sprintf("%s  %d/%d tokens", vm.SessionID, vm.TokenEstimate, vm.Budget)
	sections = append(sections, RenderMuted(summary))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}
