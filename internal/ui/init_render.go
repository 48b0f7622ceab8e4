package ui

import (
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/list"
	"github.com/charmbracelet/lipgloss/table"
)

// InitResult aggregates all information from the initialization process
type InitResult struct {
	// Created state
	DBPath       string
	ArtifactsDir string
	HooksDir     string
	ConfigPath   string

	// Resolved session identity
	SessionID string
	Budget    int

	// Next steps
	QuickstartCommands []string
}

// RenderInitReport generates a Lipgloss report for the init command
func RenderInitReport(res InitResult, width int) string {
	var sections []string

	// 1. Success Header
	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorPass).
		Render("✓ rwm Initialized Successfully")
	sections = append(sections, header, "")

	// 2. Created paths as a checked list
	l := list.New().
		Enumerator(func(_ list.Items, i int) string {
			return RenderPass("✓")
		}).
		EnumeratorStyle(lipgloss.NewStyle().MarginRight(1))

	l.Item("Database: " + res.DBPath)
	l.Item("Artifact pool: " + res.ArtifactsDir)
	if res.HooksDir != "" {
		l.Item("Hooks: " + res.HooksDir)
	}
	if res.ConfigPath != "" {
		l.Item("Config: " + res.ConfigPath)
	}

	sections = append(sections, l.String(), "")

	// 3. Setup Details Table
	detailsRows := [][]string{
		{"Session", res.SessionID},
		{"Bundle budget", strconv.Itoa(res.Budget) + " tokens"},
	}

	summaryTable := table.New().
		Headers("Component", "Configuration").
		Rows(detailsRows...).
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ColorMuted)).
		Width(width).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				if col == 0 {
					return TableHeaderStyle.Width(20)
				}
				return TableHeaderStyle.Width(width - 20 - 3)
			}
			style := lipgloss.NewStyle().Padding(0, 1).Align(lipgloss.Left)
			if col == 0 {
				style = style.Bold(true).Foreground(ColorAccent)
			}
			return style
		})

	sections = append(sections, summaryTable.String(), "")

	// 4. Next Steps
	if len(res.QuickstartCommands) > 0 {
		sections = append(sections, lipgloss.NewStyle().Bold(true).Render("Next Steps:"))
		for _, cmd := range res.QuickstartCommands {
			sections = append(sections, "  • "+lipgloss.NewStyle().Foreground(ColorAccent).Render(cmd))
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}
