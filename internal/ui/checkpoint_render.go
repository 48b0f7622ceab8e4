package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/tree"
)

// CheckpointSection is one labeled branch of a checkpoint snapshot
type CheckpointSection struct {
	Label string
	Items []string
}

// BuildCheckpointTree constructs a lipgloss/tree for a checkpoint
// snapshot: the objective as root, one branch per non-empty section.
// Returns nil when every section is empty.
func BuildCheckpointTree(objective string, sections []CheckpointSection) *tree.Tree {
	t := tree.New().Root(objective)
	t.EnumeratorStyle(lipgloss.NewStyle().Foreground(ColorAccent))
	t.RootStyle(lipgloss.NewStyle().Bold(true).Foreground(ColorAccent))

	populated := false
	for _, section := range sections {
		if len(section.Items) == 0 {
			continue
		}
		branch := tree.New().Root(section.Label)
		branch.EnumeratorStyle(lipgloss.NewStyle().Foreground(ColorMuted))
		for _, item := range section.Items {
			branch.Child(item)
		}
		t.Child(branch)
		populated = true
	}

	if !populated {
		return nil
	}
	return t
}

// RenderCheckpointTree renders a checkpoint snapshot using lipgloss/tree
func RenderCheckpointTree(objective string, sections []CheckpointSection) string {
	t := BuildCheckpointTree(objective, sections)
	if t == nil {
		return TableHintStyle.Render("Empty snapshot.")
	}
	return t.String()
}
