package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/untoldecay/rwm/internal/hooks"
	"github.com/untoldecay/rwm/internal/memory"
	"github.com/untoldecay/rwm/internal/types"
	"github.com/untoldecay/rwm/internal/ui"
)

var checkpointCmd = &cobra.Command{
	Use:     "checkpoint <label>",
	GroupID: "memory",
	Short:   "Record a labeled save point",
	Long: `Record a labeled save point carrying a snapshot of the session:
objective, active tasks, recent events, and facts. Checkpoints are
append-only.

Examples:
  rwm checkpoint "before refactor"
  rwm checkpoint --list             # Recent checkpoints
  rwm checkpoint --list --limit 5
`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, _ := cmd.Flags().GetString("session")
		list, _ := cmd.Flags().GetBool("list")
		limit, _ := cmd.Flags().GetInt("limit")

		if list {
			if len(args) > 0 {
				return fmt.Errorf("--list takes no label")
			}
			return listCheckpoints(session, limit)
		}

		if len(args) == 0 {
			return fmt.Errorf("checkpoint label is required (or --list)")
		}

		cp, err := engine.Checkpoint(rootCtx, session, args[0])
		if err != nil {
			return err
		}
		if hookRunner != nil {
			hookRunner.Run(hooks.EventCheckpoint, cp.SessionID, cp)
		}

		if jsonOutput {
			outputJSON(cp)
			return nil
		}

		fmt.Printf("checkpoint %s (%s)\n", cp.ID, cp.Label)
		if ui.IsTerminal() {
			if rendered := renderCheckpointMeta(cp); rendered != "" {
				fmt.Println(rendered)
			}
		}
		return nil
	},
}

func init() {
	checkpointCmd.Flags().String("session", "", "Session ID or alias (default: current branch session)")
	checkpointCmd.Flags().Bool("list", false, "List recent checkpoints instead of creating one")
	checkpointCmd.Flags().Int("limit", 10, "Maximum checkpoints to list")
	rootCmd.AddCommand(checkpointCmd)
}

func listCheckpoints(session string, limit int) error {
	cps, err := engine.Checkpoints(rootCtx, session, limit)
	if err != nil {
		return err
	}

	if jsonOutput {
		outputJSON(cps)
		return nil
	}

	if len(cps) == 0 {
		fmt.Println("No checkpoints.")
		return nil
	}
	for _, cp := range cps {
		fmt.Printf("%-14s %s  %s\n", cp.ID, cp.TS.Format(time.RFC3339), cp.Label)
	}
	return nil
}

// renderCheckpointMeta renders the stored snapshot as a tree, or
// nothing when the meta is absent or unreadable.
func renderCheckpointMeta(cp *types.Checkpoint) string {
	if len(cp.BundleMeta) == 0 {
		return ""
	}
	var meta memory.CheckpointMeta
	if err := json.Unmarshal(cp.BundleMeta, &meta); err != nil {
		return ""
	}

	tasks := make([]string, 0, len(meta.ActiveTasks))
	for _, t := range meta.ActiveTasks {
		tasks = append(tasks, fmt.Sprintf("%s %s [%s]", t.ID, t.Title, t.Status))
	}
	events := make([]string, 0, len(meta.RecentEvents))
	for _, ev := range meta.RecentEvents {
		events = append(events, fmt.Sprintf("%s %s: %s", ev.ID, ev.Kind, ev.Summary))
	}
	facts := make([]string, 0, len(meta.Facts))
	for _, f := range meta.Facts {
		facts = append(facts, fmt.Sprintf("%s = %s", f.Key, f.Value))
	}

	return ui.RenderCheckpointTree(meta.Objective, []ui.CheckpointSection{
		{Label: "Tasks", Items: tasks},
		{Label: "Events", Items: events},
		{Label: "Facts", Items: facts},
	})
}
