package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/untoldecay/rwm/internal/memory"
	"github.com/untoldecay/rwm/internal/types"
)

var updateCmd = &cobra.Command{
	Use:     "update <target> <id>",
	GroupID: "memory",
	Short:   "Update mutable fields of a task, artifact, or fact",
	Long: `Update mutable fields in place. Events and checkpoints are
append-only and cannot be updated. Omitted flags leave fields
untouched; --clear-accept removes accept criteria entirely.

Examples:
  rwm update task T-fix-resolver --status done
  rwm update task T-fix-resolver --accept "all resolver tests green"
  rwm update artifact A-4fd02a --kind CONFIG
  rwm update fact F-9b1c33 --value "make test-integration"
`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, id := args[0], args[1]
		switch target {
		case memory.TargetTask:
			return updateTask(cmd, id)
		case memory.TargetArtifact:
			return updateArtifact(cmd, id)
		case memory.TargetFact:
			return updateFact(cmd, id)
		default:
			return fmt.Errorf("unknown update target %q (want task, artifact, or fact)", target)
		}
	},
}

func init() {
	updateCmd.Flags().String("title", "", "New task title")
	updateCmd.Flags().String("status", "", "New task status: todo, doing, blocked, done, review")
	updateCmd.Flags().String("parent", "", "New parent task ID")
	updateCmd.Flags().String("accept", "", "New accept criteria")
	updateCmd.Flags().Bool("clear-accept", false, "Clear accept criteria")
	updateCmd.Flags().String("kind", "", "New artifact kind")
	updateCmd.Flags().String("text", "", "New artifact body (rehashes and restores)")
	updateCmd.Flags().StringArray("meta", nil, "Artifact meta entry as key=value (repeatable)")
	updateCmd.Flags().String("value", "", "New fact value")
	rootCmd.AddCommand(updateCmd)
}

func updateTask(cmd *cobra.Command, id string) error {
	upd := &memory.TaskUpdate{}
	if cmd.Flags().Changed("title") {
		v, _ := cmd.Flags().GetString("title")
		upd.Title = &v
	}
	if cmd.Flags().Changed("status") {
		v, _ := cmd.Flags().GetString("status")
		status := types.TaskStatus(strings.ToLower(v))
		upd.Status = &status
	}
	if cmd.Flags().Changed("parent") {
		v, _ := cmd.Flags().GetString("parent")
		upd.ParentID = &v
	}
	if clear, _ := cmd.Flags().GetBool("clear-accept"); clear {
		upd.AcceptSet = true
	} else if cmd.Flags().Changed("accept") {
		v, _ := cmd.Flags().GetString("accept")
		upd.AcceptCriteria = &v
		upd.AcceptSet = true
	}

	task, err := engine.UpdateTask(rootCtx, id, upd)
	if err != nil {
		return err
	}
	if jsonOutput {
		outputJSON(task)
		return nil
	}
	printRecord(&memory.FetchResult{Kind: memory.KindTask, Record: task})
	return nil
}

func updateArtifact(cmd *cobra.Command, id string) error {
	upd := &memory.ArtifactUpdate{}
	if cmd.Flags().Changed("kind") {
		v, _ := cmd.Flags().GetString("kind")
		kind := types.ArtifactKind(strings.ToUpper(v))
		upd.Kind = &kind
	}
	if cmd.Flags().Changed("text") {
		v, _ := cmd.Flags().GetString("text")
		upd.Text = &v
	}
	if metaFlags, _ := cmd.Flags().GetStringArray("meta"); len(metaFlags) > 0 {
		meta := make(map[string]any, len(metaFlags))
		for _, raw := range metaFlags {
			k, v, ok := strings.Cut(raw, "=")
			if !ok || strings.TrimSpace(k) == "" {
				return fmt.Errorf("invalid --meta %q (want key=value)", raw)
			}
			meta[k] = v
		}
		upd.Meta = meta
	}

	art, err := engine.UpdateArtifact(rootCtx, id, upd)
	if err != nil {
		return err
	}
	if jsonOutput {
		outputJSON(art)
		return nil
	}
	printRecord(&memory.FetchResult{Kind: memory.KindArtifact, Record: art})
	return nil
}

func updateFact(cmd *cobra.Command, id string) error {
	upd := &memory.FactUpdate{}
	if cmd.Flags().Changed("value") {
		v, _ := cmd.Flags().GetString("value")
		upd.Value = &v
	}

	fact, err := engine.UpdateFact(rootCtx, id, upd)
	if err != nil {
		return err
	}
	if jsonOutput {
		outputJSON(fact)
		return nil
	}
	printRecord(&memory.FetchResult{Kind: memory.KindFact, Record: fact})
	return nil
}
