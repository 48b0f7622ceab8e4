package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/untoldecay/rwm/internal/ui"
)

var pruneCmd = &cobra.Command{
	Use:     "prune",
	GroupID: "maint",
	Short:   "Remove orphaned artifact bodies from the pool",
	Long: `Remove pool files no artifact row references. Commits already sweep
orphans opportunistically; this runs the sweep on demand and reports
the count.

Examples:
  rwm prune
  rwm prune --force                 # No confirmation prompt
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		if !force && ui.IsTerminal() {
			if !ui.PromptYesNo("Remove pool files no artifact references?", true) {
				fmt.Println("Aborted.")
				return nil
			}
		}

		removed := engine.Prune(rootCtx)

		if jsonOutput {
			outputJSON(map[string]any{"removed": removed})
			return nil
		}
		fmt.Printf("Removed %d orphaned pool file(s).\n", removed)
		return nil
	},
}

func init() {
	pruneCmd.Flags().Bool("force", false, "Prune without confirmation")
	rootCmd.AddCommand(pruneCmd)
}
