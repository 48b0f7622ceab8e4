package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var canonicalizeCmd = &cobra.Command{
	Use:     "canonicalize [session]",
	GroupID: "maint",
	Short:   "Fold session aliases onto their canonical ID",
	Long: `Fold every stored row whose session shares the given session's base
onto the canonical alias (suffix defaults to "main").

Sessions accumulate aliases when the workspace is visited from
detached heads or renamed branches. Canonicalizing rewrites those
rows so resume, search, and checkpoints see one continuous session.

With no argument the current workspace session is canonicalized.

Examples:
  rwm canonicalize                  # Fold the current session's aliases
  rwm canonicalize myrepo@old-name  # Fold aliases sharing base "myrepo"`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw := ""
		if len(args) > 0 {
			raw = args[0]
		}

		canonical, rewritten, err := engine.Canonicalize(rootCtx, raw)
		if err != nil {
			return fmt.Errorf("failed to canonicalize: %w", err)
		}

		if jsonOutput {
			outputJSON(map[string]any{
				"canonical": canonical,
				"rewritten": rewritten,
			})
			return nil
		}
		fmt.Printf("Canonicalized %d row(s) onto %s\n", rewritten, canonical)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(canonicalizeCmd)
}
