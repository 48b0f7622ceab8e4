package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var spanCmd = &cobra.Command{
	Use:     "span <path> <start> <end>",
	GroupID: "views",
	Short:   "Read a line span from a workspace file",
	Long: `Read lines [start..end] of a workspace-relative file, 1-indexed
inclusive and clamped to the file's length. Paths resolve through the
path guard, so nothing outside the workspace root is readable.

Examples:
  rwm span internal/session/resolver.go 40 62
  rwm span README.md 1 20 --json
`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		start, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid start line %q", args[1])
		}
		end, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("invalid end line %q", args[2])
		}

		text, err := engine.Span(args[0], start, end)
		if err != nil {
			return err
		}

		if jsonOutput {
			outputJSON(map[string]any{
				"path":  args[0],
				"start": start,
				"end":   end,
				"text":  text,
			})
			return nil
		}

		fmt.Print(text)
		if text != "" && !strings.HasSuffix(text, "\n") {
			fmt.Println()
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(spanCmd)
}
