package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/untoldecay/rwm/internal/ui"
)

var resumeCmd = &cobra.Command{
	Use:     "resume",
	GroupID: "memory",
	Short:   "Compose a budgeted rehydration bundle",
	Long: `Compose the bundle a fresh session starts from: a Now card with the
active tasks and latest decisions, plus the pointers that fit the
token budget in score-density order.

Examples:
  rwm resume                        # Current branch session
  rwm resume --session api@main     # Explicit session
  rwm resume --budget 2000          # Tighter budget for this bundle
  rwm resume --json                 # Structured output
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		session, _ := cmd.Flags().GetString("session")
		budget, _ := cmd.Flags().GetInt("budget")

		bundle, err := engine.Resume(rootCtx, session, budget)
		if err != nil {
			return err
		}

		if jsonOutput {
			outputJSON(bundle)
			return nil
		}

		if ui.IsTerminal() {
			vm := &ui.BundleViewModel{
				SessionID:     bundle.SessionID,
				Now:           bundle.Now,
				TokenEstimate: bundle.TokenEstimate,
				Budget:        bundle.Budget,
			}
			for _, p := range bundle.Pointers {
				vm.Pointers = append(vm.Pointers, ui.PointerItem{
					Type: p.Type,
					ID:   p.ID,
					Text: p.Text,
					Cost: p.TokenCost,
				})
			}
			fmt.Println(ui.RenderBundle(vm, ui.GetWidth()))
			return nil
		}

		// Piped output stays plain so agents can splice it into a prompt.
		fmt.Print(bundle.Now)
		if len(bundle.Pointers) > 0 {
			fmt.Println()
			for _, p := range bundle.Pointers {
				fmt.Printf("%-5s  %-16s %4dt  %s\n", p.Type, p.ID, p.TokenCost, p.Text)
			}
		}
		fmt.Printf("\n%s  %d/%d tokens\n", bundle.SessionID, bundle.TokenEstimate, bundle.Budget)
		return nil
	},
}

func init() {
	resumeCmd.Flags().String("session", "", "Session ID or alias (default: current branch session)")
	resumeCmd.Flags().Int("budget", 0, "Token budget for this bundle (default: configured budget)")
	rootCmd.AddCommand(resumeCmd)
}
