package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/untoldecay/rwm/internal/ui"
)

var searchCmd = &cobra.Command{
	Use:     "search <query>",
	GroupID: "views",
	Short:   "Search events, tasks, and facts",
	Long: `Substring search over event summaries, task titles, and fact
keys/values. Events and tasks are scoped to the session; facts are
project-wide.

Examples:
  rwm search "resolver"
  rwm search "flaky test" --limit 5
  rwm search timeout --session api@main --json
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, _ := cmd.Flags().GetString("session")
		limit, _ := cmd.Flags().GetInt("limit")

		results, err := engine.Search(rootCtx, session, args[0], limit)
		if err != nil {
			return err
		}

		if jsonOutput {
			outputJSON(results)
			return nil
		}

		if ui.IsTerminal() {
			vm := &ui.SearchViewModel{Query: args[0]}
			for _, ev := range results.Events {
				vm.Events = append(vm.Events, ui.SearchResultItem{
					ID:   ev.ID,
					Text: ev.Summary,
					When: ev.TS.Format("2006-01-02"),
				})
			}
			for _, task := range results.Tasks {
				vm.Tasks = append(vm.Tasks, ui.SearchResultItem{
					ID:   task.ID,
					Text: task.Title,
					When: task.UpdatedAt.Format("2006-01-02"),
				})
			}
			for _, fact := range results.Facts {
				vm.Facts = append(vm.Facts, ui.SearchResultItem{
					ID:   fact.ID,
					Text: fact.Key + " = " + fact.Value,
					When: string(fact.Scope),
				})
			}
			fmt.Println(ui.RenderSearchResults(vm, ui.GetWidth()))
			return nil
		}

		total := len(results.Events) + len(results.Tasks) + len(results.Facts)
		if total == 0 {
			fmt.Println("No matches.")
			return nil
		}
		for _, ev := range results.Events {
			fmt.Printf("%-16s %s  %s\n", ev.ID, ev.TS.Format(time.DateOnly), ev.Summary)
		}
		for _, task := range results.Tasks {
			fmt.Printf("%-16s %s  %s\n", task.ID, task.UpdatedAt.Format(time.DateOnly), task.Title)
		}
		for _, fact := range results.Facts {
			fmt.Printf("%-16s %s = %s\n", fact.ID, fact.Key, fact.Value)
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().String("session", "", "Session ID or alias (default: current branch session)")
	searchCmd.Flags().Int("limit", 0, "Maximum hits per record type (default 20)")
	rootCmd.AddCommand(searchCmd)
}
