package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/untoldecay/rwm/internal/timeparsing"
	"github.com/untoldecay/rwm/internal/types"
	"github.com/untoldecay/rwm/internal/ui"
)

var eventsCmd = &cobra.Command{
	Use:     "events",
	GroupID: "views",
	Short:   "List recent session events",
	Long: `List the session's events, newest first. --since accepts compact
offsets, natural language, or timestamps.

Examples:
  rwm events
  rwm events --since yesterday
  rwm events --since "-2d" --kind DECISION
  rwm events --since "2025-06-01" --limit 100 --json
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		session, _ := cmd.Flags().GetString("session")
		sinceRaw, _ := cmd.Flags().GetString("since")
		kindRaw, _ := cmd.Flags().GetString("kind")
		limit, _ := cmd.Flags().GetInt("limit")

		var since time.Time
		if sinceRaw != "" {
			ts, err := timeparsing.Parse(sinceRaw, time.Now())
			if err != nil {
				return err
			}
			since = ts
		}

		events, err := engine.EventsSince(rootCtx, session, since, limit)
		if err != nil {
			return err
		}

		if kindRaw != "" {
			kind := types.EventKind(strings.ToUpper(kindRaw))
			if !kind.IsValid() {
				return fmt.Errorf("invalid --kind %q", kindRaw)
			}
			filtered := make([]*types.Event, 0, len(events))
			for _, ev := range events {
				if ev.Kind == kind {
					filtered = append(filtered, ev)
				}
			}
			events = filtered
		}

		if jsonOutput {
			outputJSON(events)
			return nil
		}

		if ui.IsTerminal() {
			rows := make([]ui.EventRow, 0, len(events))
			for _, ev := range events {
				rows = append(rows, ui.EventRow{
					ID:      ev.ID,
					Kind:    string(ev.Kind),
					When:    ev.TS.Format("2006-01-02 15:04"),
					Summary: ev.Summary,
				})
			}
			fmt.Println(ui.RenderEventList(rows, ui.GetWidth()))
			return nil
		}

		if len(events) == 0 {
			fmt.Println("No events.")
			return nil
		}
		for _, ev := range events {
			fmt.Printf("%-16s %-10s %s  %s\n", ev.ID, ev.Kind, ev.TS.Format("2006-01-02 15:04"), ev.Summary)
		}
		return nil
	},
}

func init() {
	eventsCmd.Flags().String("session", "", "Session ID or alias (default: current branch session)")
	eventsCmd.Flags().String("since", "", "Lower time bound (\"yesterday\", \"-2d\", RFC3339)")
	eventsCmd.Flags().String("kind", "", "Only events of this kind (DECISION, FIX, ...)")
	eventsCmd.Flags().Int("limit", 0, "Maximum events to list (default 50)")
	rootCmd.AddCommand(eventsCmd)
}
