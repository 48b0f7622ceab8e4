package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/untoldecay/rwm/internal/config"
	"github.com/untoldecay/rwm/internal/distill"
	"github.com/untoldecay/rwm/internal/ui"
)

var (
	distillDryRun  bool
	distillID      string
	distillAll     bool
	distillLimit   int
	distillWorkers int
	distillAgeDays int
)

var distillCmd = &cobra.Command{
	Use:     "distill",
	GroupID: "maint",
	Short:   "Condense aged done tasks into digest events",
	Long: `Condense the event streams of aged done tasks into single digest
events using a Haiku-class model. The digest is appended as a NOTE
carrying the summarized event IDs as evidence; the raw stream stays
intact, so distillation never loses provenance.

Requires ANTHROPIC_API_KEY unless --dry-run.

Examples:
  rwm distill --dry-run             # Preview eligible tasks
  rwm distill --all                 # Distill every eligible task
  rwm distill --id T-fix-resolver   # Distill one task
  rwm distill --all --age-days 30 --workers 2
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if distillID == "" && !distillAll && !distillDryRun {
			return fmt.Errorf("must specify --all, --id, or --dry-run")
		}

		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" && !distillDryRun {
			return fmt.Errorf("distillation requires ANTHROPIC_API_KEY (or use --dry-run)")
		}

		workers := distillWorkers
		if workers <= 0 {
			workers = config.GetInt("distill.workers")
		}
		ageDays := distillAgeDays
		if ageDays <= 0 {
			ageDays = config.GetInt("distill.age-days")
		}

		cfg := &distill.Config{
			APIKey:       apiKey,
			Model:        config.GetString("distill.model"),
			Concurrency:  workers,
			MinAge:       time.Duration(ageDays) * 24 * time.Hour,
			DryRun:       distillDryRun,
			AuditEnabled: true,
			Actor:        actor,
		}
		distiller, err := distill.New(store, apiKey, cfg)
		if err != nil {
			return fmt.Errorf("failed to create distiller: %w", err)
		}

		if distillID != "" {
			return distillSingle(distiller, distillID)
		}
		return distillEligible(distiller)
	},
}

func init() {
	distillCmd.Flags().BoolVar(&distillDryRun, "dry-run", false, "Preview without distilling")
	distillCmd.Flags().StringVar(&distillID, "id", "", "Distill one task by ID")
	distillCmd.Flags().BoolVar(&distillAll, "all", false, "Distill every eligible task")
	distillCmd.Flags().IntVar(&distillLimit, "limit", 50, "Maximum tasks per run")
	distillCmd.Flags().IntVar(&distillWorkers, "workers", 0, "Concurrent summarizations (default: config distill.workers)")
	distillCmd.Flags().IntVar(&distillAgeDays, "age-days", 0, "Minimum days since last update (default: config distill.age-days)")
	rootCmd.AddCommand(distillCmd)
}

func distillSingle(distiller *distill.Distiller, taskID string) error {
	err := distiller.DistillTask(rootCtx, taskID)
	if err != nil {
		// Dry-run surfaces as a would-distill report, not a failure.
		if distillDryRun {
			if jsonOutput {
				outputJSON(map[string]any{"dry_run": true, "task_id": taskID, "detail": err.Error()})
				return nil
			}
			fmt.Println(err.Error())
			return nil
		}
		return err
	}

	if jsonOutput {
		outputJSON(map[string]any{"task_id": taskID, "distilled": true})
		return nil
	}
	fmt.Printf("%s Distilled %s\n", ui.RenderPassIcon(), taskID)
	return nil
}

func distillEligible(distiller *distill.Distiller) error {
	candidates, err := distiller.ListCandidates(rootCtx, distillLimit)
	if err != nil {
		return fmt.Errorf("failed to list candidates: %w", err)
	}
	if len(candidates) == 0 {
		if jsonOutput {
			outputJSON(map[string]any{"distilled": 0, "failed": 0, "results": []any{}})
			return nil
		}
		fmt.Println("No distillable tasks.")
		return nil
	}

	taskIDs := make([]string, 0, len(candidates))
	for _, task := range candidates {
		taskIDs = append(taskIDs, task.ID)
	}

	results, err := distiller.DistillBatch(rootCtx, taskIDs)
	if err != nil {
		return fmt.Errorf("distillation failed: %w", err)
	}

	distilled, failed := 0, 0
	type resultOut struct {
		TaskID     string `json:"task_id"`
		EventCount int    `json:"event_count"`
		DigestID   string `json:"digest_id,omitempty"`
		Error      string `json:"error,omitempty"`
	}
	out := make([]resultOut, 0, len(results))
	for _, res := range results {
		r := resultOut{TaskID: res.TaskID, EventCount: res.EventCount, DigestID: res.DigestID}
		if res.Err != nil {
			failed++
			r.Error = res.Err.Error()
		} else {
			distilled++
		}
		out = append(out, r)
	}

	if jsonOutput {
		outputJSON(map[string]any{
			"dry_run":   distillDryRun,
			"distilled": distilled,
			"failed":    failed,
			"results":   out,
		})
		return nil
	}

	for _, r := range out {
		switch {
		case r.Error != "" && distillDryRun:
			fmt.Printf("%s %s: %s\n", ui.RenderWarnIcon(), r.TaskID, r.Error)
		case r.Error != "":
			failedLine := fmt.Sprintf("%s: %s", r.TaskID, r.Error)
			fmt.Printf("%s %s\n", ui.RenderFailIcon(), failedLine)
		case distillDryRun:
			fmt.Printf("%s %s: would distill %d event(s)\n", ui.RenderPassIcon(), r.TaskID, r.EventCount)
		default:
			fmt.Printf("%s %s: %d event(s) -> %s\n", ui.RenderPassIcon(), r.TaskID, r.EventCount, r.DigestID)
		}
	}
	if distillDryRun {
		fmt.Printf("\nDRY RUN: %d task(s) eligible\n", distilled)
	} else {
		fmt.Printf("\nDistilled %d task(s), %d failed\n", distilled, failed)
	}
	return nil
}
