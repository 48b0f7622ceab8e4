package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/untoldecay/rwm/internal/artifacts"
	"github.com/untoldecay/rwm/internal/lockfile"
	"github.com/untoldecay/rwm/internal/types"
	"github.com/untoldecay/rwm/internal/ui"
)

// StatusOutput represents the complete status output
type StatusOutput struct {
	Summary  *types.Statistics `json:"summary"`
	Server   *ServerStatus     `json:"server"`
	Database *DatabaseStatus   `json:"database,omitempty"`
}

// ServerStatus reports whether a serve process owns the workspace.
type ServerStatus struct {
	Running   bool      `json:"running"`
	PID       int       `json:"pid,omitempty"`
	Version   string    `json:"version,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
}

// DatabaseStatus reports on-disk state of the store and artifact pool.
type DatabaseStatus struct {
	Path        string `json:"path"`
	SizeBytes   int64  `json:"size_bytes"`
	Integrity   string `json:"integrity,omitempty"`
	PoolFiles   int    `json:"pool_files"`
	PoolBytes   int64  `json:"pool_bytes"`
	AvailableMB uint64 `json:"available_mb,omitempty"`
}

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "views",
	Aliases: []string{"stats"},
	Short:   "Show working memory overview and statistics",
	Long: `Show a quick snapshot of the working memory state and statistics.

This command summarizes record counts by kind (tasks by status, events,
artifacts, facts, checkpoints), reports whether a serve process owns the
workspace, and checks the database file and artifact pool on disk.

Similar to how 'git status' shows working tree state, 'rwm status' gives
you an overview of the memory store without composing a bundle.

Examples:
  rwm status                   # Show summary with disk checks
  rwm status --no-disk         # Skip database and pool inspection
  rwm status --json            # JSON format output
  rwm stats                    # Alias for rwm status`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		noDisk, _ := cmd.Flags().GetBool("no-disk")

		stats, err := engine.Statistics(rootCtx)
		if err != nil {
			return fmt.Errorf("failed to gather statistics: %w", err)
		}

		server := &ServerStatus{}
		if running, info := lockfile.ServerRunning(stateDirPath()); running {
			server.Running = true
			server.PID = info.PID
			server.Version = info.Version
			server.StartedAt = info.StartedAt
		}

		var database *DatabaseStatus
		if !noDisk {
			database = inspectDisk()
		}

		output := &StatusOutput{
			Summary:  stats,
			Server:   server,
			Database: database,
		}

		if jsonOutput {
			outputJSON(output)
			return nil
		}

		fmt.Printf("\n%s Working Memory Status\n\n", ui.RenderAccent("📊"))

		fmt.Printf("Summary:\n")
		fmt.Printf("  Sessions:               %d\n", stats.Sessions)
		fmt.Printf("  Total Tasks:            %d\n", stats.TotalTasks)
		fmt.Printf("  Todo:                   %d\n", stats.TodoTasks)
		fmt.Printf("  Doing:                  %s\n", ui.RenderWarn(fmt.Sprintf("%d", stats.DoingTasks)))
		fmt.Printf("  Blocked:                %s\n", ui.RenderFail(fmt.Sprintf("%d", stats.BlockedTasks)))
		fmt.Printf("  Review:                 %d\n", stats.ReviewTasks)
		fmt.Printf("  Done:                   %s\n", ui.RenderPass(fmt.Sprintf("%d", stats.DoneTasks)))

		fmt.Printf("\nRecords:\n")
		fmt.Printf("  Events:                 %d (%d decisions, %d failures)\n",
			stats.TotalEvents, stats.DecisionEvents, stats.FailureEvents)
		fmt.Printf("  Artifacts:              %d (%d pointers)\n",
			stats.TotalArtifacts, stats.PointerArtifacts)
		fmt.Printf("  Facts:                  %d\n", stats.TotalFacts)
		fmt.Printf("  Checkpoints:            %d\n", stats.TotalCheckpoints)

		fmt.Printf("\nServer:\n")
		if server.Running {
			fmt.Printf("  Serving:                %s (pid %d, version %s, since %s)\n",
				ui.RenderPass("yes"), server.PID, server.Version,
				server.StartedAt.Format("2006-01-02 15:04"))
		} else {
			fmt.Printf("  Serving:                no\n")
		}

		if database != nil {
			fmt.Printf("\nDisk:\n")
			fmt.Printf("  Database:               %s (%s)\n", database.Path, humanSize(database.SizeBytes))
			if database.Integrity != "" && database.Integrity != "ok" {
				fmt.Printf("  Integrity:              %s\n", ui.RenderFail(database.Integrity))
			} else if database.Integrity == "ok" {
				fmt.Printf("  Integrity:              %s\n", ui.RenderPass("ok"))
			}
			fmt.Printf("  Artifact Pool:          %d file(s), %s\n", database.PoolFiles, humanSize(database.PoolBytes))
			// Warn if less than 100MB available.
			if database.AvailableMB > 0 && database.AvailableMB < 100 {
				fmt.Printf("  Free Space:             %s\n", ui.RenderWarn(fmt.Sprintf("low (%d MB)", database.AvailableMB)))
			}
		}

		fmt.Printf("\nFor bundle contents, run 'rwm resume'.\n")
		fmt.Println()
		return nil
	},
}

func init() {
	statusCmd.Flags().Bool("no-disk", false, "Skip database and artifact pool inspection (faster)")
	rootCmd.AddCommand(statusCmd)
}

// inspectDisk gathers database file and artifact pool state. Failures
// degrade to partial output rather than aborting the status report.
func inspectDisk() *DatabaseStatus {
	database := &DatabaseStatus{Path: dbPath}

	if fi, err := os.Stat(dbPath); err == nil {
		database.SizeBytes = fi.Size()
	}

	// Quick structural check, not a full integrity_check scan.
	if db := store.UnderlyingDB(); db != nil {
		var result string
		if err := db.QueryRowContext(rootCtx, "PRAGMA quick_check(1)").Scan(&result); err == nil {
			database.Integrity = result
		}
	}

	if entries, err := os.ReadDir(artifactsPath); err == nil {
		for _, entry := range entries {
			if entry.IsDir() || !artifacts.IsBodyName(entry.Name()) {
				continue
			}
			database.PoolFiles++
			if fi, err := entry.Info(); err == nil {
				database.PoolBytes += fi.Size()
			}
		}
	}

	if availableMB, ok := checkDiskSpace(dbPath); ok {
		database.AvailableMB = availableMB
	}

	return database
}

// humanSize renders a byte count in the largest sensible unit.
func humanSize(n int64) string {
	switch {
	case n >= 1024*1024*1024:
		return fmt.Sprintf("%.1f GB", float64(n)/(1024*1024*1024))
	case n >= 1024*1024:
		return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
	case n >= 1024:
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	default:
		return fmt.Sprintf("%d B", n)
	}
}
