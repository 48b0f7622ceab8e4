package main

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/untoldecay/rwm/internal/memory"
	"github.com/untoldecay/rwm/internal/types"
	"github.com/untoldecay/rwm/internal/utils"
)

var fetchCmd = &cobra.Command{
	Use:     "fetch <id>",
	GroupID: "views",
	Short:   "Fetch a record by ID",
	Long: `Fetch a single record by ID. Tasks, events, artifacts, facts, and
checkpoints are all probed, so any ID a bundle points at works.

Examples:
  rwm fetch T-fix-session-resolver
  rwm fetch D-a3f8c2b91c
  rwm fetch A-4fd02a --resolve      # Print the artifact body
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resolve, _ := cmd.Flags().GetBool("resolve")

		res, err := engine.Fetch(rootCtx, args[0])
		if err != nil {
			if types.IsKind(err, types.ErrNotFound) && !quietFlag {
				suggestClosestID(args[0])
			}
			return err
		}

		if resolve {
			if res.Resource == "" {
				return fmt.Errorf("%s has no resolvable body", args[0])
			}
			resource, err := engine.Resolve(res.Resource)
			if err != nil {
				return err
			}
			if jsonOutput {
				outputJSON(resource)
				return nil
			}
			if resource.MimeType == "text/plain" {
				fmt.Print(resource.Text)
				if !strings.HasSuffix(resource.Text, "\n") {
					fmt.Println()
				}
				return nil
			}
			raw, err := base64.StdEncoding.DecodeString(resource.Base64)
			if err != nil {
				return fmt.Errorf("failed to decode resource body: %w", err)
			}
			_, err = os.Stdout.Write(raw)
			return err
		}

		if jsonOutput {
			outputJSON(res)
			return nil
		}
		printRecord(res)
		return nil
	},
}

func init() {
	fetchCmd.Flags().Bool("resolve", false, "Resolve and print the record's body (artifacts)")
	rootCmd.AddCommand(fetchCmd)
}

// suggestClosestID prints a typo hint when a nearby record ID exists.
// Distance 3 keeps suggestions to plausible typos; random-suffix IDs
// that merely share a prefix stay out.
func suggestClosestID(query string) {
	ids, err := store.ListRecordIDs(rootCtx)
	if err != nil {
		return
	}
	if closest, _ := utils.ClosestMatch(query, ids, 3); closest != "" {
		fmt.Fprintf(os.Stderr, "Did you mean: rwm fetch %s\n\n", closest)
	}
}

func printRecord(res *memory.FetchResult) {
	switch rec := res.Record.(type) {
	case *types.Task:
		fmt.Printf("task %s\n", rec.ID)
		fmt.Printf("  title    %s\n", rec.Title)
		fmt.Printf("  status   %s\n", rec.Status)
		fmt.Printf("  session  %s\n", rec.SessionID)
		if rec.ParentID != nil {
			fmt.Printf("  parent   %s\n", *rec.ParentID)
		}
		if rec.AcceptCriteria != nil {
			fmt.Printf("  accept   %s\n", *rec.AcceptCriteria)
		}
		fmt.Printf("  updated  %s\n", rec.UpdatedAt.Format(time.RFC3339))

	case *types.Event:
		fmt.Printf("event %s\n", rec.ID)
		fmt.Printf("  kind     %s\n", rec.Kind)
		fmt.Printf("  session  %s\n", rec.SessionID)
		if rec.TaskID != nil {
			fmt.Printf("  task     %s\n", *rec.TaskID)
		}
		fmt.Printf("  summary  %s\n", rec.Summary)
		if len(rec.EvidenceIDs) > 0 {
			fmt.Printf("  evidence %s\n", strings.Join(rec.EvidenceIDs, ", "))
		}
		fmt.Printf("  ts       %s\n", rec.TS.Format(time.RFC3339))

	case *types.Artifact:
		fmt.Printf("artifact %s\n", rec.ID)
		fmt.Printf("  kind     %s\n", rec.Kind)
		if rec.URI != "" {
			fmt.Printf("  uri      %s\n", rec.URI)
		}
		fmt.Printf("  sha256   %s\n", rec.SHA256)
		fmt.Printf("  size     %d\n", rec.Size)
		if res.Resource != "" {
			fmt.Printf("  resource %s\n", res.Resource)
		}
		fmt.Printf("  created  %s\n", rec.CreatedAt.Format(time.RFC3339))

	case *types.Fact:
		fmt.Printf("fact %s\n", rec.ID)
		fmt.Printf("  key      %s\n", rec.Key)
		fmt.Printf("  value    %s\n", rec.Value)
		fmt.Printf("  scope    %s\n", rec.Scope)

	case *types.Checkpoint:
		fmt.Printf("checkpoint %s\n", rec.ID)
		fmt.Printf("  label    %s\n", rec.Label)
		fmt.Printf("  session  %s\n", rec.SessionID)
		fmt.Printf("  ts       %s\n", rec.TS.Format(time.RFC3339))
		if len(rec.BundleMeta) > 0 {
			fmt.Printf("  meta     %s\n", string(rec.BundleMeta))
		}

	default:
		outputJSON(res)
	}
}
