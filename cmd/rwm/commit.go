package main

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/untoldecay/rwm/internal/hooks"
	"github.com/untoldecay/rwm/internal/types"
	"gopkg.in/yaml.v3"
)

var commitCmd = &cobra.Command{
	Use:     "commit",
	GroupID: "memory",
	Short:   "Commit a state frame to working memory",
	Long: `Commit one state frame: the task being worked, decisions made,
artifacts captured, and facts learned. Flags build a frame inline; a
YAML document commits a richer one.

Examples:
  rwm commit --task "Fix session resolver"
  rwm commit --decision "DECISION:resolve aliases at commit time"
  rwm commit --fact "build.cmd=make test@repo"
  rwm commit --artifact "SNIPPET:internal/session/resolver.go@40-62"
  rwm commit --file frame.yaml      # Full frame from a document
  cat frame.yaml | rwm commit --file -
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		session, _ := cmd.Flags().GetString("session")
		task, _ := cmd.Flags().GetString("task")
		decisionFlags, _ := cmd.Flags().GetStringArray("decision")
		factFlags, _ := cmd.Flags().GetStringArray("fact")
		artifactFlags, _ := cmd.Flags().GetStringArray("artifact")
		framePath, _ := cmd.Flags().GetString("file")

		var input *types.CommitInput
		if framePath != "" {
			if task != "" || len(decisionFlags)+len(factFlags)+len(artifactFlags) > 0 {
				return fmt.Errorf("--file cannot be combined with --task, --decision, --fact, or --artifact")
			}
			frame, err := loadFrameFile(framePath)
			if err != nil {
				return err
			}
			input = frame
			if session != "" {
				input.SessionID = session
			}
		} else {
			input = &types.CommitInput{SessionID: session, Task: task}
			for _, raw := range decisionFlags {
				d, err := parseDecisionFlag(raw)
				if err != nil {
					return err
				}
				input.Decisions = append(input.Decisions, d)
			}
			for _, raw := range factFlags {
				f, err := parseFactFlag(raw)
				if err != nil {
					return err
				}
				input.Facts = append(input.Facts, f)
			}
			for _, raw := range artifactFlags {
				a, err := parseArtifactFlag(raw)
				if err != nil {
					return err
				}
				input.Artifacts = append(input.Artifacts, a)
			}
		}

		if input.Task == "" && len(input.Decisions)+len(input.Artifacts)+len(input.Facts) == 0 {
			return fmt.Errorf("nothing to commit (supply --task, --decision, --fact, --artifact, or --file)")
		}

		res, err := engine.Commit(rootCtx, input)
		if err != nil {
			return err
		}
		if hookRunner != nil {
			hookRunner.Run(hooks.EventCommit, res.SessionID, res)
		}

		if jsonOutput {
			outputJSON(res)
			return nil
		}

		fmt.Printf("Committed to %s\n", res.SessionID)
		if res.TaskID != "" {
			fmt.Printf("  task      %s\n", res.TaskID)
		}
		for _, id := range res.EventIDs {
			fmt.Printf("  event     %s\n", id)
		}
		for _, id := range res.ArtifactIDs {
			fmt.Printf("  artifact  %s\n", id)
		}
		for _, id := range res.FactIDs {
			fmt.Printf("  fact      %s\n", id)
		}
		return nil
	},
}

func init() {
	commitCmd.Flags().String("session", "", "Session ID or alias (default: current branch session)")
	commitCmd.Flags().String("task", "", "Task title being worked (upserted as doing)")
	commitCmd.Flags().StringArray("decision", nil, "Decision event as kind:summary (repeatable)")
	commitCmd.Flags().StringArray("fact", nil, "Durable fact as key=value[@scope] (repeatable)")
	commitCmd.Flags().StringArray("artifact", nil, "Artifact as kind:path[@start-end] or kind:uri (repeatable)")
	commitCmd.Flags().String("file", "", "YAML state-frame document (- for stdin)")
	rootCmd.AddCommand(commitCmd)
}

// parseDecisionFlag parses "kind:summary". The kind is
// case-insensitive; validity is checked by the frame validator.
func parseDecisionFlag(raw string) (types.DecisionInput, error) {
	kind, summary, ok := strings.Cut(raw, ":")
	if !ok || strings.TrimSpace(summary) == "" || strings.TrimSpace(kind) == "" {
		return types.DecisionInput{}, fmt.Errorf("invalid --decision %q (want kind:summary)", raw)
	}
	return types.DecisionInput{
		Type:    types.EventKind(strings.ToUpper(strings.TrimSpace(kind))),
		Summary: strings.TrimSpace(summary),
	}, nil
}

// parseFactFlag parses "key=value[@scope]". The scope suffix is only
// honored when it names a real scope, so values may contain @.
func parseFactFlag(raw string) (types.FactInput, error) {
	key, rest, ok := strings.Cut(raw, "=")
	if !ok || strings.TrimSpace(key) == "" {
		return types.FactInput{}, fmt.Errorf("invalid --fact %q (want key=value[@scope])", raw)
	}
	value := rest
	var scope types.FactScope
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		if s := types.FactScope(rest[at+1:]); s.IsValid() {
			value = rest[:at]
			scope = s
		}
	}
	return types.FactInput{Key: strings.TrimSpace(key), Value: value, Scope: scope}, nil
}

var artifactSpanSuffix = regexp.MustCompile(`^(\d+)-(\d+)$`)

// parseArtifactFlag parses "kind:target[@start-end]". A target with a
// scheme becomes a URI pointer; anything else is a workspace path.
func parseArtifactFlag(raw string) (types.ArtifactInput, error) {
	kind, target, ok := strings.Cut(raw, ":")
	if !ok || strings.TrimSpace(target) == "" || strings.TrimSpace(kind) == "" {
		return types.ArtifactInput{}, fmt.Errorf("invalid --artifact %q (want kind:path[@start-end] or kind:uri)", raw)
	}
	in := types.ArtifactInput{Kind: types.ArtifactKind(strings.ToUpper(strings.TrimSpace(kind)))}

	if at := strings.LastIndex(target, "@"); at >= 0 {
		if m := artifactSpanSuffix.FindStringSubmatch(target[at+1:]); m != nil {
			in.StartLine, _ = strconv.Atoi(m[1])
			in.EndLine, _ = strconv.Atoi(m[2])
			target = target[:at]
		}
	}
	if strings.Contains(target, "://") {
		in.URI = target
	} else {
		in.Path = target
	}
	return in, nil
}

// frameDoc is the YAML shape of a state-frame file. Field names track
// the JSON wire schema.
type frameDoc struct {
	SessionID string          `yaml:"session_id"`
	Task      string          `yaml:"task"`
	Decisions []frameDecision `yaml:"decisions"`
	Artifacts []frameArtifact `yaml:"artifacts"`
	Facts     []frameFact     `yaml:"facts"`
}

type frameDecision struct {
	ID       string   `yaml:"id"`
	Type     string   `yaml:"type"`
	TaskID   string   `yaml:"task_id"`
	Summary  string   `yaml:"summary"`
	Evidence []string `yaml:"evidence"`
}

type frameArtifact struct {
	ID        string         `yaml:"id"`
	Kind      string         `yaml:"kind"`
	URI       string         `yaml:"uri"`
	Text      *string        `yaml:"text"`
	Path      string         `yaml:"path"`
	StartLine int            `yaml:"startLine"`
	EndLine   int            `yaml:"endLine"`
	Meta      map[string]any `yaml:"meta"`
}

type frameFact struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
	Scope string `yaml:"scope"`
}

func (d *frameDoc) toCommitInput() *types.CommitInput {
	input := &types.CommitInput{
		SessionID: d.SessionID,
		Task:      d.Task,
	}
	for _, dec := range d.Decisions {
		input.Decisions = append(input.Decisions, types.DecisionInput{
			ID:       dec.ID,
			Type:     types.EventKind(strings.ToUpper(dec.Type)),
			TaskID:   dec.TaskID,
			Summary:  dec.Summary,
			Evidence: dec.Evidence,
		})
	}
	for _, art := range d.Artifacts {
		input.Artifacts = append(input.Artifacts, types.ArtifactInput{
			ID:        art.ID,
			Kind:      types.ArtifactKind(strings.ToUpper(art.Kind)),
			URI:       art.URI,
			Text:      art.Text,
			Path:      art.Path,
			StartLine: art.StartLine,
			EndLine:   art.EndLine,
			Meta:      art.Meta,
		})
	}
	for _, f := range d.Facts {
		input.Facts = append(input.Facts, types.FactInput{
			Key:   f.Key,
			Value: f.Value,
			Scope: types.FactScope(f.Scope),
		})
	}
	return input
}

// loadFrameFile reads a YAML state-frame document. "-" reads stdin.
func loadFrameFile(path string) (*types.CommitInput, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path) // #nosec G304 -- user-supplied frame path
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read frame file: %w", err)
	}

	var doc frameDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse frame file: %w", err)
	}
	return doc.toCommitInput(), nil
}
