package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"github.com/untoldecay/rwm/internal/config"
	"github.com/untoldecay/rwm/internal/session"
	"github.com/untoldecay/rwm/internal/storage/sqlite"
	"github.com/untoldecay/rwm/internal/ui"
	"github.com/untoldecay/rwm/internal/workspace"
)

var initCmd = &cobra.Command{
	Use:     "init",
	GroupID: "setup",
	Short:   "Initialize working memory in this project",
	Long: `Initialize working memory by creating a .rwm/ directory with the
database, artifact pool, hooks directory, and a config file.

On a terminal, an interactive form asks for the token estimator
family and bundle budget; --no-input or piped stdin skips it and
takes flag/config values.

Examples:
  rwm init
  rwm init --model-family openai --bundle-tokens 6000 --no-input
  rwm init --force                  # Reinitialize over an existing .rwm
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		noInput, _ := cmd.Flags().GetBool("no-input")
		return runInit(force, noInput)
	},
}

func init() {
	initCmd.Flags().Bool("force", false, "Reinitialize even if .rwm already exists")
	initCmd.Flags().Bool("no-input", false, "Skip the interactive form")
	rootCmd.AddCommand(initCmd)
}

func runInit(force, noInput bool) error {
	root := rootDir
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get current directory: %w", err)
		}
		root = cwd
	}
	stateDir := filepath.Join(root, workspace.StateDirName)

	// Nested state dirs only confuse discovery.
	cleanRoot := filepath.Clean(root)
	if strings.Contains(cleanRoot, string(filepath.Separator)+workspace.StateDirName+string(filepath.Separator)) ||
		strings.HasSuffix(cleanRoot, string(filepath.Separator)+workspace.StateDirName) {
		return fmt.Errorf("cannot initialize inside a %s directory", workspace.StateDirName)
	}

	if _, err := os.Stat(stateDir); err == nil && !force {
		return fmt.Errorf("%s already exists; use --force to reinitialize", stateDir)
	}

	family := modelFamily
	budget := bundleTokens
	if budget <= 0 {
		budget = config.GetInt("bundle-tokens")
	}
	if family == "" {
		family = config.GetString("model-family")
	}

	if ui.IsTerminal() && !noInput {
		chosenFamily, chosenBudget, err := runInitForm(family, budget)
		if err != nil {
			if err == huh.ErrUserAborted {
				fmt.Fprintln(os.Stderr, "Init cancelled.")
				return nil
			}
			return fmt.Errorf("form error: %w", err)
		}
		family = chosenFamily
		budget = chosenBudget
	}

	if err := os.MkdirAll(stateDir, 0o750); err != nil {
		return fmt.Errorf("failed to create %s: %w", stateDir, err)
	}

	initDBPath := dbPath
	if initDBPath == "" {
		initDBPath = filepath.Join(stateDir, workspace.DatabaseName)
	}
	poolDir := artifactsPath
	if poolDir == "" {
		poolDir = filepath.Join(stateDir, workspace.ArtifactsDirName)
	}
	hooksDir := filepath.Join(stateDir, "hooks")

	store, err := sqlite.New(rootCtx, initDBPath)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	_ = store.Close()

	if err := os.MkdirAll(poolDir, 0o750); err != nil {
		return fmt.Errorf("failed to create artifact pool: %w", err)
	}
	if err := os.MkdirAll(hooksDir, 0o750); err != nil {
		return fmt.Errorf("failed to create hooks directory: %w", err)
	}

	if err := writeStateGitignore(stateDir); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to write .gitignore: %v\n", err)
	}

	configPath, err := writeConfigYaml(stateDir, family, budget, force)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to write config.yaml: %v\n", err)
	}

	sessionID := session.NewResolver().Normalize("", root)

	result := ui.InitResult{
		DBPath:       initDBPath,
		ArtifactsDir: poolDir,
		HooksDir:     hooksDir,
		ConfigPath:   configPath,
		SessionID:    sessionID,
		Budget:       budget,
		QuickstartCommands: []string{
			`rwm commit --task "What you are working on"`,
			"rwm resume",
		},
	}

	if jsonOutput {
		outputJSON(map[string]any{
			"db_path":    initDBPath,
			"artifacts":  poolDir,
			"hooks":      hooksDir,
			"config":     configPath,
			"session_id": sessionID,
			"budget":     budget,
		})
		return nil
	}
	if quietFlag {
		return nil
	}
	fmt.Println()
	fmt.Println(ui.RenderInitReport(result, ui.GetWidth()))
	fmt.Println()
	return nil
}

// runInitForm asks for the estimator family and bundle budget.
func runInitForm(defaultFamily string, defaultBudget int) (string, int, error) {
	family := defaultFamily
	if family == "" {
		family = "generic"
	}
	budgetStr := strconv.Itoa(defaultBudget)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Token estimator").
				Description("Which model family will resume bundles be sized for?").
				Options(
					huh.NewOption("Generic (chars/4 heuristic)", "generic"),
					huh.NewOption("OpenAI (tiktoken BPE)", "openai"),
					huh.NewOption("Anthropic (heuristic)", "anthropic"),
				).
				Value(&family),

			huh.NewInput().
				Title("Bundle budget").
				Description("Token budget for one resume bundle").
				Value(&budgetStr).
				Validate(func(s string) error {
					n, err := strconv.Atoi(strings.TrimSpace(s))
					if err != nil || n <= 0 {
						return fmt.Errorf("budget must be a positive integer")
					}
					return nil
				}),

			huh.NewConfirm().
				Title("Initialize working memory here?").
				Affirmative("Initialize").
				Negative("Cancel"),
		),
	)

	if err := form.Run(); err != nil {
		return "", 0, err
	}

	budget, err := strconv.Atoi(strings.TrimSpace(budgetStr))
	if err != nil || budget <= 0 {
		budget = config.GetInt("bundle-tokens")
	}
	return family, budget, nil
}

// writeStateGitignore keeps the machine-local parts of .rwm out of
// version control. Idempotent; always rewritten to the latest template.
func writeStateGitignore(stateDir string) error {
	content := `# Machine-local working memory state
rwm.db
rwm.db-shm
rwm.db-wal
rwm_artifacts/
serve*.log*
rwm.lock
interactions.jsonl
`
	return os.WriteFile(filepath.Join(stateDir, ".gitignore"), []byte(content), 0o600)
}

// writeConfigYaml writes the state-dir config template. An existing
// file is left alone unless force is set.
func writeConfigYaml(stateDir, family string, budget int, force bool) (string, error) {
	configPath := filepath.Join(stateDir, "config.yaml")
	if _, err := os.Stat(configPath); err == nil && !force {
		return configPath, nil
	}

	content := fmt.Sprintf(`# rwm configuration
# Settings here apply to every rwm command in this project.
# Environment variables (RWM_* prefix) and flags override them.

# Token budget for one resume bundle
bundle-tokens: %d

# Token estimator family: generic, openai, anthropic
model-family: %s

# Default actor for hook payloads (overridden by RWM_ACTOR or --actor)
# actor: ""

# Enable JSON output by default
# json: false

# Skip .rwm/hooks execution
# no-hooks: false

# Per-hook execution timeout
# hooks-timeout: 30s

# Serve-mode log file (default: .rwm/serve.log)
# log-file: ""

# Distillation of aged done tasks
# distill:
#   model: claude-3-5-haiku-20241022
#   age-days: 14
#   workers: 4
`, budget, family)

	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		return "", err
	}
	return configPath, nil
}
