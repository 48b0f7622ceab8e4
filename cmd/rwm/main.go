package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/untoldecay/rwm/internal/artifacts"
	"github.com/untoldecay/rwm/internal/config"
	"github.com/untoldecay/rwm/internal/debug"
	"github.com/untoldecay/rwm/internal/hooks"
	"github.com/untoldecay/rwm/internal/memory"
	"github.com/untoldecay/rwm/internal/storage/sqlite"
	"github.com/untoldecay/rwm/internal/tokens"
	"github.com/untoldecay/rwm/internal/workspace"
)

var (
	rootDir       string
	dbPath        string
	artifactsPath string
	actor         string
	jsonOutput    bool
	verboseFlag   bool
	quietFlag     bool
	bundleTokens  int
	modelFamily   string
	noHooks       bool

	store  *sqlite.Store
	engine *memory.Engine

	// Signal-aware context for graceful cancellation
	rootCtx    context.Context
	rootCancel context.CancelFunc

	// Hook runner for extensibility
	hookRunner *hooks.Runner
)

// noDatabaseCommands lists commands that run without a workspace. Every
// other command discovers .rwm/ and opens the store in PersistentPreRunE.
var noDatabaseCommands = map[string]bool{
	"init":       true,
	"version":    true,
	"help":       true,
	"completion": true,
	"__complete": true,
}

func isNoDatabaseCommand(cmd *cobra.Command) bool {
	return noDatabaseCommands[cmd.Name()]
}

func init() {
	// Initialize viper configuration
	if err := config.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize config: %v\n", err)
	}

	// Register persistent flags
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "", "Workspace root (default: parent of the discovered .rwm directory)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database path (default: auto-discover .rwm/rwm.db)")
	rootCmd.PersistentFlags().StringVar(&artifactsPath, "artifacts", "", "Artifact pool directory (default: .rwm/rwm_artifacts)")
	rootCmd.PersistentFlags().StringVar(&actor, "actor", "", "Actor name for hook payloads and request logs (default: $RWM_ACTOR, git user.name)")
	rootCmd.PersistentFlags().IntVar(&bundleTokens, "bundle-tokens", 0, "Default bundle token budget (default: config bundle-tokens, 4500)")
	rootCmd.PersistentFlags().StringVar(&modelFamily, "model-family", "", "Token estimator family: openai, anthropic, generic")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&noHooks, "no-hooks", false, "Skip .rwm/hooks execution")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose/debug output")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output (errors only)")

	// Add --version flag to root command (same behavior as version subcommand)
	rootCmd.Flags().BoolP("version", "V", false, "Print version information")

	// Command groups for organized help output
	rootCmd.AddGroup(&cobra.Group{ID: "memory", Title: "Working Memory:"})
	rootCmd.AddGroup(&cobra.Group{ID: "views", Title: "Views & Lookup:"})
	rootCmd.AddGroup(&cobra.Group{ID: "maint", Title: "Maintenance:"})
	rootCmd.AddGroup(&cobra.Group{ID: "setup", Title: "Setup & Serving:"})
}

var rootCmd = &cobra.Command{
	Use:   "rwm",
	Short: "rwm - Resumable working memory for coding agents",
	Long: `Per-project working memory a coding agent can commit to and resume from.

State frames record tasks, decisions, artifacts, and facts as work
happens; resume composes a budgeted bundle of pointers for the next
session's context window.`,
	Run: func(cmd *cobra.Command, args []string) {
		// Handle --version flag on root command
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("rwm version %s (%s)\n", Version, Build)
			return
		}
		// No subcommand - show help
		_ = cmd.Help() // Help() always returns nil for cobra commands
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// --- Phase 1: Universal setup (runs for every command) ---
		setupSignalContext()
		applyVerbosityFlags()
		applyViperOverrides(cmd)

		// --- Phase 2: Early exit for commands that run without a store ---
		if isNoDatabaseCommand(cmd) {
			return nil
		}

		// --- Phase 3: Workspace discovery and path resolution ---
		if err := discoverPaths(); err != nil {
			return err
		}

		// --- Phase 4: Actor, store, engine, hooks ---
		actor = config.GetActor(actor)
		if err := openEngine(cmd.Context()); err != nil {
			return err
		}
		initHookRunner()
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if store != nil {
			_ = store.Close()
			store = nil
		}
		if rootCancel != nil {
			rootCancel()
		}
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// setupSignalContext installs a context canceled by SIGINT/SIGTERM so
// long scans and the serve loop unwind instead of dying mid-write.
func setupSignalContext() {
	if rootCtx != nil {
		return
	}
	rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func applyVerbosityFlags() {
	if verboseFlag {
		debug.SetVerbose(true)
	}
	if quietFlag {
		debug.SetQuiet(true)
	}
}

// applyViperOverrides fills unset flags from config. Flags beat env
// vars beat config.yaml beat defaults; viper already folds the last
// three, so only explicitly-set flags shadow it.
func applyViperOverrides(cmd *cobra.Command) {
	if !cmd.Flags().Changed("json") {
		jsonOutput = config.GetBool("json")
	}
	if !cmd.Flags().Changed("quiet") && config.GetBool("quiet") {
		quietFlag = true
		debug.SetQuiet(true)
	}
	if !cmd.Flags().Changed("no-hooks") {
		noHooks = config.GetBool("no-hooks")
	}
	if bundleTokens <= 0 {
		bundleTokens = config.GetInt("bundle-tokens")
	}
	if modelFamily == "" {
		modelFamily = config.GetString("model-family")
	}
	if rootDir == "" {
		rootDir = config.GetString("root")
	}
	if dbPath == "" {
		dbPath = config.GetString("db")
	}
	if artifactsPath == "" {
		artifactsPath = config.GetString("artifacts")
	}
}

// discoverPaths resolves the workspace root, database path, and
// artifact pool directory from flags, config, and .rwm/ discovery.
func discoverPaths() error {
	if dbPath == "" {
		dbPath = workspace.FindDatabasePath()
	}

	stateDir := ""
	if dbPath != "" {
		stateDir = filepath.Dir(dbPath)
	} else {
		stateDir = workspace.FindStateDir()
	}

	if stateDir == "" && rootDir != "" {
		stateDir = filepath.Join(rootDir, workspace.StateDirName)
		if _, err := os.Stat(stateDir); err != nil {
			stateDir = ""
		}
	}
	if stateDir == "" {
		return fmt.Errorf("no %s directory found; run 'rwm init' first", workspace.StateDirName)
	}

	if dbPath == "" {
		dbPath = filepath.Join(stateDir, workspace.DatabaseName)
	}
	if rootDir == "" {
		rootDir = filepath.Dir(stateDir)
	}
	if artifactsPath == "" {
		artifactsPath = filepath.Join(stateDir, workspace.ArtifactsDirName)
	}
	return nil
}

// openEngine opens the store and wires the memory engine over it.
func openEngine(ctx context.Context) error {
	if ctx == nil {
		ctx = rootCtx
	}
	s, err := sqlite.New(ctx, dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database %s: %w", dbPath, err)
	}
	store = s

	pool := artifacts.NewPool(rootDir, artifactsPath)
	engine = memory.NewEngine(store, pool, &memory.Options{
		Root:   rootDir,
		Budget: bundleTokens,
		Family: tokens.ParseFamily(modelFamily),
	})
	return nil
}

func initHookRunner() {
	if noHooks {
		hookRunner = nil
		return
	}
	hookRunner = hooks.NewRunnerFromRoot(rootDir)
	if timeout := config.GetDuration("hooks-timeout"); timeout > 0 {
		hookRunner.SetTimeout(timeout)
	}
}

// stateDirPath returns the resolved .rwm directory for the workspace.
func stateDirPath() string {
	return filepath.Join(rootDir, workspace.StateDirName)
}

func main() {
	rootCmd.InitDefaultHelpCmd()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
