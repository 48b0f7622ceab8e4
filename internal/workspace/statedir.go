package workspace

import (
	"os"
	"path/filepath"
)

// StateDirName is the per-project state directory created by rwm init.
const StateDirName = ".rwm"

// DatabaseName is the canonical database filename inside the state directory.
const DatabaseName = "rwm.db"

// ArtifactsDirName is the content-addressed artifact pool directory
// inside the state directory.
const ArtifactsDirName = "rwm_artifacts"

// ServeLogName is the default serve-mode log filename inside the
// state directory.
const ServeLogName = "serve.log"

// FindStateDir finds the .rwm/ directory for the current working
// directory, walking up through ancestors. The RWM_DIR environment
// variable overrides discovery. Returns empty string if not found.
func FindStateDir() string {
	if stateDir := os.Getenv("RWM_DIR"); stateDir != "" {
		if abs, err := filepath.Abs(stateDir); err == nil {
			stateDir = abs
		}
		if info, err := os.Stat(stateDir); err == nil && info.IsDir() {
			return stateDir
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	for dir := cwd; ; dir = filepath.Dir(dir) {
		stateDir := filepath.Join(dir, StateDirName)
		if info, err := os.Stat(stateDir); err == nil && info.IsDir() {
			return stateDir
		}
		if dir == filepath.Dir(dir) {
			return ""
		}
	}
}

// FindDatabasePath finds the rwm database in the current directory
// tree. The RWM_DB environment variable overrides discovery. Returns
// empty string if no project state exists.
func FindDatabasePath() string {
	if envDB := os.Getenv("RWM_DB"); envDB != "" {
		if abs, err := filepath.Abs(envDB); err == nil {
			return abs
		}
		return envDB
	}
	stateDir := FindStateDir()
	if stateDir == "" {
		return ""
	}
	dbPath := filepath.Join(stateDir, DatabaseName)
	if _, err := os.Stat(dbPath); err != nil {
		return ""
	}
	return dbPath
}
