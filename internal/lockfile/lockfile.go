// Package lockfile manages the single-server lock under .rwm/.
//
// The OS-level flock is authoritative: it is released automatically when
// the holding process dies, so it is immune to PID reuse. The JSON
// metadata written into the lock file is advisory, for diagnostics and
// status reporting only.
package lockfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

// LockFileName is the lock file inside the state directory.
const LockFileName = "rwm.lock"

// ErrLockBusy is returned when another process holds the serve lock.
var ErrLockBusy = errors.New("serve lock already held by another process")

// LockInfo is the advisory metadata written into the lock file.
type LockInfo struct {
	PID       int       `json:"pid"`
	ParentPID int       `json:"parent_pid,omitempty"`
	Database  string    `json:"database,omitempty"`
	Version   string    `json:"version,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// IsAlive reports whether the process recorded in the metadata is
// running. Advisory only; PID reuse can produce false positives.
func (info *LockInfo) IsAlive() bool {
	return isProcessRunning(info.PID)
}

// Lock is a held serve lock. Release it when the server shuts down.
type Lock struct {
	fl   *flock.Flock
	path string
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Acquire takes the exclusive serve lock for stateDir and records the
// caller's metadata in the lock file. Returns ErrLockBusy (wrapped with
// holder details when readable) if another process holds the lock.
func Acquire(stateDir, dbPath, version string) (*Lock, error) {
	if err := os.MkdirAll(stateDir, 0o750); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	lockPath := filepath.Join(stateDir, LockFileName)
	fl := flock.New(lockPath)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire serve lock: %w", err)
	}
	if !locked {
		if info, rerr := ReadInfo(stateDir); rerr == nil && info.PID > 0 {
			return nil, fmt.Errorf("%w (pid %d since %s)",
				ErrLockBusy, info.PID, info.StartedAt.Format(time.RFC3339))
		}
		return nil, ErrLockBusy
	}

	info := &LockInfo{
		PID:       os.Getpid(),
		ParentPID: os.Getppid(),
		Database:  dbPath,
		Version:   version,
		StartedAt: time.Now().UTC(),
	}
	if data, merr := json.Marshal(info); merr == nil {
		// Metadata write is best-effort; the flock is what matters.
		_ = os.WriteFile(lockPath, data, 0o600)
	}

	return &Lock{fl: fl, path: lockPath}, nil
}

// Release unlocks and removes the lock file.
func (l *Lock) Release() error {
	err := l.fl.Unlock()
	_ = os.Remove(l.path)
	return err
}

// ReadInfo reads lock metadata from stateDir. Supports the JSON format
// and a legacy plain-PID format.
func ReadInfo(stateDir string) (*LockInfo, error) {
	lockPath := filepath.Join(stateDir, LockFileName)
	data, err := os.ReadFile(lockPath) // #nosec G304 -- path is derived from the state dir
	if err != nil {
		return nil, err
	}

	var info LockInfo
	if err := json.Unmarshal(data, &info); err == nil {
		return &info, nil
	}

	// Legacy format: just a PID
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("unrecognized lock file format")
	}
	return &LockInfo{PID: pid}, nil
}

// ServerRunning reports whether a live server appears to hold the lock
// for stateDir, along with its metadata when readable.
func ServerRunning(stateDir string) (bool, *LockInfo) {
	info, err := ReadInfo(stateDir)
	if err != nil {
		return false, nil
	}
	if !info.IsAlive() {
		return false, info
	}
	return true, info
}
