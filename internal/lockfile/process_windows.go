//go:build windows

package lockfile

import (
	"os"
)

// isProcessRunning checks if a process with the given PID is running.
// On Windows FindProcess opens a handle, which fails for dead PIDs.
func isProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	_, err := os.FindProcess(pid)
	return err == nil
}
