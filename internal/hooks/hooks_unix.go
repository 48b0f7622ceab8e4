//go:build unix

package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"syscall"
)

// runHook executes the hook and enforces a timeout, killing the process group
// on expiration to ensure descendant processes are terminated.
func (r *Runner) runHook(hookPath, event, sessionID string, payload any) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	// Prepare JSON data for stdin
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	// Create command: hook_script <session_id> <event_type>
	// #nosec G204 -- hookPath is from controlled .rwm/hooks directory
	cmd := exec.CommandContext(ctx, hookPath, sessionID, event)
	cmd.Stdin = bytes.NewReader(payloadJSON)

	// Capture output for debugging (but don't block on it)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// Start the hook so we can manage its process group and kill children on
	// timeout. Scripts may spawn child processes; if we only kill the
	// immediate process, descendants can survive and keep the caller
	// blocked. Creating a process group (Setpgid) and sending a negative
	// PID to syscall.Kill terminates the whole group reliably.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case <-ctx.Done():
		if cmd.Process != nil {
			if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
				return fmt.Errorf("kill process group: %w", err)
			}
		}
		// Wait for process to exit after the kill attempt
		<-done
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return err
		}
		return nil
	}
}
