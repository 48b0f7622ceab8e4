package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/untoldecay/rwm/internal/config"
	"github.com/untoldecay/rwm/internal/debug"
	"github.com/untoldecay/rwm/internal/hooks"
	"github.com/untoldecay/rwm/internal/lockfile"
	"github.com/untoldecay/rwm/internal/memory"
	"github.com/untoldecay/rwm/internal/rpc"
	"github.com/untoldecay/rwm/internal/types"
	"github.com/untoldecay/rwm/internal/workspace"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	GroupID: "setup",
	Short:   "Serve memory operations over stdio",
	Long: `Serve line-delimited JSON requests on stdin, one response per line
on stdout. This is the transport a host agent speaks; humans use the
one-shot commands instead.

A lock under .rwm/ keeps a single serving owner per workspace.
Diagnostics go to a rotated log file because stdout carries the
protocol.

Examples:
  rwm serve                         # Serve until stdin closes
  echo '{"operation":"ping"}' | rwm serve
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	lock, err := lockfile.Acquire(stateDirPath(), dbPath, Version)
	if err != nil {
		if errors.Is(err, lockfile.ErrLockBusy) {
			if info, rerr := lockfile.ReadInfo(stateDirPath()); rerr == nil {
				return fmt.Errorf("another rwm serve (pid %d, version %s) already owns this workspace", info.PID, info.Version)
			}
		}
		return fmt.Errorf("failed to acquire serve lock: %w", err)
	}
	defer func() { _ = lock.Release() }()

	logPath := config.GetString("log-file")
	if logPath == "" {
		logPath = filepath.Join(stateDirPath(), workspace.ServeLogName)
	}
	logCloser := debug.LogToFile(logPath)
	defer func() { _ = logCloser.Close() }()

	debug.Logf("serve: starting version=%s db=%s pool=%s\n", Version, dbPath, artifactsPath)

	watcher, err := NewPoolWatcher(artifactsPath)
	if err != nil {
		debug.Logf("serve: pool watcher unavailable: %v\n", err)
	} else {
		watcher.Start(rootCtx)
		defer func() { _ = watcher.Close() }()
	}

	rpc.ServerVersion = Version
	server := rpc.NewServer(engine, rootDir, dbPath, artifactsPath)
	if hookRunner != nil {
		server.OnCommit(func(res *memory.CommitResult) {
			hookRunner.Run(hooks.EventCommit, res.SessionID, res)
		})
		server.OnCheckpoint(func(cp *types.Checkpoint) {
			hookRunner.Run(hooks.EventCheckpoint, cp.SessionID, cp)
		})
	}

	// A signal cannot interrupt a blocked stdin read, so close stdin
	// to unwind the serve loop.
	go func() {
		<-rootCtx.Done()
		_ = os.Stdin.Close()
	}()

	err = server.Serve(os.Stdin, os.Stdout)
	if rootCtx.Err() != nil {
		debug.Logf("serve: stopped on signal\n")
		return nil
	}
	if err != nil {
		debug.Logf("serve: stopped with error: %v\n", err)
		return err
	}
	debug.Logf("serve: stdin closed, exiting\n")
	return nil
}
