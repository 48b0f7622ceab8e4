package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/untoldecay/rwm/internal/artifacts"
	"github.com/untoldecay/rwm/internal/debug"
)

// PoolWatcher flags files in the artifact pool that the store did not
// put there. Agents and humans both reach into .rwm/, and a stray
// file under the pool is invisible to fetch yet looks like prune
// inventory, so serve watches the directory and logs anything not
// named like a sha256 body.
type PoolWatcher struct {
	watcher      *fsnotify.Watcher
	debouncer    *Debouncer
	dir          string
	pollingMode  bool
	pollInterval time.Duration
	lastModTime  time.Time
	cancel       context.CancelFunc
	wg           sync.WaitGroup

	mu      sync.Mutex
	flagged map[string]struct{}
}

// NewPoolWatcher creates a watcher over the pool directory. Falls back
// to polling when fsnotify is unavailable, unless RWM_WATCHER_FALLBACK
// is "false" or "0".
func NewPoolWatcher(dir string) (*PoolWatcher, error) {
	pw := &PoolWatcher{
		dir:          dir,
		pollInterval: 5 * time.Second,
		flagged:      make(map[string]struct{}),
	}
	pw.debouncer = NewDebouncer(500*time.Millisecond, pw.scan)

	// The pool is created lazily on first write; watching needs it now.
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create pool directory: %w", err)
	}
	if stat, err := os.Stat(dir); err == nil {
		pw.lastModTime = stat.ModTime()
	}

	fallbackEnv := os.Getenv("RWM_WATCHER_FALLBACK")
	fallbackDisabled := fallbackEnv == "false" || fallbackEnv == "0"

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		if fallbackDisabled {
			return nil, fmt.Errorf("fsnotify.NewWatcher() failed and RWM_WATCHER_FALLBACK is disabled: %w", err)
		}
		debug.Logf("watcher: fsnotify unavailable (%v), polling every %v\n", err, pw.pollInterval)
		pw.pollingMode = true
		return pw, nil
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		if fallbackDisabled {
			return nil, fmt.Errorf("failed to watch pool directory and RWM_WATCHER_FALLBACK is disabled: %w", err)
		}
		debug.Logf("watcher: cannot watch %s (%v), polling every %v\n", dir, err, pw.pollInterval)
		pw.pollingMode = true
		return pw, nil
	}
	pw.watcher = watcher
	return pw, nil
}

// Start begins monitoring in the background until the context is
// canceled. Call Close to stop and release resources.
func (pw *PoolWatcher) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	pw.cancel = cancel

	// Flag anything already sitting in the pool.
	pw.debouncer.Trigger()

	if pw.pollingMode {
		pw.startPolling(ctx)
		return
	}

	pw.wg.Add(1)
	go func() {
		defer pw.wg.Done()
		for {
			select {
			case event, ok := <-pw.watcher.Events:
				if !ok {
					return
				}
				name := filepath.Base(event.Name)
				// Dotfiles are the pool's own in-flight temp writes.
				if strings.HasPrefix(name, ".") {
					continue
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
					continue
				}
				if artifacts.IsBodyName(name) {
					continue
				}
				pw.debouncer.Trigger()

			case err, ok := <-pw.watcher.Errors:
				if !ok {
					return
				}
				debug.Logf("watcher: error: %v\n", err)

			case <-ctx.Done():
				return
			}
		}
	}()
}

// startPolling stats the pool directory on a ticker. Entry churn bumps
// the directory mtime, which is all the fallback needs.
func (pw *PoolWatcher) startPolling(ctx context.Context) {
	debug.Logf("watcher: polling mode, %v interval\n", pw.pollInterval)
	ticker := time.NewTicker(pw.pollInterval)
	pw.wg.Add(1)
	go func() {
		defer pw.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				stat, err := os.Stat(pw.dir)
				if err != nil {
					continue
				}
				if !stat.ModTime().Equal(pw.lastModTime) {
					pw.lastModTime = stat.ModTime()
					pw.debouncer.Trigger()
				}

			case <-ctx.Done():
				return
			}
		}
	}()
}

// scan logs each foreign pool entry once per appearance. A file that
// leaves and comes back is flagged again.
func (pw *PoolWatcher) scan() {
	entries, err := os.ReadDir(pw.dir)
	if err != nil {
		debug.Logf("watcher: pool scan failed: %v\n", err)
		return
	}

	pw.mu.Lock()
	defer pw.mu.Unlock()

	current := make(map[string]struct{})
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") || artifacts.IsBodyName(name) {
			continue
		}
		current[name] = struct{}{}
		if _, ok := pw.flagged[name]; !ok {
			debug.Logf("watcher: foreign file in artifact pool: %s\n", name)
		}
	}
	pw.flagged = current
}

// Foreign returns the sorted names currently flagged as foreign.
func (pw *PoolWatcher) Foreign() []string {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	names := make([]string, 0, len(pw.flagged))
	for name := range pw.flagged {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close stops the watcher and waits for background work to finish.
func (pw *PoolWatcher) Close() error {
	if pw.cancel != nil {
		pw.cancel()
	}
	pw.wg.Wait()
	pw.debouncer.CancelAndWait()
	if pw.watcher != nil {
		return pw.watcher.Close()
	}
	return nil
}
