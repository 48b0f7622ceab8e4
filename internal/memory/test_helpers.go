package memory

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/untoldecay/rwm/internal/artifacts"
	"github.com/untoldecay/rwm/internal/storage/sqlite"
	"github.com/untoldecay/rwm/internal/types"
)

// testNow is the fixed engine clock in tests, so timestamps and
// recency boosts are stable.
var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// testSession is already canonical: commits under it resolve to it
// verbatim, with no git or date fallback involved.
const testSession = "proj@main"

// newTestEngine builds an engine over a fresh on-disk store and pool
// rooted in a temp dir. Tests reach into e.store and e.pool directly
// for assertions.
func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return newTestEngineOpts(t, nil)
}

func newTestEngineOpts(t *testing.T, opts *Options) *Engine {
	t.Helper()

	root := t.TempDir()
	store, err := sqlite.New(context.Background(), filepath.Join(root, "rwm.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if opts == nil {
		opts = &Options{}
	}
	if opts.Root == "" {
		opts.Root = root
	}
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return testNow }
	}
	pool := artifacts.NewPool(opts.Root, filepath.Join(opts.Root, "rwm_artifacts"))
	return NewEngine(store, pool, opts)
}

func mustCommit(t *testing.T, e *Engine, input *types.CommitInput) *CommitResult {
	t.Helper()
	res, err := e.Commit(context.Background(), input)
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	return res
}

func strptr(s string) *string {
	return &s
}
