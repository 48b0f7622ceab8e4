package rpc

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/untoldecay/rwm/internal/artifacts"
	"github.com/untoldecay/rwm/internal/memory"
	"github.com/untoldecay/rwm/internal/storage/sqlite"
)

// Fixed clock and session so handler outputs are reproducible.
var (
	testNow     = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	testSession = "proj@main"
)

// newTestServer creates a server over a real engine in a temp root.
func newTestServer(t *testing.T) *Server {
	t.Helper()

	root := t.TempDir()
	dbPath := filepath.Join(root, "rwm.db")
	store, err := sqlite.New(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	artifactsPath := filepath.Join(root, "rwm_artifacts")
	pool := artifacts.NewPool(root, artifactsPath)
	engine := memory.NewEngine(store, pool, &memory.Options{
		Root:  root,
		Clock: func() time.Time { return testNow },
	})
	return NewServer(engine, root, dbPath, artifactsPath)
}

// call runs one operation with marshaled args through the dispatch
// path.
func call(t *testing.T, s *Server, op string, args any) Response {
	t.Helper()

	var raw json.RawMessage
	if args != nil {
		data, err := json.Marshal(args)
		if err != nil {
			t.Fatalf("failed to marshal args: %v", err)
		}
		raw = data
	}
	return s.handleRequest(&Request{Operation: op, Args: raw})
}

// callRaw runs one operation with a literal args payload, for cases
// where field presence matters.
func callRaw(t *testing.T, s *Server, op, rawArgs string) Response {
	t.Helper()
	return s.handleRequest(&Request{Operation: op, Args: json.RawMessage(rawArgs)})
}

// decodeResult unpacks a successful response's text and structured
// payload, the latter into dst when non-nil.
func decodeResult(t *testing.T, resp Response, dst any) string {
	t.Helper()

	if !resp.Success {
		t.Fatalf("response failed: %s", resp.Error)
	}
	var res struct {
		Text       string          `json:"text"`
		Structured json.RawMessage `json:"structured"`
	}
	if err := json.Unmarshal(resp.Data, &res); err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}
	if dst != nil {
		if err := json.Unmarshal(res.Structured, dst); err != nil {
			t.Fatalf("failed to decode structured payload: %v", err)
		}
	}
	return res.Text
}
