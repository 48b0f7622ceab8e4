package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setupStateDir(t *testing.T) string {
	t.Helper()
	stateDir := filepath.Join(t.TempDir(), ".rwm")
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RWM_DIR", stateDir)
	return stateDir
}

func TestAppend(t *testing.T) {
	stateDir := setupStateDir(t)

	id, err := Append(&Entry{
		Kind:   "llm_call",
		Actor:  "distill",
		TaskID: "T-fix-resolver",
		Model:  "claude-3-5-haiku-20241022",
	})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if !strings.HasPrefix(id, idPrefix) {
		t.Errorf("id = %q, want %q prefix", id, idPrefix)
	}

	data, err := os.ReadFile(filepath.Join(stateDir, FileName))
	if err != nil {
		t.Fatal(err)
	}
	var got Entry
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("log line is not valid JSON: %v", err)
	}
	if got.TaskID != "T-fix-resolver" {
		t.Errorf("TaskID = %q, want T-fix-resolver", got.TaskID)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt was not populated")
	}
}

func TestAppendRequiresKind(t *testing.T) {
	setupStateDir(t)
	if _, err := Append(&Entry{}); err == nil {
		t.Error("expected error for entry without kind")
	}
	if _, err := Append(nil); err == nil {
		t.Error("expected error for nil entry")
	}
}

func TestAppendIsAppendOnly(t *testing.T) {
	stateDir := setupStateDir(t)

	for _, kind := range []string{"llm_call", "label", "tool_call"} {
		if _, err := Append(&Entry{Kind: kind}); err != nil {
			t.Fatalf("Append(%s) failed: %v", kind, err)
		}
	}

	f, err := os.Open(filepath.Join(stateDir, FileName))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var kinds []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("bad line: %v", err)
		}
		kinds = append(kinds, e.Kind)
	}
	want := []string{"llm_call", "label", "tool_call"}
	if len(kinds) != len(want) {
		t.Fatalf("got %d lines, want %d", len(kinds), len(want))
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("line %d kind = %q, want %q", i, kinds[i], want[i])
		}
	}
}

func TestPathWithoutStateDir(t *testing.T) {
	t.Setenv("RWM_DIR", filepath.Join(t.TempDir(), "missing"))
	if _, err := Path(); err == nil {
		t.Error("expected error when no .rwm directory exists")
	}
}
