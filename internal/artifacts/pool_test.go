package artifacts

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/untoldecay/rwm/internal/ids"
	"github.com/untoldecay/rwm/internal/types"
)

var testTS = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestPool(t *testing.T) *Pool {
	t.Helper()
	root := t.TempDir()
	return NewPool(root, filepath.Join(root, "rwm_artifacts"))
}

func strptr(s string) *string { return &s }

func TestPrepareTextArtifact(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()

	desc := &types.ArtifactInput{
		Kind: types.ArtifactSnippet,
		Text: strptr("func main() {}\n"),
	}
	artifact, err := pool.Prepare(ctx, desc, testTS)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}

	wantHash := ids.SumString("func main() {}\n")
	if artifact.SHA256 != wantHash {
		t.Errorf("SHA256 = %s, want hash of body", artifact.SHA256)
	}
	if artifact.URI != "artifact://sha256/"+wantHash {
		t.Errorf("URI = %s, want pool URI", artifact.URI)
	}
	if artifact.Size != int64(len("func main() {}\n")) {
		t.Errorf("Size = %d, want body length", artifact.Size)
	}
	if artifact.ID != "P-"+wantHash[:8] {
		t.Errorf("ID = %s, want default P-<hash[:8]>", artifact.ID)
	}
	if artifact.IsPointer() {
		t.Error("IsPointer() = true for bodied artifact")
	}

	body, err := os.ReadFile(filepath.Join(pool.Dir(), wantHash))
	if err != nil {
		t.Fatalf("pool file missing: %v", err)
	}
	if string(body) != "func main() {}\n" {
		t.Errorf("pool body = %q, want original text", body)
	}

	origin, ok := artifact.Meta["origin"].(map[string]any)
	if !ok {
		t.Fatalf("origin = %v, want stamp map", artifact.Meta["origin"])
	}
	if origin["type"] != types.OriginText {
		t.Errorf("origin type = %v, want text", origin["type"])
	}
	if origin["recordedAt"] == "" {
		t.Error("origin recordedAt is empty")
	}
}

func TestPrepareEmptyTextIsStillBodied(t *testing.T) {
	pool := newTestPool(t)

	desc := &types.ArtifactInput{Kind: types.ArtifactOther, Text: strptr("")}
	artifact, err := pool.Prepare(context.Background(), desc, testTS)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}

	if artifact.Size != 0 {
		t.Errorf("Size = %d, want 0", artifact.Size)
	}
	if artifact.IsPointer() {
		t.Error("explicit empty text must produce a bodied artifact, not a pointer")
	}
	if _, err := os.Stat(filepath.Join(pool.Dir(), artifact.SHA256)); err != nil {
		t.Errorf("empty body file missing from pool: %v", err)
	}
	origin := artifact.Meta["origin"].(map[string]any)
	if origin["type"] != types.OriginText {
		t.Errorf("origin type = %v, want text", origin["type"])
	}
}

func TestPreparePathSpan(t *testing.T) {
	root := t.TempDir()
	pool := NewPool(root, filepath.Join(root, "rwm_artifacts"))

	content := "line one\nline two\nline three\nline four\n"
	if err := os.WriteFile(filepath.Join(root, "main.go"), []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	desc := &types.ArtifactInput{
		Kind:      types.ArtifactSnippet,
		Path:      "main.go",
		StartLine: 2,
		EndLine:   3,
	}
	artifact, err := pool.Prepare(context.Background(), desc, testTS)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}

	body, err := os.ReadFile(filepath.Join(pool.Dir(), artifact.SHA256))
	if err != nil {
		t.Fatalf("pool file missing: %v", err)
	}
	if string(body) != "line two\nline three" {
		t.Errorf("body = %q, want lines 2-3", body)
	}

	if artifact.Meta["path"] != "main.go" {
		t.Errorf("meta path = %v, want main.go", artifact.Meta["path"])
	}
	if artifact.Meta["startLine"] != 2 || artifact.Meta["endLine"] != 3 {
		t.Errorf("meta span = %v..%v, want 2..3", artifact.Meta["startLine"], artifact.Meta["endLine"])
	}
	origin := artifact.Meta["origin"].(map[string]any)
	if origin["type"] != types.OriginWorkspace {
		t.Errorf("origin type = %v, want workspace", origin["type"])
	}
}

func TestPreparePathFullFileByDefault(t *testing.T) {
	root := t.TempDir()
	pool := NewPool(root, filepath.Join(root, "rwm_artifacts"))

	content := "a\nb\nc"
	if err := os.WriteFile(filepath.Join(root, "f.txt"), []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	artifact, err := pool.Prepare(context.Background(),
		&types.ArtifactInput{Kind: types.ArtifactConfig, Path: "f.txt"}, testTS)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if artifact.Size != int64(len(content)) {
		t.Errorf("Size = %d, want whole file", artifact.Size)
	}
	if _, ok := artifact.Meta["startLine"]; ok {
		t.Error("startLine recorded for full-file read")
	}
}

func TestPreparePathEscapeRejected(t *testing.T) {
	pool := newTestPool(t)

	_, err := pool.Prepare(context.Background(),
		&types.ArtifactInput{Kind: types.ArtifactSnippet, Path: "../outside.txt"}, testTS)
	if err == nil {
		t.Fatal("expected path-escape error")
	}
	if !types.IsKind(err, types.ErrPathEscape) {
		t.Errorf("error kind = %v, want path-escape", types.KindOf(err))
	}
}

func TestPreparePointerURI(t *testing.T) {
	pool := newTestPool(t)

	uri := "https://ci.example.com/runs/42"
	artifact, err := pool.Prepare(context.Background(),
		&types.ArtifactInput{Kind: types.ArtifactLog, URI: uri}, testTS)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}

	if !artifact.IsPointer() {
		t.Error("IsPointer() = false for external URI")
	}
	if artifact.SHA256 != ids.SumString(uri) {
		t.Errorf("SHA256 = %s, want hash of URI string", artifact.SHA256)
	}
	if artifact.Size != 0 {
		t.Errorf("Size = %d, want 0", artifact.Size)
	}
	if artifact.Meta["pointer"] != true {
		t.Errorf("meta pointer = %v, want true", artifact.Meta["pointer"])
	}
	origin := artifact.Meta["origin"].(map[string]any)
	if origin["type"] != types.OriginURI {
		t.Errorf("origin type = %v, want uri", origin["type"])
	}

	// Pointers never touch the pool.
	if _, err := os.Stat(filepath.Join(pool.Dir(), artifact.SHA256)); !errors.Is(err, os.ErrNotExist) {
		t.Error("pointer artifact wrote a pool file")
	}
}

func TestPrepareWorkspaceURIOrigin(t *testing.T) {
	pool := newTestPool(t)

	artifact, err := pool.Prepare(context.Background(),
		&types.ArtifactInput{Kind: types.ArtifactOther, URI: "workspace://docs/README.md"}, testTS)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	origin := artifact.Meta["origin"].(map[string]any)
	if origin["type"] != types.OriginWorkspaceURI {
		t.Errorf("origin type = %v, want workspace-uri", origin["type"])
	}
}

func TestPrepareFallbackEmptyBody(t *testing.T) {
	pool := newTestPool(t)

	artifact, err := pool.Prepare(context.Background(),
		&types.ArtifactInput{Kind: types.ArtifactOther}, testTS)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}

	if artifact.Size != 0 {
		t.Errorf("Size = %d, want 0", artifact.Size)
	}
	if artifact.SHA256 != ids.Sum([]byte{}) {
		t.Errorf("SHA256 = %s, want hash of empty bytes", artifact.SHA256)
	}
	origin := artifact.Meta["origin"].(map[string]any)
	if origin["type"] != types.OriginEmpty {
		t.Errorf("origin type = %v, want empty", origin["type"])
	}
}

func TestPrepareKeepsCallerOrigin(t *testing.T) {
	pool := newTestPool(t)

	callerOrigin := map[string]any{"type": "text", "recordedAt": "2024-01-01T00:00:00Z"}
	desc := &types.ArtifactInput{
		Kind: types.ArtifactSnippet,
		Text: strptr("body"),
		Meta: map[string]any{"origin": callerOrigin},
	}
	artifact, err := pool.Prepare(context.Background(), desc, testTS)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}

	origin := artifact.Meta["origin"].(map[string]any)
	if origin["recordedAt"] != "2024-01-01T00:00:00Z" {
		t.Errorf("caller origin stamp overwritten: %v", origin)
	}
}

func TestPrepareKeepsCallerID(t *testing.T) {
	pool := newTestPool(t)

	desc := &types.ArtifactInput{ID: "P-custom", Kind: types.ArtifactSnippet, Text: strptr("x")}
	artifact, err := pool.Prepare(context.Background(), desc, testTS)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if artifact.ID != "P-custom" {
		t.Errorf("ID = %s, want caller-supplied P-custom", artifact.ID)
	}
}

func TestPrepareDoesNotMutateCallerMeta(t *testing.T) {
	pool := newTestPool(t)

	callerMeta := map[string]any{"note": "mine"}
	desc := &types.ArtifactInput{Kind: types.ArtifactSnippet, Text: strptr("x"), Meta: callerMeta}
	if _, err := pool.Prepare(context.Background(), desc, testTS); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if _, ok := callerMeta["origin"]; ok {
		t.Error("Prepare mutated the caller's meta map")
	}
}

func TestWriteIfAbsentDeduplicates(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := pool.Prepare(ctx,
			&types.ArtifactInput{Kind: types.ArtifactSnippet, Text: strptr("same body")}, testTS); err != nil {
			t.Fatalf("Prepare #%d failed: %v", i, err)
		}
	}

	entries, err := os.ReadDir(pool.Dir())
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("pool has %d files, want 1 (content-addressed dedupe)", len(entries))
	}
}

func TestPruneOrphans(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()

	kept, err := pool.Prepare(ctx, &types.ArtifactInput{Kind: types.ArtifactSnippet, Text: strptr("keep me")}, testTS)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	orphan, err := pool.Prepare(ctx, &types.ArtifactInput{Kind: types.ArtifactSnippet, Text: strptr("orphan")}, testTS)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	// A stray non-hex file must never be touched.
	strayPath := filepath.Join(pool.Dir(), "README")
	if err := os.WriteFile(strayPath, []byte("not a body"), 0o644); err != nil {
		t.Fatalf("write stray: %v", err)
	}

	removed := pool.PruneOrphans(ctx, []string{kept.SHA256})
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, err := os.Stat(filepath.Join(pool.Dir(), kept.SHA256)); err != nil {
		t.Error("known body removed by prune")
	}
	if _, err := os.Stat(filepath.Join(pool.Dir(), orphan.SHA256)); !errors.Is(err, os.ErrNotExist) {
		t.Error("orphan body survived prune")
	}
	if _, err := os.Stat(strayPath); err != nil {
		t.Error("non-hex file removed by prune")
	}
}

func TestPruneOrphansMissingDir(t *testing.T) {
	pool := newTestPool(t)

	// Pool dir was never created; prune must be a silent no-op.
	if removed := pool.PruneOrphans(context.Background(), nil); removed != 0 {
		t.Errorf("removed = %d, want 0", removed)
	}
}
