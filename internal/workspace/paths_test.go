package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/untoldecay/rwm/internal/types"
)

func TestSafeJoin(t *testing.T) {
	root := t.TempDir()

	tests := []struct {
		name    string
		rel     string
		wantErr bool
	}{
		{"plain file", "main.go", false},
		{"nested file", filepath.Join("src", "pkg", "a.go"), false},
		{"dot", ".", false},
		{"dot slash", "./docs/readme.md", false},
		{"internal dotdot resolving inside", "src/../main.go", false},
		{"parent escape", "../outside.txt", true},
		{"deep escape", "a/b/../../../etc/passwd", true},
		{"absolute", string(filepath.Separator) + "etc/passwd", true},
		{"bare dotdot", "..", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SafeJoin(root, tt.rel)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SafeJoin(%q) error = %v, wantErr %v", tt.rel, err, tt.wantErr)
			}
			if err != nil {
				if !types.IsKind(err, types.ErrPathEscape) {
					t.Errorf("error kind = %s, want path-escape", types.KindOf(err))
				}
				return
			}
			absRoot, _ := filepath.Abs(root)
			if got != absRoot && !filepath.IsAbs(got) {
				t.Errorf("SafeJoin returned non-absolute path %q", got)
			}
		})
	}
}

func TestSafeJoinSiblingPrefix(t *testing.T) {
	// "/tmp/x-evil" must not pass as inside "/tmp/x".
	base := t.TempDir()
	root := filepath.Join(base, "proj")
	if err := os.Mkdir(root, 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := SafeJoin(root, "../proj-evil/file"); err == nil {
		t.Error("sibling directory with shared prefix passed the guard")
	}
}

func TestReadSpan(t *testing.T) {
	root := t.TempDir()
	content := "one\ntwo\nthree\nfour\nfive"
	if err := os.WriteFile(filepath.Join(root, "lines.txt"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		start, end int
		want       string
	}{
		{"full file by default", 0, 0, content},
		{"middle slice", 2, 4, "two\nthree\nfour"},
		{"single line", 3, 3, "three"},
		{"end clamped", 4, 99, "four\nfive"},
		{"start clamped", 0, 2, "one\ntwo"},
		{"start beyond end of file", 99, 99, "five"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadSpan(root, "lines.txt", tt.start, tt.end)
			if err != nil {
				t.Fatalf("ReadSpan: %v", err)
			}
			if got != tt.want {
				t.Errorf("ReadSpan(%d, %d) = %q, want %q", tt.start, tt.end, got, tt.want)
			}
		})
	}
}

func TestReadSpanErrors(t *testing.T) {
	root := t.TempDir()

	if _, err := ReadSpan(root, "../secret.txt", 1, 1); !types.IsKind(err, types.ErrPathEscape) {
		t.Errorf("escape should fail with path-escape, got %v", err)
	}
	if _, err := ReadSpan(root, "missing.txt", 1, 1); !types.IsKind(err, types.ErrIO) {
		t.Errorf("missing file should fail with io, got %v", err)
	}
}

func TestReadFileRoundtrip(t *testing.T) {
	root := t.TempDir()
	want := []byte("hello workspace")
	if err := os.WriteFile(filepath.Join(root, "f.txt"), want, 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := ReadFile(root, "f.txt")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != string(want) {
		t.Errorf("ReadFile = %q, want %q", got, want)
	}
}
