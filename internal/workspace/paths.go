// Package workspace confines file access to the project root. Every
// code path that reads workspace files goes through SafeJoin; paths
// that resolve outside the root are rejected, never clamped.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/untoldecay/rwm/internal/types"
)

// SafeJoin resolves rel against root and returns the absolute path.
// It fails with a path-escape error when the result is neither the
// root itself nor strictly inside it: absolute inputs, ".." escapes,
// and prefix tricks ("/root-evil" vs "/root") all fail.
func SafeJoin(root, rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", types.Errorf(types.ErrPathEscape, "absolute path not allowed: %s", rel)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve root %s: %w", root, err)
	}
	absRoot = filepath.Clean(absRoot)

	joined := filepath.Clean(filepath.Join(absRoot, rel))
	if joined == absRoot {
		return joined, nil
	}
	if !strings.HasPrefix(joined, absRoot+string(filepath.Separator)) {
		return "", types.Errorf(types.ErrPathEscape, "path escapes workspace root: %s", rel)
	}
	return joined, nil
}

// ReadFile reads a workspace file through the path guard.
func ReadFile(root, rel string) ([]byte, error) {
	p, err := SafeJoin(root, rel)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p) // #nosec G304 -- p is confined by SafeJoin
	if err != nil {
		return nil, types.WrapError(types.ErrIO, "failed to read "+rel, err)
	}
	return data, nil
}

// ReadSpan reads lines [startLine..endLine] of a workspace file,
// 1-indexed inclusive. Zero or negative bounds default to the full
// file; bounds beyond the end are clamped to the last line.
func ReadSpan(root, rel string, startLine, endLine int) (string, error) {
	data, err := ReadFile(root, rel)
	if err != nil {
		return "", err
	}

	lines := strings.Split(string(data), "\n")
	start := startLine
	if start < 1 {
		start = 1
	}
	end := endLine
	if end < 1 || end > len(lines) {
		end = len(lines)
	}
	if start > len(lines) {
		start = len(lines)
	}
	if start > end {
		start = end
	}
	return strings.Join(lines[start-1:end], "\n"), nil
}
