// Package artifacts manages the content-addressed body pool. Each
// pool file is named by the lowercase hex SHA-256 of its contents, so
// identical bodies dedupe for free and a file never changes once
// written.
package artifacts

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/untoldecay/rwm/internal/ids"
	"github.com/untoldecay/rwm/internal/types"
	"github.com/untoldecay/rwm/internal/workspace"
)

// Pool is a content-addressed artifact store rooted at dir. Workspace
// path reads resolve against root through the path guard.
type Pool struct {
	root string
	dir  string
}

// NewPool creates a pool handle. The directory is created lazily on
// first write, not here, so read-only commands never mkdir.
func NewPool(root, dir string) *Pool {
	return &Pool{root: root, dir: dir}
}

// Dir returns the pool directory.
func (p *Pool) Dir() string {
	return p.dir
}

// Prepare resolves an artifact descriptor into a record, writing the
// body into the pool when the descriptor carries one. Resolution
// order: inline text, then workspace path (optionally a line span),
// then URI (pointer, no body), then an empty body.
//
// The returned record is not persisted; callers upsert it into the
// store. A caller-supplied origin stamp in meta is never overwritten.
func (p *Pool) Prepare(ctx context.Context, desc *types.ArtifactInput, ts time.Time) (*types.Artifact, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	meta := cloneMeta(desc.Meta)
	recordedAt := ts.UTC().Format(time.RFC3339)

	switch {
	case desc.Text != nil:
		// An explicit empty string still counts as a body.
		stampOrigin(meta, types.OriginText, recordedAt)
		return p.storeBody(desc, meta, []byte(*desc.Text), ts)

	case desc.Path != "":
		span, err := workspace.ReadSpan(p.root, desc.Path, desc.StartLine, desc.EndLine)
		if err != nil {
			return nil, err
		}
		meta["path"] = desc.Path
		if desc.StartLine > 0 {
			meta["startLine"] = desc.StartLine
		}
		if desc.EndLine > 0 {
			meta["endLine"] = desc.EndLine
		}
		stampOrigin(meta, types.OriginWorkspace, recordedAt)
		return p.storeBody(desc, meta, []byte(span), ts)

	case desc.URI != "":
		// Pointer artifact: the URI is the content. Nothing is
		// written to the pool; sha256 fingerprints the URI string.
		hash := ids.SumString(desc.URI)
		if _, ok := meta["pointer"]; !ok {
			meta["pointer"] = true
		}
		origin := types.OriginURI
		if strings.HasPrefix(desc.URI, "workspace://") {
			origin = types.OriginWorkspaceURI
		}
		stampOrigin(meta, origin, recordedAt)
		return &types.Artifact{
			ID:        defaultID(desc.ID, hash),
			Kind:      desc.Kind,
			URI:       desc.URI,
			SHA256:    hash,
			Size:      0,
			Meta:      meta,
			CreatedAt: ts,
		}, nil

	default:
		stampOrigin(meta, types.OriginEmpty, recordedAt)
		return p.storeBody(desc, meta, []byte{}, ts)
	}
}

// storeBody writes a bodied artifact's bytes into the pool (if not
// already present) and builds its record.
func (p *Pool) storeBody(desc *types.ArtifactInput, meta map[string]any, body []byte, ts time.Time) (*types.Artifact, error) {
	hash := ids.Sum(body)
	if err := p.writeIfAbsent(hash, body); err != nil {
		return nil, err
	}
	return &types.Artifact{
		ID:        defaultID(desc.ID, hash),
		Kind:      desc.Kind,
		URI:       "artifact://sha256/" + hash,
		SHA256:    hash,
		Size:      int64(len(body)),
		Meta:      meta,
		CreatedAt: ts,
	}, nil
}

// writeIfAbsent stores body under its hash. Pool files are immutable:
// an existing file is trusted and left alone. Writes go through a
// temp file + rename so a crash never leaves a half-written body
// under a final name.
func (p *Pool) writeIfAbsent(hash string, body []byte) error {
	target := filepath.Join(p.dir, hash)
	if _, err := os.Stat(target); err == nil {
		return nil
	}

	if err := os.MkdirAll(p.dir, 0o750); err != nil {
		return types.WrapError(types.ErrIO, "failed to create artifact pool", err)
	}

	tmp, err := os.CreateTemp(p.dir, "."+hash+".tmp*")
	if err != nil {
		return types.WrapError(types.ErrIO, "failed to create temp pool file", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return types.WrapError(types.ErrIO, "failed to write pool file", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return types.WrapError(types.ErrIO, "failed to close pool file", err)
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		_ = os.Remove(tmpPath)
		return types.WrapError(types.ErrIO, "failed to set pool file mode", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		_ = os.Remove(tmpPath)
		return types.WrapError(types.ErrIO, "failed to finalize pool file", err)
	}
	return nil
}

// Read returns the raw bytes stored under hash.
func (p *Pool) Read(hash string) ([]byte, error) {
	if !isHex(hash) {
		return nil, types.Errorf(types.ErrValidation, "invalid artifact hash: %s", hash)
	}
	data, err := os.ReadFile(filepath.Join(p.dir, hash)) // #nosec G304 -- hash is validated hex, joined to the pool dir
	if err != nil {
		if os.IsNotExist(err) {
			return nil, types.Errorf(types.ErrNotFound, "no artifact body for %s", hash)
		}
		return nil, types.WrapError(types.ErrIO, "failed to read artifact body", err)
	}
	return data, nil
}

// PruneOrphans removes pool files whose hash no longer appears in
// known. Best-effort: unreadable directories and failed unlinks are
// swallowed, and the number of removed files is reported for logging.
func (p *Pool) PruneOrphans(ctx context.Context, known []string) int {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return 0
	}

	keep := make(map[string]struct{}, len(known))
	for _, h := range known {
		keep[h] = struct{}{}
	}

	removed := 0
	for _, entry := range entries {
		if ctx.Err() != nil {
			return removed
		}
		name := entry.Name()
		if entry.IsDir() || !isHex(name) {
			continue
		}
		if _, ok := keep[name]; ok {
			continue
		}
		if err := os.Remove(filepath.Join(p.dir, name)); err == nil {
			removed++
		}
	}
	return removed
}

func defaultID(given, hash string) string {
	if given != "" {
		return given
	}
	return ids.ArtifactID(hash)
}

func cloneMeta(meta map[string]any) map[string]any {
	out := make(map[string]any, len(meta)+1)
	for k, v := range meta {
		out[k] = v
	}
	return out
}

// stampOrigin records how the body was captured, unless the caller
// already said.
func stampOrigin(meta map[string]any, originType, recordedAt string) {
	if _, ok := meta["origin"]; ok {
		return
	}
	meta["origin"] = map[string]any{
		"type":       originType,
		"recordedAt": recordedAt,
	}
}

// IsBodyName reports whether a pool directory entry is named like a
// stored body, a full lowercase hex SHA-256 digest. Anything else is
// foreign to the pool.
func IsBodyName(name string) bool {
	return len(name) == 64 && isHex(name)
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}
