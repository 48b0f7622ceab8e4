// Package session derives the canonical session identifier for a
// project checkout. A session is "<base>@<suffix>": base names the
// project, suffix names the branch (or a detached-HEAD marker, or the
// date when no repository is found). The same branch must always map
// to the same session, and different branches must never collide.
package session

import (
	"path/filepath"
	"regexp"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
)

var unsafeRuns = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// sanitize collapses every run of characters outside [A-Za-z0-9._-]
// into a single dash. Empty input falls back to "proj".
func sanitize(s string) string {
	out := unsafeRuns.ReplaceAllString(s, "-")
	if out == "" {
		return "proj"
	}
	return out
}

// Resolver normalizes raw session strings, memoizing git branch
// lookups per workspace root for the life of the process.
type Resolver struct {
	mu       sync.Mutex
	branches map[string]string
}

// NewResolver creates a resolver with an empty branch cache.
func NewResolver() *Resolver {
	return &Resolver{branches: make(map[string]string)}
}

// Normalize resolves a raw session string against a workspace root.
// The raw value splits at the first "@" into base and suffix; missing
// parts fall back to the root's directory name and the current git
// branch, and finally to today's date.
func (r *Resolver) Normalize(raw, root string) string {
	base, suffix := splitSession(raw)

	if base == "" {
		base = filepath.Base(root)
		if base == "." || base == string(filepath.Separator) {
			base = ""
		}
	}
	if base == "" {
		base = "workspace"
	}
	base = sanitize(base)

	if suffix != "" {
		suffix = sanitize(suffix)
	}
	if suffix == "" || suffix == "unknown" {
		if branch := r.branch(root); branch != "" {
			suffix = sanitize(branch)
		} else {
			suffix = ""
		}
	}
	if suffix == "" {
		suffix = time.Now().Format("20060102")
	}

	return base + "@" + suffix
}

// CanonicalAlias resolves a raw session string without touching git,
// defaulting the suffix to "main". The store uses it to fold session
// aliases onto their canonical row key.
func CanonicalAlias(raw, root string) string {
	base, suffix := splitSession(raw)

	if base == "" {
		base = filepath.Base(root)
		if base == "." || base == string(filepath.Separator) {
			base = ""
		}
	}
	if base == "" {
		base = "workspace"
	}
	base = sanitize(base)

	if suffix != "" {
		suffix = sanitize(suffix)
	}
	if suffix == "" || suffix == "unknown" {
		suffix = "main"
	}

	return base + "@" + suffix
}

// ResetCache clears the memoized branch lookups.
func (r *Resolver) ResetCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.branches = make(map[string]string)
}

// branch returns the git branch suffix for a root, caching both hits
// and misses. Detached HEADs map to "detached-<short hash>"; a root
// without a repository maps to "".
func (r *Resolver) branch(root string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cached, ok := r.branches[root]; ok {
		return cached
	}
	b := detectBranch(root)
	r.branches[root] = b
	return b
}

func detectBranch(root string) string {
	if root == "" {
		return ""
	}
	repo, err := git.PlainOpenWithOptions(root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return ""
	}
	head, err := repo.Head()
	if err != nil {
		// Repository exists but HEAD is unborn (no commits yet).
		return ""
	}
	if head.Name().IsBranch() {
		return head.Name().Short()
	}
	return "detached-" + head.Hash().String()[:8]
}

func splitSession(raw string) (base, suffix string) {
	for i := 0; i < len(raw); i++ {
		if raw[i] == '@' {
			return raw[:i], raw[i+1:]
		}
	}
	return raw, ""
}
