package sqlite

const schema = `
-- Tasks table
CREATE TABLE IF NOT EXISTS tasks (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL,
    parent_id TEXT,
    title TEXT NOT NULL CHECK(length(title) <= 500),
    status TEXT NOT NULL DEFAULT 'todo',
    accept_criteria TEXT,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_tasks_session ON tasks(session_id);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
CREATE INDEX IF NOT EXISTS idx_tasks_updated_at ON tasks(updated_at);

-- Events table (append-only; rows are never updated or deleted)
CREATE TABLE IF NOT EXISTS events (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    task_id TEXT,
    session_id TEXT NOT NULL,
    summary TEXT NOT NULL,
    evidence_ids TEXT NOT NULL DEFAULT '[]',  -- JSON array of artifact IDs
    ts DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id);
CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts);
CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind);
CREATE INDEX IF NOT EXISTS idx_events_task ON events(task_id);

-- Artifacts table. Bodied artifacts store bytes in the content pool
-- under sha256; pointer artifacts keep an external URI and size 0.
CREATE TABLE IF NOT EXISTS artifacts (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    uri TEXT NOT NULL DEFAULT '',
    sha256 TEXT NOT NULL,
    size INTEGER NOT NULL DEFAULT 0,
    meta TEXT NOT NULL DEFAULT '{}',          -- JSON blob (origin, path, lines, ...)
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_artifacts_sha256 ON artifacts(sha256);
CREATE INDEX IF NOT EXISTS idx_artifacts_kind ON artifacts(kind);

-- Facts table. IDs are deterministic over (key, scope), so the unique
-- constraint is belt-and-suspenders against hand-written rows.
CREATE TABLE IF NOT EXISTS facts (
    id TEXT PRIMARY KEY,
    key TEXT NOT NULL,
    value TEXT NOT NULL DEFAULT '',
    scope TEXT NOT NULL DEFAULT 'repo',
    UNIQUE(key, scope)
);

CREATE INDEX IF NOT EXISTS idx_facts_key ON facts(key);

-- Checkpoints table (append-only)
CREATE TABLE IF NOT EXISTS checkpoints (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL,
    label TEXT NOT NULL,
    ts DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    bundle_meta TEXT NOT NULL DEFAULT '{}'    -- JSON snapshot of session state
);

CREATE INDEX IF NOT EXISTS idx_checkpoints_session ON checkpoints(session_id);
CREATE INDEX IF NOT EXISTS idx_checkpoints_ts ON checkpoints(ts);

-- Token metrics table: per-pointer token cost of composed bundles,
-- kept for budget diagnostics (append-only)
CREATE TABLE IF NOT EXISTS token_metrics (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    pointer_id TEXT NOT NULL,
    token_cost INTEGER NOT NULL,
    budget INTEGER NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_token_metrics_session ON token_metrics(session_id);

-- Edges table: typed relations between records. The schema carries
-- them for relation tracking; no write path populates them yet.
CREATE TABLE IF NOT EXISTS edges (
    src_id TEXT NOT NULL,
    dst_id TEXT NOT NULL,
    kind TEXT NOT NULL DEFAULT 'relates_to',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (src_id, dst_id, kind)
);

CREATE INDEX IF NOT EXISTS idx_edges_src ON edges(src_id);
CREATE INDEX IF NOT EXISTS idx_edges_dst ON edges(dst_id);

-- Meta table for schema versioning
CREATE TABLE IF NOT EXISTS meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`
