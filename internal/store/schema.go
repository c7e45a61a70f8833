package store

// schemaVersion is tracked via SQLite's PRAGMA user_version. Bump it and add
// a new case to migrate() whenever the schema changes; migrations must stay
// forward-only and idempotent.
const schemaVersion = 2

// schemaV0 creates the full schema from nothing, then stamps the database
// at schemaVersion. Applied when PRAGMA user_version reads 0 (a brand new
// database file).
const schemaV0 = `
CREATE TABLE IF NOT EXISTS repos (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	root_path TEXT NOT NULL,
	default_branch TEXT NOT NULL,
	remote_url TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_repos_name ON repos(name);
CREATE UNIQUE INDEX IF NOT EXISTS idx_repos_root_path ON repos(root_path);

CREATE TABLE IF NOT EXISTS workspaces (
	id TEXT PRIMARY KEY,
	repository_id TEXT NOT NULL,
	directory_name TEXT NOT NULL,
	path TEXT NOT NULL,
	branch TEXT NOT NULL,
	base_branch TEXT NOT NULL,
	state TEXT NOT NULL DEFAULT 'ready' CHECK (state IN ('ready', 'archived', 'error')),
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now')),
	FOREIGN KEY(repository_id) REFERENCES repos(id)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_workspaces_repo_dir ON workspaces(repository_id, directory_name);
CREATE UNIQUE INDEX IF NOT EXISTS idx_workspaces_repo_branch ON workspaces(repository_id, branch);

PRAGMA user_version = 2;
`

// schemaV1Patch brings a pre-index schema (version 1, from a build that
// predates the uniqueness constraints on repos) up to schemaVersion without
// touching existing rows.
const schemaV1Patch = `
CREATE UNIQUE INDEX IF NOT EXISTS idx_repos_name ON repos(name);
CREATE UNIQUE INDEX IF NOT EXISTS idx_repos_root_path ON repos(root_path);
PRAGMA user_version = 2;
`
