// Package store persists Conductor's repository and workspace catalog in
// SQLite. It owns the schema, the forward-only migration path, and
// reference resolution (exact id, exact name, then id-prefix); it has no
// knowledge of git or the filesystem layout that internal/workspace builds
// on top of it.
package store

import "time"

// Repo is a registered git repository that workspaces can be created from.
type Repo struct {
	ID            string    `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	RootPath      string    `db:"root_path" json:"root_path"`
	DefaultBranch string    `db:"default_branch" json:"default_branch"`
	RemoteURL     *string   `db:"remote_url" json:"remote_url,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Workspace is a git worktree checked out from a Repo, identified by its
// directory name within that repo's workspace folder.
type Workspace struct {
	ID         string    `db:"id" json:"id"`
	RepoID     string    `db:"repository_id" json:"repository_id"`
	Repo       string    `db:"repo" json:"repo"`
	Name       string    `db:"directory_name" json:"name"`
	Path       string    `db:"path" json:"path"`
	Branch     string    `db:"branch" json:"branch"`
	BaseBranch string    `db:"base_branch" json:"base_branch"`
	State      string    `db:"state" json:"state"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// ArchiveResult reports the terminal state of a workspace after archiving.
type ArchiveResult struct {
	ID    string
	State string
}

// WorkspaceChange is a single entry from `git diff --name-status`. OldPath
// is set only for renames.
type WorkspaceChange struct {
	Path    string `json:"path"`
	Status  string `json:"status"`
	OldPath string `json:"old_path,omitempty"`
}

// Context carries the filesystem/git coordinates needed to run git commands
// against a workspace: its checked-out path, the repo it was cut from, and
// the branch changes are diffed against.
type Context struct {
	RepoRoot   string
	BaseBranch string
	Path       string
}
