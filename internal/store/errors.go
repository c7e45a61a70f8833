package store

import "errors"

var (
	// ErrRepoNotFound means no repo matched the given id, name, or id-prefix.
	ErrRepoNotFound = errors.New("repo not found")
	// ErrRepoAmbiguous means more than one repo matched an id-prefix reference.
	ErrRepoAmbiguous = errors.New("ambiguous repo reference")
	// ErrRepoNameTaken means a repo with that display name is already registered.
	ErrRepoNameTaken = errors.New("repo name already registered")

	// ErrWorkspaceNotFound means no workspace matched the given id or id-prefix.
	ErrWorkspaceNotFound = errors.New("workspace not found")
	// ErrWorkspaceAmbiguous means more than one workspace matched an id-prefix reference.
	ErrWorkspaceAmbiguous = errors.New("ambiguous workspace reference")
	// ErrWorkspacePathExists means the target workspace directory already exists.
	ErrWorkspacePathExists = errors.New("workspace path already exists")
	// ErrWorkspaceDirty means the workspace has uncommitted changes and force was not set.
	ErrWorkspaceDirty = errors.New("workspace has uncommitted changes")

	// ErrInvalidFilePath means a requested file path escaped the workspace root.
	ErrInvalidFilePath = errors.New("file path must be relative")
	// ErrFileNotUTF8 means a requested file's contents are not valid UTF-8 text.
	ErrFileNotUTF8 = errors.New("file content is not valid UTF-8")

	// ErrBaseBranchNotFound means no local or remote ref matched a base branch.
	ErrBaseBranchNotFound = errors.New("base branch not found")
	// ErrBaseBranchAmbiguous means a base branch matched more than one remote and none of them is origin.
	ErrBaseBranchAmbiguous = errors.New("base branch is ambiguous across remotes")

	// ErrGitCommandFailed wraps a non-zero exit from a shelled-out git command.
	ErrGitCommandFailed = errors.New("git command failed")

	// ErrUnsupportedSchemaVersion means the on-disk database is newer than this binary understands.
	ErrUnsupportedSchemaVersion = errors.New("unsupported database schema version")
)
