package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const workspaceSelect = `
SELECT
	w.id AS id,
	r.id AS repository_id,
	r.name AS repo,
	w.directory_name AS directory_name,
	w.path AS path,
	w.branch AS branch,
	w.base_branch AS base_branch,
	w.state AS state,
	w.created_at AS created_at,
	w.updated_at AS updated_at
FROM workspaces w
JOIN repos r ON r.id = w.repository_id
`

// CreateWorkspace inserts a new workspace row. The caller must have already
// created the git worktree on disk; on error it should remove that
// worktree itself (store.CreateWorkspace does not touch the filesystem).
func (s *Store) CreateWorkspace(ctx context.Context, repoID, name, path, branch, baseBranch string) (*Workspace, error) {
	id := uuid.New().String()
	_, err := s.writer.ExecContext(ctx,
		`INSERT INTO workspaces (id, repository_id, directory_name, path, branch, base_branch, state)
		 VALUES (?, ?, ?, ?, ?, ?, 'ready')`,
		id, repoID, name, path, branch, baseBranch,
	)
	if err != nil {
		return nil, fmt.Errorf("insert workspace: %w", err)
	}
	return s.WorkspaceByID(ctx, id)
}

// WorkspaceByID returns a single workspace joined with its repo's name, or
// sql.ErrNoRows-derived nil if it does not exist.
func (s *Store) WorkspaceByID(ctx context.Context, id string) (*Workspace, error) {
	var ws Workspace
	err := s.reader.GetContext(ctx, &ws, workspaceSelect+" WHERE w.id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query workspace by id: %w", err)
	}
	return &ws, nil
}

// ResolveWorkspace resolves a user-supplied reference to a workspace,
// trying an exact id match then an id-prefix match. Workspaces, unlike
// repos, are not looked up by name since directory names repeat across
// repos.
func (s *Store) ResolveWorkspace(ctx context.Context, ref string) (*Workspace, error) {
	var ws Workspace
	err := s.reader.GetContext(ctx, &ws, workspaceSelect+" WHERE w.id = ?", ref)
	if err == nil {
		return &ws, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("query workspace by id: %w", err)
	}

	var candidates []Workspace
	if err := s.reader.SelectContext(ctx, &candidates,
		workspaceSelect+" WHERE w.id LIKE ?", ref+"%"); err != nil {
		return nil, fmt.Errorf("query workspace by id prefix: %w", err)
	}
	switch len(candidates) {
	case 1:
		return &candidates[0], nil
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrWorkspaceNotFound, ref)
	default:
		return nil, fmt.Errorf("%w: %s", ErrWorkspaceAmbiguous, ref)
	}
}

// WorkspaceContext resolves ref and returns just the coordinates needed to
// run git commands against it (its checked-out path, the repo root it was
// cut from, and its base branch).
func (s *Store) WorkspaceContext(ctx context.Context, ref string) (*Context, error) {
	ws, err := s.ResolveWorkspace(ctx, ref)
	if err != nil {
		return nil, err
	}
	repo, err := s.ResolveRepo(ctx, ws.RepoID)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace's repo: %w", err)
	}
	return &Context{
		RepoRoot:   repo.RootPath,
		BaseBranch: ws.BaseBranch,
		Path:       ws.Path,
	}, nil
}

// WorkspaceList returns workspaces, most recently created first, optionally
// filtered to a single repo.
func (s *Store) WorkspaceList(ctx context.Context, repoFilter *Repo) ([]*Workspace, error) {
	query := workspaceSelect
	args := []any{}
	if repoFilter != nil {
		query += " WHERE w.repository_id = ?"
		args = append(args, repoFilter.ID)
	}
	query += " ORDER BY w.created_at DESC"

	var workspaces []*Workspace
	if err := s.reader.SelectContext(ctx, &workspaces, query, args...); err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	return workspaces, nil
}

// WorkspaceDirectoryNames returns every directory_name already used under a
// repo, for auto-naming collision checks.
func (s *Store) WorkspaceDirectoryNames(ctx context.Context, repoID string) (map[string]bool, error) {
	var names []string
	if err := s.reader.SelectContext(ctx, &names,
		"SELECT directory_name FROM workspaces WHERE repository_id = ?", repoID); err != nil {
		return nil, fmt.Errorf("list workspace directory names: %w", err)
	}
	used := make(map[string]bool, len(names))
	for _, n := range names {
		used[n] = true
	}
	return used, nil
}

// AutoWorkspaceName draws an unused city-slug name for a repo, falling back
// to a random "ws-<hex8>" token when the word list is exhausted (200 draws
// without a free name).
func (s *Store) AutoWorkspaceName(ctx context.Context, repoID string) (string, error) {
	used, err := s.WorkspaceDirectoryNames(ctx, repoID)
	if err != nil {
		return "", err
	}
	for i := 0; i < 200; i++ {
		candidate := safeDirName(randCity())
		if candidate != "" && !used[candidate] {
			return candidate, nil
		}
	}
	return "ws-" + randSuffix8(), nil
}

// ArchiveWorkspace marks a workspace archived. It does not touch the
// filesystem or git worktree state; callers archive the directory first.
func (s *Store) ArchiveWorkspace(ctx context.Context, id string) (*ArchiveResult, error) {
	_, err := s.writer.ExecContext(ctx,
		"UPDATE workspaces SET state = 'archived', updated_at = datetime('now') WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("archive workspace: %w", err)
	}
	return &ArchiveResult{ID: id, State: "archived"}, nil
}
