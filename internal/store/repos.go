package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const repoColumns = "id, name, root_path, default_branch, remote_url, created_at, updated_at"

// CreateRepo inserts a newly registered repository. The caller is
// responsible for resolving rootPath to a canonical git toplevel and for
// checking name/rootPath uniqueness ahead of time if it wants a friendlier
// error than the underlying UNIQUE constraint violation.
func (s *Store) CreateRepo(ctx context.Context, name, rootPath, defaultBranch string, remoteURL *string) (*Repo, error) {
	repo := &Repo{
		ID:            uuid.New().String(),
		Name:          name,
		RootPath:      rootPath,
		DefaultBranch: defaultBranch,
		RemoteURL:     remoteURL,
		CreatedAt:     now(),
		UpdatedAt:     now(),
	}
	_, err := s.writer.ExecContext(ctx,
		`INSERT INTO repos (id, name, root_path, default_branch, remote_url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		repo.ID, repo.Name, repo.RootPath, repo.DefaultBranch, repo.RemoteURL, repo.CreatedAt, repo.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert repo: %w", err)
	}
	return repo, nil
}

// RepoByRootPath returns the repo registered at the given canonical git
// toplevel path, or nil if none is registered there.
func (s *Store) RepoByRootPath(ctx context.Context, rootPath string) (*Repo, error) {
	var repo Repo
	err := s.reader.GetContext(ctx, &repo,
		"SELECT "+repoColumns+" FROM repos WHERE root_path = ?", rootPath)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query repo by root_path: %w", err)
	}
	return &repo, nil
}

// RepoByName returns the repo with the given exact display name, or nil.
func (s *Store) RepoByName(ctx context.Context, name string) (*Repo, error) {
	var repo Repo
	err := s.reader.GetContext(ctx, &repo,
		"SELECT "+repoColumns+" FROM repos WHERE name = ?", name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query repo by name: %w", err)
	}
	return &repo, nil
}

// ResolveRepo resolves a user-supplied reference to a repo, trying an exact
// id match, then an exact name match, then an id-prefix match. A prefix
// that matches more than one repo is ambiguous and fails.
func (s *Store) ResolveRepo(ctx context.Context, ref string) (*Repo, error) {
	var repo Repo
	err := s.reader.GetContext(ctx, &repo, "SELECT "+repoColumns+" FROM repos WHERE id = ?", ref)
	if err == nil {
		return &repo, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("query repo by id: %w", err)
	}

	err = s.reader.GetContext(ctx, &repo, "SELECT "+repoColumns+" FROM repos WHERE name = ?", ref)
	if err == nil {
		return &repo, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("query repo by name: %w", err)
	}

	var candidates []Repo
	if err := s.reader.SelectContext(ctx, &candidates,
		"SELECT "+repoColumns+" FROM repos WHERE id LIKE ?", ref+"%"); err != nil {
		return nil, fmt.Errorf("query repo by id prefix: %w", err)
	}
	switch len(candidates) {
	case 1:
		return &candidates[0], nil
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrRepoNotFound, ref)
	default:
		return nil, fmt.Errorf("%w: %s", ErrRepoAmbiguous, ref)
	}
}

// RepoList returns all registered repos, most recently added first.
func (s *Store) RepoList(ctx context.Context) ([]*Repo, error) {
	var repos []*Repo
	if err := s.reader.SelectContext(ctx, &repos,
		"SELECT "+repoColumns+" FROM repos ORDER BY created_at DESC"); err != nil {
		return nil, fmt.Errorf("list repos: %w", err)
	}
	return repos, nil
}
