// Package workspace implements Conductor's workspace lifecycle: turning a
// registered repo and a branch request into an isolated git worktree on
// disk, and tearing that worktree back down on archive. It shells out to
// git for everything that touches the working tree and defers all
// persistence to internal/store.
package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/conductor-dev/conductor/internal/common/logger"
	"github.com/conductor-dev/conductor/internal/sidecar"
	"github.com/conductor-dev/conductor/internal/store"
)

// Manager owns the on-disk repos/ and workspaces/ trees under homeDir and
// the store rows that describe them.
type Manager struct {
	store   *store.Store
	homeDir string
	logger  *logger.Logger
}

// NewManager wires a lifecycle Manager to an already-connected Store.
func NewManager(st *store.Store, homeDir string, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.Default()
	}
	return &Manager{
		store:   st,
		homeDir: homeDir,
		logger:  log.WithFields(),
	}
}

// Store returns the Manager's underlying Workspace Store, so sibling
// components (the RPC surface's session-sidecar handlers) can resolve a
// workspace reference to its on-disk path without duplicating
// ResolveWorkspace/WorkspaceContext logic here.
func (m *Manager) Store() *store.Store { return m.store }

func (m *Manager) reposDir() string      { return filepath.Join(m.homeDir, "repos") }
func (m *Manager) workspacesDir() string { return filepath.Join(m.homeDir, "workspaces") }

// RepoAdd registers an existing local git checkout. Re-adding a path that
// is already registered returns the existing row rather than failing.
// defaultBranchOverride, when non-empty, is recorded verbatim instead of
// the branch git reports the checkout as being on.
func (m *Manager) RepoAdd(ctx context.Context, path, name, defaultBranchOverride string) (*store.Repo, error) {
	root, err := resolveRepoRoot(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", store.ErrGitCommandFailed, err)
	}

	if existing, err := m.store.RepoByRootPath(ctx, root); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	if name == "" {
		name = filepath.Base(root)
	}
	if taken, err := m.store.RepoByName(ctx, name); err != nil {
		return nil, err
	} else if taken != nil {
		return nil, fmt.Errorf("%w: %s", store.ErrRepoNameTaken, name)
	}

	defaultBranch, err := m.resolveDefaultBranch(ctx, root, defaultBranchOverride)
	if err != nil {
		return nil, err
	}
	return m.store.CreateRepo(ctx, name, root, defaultBranch, nil)
}

// RepoAddURL clones url into homeDir/repos/<name>, or reuses that directory
// if it already holds a clone, and registers the result.
func (m *Manager) RepoAddURL(ctx context.Context, url, name, defaultBranchOverride string) (*store.Repo, error) {
	if name == "" {
		name = repoNameFromURL(url)
	}
	dest := filepath.Join(m.reposDir(), store.SafeDirName(name))

	if _, err := os.Stat(filepath.Join(dest, ".git")); err == nil {
		root, rootErr := resolveRepoRoot(ctx, dest)
		if rootErr != nil {
			return nil, fmt.Errorf("reuse existing clone at %s: %w", dest, rootErr)
		}
		if existing, err := m.store.RepoByRootPath(ctx, root); err != nil {
			return nil, err
		} else if existing != nil {
			return existing, nil
		}
		defaultBranch, err := m.resolveDefaultBranch(ctx, root, defaultBranchOverride)
		if err != nil {
			return nil, err
		}
		remote := url
		return m.store.CreateRepo(ctx, name, root, defaultBranch, &remote)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, fmt.Errorf("create repos directory: %w", err)
	}
	if _, err := git(ctx, "", "clone", url, dest); err != nil {
		return nil, err
	}

	root, err := resolveRepoRoot(ctx, dest)
	if err != nil {
		return nil, err
	}
	defaultBranch, err := m.resolveDefaultBranch(ctx, root, defaultBranchOverride)
	if err != nil {
		return nil, err
	}
	remote := url
	return m.store.CreateRepo(ctx, name, root, defaultBranch, &remote)
}

// resolveDefaultBranch honors an explicit override before falling back to
// git's own notion of the checkout's current/remote-default branch.
func (m *Manager) resolveDefaultBranch(ctx context.Context, root, override string) (string, error) {
	if override != "" {
		return override, nil
	}
	return m.detectDefaultBranch(ctx, root)
}

// detectDefaultBranch asks git for the current HEAD branch, falling back to
// the remote's reported default when the checkout is in detached HEAD.
func (m *Manager) detectDefaultBranch(ctx context.Context, root string) (string, error) {
	if branch := gitTry(ctx, root, "symbolic-ref", "--short", "HEAD"); branch != "" {
		return branch, nil
	}
	if ref := gitTry(ctx, root, "symbolic-ref", "refs/remotes/origin/HEAD"); ref != "" {
		return strings.TrimPrefix(ref, "refs/remotes/origin/"), nil
	}
	return "main", nil
}

// RepoList returns every registered repo.
func (m *Manager) RepoList(ctx context.Context) ([]*store.Repo, error) {
	return m.store.RepoList(ctx)
}

// WorkspaceCreate cuts a new git worktree for repoRef. If branch names an
// existing local branch that branch is checked out as-is; otherwise a new
// branch is created from baseBranch (or the repo's default branch). The
// worktree is created before the store row is inserted; insertion failure
// triggers a best-effort compensating worktree removal, whose own failure
// is ignored and can leave an orphan directory behind.
func (m *Manager) WorkspaceCreate(ctx context.Context, repoRef, name, branch, baseBranch string) (*store.Workspace, error) {
	repo, err := m.store.ResolveRepo(ctx, repoRef)
	if err != nil {
		return nil, err
	}

	if baseBranch == "" {
		baseBranch = repo.DefaultBranch
	}
	baseRef, err := resolveBaseRef(ctx, repo.RootPath, baseBranch)
	if err != nil {
		return nil, err
	}

	switch {
	case name != "":
		name = store.SafeDirName(name)
	case branch != "":
		name = store.SafeDirName(branchLeaf(branch))
	default:
		name, err = m.store.AutoWorkspaceName(ctx, repo.ID)
		if err != nil {
			return nil, err
		}
	}
	if branch == "" {
		branch = name
	}

	path := filepath.Join(m.workspacesDir(), repoWorkspaceDir(repo), name)
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%w: %s", store.ErrWorkspacePathExists, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create workspace parent directory: %w", err)
	}

	localBranchRef := "refs/heads/" + branch
	if gitRefExists(ctx, repo.RootPath, localBranchRef) {
		if _, err := git(ctx, repo.RootPath, "worktree", "add", path, branch); err != nil {
			return nil, err
		}
	} else {
		if _, err := git(ctx, repo.RootPath, "worktree", "add", "-b", branch, path, baseRef); err != nil {
			return nil, err
		}
	}

	ws, err := m.store.CreateWorkspace(ctx, repo.ID, name, path, branch, baseBranch)
	if err != nil {
		_, _ = git(ctx, repo.RootPath, "worktree", "remove", "--force", path)
		_, _ = git(ctx, repo.RootPath, "worktree", "prune")
		return nil, err
	}
	if err := sidecar.EnsureDir(path); err != nil {
		m.logger.Warn("failed to create sidecar directory", zap.String("workspace_id", ws.ID), zap.Error(err))
	}
	return ws, nil
}

// repoWorkspaceDir names the per-repo folder workspaces live under:
// <safe-dir(repo.name)>-<first 8 hex of repo id>, so two repos sharing a
// display name never collide on disk.
func repoWorkspaceDir(repo *store.Repo) string {
	id8 := repo.ID
	if len(id8) > 8 {
		id8 = id8[:8]
	}
	return store.SafeDirName(repo.Name) + "-" + id8
}

// branchLeaf returns the last path segment of a branch name, so
// "feature/login" yields a workspace directory called "login".
func branchLeaf(branch string) string {
	if idx := strings.LastIndex(branch, "/"); idx >= 0 {
		return branch[idx+1:]
	}
	return branch
}

// WorkspaceList returns workspaces, optionally scoped to one repo.
func (m *Manager) WorkspaceList(ctx context.Context, repoRef string) ([]*store.Workspace, error) {
	var repoFilter *store.Repo
	if repoRef != "" {
		repo, err := m.store.ResolveRepo(ctx, repoRef)
		if err != nil {
			return nil, err
		}
		repoFilter = repo
	}
	return m.store.WorkspaceList(ctx, repoFilter)
}

// WorkspaceFiles lists every file git tracks or would track in the
// workspace (cached plus untracked-but-not-ignored), relative to the
// workspace root.
func (m *Manager) WorkspaceFiles(ctx context.Context, wsRef string) ([]string, error) {
	wctx, err := m.store.WorkspaceContext(ctx, wsRef)
	if err != nil {
		return nil, err
	}
	out, err := git(ctx, wctx.Path, "ls-files", "--cached", "--others", "--exclude-standard")
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	// Tracked and untracked entries come back as two separately sorted
	// runs; merge them into one sorted, de-duplicated list.
	files := strings.Split(out, "\n")
	sort.Strings(files)
	return slices.Compact(files), nil
}

// WorkspaceChanges reports every file that differs from the workspace's
// base branch: committed divergence (base...HEAD, rename-aware), modified
// but unstaged files, and untracked-but-not-ignored files. Entries keep
// discovery order and the first occurrence of a path wins.
func (m *Manager) WorkspaceChanges(ctx context.Context, wsRef string) ([]store.WorkspaceChange, error) {
	wctx, err := m.store.WorkspaceContext(ctx, wsRef)
	if err != nil {
		return nil, err
	}
	baseRef, err := resolveBaseRef(ctx, wctx.RepoRoot, wctx.BaseBranch)
	if err != nil {
		return nil, err
	}

	var result []store.WorkspaceChange
	seen := map[string]bool{}
	add := func(c store.WorkspaceChange) {
		if c.Path == "" || seen[c.Path] {
			return
		}
		seen[c.Path] = true
		result = append(result, c)
	}

	committed, err := git(ctx, wctx.Path, "diff", "--name-status", "-M", baseRef+"...HEAD")
	if err != nil {
		return nil, err
	}
	for _, line := range strings.Split(committed, "\n") {
		if line = strings.TrimSpace(line); line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			continue
		}
		change := store.WorkspaceChange{Status: fields[0][:1], Path: fields[len(fields)-1]}
		// Renames report as "R100\told\tnew".
		if change.Status == "R" && len(fields) >= 3 {
			change.OldPath = fields[1]
		}
		add(change)
	}

	unstaged, err := git(ctx, wctx.Path, "diff", "--name-only")
	if err != nil {
		return nil, err
	}
	for _, line := range strings.Split(unstaged, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			add(store.WorkspaceChange{Status: "M", Path: line})
		}
	}

	status, err := git(ctx, wctx.Path, "status", "--porcelain", "--untracked-files=all")
	if err != nil {
		return nil, err
	}
	for _, line := range strings.Split(status, "\n") {
		if line = strings.TrimRight(line, "\r"); len(line) < 4 {
			continue
		}
		if line[0] == '?' || line[1] == '?' {
			add(store.WorkspaceChange{Status: "?", Path: strings.TrimSpace(line[3:])})
		}
	}

	return result, nil
}

// WorkspaceFileContent returns the current on-disk contents of a tracked or
// untracked file within the workspace.
func (m *Manager) WorkspaceFileContent(ctx context.Context, wsRef, path string) (string, error) {
	wctx, err := m.store.WorkspaceContext(ctx, wsRef)
	if err != nil {
		return "", err
	}
	rel, err := safeWorkspaceRelPath(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(filepath.Join(wctx.Path, rel))
	if err != nil {
		return "", fmt.Errorf("read workspace file: %w", err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: %s", store.ErrFileNotUTF8, path)
	}
	return string(data), nil
}

// WorkspaceFileDiff returns the unified diff of a single file against the
// workspace's base branch.
func (m *Manager) WorkspaceFileDiff(ctx context.Context, wsRef, path string) (string, error) {
	wctx, err := m.store.WorkspaceContext(ctx, wsRef)
	if err != nil {
		return "", err
	}
	rel, err := safeWorkspaceRelPath(path)
	if err != nil {
		return "", err
	}
	baseRef, err := resolveBaseRef(ctx, wctx.RepoRoot, wctx.BaseBranch)
	if err != nil {
		return "", err
	}
	return git(ctx, wctx.Path, "diff", baseRef+"...HEAD", "--", rel)
}

// WorkspaceArchive removes a workspace's worktree and marks it archived.
// Uncommitted changes block the removal unless force is set; a failed prune is
// recorded as an outcome warning but never blocks the state transition, since the store row is the
// source of truth for whether a workspace is still usable.
func (m *Manager) WorkspaceArchive(ctx context.Context, wsRef string, force bool) (*ArchiveOutcome, error) {
	ws, err := m.store.ResolveWorkspace(ctx, wsRef)
	if err != nil {
		return nil, err
	}
	wctx, err := m.store.WorkspaceContext(ctx, wsRef)
	if err != nil {
		return nil, err
	}

	outcome := &ArchiveOutcome{ID: ws.ID}

	if _, statErr := os.Stat(wctx.Path); statErr == nil {
		// The sidecar copy and the dirty-check read disjoint state (the
		// .conductor-app/ directory vs. the tracked worktree) and neither
		// depends on the other's outcome, so they run concurrently.
		var archivePath string
		var dirty string
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			path, copyErr := sidecar.ArchiveSidecar(m.homeDir, ws.ID, wctx.Path)
			archivePath = path
			if copyErr != nil {
				outcome.Warnings = append(outcome.Warnings, fmt.Sprintf("sidecar archive failed: %s", copyErr))
			}
			return nil
		})
		if !force {
			g.Go(func() error {
				out, err := git(gctx, wctx.Path, "status", "--porcelain", "--untracked-files=all")
				dirty = out
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		if archivePath != "" {
			m.logger.Info("archived sidecar", zap.String("workspace_id", ws.ID), zap.String("archive_path", archivePath))
		}
		if !force && dirty != "" {
			return nil, fmt.Errorf("%w: commit or stash before archiving, or pass --force", store.ErrWorkspaceDirty)
		}

		removeArgs := []string{"worktree", "remove", wctx.Path}
		if force {
			removeArgs = []string{"worktree", "remove", "--force", wctx.Path}
		}
		if _, err := git(ctx, wctx.RepoRoot, removeArgs...); err != nil {
			return nil, err
		}
		if _, err := git(ctx, wctx.RepoRoot, "worktree", "prune"); err != nil {
			outcome.Warnings = append(outcome.Warnings, fmt.Sprintf("worktree prune failed: %s", err))
		}
		outcome.Removed = true
	} else {
		outcome.Removed = false
		outcome.Warnings = append(outcome.Warnings, "workspace directory already absent")
	}

	result, err := m.store.ArchiveWorkspace(ctx, ws.ID)
	if err != nil {
		return nil, err
	}
	outcome.State = result.State
	return outcome, nil
}

// ArchiveOutcome reports the terminal state of a WorkspaceArchive call,
// including any best-effort cleanup steps that failed without blocking the
// state transition.
type ArchiveOutcome struct {
	ID       string
	State    string
	Removed  bool
	Warnings []string
}

// Message joins the outcome's warnings into the human-readable message the
// RPC surface returns alongside {success, id, state, removed}.
func (o *ArchiveOutcome) Message() string {
	if len(o.Warnings) == 0 {
		return "archived"
	}
	return strings.Join(o.Warnings, "; ")
}
