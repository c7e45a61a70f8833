package workspace

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conductor-dev/conductor/internal/db"
	"github.com/conductor-dev/conductor/internal/store"
)

// gitEnv pins identity and disables signing so fixture commits work on a
// machine with no global git config.
var gitEnv = append(os.Environ(),
	"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
	"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com",
	"GIT_CONFIG_GLOBAL=/dev/null", "GIT_CONFIG_SYSTEM=/dev/null",
)

func mustGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = gitEnv
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v: %s", args, out)
	return string(out)
}

// newFixtureRepo builds a git repo with two committed files on main.
func newFixtureRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	mustGit(t, dir, "init", "-b", "main")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# fixture\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0o644))
	mustGit(t, dir, "add", ".")
	mustGit(t, dir, "commit", "-m", "initial")
	return dir
}

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	home := t.TempDir()
	st, err := store.Connect(context.Background(), store.DBPath(home), db.Options{ReaderConns: 2}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, store.EnsureHomeDirs(home))
	return NewManager(st, home, nil), home
}

func TestRepoAddIsIdempotent(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	repoDir := newFixtureRepo(t)

	repo, err := m.RepoAdd(ctx, repoDir, "", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(repoDir), repo.Name)
	assert.Equal(t, "main", repo.DefaultBranch)

	again, err := m.RepoAdd(ctx, repoDir, "different-name", "")
	require.NoError(t, err)
	assert.Equal(t, repo.ID, again.ID)
}

func TestWorkspaceCreateFilesAndChanges(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	repo, err := m.RepoAdd(ctx, newFixtureRepo(t), "", "")
	require.NoError(t, err)

	ws, err := m.WorkspaceCreate(ctx, repo.ID, "berlin", "", "")
	require.NoError(t, err)
	assert.Equal(t, "ready", ws.State)
	assert.Equal(t, "berlin", ws.Branch)
	assert.DirExists(t, ws.Path)
	assert.DirExists(t, filepath.Join(ws.Path, ".conductor-app"))

	// A fresh workspace sees exactly the base branch's files and no changes.
	files, err := m.WorkspaceFiles(ctx, ws.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"README.md", "main.go"}, files)

	changes, err := m.WorkspaceChanges(ctx, ws.ID)
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestWorkspaceCreateDerivesNameFromBranchLeaf(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	repo, err := m.RepoAdd(ctx, newFixtureRepo(t), "", "")
	require.NoError(t, err)

	ws, err := m.WorkspaceCreate(ctx, repo.ID, "", "feature/login", "")
	require.NoError(t, err)
	assert.Equal(t, "login", ws.Name)
	assert.Equal(t, "feature/login", ws.Branch)
}

func TestWorkspaceCreateRejectsExistingDirectory(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	repo, err := m.RepoAdd(ctx, newFixtureRepo(t), "", "")
	require.NoError(t, err)

	_, err = m.WorkspaceCreate(ctx, repo.ID, "tokyo", "", "")
	require.NoError(t, err)
	_, err = m.WorkspaceCreate(ctx, repo.ID, "tokyo", "tokyo-2", "")
	assert.ErrorIs(t, err, store.ErrWorkspacePathExists)
}

func TestWorkspaceCreateUnknownBaseBranch(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	repo, err := m.RepoAdd(ctx, newFixtureRepo(t), "", "")
	require.NoError(t, err)

	_, err = m.WorkspaceCreate(ctx, repo.ID, "osaka", "", "no-such-branch")
	assert.ErrorIs(t, err, store.ErrBaseBranchNotFound)
}

func TestWorkspaceChangesCoversAllThreeSets(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	repoDir := newFixtureRepo(t)
	repo, err := m.RepoAdd(ctx, repoDir, "", "")
	require.NoError(t, err)

	ws, err := m.WorkspaceCreate(ctx, repo.ID, "lima", "", "")
	require.NoError(t, err)

	// Committed addition.
	require.NoError(t, os.WriteFile(filepath.Join(ws.Path, "new.go"), []byte("package main\n"), 0o644))
	mustGit(t, ws.Path, "add", "new.go")
	mustGit(t, ws.Path, "commit", "-m", "add new.go")
	// Unstaged modification.
	require.NoError(t, os.WriteFile(filepath.Join(ws.Path, "main.go"), []byte("package main // edited\n"), 0o644))
	// Untracked file.
	require.NoError(t, os.WriteFile(filepath.Join(ws.Path, "scratch.txt"), []byte("x\n"), 0o644))

	changes, err := m.WorkspaceChanges(ctx, ws.ID)
	require.NoError(t, err)

	byPath := map[string]string{}
	for _, c := range changes {
		byPath[c.Path] = c.Status
	}
	assert.Equal(t, "A", byPath["new.go"])
	assert.Equal(t, "M", byPath["main.go"])
	assert.Equal(t, "?", byPath["scratch.txt"])
	assert.Len(t, changes, 3, "each path appears exactly once")
}

func TestWorkspaceChangesReportsRenames(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	repo, err := m.RepoAdd(ctx, newFixtureRepo(t), "", "")
	require.NoError(t, err)

	ws, err := m.WorkspaceCreate(ctx, repo.ID, "oslo", "", "")
	require.NoError(t, err)

	mustGit(t, ws.Path, "mv", "main.go", "app.go")
	mustGit(t, ws.Path, "commit", "-m", "rename")

	changes, err := m.WorkspaceChanges(ctx, ws.ID)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, "R", changes[0].Status)
	assert.Equal(t, "app.go", changes[0].Path)
	assert.Equal(t, "main.go", changes[0].OldPath)
}

func TestWorkspaceFileContentAndDiff(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	repo, err := m.RepoAdd(ctx, newFixtureRepo(t), "", "")
	require.NoError(t, err)

	ws, err := m.WorkspaceCreate(ctx, repo.ID, "riga", "", "")
	require.NoError(t, err)

	content, err := m.WorkspaceFileContent(ctx, ws.ID, "README.md")
	require.NoError(t, err)
	assert.Equal(t, "# fixture\n", content)

	require.NoError(t, os.WriteFile(filepath.Join(ws.Path, "README.md"), []byte("# changed\n"), 0o644))
	mustGit(t, ws.Path, "commit", "-am", "change readme")

	diff, err := m.WorkspaceFileDiff(ctx, ws.ID, "README.md")
	require.NoError(t, err)
	assert.Contains(t, diff, "-# fixture")
	assert.Contains(t, diff, "+# changed")
}

func TestWorkspaceFileContentRejectsTraversal(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	repo, err := m.RepoAdd(ctx, newFixtureRepo(t), "", "")
	require.NoError(t, err)
	ws, err := m.WorkspaceCreate(ctx, repo.ID, "kyoto", "", "")
	require.NoError(t, err)

	for _, path := range []string{"../secret", "/etc/passwd", "a/../../b", ""} {
		_, err := m.WorkspaceFileContent(ctx, ws.ID, path)
		assert.ErrorIs(t, err, store.ErrInvalidFilePath, "path=%q", path)
		_, err = m.WorkspaceFileDiff(ctx, ws.ID, path)
		assert.ErrorIs(t, err, store.ErrInvalidFilePath, "path=%q", path)
	}
}

func TestWorkspaceArchiveRefusesDirtyWithoutForce(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	repo, err := m.RepoAdd(ctx, newFixtureRepo(t), "", "")
	require.NoError(t, err)
	ws, err := m.WorkspaceCreate(ctx, repo.ID, "dakar", "", "")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(ws.Path, "untracked.txt"), []byte("x\n"), 0o644))

	_, err = m.WorkspaceArchive(ctx, ws.ID, false)
	assert.ErrorIs(t, err, store.ErrWorkspaceDirty)

	// The row and the directory are both untouched.
	row, err := m.Store().WorkspaceByID(ctx, ws.ID)
	require.NoError(t, err)
	assert.Equal(t, "ready", row.State)
	assert.DirExists(t, ws.Path)
}

func TestWorkspaceArchiveForceRemovesAndIsIdempotent(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	repo, err := m.RepoAdd(ctx, newFixtureRepo(t), "", "")
	require.NoError(t, err)
	ws, err := m.WorkspaceCreate(ctx, repo.ID, "perth", "", "")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(ws.Path, "untracked.txt"), []byte("x\n"), 0o644))

	outcome, err := m.WorkspaceArchive(ctx, ws.ID, true)
	require.NoError(t, err)
	assert.True(t, outcome.Removed)
	assert.Equal(t, "archived", outcome.State)
	assert.NoDirExists(t, ws.Path)

	// A second archive finds no directory and still lands on archived.
	again, err := m.WorkspaceArchive(ctx, ws.ID, true)
	require.NoError(t, err)
	assert.False(t, again.Removed)
	assert.Equal(t, "archived", again.State)
	assert.Contains(t, again.Message(), "already absent")
}

func TestWorkspaceCreateReusesExistingBranch(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	repoDir := newFixtureRepo(t)
	mustGit(t, repoDir, "branch", "existing-work")

	repo, err := m.RepoAdd(ctx, repoDir, "", "")
	require.NoError(t, err)

	ws, err := m.WorkspaceCreate(ctx, repo.ID, "", "existing-work", "")
	require.NoError(t, err)
	assert.Equal(t, "existing-work", ws.Branch)

	head := mustGit(t, ws.Path, "rev-parse", "--abbrev-ref", "HEAD")
	assert.Contains(t, head, "existing-work")
}
