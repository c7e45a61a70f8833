package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conductor-dev/conductor/internal/db"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Connect(context.Background(), filepath.Join(t.TempDir(), "conductor.db"), db.Options{ReaderConns: 2}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMigrateFreshDatabase(t *testing.T) {
	s := openTestStore(t)

	var version int64
	require.NoError(t, s.writer.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, int64(schemaVersion), version)

	// Migration is idempotent under retry.
	require.NoError(t, migrate(context.Background(), s.writer.DB))
}

func TestMigrateRejectsNewerSchema(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "conductor.db")
	ctx := context.Background()

	s, err := Connect(ctx, dbPath, db.Options{ReaderConns: 1}, nil)
	require.NoError(t, err)
	_, err = s.writer.Exec("PRAGMA user_version = 99")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Connect(ctx, dbPath, db.Options{ReaderConns: 1}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedSchemaVersion)
}

func TestRepoResolution(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	alpha, err := s.CreateRepo(ctx, "alpha", "/tmp/repos/alpha", "main", nil)
	require.NoError(t, err)
	_, err = s.CreateRepo(ctx, "beta", "/tmp/repos/beta", "master", nil)
	require.NoError(t, err)

	byID, err := s.ResolveRepo(ctx, alpha.ID)
	require.NoError(t, err)
	assert.Equal(t, "alpha", byID.Name)

	byName, err := s.ResolveRepo(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, alpha.ID, byName.ID)

	byPrefix, err := s.ResolveRepo(ctx, alpha.ID[:8])
	require.NoError(t, err)
	assert.Equal(t, alpha.ID, byPrefix.ID)

	_, err = s.ResolveRepo(ctx, "no-such-repo")
	assert.ErrorIs(t, err, ErrRepoNotFound)
}

func TestRepoAmbiguousPrefix(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// An empty prefix matches every repo; with two registered that is the
	// guaranteed-ambiguous reference without depending on uuid luck.
	_, err := s.CreateRepo(ctx, "one", "/tmp/one", "main", nil)
	require.NoError(t, err)
	_, err = s.CreateRepo(ctx, "two", "/tmp/two", "main", nil)
	require.NoError(t, err)

	_, err = s.ResolveRepo(ctx, "")
	assert.ErrorIs(t, err, ErrRepoAmbiguous)
}

func TestRepoUniqueConstraints(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.CreateRepo(ctx, "dup", "/tmp/dup", "main", nil)
	require.NoError(t, err)

	_, err = s.CreateRepo(ctx, "dup", "/tmp/elsewhere", "main", nil)
	assert.Error(t, err, "duplicate name must violate the unique index")

	_, err = s.CreateRepo(ctx, "other", "/tmp/dup", "main", nil)
	assert.Error(t, err, "duplicate root path must violate the unique index")
}

func TestWorkspaceLifecycleRows(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	repo, err := s.CreateRepo(ctx, "proj", "/tmp/proj", "main", nil)
	require.NoError(t, err)

	ws, err := s.CreateWorkspace(ctx, repo.ID, "berlin", "/tmp/ws/proj/berlin", "berlin", "main")
	require.NoError(t, err)
	assert.Equal(t, "ready", ws.State)
	assert.Equal(t, "proj", ws.Repo)

	resolved, err := s.ResolveWorkspace(ctx, ws.ID[:8])
	require.NoError(t, err)
	assert.Equal(t, ws.ID, resolved.ID)

	_, err = s.ResolveWorkspace(ctx, "missing")
	assert.ErrorIs(t, err, ErrWorkspaceNotFound)

	// Branch uniqueness within a repo.
	_, err = s.CreateWorkspace(ctx, repo.ID, "other-dir", "/tmp/ws/proj/other", "berlin", "main")
	assert.Error(t, err)

	result, err := s.ArchiveWorkspace(ctx, ws.ID)
	require.NoError(t, err)
	assert.Equal(t, "archived", result.State)

	archived, err := s.WorkspaceByID(ctx, ws.ID)
	require.NoError(t, err)
	assert.Equal(t, "archived", archived.State)
}

func TestWorkspaceListFiltersByRepo(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	repoA, err := s.CreateRepo(ctx, "a", "/tmp/a", "main", nil)
	require.NoError(t, err)
	repoB, err := s.CreateRepo(ctx, "b", "/tmp/b", "main", nil)
	require.NoError(t, err)

	_, err = s.CreateWorkspace(ctx, repoA.ID, "w1", "/tmp/ws/a/w1", "w1", "main")
	require.NoError(t, err)
	_, err = s.CreateWorkspace(ctx, repoB.ID, "w2", "/tmp/ws/b/w2", "w2", "main")
	require.NoError(t, err)

	all, err := s.WorkspaceList(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	onlyA, err := s.WorkspaceList(ctx, repoA)
	require.NoError(t, err)
	require.Len(t, onlyA, 1)
	assert.Equal(t, "w1", onlyA[0].Name)
}

func TestAutoWorkspaceNameAvoidsCollisions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	repo, err := s.CreateRepo(ctx, "named", "/tmp/named", "main", nil)
	require.NoError(t, err)

	name, err := s.AutoWorkspaceName(ctx, repo.ID)
	require.NoError(t, err)
	assert.Contains(t, cities, name)

	_, err = s.CreateWorkspace(ctx, repo.ID, name, "/tmp/ws/named/"+name, name, "main")
	require.NoError(t, err)

	second, err := s.AutoWorkspaceName(ctx, repo.ID)
	require.NoError(t, err)
	assert.NotEqual(t, name, second)
}
