package workspace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conductor-dev/conductor/internal/store"
)

func TestRepoNameFromURL(t *testing.T) {
	cases := map[string]string{
		"https://github.com/acme/widget.git": "widget",
		"https://github.com/acme/widget":     "widget",
		"git@github.com:acme/widget.git":     "widget",
		"https://example.com/deep/path/x/":   "x",
		"":                                   "repo",
		".git":                               "repo",
	}
	for input, want := range cases {
		assert.Equal(t, want, repoNameFromURL(input), "url=%q", input)
	}
}

func TestSafeWorkspaceRelPath(t *testing.T) {
	good := map[string]string{
		"a.txt":        "a.txt",
		"dir/b.txt":    "dir/b.txt",
		"./c.txt":      "c.txt",
		"dir/../d.txt": "d.txt",
	}
	for input, want := range good {
		got, err := safeWorkspaceRelPath(input)
		require.NoError(t, err, "path=%q", input)
		assert.Equal(t, want, got)
	}

	bad := []string{"", "  ", "..", "../x", "a/../../b", "/abs/path"}
	for _, input := range bad {
		_, err := safeWorkspaceRelPath(input)
		assert.ErrorIs(t, err, store.ErrInvalidFilePath, "path=%q", input)
	}
}

func TestResolveBaseRefPrefersLocalThenOrigin(t *testing.T) {
	repoDir := newFixtureRepo(t)
	ctx := context.Background()

	// Local branch wins outright.
	ref, err := resolveBaseRef(ctx, repoDir, "main")
	require.NoError(t, err)
	assert.Equal(t, "main", ref)

	// A branch only present as a remote tracking ref resolves to it.
	mustGit(t, repoDir, "update-ref", "refs/remotes/origin/release", "HEAD")
	ref, err = resolveBaseRef(ctx, repoDir, "release")
	require.NoError(t, err)
	assert.Equal(t, "origin/release", ref)

	// Two remotes carrying the branch fall back to origin.
	mustGit(t, repoDir, "update-ref", "refs/remotes/fork/release", "HEAD")
	ref, err = resolveBaseRef(ctx, repoDir, "release")
	require.NoError(t, err)
	assert.Equal(t, "origin/release", ref)

	// Two remotes, neither origin: ambiguous.
	mustGit(t, repoDir, "update-ref", "refs/remotes/alpha/hotfix", "HEAD")
	mustGit(t, repoDir, "update-ref", "refs/remotes/beta/hotfix", "HEAD")
	_, err = resolveBaseRef(ctx, repoDir, "hotfix")
	assert.ErrorIs(t, err, store.ErrBaseBranchAmbiguous)

	_, err = resolveBaseRef(ctx, repoDir, "never-heard-of-it")
	assert.ErrorIs(t, err, store.ErrBaseBranchNotFound)
}
