package workspace

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/conductor-dev/conductor/internal/store"
)

// gitTimeout bounds every shelled-out git invocation Conductor makes on a
// caller's behalf; local worktree/clone operations should never hang a
// request indefinitely.
const gitTimeout = 60 * time.Second

// run executes an arbitrary command in cwd and returns its trimmed combined
// stdout and stderr; on failure that output becomes the error message.
func run(ctx context.Context, name string, args []string, cwd string) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, gitTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, name, args...)
	if cwd != "" {
		cmd.Dir = cwd
	}
	cmd.Env = append(os.Environ(),
		"GIT_TERMINAL_PROMPT=0",
		"GIT_ASKPASS=echo",
		"SSH_ASKPASS=/bin/false",
		"GIT_SSH_COMMAND=ssh -oBatchMode=yes",
	)
	// Bounds how long we wait for a killed child's pipes (e.g. a credential
	// helper) to close once the context deadline fires.
	cmd.WaitDelay = 500 * time.Millisecond

	out, err := cmd.CombinedOutput()
	trimmed := strings.TrimSpace(string(out))
	if err != nil {
		msg := trimmed
		if msg == "" {
			msg = "command failed"
		}
		return "", fmt.Errorf("%w: %s\n$ %s %s", store.ErrGitCommandFailed, msg, name, strings.Join(args, " "))
	}
	return trimmed, nil
}

func git(ctx context.Context, repoRoot string, args ...string) (string, error) {
	return run(ctx, "git", args, repoRoot)
}

func gitTry(ctx context.Context, repoRoot string, args ...string) string {
	out, err := git(ctx, repoRoot, args...)
	if err != nil {
		return ""
	}
	return out
}

func gitRefExists(ctx context.Context, repoRoot, fullRef string) bool {
	cmd := exec.CommandContext(ctx, "git", "show-ref", "--verify", "--quiet", fullRef)
	cmd.Dir = repoRoot
	return cmd.Run() == nil
}

// resolveRepoRoot canonicalizes path to its git toplevel.
func resolveRepoRoot(ctx context.Context, path string) (string, error) {
	out, err := git(ctx, path, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", err
	}
	if abs, absErr := filepath.EvalSymlinks(out); absErr == nil {
		return abs, nil
	}
	return out, nil
}

// resolveBaseRef finds the ref workspace_create/workspace_changes should
// diff and branch from for baseBranch: a local ref if one exists, else the
// single matching `refs/remotes/*/<base>`, preferring origin/<base> when
// more than one remote carries it.
func resolveBaseRef(ctx context.Context, repoRoot, baseBranch string) (string, error) {
	if gitTry(ctx, repoRoot, "rev-parse", "--verify", "--quiet", baseBranch) != "" {
		return baseBranch, nil
	}

	refs, err := git(ctx, repoRoot, "for-each-ref", "--format=%(refname:short)", "refs/remotes/*/"+baseBranch)
	if err != nil {
		return "", err
	}
	var remoteRefs []string
	for _, line := range strings.Split(refs, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			remoteRefs = append(remoteRefs, line)
		}
	}

	switch len(remoteRefs) {
	case 1:
		return remoteRefs[0], nil
	case 0:
		return "", fmt.Errorf("%w: %s", store.ErrBaseBranchNotFound, baseBranch)
	default:
		preferred := "origin/" + baseBranch
		for _, ref := range remoteRefs {
			if ref == preferred {
				return preferred, nil
			}
		}
		return "", fmt.Errorf("%w: %s (%s)", store.ErrBaseBranchAmbiguous, baseBranch, strings.Join(remoteRefs, ", "))
	}
}

// repoNameFromURL derives a display name from a clone URL: the last
// '/'-segment (or, for scp-style URLs, the last ':'-segment), with a
// trailing ".git" stripped.
func repoNameFromURL(url string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(url), "/")
	tail := trimmed
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		tail = trimmed[idx+1:]
	}
	if idx := strings.LastIndex(tail, ":"); idx >= 0 {
		tail = tail[idx+1:]
	}
	tail = strings.TrimSuffix(tail, ".git")
	tail = strings.TrimSpace(tail)
	if tail == "" {
		return "repo"
	}
	return tail
}

// safeWorkspaceRelPath rejects any path that escapes the workspace root
// (absolute paths, "..", or a Windows drive prefix), returning the cleaned
// relative path otherwise.
func safeWorkspaceRelPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("%w: file path is required", store.ErrInvalidFilePath)
	}
	if filepath.IsAbs(trimmed) || filepath.VolumeName(trimmed) != "" {
		return "", fmt.Errorf("%w: %s", store.ErrInvalidFilePath, path)
	}
	clean := filepath.Clean(trimmed)
	for _, part := range strings.Split(clean, string(filepath.Separator)) {
		if part == ".." {
			return "", fmt.Errorf("%w: %s", store.ErrInvalidFilePath, path)
		}
	}
	return clean, nil
}
