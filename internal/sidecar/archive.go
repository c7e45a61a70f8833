package sidecar

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// archiveRoot returns <conductorHome>/.conductor-app/archive, per
// spec.md §6. conductorHome is the caller's configured Conductor home
// directory ($HOME/conductor by default), not the bare OS home directory.
func archiveRoot(conductorHome string) string {
	return filepath.Join(conductorHome, ".conductor-app", "archive")
}

// ArchiveSidecar copies a workspace's sidecar directory into the global
// archive area under conductorHome before its worktree is removed. It is
// best-effort: a missing sidecar (no session ever written) is not an
// error, it simply copies nothing. The returned path is empty when there
// was nothing to archive.
func ArchiveSidecar(conductorHome, workspaceID, workspacePath string) (string, error) {
	src := dir(workspacePath)
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return "", nil
	}

	dest := filepath.Join(archiveRoot(conductorHome), workspaceID, time.Now().UTC().Format("20060102-150405"))
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", fmt.Errorf("create archive directory: %w", err)
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return "", fmt.Errorf("read sidecar directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := copyFile(filepath.Join(src, entry.Name()), filepath.Join(dest, entry.Name())); err != nil {
			return "", fmt.Errorf("copy %s: %w", entry.Name(), err)
		}
	}
	return dest, nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
