package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var (
	socketPath string
	jsonOutput bool
	homeDir    string
)

var rootCmd = &cobra.Command{
	Use:   "conductorctl",
	Short: "Drive a local conductord daemon",
	Long:  `conductorctl talks to a running conductord over its Unix domain socket to manage repos, workspaces, and agent sessions.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", defaultSocketPath(), "path to the conductord Unix socket")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print raw JSON instead of formatted output")
	rootCmd.PersistentFlags().StringVar(&homeDir, "home", defaultHome(), "conductor home directory (repos/, workspaces/, conductor.db)")
}

func defaultSocketPath() string {
	if p := os.Getenv("CONDUCTOR_SOCKET_PATH"); p != "" {
		return p
	}
	return "/tmp/conductor-daemon.sock"
}

// defaultHome mirrors internal/common/config's $HOME/conductor default,
// duplicated here rather than imported so the CLI wrapper stays a thin,
// standalone adapter with no dependency on the daemon's config package.
func defaultHome() string {
	if h := os.Getenv("CONDUCTOR_HOME"); h != "" {
		return expandHome(h)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, "conductor")
	}
	return "conductor"
}

// expandHome accepts a leading "~" on the UI boundary, per spec.md §6.
func expandHome(path string) string {
	if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
