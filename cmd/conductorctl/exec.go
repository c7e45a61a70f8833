package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
)

var (
	execWorkspace string
	execCwd       string
)

var execCmd = &cobra.Command{
	Use:   "exec [--workspace W | --cwd P] -- CMD [ARG...]",
	Short: "Run a command inside a workspace directory",
	Long: `exec resolves a workspace reference through conductord, then runs CMD
locally in that workspace's directory with stdio passed through. The exit
code mirrors the subprocess.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd := execCwd
		if execWorkspace != "" {
			var ws workspaceView
			if err := newClient().do(cmd.Context(), "GET", "/api/v1/workspaces/"+execWorkspace, nil, &ws); err != nil {
				return err
			}
			cwd = ws.Path
		}
		if cwd == "" {
			return errors.New("one of --workspace or --cwd is required")
		}

		child := exec.CommandContext(cmd.Context(), args[0], args[1:]...)
		child.Dir = cwd
		child.Stdin = os.Stdin
		child.Stdout = os.Stdout
		child.Stderr = os.Stderr

		err := child.Run()
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.ExitCode())
		}
		if err != nil {
			return fmt.Errorf("run %s: %w", args[0], err)
		}
		return nil
	},
}

func init() {
	execCmd.Flags().StringVar(&execWorkspace, "workspace", "", "workspace reference to run in")
	execCmd.Flags().StringVar(&execCwd, "cwd", "", "explicit directory to run in")
	execCmd.MarkFlagsMutuallyExclusive("workspace", "cwd")
	rootCmd.AddCommand(execCmd)
}
