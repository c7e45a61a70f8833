package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

type workspaceView struct {
	ID     string `json:"id"`
	RepoID string `json:"repository_id"`
	Name   string `json:"name"`
	Branch string `json:"branch"`
	Path   string `json:"path"`
	State  string `json:"state"`
}

var workspaceCmd = &cobra.Command{
	Use:     "workspace",
	Aliases: []string{"ws"},
	Short:   "Manage branch-scoped workspaces",
}

var workspaceListRepo string

var workspaceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List workspaces",
	RunE: func(cmd *cobra.Command, args []string) error {
		var workspaces []workspaceView
		path := "/api/v1/workspaces"
		if workspaceListRepo != "" {
			path += "?repo=" + workspaceListRepo
		}
		if err := newClient().do(cmd.Context(), "GET", path, nil, &workspaces); err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(workspaces)
		}
		if len(workspaces) == 0 {
			fmt.Println(color.HiBlackString("no workspaces"))
			return nil
		}
		for _, w := range workspaces {
			fmt.Printf("%s\t%s\t%s\t%s\n", color.CyanString(w.ID[:8]), w.Name, w.Branch, w.State)
		}
		return nil
	},
}

var (
	workspaceCreateName       string
	workspaceCreateBranch     string
	workspaceCreateBaseBranch string
)

var workspaceCreateCmd = &cobra.Command{
	Use:   "create <repo>",
	Short: "Create a new branch-scoped workspace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := map[string]string{
			"repo":        args[0],
			"name":        workspaceCreateName,
			"branch":      workspaceCreateBranch,
			"base_branch": workspaceCreateBaseBranch,
		}
		var ws workspaceView
		if err := newClient().do(cmd.Context(), "POST", "/api/v1/workspaces", req, &ws); err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(ws)
		}
		fmt.Printf("%s created %s at %s (branch %s)\n", color.GreenString("✓"), ws.Name, ws.Path, ws.Branch)
		return nil
	},
}

var workspaceArchiveForce bool

var workspaceArchiveCmd = &cobra.Command{
	Use:   "archive <workspace>",
	Short: "Archive a workspace's sidecar and remove its worktree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := map[string]bool{"force": workspaceArchiveForce}
		var outcome struct {
			Success bool   `json:"success"`
			ID      string `json:"id"`
			State   string `json:"state"`
			Removed bool   `json:"removed"`
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if err := newClient().do(cmd.Context(), "POST", "/api/v1/workspaces/"+args[0]+"/archive", req, &outcome); err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(outcome)
		}
		if !outcome.Success {
			return fmt.Errorf("%s", outcome.Error)
		}
		fmt.Printf("%s %s\n", color.GreenString("✓"), outcome.Message)
		return nil
	},
}

var workspaceFilesCmd = &cobra.Command{
	Use:   "files <workspace>",
	Short: "List tracked and untracked files in a workspace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Files []string `json:"files"`
		}
		if err := newClient().do(cmd.Context(), "GET", "/api/v1/workspaces/"+args[0]+"/files", nil, &resp); err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(resp.Files)
		}
		for _, f := range resp.Files {
			fmt.Println(f)
		}
		return nil
	},
}

var workspaceChangesCmd = &cobra.Command{
	Use:   "changes <workspace>",
	Short: "List files that differ from the workspace's base branch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Changes []struct {
				Path    string `json:"path"`
				Status  string `json:"status"`
				OldPath string `json:"old_path"`
			} `json:"changes"`
		}
		if err := newClient().do(cmd.Context(), "GET", "/api/v1/workspaces/"+args[0]+"/changes", nil, &resp); err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(resp.Changes)
		}
		for _, ch := range resp.Changes {
			if ch.OldPath != "" {
				fmt.Printf("%s\t%s\t%s\n", color.YellowString(ch.Status), ch.Path, color.HiBlackString("(was "+ch.OldPath+")"))
				continue
			}
			fmt.Printf("%s\t%s\n", color.YellowString(ch.Status), ch.Path)
		}
		return nil
	},
}

var workspaceFileCmd = &cobra.Command{
	Use:   "file <workspace> <path>",
	Short: "Print a workspace file's current contents",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Content string `json:"content"`
		}
		path := "/api/v1/workspaces/" + args[0] + "/file?path=" + urlEscape(args[1])
		if err := newClient().do(cmd.Context(), "GET", path, nil, &resp); err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(resp)
		}
		fmt.Print(resp.Content)
		return nil
	},
}

var workspaceDiffCmd = &cobra.Command{
	Use:   "diff <workspace> <path>",
	Short: "Show a file's diff against the workspace's base branch",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Diff string `json:"diff"`
		}
		path := "/api/v1/workspaces/" + args[0] + "/diff?path=" + urlEscape(args[1])
		if err := newClient().do(cmd.Context(), "GET", path, nil, &resp); err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(resp)
		}
		fmt.Print(resp.Diff)
		return nil
	},
}

func init() {
	workspaceListCmd.Flags().StringVar(&workspaceListRepo, "repo", "", "filter by repo id or name")
	workspaceCreateCmd.Flags().StringVar(&workspaceCreateName, "name", "", "workspace display name")
	workspaceCreateCmd.Flags().StringVar(&workspaceCreateBranch, "branch", "", "branch name to create")
	workspaceCreateCmd.Flags().StringVar(&workspaceCreateBaseBranch, "base", "", "base branch to fork from")
	workspaceArchiveCmd.Flags().BoolVar(&workspaceArchiveForce, "force", false, "archive even with uncommitted changes")
	workspaceCmd.AddCommand(workspaceListCmd, workspaceCreateCmd, workspaceArchiveCmd,
		workspaceFilesCmd, workspaceChangesCmd, workspaceFileCmd, workspaceDiffCmd)
	rootCmd.AddCommand(workspaceCmd)
}
