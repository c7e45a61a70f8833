package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

type repoView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Path string `json:"root_path"`
	URL  string `json:"remote_url"`
}

var repoCmd = &cobra.Command{
	Use:   "repo",
	Short: "Manage registered repositories",
}

var repoListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered repositories",
	RunE: func(cmd *cobra.Command, args []string) error {
		var repos []repoView
		if err := newClient().do(cmd.Context(), "GET", "/api/v1/repos", nil, &repos); err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(repos)
		}
		if len(repos) == 0 {
			fmt.Println(color.HiBlackString("no repos registered"))
			return nil
		}
		for _, r := range repos {
			fmt.Printf("%s\t%s\t%s\n", color.CyanString(r.ID[:8]), r.Name, r.Path)
		}
		return nil
	},
}

var (
	repoAddPath          string
	repoAddURL           string
	repoAddName          string
	repoAddDefaultBranch string
)

var repoAddCmd = &cobra.Command{
	Use:   "add [path]",
	Short: "Register a local repository or clone one from a URL",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 && repoAddPath == "" {
			repoAddPath = args[0]
		}
		req := map[string]string{
			"path":           repoAddPath,
			"url":            repoAddURL,
			"name":           repoAddName,
			"default_branch": repoAddDefaultBranch,
		}
		var repo repoView
		if err := newClient().do(cmd.Context(), "POST", "/api/v1/repos", req, &repo); err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(repo)
		}
		fmt.Printf("%s registered %s (%s)\n", color.GreenString("✓"), repo.Name, repo.ID[:8])
		return nil
	},
}

func init() {
	repoAddCmd.Flags().StringVar(&repoAddPath, "path", "", "path to an existing local repository")
	repoAddCmd.Flags().StringVar(&repoAddURL, "url", "", "git URL to clone")
	repoAddCmd.Flags().StringVar(&repoAddName, "name", "", "display name override")
	repoAddCmd.Flags().StringVar(&repoAddDefaultBranch, "default-branch", "", "default branch override")
	repoCmd.AddCommand(repoListCmd, repoAddCmd)
	rootCmd.AddCommand(repoCmd)
}
