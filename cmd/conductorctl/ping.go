package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check whether conductord is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Version    string  `json:"version"`
			UptimeSecs float64 `json:"uptime_secs"`
		}
		if err := newClient().do(cmd.Context(), "GET", "/ping", nil, &resp); err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(resp)
		}
		green := color.New(color.FgGreen, color.Bold).SprintFunc()
		fmt.Printf("%s conductord %s, up %.0fs\n", green("●"), resp.Version, resp.UptimeSecs)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pingCmd)
}
