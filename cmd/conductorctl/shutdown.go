package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var shutdownCmd = &cobra.Command{
	Use:   "shutdown",
	Short: "Stop every active agent and terminate conductord",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient().do(cmd.Context(), "POST", "/shutdown", nil, nil); err != nil {
			return err
		}
		fmt.Printf("%s conductord is shutting down\n", color.YellowString("●"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(shutdownCmd)
}
