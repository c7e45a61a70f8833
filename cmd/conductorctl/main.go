// Package main is conductorctl, a thin command-line adapter that drives a
// running conductord over its Unix domain socket. It holds no state of its
// own: apart from init, which only prepares local directories, every
// subcommand is a single RPC call (or a streamed one, for run and attach)
// formatted for a terminal.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
