// Package cmd provides the command-line interface for curvesim.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// Version is set at link time.
var Version = "dev"

// RootOptions holds the flags shared by all commands.
type RootOptions struct {
	EnvFile string
}

// NewRootCommand creates the curvesim command with all its subcommands.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	rootCmd := &cobra.Command{
		Use: "curvesim",
		Short: "curvesim runs time-travelling discrete event simulations " +
			"described in scenario files.",
		Long: `curvesim runs scenarios in which events are predicted from ` +
			`curves. When a curve is rewritten, the events that depend on ` +
			`it are predicted again from the time of the change.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", "",
		"File to load CURVESIM_* variables from (default .env if present)")

	rootCmd.AddCommand(
		newRunCommand(opts),
		newValidateCommand(),
		newServeCommand(),
		newVersionCommand(),
	)

	return rootCmd
}

// Execute runs the root command and exits the program through atexit, so
// that recordings are flushed.
func Execute() {
	err := NewRootCommand().Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
