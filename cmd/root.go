// Package cmd implements the crownest command line.
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/grovetools/crownest/cli"
	"github.com/grovetools/crownest/pkg/profiling"
)

// NewRootCmd assembles the crownest command tree.
func NewRootCmd() *cobra.Command {
	root := cli.NewStandardCommand("crownest", "Shared table state for a crow-nest session")
	root.Long = `crownest keeps the shared state of a tabletop session in sync between
the GM and every player: groups, presets, guard sheet, tokens and the
patrol sheets the GM pushes to the table.

Participants share one store: a relay process, a file on this machine, or
an in-process space for tests.`
	addParticipantFlags(root)
	profiling.NewCobraProfiler().AddFlags(root)

	root.AddCommand(
		newRelayCmd(),
		newWatchCmd(),
		newGetCmd(),
		newSetCmd(),
		newShowCmd(),
		newTokensCmd(),
		newConfigCmd(),
		newPathsCmd(),
		newLogsCmd(),
		cli.NewVersionCommand("crownest"),
	)

	cli.SetStyledHelp(root)
	return root
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		verbose, _ := root.PersistentFlags().GetBool("verbose")
		cli.NewErrorHandler(os.Stderr, verbose).Handle(err)
		os.Exit(1)
	}
}
