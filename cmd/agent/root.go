package main

import (
	"github.com/spf13/cobra"
)

var dataDirFlag string

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "agent",
		Short:         "TRAPD endpoint telemetry agent",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runAgent,
	}

	root.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "override the agent's data directory (equivalent to DATA_DIR_OVERRIDE)")
	root.Flags().Bool("once", false, "perform exactly one collect/enqueue/send cycle and exit")

	root.AddCommand(newRunCommand())
	root.AddCommand(newVersionCommand())

	return root
}

// newRunCommand is the named equivalent of the bare root command: `agent
// run` and a bare `agent` invocation both drive runAgent.
func newRunCommand() *cobra.Command {
	run := &cobra.Command{
		Use:           "run",
		Short:         "run the agent's collect/enqueue/send loop",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runAgent,
	}
	run.Flags().Bool("once", false, "perform exactly one collect/enqueue/send cycle and exit")
	return run
}
