package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trapd-io/trapd-agent/internal/version"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the agent's normalized version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version.BuildInfoVersion())
			return nil
		},
	}
}
