// Package cmd implements the scriptload command line.
package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "scriptload",
		Short:         "Inspect and load serialized module archives",
		Long:          "scriptload reads module archives, rebuilds their object graph from the class sources they carry, and reports what it found.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(
		newRecordsCmd(),
		newLoadCmd(),
		newDescribeCmd(),
	)

	return rootCmd
}
