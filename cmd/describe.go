package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-scriptload/schema"
)

func newDescribeCmd() *cobra.Command {
	var (
		flags loadFlags
		title string
	)
	cmd := &cobra.Command{
		Use:   "describe <archive>",
		Short: "Print an OpenAPI description of the root class",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			module, _, err := flags.load(cmd, args[0])
			if err != nil {
				return err
			}
			if title == "" {
				title = module.Archive()
			}
			doc, err := schema.Describe(module.CompilationUnit(), module.Type(), schema.WithTitle(title))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(doc)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&title, "title", "", "document title, defaults to the archive name")
	return cmd
}
