package cli

import (
	"github.com/spf13/cobra"
)

func newReferenceCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reference",
		Short: "Show the grade and cut tables in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeJSON(cmd, opts.app.Reference.Current())
		},
	}
	return cmd
}
