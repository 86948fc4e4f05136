package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func newInspectCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:           "inspect",
		Short:         "print the project's tasks and task calls as JSON",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, _, _, err := loadEngine(cmd.Context(), f)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(eng.Store.Snapshot())
		},
	}
}
