package cli

import (
	"fmt"

	"github.com/quake-build/quake/internal/store"
	"github.com/spf13/cobra"
)

func newListCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "list the tasks declared in the project's build script",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, _, _, err := loadEngine(cmd.Context(), f)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, t := range eng.Store.ListTasks() {
				fmt.Fprintln(out, formatTaskSummary(t))
			}
			return nil
		},
	}
}

func formatTaskSummary(t store.Task) string {
	summary := t.Name
	if t.Flags.Concurrent {
		summary += " [concurrent]"
	}
	if t.Flags.Declarative {
		summary += " [declarative]"
	}
	return summary
}
