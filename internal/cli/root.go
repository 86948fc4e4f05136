// Package cli implements quake's command-line surface on top of
// github.com/spf13/cobra, grounded on the teacher's rootCmd/startCmd
// split (_examples/dagu-org-dagu/cmd/root.go, cmd/start.go): a root
// command that runs a task directly, plus list/inspect/version
// subcommands (spec.md §6).
package cli

import (
	"context"

	"github.com/quake-build/quake/internal/engine"
	"github.com/quake-build/quake/internal/watch"
	"github.com/spf13/cobra"
)

// Version is overridden at build time via -ldflags.
var Version = "0.0.0"

// NewRootCmd builds quake's full command tree.
func NewRootCmd() *cobra.Command {
	var f flags

	root := &cobra.Command{
		Use:           "quake [task] [-- task-args...]",
		Short:         "a DAG-based meta-build tool",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			taskName := "default"
			var taskArgs []string
			if len(args) > 0 {
				taskName = args[0]
				taskArgs = args[1:]
			}
			return runTask(cmd.Context(), &f, taskName, taskArgs)
		},
	}

	root.PersistentFlags().StringVarP(&f.project, "project", "p", "", "project directory (default: walk upward from the working directory)")
	root.PersistentFlags().BoolVarP(&f.quiet, "quiet", "q", false, "suppress info-level events")
	root.PersistentFlags().BoolVar(&f.json, "json", false, "emit structured events as line-delimited JSON")
	root.PersistentFlags().BoolVar(&f.force, "force", false, "skip the dirtiness check; always run")
	root.PersistentFlags().BoolVarP(&f.watch, "watch", "w", false, "re-run when the build script changes (declared sources are not watched)")
	root.PersistentFlags().BoolVar(&f.debug, "debug", false, "enable debug-level events")
	root.PersistentFlags().IntVarP(&f.jobs, "jobs", "j", 0, "max concurrent tasks (default: number of CPUs)")

	root.AddCommand(newListCmd(&f))
	root.AddCommand(newInspectCmd(&f))
	root.AddCommand(newVersionCmd())

	return root
}

// runTask implements the default (no subcommand) action: resolve a root
// task and run it, either once or, under --watch, in a loop rebuilt
// from scratch on every change to the build script (spec.md §9's watch
// design note). Declared sources are not watched.
func runTask(ctx context.Context, f *flags, taskName string, taskArgs []string) error {
	run := func(ctx context.Context) error {
		eng, _, cfg, err := loadEngine(ctx, f)
		if err != nil {
			return err
		}
		return eng.Run(ctx, taskName, taskArgs, engine.RunOptions{
			Force: f.force,
			Jobs:  resolveJobs(f, cfg),
		})
	}

	if !f.watch {
		return run(ctx)
	}

	proj, _, err := resolveConfig(f)
	if err != nil {
		return err
	}
	return watch.Loop(ctx, []string{proj.ScriptPath}, run)
}
