package cli

import (
	"context"
	"os"

	"github.com/google/uuid"
	"github.com/quake-build/quake/internal/config"
	"github.com/quake-build/quake/internal/engine"
	"github.com/quake-build/quake/internal/logger"
	"github.com/quake-build/quake/internal/project"
	"github.com/spf13/viper"
)

// flags collects the persistent flag values shared by every subcommand
// (spec.md §6 "Command-line interface").
type flags struct {
	project string
	quiet   bool
	json    bool
	force   bool
	watch   bool
	debug   bool
	jobs    int
}

// resolveConfig locates the project and merges its .quake.yaml with any
// flag overrides that were explicitly set on the command line.
func resolveConfig(f *flags) (*project.Project, *config.Config, error) {
	proj, err := project.Find(f.project)
	if err != nil {
		return nil, nil, err
	}

	fv := viper.New()
	if f.jobs != 0 {
		fv.Set("jobs", f.jobs)
	}
	if f.json {
		fv.Set("log_format", "json")
	}

	cfg, err := config.Load(proj.Root, fv)
	if err != nil {
		return nil, nil, err
	}
	return proj, cfg, nil
}

func buildLogger(f *flags, cfg *config.Config) *logger.Logger {
	var opts []logger.Option
	if f.quiet {
		opts = append(opts, logger.WithQuiet())
	}
	if f.debug {
		opts = append(opts, logger.WithDebug())
	}
	if f.json || cfg.LogFormat == "json" {
		opts = append(opts, logger.WithJSON())
	}
	// One run id per invocation, in the teacher's generateRequestID style,
	// so a --json event stream can be grepped down to a single run.
	opts = append(opts, logger.WithRunID(uuid.NewString()))
	return logger.New(opts...)
}

// loadEngine resolves the project, builds its logger and config, and
// loads the build script into a fresh Engine.
func loadEngine(ctx context.Context, f *flags) (*engine.Engine, *project.Project, *config.Config, error) {
	proj, cfg, err := resolveConfig(f)
	if err != nil {
		return nil, nil, nil, err
	}

	sink := buildLogger(f, cfg)

	src, err := os.ReadFile(proj.ScriptPath)
	if err != nil {
		return nil, nil, nil, err
	}

	eng := engine.New(proj.Root, sink)
	if err := eng.Load(ctx, proj.ScriptPath, src); err != nil {
		return nil, nil, nil, err
	}
	return eng, proj, cfg, nil
}

func resolveJobs(f *flags, cfg *config.Config) int {
	if f.jobs != 0 {
		return f.jobs
	}
	return cfg.Jobs
}
