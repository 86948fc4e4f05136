package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/quake-build/quake/internal/cli"
	"github.com/quake-build/quake/internal/errs"
)

// version is set at build time via -ldflags.
var version = "0.0.0"

func main() {
	cli.Version = version

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCmd()
	root.SetContext(ctx)

	err := root.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "> quake:", err)
	}
	os.Exit(errs.ExitCode(err))
}
