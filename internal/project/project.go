// Package project implements build-script discovery (spec.md §6): given
// an explicit --project directory or the current working directory,
// locate the project root and the build script within it.
package project

import (
	"os"
	"path/filepath"

	"github.com/quake-build/quake/internal/errs"
)

// ScriptNames lists the recognized build-script file names in
// precedence order (spec.md §6: "build.quake, build.quake.nu. First
// match wins.").
var ScriptNames = []string{"build.quake", "build.quake.nu"}

// Project is a located project root plus its resolved build script path.
type Project struct {
	Root       string
	ScriptPath string
}

// Find resolves a project starting from dir. If dir is non-empty (the
// --project flag was given), it is used directly and must itself
// contain a recognized build script. Otherwise Find walks upward from
// the initial working directory (falling back to $PWD, per spec.md §6's
// "Environment variables consumed") until a build script is found or
// the filesystem root is reached.
func Find(dir string) (*Project, error) {
	if dir != "" {
		return findScriptIn(dir)
	}

	start, err := initialDir()
	if err != nil {
		return nil, errs.Wrap(errs.KindProjectNotFound, err, "failed to determine working directory")
	}

	cur := start
	for {
		if p, err := findScriptIn(cur); err == nil {
			return p, nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return nil, errs.New(errs.KindProjectNotFound, "no %v found in %q or any parent directory", ScriptNames, start)
		}
		cur = parent
	}
}

func findScriptIn(dir string) (*Project, error) {
	for _, name := range ScriptNames {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return &Project{Root: dir, ScriptPath: p}, nil
		}
	}
	return nil, errs.New(errs.KindBuildScriptNotFound, "no recognized build script in %q", dir)
}

func initialDir() (string, error) {
	if pwd := os.Getenv("PWD"); pwd != "" {
		if info, err := os.Stat(pwd); err == nil && info.IsDir() {
			return pwd, nil
		}
	}
	return os.Getwd()
}
