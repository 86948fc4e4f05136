// Package dirty implements the mtime-based staleness check of
// SPEC_FULL.md §4.6: whether a task's declared sources are newer than
// its declared artifacts.
package dirty

import (
	"os"
	"time"
)

// IsDirty reports whether a task with the given declared sources and
// artifacts needs to run. Either list being empty means "always run".
// Otherwise the latest mtime among existing sources is compared against
// the latest mtime among existing artifacts; a path that does not exist
// is simply excluded from its side of the comparison, so a wholly
// missing side compares as not-newer rather than error.
func IsDirty(sources, artifacts []string) bool {
	if len(sources) == 0 || len(artifacts) == 0 {
		return true
	}

	latestSource, sourceOK := latestMtime(sources)
	latestArtifact, artifactOK := latestMtime(artifacts)

	if !sourceOK {
		return false
	}
	if !artifactOK {
		return true
	}
	return latestSource.After(latestArtifact)
}

func latestMtime(paths []string) (latest time.Time, ok bool) {
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		mt := info.ModTime()
		if !ok || mt.After(latest) {
			latest = mt
			ok = true
		}
	}
	return latest, ok
}
