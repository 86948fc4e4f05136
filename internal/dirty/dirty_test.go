package dirty

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string, at time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	require.NoError(t, os.Chtimes(path, at, at))
}

func TestIsDirty_EmptyListsAlwaysDirty(t *testing.T) {
	require.True(t, IsDirty(nil, []string{"a"}))
	require.True(t, IsDirty([]string{"a"}, nil))
	require.True(t, IsDirty(nil, nil))
}

func TestIsDirty_SourceNewerThanArtifact(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "s.txt")
	art := filepath.Join(dir, "a.out")

	base := time.Now()
	touch(t, art, base)
	touch(t, src, base.Add(time.Hour))

	require.True(t, IsDirty([]string{src}, []string{art}))
}

func TestIsDirty_ArtifactNewerThanSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "s.txt")
	art := filepath.Join(dir, "a.out")

	base := time.Now()
	touch(t, src, base)
	touch(t, art, base.Add(time.Hour))

	require.False(t, IsDirty([]string{src}, []string{art}))
}

func TestIsDirty_MissingArtifactWithExistingSourceIsDirty(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "s.txt")
	touch(t, src, time.Now())

	require.True(t, IsDirty([]string{src}, []string{filepath.Join(dir, "missing.out")}))
}

func TestIsDirty_MissingSourceWithExistingArtifactIsNotDirty(t *testing.T) {
	dir := t.TempDir()
	art := filepath.Join(dir, "a.out")
	touch(t, art, time.Now())

	require.False(t, IsDirty([]string{filepath.Join(dir, "missing.txt")}, []string{art}))
}

func TestIsDirty_AllMissingIsNotDirty(t *testing.T) {
	dir := t.TempDir()
	require.False(t, IsDirty(
		[]string{filepath.Join(dir, "missing-src")},
		[]string{filepath.Join(dir, "missing-art")},
	))
}
