package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/quake-build/quake/internal/store"
	"github.com/stretchr/testify/require"
)

func writeProject(t *testing.T, src string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "build.quake"), []byte(src), 0o644))
	return dir
}

func execCmd(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--project", dir}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestListCmd_PrintsDeclaredTasks(t *testing.T) {
	dir := writeProject(t, `
def-task "build" --concurrent { echo hi }
def-task "check" --declarative { produces "out" }
`)
	out, err := execCmd(t, dir, "list")
	require.NoError(t, err)
	require.Contains(t, out, "build [concurrent]")
	require.Contains(t, out, "check [declarative]")
}

func TestInspectCmd_PrintsTasksAndCallsAsJSON(t *testing.T) {
	dir := writeProject(t, `def-task "build" --concurrent (target: string) { echo in decl } { echo in run }`)
	out, err := execCmd(t, dir, "inspect")
	require.NoError(t, err)

	var snap store.ProjectSnapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	require.Len(t, snap.Tasks, 1)
	require.Equal(t, "build", snap.Tasks[0].Name)
	require.True(t, snap.Tasks[0].Flags.Concurrent)
	require.NotNil(t, snap.Tasks[0].DeclBody)
	require.NotNil(t, snap.Tasks[0].RunBody)
	require.Empty(t, snap.TaskCalls)
}

func TestInspectCmd_RejectsArguments(t *testing.T) {
	dir := writeProject(t, `def-task "build" { echo hi }`)
	_, err := execCmd(t, dir, "inspect", "build")
	require.Error(t, err)
}

func TestRootCmd_RunsNamedTaskAndProducesArtifact(t *testing.T) {
	dir := writeProject(t, `def-task "build" { touch out.txt }`)
	_, err := execCmd(t, dir, "build")
	require.NoError(t, err)
	_, statErr := os.Stat(filepath.Join(dir, "out.txt"))
	require.NoError(t, statErr)
}

func TestVersionCmd_PrintsVersion(t *testing.T) {
	out, err := execCmd(t, t.TempDir(), "version")
	require.NoError(t, err)
	require.Contains(t, out, Version)
}
