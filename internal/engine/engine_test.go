package engine

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/quake-build/quake/internal/errs"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	info   []string
	warn   []string
	errors []string
}

func (s *recordingSink) Info(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.info = append(s.info, msg)
}
func (s *recordingSink) Warn(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warn = append(s.warn, msg)
}
func (s *recordingSink) Error(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, msg)
}

func (s *recordingSink) Infos() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.info))
	copy(out, s.info)
	return out
}

func newTestEngine(t *testing.T, src string) (*Engine, *recordingSink) {
	t.Helper()
	dir := t.TempDir()
	sink := &recordingSink{}
	e := New(dir, sink)
	require.NoError(t, e.Load(context.Background(), "build.quake", []byte(src)))
	return e, sink
}

func TestEngine_LinearChain(t *testing.T) {
	e, sink := newTestEngine(t, `
def-task "A" { echo a }
def-task "B" { depends "A" } { echo b }
def-task "C" { depends "B" } { echo c }
`)
	require.NoError(t, e.Run(context.Background(), "C", nil, RunOptions{}))
	require.Equal(t, []string{"running A", "running B", "running C"}, sink.Infos())
}

func TestEngine_Diamond(t *testing.T) {
	e, sink := newTestEngine(t, `
def-task "A" { echo a }
def-task "B" { depends "A" } { echo b }
def-task "C" { depends "A" } { echo c }
def-task "D" { depends "B"; depends "C" } { echo d }
`)
	require.NoError(t, e.Run(context.Background(), "D", nil, RunOptions{}))
	infos := sink.Infos()
	require.Equal(t, []string{"running A", "running B", "running C", "running D"}, infos)
}

func TestEngine_ConcurrentFanOut(t *testing.T) {
	e, sink := newTestEngine(t, `
def-task "X" --concurrent { echo x }
def-task "Y" --concurrent { echo y }
def-task "Z" --concurrent { echo z }
def-task "R" { depends "X"; depends "Y"; depends "Z" } { echo r }
`)
	require.NoError(t, e.Run(context.Background(), "R", nil, RunOptions{}))
	infos := sink.Infos()
	require.Len(t, infos, 4)
	require.Equal(t, "running R", infos[3])
	require.ElementsMatch(t, []string{"running X", "running Y", "running Z"}, infos[:3])
}

func TestEngine_CycleToleranceTerminatesAndRunsEachOnce(t *testing.T) {
	e, sink := newTestEngine(t, `
def-task "A" { depends "B" } { echo a }
def-task "B" { depends "A" } { echo b }
`)
	require.NoError(t, e.Run(context.Background(), "A", nil, RunOptions{}))
	require.Equal(t, []string{"running B", "running A"}, sink.Infos())
}

func TestEngine_DuplicateDefinitionFailsLoad(t *testing.T) {
	dir := t.TempDir()
	sink := &recordingSink{}
	e := New(dir, sink)
	err := e.Load(context.Background(), "build.quake", []byte(`
def-task "foo" { echo 1 }
def-task "foo" { echo 2 }
`))
	require.Error(t, err)
	var typed *errs.Error
	require.ErrorAs(t, err, &typed)
	require.Equal(t, errs.KindDuplicateTaskDef, typed.Kind)
	require.Equal(t, "foo", typed.Name)
}

func TestEngine_DirtinessSkipThenRerun(t *testing.T) {
	dir := t.TempDir()
	sink := &recordingSink{}
	e := New(dir, sink)
	require.NoError(t, e.Load(context.Background(), "build.quake", []byte(`
def-task "t" {
  sources "s.txt"
  produces "a.out"
} {
  echo built > a.out
}
`)))

	srcPath := filepath.Join(dir, "s.txt")
	artPath := filepath.Join(dir, "a.out")
	base := time.Now()
	writeAt(t, artPath, base)
	writeAt(t, srcPath, base.Add(-time.Hour))

	require.NoError(t, e.Run(context.Background(), "t", nil, RunOptions{}))
	require.Contains(t, sink.Infos(), "skipping t")

	writeAt(t, srcPath, base.Add(time.Hour))
	require.NoError(t, e.Run(context.Background(), "t", nil, RunOptions{}))
	require.Contains(t, sink.Infos(), "running t")
}

func writeAt(t *testing.T, path string, at time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	require.NoError(t, os.Chtimes(path, at, at))
}
