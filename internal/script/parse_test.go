package script

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse_SimpleTaskWithBothBodies(t *testing.T) {
	prog, err := Parse("build.quake", []byte(`
def-task "build" (target: string) {
  depends "fetch"
  sources "src/**/*.go"
  produces "bin/app"
} {
  go build -o bin/app ./...
}
`))
	require.NoError(t, err)
	require.Len(t, prog.Tasks, 1)

	task := prog.Tasks[0]
	require.Equal(t, "build", task.Name)
	require.False(t, task.Concurrent)
	require.False(t, task.Declarative)
	require.Len(t, task.Signature.Params, 1)
	require.Equal(t, "target", task.Signature.Params[0].Name)
	require.Equal(t, "string", task.Signature.Params[0].Type)
	require.NotNil(t, task.DeclBody)
	require.NotNil(t, task.RunBody)
	require.Contains(t, task.RunBody.Source, "go build")
}

func TestParse_ConcurrentFlag(t *testing.T) {
	prog, err := Parse("f", []byte(`def-task "x" --concurrent { echo hi }`))
	require.NoError(t, err)
	require.True(t, prog.Tasks[0].Concurrent)
}

func TestParse_DeclarativeSingleBodyIsDeclBody(t *testing.T) {
	prog, err := Parse("f", []byte(`def-task "x" --declarative { produces "out" }`))
	require.NoError(t, err)
	require.NotNil(t, prog.Tasks[0].DeclBody)
	require.Nil(t, prog.Tasks[0].RunBody)
}

func TestParse_DeclarativeWithTwoBodiesFails(t *testing.T) {
	_, err := Parse("f", []byte(`def-task "x" --declarative { produces "out" } { echo hi }`))
	require.Error(t, err)
}

func TestParse_MissingBodyFails(t *testing.T) {
	_, err := Parse("f", []byte(`def-task "x"`))
	require.Error(t, err)
}

func TestParse_DuplicateNamesAreBothParsedSuccessfully(t *testing.T) {
	// Parse itself doesn't dedup names -- that's a store-level concern
	// (internal/engine.Load); it should simply see two tasks.
	prog, err := Parse("f", []byte(`
def-task "x" { echo 1 }
def-task "x" { echo 2 }
`))
	require.NoError(t, err)
	require.Len(t, prog.Tasks, 2)
}

func TestParse_PreambleCapturesFreeTopLevelCode(t *testing.T) {
	prog, err := Parse("f", []byte(`
let x = 1
def-task "t" { echo hi }
echo done
`))
	require.NoError(t, err)
	require.Len(t, prog.Preamble, 2)
	require.Contains(t, prog.Preamble[0].Source, "let x = 1")
	require.Contains(t, prog.Preamble[1].Source, "echo done")
}

func TestScanBody_LiftsSubtaskStructurally(t *testing.T) {
	stmts, err := ScanBody("f", `
depends "other"
subtask "work" { |x: string| echo $x }
sources "a.txt"
`)
	require.NoError(t, err)
	require.Len(t, stmts, 3)
	require.NotNil(t, stmts[0].Raw)
	require.NotNil(t, stmts[1].Subtask)
	require.NotNil(t, stmts[2].Raw)

	sub := stmts[1].Subtask
	require.Equal(t, "work", sub.Name)
	require.Len(t, sub.Closure.Params, 1)
	require.Equal(t, "x", sub.Closure.Params[0].Name)
	require.Equal(t, "string", sub.Closure.Params[0].Type)
	require.Contains(t, sub.Closure.Source, "echo $x")
}

func TestScanBody_SubtaskWithConcurrentFlag(t *testing.T) {
	stmts, err := ScanBody("f", `subtask "w" --concurrent { echo hi }`)
	require.NoError(t, err)
	require.True(t, stmts[0].Subtask.Concurrent)
}

func TestParseSignature_EmptyIsValid(t *testing.T) {
	prog, err := Parse("f", []byte(`def-task "t" () { echo hi }`))
	require.NoError(t, err)
	require.Empty(t, prog.Tasks[0].Signature.Params)
}

func TestParseSignature_UntypedParamDefaultsToEmptyType(t *testing.T) {
	prog, err := Parse("f", []byte(`def-task "t" (x) { echo hi }`))
	require.NoError(t, err)
	require.Equal(t, "x", prog.Tasks[0].Signature.Params[0].Name)
	require.Equal(t, "", prog.Tasks[0].Signature.Params[0].Type)
}
