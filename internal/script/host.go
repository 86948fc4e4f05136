// Package script binds quake's domain commands (def-task, subtask,
// depends, sources, produces) to an embedded shell host. The host is
// mvdan.cc/sh/v3: its syntax package parses ordinary statements (words,
// lists, pipelines, quoting) and its interp package evaluates them,
// exactly the external-collaborator role spec.md §1/§4.2 assigns to
// "the embedded scripting host". This package contributes only the
// brace-block-literal extension (parse.go) and the five command
// handlers, per spec.md §4.2.1.
package script

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/quake-build/quake/internal/errs"
	"github.com/quake-build/quake/internal/script/ast"
	"github.com/quake-build/quake/internal/span"
	"github.com/quake-build/quake/internal/store"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// EventSink receives the "info"/"warn"/"error" lines described in
// spec.md §4.5/§6. internal/logger implements it.
type EventSink interface {
	Info(msg string)
	Warn(msg string)
	Error(msg string)
}

// scopeCtxKey threads the "state handle" and "scope-id variable" of
// spec.md §9 through Go's context.Context, which the host's
// ExecHandlerFunc already accepts -- the idiomatic Go equivalent of the
// host-variable indirection the original Rust/Nushell host requires.
type scopeCtxKey struct{}

type scopeState struct {
	id   store.ScopeID
	call store.CallID
}

// Host evaluates decl and run bodies against one project's metadata store.
type Host struct {
	Store  *store.Store
	Scopes *store.Scopes
	Sink   EventSink
	Dir    string

	anonCounter int
}

// NewHost builds a Host bound to store/scopes, rooted at dir for
// relative path and glob resolution.
func NewHost(st *store.Store, scopes *store.Scopes, sink EventSink, dir string) *Host {
	return &Host{Store: st, Scopes: scopes, Sink: sink, Dir: dir}
}

// newShellParser builds a fresh bash-dialect parser. mvdan's
// *syntax.Parser is not safe for concurrent use, so runRaw builds one per
// statement instead of sharing one across concurrently-running workers.
func newShellParser() *syntax.Parser {
	return syntax.NewParser(syntax.Variant(syntax.LangBash))
}

// EvalPreamble runs the script's free top-level code (spec.md §4.3
// "Load... evaluate the script top-level... and any free top-level
// code"), outside of any scope.
func (h *Host) EvalPreamble(ctx context.Context, stmts []ast.RawStmt) error {
	for _, st := range stmts {
		if err := h.runRaw(ctx, store.NoScope, store.CallID(-1), st.Source, st.Span, nil); err != nil {
			return err
		}
	}
	return nil
}

// EvalDeclBody evaluates call's decl body under a freshly-entered scope,
// per spec.md §4.2.3, binding args to the task's signature.
func (h *Host) EvalDeclBody(ctx context.Context, call store.CallID, body store.Body, sig store.Signature, args []string, sp span.Span) error {
	scopeID, err := h.Scopes.Enter(call, sp)
	if err != nil {
		return err
	}
	defer h.Scopes.Exit()

	bound := bindArgs(sig, args)

	stmts, err := ScanBody(sp.File, body.Source)
	if err != nil {
		return err
	}

	cctx := context.WithValue(ctx, scopeCtxKey{}, scopeState{id: scopeID, call: call})
	for _, st := range stmts {
		switch {
		case st.Subtask != nil:
			if err := h.evalSubtask(cctx, scopeID, call, st.Subtask); err != nil {
				return err
			}
		case st.Raw != nil:
			if err := h.runRaw(cctx, scopeID, call, st.Raw.Source, st.Raw.Span, bound); err != nil {
				return err
			}
		}
	}
	return nil
}

// EvalRunBody evaluates call's run body (spec.md §4.5 worker routine
// step 3). No scope is active; depends/sources/produces/subtask used
// here fail with InvalidScope, matching spec.md's invariant.
func (h *Host) EvalRunBody(ctx context.Context, body store.Body, sig store.Signature, args []string, sp span.Span) error {
	bound := bindArgs(sig, args)
	stmts, err := ScanBody(sp.File, body.Source)
	if err != nil {
		return err
	}
	for _, st := range stmts {
		switch {
		case st.Subtask != nil:
			return errs.InvalidScope("subtask", st.Subtask.Span)
		case st.Raw != nil:
			if err := h.runRaw(ctx, store.NoScope, store.CallID(-1), st.Raw.Source, st.Raw.Span, bound); err != nil {
				return err
			}
		}
	}
	return nil
}

func bindArgs(sig store.Signature, args []string) map[string]string {
	bound := make(map[string]string, len(sig.Params))
	for i, p := range sig.Params {
		if i < len(args) {
			bound[p.Name] = args[i]
		}
	}
	return bound
}

// runRaw parses and evaluates one statement's worth of shell source,
// dispatching depends/sources/produces through our ExecHandlers
// middleware and falling back to the host's normal process-exec
// behavior for everything else (e.g. a run body's `go build ./...`).
func (h *Host) runRaw(ctx context.Context, scopeID store.ScopeID, call store.CallID, src string, sp span.Span, vars map[string]string) error {
	parser := newShellParser()
	file, err := parser.Parse(strings.NewReader(src), sp.File)
	if err != nil {
		return errs.Wrap(errs.KindEvalFailed, err, "failed to parse statement at %s", sp)
	}

	runner, err := interp.New(
		interp.Dir(h.Dir),
		interp.StdIO(nil, os.Stdout, os.Stderr),
		interp.ExecHandlers(h.middleware(scopeID, call, sp)),
	)
	if err != nil {
		return errs.Wrap(errs.KindInternal, err, "failed to construct shell interpreter")
	}
	for name, val := range vars {
		runner.Vars[name] = expand.Variable{Kind: expand.String, Str: val}
	}
	runner.Vars["quake_scope"] = expand.Variable{Kind: expand.String, Str: fmt.Sprintf("%d", scopeID)}

	if err := runner.Run(ctx, file); err != nil {
		var typed *errs.Error
		if errors.As(err, &typed) {
			// A domain command (depends/sources/produces/subtask)
			// already classified this failure; preserve its kind
			// rather than flattening it into a generic EvalFailed.
			return typed
		}
		if interp.IsExitStatus(err) {
			return errs.Wrap(errs.KindTaskFailed, err, "statement at %s exited non-zero", sp)
		}
		return errs.Wrap(errs.KindEvalFailed, err, "failed to evaluate statement at %s", sp)
	}
	return nil
}

// middleware intercepts depends/sources/produces/def-task invocations;
// every other command (a run body's real build commands) falls through
// to the host's default process-exec behavior.
func (h *Host) middleware(scopeID store.ScopeID, call store.CallID, sp span.Span) func(interp.ExecHandlerFunc) interp.ExecHandlerFunc {
	return func(next interp.ExecHandlerFunc) interp.ExecHandlerFunc {
		return func(ctx context.Context, args []string) error {
			if len(args) == 0 {
				return next(ctx, args)
			}
			switch args[0] {
			case "depends":
				return h.cmdDepends(ctx, scopeID, args[1:], sp)
			case "sources":
				return h.cmdSources(scopeID, args[1:], sp)
			case "produces":
				return h.cmdProduces(scopeID, args[1:], sp)
			case "def-task":
				return errs.Internal("def-task reached runtime execution at %s; this is always a bug", sp)
			default:
				return next(ctx, args)
			}
		}
	}
}

func (h *Host) cmdDepends(ctx context.Context, scopeID store.ScopeID, args []string, sp span.Span) error {
	if len(args) == 0 {
		return errs.At(errs.KindParseFailed, sp, "depends requires a task name")
	}
	name, rest := args[0], args[1:]
	taskID, err := h.Store.FindTaskID(name, sp)
	if err != nil {
		return err
	}

	// A task already being populated higher up the active decl-body
	// recursion reuses that ancestor's call id instead of minting a new
	// one. Without this, a declared cycle would make population recurse
	// forever, since every ordinary depends mints a fresh call id. The
	// run tree's own first-visit-wins dedup (internal/runtree) then
	// drops the reused id wherever it would recur, which is what
	// actually breaks the cycle for execution purposes.
	if ancestorCall, ok := ancestorsFromContext(ctx)[taskID]; ok {
		return h.Scopes.AddDependency(scopeID, "depends", sp, ancestorCall)
	}

	depCall := h.Store.RegisterTaskCall(taskID, sp, rest)
	return h.Scopes.AddDependency(scopeID, "depends", sp, depCall)
}

func (h *Host) cmdSources(scopeID store.ScopeID, args []string, sp span.Span) error {
	paths, err := h.expandGlobs(args)
	if err != nil {
		return err
	}
	return h.Scopes.AddSources(scopeID, sp, paths)
}

func (h *Host) cmdProduces(scopeID store.ScopeID, args []string, sp span.Span) error {
	paths, err := h.expandGlobs(args)
	if err != nil {
		return err
	}
	return h.Scopes.AddArtifacts(scopeID, sp, paths)
}

// expandGlobs expands each argument as a doublestar glob pattern rooted
// at h.Dir (spec.md §1 names globbing an external collaborator; here it
// is github.com/bmatcuk/doublestar/v4). A pattern matching nothing is
// kept verbatim so that "not yet existing" artifacts still register
// (spec.md §4.6 depends on nonexistent paths being compared, not dropped).
func (h *Host) expandGlobs(patterns []string) ([]string, error) {
	var out []string
	for _, pat := range patterns {
		if !strings.ContainsAny(pat, "*?[{") {
			out = append(out, pat)
			continue
		}
		matches, err := doublestar.Glob(os.DirFS(h.Dir), pat)
		if err != nil {
			return nil, errs.Wrap(errs.KindInternal, err, "invalid glob pattern %q", pat)
		}
		if len(matches) == 0 {
			out = append(out, pat)
			continue
		}
		for _, m := range matches {
			out = append(out, filepath.Clean(m))
		}
	}
	return out, nil
}

// evalSubtask implements spec.md §4.2.1's `subtask` command: register a
// fresh task whose run body is the closure, capture the pipeline input
// as a bound constant of the closure's first parameter if present (with
// a type check against that parameter's declared type), register a call
// to that task, and append the new call id to the active scope's
// dependencies.
func (h *Host) evalSubtask(ctx context.Context, scopeID store.ScopeID, parentCall store.CallID, st *ast.Subtask) error {
	parentTask := h.Store.GetTask(h.Store.GetCall(parentCall).TaskID)
	h.anonCounter++
	name := fmt.Sprintf("%s::subtask#%d(%s)", parentTask.Name, h.anonCounter, st.Name)

	var params []store.Param
	for _, p := range st.Closure.Params {
		params = append(params, store.Param{Name: p.Name, Type: store.ValueType(p.Type)})
	}

	taskID, err := h.Store.RegisterTask(store.Task{
		Name:  name,
		Span:  st.Span,
		Flags: store.Flags{Concurrent: st.Concurrent},
		Signature: store.Signature{
			Params: params,
		},
		RunBody: store.Body{Source: st.Closure.Source, Params: params, Valid: true},
	})
	if err != nil {
		return err
	}

	var callArgs []string
	if cv, ok := capturedValue(ctx); ok && len(params) > 0 {
		if err := store.CheckType(params[0].Type, cv, params[0].Name, st.Span); err != nil {
			return err
		}
		callArgs = append(callArgs, cv.String())
	}

	call := h.Store.RegisterTaskCall(taskID, st.Span, callArgs)
	return h.Scopes.AddDependency(scopeID, "subtask", st.Span, call)
}

type capturedValueKey struct{}

// WithCapturedValue binds the pipeline value a subtask's closure first
// parameter should capture (spec.md §4.2.1). No core command currently
// produces a pipeline value ahead of subtask, so today this is exercised
// only directly by tests; it exists for a future producer-style command
// to feed a typed value into a subtask invocation.
func WithCapturedValue(ctx context.Context, v store.Value) context.Context {
	return context.WithValue(ctx, capturedValueKey{}, v)
}

func capturedValue(ctx context.Context) (store.Value, bool) {
	v, ok := ctx.Value(capturedValueKey{}).(store.Value)
	return v, ok
}

// ScopeFromContext recovers the scope state bound by EvalDeclBody, for
// use by commands that need it outside of Host's own dispatch (tests,
// mainly).
func ScopeFromContext(ctx context.Context) (store.ScopeID, store.CallID, bool) {
	s, ok := ctx.Value(scopeCtxKey{}).(scopeState)
	return s.id, s.call, ok
}

type ancestorsCtxKey struct{}

// WithAncestors records the chain of tasks currently being populated on
// the active decl-body recursion, keyed by task id, so cmdDepends can
// recognize a cycle and reuse the ancestor's call id rather than
// recursing forever (internal/engine drives this during DAG closure).
func WithAncestors(ctx context.Context, ancestors map[store.TaskID]store.CallID) context.Context {
	return context.WithValue(ctx, ancestorsCtxKey{}, ancestors)
}

func ancestorsFromContext(ctx context.Context) map[store.TaskID]store.CallID {
	m, _ := ctx.Value(ancestorsCtxKey{}).(map[store.TaskID]store.CallID)
	return m
}
