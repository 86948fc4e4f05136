// Package engine drives the two-phase evaluation protocol of
// SPEC_FULL.md §4.3: Load parses a build script and runs its top-level
// effects; Run resolves a root task, closes its dependency DAG, builds
// the run tree, and schedules execution.
package engine

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/quake-build/quake/internal/dirty"
	"github.com/quake-build/quake/internal/errs"
	"github.com/quake-build/quake/internal/runtree"
	"github.com/quake-build/quake/internal/scheduler"
	"github.com/quake-build/quake/internal/script"
	"github.com/quake-build/quake/internal/script/ast"
	"github.com/quake-build/quake/internal/span"
	"github.com/quake-build/quake/internal/store"
)

// Engine owns one project's metadata store and script host for the
// lifetime of a single invocation (or, under --watch, one run of it).
type Engine struct {
	Store  *store.Store
	Scopes *store.Scopes
	Host   *script.Host
}

// New builds an Engine rooted at dir, reporting script-emitted events to sink.
func New(dir string, sink script.EventSink) *Engine {
	st := store.New()
	scopes := store.NewScopes(st)
	host := script.NewHost(st, scopes, sink, dir)
	return &Engine{Store: st, Scopes: scopes, Host: host}
}

// Load parses src, registers every def-task it declares, and evaluates
// the script's free top-level code (spec.md §4.3 "Load").
func (e *Engine) Load(ctx context.Context, filename string, src []byte) error {
	prog, err := script.Parse(filename, src)
	if err != nil {
		return err
	}

	var batch errs.Batch
	for _, t := range prog.Tasks {
		if _, err := e.Store.RegisterTask(taskFromAST(t)); err != nil {
			batch.Add(err)
		}
	}
	if err := batch.Err(); err != nil {
		return err
	}

	return e.Host.EvalPreamble(ctx, prog.Preamble)
}

func taskFromAST(t *ast.DefTask) store.Task {
	task := store.Task{
		Name: t.Name,
		Span: t.Span,
		Flags: store.Flags{
			Concurrent:  t.Concurrent,
			Declarative: t.Declarative,
		},
		Signature: signatureFromAST(t.Signature),
	}
	if t.DeclBody != nil {
		task.DeclBody = store.Body{Source: t.DeclBody.Source, Valid: true}
	}
	if t.RunBody != nil {
		task.RunBody = store.Body{Source: t.RunBody.Source, Valid: true}
	}
	return task
}

func signatureFromAST(sig ast.Signature) store.Signature {
	out := store.Signature{Params: make([]store.Param, 0, len(sig.Params))}
	for _, p := range sig.Params {
		typ := store.ValueType(p.Type)
		if typ == "" {
			typ = store.TypeAny
		}
		out.Params = append(out.Params, store.Param{Name: p.Name, Type: typ})
	}
	return out
}

// RunOptions controls one Run invocation.
type RunOptions struct {
	Force bool // skip the dirtiness check (spec.md §6 --force)
	Jobs  int  // max concurrent workers; 0 means unbounded
}

// Run resolves rootName, populates the dependency DAG, builds the run
// tree, and schedules execution (spec.md §4.3 "Run").
func (e *Engine) Run(ctx context.Context, rootName string, rootArgs []string, opts RunOptions) error {
	taskID, err := e.Store.FindTaskID(rootName, span.Unknown)
	if err != nil {
		return err
	}

	rootCall := e.Store.RegisterTaskCall(taskID, e.Store.GetTask(taskID).Span, rootArgs)

	if err := e.populate(ctx, rootCall, nil); err != nil {
		return err
	}

	tree := runtree.Build(e.Store, rootCall)
	nodes := runtree.Flatten(tree)

	sched := scheduler.New(e.worker(opts.Force), e.isConcurrent, opts.Jobs)
	return sched.Run(ctx, nodes)
}

// populate implements spec.md §4.3 step 1: recursively evaluate each
// call's decl body and walk its resulting dependency list, closing the
// DAG before any run body executes. ancestors tracks the chain of tasks
// currently being populated on this recursion path so a declared cycle
// terminates by reusing the ancestor's call id (internal/script's
// cmdDepends consults this via context) instead of recursing forever.
func (e *Engine) populate(ctx context.Context, call store.CallID, ancestors map[store.TaskID]store.CallID) error {
	if e.Store.HasMetadata(call) {
		return nil
	}

	c := e.Store.GetCall(call)
	task := e.Store.GetTask(c.TaskID)

	next := make(map[store.TaskID]store.CallID, len(ancestors)+1)
	for k, v := range ancestors {
		next[k] = v
	}
	next[task.ID] = call

	if task.DeclBody.Valid {
		cctx := script.WithAncestors(ctx, next)
		if err := e.Host.EvalDeclBody(cctx, call, task.DeclBody, task.Signature, c.Arguments, task.Span); err != nil {
			return err
		}
	} else {
		e.Store.SetCallMetadata(call, store.TaskCallMetadata{})
	}

	for _, dep := range e.Store.CallMetadata(call).Dependencies {
		if err := e.populate(ctx, dep, next); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) isConcurrent(call store.CallID) bool {
	c := e.Store.GetCall(call)
	return e.Store.GetTask(c.TaskID).Flags.Concurrent
}

// worker implements the per-call routine of spec.md §4.5.
func (e *Engine) worker(force bool) scheduler.Worker {
	return func(ctx context.Context, call store.CallID) error {
		c := e.Store.GetCall(call)
		task := e.Store.GetTask(c.TaskID)
		md := e.Store.CallMetadata(call)

		// Declared paths are relative to the project directory.
		resolve := func(paths []string) []string {
			out := make([]string, len(paths))
			for i, p := range paths {
				if filepath.IsAbs(p) {
					out[i] = p
				} else {
					out[i] = filepath.Join(e.Host.Dir, p)
				}
			}
			return out
		}
		if !force && !dirty.IsDirty(resolve(md.Sources), resolve(md.Artifacts)) {
			e.Host.Sink.Info(fmt.Sprintf("skipping %s", task.Name))
			return nil
		}

		if !task.RunBody.Valid {
			// A declarative task has no run body at all; its only
			// purpose is to contribute metadata, so there is nothing
			// left to execute once dependencies are satisfied.
			return nil
		}

		e.Host.Sink.Info(fmt.Sprintf("running %s", task.Name))
		err := e.Host.EvalRunBody(ctx, task.RunBody, task.Signature, c.Arguments, task.Span)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return errs.UserInterrupted(task.Name)
		}
		e.Host.Sink.Error(err.Error())
		return err
	}
}
