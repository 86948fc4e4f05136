// Package store implements the append-only metadata store described in
// SPEC_FULL.md §3/§4.1: tasks, task-calls, and per-call declarative
// metadata, protected by a single reader-writer lock.
package store

import (
	"sync"

	"github.com/quake-build/quake/internal/errs"
	"github.com/quake-build/quake/internal/span"
)

// TaskID stably identifies a Task for the lifetime of a process.
type TaskID int

// CallID stably identifies a TaskCall for the lifetime of a process.
type CallID int

// Flags holds the per-task behavioral switches named in spec.md §3.
type Flags struct {
	Concurrent  bool `json:"concurrent"`
	Declarative bool `json:"declarative"`
}

// Signature describes a task's formal parameters. Evaluation of the
// parameters themselves (type-checking, defaults) lives in
// internal/script; internal/engine and internal/script construct them.
type Signature struct {
	Params []Param
}

// Param is one formal parameter of a task or subtask closure.
type Param struct {
	Name string
	Type ValueType
}

// ValueType enumerates the small type system arguments are checked
// against (spec.md §4.2.1, subtask's "type check against the
// parameter's declared type").
type ValueType string

const (
	TypeString ValueType = "string"
	TypeList   ValueType = "list"
	TypeBool   ValueType = "bool"
	TypeAny    ValueType = "any"
)

// Body is an evaluable block recovered from the script host: raw shell
// source plus, for subtask closures, the closure's formal parameters.
// It is opaque to the store; only internal/script knows how to evaluate one.
type Body struct {
	Source string
	Params []Param
	Valid  bool
}

// Task is a named declaration extracted from the script (spec.md §3).
type Task struct {
	ID        TaskID
	Name      string
	Span      span.Span
	Flags     Flags
	Signature Signature
	DeclBody  Body // !Valid if absent
	RunBody   Body // !Valid if absent
}

// TaskCall is one concrete invocation of a task (spec.md §3).
type TaskCall struct {
	ID        CallID
	TaskID    TaskID
	Span      span.Span
	Arguments []string // rendered argument text; values live with the host
}

// TaskCallMetadata is populated by evaluating a call's decl body
// (spec.md §3). Ordered slices preserve declaration order throughout.
type TaskCallMetadata struct {
	Dependencies []CallID
	Sources      []string
	Artifacts    []string
}

// Store is the single metadata store for one Engine invocation. Its zero
// value is not usable; use New.
type Store struct {
	mu sync.RWMutex

	tasks      []Task
	taskByName map[string]TaskID

	calls    []TaskCall
	metadata []*TaskCallMetadata // metadata[i] is nil until populated; indexed by CallID
}

// New returns an empty Store.
func New() *Store {
	return &Store{taskByName: make(map[string]TaskID)}
}

// RegisterTask registers a new task stub, or returns
// DuplicateTaskDefinition if the name is already taken.
func (s *Store) RegisterTask(t Task) (TaskID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.taskByName[t.Name]; ok {
		return 0, errs.DuplicateTaskDefinition(t.Name, s.tasks[existing].Span, t.Span)
	}

	id := TaskID(len(s.tasks))
	t.ID = id
	s.tasks = append(s.tasks, t)
	s.taskByName[t.Name] = id
	return id, nil
}

// FindTaskID resolves a task name to its ID, or TaskNotFound.
func (s *Store) FindTaskID(name string, sp span.Span) (TaskID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.taskByName[name]
	if !ok {
		return 0, errs.TaskNotFound(name, sp)
	}
	return id, nil
}

// GetTask looks up a task by id. Panics on an out-of-range id: callers
// only ever hold ids this store itself issued.
func (s *Store) GetTask(id TaskID) Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tasks[id]
}

// ListTasks returns a snapshot of all registered tasks in registration order.
func (s *Store) ListTasks() []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// RegisterTaskCall registers a new, never-deduplicated invocation of an
// existing task (spec.md §3: "each participation in the DAG is tracked
// independently").
func (s *Store) RegisterTaskCall(taskID TaskID, sp span.Span, args []string) CallID {
	s.mu.Lock()
	defer s.mu.Unlock()

	if int(taskID) < 0 || int(taskID) >= len(s.tasks) {
		panic(errs.Internal("RegisterTaskCall: task id %d does not exist", taskID))
	}

	id := CallID(len(s.calls))
	s.calls = append(s.calls, TaskCall{ID: id, TaskID: taskID, Span: sp, Arguments: args})
	s.metadata = append(s.metadata, nil)
	return id
}

// GetCall looks up a call by id. The returned value owns its own
// Arguments slice, safe to mutate or retain across store recursion
// (spec.md §5 "copies fields... out of the store before recursing").
func (s *Store) GetCall(id CallID) TaskCall {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneCall(s.calls[id])
}

// ListCalls returns a snapshot of all registered calls in registration order.
func (s *Store) ListCalls() []TaskCall {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]TaskCall, len(s.calls))
	for i, c := range s.calls {
		out[i] = cloneCall(c)
	}
	return out
}

func cloneCall(c TaskCall) TaskCall {
	c.Arguments = append([]string(nil), c.Arguments...)
	return c
}

// TaskSnapshot is the JSON-facing shape of a Task, one element of the
// "tasks" array in spec.md §6's inspection schema. DeclBody/RunBody carry
// the body's raw source when present and are omitted otherwise.
type TaskSnapshot struct {
	TaskID   TaskID  `json:"task_id"`
	Name     string  `json:"name"`
	Flags    Flags   `json:"flags"`
	DeclBody *string `json:"decl_body,omitempty"`
	RunBody  *string `json:"run_body,omitempty"`
}

// CallMetadataSnapshot is the JSON-facing shape of a TaskCallMetadata,
// nested under a CallSnapshot's "metadata" field.
type CallMetadataSnapshot struct {
	Dependencies []CallID `json:"dependencies"`
	Sources      []string `json:"sources"`
	Artifacts    []string `json:"artifacts"`
}

// CallSnapshot is the JSON-facing shape of a TaskCall plus its metadata,
// one element of the "task_calls" array in spec.md §6's inspection schema.
type CallSnapshot struct {
	CallID    CallID               `json:"call_id"`
	TaskID    TaskID               `json:"task_id"`
	Arguments []string             `json:"arguments"`
	Metadata  CallMetadataSnapshot `json:"metadata"`
}

// ProjectSnapshot is the full JSON dump `quake inspect` prints: every task
// registered by the declaration pass and every call registered so far,
// matching spec.md §6's `{ "tasks": [...], "task_calls": [...] }` schema.
type ProjectSnapshot struct {
	Tasks     []TaskSnapshot `json:"tasks"`
	TaskCalls []CallSnapshot `json:"task_calls"`
}

// Snapshot dumps the store's entire current state in spec.md §6's JSON
// inspection schema. Every registered call is listed, with empty metadata
// if its decl body has not run yet. Load registers no calls, so a Snapshot
// taken right after Load (before any task runs) reports tasks with an
// empty task_calls array.
func (s *Store) Snapshot() ProjectSnapshot {
	tasks := s.ListTasks()
	out := ProjectSnapshot{Tasks: make([]TaskSnapshot, 0, len(tasks))}
	for _, t := range tasks {
		snap := TaskSnapshot{TaskID: t.ID, Name: t.Name, Flags: t.Flags}
		if t.DeclBody.Valid {
			src := t.DeclBody.Source
			snap.DeclBody = &src
		}
		if t.RunBody.Valid {
			src := t.RunBody.Source
			snap.RunBody = &src
		}
		out.Tasks = append(out.Tasks, snap)
	}

	calls := s.ListCalls()
	out.TaskCalls = make([]CallSnapshot, 0, len(calls))
	for _, c := range calls {
		md := s.CallMetadata(c.ID)
		out.TaskCalls = append(out.TaskCalls, CallSnapshot{
			CallID:    c.ID,
			TaskID:    c.TaskID,
			Arguments: c.Arguments,
			Metadata: CallMetadataSnapshot{
				Dependencies: md.Dependencies,
				Sources:      md.Sources,
				Artifacts:    md.Artifacts,
			},
		})
	}
	return out
}

// HasMetadata reports whether a call's metadata has already been
// populated, used by the evaluation driver to avoid re-populating a call
// visited twice during DAG closure (spec.md §4.3).
func (s *Store) HasMetadata(id CallID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.metadata[id] != nil
}

// SetCallMetadata installs a call's metadata. It is an internal
// invariant violation to call this twice for the same id.
func (s *Store) SetCallMetadata(id CallID, md TaskCallMetadata) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.metadata[id] != nil {
		panic(errs.Internal("SetCallMetadata: call %d already has metadata", id))
	}
	m := md
	s.metadata[id] = &m
}

// CallMetadata returns a deep copy of a call's metadata. Callers must
// not be able to mutate shared state through it; lock discipline
// (spec.md §5) forbids returning the store's own slices across
// blocking work such as host evaluation or recursive population.
func (s *Store) CallMetadata(id CallID) TaskCallMetadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m := s.metadata[id]
	if m == nil {
		return TaskCallMetadata{}
	}
	return TaskCallMetadata{
		Dependencies: append([]CallID(nil), m.Dependencies...),
		Sources:      append([]string(nil), m.Sources...),
		Artifacts:    append([]string(nil), m.Artifacts...),
	}
}
