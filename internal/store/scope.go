package store

import (
	"github.com/quake-build/quake/internal/errs"
	"github.com/quake-build/quake/internal/span"
)

// ScopeID is the small integer exposed to the script host as the
// "scope-id variable" (spec.md §4.2/§9). -1 means no active scope.
type ScopeID int

// NoScope is the sentinel value for "not inside a decl body".
const NoScope ScopeID = -1

// scope is the mutable, short-lived accumulator a decl-body evaluation
// writes into via the sources/produces/depends/subtask commands.
type scope struct {
	call CallID
	md   TaskCallMetadata
}

// Scopes is the scope table described in spec.md §4.2.3/§9. Its own
// fields are not guarded by any lock (neither its own nor the store's);
// only the final commit in Exit goes through the store's RW lock.
//
// Scopes never nest: at most one scope is active process-wide at a time,
// matching the single-writer decl-body evaluation model in spec.md §4.3
// (DAG closure is built depth-first, one decl body evaluated at a time).
type Scopes struct {
	store *Store

	active bool
	id     ScopeID
	s      scope
}

// NewScopes builds a scope table bound to store.
func NewScopes(store *Store) *Scopes {
	return &Scopes{store: store, id: NoScope}
}

// Enter opens a new scope bound to call, per spec.md §4.2.3. It is an
// error to call Enter while a scope is already active.
func (sc *Scopes) Enter(call CallID, sp span.Span) (ScopeID, error) {
	if sc.active {
		return NoScope, errs.NestedScopes(sp)
	}
	sc.active = true
	sc.id++
	sc.s = scope{call: call}
	return sc.id, nil
}

// Current returns the active scope id, or NoScope.
func (sc *Scopes) Current() ScopeID {
	if !sc.active {
		return NoScope
	}
	return sc.id
}

// Exit commits the active scope's metadata to the store and destroys
// the scope, resetting the scope-id to NoScope (spec.md §4.2.3).
func (sc *Scopes) Exit() {
	if !sc.active {
		panic(errs.Internal("Scopes.Exit: no active scope"))
	}
	sc.store.SetCallMetadata(sc.s.call, sc.s.md)
	sc.active = false
}

// requireActive validates that id is the current scope, returning
// InvalidScope otherwise (spec.md: "fail with InvalidScope if used
// outside a decl body").
func (sc *Scopes) requireActive(id ScopeID, command string, sp span.Span) error {
	if !sc.active || id != sc.id {
		return errs.InvalidScope(command, sp)
	}
	return nil
}

// AddDependency appends to the active scope's dependency list.
func (sc *Scopes) AddDependency(id ScopeID, command string, sp span.Span, call CallID) error {
	if err := sc.requireActive(id, command, sp); err != nil {
		return err
	}
	sc.s.md.Dependencies = append(sc.s.md.Dependencies, call)
	return nil
}

// AddSources appends to the active scope's source list.
func (sc *Scopes) AddSources(id ScopeID, sp span.Span, paths []string) error {
	if err := sc.requireActive(id, "sources", sp); err != nil {
		return err
	}
	sc.s.md.Sources = append(sc.s.md.Sources, paths...)
	return nil
}

// AddArtifacts appends to the active scope's artifact list.
func (sc *Scopes) AddArtifacts(id ScopeID, sp span.Span, paths []string) error {
	if err := sc.requireActive(id, "produces", sp); err != nil {
		return err
	}
	sc.s.md.Artifacts = append(sc.s.md.Artifacts, paths...)
	return nil
}
