// Package errs defines the typed diagnostic taxonomy that every other
// quake package reports through. Each Kind maps to one of the exit
// codes documented in SPEC_FULL.md §6.
package errs

import (
	"fmt"

	"github.com/quake-build/quake/internal/span"
)

// Kind is a stable identifier for a class of error, used by the CLI to
// pick an exit code and by tests to assert on failure shape without
// string-matching messages.
type Kind string

const (
	KindProjectNotFound      Kind = "ProjectNotFound"
	KindBuildScriptNotFound  Kind = "BuildScriptNotFound"
	KindTaskNotFound         Kind = "TaskNotFound"
	KindDuplicateTaskDef     Kind = "DuplicateTaskDefinition"
	KindInvalidScope         Kind = "InvalidScope"
	KindNestedScopes         Kind = "NestedScopes"
	KindDeclarativeExtraBody Kind = "DeclarativeTaskHasExtraBody"
	KindTaskMissingBody      Kind = "TaskMissingBody"
	KindTaskFailed           Kind = "TaskFailed"
	KindParseFailed          Kind = "ParseFailed"
	KindEvalFailed           Kind = "EvalFailed"
	KindUserInterrupt        Kind = "InterruptedByUser"
	KindInternal             Kind = "Internal"
)

// Error is the single error type every quake component constructs.
// It optionally carries a source Span and a wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Span    span.Span
	Name    string // task/dependency name, when relevant
	Cause   error
}

func (e *Error) Error() string {
	if e.Span.IsKnown() {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %s (%s): %v", e.Kind, e.Message, e.Span, e.Cause)
		}
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Span)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a spanless Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// At builds an Error carrying a source span.
func At(kind Kind, sp span.Span, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Span: sp}
}

// Wrap attaches a cause to an otherwise-built Error.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// TaskNotFound builds the TaskNotFound diagnostic named in spec.md §7.
func TaskNotFound(name string, sp span.Span) *Error {
	return &Error{Kind: KindTaskNotFound, Message: fmt.Sprintf("no task named %q", name), Name: name, Span: sp}
}

// DuplicateTaskDefinition builds the DuplicateTaskDefinition diagnostic,
// carrying both the new and the pre-existing span.
func DuplicateTaskDefinition(name string, existing, newSpan span.Span) *Error {
	return &Error{
		Kind:    KindDuplicateTaskDef,
		Message: fmt.Sprintf("task %q is already defined at %s", name, existing),
		Name:    name,
		Span:    newSpan,
	}
}

// InvalidScope builds the InvalidScope diagnostic for decl-only commands
// invoked outside an active scope.
func InvalidScope(command string, sp span.Span) *Error {
	return &Error{Kind: KindInvalidScope, Message: fmt.Sprintf("%q may only be used inside a task's decl body", command), Span: sp}
}

// NestedScopes builds the NestedScopes diagnostic.
func NestedScopes(sp span.Span) *Error {
	return &Error{Kind: KindNestedScopes, Message: "a decl body is already active; scopes cannot nest", Span: sp}
}

// Internal marks an invariant violation: always a bug, maps to exit 255.
func Internal(format string, args ...any) *Error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf(format, args...)}
}

// UserInterrupted marks a worker's run body as having been cancelled by
// the orchestrator rather than having genuinely failed (spec.md §4.5
// worker routine step 4: "InterruptedByUser -> silent failure").
func UserInterrupted(name string) *Error {
	return &Error{Kind: KindUserInterrupt, Message: fmt.Sprintf("%s was interrupted", name), Name: name}
}

// IsUserInterrupt reports whether err (or a cause in its chain) is the
// silent-failure InterruptedByUser kind.
func IsUserInterrupt(err error) bool {
	var e *Error
	return asError(err, &e) && e.Kind == KindUserInterrupt
}

// ExitCode maps a Kind to the process exit code documented in SPEC_FULL.md §6.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var e *Error
	if !asError(err, &e) {
		return 1
	}
	switch e.Kind {
	case KindInternal:
		return 255
	case KindParseFailed, KindEvalFailed, KindTaskNotFound, KindDuplicateTaskDef,
		KindInvalidScope, KindNestedScopes, KindDeclarativeExtraBody, KindTaskMissingBody:
		return 127
	case KindTaskFailed, KindProjectNotFound, KindBuildScriptNotFound:
		return 1
	default:
		return 1
	}
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
