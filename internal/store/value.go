package store

import (
	"fmt"

	"github.com/quake-build/quake/internal/errs"
	"github.com/quake-build/quake/internal/span"
)

// Value is a small runtime value passed as a task-call argument or
// captured by a subtask closure's parameter (spec.md §4.2.1).
type Value struct {
	Type ValueType
	Str  string
	List []string
	Bool bool
}

func StringValue(s string) Value { return Value{Type: TypeString, Str: s} }
func ListValue(l []string) Value { return Value{Type: TypeList, List: l} }
func BoolValue(b bool) Value     { return Value{Type: TypeBool, Bool: b} }

// CheckType reports an error if v's runtime type is incompatible with
// declared, per spec.md §4.2.1 ("with type check against the
// parameter's declared type"). TypeAny and the empty type accept anything.
func CheckType(declared ValueType, v Value, paramName string, sp span.Span) error {
	if declared == "" || declared == TypeAny || declared == v.Type {
		return nil
	}
	return errs.At(errs.KindInternal, sp, "parameter %q expects %s, got %s", paramName, declared, v.Type)
}

func (v Value) String() string {
	switch v.Type {
	case TypeList:
		return fmt.Sprintf("%v", v.List)
	case TypeBool:
		return fmt.Sprintf("%v", v.Bool)
	default:
		return v.Str
	}
}
