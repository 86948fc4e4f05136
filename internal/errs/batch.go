package errs

import (
	"github.com/hashicorp/go-multierror"
)

// Batch accumulates diagnostics produced while walking an AST (spec.md
// §4.2.2 steps 1,2,3,6,7 are "accumulated and reported together").
type Batch struct {
	merr *multierror.Error
}

// Add records err if non-nil; a nil err is ignored.
func (b *Batch) Add(err error) {
	if err == nil {
		return
	}
	b.merr = multierror.Append(b.merr, err)
}

// HasErrors reports whether any diagnostics were recorded.
func (b *Batch) HasErrors() bool {
	return b.merr != nil && b.merr.Len() > 0
}

// Err returns nil if the batch is empty. A single accumulated diagnostic
// that already carries its own Kind (e.g. DuplicateTaskDefinition) is
// returned as-is, preserving that identity; otherwise the batch is
// reported as a combined *Error of kind ParseFailed.
func (b *Batch) Err() error {
	if !b.HasErrors() {
		return nil
	}
	if wrapped := b.merr.WrappedErrors(); len(wrapped) == 1 {
		if e, ok := wrapped[0].(*Error); ok {
			return e
		}
	}
	return Wrap(KindParseFailed, b.merr.ErrorOrNil(), "build script failed to parse (%d error(s))", b.merr.Len())
}
