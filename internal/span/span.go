// Package span carries source-location information for user-facing
// diagnostics produced while parsing and evaluating a build script.
package span

import "fmt"

// Span identifies a range of text within a single build-script file.
type Span struct {
	File      string
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}

// Unknown is used where a span genuinely has no source location, e.g.
// synthetic tasks registered outside of any parsed file.
var Unknown = Span{}

// IsKnown reports whether the span carries real location information.
func (s Span) IsKnown() bool {
	return s != Unknown
}

func (s Span) String() string {
	if !s.IsKnown() {
		return "<unknown>"
	}
	if s.StartLine == s.EndLine {
		return fmt.Sprintf("%s:%d:%d", s.File, s.StartLine, s.StartCol)
	}
	return fmt.Sprintf("%s:%d:%d-%d:%d", s.File, s.StartLine, s.StartCol, s.EndLine, s.EndCol)
}
