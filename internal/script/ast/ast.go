// Package ast defines quake's surface syntax tree: the small set of
// nodes recognized by internal/script before ordinary statements are
// handed off to the embedded shell host (mvdan.cc/sh/v3).
//
// Only def-task's signature/name/flags and the brace-delimited bodies it
// and subtask introduce are modeled here; everything else inside a body
// is opaque shell source consumed directly by mvdan.cc/sh/v3/syntax.
package ast

import "github.com/quake-build/quake/internal/span"

// Program is the result of parsing one build script.
type Program struct {
	Tasks    []*DefTask
	Preamble []RawStmt // free top-level code outside any def-task, run in order
}

// Param is one formal parameter in a signature or subtask closure.
type Param struct {
	Name string
	Type string // "string", "list", "bool", "any"; "" means untyped ("any")
	Span span.Span
}

// Signature is a def-task's parenthesized parameter list.
type Signature struct {
	Params []Param
	Span   span.Span
}

// Block is a brace-delimited body: a decl body, a run body, or a
// subtask's closure. Source is the raw text between (but not including)
// the braces, re-parsed lazily by the shell host when evaluated.
type Block struct {
	Source string
	Span   span.Span
	Params []Param // only non-empty for subtask closures: {|x| ...}
}

// DefTask is one `def-task` declaration.
type DefTask struct {
	Name        string
	NameSpan    span.Span
	Span        span.Span
	Concurrent  bool
	Declarative bool // --declarative / --pure
	Signature   Signature
	DeclBody    *Block // nil if absent
	RunBody     *Block // nil if absent
}

// RawStmt is a span of shell source quake does not interpret structurally.
type RawStmt struct {
	Source string
	Span   span.Span
}

// Subtask is one `subtask` invocation recognized inside a decl body.
// Unlike depends/sources/produces (ordinary simple commands whose
// arguments mvdan.cc/sh/v3 parses natively), subtask takes a closure
// literal as its last argument, which is not valid bare-word POSIX
// syntax -- so it is recognized structurally here, the same way
// def-task's bodies are (SPEC_FULL.md §4.2).
type Subtask struct {
	Name       string
	NameSpan   span.Span
	Span       span.Span
	Concurrent bool
	Closure    *Block
}

// BodyStmt is one statement inside a decl or run body: either a
// structurally-recognized Subtask, or a Raw statement handed to the
// shell host verbatim.
type BodyStmt struct {
	Subtask *Subtask
	Raw     *RawStmt
}
