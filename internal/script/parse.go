package script

import (
	"strings"

	"github.com/quake-build/quake/internal/errs"
	"github.com/quake-build/quake/internal/script/ast"
	"github.com/quake-build/quake/internal/span"
)

// Parse recognizes def-task declarations in src and splits the rest of
// the script into top-level statements handed to the shell host
// verbatim. This is the "AST surgery" module spec.md §4.2.2/§9 calls
// for, isolated here because mvdan.cc/sh/v3's POSIX grammar has no
// notion of a brace-delimited block passed as a bare command argument
// (SPEC_FULL.md §4.2 — the host limitation this file works around).
func Parse(filename string, src []byte) (*ast.Program, error) {
	p := &parser{filename: filename, src: src}
	prog := &ast.Program{}

	var batch errs.Batch
	for {
		p.skipSpaceCommentsAndSeparators()
		if p.eof() {
			break
		}
		start := p.pos
		word, ok := p.peekWord()
		if ok && word == "def-task" {
			task, err := p.parseDefTask()
			if err != nil {
				batch.Add(err)
				p.skipToStatementEnd()
				continue
			}
			prog.Tasks = append(prog.Tasks, task)
			continue
		}
		stmtSrc := p.scanStatement()
		prog.Preamble = append(prog.Preamble, ast.RawStmt{
			Source: stmtSrc,
			Span:   p.spanFrom(start),
		})
	}

	if err := batch.Err(); err != nil {
		return nil, err
	}
	return prog, nil
}

type parser struct {
	filename string
	src      []byte
	pos      int
	line     int
	col      int
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) advance() byte {
	c := p.src[p.pos]
	p.pos++
	if c == '\n' {
		p.line++
		p.col = 0
	} else {
		p.col++
	}
	return c
}

func (p *parser) here() span.Span {
	return span.Span{File: p.filename, StartLine: p.line + 1, StartCol: p.col + 1, EndLine: p.line + 1, EndCol: p.col + 1}
}

func (p *parser) spanFrom(startPos int) span.Span {
	saved := p.pos
	p.pos = startPos
	// recompute line/col is unnecessary for our purposes; a single-point span suffices.
	p.pos = saved
	return span.Span{File: p.filename, StartLine: p.line + 1, StartCol: 1, EndLine: p.line + 1, EndCol: p.col + 1}
}

func (p *parser) skipSpaceCommentsAndSeparators() {
	for !p.eof() {
		c := p.peek()
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == ';':
			p.advance()
		case c == '#':
			for !p.eof() && p.peek() != '\n' {
				p.advance()
			}
		default:
			return
		}
	}
}

// peekWord returns the next bare word without consuming it, if the
// cursor is positioned at the start of one.
func (p *parser) peekWord() (string, bool) {
	start := p.pos
	var sb strings.Builder
	for i := start; i < len(p.src); i++ {
		c := p.src[i]
		if isWordBoundary(c) {
			break
		}
		sb.WriteByte(c)
	}
	w := sb.String()
	return w, w != ""
}

func isWordBoundary(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', ';', '(', ')', '{', '}', '"', '\'':
		return true
	}
	return false
}

func (p *parser) scanWord() string {
	var sb strings.Builder
	for !p.eof() && !isWordBoundary(p.peek()) {
		sb.WriteByte(p.advance())
	}
	return sb.String()
}

func (p *parser) skipInlineSpace() {
	for !p.eof() && (p.peek() == ' ' || p.peek() == '\t') {
		p.advance()
	}
}

// scanQuoted consumes a '"'- or '\''-delimited string (the opening quote
// must be the current character) and returns its unescaped contents.
func (p *parser) scanQuoted() (string, error) {
	quote := p.advance()
	start := p.pos
	for !p.eof() {
		c := p.peek()
		if c == '\\' && quote == '"' {
			p.advance()
			if !p.eof() {
				p.advance()
			}
			continue
		}
		if c == quote {
			val := string(p.src[start:p.pos])
			p.advance()
			return unescape(val, quote), nil
		}
		p.advance()
	}
	return "", errs.At(errs.KindParseFailed, p.here(), "unterminated string literal")
}

func unescape(s string, quote byte) string {
	if quote == '\'' {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

// scanBalanced consumes a region delimited by open/close (the cursor
// must be at `open`), respecting nesting and quoted strings, and returns
// its interior text (not including the delimiters).
func (p *parser) scanBalanced(open, close byte) (string, error) {
	if p.peek() != open {
		return "", errs.At(errs.KindParseFailed, p.here(), "expected %q", open)
	}
	p.advance()
	start := p.pos
	depth := 1
	for !p.eof() {
		c := p.peek()
		switch {
		case c == '"' || c == '\'':
			if _, err := p.scanQuoted(); err != nil {
				return "", err
			}
			continue
		case c == open:
			depth++
		case c == close:
			depth--
			if depth == 0 {
				text := string(p.src[start:p.pos])
				p.advance()
				return text, nil
			}
		}
		p.advance()
	}
	return "", errs.At(errs.KindParseFailed, p.here(), "unterminated %q", open)
}

// scanStatement consumes up to (not including) the next unnested
// statement separator (newline or ';') or EOF, returning its text. Brace
// nesting and quotes are respected so a multi-line block is kept intact.
func (p *parser) scanStatement() string {
	start := p.pos
	depth := 0
	for !p.eof() {
		c := p.peek()
		switch {
		case c == '"' || c == '\'':
			_, _ = p.scanQuoted()
			continue
		case c == '{' || c == '(':
			depth++
		case c == '}' || c == ')':
			depth--
		case depth == 0 && (c == '\n' || c == ';'):
			return strings.TrimSpace(string(p.src[start:p.pos]))
		}
		p.advance()
	}
	return strings.TrimSpace(string(p.src[start:p.pos]))
}

func (p *parser) skipToStatementEnd() {
	_ = p.scanStatement()
}

// parseDefTask parses `def-task <name> [--concurrent] [--declarative|--pure] (sig) {body}[{body}]`.
// The leading "def-task" word must already be at the cursor.
func (p *parser) parseDefTask() (*ast.DefTask, error) {
	startSpan := p.here()
	_ = p.scanWord() // "def-task"
	p.skipInlineSpace()

	if p.peek() != '"' && p.peek() != '\'' {
		return nil, errs.At(errs.KindParseFailed, p.here(), "def-task requires a compile-time string name")
	}
	nameSpan := p.here()
	name, err := p.scanQuoted()
	if err != nil {
		return nil, err
	}
	task := &ast.DefTask{Name: name, NameSpan: nameSpan, Span: startSpan}

	for {
		p.skipInlineSpace()
		word, ok := p.peekWord()
		if !ok || !strings.HasPrefix(word, "--") {
			break
		}
		p.scanWord()
		switch word {
		case "--concurrent":
			task.Concurrent = true
		case "--declarative", "--pure":
			task.Declarative = true
		default:
			return nil, errs.At(errs.KindParseFailed, p.here(), "unknown def-task flag %q", word)
		}
	}

	p.skipInlineSpace()
	if p.peek() == '(' {
		sigSpan := p.here()
		sigText, err := p.scanBalanced('(', ')')
		if err != nil {
			return nil, err
		}
		sig, err := parseSignature(p.filename, sigText, sigSpan)
		if err != nil {
			return nil, err
		}
		task.Signature = sig
	}

	var bodies []*ast.Block
	for len(bodies) < 2 {
		p.skipInlineSpace()
		if p.peek() != '{' {
			break
		}
		blockSpan := p.here()
		text, err := p.scanBalanced('{', '}')
		if err != nil {
			return nil, err
		}
		bodies = append(bodies, &ast.Block{Source: text, Span: blockSpan})
	}

	switch len(bodies) {
	case 0:
		return nil, errs.At(errs.KindTaskMissingBody, task.Span, "task %q has neither a decl nor a run body", name)
	case 1:
		if task.Declarative {
			task.DeclBody = bodies[0]
		} else {
			task.RunBody = bodies[0]
		}
	case 2:
		if task.Declarative {
			return nil, errs.At(errs.KindDeclarativeExtraBody, task.Span, "task %q is --declarative but has two bodies", name)
		}
		task.DeclBody = bodies[0]
		task.RunBody = bodies[1]
	}

	return task, nil
}

// ScanBody splits a decl or run body's source into statements, lifting
// out `subtask` invocations structurally (they carry a closure literal,
// which is not valid bare-word shell syntax) while leaving every other
// statement -- including depends/sources/produces, whose arguments are
// ordinary words and lists -- as raw source for the shell host to parse
// and execute on its own.
func ScanBody(filename, src string) ([]ast.BodyStmt, error) {
	p := &parser{filename: filename, src: []byte(src)}
	var stmts []ast.BodyStmt
	var batch errs.Batch

	for {
		p.skipSpaceCommentsAndSeparators()
		if p.eof() {
			break
		}
		start := p.pos
		word, ok := p.peekWord()
		if ok && word == "subtask" {
			st, err := p.parseSubtask()
			if err != nil {
				batch.Add(err)
				p.skipToStatementEnd()
				continue
			}
			stmts = append(stmts, ast.BodyStmt{Subtask: st})
			continue
		}
		stmtSrc := p.scanStatement()
		stmts = append(stmts, ast.BodyStmt{Raw: &ast.RawStmt{Source: stmtSrc, Span: p.spanFrom(start)}})
	}

	if err := batch.Err(); err != nil {
		return nil, err
	}
	return stmts, nil
}

// parseSubtask parses `subtask <name> [--concurrent] {[|params|] body}`.
// The leading "subtask" word must already be at the cursor.
func (p *parser) parseSubtask() (*ast.Subtask, error) {
	startSpan := p.here()
	_ = p.scanWord() // "subtask"
	p.skipInlineSpace()

	if p.peek() != '"' && p.peek() != '\'' {
		return nil, errs.At(errs.KindParseFailed, p.here(), "subtask requires a compile-time string name")
	}
	nameSpan := p.here()
	name, err := p.scanQuoted()
	if err != nil {
		return nil, err
	}
	st := &ast.Subtask{Name: name, NameSpan: nameSpan, Span: startSpan}

	for {
		p.skipInlineSpace()
		word, ok := p.peekWord()
		if !ok || !strings.HasPrefix(word, "--") {
			break
		}
		p.scanWord()
		if word != "--concurrent" {
			return nil, errs.At(errs.KindParseFailed, p.here(), "unknown subtask flag %q", word)
		}
		st.Concurrent = true
	}

	p.skipInlineSpace()
	blockSpan := p.here()
	text, err := p.scanBalanced('{', '}')
	if err != nil {
		return nil, err
	}
	st.Closure = parseClosureBody(p.filename, text, blockSpan)
	return st, nil
}

// parseClosureBody splits a `{|params| body}` block's leading
// pipe-delimited parameter list (Nushell-style closure syntax, per
// spec.md §4.2.1's `{|x| …}`) from its body source.
func parseClosureBody(filename, text string, sp span.Span) *ast.Block {
	trimmed := strings.TrimLeft(text, " \t\n")
	if !strings.HasPrefix(trimmed, "|") {
		return &ast.Block{Source: text, Span: sp}
	}
	rest := trimmed[1:]
	end := strings.IndexByte(rest, '|')
	if end < 0 {
		return &ast.Block{Source: text, Span: sp}
	}
	paramsText := rest[:end]
	body := rest[end+1:]

	var params []ast.Param
	for _, part := range splitTopLevel(paramsText, ',') {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, typ, found := strings.Cut(part, ":")
		name = strings.TrimSpace(name)
		if found {
			typ = strings.TrimSpace(typ)
		}
		params = append(params, ast.Param{Name: name, Type: typ, Span: sp})
	}
	return &ast.Block{Source: body, Span: sp, Params: params}
}

func parseSignature(filename, text string, sp span.Span) (ast.Signature, error) {
	sig := ast.Signature{Span: sp}
	text = strings.TrimSpace(text)
	if text == "" {
		return sig, nil
	}
	for _, part := range splitTopLevel(text, ',') {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, typ, found := strings.Cut(part, ":")
		name = strings.TrimSpace(name)
		typ = strings.TrimSpace(typ)
		if !found {
			typ = ""
		}
		if name == "" {
			return sig, errs.At(errs.KindParseFailed, sp, "empty parameter name in signature %q", text)
		}
		sig.Params = append(sig.Params, ast.Param{Name: name, Type: typ, Span: sp})
	}
	return sig, nil
}

// splitTopLevel splits s on sep, ignoring occurrences nested inside
// brackets/braces/parens or quotes.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	start := 0
	inQuote := byte(0)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case inQuote != 0:
			if c == inQuote {
				inQuote = 0
			}
		case c == '"' || c == '\'':
			inQuote = c
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			depth--
		case c == sep && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}
