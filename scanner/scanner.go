// Package scanner turns Bolt source text into a token stream. It tracks
// line and column positions, string literal escapes, and bracket depth so
// that newlines inside (), [] and {} do not terminate statements.
package scanner

import (
	"fmt"
	"strings"
)

// Kind classifies a token.
type Kind byte

const (
	EOF Kind = iota
	Newline
	Ident
	Keyword
	Int
	Float
	String
	Op
)

func (k Kind) String() string {
	switch k {
	case EOF:
		return "end of file"
	case Newline:
		return "newline"
	case Ident:
		return "identifier"
	case Keyword:
		return "keyword"
	case Int:
		return "integer"
	case Float:
		return "float"
	case String:
		return "string"
	case Op:
		return "operator"
	}
	return "unknown"
}

var keywords = map[string]bool{
	"and": true, "as": true, "break": true, "continue": true, "def": true,
	"else": true, "elsif": true, "end": true, "false": true, "for": true,
	"from": true, "if": true, "import": true, "in": true, "nil": true,
	"not": true, "or": true, "return": true, "true": true,
	"while": true,
}

// IsKeyword reports whether word is reserved.
func IsKeyword(word string) bool { return keywords[word] }

// Token is a single lexical element. For String tokens Text holds the
// unescaped value.
type Token struct {
	Kind Kind
	Text string
	Line int
	Col  int
}

func (t Token) String() string {
	switch t.Kind {
	case EOF, Newline:
		return t.Kind.String()
	case String:
		return fmt.Sprintf("string %q", t.Text)
	}
	return fmt.Sprintf("%s %q", t.Kind, t.Text)
}

// Is reports whether the token is the operator or keyword text.
func (t Token) Is(text string) bool {
	return (t.Kind == Op || t.Kind == Keyword) && t.Text == text
}

// Error is a lexical error with a 1-based position.
type Error struct {
	Line int
	Col  int
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Col, e.Msg)
}

// twoCharOps lists operators longer than one byte.
var twoCharOps = []string{"==", "!=", "<=", ">="}

const oneCharOps = "+-*/%<>=()[]{},.:"

// CodeScanner iterates over source text producing tokens.
type CodeScanner struct {
	src   string
	pos   int
	line  int
	col   int
	depth int
}

// New creates a CodeScanner for the given source text.
func New(src string) *CodeScanner {
	return &CodeScanner{src: src, line: 1, col: 1}
}

// Line returns the current 1-based line number.
func (s *CodeScanner) Line() int { return s.line }

// Pos returns the current byte offset.
func (s *CodeScanner) Pos() int { return s.pos }

// Src returns the full source text being scanned.
func (s *CodeScanner) Src() string { return s.src }

// Peek returns the next byte without advancing, or (0, false) at end.
func (s *CodeScanner) Peek() (byte, bool) {
	if s.pos >= len(s.src) {
		return 0, false
	}
	return s.src[s.pos], true
}

func (s *CodeScanner) peekAt(off int) byte {
	if s.pos+off >= len(s.src) {
		return 0
	}
	return s.src[s.pos+off]
}

func (s *CodeScanner) advance() byte {
	ch := s.src[s.pos]
	s.pos++
	if ch == '\n' {
		s.line++
		s.col = 1
	} else {
		s.col++
	}
	return ch
}

// LookingAt checks if src[pos:] starts with the given prefix.
func (s *CodeScanner) LookingAt(prefix string) bool {
	return strings.HasPrefix(s.src[s.pos:], prefix)
}

// Next returns the next token. Comments and blank space are skipped;
// newlines are reported only outside brackets.
func (s *CodeScanner) Next() (Token, error) {
	for {
		ch, ok := s.Peek()
		if !ok {
			return Token{Kind: EOF, Line: s.line, Col: s.col}, nil
		}
		switch {
		case ch == ' ' || ch == '\t' || ch == '\r':
			s.advance()
			continue
		case ch == '\\' && s.peekAt(1) == '\n':
			s.advance()
			s.advance()
			continue
		case ch == '#':
			for ch, ok := s.Peek(); ok && ch != '\n'; ch, ok = s.Peek() {
				s.advance()
			}
			continue
		case ch == '\n':
			line, col := s.line, s.col
			s.advance()
			if s.depth > 0 {
				continue
			}
			return Token{Kind: Newline, Text: "\n", Line: line, Col: col}, nil
		}
		break
	}

	line, col := s.line, s.col
	ch, _ := s.Peek()
	switch {
	case isIdentStart(ch):
		start := s.pos
		for c, ok := s.Peek(); ok && isIdentPart(c); c, ok = s.Peek() {
			s.advance()
		}
		word := s.src[start:s.pos]
		kind := Ident
		if keywords[word] {
			kind = Keyword
		}
		return Token{Kind: kind, Text: word, Line: line, Col: col}, nil
	case isDigit(ch):
		return s.number(line, col)
	case ch == '"' || ch == '\'':
		return s.str(line, col)
	}

	for _, op := range twoCharOps {
		if s.LookingAt(op) {
			s.advance()
			s.advance()
			return Token{Kind: Op, Text: op, Line: line, Col: col}, nil
		}
	}
	if strings.IndexByte(oneCharOps, ch) >= 0 {
		s.advance()
		if IsOpenBracket(ch) {
			s.depth++
		} else if IsCloseBracket(ch) && s.depth > 0 {
			s.depth--
		}
		return Token{Kind: Op, Text: string(ch), Line: line, Col: col}, nil
	}
	return Token{}, &Error{Line: line, Col: col, Msg: fmt.Sprintf("unexpected character %q", ch)}
}

func (s *CodeScanner) number(line, col int) (Token, error) {
	start := s.pos
	kind := Int
	for c, ok := s.Peek(); ok && (isDigit(c) || c == '_'); c, ok = s.Peek() {
		s.advance()
	}
	if c, _ := s.Peek(); c == '.' && isDigit(s.peekAt(1)) {
		kind = Float
		s.advance()
		for c, ok := s.Peek(); ok && isDigit(c); c, ok = s.Peek() {
			s.advance()
		}
	}
	if c, _ := s.Peek(); c == 'e' || c == 'E' {
		next := s.peekAt(1)
		if isDigit(next) || ((next == '+' || next == '-') && isDigit(s.peekAt(2))) {
			kind = Float
			s.advance()
			s.advance()
			for c, ok := s.Peek(); ok && isDigit(c); c, ok = s.Peek() {
				s.advance()
			}
		}
	}
	if c, ok := s.Peek(); ok && isIdentStart(c) {
		return Token{}, &Error{Line: s.line, Col: s.col, Msg: fmt.Sprintf("invalid character %q in number", c)}
	}
	text := strings.ReplaceAll(s.src[start:s.pos], "_", "")
	return Token{Kind: kind, Text: text, Line: line, Col: col}, nil
}

func (s *CodeScanner) str(line, col int) (Token, error) {
	quote := s.advance()
	var sb strings.Builder
	for {
		ch, ok := s.Peek()
		if !ok || ch == '\n' {
			return Token{}, &Error{Line: line, Col: col, Msg: "unterminated string literal"}
		}
		s.advance()
		if ch == quote {
			return Token{Kind: String, Text: sb.String(), Line: line, Col: col}, nil
		}
		if ch != '\\' {
			sb.WriteByte(ch)
			continue
		}
		esc, ok := s.Peek()
		if !ok {
			return Token{}, &Error{Line: line, Col: col, Msg: "unterminated string literal"}
		}
		s.advance()
		switch esc {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		case '0':
			sb.WriteByte(0)
		case '\\', '"', '\'':
			sb.WriteByte(esc)
		default:
			return Token{}, &Error{Line: s.line, Col: s.col - 2, Msg: fmt.Sprintf("unknown escape sequence \\%c", esc)}
		}
	}
}

// All scans the whole input. The returned slice always ends with an EOF
// token when err is nil.
func All(src string) ([]Token, error) {
	sc := New(src)
	var toks []Token
	for {
		tok, err := sc.Next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.Kind == EOF {
			return toks, nil
		}
	}
}

// IsOpenBracket reports whether ch is an opening bracket/paren/brace.
func IsOpenBracket(ch byte) bool {
	return ch == '(' || ch == '[' || ch == '{'
}

// IsCloseBracket reports whether ch is a closing bracket/paren/brace.
func IsCloseBracket(ch byte) bool {
	return ch == ')' || ch == ']' || ch == '}'
}

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentPart(ch byte) bool { return isIdentStart(ch) || isDigit(ch) }

func isDigit(ch byte) bool { return ch >= '0' && ch <= '9' }
