package ast

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rubiojr/bolt/scanner"
)

// ParseError is a syntax error with its source position.
type ParseError struct {
	File string
	Line int
	Col  int
	Msg  string
}

func (e *ParseError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("%d:%d: %s", e.Line, e.Col, e.Msg)
	}
	return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Col, e.Msg)
}

// ParseFile reads a Bolt source file and parses it into a Module AST.
func ParseFile(filename string) (*Module, error) {
	src, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filename, err)
	}
	return ParseSource(string(src), filename)
}

// ParseSource parses raw Bolt source code into a Module AST.
// The name parameter is used for error messages.
func ParseSource(source, name string) (*Module, error) {
	toks, err := scanner.All(source)
	if err != nil {
		var se *scanner.Error
		if errors.As(err, &se) {
			return nil, &ParseError{File: name, Line: se.Line, Col: se.Col, Msg: se.Msg}
		}
		return nil, err
	}
	p := &parser{toks: toks, file: name}
	stmts, err := p.block(true)
	if err != nil {
		return nil, err
	}
	return &Module{Statements: stmts, SourceFile: name}, nil
}

type parser struct {
	toks []scanner.Token
	pos  int
	file string
}

func (p *parser) peek() scanner.Token { return p.toks[p.pos] }

func (p *parser) next() scanner.Token {
	tok := p.toks[p.pos]
	if tok.Kind != scanner.EOF {
		p.pos++
	}
	return tok
}

func (p *parser) errorf(tok scanner.Token, format string, args ...any) error {
	return &ParseError{File: p.file, Line: tok.Line, Col: tok.Col, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) expect(text string) (scanner.Token, error) {
	tok := p.next()
	if !tok.Is(text) {
		return tok, p.errorf(tok, "expected %q, found %s", text, tok)
	}
	return tok, nil
}

func (p *parser) expectIdent() (scanner.Token, error) {
	tok := p.next()
	if tok.Kind != scanner.Ident {
		return tok, p.errorf(tok, "expected identifier, found %s", tok)
	}
	return tok, nil
}

func (p *parser) expectString() (scanner.Token, error) {
	tok := p.next()
	if tok.Kind != scanner.String {
		return tok, p.errorf(tok, "expected string, found %s", tok)
	}
	return tok, nil
}

// endStmt consumes the newline terminating a statement.
func (p *parser) endStmt() error {
	tok := p.peek()
	switch {
	case tok.Kind == scanner.Newline:
		p.next()
		return nil
	case tok.Kind == scanner.EOF:
		return nil
	}
	return p.errorf(tok, "unexpected %s, expected end of statement", tok)
}

func blockEnd(tok scanner.Token) bool {
	return tok.Is("end") || tok.Is("else") || tok.Is("elsif")
}

// block parses statements until a block terminator. At top level the
// terminator is end of file.
func (p *parser) block(top bool) ([]Statement, error) {
	var stmts []Statement
	for {
		tok := p.peek()
		switch {
		case tok.Kind == scanner.Newline:
			p.next()
			continue
		case tok.Kind == scanner.EOF:
			if !top {
				return nil, p.errorf(tok, "unexpected end of file, expected \"end\"")
			}
			return stmts, nil
		case blockEnd(tok):
			if top {
				return nil, p.errorf(tok, "unexpected %q", tok.Text)
			}
			return stmts, nil
		}
		st, err := p.statement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, st)
	}
}

func (p *parser) statement() (Statement, error) {
	tok := p.peek()
	pos := Pos{Line: tok.Line, Col: tok.Col}
	if tok.Kind == scanner.Keyword {
		switch tok.Text {
		case "import":
			return p.importStmt(pos)
		case "from":
			return p.fromImportStmt(pos)
		case "def":
			return p.funcDef(pos)
		case "if":
			return p.ifStmt(pos)
		case "while":
			p.next()
			cond, body, err := p.condBlock()
			if err != nil {
				return nil, err
			}
			return &WhileStmt{Pos: pos, Condition: cond, Body: body}, nil
		case "for":
			return p.forStmt(pos)
		case "return":
			p.next()
			st := &ReturnStmt{Pos: pos}
			if nt := p.peek(); nt.Kind != scanner.Newline && nt.Kind != scanner.EOF && !blockEnd(nt) {
				val, err := p.expr()
				if err != nil {
					return nil, err
				}
				st.Value = val
			}
			return st, p.endStmt()
		case "break":
			p.next()
			return &BreakStmt{Pos: pos}, p.endStmt()
		case "continue":
			p.next()
			return &ContinueStmt{Pos: pos}, p.endStmt()
		}
	}

	// output is contextual so that it stays usable as a variable name.
	if tok.Kind == scanner.Ident && tok.Text == "output" && p.toks[p.pos+1].Kind == scanner.Ident {
		p.next()
		name := p.next()
		return &OutputStmt{Pos: pos, Name: name.Text}, p.endStmt()
	}

	lhs, err := p.expr()
	if err != nil {
		return nil, err
	}
	if !p.peek().Is("=") {
		return &ExprStmt{Pos: pos, Expression: lhs}, p.endStmt()
	}
	eq := p.next()
	val, err := p.expr()
	if err != nil {
		return nil, err
	}
	switch target := lhs.(type) {
	case *IdentExpr:
		return &AssignStmt{Pos: pos, Target: target.Name, Value: val}, p.endStmt()
	case *IndexExpr:
		return &IndexAssignStmt{Pos: pos, Object: target.Object, Index: target.Index, Value: val}, p.endStmt()
	case *AttrExpr:
		key := &StringLiteral{Pos: target.Pos, Value: target.Name}
		return &IndexAssignStmt{Pos: pos, Object: target.Object, Index: key, Value: val}, p.endStmt()
	}
	return nil, p.errorf(eq, "cannot assign to this expression")
}

func (p *parser) importStmt(pos Pos) (Statement, error) {
	p.next()
	loc, err := p.expectString()
	if err != nil {
		return nil, err
	}
	st := &ImportStmt{Pos: pos, Location: loc.Text}
	if p.peek().Is("as") {
		p.next()
		alias, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		st.Alias = alias.Text
	} else if name := DefaultImportName(loc.Text); !isIdent(name) {
		return nil, p.errorf(loc, "cannot derive a name from %q, use import ... as", loc.Text)
	}
	return st, p.endStmt()
}

func (p *parser) fromImportStmt(pos Pos) (Statement, error) {
	p.next()
	loc, err := p.expectString()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect("import"); err != nil {
		return nil, err
	}
	st := &FromImportStmt{Pos: pos, Location: loc.Text}
	for {
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		st.Names = append(st.Names, name.Text)
		if !p.peek().Is(",") {
			break
		}
		p.next()
	}
	return st, p.endStmt()
}

func (p *parser) funcDef(pos Pos) (Statement, error) {
	p.next()
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect("("); err != nil {
		return nil, err
	}
	fn := &FuncDef{Pos: pos, Name: name.Text}
	seen := make(map[string]bool)
	for !p.peek().Is(")") {
		param, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if seen[param.Text] {
			return nil, p.errorf(param, "duplicate parameter %q", param.Text)
		}
		seen[param.Text] = true
		fn.Params = append(fn.Params, param.Text)
		if !p.peek().Is(",") {
			break
		}
		p.next()
	}
	if _, err := p.expect(")"); err != nil {
		return nil, err
	}
	if err := p.endStmt(); err != nil {
		return nil, err
	}
	body, err := p.block(false)
	if err != nil {
		return nil, err
	}
	fn.Body = body
	if _, err := p.expect("end"); err != nil {
		return nil, err
	}
	return fn, p.endStmt()
}

// condBlock parses "cond NEWLINE body end".
func (p *parser) condBlock() (Expr, []Statement, error) {
	cond, err := p.expr()
	if err != nil {
		return nil, nil, err
	}
	if err := p.endStmt(); err != nil {
		return nil, nil, err
	}
	body, err := p.block(false)
	if err != nil {
		return nil, nil, err
	}
	if _, err := p.expect("end"); err != nil {
		return nil, nil, err
	}
	return cond, body, p.endStmt()
}

func (p *parser) ifStmt(pos Pos) (Statement, error) {
	p.next()
	cond, err := p.expr()
	if err != nil {
		return nil, err
	}
	if err := p.endStmt(); err != nil {
		return nil, err
	}
	body, err := p.block(false)
	if err != nil {
		return nil, err
	}
	st := &IfStmt{Pos: pos, Condition: cond, Body: body}
	for p.peek().Is("elsif") {
		p.next()
		c, err := p.expr()
		if err != nil {
			return nil, err
		}
		if err := p.endStmt(); err != nil {
			return nil, err
		}
		b, err := p.block(false)
		if err != nil {
			return nil, err
		}
		st.ElsifClauses = append(st.ElsifClauses, ElsifClause{Condition: c, Body: b})
	}
	if p.peek().Is("else") {
		p.next()
		if err := p.endStmt(); err != nil {
			return nil, err
		}
		b, err := p.block(false)
		if err != nil {
			return nil, err
		}
		st.ElseBody = b
	}
	if _, err := p.expect("end"); err != nil {
		return nil, err
	}
	return st, p.endStmt()
}

func (p *parser) forStmt(pos Pos) (Statement, error) {
	p.next()
	v, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect("in"); err != nil {
		return nil, err
	}
	iter, body, err := p.condBlock()
	if err != nil {
		return nil, err
	}
	return &ForStmt{Pos: pos, Var: v.Text, Iterable: iter, Body: body}, nil
}

func (p *parser) expr() (Expr, error) { return p.orExpr() }

func (p *parser) orExpr() (Expr, error) {
	left, err := p.andExpr()
	if err != nil {
		return nil, err
	}
	for p.peek().Is("or") {
		tok := p.next()
		right, err := p.andExpr()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Pos: Pos{tok.Line, tok.Col}, Op: "or", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) andExpr() (Expr, error) {
	left, err := p.notExpr()
	if err != nil {
		return nil, err
	}
	for p.peek().Is("and") {
		tok := p.next()
		right, err := p.notExpr()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Pos: Pos{tok.Line, tok.Col}, Op: "and", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) notExpr() (Expr, error) {
	if tok := p.peek(); tok.Is("not") {
		p.next()
		operand, err := p.notExpr()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Pos: Pos{tok.Line, tok.Col}, Op: "not", Operand: operand}, nil
	}
	return p.comparison()
}

var comparisonOps = []string{"==", "!=", "<", "<=", ">", ">="}

func (p *parser) comparison() (Expr, error) {
	left, err := p.binary(0)
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.Kind != scanner.Op || !contains(comparisonOps, tok.Text) {
			return left, nil
		}
		p.next()
		right, err := p.binary(0)
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Pos: Pos{tok.Line, tok.Col}, Op: tok.Text, Left: left, Right: right}
	}
}

// binaryLevels lists arithmetic operators from lowest to highest precedence.
var binaryLevels = [][]string{{"+", "-"}, {"*", "/", "%"}}

func (p *parser) binary(level int) (Expr, error) {
	if level == len(binaryLevels) {
		return p.unary()
	}
	left, err := p.binary(level + 1)
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.Kind != scanner.Op || !contains(binaryLevels[level], tok.Text) {
			return left, nil
		}
		p.next()
		right, err := p.binary(level + 1)
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Pos: Pos{tok.Line, tok.Col}, Op: tok.Text, Left: left, Right: right}
	}
}

func (p *parser) unary() (Expr, error) {
	if tok := p.peek(); tok.Is("-") {
		p.next()
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Pos: Pos{tok.Line, tok.Col}, Op: "-", Operand: operand}, nil
	}
	return p.postfix()
}

func (p *parser) postfix() (Expr, error) {
	x, err := p.primary()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		switch {
		case tok.Is("("):
			p.next()
			args, err := p.exprList(")")
			if err != nil {
				return nil, err
			}
			x = &CallExpr{Pos: Pos{tok.Line, tok.Col}, Func: x, Args: args}
		case tok.Is("["):
			p.next()
			idx, err := p.expr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect("]"); err != nil {
				return nil, err
			}
			x = &IndexExpr{Pos: Pos{tok.Line, tok.Col}, Object: x, Index: idx}
		case tok.Is("."):
			p.next()
			name, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			x = &AttrExpr{Pos: Pos{tok.Line, tok.Col}, Object: x, Name: name.Text}
		default:
			return x, nil
		}
	}
}

// exprList parses comma separated expressions up to and including closer.
// A trailing comma is accepted.
func (p *parser) exprList(closer string) ([]Expr, error) {
	var out []Expr
	for !p.peek().Is(closer) {
		e, err := p.expr()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
		if !p.peek().Is(",") {
			break
		}
		p.next()
	}
	if _, err := p.expect(closer); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *parser) primary() (Expr, error) {
	tok := p.next()
	pos := Pos{Line: tok.Line, Col: tok.Col}
	switch tok.Kind {
	case scanner.Int:
		return &IntLiteral{Pos: pos, Value: tok.Text}, nil
	case scanner.Float:
		return &FloatLiteral{Pos: pos, Value: tok.Text}, nil
	case scanner.String:
		return &StringLiteral{Pos: pos, Value: tok.Text}, nil
	case scanner.Ident:
		return &IdentExpr{Pos: pos, Name: tok.Text}, nil
	case scanner.Keyword:
		switch tok.Text {
		case "true", "false":
			return &BoolLiteral{Pos: pos, Value: tok.Text == "true"}, nil
		case "nil":
			return &NilLiteral{Pos: pos}, nil
		}
	case scanner.Op:
		switch tok.Text {
		case "(":
			e, err := p.expr()
			if err != nil {
				return nil, err
			}
			_, err = p.expect(")")
			return e, err
		case "[":
			elems, err := p.exprList("]")
			if err != nil {
				return nil, err
			}
			return &ListLiteral{Pos: pos, Elements: elems}, nil
		case "{":
			return p.mapLiteral(pos)
		}
	}
	return nil, p.errorf(tok, "unexpected %s", tok)
}

func (p *parser) mapLiteral(pos Pos) (Expr, error) {
	m := &MapLiteral{Pos: pos}
	for !p.peek().Is("}") {
		k, err := p.expr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(":"); err != nil {
			return nil, err
		}
		v, err := p.expr()
		if err != nil {
			return nil, err
		}
		m.Keys = append(m.Keys, k)
		m.Values = append(m.Values, v)
		if !p.peek().Is(",") {
			break
		}
		p.next()
	}
	if _, err := p.expect("}"); err != nil {
		return nil, err
	}
	return m, nil
}

// DefaultImportName returns the binding name for an import without an
// alias: the last path segment of the location.
func DefaultImportName(location string) string {
	loc := strings.TrimRight(location, "/")
	if i := strings.LastIndexAny(loc, "/:"); i >= 0 {
		loc = loc[i+1:]
	}
	return loc
}

func isIdent(s string) bool {
	if s == "" || scanner.IsKeyword(s) {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
