package ast

import "fmt"

// WireNode is the serialized form of an AST node. Every node type maps onto
// the same flat shape so trees can be stored by any structural encoder.
type WireNode struct {
	Kind   string        `msgpack:"k"`
	Line   int           `msgpack:"l,omitempty"`
	Col    int           `msgpack:"c,omitempty"`
	Text   string        `msgpack:"t,omitempty"`
	Bool   bool          `msgpack:"b,omitempty"`
	Names  []string      `msgpack:"n,omitempty"`
	Kids   []*WireNode   `msgpack:"x,omitempty"`
	Blocks [][]*WireNode `msgpack:"s,omitempty"`
}

// ToWire converts a module into its wire form.
func ToWire(m *Module) *WireNode {
	return &WireNode{Kind: "module", Text: m.SourceFile, Blocks: [][]*WireNode{stmtsToWire(m.Statements)}}
}

// FromWire rebuilds a module from its wire form.
func FromWire(w *WireNode) (*Module, error) {
	if w == nil || w.Kind != "module" {
		return nil, fmt.Errorf("wire: expected module node")
	}
	m := &Module{SourceFile: w.Text}
	if len(w.Blocks) > 0 {
		stmts, err := stmtsFromWire(w.Blocks[0])
		if err != nil {
			return nil, err
		}
		m.Statements = stmts
	}
	return m, nil
}

func wire(kind string, p Pos) *WireNode {
	return &WireNode{Kind: kind, Line: p.Line, Col: p.Col}
}

func stmtsToWire(stmts []Statement) []*WireNode {
	var out []*WireNode
	for _, s := range stmts {
		out = append(out, stmtToWire(s))
	}
	return out
}

func stmtToWire(s Statement) *WireNode {
	switch st := s.(type) {
	case *ExprStmt:
		w := wire("expr", st.Pos)
		w.Kids = []*WireNode{exprToWire(st.Expression)}
		return w
	case *AssignStmt:
		w := wire("assign", st.Pos)
		w.Text = st.Target
		w.Kids = []*WireNode{exprToWire(st.Value)}
		return w
	case *IndexAssignStmt:
		w := wire("setindex", st.Pos)
		w.Kids = []*WireNode{exprToWire(st.Object), exprToWire(st.Index), exprToWire(st.Value)}
		return w
	case *IfStmt:
		w := wire("if", st.Pos)
		w.Kids = []*WireNode{exprToWire(st.Condition)}
		w.Blocks = [][]*WireNode{stmtsToWire(st.Body)}
		for _, c := range st.ElsifClauses {
			w.Kids = append(w.Kids, exprToWire(c.Condition))
			w.Blocks = append(w.Blocks, stmtsToWire(c.Body))
		}
		if st.ElseBody != nil {
			w.Bool = true
			w.Blocks = append(w.Blocks, stmtsToWire(st.ElseBody))
		}
		return w
	case *WhileStmt:
		w := wire("while", st.Pos)
		w.Kids = []*WireNode{exprToWire(st.Condition)}
		w.Blocks = [][]*WireNode{stmtsToWire(st.Body)}
		return w
	case *ForStmt:
		w := wire("for", st.Pos)
		w.Text = st.Var
		w.Kids = []*WireNode{exprToWire(st.Iterable)}
		w.Blocks = [][]*WireNode{stmtsToWire(st.Body)}
		return w
	case *FuncDef:
		w := wire("def", st.Pos)
		w.Text = st.Name
		w.Names = st.Params
		w.Blocks = [][]*WireNode{stmtsToWire(st.Body)}
		return w
	case *ReturnStmt:
		w := wire("return", st.Pos)
		if st.Value != nil {
			w.Kids = []*WireNode{exprToWire(st.Value)}
		}
		return w
	case *BreakStmt:
		return wire("break", st.Pos)
	case *ContinueStmt:
		return wire("continue", st.Pos)
	case *ImportStmt:
		w := wire("import", st.Pos)
		w.Text = st.Location
		if st.Alias != "" {
			w.Names = []string{st.Alias}
		}
		return w
	case *FromImportStmt:
		w := wire("from", st.Pos)
		w.Text = st.Location
		w.Names = st.Names
		return w
	case *OutputStmt:
		w := wire("output", st.Pos)
		w.Text = st.Name
		return w
	}
	panic(fmt.Sprintf("wire: unhandled statement %T", s))
}

func exprsToWire(exprs []Expr) []*WireNode {
	var out []*WireNode
	for _, e := range exprs {
		out = append(out, exprToWire(e))
	}
	return out
}

func exprToWire(e Expr) *WireNode {
	switch ex := e.(type) {
	case *IntLiteral:
		w := wire("int", ex.Pos)
		w.Text = ex.Value
		return w
	case *FloatLiteral:
		w := wire("float", ex.Pos)
		w.Text = ex.Value
		return w
	case *StringLiteral:
		w := wire("str", ex.Pos)
		w.Text = ex.Value
		return w
	case *BoolLiteral:
		w := wire("bool", ex.Pos)
		w.Bool = ex.Value
		return w
	case *NilLiteral:
		return wire("nil", ex.Pos)
	case *IdentExpr:
		w := wire("ident", ex.Pos)
		w.Text = ex.Name
		return w
	case *ListLiteral:
		w := wire("list", ex.Pos)
		w.Kids = exprsToWire(ex.Elements)
		return w
	case *MapLiteral:
		w := wire("map", ex.Pos)
		for i := range ex.Keys {
			w.Kids = append(w.Kids, exprToWire(ex.Keys[i]), exprToWire(ex.Values[i]))
		}
		return w
	case *UnaryExpr:
		w := wire("unary", ex.Pos)
		w.Text = ex.Op
		w.Kids = []*WireNode{exprToWire(ex.Operand)}
		return w
	case *BinaryExpr:
		w := wire("binary", ex.Pos)
		w.Text = ex.Op
		w.Kids = []*WireNode{exprToWire(ex.Left), exprToWire(ex.Right)}
		return w
	case *CallExpr:
		w := wire("call", ex.Pos)
		w.Kids = append([]*WireNode{exprToWire(ex.Func)}, exprsToWire(ex.Args)...)
		return w
	case *IndexExpr:
		w := wire("index", ex.Pos)
		w.Kids = []*WireNode{exprToWire(ex.Object), exprToWire(ex.Index)}
		return w
	case *AttrExpr:
		w := wire("attr", ex.Pos)
		w.Text = ex.Name
		w.Kids = []*WireNode{exprToWire(ex.Object)}
		return w
	}
	panic(fmt.Sprintf("wire: unhandled expression %T", e))
}

func (w *WireNode) pos() Pos { return Pos{Line: w.Line, Col: w.Col} }

func (w *WireNode) kids(n int) error {
	if len(w.Kids) < n {
		return fmt.Errorf("wire: %s node at %d:%d has %d children, want %d", w.Kind, w.Line, w.Col, len(w.Kids), n)
	}
	return nil
}

func (w *WireNode) block(i int) ([]Statement, error) {
	if i >= len(w.Blocks) {
		return nil, fmt.Errorf("wire: %s node at %d:%d is missing block %d", w.Kind, w.Line, w.Col, i)
	}
	return stmtsFromWire(w.Blocks[i])
}

func stmtsFromWire(ws []*WireNode) ([]Statement, error) {
	var out []Statement
	for _, w := range ws {
		s, err := stmtFromWire(w)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func exprsFromWire(ws []*WireNode) ([]Expr, error) {
	var out []Expr
	for _, w := range ws {
		e, err := exprFromWire(w)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func stmtFromWire(w *WireNode) (Statement, error) {
	if w == nil {
		return nil, fmt.Errorf("wire: nil statement")
	}
	pos := w.pos()
	switch w.Kind {
	case "expr":
		if err := w.kids(1); err != nil {
			return nil, err
		}
		x, err := exprFromWire(w.Kids[0])
		if err != nil {
			return nil, err
		}
		return &ExprStmt{Pos: pos, Expression: x}, nil
	case "assign":
		if err := w.kids(1); err != nil {
			return nil, err
		}
		v, err := exprFromWire(w.Kids[0])
		if err != nil {
			return nil, err
		}
		return &AssignStmt{Pos: pos, Target: w.Text, Value: v}, nil
	case "setindex":
		xs, err := fixedExprs(w, 3)
		if err != nil {
			return nil, err
		}
		return &IndexAssignStmt{Pos: pos, Object: xs[0], Index: xs[1], Value: xs[2]}, nil
	case "if":
		return ifFromWire(w)
	case "while":
		xs, err := fixedExprs(w, 1)
		if err != nil {
			return nil, err
		}
		body, err := w.block(0)
		if err != nil {
			return nil, err
		}
		return &WhileStmt{Pos: pos, Condition: xs[0], Body: body}, nil
	case "for":
		xs, err := fixedExprs(w, 1)
		if err != nil {
			return nil, err
		}
		body, err := w.block(0)
		if err != nil {
			return nil, err
		}
		return &ForStmt{Pos: pos, Var: w.Text, Iterable: xs[0], Body: body}, nil
	case "def":
		body, err := w.block(0)
		if err != nil {
			return nil, err
		}
		return &FuncDef{Pos: pos, Name: w.Text, Params: w.Names, Body: body}, nil
	case "return":
		st := &ReturnStmt{Pos: pos}
		if len(w.Kids) > 0 {
			v, err := exprFromWire(w.Kids[0])
			if err != nil {
				return nil, err
			}
			st.Value = v
		}
		return st, nil
	case "break":
		return &BreakStmt{Pos: pos}, nil
	case "continue":
		return &ContinueStmt{Pos: pos}, nil
	case "import":
		st := &ImportStmt{Pos: pos, Location: w.Text}
		if len(w.Names) > 0 {
			st.Alias = w.Names[0]
		}
		return st, nil
	case "from":
		return &FromImportStmt{Pos: pos, Location: w.Text, Names: w.Names}, nil
	case "output":
		return &OutputStmt{Pos: pos, Name: w.Text}, nil
	}
	return nil, fmt.Errorf("wire: unknown statement kind %q", w.Kind)
}

func ifFromWire(w *WireNode) (Statement, error) {
	conds, err := exprsFromWire(w.Kids)
	if err != nil {
		return nil, err
	}
	if len(conds) == 0 {
		return nil, fmt.Errorf("wire: if node at %d:%d has no condition", w.Line, w.Col)
	}
	want := len(conds)
	if w.Bool {
		want++
	}
	if len(w.Blocks) != want {
		return nil, fmt.Errorf("wire: if node at %d:%d has %d blocks, want %d", w.Line, w.Col, len(w.Blocks), want)
	}
	body, err := w.block(0)
	if err != nil {
		return nil, err
	}
	st := &IfStmt{Pos: w.pos(), Condition: conds[0], Body: body}
	for i := 1; i < len(conds); i++ {
		b, err := w.block(i)
		if err != nil {
			return nil, err
		}
		st.ElsifClauses = append(st.ElsifClauses, ElsifClause{Condition: conds[i], Body: b})
	}
	if w.Bool {
		b, err := w.block(len(conds))
		if err != nil {
			return nil, err
		}
		if b == nil {
			b = []Statement{}
		}
		st.ElseBody = b
	}
	return st, nil
}

func fixedExprs(w *WireNode, n int) ([]Expr, error) {
	if err := w.kids(n); err != nil {
		return nil, err
	}
	return exprsFromWire(w.Kids[:n])
}

func exprFromWire(w *WireNode) (Expr, error) {
	if w == nil {
		return nil, fmt.Errorf("wire: nil expression")
	}
	pos := w.pos()
	switch w.Kind {
	case "int":
		return &IntLiteral{Pos: pos, Value: w.Text}, nil
	case "float":
		return &FloatLiteral{Pos: pos, Value: w.Text}, nil
	case "str":
		return &StringLiteral{Pos: pos, Value: w.Text}, nil
	case "bool":
		return &BoolLiteral{Pos: pos, Value: w.Bool}, nil
	case "nil":
		return &NilLiteral{Pos: pos}, nil
	case "ident":
		return &IdentExpr{Pos: pos, Name: w.Text}, nil
	case "list":
		elems, err := exprsFromWire(w.Kids)
		if err != nil {
			return nil, err
		}
		return &ListLiteral{Pos: pos, Elements: elems}, nil
	case "map":
		if len(w.Kids)%2 != 0 {
			return nil, fmt.Errorf("wire: map node at %d:%d has odd child count", w.Line, w.Col)
		}
		m := &MapLiteral{Pos: pos}
		for i := 0; i < len(w.Kids); i += 2 {
			k, err := exprFromWire(w.Kids[i])
			if err != nil {
				return nil, err
			}
			v, err := exprFromWire(w.Kids[i+1])
			if err != nil {
				return nil, err
			}
			m.Keys = append(m.Keys, k)
			m.Values = append(m.Values, v)
		}
		return m, nil
	case "unary":
		xs, err := fixedExprs(w, 1)
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Pos: pos, Op: w.Text, Operand: xs[0]}, nil
	case "binary":
		xs, err := fixedExprs(w, 2)
		if err != nil {
			return nil, err
		}
		return &BinaryExpr{Pos: pos, Op: w.Text, Left: xs[0], Right: xs[1]}, nil
	case "call":
		if err := w.kids(1); err != nil {
			return nil, err
		}
		fn, err := exprFromWire(w.Kids[0])
		if err != nil {
			return nil, err
		}
		args, err := exprsFromWire(w.Kids[1:])
		if err != nil {
			return nil, err
		}
		return &CallExpr{Pos: pos, Func: fn, Args: args}, nil
	case "index":
		xs, err := fixedExprs(w, 2)
		if err != nil {
			return nil, err
		}
		return &IndexExpr{Pos: pos, Object: xs[0], Index: xs[1]}, nil
	case "attr":
		xs, err := fixedExprs(w, 1)
		if err != nil {
			return nil, err
		}
		return &AttrExpr{Pos: pos, Object: xs[0], Name: w.Text}, nil
	}
	return nil, fmt.Errorf("wire: unknown expression kind %q", w.Kind)
}
