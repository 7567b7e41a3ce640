package ast

// Node is the interface for all AST nodes.
type Node interface {
	node()
	Position() Pos
}

// Pos is a 1-based source position.
type Pos struct {
	Line int
	Col  int
}

func (p Pos) Position() Pos { return p }

// Statement is the interface for statement nodes.
type Statement interface {
	Node
	stmt()
}

// Expr is the interface for expression nodes.
type Expr interface {
	Node
	expr()
}

// Module is the root node of one compilation unit.
type Module struct {
	Statements []Statement
	SourceFile string // display path of the source file
}

func (m *Module) node()         {}
func (m *Module) Position() Pos { return Pos{Line: 1, Col: 1} }

// ExprStmt is an expression evaluated for its effect.
type ExprStmt struct {
	Pos
	Expression Expr
}

// AssignStmt represents name = value.
type AssignStmt struct {
	Pos
	Target string
	Value  Expr
}

// IndexAssignStmt represents obj[index] = value.
type IndexAssignStmt struct {
	Pos
	Object Expr
	Index  Expr
	Value  Expr
}

// IfStmt represents if/elsif/else/end.
type IfStmt struct {
	Pos
	Condition    Expr
	Body         []Statement
	ElsifClauses []ElsifClause
	ElseBody     []Statement
}

// ElsifClause is one elsif branch.
type ElsifClause struct {
	Condition Expr
	Body      []Statement
}

// WhileStmt represents while cond body end.
type WhileStmt struct {
	Pos
	Condition Expr
	Body      []Statement
}

// ForStmt represents for var in iterable body end.
type ForStmt struct {
	Pos
	Var      string
	Iterable Expr
	Body     []Statement
}

// FuncDef represents def name(params) body end.
type FuncDef struct {
	Pos
	Name   string
	Params []string
	Body   []Statement
}

// ReturnStmt represents return [value]. Value is nil for a bare return.
type ReturnStmt struct {
	Pos
	Value Expr
}

// BreakStmt exits the innermost loop.
type BreakStmt struct{ Pos }

// ContinueStmt jumps to the next iteration of the innermost loop.
type ContinueStmt struct{ Pos }

// ImportStmt represents import "location" [as alias].
type ImportStmt struct {
	Pos
	Location string
	Alias    string // empty means the last path segment
}

// FromImportStmt represents from "location" import a, b.
type FromImportStmt struct {
	Pos
	Location string
	Names    []string
}

// OutputStmt designates the module's output variable.
type OutputStmt struct {
	Pos
	Name string
}

func (*ExprStmt) node()        {}
func (*AssignStmt) node()      {}
func (*IndexAssignStmt) node() {}
func (*IfStmt) node()          {}
func (*WhileStmt) node()       {}
func (*ForStmt) node()         {}
func (*FuncDef) node()         {}
func (*ReturnStmt) node()      {}
func (*BreakStmt) node()       {}
func (*ContinueStmt) node()    {}
func (*ImportStmt) node()      {}
func (*FromImportStmt) node()  {}
func (*OutputStmt) node()      {}

func (*ExprStmt) stmt()        {}
func (*AssignStmt) stmt()      {}
func (*IndexAssignStmt) stmt() {}
func (*IfStmt) stmt()          {}
func (*WhileStmt) stmt()       {}
func (*ForStmt) stmt()         {}
func (*FuncDef) stmt()         {}
func (*ReturnStmt) stmt()      {}
func (*BreakStmt) stmt()       {}
func (*ContinueStmt) stmt()    {}
func (*ImportStmt) stmt()      {}
func (*FromImportStmt) stmt()  {}
func (*OutputStmt) stmt()      {}

// IntLiteral is an integer constant. Value holds the decimal digits.
type IntLiteral struct {
	Pos
	Value string
}

// FloatLiteral is a floating point constant.
type FloatLiteral struct {
	Pos
	Value string
}

// StringLiteral is an unescaped string constant.
type StringLiteral struct {
	Pos
	Value string
}

// BoolLiteral is true or false.
type BoolLiteral struct {
	Pos
	Value bool
}

// NilLiteral is nil.
type NilLiteral struct{ Pos }

// IdentExpr is a name reference.
type IdentExpr struct {
	Pos
	Name string
}

// ListLiteral is [a, b, c].
type ListLiteral struct {
	Pos
	Elements []Expr
}

// MapLiteral is {k: v, ...}. Keys and Values have the same length.
type MapLiteral struct {
	Pos
	Keys   []Expr
	Values []Expr
}

// UnaryExpr is -x or not x.
type UnaryExpr struct {
	Pos
	Op      string
	Operand Expr
}

// BinaryExpr covers arithmetic, comparison and the short-circuit and/or.
type BinaryExpr struct {
	Pos
	Op    string
	Left  Expr
	Right Expr
}

// CallExpr is fn(args).
type CallExpr struct {
	Pos
	Func Expr
	Args []Expr
}

// IndexExpr is obj[index].
type IndexExpr struct {
	Pos
	Object Expr
	Index  Expr
}

// AttrExpr is obj.name.
type AttrExpr struct {
	Pos
	Object Expr
	Name   string
}

func (*IntLiteral) node()    {}
func (*FloatLiteral) node()  {}
func (*StringLiteral) node() {}
func (*BoolLiteral) node()   {}
func (*NilLiteral) node()    {}
func (*IdentExpr) node()     {}
func (*ListLiteral) node()   {}
func (*MapLiteral) node()    {}
func (*UnaryExpr) node()     {}
func (*BinaryExpr) node()    {}
func (*CallExpr) node()      {}
func (*IndexExpr) node()     {}
func (*AttrExpr) node()      {}

func (*IntLiteral) expr()    {}
func (*FloatLiteral) expr()  {}
func (*StringLiteral) expr() {}
func (*BoolLiteral) expr()   {}
func (*NilLiteral) expr()    {}
func (*IdentExpr) expr()     {}
func (*ListLiteral) expr()   {}
func (*MapLiteral) expr()    {}
func (*UnaryExpr) expr()     {}
func (*BinaryExpr) expr()    {}
func (*CallExpr) expr()      {}
func (*IndexExpr) expr()     {}
func (*AttrExpr) expr()      {}
