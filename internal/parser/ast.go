// Package parser implements TinyScript's recursive-descent, precedence-climbing
// parser and its visitor-pattern AST (§4.1), following the reference
// implementation's Expr/Stmt-interface-plus-Visitor technique.
package parser

// Expr is any expression-producing AST node.
type Expr interface {
	Accept(v ExprVisitor) (interface{}, error)
}

// ExprVisitor dispatches over every concrete Expr node the grammar defines.
type ExprVisitor interface {
	VisitLiteral(e *Literal) (interface{}, error)
	VisitVariable(e *Variable) (interface{}, error)
	VisitBinary(e *Binary) (interface{}, error)
	VisitArrayLit(e *ArrayLit) (interface{}, error)
	VisitDictionaryLit(e *DictionaryLit) (interface{}, error)
	VisitArrayIndex(e *ArrayIndex) (interface{}, error)
	VisitCall(e *Call) (interface{}, error)
	VisitChain(e *Chain) (interface{}, error)
	VisitNewObject(e *NewObject) (interface{}, error)
	VisitAnonFunction(e *AnonFunction) (interface{}, error)
}

// LiteralKind tags which primitive a Literal holds.
type LiteralKind int

const (
	LitNull LiteralKind = iota
	LitInt
	LitFloat
	LitBool
	LitString
)

// Literal is a null/int/float/bool/string atom.
type Literal struct {
	Kind LiteralKind
	I    int32
	F    float32
	B    bool
	S    string
}

func (e *Literal) Accept(v ExprVisitor) (interface{}, error) { return v.VisitLiteral(e) }

// Variable is a bare identifier reference (an atom, and the simplest lvalue).
type Variable struct {
	Name string
}

func (e *Variable) Accept(v ExprVisitor) (interface{}, error) { return v.VisitVariable(e) }

// BinaryOp enumerates the operators the grammar's precedence-climbed
// expression rule supports (§4.1's expr production).
type BinaryOp int

const (
	OpEq BinaryOp = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpPow
)

// Binary is a two-operand expression at one of the three precedence levels.
type Binary struct {
	Left     Expr
	Operator BinaryOp
	Right    Expr
}

func (e *Binary) Accept(v ExprVisitor) (interface{}, error) { return v.VisitBinary(e) }

// ArrayLit is an `[ expr, ... ]` literal.
type ArrayLit struct {
	Elements []Expr
}

func (e *ArrayLit) Accept(v ExprVisitor) (interface{}, error) { return v.VisitArrayLit(e) }

// DictionaryLit is a `{ STRING: expr, ... }` literal. Keys are always string
// literals per the grammar (§4.1's dictionary production).
type DictionaryLit struct {
	Keys   []string
	Values []Expr
}

func (e *DictionaryLit) Accept(v ExprVisitor) (interface{}, error) { return v.VisitDictionaryLit(e) }

// ArrayIndex is `IDENT "[" expr "]"`, used both as an atom and (via the
// statement grammar) as an lvalue.
type ArrayIndex struct {
	Name  string
	Index Expr
}

func (e *ArrayIndex) Accept(v ExprVisitor) (interface{}, error) { return v.VisitArrayIndex(e) }

// Call is `name "(" args ")"`. Whether Name resolves to a local variable or
// an implicit this-method is a compiler concern, not a parser concern.
type Call struct {
	Name string
	Args []Expr
}

func (e *Call) Accept(v ExprVisitor) (interface{}, error) { return v.VisitCall(e) }

// ChainItem is one segment of a dot-separated chain: either a plain field
// name, a call (`name(args)`), or an indexed access (`name[expr]`).
type ChainItem struct {
	Name    string
	IsCall   bool
	Args     []Expr
	IsIndex  bool
	Index    Expr
}

// Chain is `a.b.c`, where the first segment is the chain root (an
// identifier) and subsequent segments are each a field, call, or indexed
// access (§9's glossary entry for "Chain").
type Chain struct {
	Root  string
	Items []ChainItem
}

func (e *Chain) Accept(v ExprVisitor) (interface{}, error) { return v.VisitChain(e) }

// NewObject is `new IDENT "(" args ")"`.
type NewObject struct {
	ClassName string
	Args      []Expr
}

func (e *NewObject) Accept(v ExprVisitor) (interface{}, error) { return v.VisitNewObject(e) }

// AnonFunction is `function "(" params ")" block`, compiled to a
// synthetically-named top-level function (§4.3, §9).
type AnonFunction struct {
	Params []string
	Body   []Stmt
}

func (e *AnonFunction) Accept(v ExprVisitor) (interface{}, error) { return v.VisitAnonFunction(e) }
