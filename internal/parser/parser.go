package parser

import (
	"fmt"

	"tinyscript/internal/errors"
	"tinyscript/internal/lexer"
)

// Parser is a recursive-descent, precedence-climbing parser over a token
// stream, following the reference implementation's overall technique
// (consume/check/match helpers, panic-based error raising recovered at the
// entry point) re-targeted at TinyScript's own grammar (§4.1).
type Parser struct {
	tokens  []lexer.Token
	current int
	file    string
}

func NewParser(tokens []lexer.Token) *Parser {
	return &Parser{tokens: tokens}
}

func NewParserWithFile(tokens []lexer.Token, file string) *Parser {
	return &Parser{tokens: tokens, file: file}
}

// Parse consumes the entire token stream and returns the script's top-level
// nodes (imports, classes and comments), or the first parse
// failure encountered.
func (p *Parser) Parse() (stmts []Stmt, err error) {
	defer func() {
		if r := recover(); r != nil {
			if te, ok := r.(*errors.TinyError); ok {
				err = te
				return
			}
			panic(r)
		}
	}()

	for !p.isAtEnd() {
		switch p.peek().Type {
		case lexer.TokenImport:
			stmts = append(stmts, p.importStmt())
		case lexer.TokenClass:
			stmts = append(stmts, p.classDecl())
		case lexer.TokenComment:
			stmts = append(stmts, p.commentStmt())
		default:
			p.fail("expected 'import' or 'class' at top level, got " + string(p.peek().Type))
		}
	}
	return stmts, nil
}

// --- top level ---

// commentStmt consumes a TokenComment and preserves it as a no-op node
// (§4.1: "Comments are preserved as no-op nodes"). Unlike every other
// statement form, a comment has no trailing ';' to consume.
func (p *Parser) commentStmt() Stmt {
	tok := p.consume(lexer.TokenComment, "expected comment")
	return &CommentStmt{Text: tok.Lexeme}
}

func (p *Parser) importStmt() Stmt {
	p.consume(lexer.TokenImport, "expected 'import'")
	tok := p.consume(lexer.TokenString, "expected string after 'import'")
	p.consume(lexer.TokenSemicolon, "expected ';' after import path")
	return &ImportStmt{Path: tok.Lexeme}
}

func (p *Parser) classDecl() Stmt {
	p.consume(lexer.TokenClass, "expected 'class'")
	name := p.consume(lexer.TokenIdent, "expected class name").Lexeme
	p.consume(lexer.TokenLBrace, "expected '{' after class name")

	cls := &ClassStmt{Name: name}
	for !p.check(lexer.TokenRBrace) && !p.isAtEnd() {
		switch p.peek().Type {
		case lexer.TokenVar:
			vd := p.varDeclNoSemi()
			p.consume(lexer.TokenSemicolon, "expected ';' after field declaration")
			cls.Fields = append(cls.Fields, FieldDecl{Name: vd.Name, Default: vd.Init})
		case lexer.TokenConstructor:
			cls.Constructor = p.constructorDecl()
		case lexer.TokenFunction:
			cls.Methods = append(cls.Methods, *p.functionDecl())
		default:
			p.fail("expected field, constructor, or function in class body")
		}
	}
	p.consume(lexer.TokenRBrace, "expected '}' to close class body")
	return cls
}

func (p *Parser) constructorDecl() *FunctionDecl {
	p.consume(lexer.TokenConstructor, "expected 'constructor'")
	p.consume(lexer.TokenLParen, "expected '(' after 'constructor'")
	params := p.params()
	p.consume(lexer.TokenRParen, "expected ')' after constructor parameters")
	body := p.block()
	return &FunctionDecl{Name: "", Params: params, Body: body}
}

func (p *Parser) functionDecl() *FunctionDecl {
	p.consume(lexer.TokenFunction, "expected 'function'")
	name := p.consume(lexer.TokenIdent, "expected function name").Lexeme
	p.consume(lexer.TokenLParen, "expected '(' after function name")
	params := p.params()
	p.consume(lexer.TokenRParen, "expected ')' after parameters")
	body := p.block()
	return &FunctionDecl{Name: name, Params: params, Body: body}
}

func (p *Parser) params() []string {
	var names []string
	if p.check(lexer.TokenRParen) {
		return names
	}
	names = append(names, p.consume(lexer.TokenIdent, "expected parameter name").Lexeme)
	for p.match(lexer.TokenComma) {
		names = append(names, p.consume(lexer.TokenIdent, "expected parameter name").Lexeme)
	}
	return names
}

func (p *Parser) args() []Expr {
	var exprs []Expr
	if p.check(lexer.TokenRParen) {
		return exprs
	}
	exprs = append(exprs, p.expression())
	for p.match(lexer.TokenComma) {
		exprs = append(exprs, p.expression())
	}
	return exprs
}

// --- blocks & statements ---

func (p *Parser) block() []Stmt {
	p.consume(lexer.TokenLBrace, "expected '{'")
	var stmts []Stmt
	for !p.check(lexer.TokenRBrace) && !p.isAtEnd() {
		stmts = append(stmts, p.statement())
	}
	p.consume(lexer.TokenRBrace, "expected '}'")
	return stmts
}

func (p *Parser) statement() Stmt {
	switch p.peek().Type {
	case lexer.TokenComment:
		return p.commentStmt()
	case lexer.TokenIf:
		return p.ifStmt()
	case lexer.TokenWhile:
		return p.whileStmt()
	case lexer.TokenFor:
		return p.forStmt()
	case lexer.TokenAssert:
		p.advance()
		e := p.expression()
		p.consume(lexer.TokenSemicolon, "expected ';' after assert")
		return &AssertStmt{Expr: e}
	case lexer.TokenPrint:
		p.advance()
		e := p.expression()
		p.consume(lexer.TokenSemicolon, "expected ';' after print")
		return &PrintStmt{Expr: e}
	case lexer.TokenVar:
		vd := p.varDeclNoSemi()
		p.consume(lexer.TokenSemicolon, "expected ';' after variable declaration")
		return vd
	case lexer.TokenReturn:
		p.advance()
		var val Expr
		if !p.check(lexer.TokenSemicolon) {
			val = p.expression()
		}
		p.consume(lexer.TokenSemicolon, "expected ';' after return")
		return &ReturnStmt{Value: val}
	case lexer.TokenIdent:
		s := p.identLedStmtNoSemi()
		p.consume(lexer.TokenSemicolon, "expected ';' after statement")
		return s
	default:
		p.fail("unexpected token in statement position: " + string(p.peek().Type))
		return nil
	}
}

func (p *Parser) varDeclNoSemi() *VarDeclStmt {
	p.consume(lexer.TokenVar, "expected 'var'")
	name := p.consume(lexer.TokenIdent, "expected variable name").Lexeme
	var init Expr
	if p.match(lexer.TokenEqual) {
		init = p.expression()
	}
	return &VarDeclStmt{Name: name, Init: init}
}

// identLedStmtNoSemi parses an assignment, call, or bare ident-chain
// statement without consuming its trailing ';' — shared by block statements
// and the for-i loop header, which supplies its own separators.
func (p *Parser) identLedStmtNoSemi() Stmt {
	name := p.consume(lexer.TokenIdent, "expected identifier").Lexeme
	expr := p.identLed(name)
	if p.match(lexer.TokenEqual) {
		value := p.expression()
		switch t := expr.(type) {
		case *Variable:
			return &AssignStmt{Target: t, Value: value}
		case *Chain:
			return &AssignStmt{Target: t, Value: value}
		case *ArrayIndex:
			return &IndexAssignStmt{Name: t.Name, Index: t.Index, Value: value}
		default:
			p.fail("invalid assignment target")
			return nil
		}
	}
	return &ExprStmt{Expr: expr}
}

func (p *Parser) ifStmt() Stmt {
	p.consume(lexer.TokenIf, "expected 'if'")
	cond := p.expression()
	then := p.block()
	var els []Stmt
	if p.match(lexer.TokenElse) {
		els = p.block()
	}
	return &IfStmt{Cond: cond, Then: then, Else: els}
}

func (p *Parser) whileStmt() Stmt {
	p.consume(lexer.TokenWhile, "expected 'while'")
	p.consume(lexer.TokenLParen, "expected '(' after 'while'")
	cond := p.expression()
	p.consume(lexer.TokenRParen, "expected ')' after while condition")
	body := p.block()
	return &WhileStmt{Cond: cond, Body: body}
}

// forStmt disambiguates for_in_loop from for_i_loop with a one-token
// lookahead on whether the bound identifier is followed by 'in', restoring
// position if it is not.
func (p *Parser) forStmt() Stmt {
	p.consume(lexer.TokenFor, "expected 'for'")
	p.consume(lexer.TokenLParen, "expected '(' after 'for'")

	if p.check(lexer.TokenIdent) {
		saved := p.current
		name := p.advance().Lexeme
		if p.match(lexer.TokenIn) {
			var collection Expr
			if p.check(lexer.TokenLBracket) {
				collection = p.arrayLit()
			} else {
				collection = &Variable{Name: p.consume(lexer.TokenIdent, "expected identifier or array literal after 'in'").Lexeme}
			}
			p.consume(lexer.TokenRParen, "expected ')' after for-in header")
			body := p.block()
			return &ForInStmt{Var: name, Collection: collection, Body: body}
		}
		p.current = saved
	}

	var init Stmt
	if p.check(lexer.TokenVar) {
		init = p.varDeclNoSemi()
	} else {
		init = p.identLedStmtNoSemi()
	}
	p.consume(lexer.TokenSemicolon, "expected ';' after for-loop init")
	cond := p.expression()
	p.consume(lexer.TokenSemicolon, "expected ';' after for-loop condition")
	step := p.identLedStmtNoSemi()
	p.match(lexer.TokenSemicolon) // tolerate a trailing ';' after the step clause
	p.consume(lexer.TokenRParen, "expected ')' after for-loop header")
	body := p.block()
	return &ForIStmt{Init: init, Cond: cond, Step: step, Body: body}
}

// --- expressions ---
//
// Precedence, loosest to tightest: comparison, additive, multiplicative
// (which also covers ^), atom. Grouping parens are accepted as an atom even
// though the grammar's atom list omits them — without them, an expression
// like (a + b) * c would be inexpressible.

func (p *Parser) expression() Expr {
	return p.comparison()
}

func (p *Parser) comparison() Expr {
	left := p.additive()
	for {
		var op BinaryOp
		switch p.peek().Type {
		case lexer.TokenDoubleEqual:
			op = OpEq
		case lexer.TokenNotEqual:
			op = OpNe
		case lexer.TokenLT:
			op = OpLt
		case lexer.TokenLE:
			op = OpLe
		case lexer.TokenGT:
			op = OpGt
		case lexer.TokenGE:
			op = OpGe
		default:
			return left
		}
		p.advance()
		right := p.additive()
		left = &Binary{Left: left, Operator: op, Right: right}
	}
}

func (p *Parser) additive() Expr {
	left := p.multiplicative()
	for {
		var op BinaryOp
		switch p.peek().Type {
		case lexer.TokenPlus:
			op = OpAdd
		case lexer.TokenMinus:
			op = OpSub
		default:
			return left
		}
		p.advance()
		right := p.multiplicative()
		left = &Binary{Left: left, Operator: op, Right: right}
	}
}

func (p *Parser) multiplicative() Expr {
	left := p.atomExpr()
	for {
		var op BinaryOp
		switch p.peek().Type {
		case lexer.TokenStar:
			op = OpMul
		case lexer.TokenSlash:
			op = OpDiv
		case lexer.TokenCaret:
			op = OpPow
		default:
			return left
		}
		p.advance()
		right := p.atomExpr()
		left = &Binary{Left: left, Operator: op, Right: right}
	}
}

func (p *Parser) atomExpr() Expr {
	tok := p.peek()
	switch tok.Type {
	case lexer.TokenFloat:
		p.advance()
		var f float32
		fmt.Sscanf(tok.Lexeme, "%g", &f)
		return &Literal{Kind: LitFloat, F: f}
	case lexer.TokenInt:
		p.advance()
		var i int32
		fmt.Sscanf(tok.Lexeme, "%d", &i)
		return &Literal{Kind: LitInt, I: i}
	case lexer.TokenString:
		p.advance()
		return &Literal{Kind: LitString, S: tok.Lexeme}
	case lexer.TokenTrue:
		p.advance()
		return &Literal{Kind: LitBool, B: true}
	case lexer.TokenFalse:
		p.advance()
		return &Literal{Kind: LitBool, B: false}
	case lexer.TokenNull:
		p.advance()
		return &Literal{Kind: LitNull}
	case lexer.TokenFunction:
		return p.anonFunction()
	case lexer.TokenLBracket:
		return p.arrayLit()
	case lexer.TokenLBrace:
		return p.dictionaryLit()
	case lexer.TokenNew:
		return p.newObject()
	case lexer.TokenLParen:
		p.advance()
		e := p.expression()
		p.consume(lexer.TokenRParen, "expected ')' to close grouped expression")
		return e
	case lexer.TokenIdent:
		name := p.advance().Lexeme
		return p.identLed(name)
	default:
		p.fail("unexpected token in expression: " + string(tok.Type))
		return nil
	}
}

// identLed parses whatever follows an already-consumed leading identifier:
// a bare Variable, an ArrayIndex, a Call, or a dotted Chain.
func (p *Parser) identLed(name string) Expr {
	if p.check(lexer.TokenLParen) {
		p.advance()
		a := p.args()
		p.consume(lexer.TokenRParen, "expected ')' after call arguments")
		call := Expr(&Call{Name: name, Args: a})
		if p.check(lexer.TokenDot) {
			return p.chainFrom(name)
		}
		return call
	}
	if p.check(lexer.TokenLBracket) {
		p.advance()
		idx := p.expression()
		p.consume(lexer.TokenRBracket, "expected ']' after index expression")
		ai := &ArrayIndex{Name: name, Index: idx}
		if p.check(lexer.TokenDot) {
			return p.chainFrom(name)
		}
		return ai
	}
	if p.check(lexer.TokenDot) {
		return p.chainFrom(name)
	}
	return &Variable{Name: name}
}

// chainFrom builds a Chain whose root is the already-consumed identifier
// name, matching how every scenario in this language writes a dotted chain
// (this.x, p.sum(), this.fib(n-1)).
func (p *Parser) chainFrom(name string) Expr {
	chain := &Chain{Root: name}
	for p.match(lexer.TokenDot) {
		seg := p.consume(lexer.TokenIdent, "expected identifier after '.'").Lexeme
		if p.check(lexer.TokenLParen) {
			p.advance()
			a := p.args()
			p.consume(lexer.TokenRParen, "expected ')' after call arguments")
			chain.Items = append(chain.Items, ChainItem{Name: seg, IsCall: true, Args: a})
		} else if p.check(lexer.TokenLBracket) {
			p.advance()
			idx := p.expression()
			p.consume(lexer.TokenRBracket, "expected ']' after index expression")
			chain.Items = append(chain.Items, ChainItem{Name: seg, IsIndex: true, Index: idx})
		} else {
			chain.Items = append(chain.Items, ChainItem{Name: seg})
		}
	}
	return chain
}

func (p *Parser) arrayLit() Expr {
	p.consume(lexer.TokenLBracket, "expected '['")
	var elems []Expr
	if !p.check(lexer.TokenRBracket) {
		elems = append(elems, p.expression())
		for p.match(lexer.TokenComma) {
			elems = append(elems, p.expression())
		}
	}
	p.consume(lexer.TokenRBracket, "expected ']' to close array literal")
	return &ArrayLit{Elements: elems}
}

func (p *Parser) dictionaryLit() Expr {
	p.consume(lexer.TokenLBrace, "expected '{'")
	dict := &DictionaryLit{}
	if !p.check(lexer.TokenRBrace) {
		p.dictEntry(dict)
		for p.match(lexer.TokenComma) {
			p.dictEntry(dict)
		}
	}
	p.consume(lexer.TokenRBrace, "expected '}' to close dictionary literal")
	return dict
}

func (p *Parser) dictEntry(dict *DictionaryLit) {
	key := p.consume(lexer.TokenString, "expected string key in dictionary literal").Lexeme
	p.consume(lexer.TokenColon, "expected ':' after dictionary key")
	val := p.expression()
	dict.Keys = append(dict.Keys, key)
	dict.Values = append(dict.Values, val)
}

func (p *Parser) newObject() Expr {
	p.consume(lexer.TokenNew, "expected 'new'")
	name := p.consume(lexer.TokenIdent, "expected class name after 'new'").Lexeme
	p.consume(lexer.TokenLParen, "expected '(' after class name")
	a := p.args()
	p.consume(lexer.TokenRParen, "expected ')' after constructor arguments")
	return &NewObject{ClassName: name, Args: a}
}

func (p *Parser) anonFunction() Expr {
	p.consume(lexer.TokenFunction, "expected 'function'")
	p.consume(lexer.TokenLParen, "expected '(' after 'function'")
	params := p.params()
	p.consume(lexer.TokenRParen, "expected ')' after parameters")
	body := p.block()
	return &AnonFunction{Params: params, Body: body}
}

// --- token helpers ---

func (p *Parser) peek() lexer.Token {
	return p.tokens[p.current]
}

func (p *Parser) isAtEnd() bool {
	return p.peek().Type == lexer.TokenEOF
}

func (p *Parser) advance() lexer.Token {
	tok := p.tokens[p.current]
	if !p.isAtEnd() {
		p.current++
	}
	return tok
}

func (p *Parser) check(t lexer.TokenType) bool {
	return p.peek().Type == t
}

func (p *Parser) match(t lexer.TokenType) bool {
	if p.check(t) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) consume(t lexer.TokenType, message string) lexer.Token {
	if p.check(t) {
		return p.advance()
	}
	p.fail(message)
	return lexer.Token{}
}

func (p *Parser) fail(message string) {
	tok := p.peek()
	panic(errors.NewParseError(message, p.file, tok.Line, tok.Column))
}
