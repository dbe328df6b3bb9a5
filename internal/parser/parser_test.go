package parser

import (
	"testing"

	"tinyscript/internal/lexer"
)

func parseSource(t *testing.T, src string) []Stmt {
	t.Helper()
	scanner := lexer.NewScanner(src)
	tokens := scanner.ScanTokens()
	if scanner.HadError() {
		t.Fatalf("scan errors: %v", scanner.Errors())
	}
	stmts, err := NewParser(tokens).Parse()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return stmts
}

func parseSourceExpectError(t *testing.T, src string) {
	t.Helper()
	scanner := lexer.NewScanner(src)
	tokens := scanner.ScanTokens()
	_, err := NewParser(tokens).Parse()
	if err == nil {
		t.Fatalf("expected a parse error, got none")
	}
}

func TestParseHelloWorld(t *testing.T) {
	stmts := parseSource(t, `class HelloWorld { function main() { print "hello"; } }`)
	if len(stmts) != 1 {
		t.Fatalf("expected 1 top-level statement, got %d", len(stmts))
	}
	cls, ok := stmts[0].(*ClassStmt)
	if !ok {
		t.Fatalf("expected *ClassStmt, got %T", stmts[0])
	}
	if cls.Name != "HelloWorld" {
		t.Fatalf("expected class name HelloWorld, got %s", cls.Name)
	}
	if len(cls.Methods) != 1 || cls.Methods[0].Name != "main" {
		t.Fatalf("expected a single 'main' method, got %+v", cls.Methods)
	}
	print, ok := cls.Methods[0].Body[0].(*PrintStmt)
	if !ok {
		t.Fatalf("expected *PrintStmt, got %T", cls.Methods[0].Body[0])
	}
	lit, ok := print.Expr.(*Literal)
	if !ok || lit.Kind != LitString || lit.S != "hello" {
		t.Fatalf("expected string literal \"hello\", got %+v", print.Expr)
	}
}

func TestParseArithmeticAssertions(t *testing.T) {
	stmts := parseSource(t, `class T { function main() {
		var a = 2;
		var b = 3;
		assert a + b == 5;
		assert b - a == 1;
		assert a * b == 6;
		assert b / a == 1;
	} }`)
	cls := stmts[0].(*ClassStmt)
	body := cls.Methods[0].Body
	if len(body) != 6 {
		t.Fatalf("expected 6 statements in main, got %d", len(body))
	}
	assertStmt, ok := body[2].(*AssertStmt)
	if !ok {
		t.Fatalf("expected *AssertStmt, got %T", body[2])
	}
	bin, ok := assertStmt.Expr.(*Binary)
	if !ok || bin.Operator != OpEq {
		t.Fatalf("expected top-level == comparison, got %+v", assertStmt.Expr)
	}
	sum, ok := bin.Left.(*Binary)
	if !ok || sum.Operator != OpAdd {
		t.Fatalf("expected a+b to parse as an additive Binary, got %+v", bin.Left)
	}
}

func TestParseForILoopNoParensInBody(t *testing.T) {
	stmts := parseSource(t, `class T { function main() {
		var n = 0;
		for (var i = 0; i < 5; i = i + 1;) {
			n = n + i;
		}
		assert n == 10;
	} }`)
	cls := stmts[0].(*ClassStmt)
	forStmt, ok := cls.Methods[0].Body[1].(*ForIStmt)
	if !ok {
		t.Fatalf("expected *ForIStmt, got %T", cls.Methods[0].Body[1])
	}
	if _, ok := forStmt.Init.(*VarDeclStmt); !ok {
		t.Fatalf("expected for-loop init to be a var decl, got %T", forStmt.Init)
	}
	if _, ok := forStmt.Step.(*AssignStmt); !ok {
		t.Fatalf("expected for-loop step to be an assignment, got %T", forStmt.Step)
	}
}

func TestParseClassConstructorAndThis(t *testing.T) {
	stmts := parseSource(t, `class Pt {
		var x;
		var y;
		constructor(x, y) { this.x = x; this.y = y; }
		function sum() { return this.x + this.y; }
	}
	class T { function main() { var p = new Pt(3, 4); assert p.sum() == 7; } }`)
	if len(stmts) != 2 {
		t.Fatalf("expected 2 top-level classes, got %d", len(stmts))
	}
	pt := stmts[0].(*ClassStmt)
	if len(pt.Fields) != 2 {
		t.Fatalf("expected 2 fields on Pt, got %d", len(pt.Fields))
	}
	if pt.Constructor == nil || len(pt.Constructor.Params) != 2 {
		t.Fatalf("expected a 2-param constructor, got %+v", pt.Constructor)
	}
	assign, ok := pt.Constructor.Body[0].(*AssignStmt)
	if !ok {
		t.Fatalf("expected constructor body to start with an assignment, got %T", pt.Constructor.Body[0])
	}
	chain, ok := assign.Target.(*Chain)
	if !ok || chain.Root != "this" || chain.Items[0].Name != "x" {
		t.Fatalf("expected this.x as the assignment target, got %+v", assign.Target)
	}

	tCls := stmts[1].(*ClassStmt)
	mainBody := tCls.Methods[0].Body
	varDecl := mainBody[0].(*VarDeclStmt)
	newObj, ok := varDecl.Init.(*NewObject)
	if !ok || newObj.ClassName != "Pt" || len(newObj.Args) != 2 {
		t.Fatalf("expected `new Pt(3, 4)` initializer, got %+v", varDecl.Init)
	}
}

func TestParseDictionaryLiteralAndIndexAssign(t *testing.T) {
	stmts := parseSource(t, `class T { function main() {
		var d = {"a": 1, "b": 2};
		d["c"] = 3;
		assert d["a"] + d["c"] == 4;
	} }`)
	cls := stmts[0].(*ClassStmt)
	body := cls.Methods[0].Body
	varDecl := body[0].(*VarDeclStmt)
	dict, ok := varDecl.Init.(*DictionaryLit)
	if !ok || len(dict.Keys) != 2 || dict.Keys[0] != "a" || dict.Keys[1] != "b" {
		t.Fatalf("expected a 2-entry dictionary literal, got %+v", varDecl.Init)
	}
	idxAssign, ok := body[1].(*IndexAssignStmt)
	if !ok || idxAssign.Name != "d" {
		t.Fatalf("expected d[\"c\"] = 3 to parse as *IndexAssignStmt, got %T", body[1])
	}
}

func TestParseFibonacciRecursionWithoutIfParens(t *testing.T) {
	stmts := parseSource(t, `class T {
		function fib(n) {
			if n < 2 { return n; }
			return this.fib(n - 1) + this.fib(n - 2);
		}
		function main() { assert this.fib(10) == 55; }
	}`)
	cls := stmts[0].(*ClassStmt)
	fib := cls.Methods[0]
	ifStmt, ok := fib.Body[0].(*IfStmt)
	if !ok {
		t.Fatalf("expected leading if statement, got %T", fib.Body[0])
	}
	if _, ok := ifStmt.Cond.(*Binary); !ok {
		t.Fatalf("expected if condition to be a Binary comparison, got %T", ifStmt.Cond)
	}
	ret := fib.Body[1].(*ReturnStmt)
	bin, ok := ret.Value.(*Binary)
	if !ok || bin.Operator != OpAdd {
		t.Fatalf("expected fib(n-1)+fib(n-2), got %+v", ret.Value)
	}
	leftChain, ok := bin.Left.(*Chain)
	if !ok || leftChain.Root != "this" || !leftChain.Items[0].IsCall {
		t.Fatalf("expected this.fib(n-1) as a call chain, got %+v", bin.Left)
	}
}

func TestParseForInLoop(t *testing.T) {
	stmts := parseSource(t, `class T { function main() {
		var total = 0;
		for (x in [1, 2, 3]) {
			total = total + x;
		}
	} }`)
	cls := stmts[0].(*ClassStmt)
	forIn, ok := cls.Methods[0].Body[1].(*ForInStmt)
	if !ok {
		t.Fatalf("expected *ForInStmt, got %T", cls.Methods[0].Body[1])
	}
	if forIn.Var != "x" {
		t.Fatalf("expected loop variable x, got %s", forIn.Var)
	}
	arr, ok := forIn.Collection.(*ArrayLit)
	if !ok || len(arr.Elements) != 3 {
		t.Fatalf("expected a 3-element array literal, got %+v", forIn.Collection)
	}
}

func TestParseImportStatement(t *testing.T) {
	stmts := parseSource(t, `import "utils.tiny"; class T { function main() { } }`)
	imp, ok := stmts[0].(*ImportStmt)
	if !ok || imp.Path != "utils.tiny" {
		t.Fatalf("expected import statement for utils.tiny, got %+v", stmts[0])
	}
}

func TestParseAnonFunctionAndPrecedence(t *testing.T) {
	stmts := parseSource(t, `class T { function main() {
		var add = function(a, b) { return a + b; };
		assert add(2, 3 * 4 - 1) == 13;
	} }`)
	cls := stmts[0].(*ClassStmt)
	varDecl := cls.Methods[0].Body[0].(*VarDeclStmt)
	if _, ok := varDecl.Init.(*AnonFunction); !ok {
		t.Fatalf("expected anonymous function, got %T", varDecl.Init)
	}
	assertStmt := cls.Methods[0].Body[1].(*AssertStmt)
	outer := assertStmt.Expr.(*Binary)
	if outer.Operator != OpEq {
		t.Fatalf("expected top-level ==, got %+v", outer)
	}
	call := outer.Left.(*Call)
	if call.Name != "add" || len(call.Args) != 2 {
		t.Fatalf("expected add(2, ...), got %+v", call)
	}
	// 3 * 4 - 1 must bind as (3*4)-1, not 3*(4-1), since * binds tighter than -.
	secondArg := call.Args[1].(*Binary)
	if secondArg.Operator != OpSub {
		t.Fatalf("expected the outer operator of the second argument to be -, got %v", secondArg.Operator)
	}
	mul, ok := secondArg.Left.(*Binary)
	if !ok || mul.Operator != OpMul {
		t.Fatalf("expected 3*4 to be nested inside the subtraction, got %+v", secondArg.Left)
	}
}

func TestParseGroupedExpression(t *testing.T) {
	stmts := parseSource(t, `class T { function main() { assert (2 + 3) * 4 == 20; } }`)
	cls := stmts[0].(*ClassStmt)
	assertStmt := cls.Methods[0].Body[0].(*AssertStmt)
	eq := assertStmt.Expr.(*Binary)
	mul := eq.Left.(*Binary)
	if mul.Operator != OpMul {
		t.Fatalf("expected (2+3)*4 to parse with * at the top, got %+v", mul)
	}
	if _, ok := mul.Left.(*Binary); !ok {
		t.Fatalf("expected the parenthesised 2+3 to still parse as a Binary, got %T", mul.Left)
	}
}

func TestParseErrorsOnMissingSemicolon(t *testing.T) {
	parseSourceExpectError(t, `class T { function main() { var a = 1 } }`)
}

func TestParseErrorsOnUnclosedBlock(t *testing.T) {
	parseSourceExpectError(t, `class T { function main() { print "hi"; }`)
}

func TestParseErrorsOnTopLevelStatement(t *testing.T) {
	parseSourceExpectError(t, `var x = 1;`)
}
