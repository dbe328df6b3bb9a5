package compiler_test

import (
	"testing"

	"tinyscript/internal/bytecode"
	"tinyscript/internal/compiler"
	"tinyscript/internal/lexer"
	"tinyscript/internal/parser"
	"tinyscript/internal/value"
)

func parseSource(t *testing.T, src string) []parser.Stmt {
	t.Helper()
	toks := lexer.NewScanner(src).ScanTokens()
	stmts, err := parser.NewParserWithFile(toks, "test.tiny").Parse()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return stmts
}

func TestDefaultConstructorSynthesizedFromFieldDefaults(t *testing.T) {
	stmts := parseSource(t, `
class Point {
	var x = 0;
	var y = 0;
}
`)
	prog, err := compiler.Compile(stmts, "test.tiny")
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	if _, ok := prog.Symbols["Point.constructor"]; !ok {
		t.Fatal("expected a synthesized Point.constructor symbol")
	}
}

func TestExplicitConstructorIsUsedVerbatim(t *testing.T) {
	stmts := parseSource(t, `
class Point {
	var x = 0;

	constructor(initial) {
		this.x = initial;
	}
}
`)
	prog, err := compiler.Compile(stmts, "test.tiny")
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	start, ok := prog.Symbols["Point.constructor"]
	if !ok {
		t.Fatal("expected Point.constructor symbol")
	}
	if start < 0 || start >= len(prog.Instructions) {
		t.Fatalf("constructor symbol points outside the instruction vector: %d", start)
	}
}

func TestClassRegisteredAsGlobal(t *testing.T) {
	stmts := parseSource(t, `
class Empty {
}
`)
	prog, err := compiler.Compile(stmts, "test.tiny")
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	idx, ok := prog.GlobalNames["Empty"]
	if !ok {
		t.Fatal("expected Empty to be registered as a global")
	}
	if prog.Globals[idx].Kind() != value.KindClass {
		t.Fatalf("expected global Empty to be a Class value, got kind %v", prog.Globals[idx].Kind())
	}
}

func TestMethodCompilesUnderQualifiedName(t *testing.T) {
	stmts := parseSource(t, `
class Greeter {
	function hello() {
		return "hi";
	}
}
`)
	prog, err := compiler.Compile(stmts, "test.tiny")
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	if _, ok := prog.Symbols["Greeter.hello"]; !ok {
		t.Fatal("expected Greeter.hello symbol")
	}
}

func TestAnonymousFunctionGetsSyntheticQualifiedName(t *testing.T) {
	stmts := parseSource(t, `
class Ops {
	function makeAdder() {
		var f = function(a, b) { return a + b; };
		return f;
	}
}
`)
	prog, err := compiler.Compile(stmts, "test.tiny")
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	found := false
	for name := range prog.Symbols {
		if name == "Ops.func1" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a synthesized Ops.func1 symbol, got symbols: %v", prog.Symbols)
	}
}

func TestDuplicateClassDeclarationIsACompileError(t *testing.T) {
	stmts := parseSource(t, `
class Dup {
}
class Dup {
}
`)
	if _, err := compiler.Compile(stmts, "test.tiny"); err == nil {
		t.Fatal("expected a compile error for a duplicate class declaration")
	}
}

func TestAssignmentToUndeclaredVariableIsACompileError(t *testing.T) {
	stmts := parseSource(t, `
class Broken {
	function run() {
		missing = 1;
	}
}
`)
	if _, err := compiler.Compile(stmts, "test.tiny"); err == nil {
		t.Fatal("expected a compile error for assignment to an undeclared variable")
	}
}

func TestForILoopEmitsBackPatchedJumps(t *testing.T) {
	stmts := parseSource(t, `
class Loops {
	function count(n) {
		var total = 0;
		for (var i = 0; i < n; i = i + 1) {
			total = total + i;
		}
		return total;
	}
}
`)
	prog, err := compiler.Compile(stmts, "test.tiny")
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	sawJump, sawJumpIfFalse := false, false
	for _, ins := range prog.Instructions {
		if ins.Op == bytecode.OpJump {
			sawJump = true
		}
		if ins.Op == bytecode.OpJumpIfFalse {
			sawJumpIfFalse = true
		}
	}
	if !sawJump || !sawJumpIfFalse {
		t.Fatal("expected both Jump and JumpIfFalse instructions in a for loop")
	}
}
