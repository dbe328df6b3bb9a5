package vm_test

import (
	"context"
	"strings"
	"testing"

	"tinyscript/internal/bytecode"
	"tinyscript/internal/compiler"
	"tinyscript/internal/lexer"
	"tinyscript/internal/parser"
	"tinyscript/internal/value"
	"tinyscript/internal/vm"
)

func compileSource(t *testing.T, src string) *bytecode.Program {
	t.Helper()
	toks := lexer.NewScanner(src).ScanTokens()
	stmts, err := parser.NewParserWithFile(toks, "test.tiny").Parse()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	prog, err := compiler.Compile(stmts, "test.tiny")
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	return prog
}

func TestArithmeticAndControlFlow(t *testing.T) {
	src := `
class Math {
	function sumTo(n) {
		var total = 0;
		var i = 0;
		while (i < n) {
			total = total + i;
			i = i + 1;
		}
		return total;
	}
}
`
	prog := compileSource(t, src)
	m := vm.New(prog)
	// Slot 0 of a method is the receiver `this` (unused here); n follows it.
	result, err := m.Run(context.Background(), "Math.sumTo", []value.Value{value.Null, value.Integer(5)})
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	got, ok := result.AsInteger()
	if !ok || got != 10 {
		t.Fatalf("expected 10, got %v", result)
	}
}

func TestForInOverArray(t *testing.T) {
	src := `
class Collector {
	function total(xs) {
		var acc = 0;
		for (x in xs) {
			acc = acc + x;
		}
		return acc;
	}
}
`
	prog := compileSource(t, src)
	m := vm.New(prog)
	arr := value.NewArray([]value.Value{value.Integer(1), value.Integer(2), value.Integer(3)})
	result, err := m.Run(context.Background(), "Collector.total", []value.Value{value.Null, arr})
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	got, ok := result.AsInteger()
	if !ok || got != 6 {
		t.Fatalf("expected 6, got %v", result)
	}
}

func TestObjectFieldsDoNotAlias(t *testing.T) {
	src := `
class Counter {
	var count = 0;

	function bump() {
		this.count = this.count + 1;
		return this.count;
	}
}
class Factory {
	function makeTwo() {
		var a = new Counter();
		var b = new Counter();
		a.bump();
		a.bump();
		b.bump();
		return a.count - b.count;
	}
}
`
	prog := compileSource(t, src)
	m := vm.New(prog)
	result, err := m.Run(context.Background(), "Factory.makeTwo", nil)
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	got, ok := result.AsInteger()
	if !ok || got != 1 {
		t.Fatalf("expected 1 (objects must not alias each other), got %v", result)
	}
}

func TestMethodDispatchAndImplicitThis(t *testing.T) {
	src := `
class Greeter {
	var name = "world";

	function greeting() {
		return this.buildMessage();
	}

	function buildMessage() {
		return "hello, " + this.name;
	}
}
`
	prog := compileSource(t, src)
	m := vm.New(prog)
	// A constructor returns Null, so the instance is built here from the
	// class template and passed as the receiver to both calls.
	cls, _ := prog.Globals[prog.GlobalNames["Greeter"]].AsClass()
	obj := value.NewObject(value.DeepCopyClassTemplate(cls))
	_, err := m.Run(context.Background(), "Greeter.constructor", []value.Value{obj})
	if err != nil {
		t.Fatalf("constructor run error: %v", err)
	}
	result, err := m.Run(context.Background(), "Greeter.greeting", []value.Value{obj})
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	got, ok := result.AsString()
	if !ok || got != "hello, world" {
		t.Fatalf("expected %q, got %v", "hello, world", result)
	}
}

func TestDivisionByZeroIsRuntimeError(t *testing.T) {
	src := `
class Arith {
	function divide(a, b) {
		return a / b;
	}
}
`
	prog := compileSource(t, src)
	m := vm.New(prog)
	_, err := m.Run(context.Background(), "Arith.divide", []value.Value{value.Null, value.Integer(1), value.Integer(0)})
	if err == nil {
		t.Fatal("expected a division-by-zero error")
	}
}

func TestAssertFailureStopsExecution(t *testing.T) {
	src := `
class Checker {
	function check(n) {
		assert n > 0;
		return n;
	}
}
`
	prog := compileSource(t, src)
	m := vm.New(prog)
	_, err := m.Run(context.Background(), "Checker.check", []value.Value{value.Null, value.Integer(-1)})
	if err == nil {
		t.Fatal("expected an assertion failure")
	}
}

func TestNativeFunctionDispatchViaDotFlattening(t *testing.T) {
	src := `
class Script {
	function run() {
		return this.Echo_say("hi");
	}
}
`
	prog := compileSource(t, src)
	m := vm.New(prog)
	m.RegisterNative("Echo.say", func(args []value.Value) (value.Value, error) {
		s, _ := args[0].AsString()
		return value.String(strings.ToUpper(s)), nil
	})
	result, err := m.Run(context.Background(), "Script.run", nil)
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	got, _ := result.AsString()
	if got != "HI" {
		t.Fatalf("expected HI, got %v", result)
	}
}

func TestArrayIndexAssignGrowsWithNullPadding(t *testing.T) {
	src := `
class Boxes {
	function place(xs, i, v) {
		xs[i] = v;
		return xs;
	}
}
`
	prog := compileSource(t, src)
	m := vm.New(prog)
	arr := value.NewArray(nil)
	result, err := m.Run(context.Background(), "Boxes.place", []value.Value{value.Null, arr, value.Integer(2), value.String("x")})
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	got, _ := result.AsArray()
	if len(got.Elems) != 3 {
		t.Fatalf("expected array to grow to length 3, got %d", len(got.Elems))
	}
	if got.Elems[0].Kind() != value.KindNull || got.Elems[1].Kind() != value.KindNull {
		t.Fatalf("expected null padding, got %v", got.Elems)
	}
	s, _ := got.Elems[2].AsString()
	if s != "x" {
		t.Fatalf("expected x at index 2, got %v", got.Elems[2])
	}
}

func TestContextCancellationStopsExecution(t *testing.T) {
	src := `
class Loop {
	function forever() {
		var i = 0;
		while (i < 1) {
			i = i;
		}
		return i;
	}
}
`
	prog := compileSource(t, src)
	m := vm.New(prog)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.Run(ctx, "Loop.forever", nil)
	if err == nil {
		t.Fatal("expected execution to stop once the context is cancelled")
	}
}
