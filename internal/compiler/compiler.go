// Package compiler implements TinyScript's two-phase compiler (§4.3): a
// declaration pass that registers every class as a global and records its
// methods under qualified names, followed by per-function code generation
// into a single flat instruction vector. The phase split and the
// visitor-driven emission technique follow the reference implementation's
// hoisting-then-codegen compiler, re-targeted at class/global declarations
// instead of function hoisting.
package compiler

import (
	"tinyscript/internal/bytecode"
	"tinyscript/internal/errors"
	"tinyscript/internal/parser"
	"tinyscript/internal/value"
)

// funcUnit is one function awaiting code generation: an explicit method, a
// synthesised constructor, or an anonymous function discovered mid-codegen.
type funcUnit struct {
	qualifiedName string
	className     string
	params        []string
	body          []parser.Stmt
	isMethod      bool // true if slot 0 is bound to "this"
}

// compilerState is shared across every funcCompiler spawned for a single
// Compile call: the program under construction, the pending function queue,
// and the class-name-to-global-index table `new` expressions resolve
// against.
type compilerState struct {
	prog             *bytecode.Program
	classGlobalIndex map[string]int
	queue            []*funcUnit
	anonCounter      int
	fileName         string
}

// Compile lowers a parsed script (import/class top-level nodes) into a
// Program, following §4.3's two phases.
func Compile(stmts []parser.Stmt, fileName string) (*bytecode.Program, error) {
	state := &compilerState{
		prog:             bytecode.NewProgram(),
		classGlobalIndex: map[string]int{},
		fileName:         fileName,
	}

	var classes []*parser.ClassStmt
	for _, s := range stmts {
		switch cs := s.(type) {
		case *parser.ClassStmt:
			classes = append(classes, cs)
		case *parser.ImportStmt:
			// Import resolution is host responsibility (§6); the core only
			// needs the class/function declarations the host has already
			// spliced in by the time Compile runs.
		case *parser.CommentStmt:
			// No-op node (§4.1): carries no code to generate.
		default:
			return nil, errors.NewCompileError("unsupported top-level statement")
		}
	}

	for _, cs := range classes {
		if err := state.declareClass(cs); err != nil {
			return nil, err
		}
	}

	for len(state.queue) > 0 {
		unit := state.queue[0]
		state.queue = state.queue[1:]
		fc := &funcCompiler{
			state:         state,
			locals:        map[string]int{},
			className:     unit.className,
			qualifiedName: unit.qualifiedName,
		}
		if err := fc.compile(unit); err != nil {
			return nil, err
		}
	}

	return state.prog, nil
}

// declareClass builds the class's template (§3: FunctionRef per method, Null
// per field), queues every method and the constructor for code generation,
// and inserts the class into the program's global table.
func (s *compilerState) declareClass(cs *parser.ClassStmt) error {
	if _, exists := s.classGlobalIndex[cs.Name]; exists {
		return errors.NewCompileError("duplicate class declaration: " + cs.Name)
	}

	cls := &value.Class{Name: cs.Name, Members: map[string]value.Value{}}
	for _, f := range cs.Fields {
		cls.Members[f.Name] = value.Null
		cls.FieldOrder = append(cls.FieldOrder, f.Name)
	}
	for _, m := range cs.Methods {
		qname := cs.Name + "." + m.Name
		cls.Members[m.Name] = value.NewFunctionRef(qname)
		s.queue = append(s.queue, &funcUnit{
			qualifiedName: qname,
			className:     cs.Name,
			params:        m.Params,
			body:          m.Body,
			isMethod:      true,
		})
	}

	ctorName := cs.Name + ".constructor"
	cls.Members["constructor"] = value.NewFunctionRef(ctorName)
	if cs.Constructor != nil {
		s.queue = append(s.queue, &funcUnit{
			qualifiedName: ctorName,
			className:     cs.Name,
			params:        cs.Constructor.Params,
			body:          cs.Constructor.Body,
			isMethod:      true,
		})
	} else {
		// Synthesise a constructor whose body is exactly the field
		// initialisers, reusing ordinary `this.field = default` assignment
		// codegen rather than a bespoke lowering path.
		var body []parser.Stmt
		for _, f := range cs.Fields {
			if f.Default == nil {
				continue
			}
			body = append(body, &parser.AssignStmt{
				Target: &parser.Chain{Root: "this", Items: []parser.ChainItem{{Name: f.Name}}},
				Value:  f.Default,
			})
		}
		s.queue = append(s.queue, &funcUnit{
			qualifiedName: ctorName,
			className:     cs.Name,
			params:        nil,
			body:          body,
			isMethod:      true,
		})
	}

	idx := s.prog.InsertGlobal(cs.Name, value.NewClass(cls))
	s.classGlobalIndex[cs.Name] = idx
	return nil
}

// funcCompiler generates code for exactly one function body: a method, a
// synthesised constructor, or an anonymous function. It implements
// parser.ExprVisitor and parser.StmtVisitor so that codegen is driven by the
// AST's own Accept dispatch, following the reference implementation's
// visitor-based statement compiler.
type funcCompiler struct {
	state         *compilerState
	locals        map[string]int
	nextSlot      int
	className     string
	qualifiedName string
}

func (c *funcCompiler) allocSlot(name string) (int, error) {
	if _, exists := c.locals[name]; exists {
		return 0, errors.NewCompileError("duplicate variable declaration: " + name)
	}
	slot := c.nextSlot
	c.locals[name] = slot
	c.nextSlot++
	return slot, nil
}

func (c *funcCompiler) allocTemp() int {
	slot := c.nextSlot
	c.nextSlot++
	return slot
}

func (c *funcCompiler) emit(ins bytecode.Instruction) int {
	return c.state.prog.Emit(ins, bytecode.DebugInfo{File: c.state.fileName, Function: c.qualifiedName})
}

// here returns the index the next emitted instruction will occupy.
func (c *funcCompiler) here() int {
	return len(c.state.prog.Instructions)
}

// patch back-fills a previously reserved jump's delta so that ip+delta lands
// on target, per §4.2's "Jump[Δ] adds Δ to the instruction pointer"
// contract (Δ is relative to the jump instruction's own index).
func (c *funcCompiler) patch(at, target int) {
	c.state.prog.Patch(at, target-at)
}

// reserve emits a jump placeholder (Int left at 0) and returns its index for
// a later patch call.
func (c *funcCompiler) reserve(op bytecode.OpCode) int {
	return c.emit(bytecode.Instruction{Op: op})
}

// jumpTo emits a jump whose target is already known, computing its delta
// immediately rather than reserving a placeholder.
func (c *funcCompiler) jumpTo(op bytecode.OpCode, target int) {
	at := c.emit(bytecode.Instruction{Op: op})
	c.patch(at, target)
}

func (c *funcCompiler) emitExpr(e parser.Expr) error {
	_, err := e.Accept(c)
	return err
}

func (c *funcCompiler) emitStmt(s parser.Stmt) error {
	_, err := s.Accept(c)
	return err
}

// compile generates this function's body into the shared program, registers
// it in the symbol table at its starting offset, and appends a default
// Return[false] if the body doesn't already end in one (§4.3).
func (c *funcCompiler) compile(unit *funcUnit) error {
	start := c.here()
	c.state.prog.Symbols[unit.qualifiedName] = start

	if unit.isMethod {
		if _, err := c.allocSlot("this"); err != nil {
			return err
		}
	}
	for _, p := range unit.params {
		if _, err := c.allocSlot(p); err != nil {
			return err
		}
	}

	for _, stmt := range unit.body {
		if err := c.emitStmt(stmt); err != nil {
			return err
		}
	}

	lastIsReturn := false
	if c.here() > start {
		last := c.state.prog.Instructions[c.here()-1]
		lastIsReturn = last.Op == bytecode.OpReturn
	}
	if !lastIsReturn {
		c.emit(bytecode.Instruction{Op: bytecode.OpReturn, Int: 0})
	}
	return nil
}

// nextAnonName returns a fresh synthetic qualified name for an anonymous
// function literal encountered during codegen (§4.3, §9: anonymous
// functions compile to top-level functions under synthetic names).
func (s *compilerState) nextAnonName(enclosingClass string) string {
	s.anonCounter++
	prefix := enclosingClass
	if prefix == "" {
		prefix = "anon"
	}
	return prefix + ".func" + itoa(s.anonCounter)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func literalValue(l *parser.Literal) value.Value {
	switch l.Kind {
	case parser.LitInt:
		return value.Integer(l.I)
	case parser.LitFloat:
		return value.Float(l.F)
	case parser.LitBool:
		return value.Bool(l.B)
	case parser.LitString:
		return value.String(l.S)
	default:
		return value.Null
	}
}

func binaryOpCode(op parser.BinaryOp) bytecode.OpCode {
	switch op {
	case parser.OpEq:
		return bytecode.OpEq
	case parser.OpNe:
		return bytecode.OpNe
	case parser.OpLt:
		return bytecode.OpLt
	case parser.OpLe:
		return bytecode.OpLe
	case parser.OpGt:
		return bytecode.OpGt
	case parser.OpGe:
		return bytecode.OpGe
	case parser.OpAdd:
		return bytecode.OpAdd
	case parser.OpSub:
		return bytecode.OpSub
	case parser.OpMul:
		return bytecode.OpMul
	case parser.OpDiv:
		return bytecode.OpDiv
	case parser.OpPow:
		return bytecode.OpPow
	default:
		return bytecode.OpAdd
	}
}
