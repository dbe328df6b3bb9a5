package bytecode

import "tinyscript/internal/value"

// DebugInfo stores source location for each bytecode instruction, kept from
// the reference implementation's per-instruction diagnostics idiom.
type DebugInfo struct {
	Line     int
	Column   int
	File     string
	Function string
}

// Instruction is one typed entry in a Program's flat instruction vector.
// Immediates are carried as machine words, not byte-packed, per §4.2's
// "immediate sizes are unconstrained."
type Instruction struct {
	Op OpCode

	// Int is the generic integer immediate: slot index (StoreLocal,
	// MoveToLocal, CopyToLocal, LoadLocal, LoadGlobal), pop count (Pop),
	// jump delta (Jump, JumpIfFalse), argument count (Call), or the
	// has-value flag encoded as 0/1 (Return).
	Int int

	// Str carries a member name (unused directly by any opcode today but
	// reserved for diagnostics) or a Halt message.
	Str string

	// Value carries a literal operand for Push.
	Value value.Value
}

// Program is the compiler's output and the VM's input: a flat instruction
// vector, a symbol table mapping qualified function names to instruction
// offsets, and a global table of values addressed by index (§3).
type Program struct {
	Instructions []Instruction
	Symbols      map[string]int
	Globals      []value.Value
	Debug        []DebugInfo

	// GlobalNames maps a global's name (e.g. a class name) to its index,
	// mirroring Symbols but for the Globals table.
	GlobalNames map[string]int
}

// NewProgram returns an empty, ready-to-append Program.
func NewProgram() *Program {
	return &Program{
		Instructions: []Instruction{},
		Symbols:      make(map[string]int),
		Globals:      []value.Value{},
		Debug:        []DebugInfo{},
		GlobalNames:  make(map[string]int),
	}
}

// Emit appends an instruction and returns its index, useful for recording a
// jump placeholder position to back-patch later.
func (p *Program) Emit(ins Instruction, debug DebugInfo) int {
	p.Instructions = append(p.Instructions, ins)
	p.Debug = append(p.Debug, debug)
	return len(p.Instructions) - 1
}

// Patch overwrites a previously emitted instruction's Int immediate, used for
// back-patching jump deltas once the target offset is known.
func (p *Program) Patch(at int, delta int) {
	p.Instructions[at].Int = delta
}

// InsertGlobal appends a value to the global table and records its index
// under name, returning that index.
func (p *Program) InsertGlobal(name string, v value.Value) int {
	idx := len(p.Globals)
	p.Globals = append(p.Globals, v)
	p.GlobalNames[name] = idx
	return idx
}

// DebugAt returns the debug info for an instruction index, or the zero value
// if out of range.
func (p *Program) DebugAt(ip int) DebugInfo {
	if ip >= 0 && ip < len(p.Debug) {
		return p.Debug[ip]
	}
	return DebugInfo{}
}
