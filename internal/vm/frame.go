// Package vm implements TinyScript's stack machine: per-call activation
// frames (§4.5) and the fetch-decode-execute loop that interprets a
// compiled Program (§4.4).
package vm

import (
	"tinyscript/internal/errors"
	"tinyscript/internal/value"
)

// Frame is a per-call activation record (§3, §4.5): a name for
// diagnostics, a return address (meaningless when HasReturn is false, i.e.
// the root frame), a dense slot-indexed local-variable array, and its own
// operand stack.
type Frame struct {
	Name      string
	ReturnIP  int
	HasReturn bool
	Stack     []value.Value
	Locals    []value.Value
}

// NewFrame builds a frame whose locals are initialised to args in
// declaration order (§4.2's Call contract: "create a new frame with locals
// initialised to the args in declaration order").
func NewFrame(name string, returnIP int, hasReturn bool, args []value.Value) *Frame {
	locals := make([]value.Value, len(args))
	copy(locals, args)
	return &Frame{Name: name, ReturnIP: returnIP, HasReturn: hasReturn, Locals: locals}
}

func (f *Frame) Push(v value.Value) {
	f.Stack = append(f.Stack, v)
}

func (f *Frame) Pop() (value.Value, error) {
	if len(f.Stack) == 0 {
		return value.Value{}, errors.NewBytecodeError("pop from empty operand stack")
	}
	v := f.Stack[len(f.Stack)-1]
	f.Stack = f.Stack[:len(f.Stack)-1]
	return v, nil
}

// PopN pops the top n values, returning them deepest-to-shallowest (i.e.
// in the order they were originally pushed), per §4.5's pop_n contract.
func (f *Frame) PopN(n int) ([]value.Value, error) {
	if n == 0 {
		return nil, nil
	}
	if len(f.Stack) < n {
		return nil, errors.NewBytecodeError("operand stack underflow")
	}
	vs := make([]value.Value, n)
	copy(vs, f.Stack[len(f.Stack)-n:])
	f.Stack = f.Stack[:len(f.Stack)-n]
	return vs, nil
}

// Pop2 pops right then left, returning (left, right) — the binary-operator
// convention shared by every arithmetic/comparison opcode (§4.5).
func (f *Frame) Pop2() (value.Value, value.Value, error) {
	right, err := f.Pop()
	if err != nil {
		return value.Value{}, value.Value{}, err
	}
	left, err := f.Pop()
	if err != nil {
		return value.Value{}, value.Value{}, err
	}
	return left, right, nil
}

// SetSlot grows Locals with Null padding if i is past the current length,
// per §3's "auto-grown with Null padding when assigning past the current
// length" local-slot contract.
func (f *Frame) SetSlot(i int, v value.Value) {
	for i >= len(f.Locals) {
		f.Locals = append(f.Locals, value.Null)
	}
	f.Locals[i] = v
}

// MoveTopToSlot implements StoreLocal/MoveToLocal: pop then set.
func (f *Frame) MoveTopToSlot(i int) error {
	v, err := f.Pop()
	if err != nil {
		return err
	}
	f.SetSlot(i, v)
	return nil
}

// CopyTopToSlot implements CopyToLocal: peek then set, stack unchanged.
func (f *Frame) CopyTopToSlot(i int) error {
	if len(f.Stack) == 0 {
		return errors.NewBytecodeError("peek from empty operand stack")
	}
	f.SetSlot(i, f.Stack[len(f.Stack)-1])
	return nil
}

// GetSlot borrows a local; out-of-bounds/uninitialised access is a failure.
func (f *Frame) GetSlot(i int) (value.Value, error) {
	if i < 0 || i >= len(f.Locals) {
		return value.Value{}, errors.NewLookupError("undefined local slot")
	}
	return f.Locals[i], nil
}

// LoadSlotToStack implements LoadLocal: push a clone of slot i.
func (f *Frame) LoadSlotToStack(i int) error {
	v, err := f.GetSlot(i)
	if err != nil {
		return err
	}
	f.Push(value.Clone(v))
	return nil
}
