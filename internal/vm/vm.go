package vm

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"tinyscript/internal/bytecode"
	"tinyscript/internal/errors"
	"tinyscript/internal/value"
)

// NativeFunc is a host-supplied function reachable from TinyScript code
// without a new opcode: the DOMAIN STACK's native-call bridge (hostdb,
// hostnet) registers these under the same "<ClassName>.<methodName>"
// qualified-name convention the core already uses for FunctionRef, and
// Call consults this table exactly when a name isn't found in the
// compiled program's own symbol table.
type NativeFunc func(args []value.Value) (value.Value, error)

// VM is the stack machine of §4.4: a fetch-decode-execute loop over a
// compiled Program, a stack of activation Frames, and an optional
// host-supplied native-function registry.
type VM struct {
	Program *bytecode.Program
	Natives map[string]NativeFunc
	Stdout  io.Writer
}

// New returns a VM ready to execute prog, with output directed to os.Stdout
// (§6: "Print writes ... to the host's standard output channel") until
// overridden.
func New(prog *bytecode.Program) *VM {
	return &VM{Program: prog, Natives: make(map[string]NativeFunc), Stdout: os.Stdout}
}

// RegisterNative adds a host function under a qualified name, e.g. "Db.open".
func (vm *VM) RegisterNative(name string, fn NativeFunc) {
	vm.Natives[name] = fn
}

// Run executes entry (format "<ClassName>.<methodName>") with args as the
// root frame's locals, per §4.4's entry contract. Methods keep `this` in
// slot 0, so a non-empty args supplies the receiver first and the
// parameters after it. With no args, when entry names a member of a class,
// slot 0 is a fresh instance of that class (fields copied from the class
// template; no constructor is run). ctx is consulted between
// instructions so a host can cancel a run cooperatively (§5: "the host may
// terminate the interpreter between instructions").
func (vm *VM) Run(ctx context.Context, entry string, args []value.Value) (value.Value, error) {
	start, ok := vm.Program.Symbols[entry]
	if !ok {
		return value.Value{}, errors.NewLookupError("unknown entry symbol: " + entry).WithFunction(entry)
	}

	if len(args) == 0 {
		if dot := strings.LastIndex(entry, "."); dot >= 0 {
			if gi, ok := vm.Program.GlobalNames[entry[:dot]]; ok {
				if cls, ok := vm.Program.Globals[gi].AsClass(); ok {
					if _, ok := cls.Members[entry[dot+1:]]; ok {
						args = []value.Value{value.NewObject(value.DeepCopyClassTemplate(cls))}
					}
				}
			}
		}
	}

	frames := []*Frame{NewFrame(entry, 0, false, args)}
	ip := start

	for {
		select {
		case <-ctx.Done():
			return value.Value{}, errors.NewBytecodeError("execution cancelled").WithCause(ctx.Err())
		default:
		}

		if ip < 0 || ip >= len(vm.Program.Instructions) {
			return value.Value{}, errors.NewBytecodeError("instruction pointer ran off the end of the program").WithInstruction(ip)
		}

		frame := frames[len(frames)-1]
		ins := vm.Program.Instructions[ip]

		switch ins.Op {
		case bytecode.OpPush:
			frame.Push(ins.Value)
			ip++

		case bytecode.OpPop:
			if _, err := frame.PopN(ins.Int); err != nil {
				return value.Value{}, vm.fail(err, frame, ip)
			}
			ip++

		case bytecode.OpStoreLocal, bytecode.OpMoveToLocal:
			if err := frame.MoveTopToSlot(ins.Int); err != nil {
				return value.Value{}, vm.fail(err, frame, ip)
			}
			ip++

		case bytecode.OpCopyToLocal:
			if err := frame.CopyTopToSlot(ins.Int); err != nil {
				return value.Value{}, vm.fail(err, frame, ip)
			}
			ip++

		case bytecode.OpLoadLocal:
			if err := frame.LoadSlotToStack(ins.Int); err != nil {
				return value.Value{}, vm.fail(err, frame, ip)
			}
			ip++

		case bytecode.OpLoadGlobal:
			if ins.Int < 0 || ins.Int >= len(vm.Program.Globals) {
				return value.Value{}, vm.fail(errors.NewLookupError("undefined global"), frame, ip)
			}
			frame.Push(vm.Program.Globals[ins.Int])
			ip++

		case bytecode.OpCreateObject:
			v, err := frame.Pop()
			if err != nil {
				return value.Value{}, vm.fail(err, frame, ip)
			}
			cls, ok := v.AsClass()
			if !ok {
				return value.Value{}, vm.fail(errors.NewTypeError("CreateObject requires a Class value"), frame, ip)
			}
			frame.Push(value.NewObject(value.DeepCopyClassTemplate(cls)))
			ip++

		case bytecode.OpArrayLen:
			v, err := frame.Pop()
			if err != nil {
				return value.Value{}, vm.fail(err, frame, ip)
			}
			n, err := value.Length(v)
			if err != nil {
				return value.Value{}, vm.fail(errors.NewTypeError(err.Error()), frame, ip)
			}
			frame.Push(value.Integer(int32(n)))
			ip++

		case bytecode.OpArrayAppend:
			v, err := frame.Pop()
			if err != nil {
				return value.Value{}, vm.fail(err, frame, ip)
			}
			a, err := frame.Pop()
			if err != nil {
				return value.Value{}, vm.fail(err, frame, ip)
			}
			arr, ok := a.AsArray()
			if !ok {
				return value.Value{}, vm.fail(errors.NewTypeError("ArrayAppend requires an Array"), frame, ip)
			}
			arr.Elems = append(arr.Elems, v)
			frame.Push(a)
			ip++

		case bytecode.OpDictInsert:
			v, err := frame.Pop()
			if err != nil {
				return value.Value{}, vm.fail(err, frame, ip)
			}
			k, err := frame.Pop()
			if err != nil {
				return value.Value{}, vm.fail(err, frame, ip)
			}
			d, err := frame.Pop()
			if err != nil {
				return value.Value{}, vm.fail(err, frame, ip)
			}
			dict, ok := d.AsDictionary()
			if !ok {
				return value.Value{}, vm.fail(errors.NewTypeError("DictInsert requires a Dictionary"), frame, ip)
			}
			dict.Entries[k.String()] = v
			frame.Push(d)
			ip++

		case bytecode.OpIndexGet:
			key, err := frame.Pop()
			if err != nil {
				return value.Value{}, vm.fail(err, frame, ip)
			}
			coll, err := frame.Pop()
			if err != nil {
				return value.Value{}, vm.fail(err, frame, ip)
			}
			res, err := vm.indexGet(coll, key)
			if err != nil {
				return value.Value{}, vm.fail(err, frame, ip)
			}
			frame.Push(res)
			ip++

		case bytecode.OpIndexSet:
			key, err := frame.Pop()
			if err != nil {
				return value.Value{}, vm.fail(err, frame, ip)
			}
			val, err := frame.Pop()
			if err != nil {
				return value.Value{}, vm.fail(err, frame, ip)
			}
			coll, err := frame.Pop()
			if err != nil {
				return value.Value{}, vm.fail(err, frame, ip)
			}
			res, err := indexSet(coll, key, val)
			if err != nil {
				return value.Value{}, vm.fail(err, frame, ip)
			}
			frame.Push(res)
			ip++

		case bytecode.OpJump:
			ip += ins.Int

		case bytecode.OpJumpIfFalse:
			b, err := frame.Pop()
			if err != nil {
				return value.Value{}, vm.fail(err, frame, ip)
			}
			bv, ok := b.AsBool()
			if !ok {
				return value.Value{}, vm.fail(errors.NewTypeError("JumpIfFalse requires a boolean condition"), frame, ip)
			}
			if !bv {
				ip += ins.Int
			} else {
				ip++
			}

		case bytecode.OpCall:
			newIP, err := vm.call(&frames, frame, ip, ins.Int)
			if err != nil {
				return value.Value{}, vm.fail(err, frame, ip)
			}
			ip = newIP

		case bytecode.OpReturn:
			var retVal value.Value = value.Null
			if ins.Int != 0 {
				v, err := frame.Pop()
				if err != nil {
					return value.Value{}, vm.fail(err, frame, ip)
				}
				retVal = v
			}
			if !frame.HasReturn {
				return retVal, nil
			}
			returnIP := frame.ReturnIP
			frames = frames[:len(frames)-1]
			caller := frames[len(frames)-1]
			caller.Push(retVal)
			ip = returnIP

		case bytecode.OpAdd:
			if err := vm.binOp(frame, value.Add); err != nil {
				return value.Value{}, vm.fail(err, frame, ip)
			}
			ip++
		case bytecode.OpSub:
			if err := vm.binOp(frame, value.Sub); err != nil {
				return value.Value{}, vm.fail(err, frame, ip)
			}
			ip++
		case bytecode.OpMul:
			if err := vm.binOp(frame, value.Mul); err != nil {
				return value.Value{}, vm.fail(err, frame, ip)
			}
			ip++
		case bytecode.OpDiv:
			if err := vm.binOp(frame, value.Div); err != nil {
				return value.Value{}, vm.fail(err, frame, ip)
			}
			ip++
		case bytecode.OpPow:
			if err := vm.binOp(frame, value.Pow); err != nil {
				return value.Value{}, vm.fail(err, frame, ip)
			}
			ip++

		case bytecode.OpEq:
			left, right, err := frame.Pop2()
			if err != nil {
				return value.Value{}, vm.fail(err, frame, ip)
			}
			frame.Push(value.Bool(value.Equal(left, right)))
			ip++
		case bytecode.OpNe:
			left, right, err := frame.Pop2()
			if err != nil {
				return value.Value{}, vm.fail(err, frame, ip)
			}
			frame.Push(value.Bool(!value.Equal(left, right)))
			ip++
		case bytecode.OpLt:
			if err := vm.compareOp(frame, func(c int) bool { return c < 0 }); err != nil {
				return value.Value{}, vm.fail(err, frame, ip)
			}
			ip++
		case bytecode.OpLe:
			if err := vm.compareOp(frame, func(c int) bool { return c <= 0 }); err != nil {
				return value.Value{}, vm.fail(err, frame, ip)
			}
			ip++
		case bytecode.OpGt:
			if err := vm.compareOp(frame, func(c int) bool { return c > 0 }); err != nil {
				return value.Value{}, vm.fail(err, frame, ip)
			}
			ip++
		case bytecode.OpGe:
			if err := vm.compareOp(frame, func(c int) bool { return c >= 0 }); err != nil {
				return value.Value{}, vm.fail(err, frame, ip)
			}
			ip++

		case bytecode.OpAssert:
			b, err := frame.Pop()
			if err != nil {
				return value.Value{}, vm.fail(err, frame, ip)
			}
			bv, ok := b.AsBool()
			if !ok || !bv {
				return value.Value{}, vm.fail(errors.NewAssertionFailure("assertion failed"), frame, ip)
			}
			ip++

		case bytecode.OpPrint:
			v, err := frame.Pop()
			if err != nil {
				return value.Value{}, vm.fail(err, frame, ip)
			}
			fmt.Fprintln(vm.Stdout, v.String())
			ip++

		case bytecode.OpHalt:
			if len(frame.Stack) > 0 {
				return frame.Stack[len(frame.Stack)-1], nil
			}
			return value.Null, nil

		default:
			return value.Value{}, vm.fail(errors.NewBytecodeError(fmt.Sprintf("unknown opcode %v", ins.Op)), frame, ip)
		}
	}
}

// call implements Call[n] (§4.2): pop n args and the function reference,
// then either push a new compiled-function frame or, if the name isn't in
// the program's own symbol table, dispatch it as a native call (DOMAIN
// STACK). It returns the instruction pointer execution should resume at.
func (vm *VM) call(frames *[]*Frame, frame *Frame, ip int, n int) (int, error) {
	args, err := frame.PopN(n)
	if err != nil {
		return 0, err
	}
	fnv, err := frame.Pop()
	if err != nil {
		return 0, err
	}
	fnref, ok := fnv.AsFunctionRef()
	if !ok {
		return 0, errors.NewTypeError("Call target is not a function reference")
	}

	if entry, ok := vm.Program.Symbols[fnref.Name]; ok {
		*frames = append(*frames, NewFrame(fnref.Name, ip+1, true, args))
		return entry, nil
	}
	if native, ok := vm.Natives[fnref.Name]; ok {
		// A native reached as `receiver.Name_fn(...)` receives only the
		// script's own arguments: the Object receiver that method-call
		// lowering pushes first is dropped.
		if len(args) > 0 && args[0].Kind() == value.KindObject {
			args = args[1:]
		}
		result, err := native(args)
		if err != nil {
			return 0, errors.NewLookupError(err.Error()).WithFunction(fnref.Name)
		}
		frame.Push(result)
		return ip + 1, nil
	}
	return 0, errors.NewLookupError("unresolved function: " + fnref.Name).WithFunction(fnref.Name)
}

func (vm *VM) binOp(frame *Frame, op func(left, right value.Value) (value.Value, error)) error {
	left, right, err := frame.Pop2()
	if err != nil {
		return err
	}
	res, err := op(left, right)
	if err != nil {
		return errors.NewTypeError(err.Error())
	}
	frame.Push(res)
	return nil
}

func (vm *VM) compareOp(frame *Frame, want func(cmp int) bool) error {
	left, right, err := frame.Pop2()
	if err != nil {
		return err
	}
	cmp, err := value.Compare(left, right)
	if err != nil {
		return errors.NewTypeError(err.Error())
	}
	frame.Push(value.Bool(want(cmp)))
	return nil
}

// indexGet implements IndexGet over Array+Integer, Dictionary+String, and
// Object+String (§4.2; the Object case is a SUPPLEMENTED FEATURE beyond
// the grounding source's incomplete snapshot). A missing Object field that
// matches a registered native function's flattened name resolves to that
// native's FunctionRef (DOMAIN STACK bridge), never polluting the object's
// own field map.
func (vm *VM) indexGet(coll, key value.Value) (value.Value, error) {
	switch coll.Kind() {
	case value.KindArray:
		arr, _ := coll.AsArray()
		idx, ok := key.AsInteger()
		if !ok {
			return value.Value{}, errors.NewTypeError("array index must be an integer")
		}
		if int(idx) < 0 || int(idx) >= len(arr.Elems) {
			return value.Value{}, errors.NewLookupError("array index out of bounds")
		}
		return arr.Elems[idx], nil
	case value.KindDictionary:
		dict, _ := coll.AsDictionary()
		k, ok := key.AsString()
		if !ok {
			return value.Value{}, errors.NewTypeError("dictionary key must be a string")
		}
		v, ok := dict.Entries[k]
		if !ok {
			return value.Value{}, errors.NewLookupError("missing dictionary key: " + k)
		}
		return v, nil
	case value.KindObject:
		obj, _ := coll.AsObject()
		k, ok := key.AsString()
		if !ok {
			return value.Value{}, errors.NewTypeError("object member name must be a string")
		}
		if v, ok := obj.Fields[k]; ok {
			return v, nil
		}
		if fn, ok := vm.resolveNativeField(k); ok {
			return fn, nil
		}
		return value.Value{}, errors.NewLookupError("missing member: " + k)
	default:
		return value.Value{}, errors.NewTypeError("cannot index into a " + coll.Kind().String())
	}
}

// resolveNativeField maps a TinyScript-legal flattened member name (e.g.
// "Db_open", since identifiers cannot contain '.') back to the dotted
// native registry key ("Db.open") a host module registered under.
func (vm *VM) resolveNativeField(flat string) (value.Value, bool) {
	dotted := strings.Replace(flat, "_", ".", 1)
	if _, ok := vm.Natives[dotted]; ok {
		return value.NewFunctionRef(dotted), true
	}
	return value.Value{}, false
}

// indexSet implements IndexSet over Array+Integer, Dictionary+String, and
// Object+String (§4.2). Arrays auto-grow with Null padding on an
// out-of-bounds positive write, mirroring local-slot auto-grow (§3).
func indexSet(coll, key, val value.Value) (value.Value, error) {
	switch coll.Kind() {
	case value.KindArray:
		arr, _ := coll.AsArray()
		idx, ok := key.AsInteger()
		if !ok {
			return value.Value{}, errors.NewTypeError("array index must be an integer")
		}
		if idx < 0 {
			return value.Value{}, errors.NewLookupError("array index out of bounds")
		}
		for int(idx) >= len(arr.Elems) {
			arr.Elems = append(arr.Elems, value.Null)
		}
		arr.Elems[idx] = val
		return coll, nil
	case value.KindDictionary:
		dict, _ := coll.AsDictionary()
		k, ok := key.AsString()
		if !ok {
			return value.Value{}, errors.NewTypeError("dictionary key must be a string")
		}
		dict.Entries[k] = val
		return coll, nil
	case value.KindObject:
		obj, _ := coll.AsObject()
		k, ok := key.AsString()
		if !ok {
			return value.Value{}, errors.NewTypeError("object member name must be a string")
		}
		obj.Fields[k] = val
		return coll, nil
	default:
		return value.Value{}, errors.NewTypeError("cannot index-assign into a " + coll.Kind().String())
	}
}

// fail attaches the current function name and instruction index to a
// TinyError, so every runtime failure names the site without a full stack
// trace (§7).
func (vm *VM) fail(err error, frame *Frame, ip int) error {
	if te, ok := err.(*errors.TinyError); ok {
		return te.WithFunction(frame.Name).WithInstruction(ip)
	}
	return err
}
