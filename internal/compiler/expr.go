package compiler

import (
	"tinyscript/internal/bytecode"
	"tinyscript/internal/errors"
	"tinyscript/internal/parser"
	"tinyscript/internal/value"
)

// The Visit* methods below implement parser.ExprVisitor on *funcCompiler,
// driven by each node's own Accept dispatch (emitExpr). They emit bytecode
// as a side effect; the interface{} return value is never consulted by the
// caller, only the error.

func (c *funcCompiler) VisitLiteral(e *parser.Literal) (interface{}, error) {
	c.emit(bytecode.Instruction{Op: bytecode.OpPush, Value: literalValue(e)})
	return nil, nil
}

func (c *funcCompiler) VisitVariable(e *parser.Variable) (interface{}, error) {
	slot, ok := c.locals[e.Name]
	if !ok {
		return nil, errors.NewCompileError("undeclared variable: " + e.Name)
	}
	c.emit(bytecode.Instruction{Op: bytecode.OpLoadLocal, Int: slot})
	return nil, nil
}

func (c *funcCompiler) VisitBinary(e *parser.Binary) (interface{}, error) {
	if err := c.emitExpr(e.Left); err != nil {
		return nil, err
	}
	if err := c.emitExpr(e.Right); err != nil {
		return nil, err
	}
	c.emit(bytecode.Instruction{Op: binaryOpCode(e.Operator)})
	return nil, nil
}

func (c *funcCompiler) VisitArrayLit(e *parser.ArrayLit) (interface{}, error) {
	c.emit(bytecode.Instruction{Op: bytecode.OpPush, Value: value.NewArray(nil)})
	for _, el := range e.Elements {
		if err := c.emitExpr(el); err != nil {
			return nil, err
		}
		c.emit(bytecode.Instruction{Op: bytecode.OpArrayAppend})
	}
	return nil, nil
}

func (c *funcCompiler) VisitDictionaryLit(e *parser.DictionaryLit) (interface{}, error) {
	c.emit(bytecode.Instruction{Op: bytecode.OpPush, Value: value.NewDictionary(nil)})
	for i, k := range e.Keys {
		c.emit(bytecode.Instruction{Op: bytecode.OpPush, Value: value.String(k)})
		if err := c.emitExpr(e.Values[i]); err != nil {
			return nil, err
		}
		c.emit(bytecode.Instruction{Op: bytecode.OpDictInsert})
	}
	return nil, nil
}

func (c *funcCompiler) VisitArrayIndex(e *parser.ArrayIndex) (interface{}, error) {
	slot, ok := c.locals[e.Name]
	if !ok {
		return nil, errors.NewCompileError("undeclared variable: " + e.Name)
	}
	c.emit(bytecode.Instruction{Op: bytecode.OpLoadLocal, Int: slot})
	if err := c.emitExpr(e.Index); err != nil {
		return nil, err
	}
	c.emit(bytecode.Instruction{Op: bytecode.OpIndexGet})
	return nil, nil
}

// VisitCall lowers `f(args...)`: a locally bound variable is called
// directly, otherwise the name is treated as an implicit method on `this`
// (§4.3, §9 "unqualified calls inside methods").
func (c *funcCompiler) VisitCall(e *parser.Call) (interface{}, error) {
	if slot, ok := c.locals[e.Name]; ok {
		c.emit(bytecode.Instruction{Op: bytecode.OpLoadLocal, Int: slot})
		for _, a := range e.Args {
			if err := c.emitExpr(a); err != nil {
				return nil, err
			}
		}
		c.emit(bytecode.Instruction{Op: bytecode.OpCall, Int: len(e.Args)})
		return nil, nil
	}

	thisSlot, ok := c.locals["this"]
	if !ok {
		return nil, errors.NewCompileError("call to unresolved name outside a method: " + e.Name)
	}
	c.emit(bytecode.Instruction{Op: bytecode.OpLoadLocal, Int: thisSlot})
	c.emit(bytecode.Instruction{Op: bytecode.OpPush, Value: value.String(e.Name)})
	c.emit(bytecode.Instruction{Op: bytecode.OpIndexGet})
	c.emit(bytecode.Instruction{Op: bytecode.OpLoadLocal, Int: thisSlot})
	for _, a := range e.Args {
		if err := c.emitExpr(a); err != nil {
			return nil, err
		}
	}
	c.emit(bytecode.Instruction{Op: bytecode.OpCall, Int: len(e.Args) + 1})
	return nil, nil
}

// VisitChain lowers `a.b.c`: the chain root is loaded once; each subsequent
// segment is either a plain field/indexed read or a call whose receiver is
// always the chain root re-loaded, per §4.3's literal wording.
func (c *funcCompiler) VisitChain(e *parser.Chain) (interface{}, error) {
	rootSlot, ok := c.locals[e.Root]
	if !ok {
		return nil, errors.NewCompileError("undeclared variable: " + e.Root)
	}
	c.emit(bytecode.Instruction{Op: bytecode.OpLoadLocal, Int: rootSlot})
	for _, item := range e.Items {
		switch {
		case item.IsCall:
			c.emit(bytecode.Instruction{Op: bytecode.OpPush, Value: value.String(item.Name)})
			c.emit(bytecode.Instruction{Op: bytecode.OpIndexGet})
			c.emit(bytecode.Instruction{Op: bytecode.OpLoadLocal, Int: rootSlot})
			for _, a := range item.Args {
				if err := c.emitExpr(a); err != nil {
					return nil, err
				}
			}
			c.emit(bytecode.Instruction{Op: bytecode.OpCall, Int: len(item.Args) + 1})
		case item.IsIndex:
			c.emit(bytecode.Instruction{Op: bytecode.OpPush, Value: value.String(item.Name)})
			c.emit(bytecode.Instruction{Op: bytecode.OpIndexGet})
			if err := c.emitExpr(item.Index); err != nil {
				return nil, err
			}
			c.emit(bytecode.Instruction{Op: bytecode.OpIndexGet})
		default:
			c.emit(bytecode.Instruction{Op: bytecode.OpPush, Value: value.String(item.Name)})
			c.emit(bytecode.Instruction{Op: bytecode.OpIndexGet})
		}
	}
	return nil, nil
}

// VisitNewObject lowers `new C(args...)` per §4.3: construct, stash the
// fresh object in a temp slot, dispatch its constructor, discard the
// constructor's return value, and leave the object itself as the result.
func (c *funcCompiler) VisitNewObject(e *parser.NewObject) (interface{}, error) {
	idx, ok := c.state.classGlobalIndex[e.ClassName]
	if !ok {
		return nil, errors.NewCompileError("unknown class: " + e.ClassName)
	}
	tmp := c.allocTemp()
	c.emit(bytecode.Instruction{Op: bytecode.OpLoadGlobal, Int: idx})
	c.emit(bytecode.Instruction{Op: bytecode.OpCreateObject})
	c.emit(bytecode.Instruction{Op: bytecode.OpCopyToLocal, Int: tmp})
	c.emit(bytecode.Instruction{Op: bytecode.OpPush, Value: value.String("constructor")})
	c.emit(bytecode.Instruction{Op: bytecode.OpIndexGet})
	c.emit(bytecode.Instruction{Op: bytecode.OpLoadLocal, Int: tmp})
	for _, a := range e.Args {
		if err := c.emitExpr(a); err != nil {
			return nil, err
		}
	}
	c.emit(bytecode.Instruction{Op: bytecode.OpCall, Int: len(e.Args) + 1})
	c.emit(bytecode.Instruction{Op: bytecode.OpPop, Int: 1})
	c.emit(bytecode.Instruction{Op: bytecode.OpLoadLocal, Int: tmp})
	return nil, nil
}

// VisitAnonFunction queues the literal's body under a synthetic qualified
// name and leaves a FunctionRef to it on the stack (§4.3, §9: anonymous
// functions are just named code pointers, no free-variable capture).
func (c *funcCompiler) VisitAnonFunction(e *parser.AnonFunction) (interface{}, error) {
	name := c.state.nextAnonName(c.className)
	c.state.queue = append(c.state.queue, &funcUnit{
		qualifiedName: name,
		className:     c.className,
		params:        e.Params,
		body:          e.Body,
		isMethod:      false,
	})
	c.emit(bytecode.Instruction{Op: bytecode.OpPush, Value: value.NewFunctionRef(name)})
	return nil, nil
}
