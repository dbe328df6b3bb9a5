package compiler

import (
	"tinyscript/internal/bytecode"
	"tinyscript/internal/errors"
	"tinyscript/internal/parser"
	"tinyscript/internal/value"
)

// The Visit* methods below implement parser.StmtVisitor on *funcCompiler.

func (c *funcCompiler) VisitImportStmt(s *parser.ImportStmt) (interface{}, error) {
	// Legal only at script scope; Compile already strips these before any
	// funcCompiler runs. Kept to satisfy the visitor interface.
	return nil, nil
}

func (c *funcCompiler) VisitClassStmt(s *parser.ClassStmt) (interface{}, error) {
	return nil, errors.NewCompileError("nested class declarations are not supported")
}

// VisitCommentStmt emits nothing: a comment is a no-op node (§4.1).
func (c *funcCompiler) VisitCommentStmt(s *parser.CommentStmt) (interface{}, error) {
	return nil, nil
}

func (c *funcCompiler) VisitVarDeclStmt(s *parser.VarDeclStmt) (interface{}, error) {
	slot, err := c.allocSlot(s.Name)
	if err != nil {
		return nil, err
	}
	if s.Init != nil {
		if err := c.emitExpr(s.Init); err != nil {
			return nil, err
		}
	} else {
		c.emit(bytecode.Instruction{Op: bytecode.OpPush, Value: value.Null})
	}
	c.emit(bytecode.Instruction{Op: bytecode.OpStoreLocal, Int: slot})
	return nil, nil
}

func (c *funcCompiler) VisitAssignStmt(s *parser.AssignStmt) (interface{}, error) {
	switch t := s.Target.(type) {
	case *parser.Variable:
		slot, ok := c.locals[t.Name]
		if !ok {
			return nil, errors.NewCompileError("assignment to undeclared name: " + t.Name)
		}
		if err := c.emitExpr(s.Value); err != nil {
			return nil, err
		}
		c.emit(bytecode.Instruction{Op: bytecode.OpStoreLocal, Int: slot})
		return nil, nil
	case *parser.Chain:
		return nil, c.compileChainAssign(t, s.Value)
	default:
		return nil, errors.NewCompileError("invalid assignment target")
	}
}

// compileChainAssign lowers `a.b...x = expr` / `a.b...x[i] = expr`, the
// general form of which §4.3 only spells out for the single-segment
// `this.field = expr` case. Intermediate segments are navigated as plain
// field reads; the final segment is written via IndexSet.
func (c *funcCompiler) compileChainAssign(t *parser.Chain, valueExpr parser.Expr) error {
	rootSlot, ok := c.locals[t.Root]
	if !ok {
		return errors.NewCompileError("assignment to undeclared name: " + t.Root)
	}
	if len(t.Items) == 0 {
		return errors.NewCompileError("invalid assignment target")
	}

	c.emit(bytecode.Instruction{Op: bytecode.OpLoadLocal, Int: rootSlot})
	for _, item := range t.Items[:len(t.Items)-1] {
		if item.IsCall {
			return errors.NewCompileError("cannot assign through a call expression")
		}
		c.emit(bytecode.Instruction{Op: bytecode.OpPush, Value: value.String(item.Name)})
		c.emit(bytecode.Instruction{Op: bytecode.OpIndexGet})
		if item.IsIndex {
			if err := c.emitExpr(item.Index); err != nil {
				return err
			}
			c.emit(bytecode.Instruction{Op: bytecode.OpIndexGet})
		}
	}

	last := t.Items[len(t.Items)-1]
	if last.IsCall {
		return errors.NewCompileError("cannot assign to a call expression")
	}

	if last.IsIndex {
		// owner[last.Name] is the collection to index-assign into.
		c.emit(bytecode.Instruction{Op: bytecode.OpPush, Value: value.String(last.Name)})
		c.emit(bytecode.Instruction{Op: bytecode.OpIndexGet})
		if err := c.emitExpr(valueExpr); err != nil {
			return err
		}
		if err := c.emitExpr(last.Index); err != nil {
			return err
		}
		c.emit(bytecode.Instruction{Op: bytecode.OpIndexSet})
		c.emit(bytecode.Instruction{Op: bytecode.OpPop, Int: 1})
		return nil
	}

	if err := c.emitExpr(valueExpr); err != nil {
		return err
	}
	c.emit(bytecode.Instruction{Op: bytecode.OpPush, Value: value.String(last.Name)})
	c.emit(bytecode.Instruction{Op: bytecode.OpIndexSet})
	if len(t.Items) == 1 {
		c.emit(bytecode.Instruction{Op: bytecode.OpStoreLocal, Int: rootSlot})
	} else {
		c.emit(bytecode.Instruction{Op: bytecode.OpPop, Int: 1})
	}
	return nil
}

// VisitIndexAssignStmt lowers `a[i] = expr` exactly per §4.3: LoadLocal[a],
// emit expr, emit i, IndexSet, StoreLocal[a] (re-bind the local to the
// returned collection reference).
func (c *funcCompiler) VisitIndexAssignStmt(s *parser.IndexAssignStmt) (interface{}, error) {
	slot, ok := c.locals[s.Name]
	if !ok {
		return nil, errors.NewCompileError("assignment to undeclared name: " + s.Name)
	}
	c.emit(bytecode.Instruction{Op: bytecode.OpLoadLocal, Int: slot})
	if err := c.emitExpr(s.Value); err != nil {
		return nil, err
	}
	if err := c.emitExpr(s.Index); err != nil {
		return nil, err
	}
	c.emit(bytecode.Instruction{Op: bytecode.OpIndexSet})
	c.emit(bytecode.Instruction{Op: bytecode.OpStoreLocal, Int: slot})
	return nil, nil
}

// VisitExprStmt lowers a bare call or ident-chain statement: the expression
// is emitted for its side effects and its result discarded, since every
// expression-producing node (including Call) leaves exactly one value on
// the stack.
func (c *funcCompiler) VisitExprStmt(s *parser.ExprStmt) (interface{}, error) {
	if err := c.emitExpr(s.Expr); err != nil {
		return nil, err
	}
	c.emit(bytecode.Instruction{Op: bytecode.OpPop, Int: 1})
	return nil, nil
}

func (c *funcCompiler) VisitAssertStmt(s *parser.AssertStmt) (interface{}, error) {
	if err := c.emitExpr(s.Expr); err != nil {
		return nil, err
	}
	c.emit(bytecode.Instruction{Op: bytecode.OpAssert})
	return nil, nil
}

func (c *funcCompiler) VisitPrintStmt(s *parser.PrintStmt) (interface{}, error) {
	if err := c.emitExpr(s.Expr); err != nil {
		return nil, err
	}
	c.emit(bytecode.Instruction{Op: bytecode.OpPrint})
	return nil, nil
}

func (c *funcCompiler) VisitReturnStmt(s *parser.ReturnStmt) (interface{}, error) {
	if s.Value != nil {
		if err := c.emitExpr(s.Value); err != nil {
			return nil, err
		}
		c.emit(bytecode.Instruction{Op: bytecode.OpReturn, Int: 1})
	} else {
		c.emit(bytecode.Instruction{Op: bytecode.OpReturn, Int: 0})
	}
	return nil, nil
}

func (c *funcCompiler) VisitIfStmt(s *parser.IfStmt) (interface{}, error) {
	if err := c.emitExpr(s.Cond); err != nil {
		return nil, err
	}
	jf := c.reserve(bytecode.OpJumpIfFalse)
	for _, st := range s.Then {
		if err := c.emitStmt(st); err != nil {
			return nil, err
		}
	}
	jEnd := c.reserve(bytecode.OpJump)
	c.patch(jf, c.here())
	for _, st := range s.Else {
		if err := c.emitStmt(st); err != nil {
			return nil, err
		}
	}
	c.patch(jEnd, c.here())
	return nil, nil
}

func (c *funcCompiler) VisitWhileStmt(s *parser.WhileStmt) (interface{}, error) {
	l0 := c.here()
	if err := c.emitExpr(s.Cond); err != nil {
		return nil, err
	}
	jf := c.reserve(bytecode.OpJumpIfFalse)
	for _, st := range s.Body {
		if err := c.emitStmt(st); err != nil {
			return nil, err
		}
	}
	c.jumpTo(bytecode.OpJump, l0)
	c.patch(jf, c.here())
	return nil, nil
}

func (c *funcCompiler) VisitForIStmt(s *parser.ForIStmt) (interface{}, error) {
	if err := c.emitStmt(s.Init); err != nil {
		return nil, err
	}
	l0 := c.here()
	if err := c.emitExpr(s.Cond); err != nil {
		return nil, err
	}
	jf := c.reserve(bytecode.OpJumpIfFalse)
	for _, st := range s.Body {
		if err := c.emitStmt(st); err != nil {
			return nil, err
		}
	}
	if err := c.emitStmt(s.Step); err != nil {
		return nil, err
	}
	c.jumpTo(bytecode.OpJump, l0)
	c.patch(jf, c.here())
	return nil, nil
}

// VisitForInStmt lowers `for (x in arr) { body }` per §4.3: allocate slots
// for x, the array length N, and the index i; compute N and i=0 once;
// load arr[i] into x each iteration; increment i; loop while i<N.
func (c *funcCompiler) VisitForInStmt(s *parser.ForInStmt) (interface{}, error) {
	arrSlot := c.allocTemp()
	if err := c.emitExpr(s.Collection); err != nil {
		return nil, err
	}
	c.emit(bytecode.Instruction{Op: bytecode.OpStoreLocal, Int: arrSlot})

	nSlot := c.allocTemp()
	c.emit(bytecode.Instruction{Op: bytecode.OpLoadLocal, Int: arrSlot})
	c.emit(bytecode.Instruction{Op: bytecode.OpArrayLen})
	c.emit(bytecode.Instruction{Op: bytecode.OpStoreLocal, Int: nSlot})

	iSlot := c.allocTemp()
	c.emit(bytecode.Instruction{Op: bytecode.OpPush, Value: value.Integer(0)})
	c.emit(bytecode.Instruction{Op: bytecode.OpStoreLocal, Int: iSlot})

	xSlot, err := c.allocSlot(s.Var)
	if err != nil {
		return nil, err
	}

	l0 := c.here()
	c.emit(bytecode.Instruction{Op: bytecode.OpLoadLocal, Int: arrSlot})
	c.emit(bytecode.Instruction{Op: bytecode.OpLoadLocal, Int: iSlot})
	c.emit(bytecode.Instruction{Op: bytecode.OpIndexGet})
	c.emit(bytecode.Instruction{Op: bytecode.OpStoreLocal, Int: xSlot})

	for _, st := range s.Body {
		if err := c.emitStmt(st); err != nil {
			return nil, err
		}
	}

	c.emit(bytecode.Instruction{Op: bytecode.OpLoadLocal, Int: iSlot})
	c.emit(bytecode.Instruction{Op: bytecode.OpPush, Value: value.Integer(1)})
	c.emit(bytecode.Instruction{Op: bytecode.OpAdd})
	c.emit(bytecode.Instruction{Op: bytecode.OpStoreLocal, Int: iSlot})

	c.emit(bytecode.Instruction{Op: bytecode.OpLoadLocal, Int: iSlot})
	c.emit(bytecode.Instruction{Op: bytecode.OpLoadLocal, Int: nSlot})
	c.emit(bytecode.Instruction{Op: bytecode.OpLt})
	jf := c.reserve(bytecode.OpJumpIfFalse)
	c.jumpTo(bytecode.OpJump, l0)
	c.patch(jf, c.here())
	return nil, nil
}
