package bytecode

// OpCode is the closed instruction set of §4.2: every opcode the compiler may
// emit and the VM must interpret. Unlike the teacher's byte-packed encoding,
// operands are not constrained to a single byte — see Instruction.
type OpCode int

const (
	// Stack & literals
	OpPush OpCode = iota
	OpPop

	// Variables
	OpStoreLocal
	OpMoveToLocal
	OpCopyToLocal
	OpLoadLocal

	// Globals
	OpLoadGlobal

	// Objects
	OpCreateObject

	// Collections
	OpArrayLen
	OpArrayAppend
	OpDictInsert
	OpIndexGet
	OpIndexSet

	// Control flow
	OpJump
	OpJumpIfFalse
	OpCall
	OpReturn

	// Arithmetic / comparison
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpPow
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe

	// Diagnostics
	OpAssert
	OpPrint
	OpHalt
)

func (op OpCode) String() string {
	switch op {
	case OpPush:
		return "Push"
	case OpPop:
		return "Pop"
	case OpStoreLocal:
		return "StoreLocal"
	case OpMoveToLocal:
		return "MoveToLocal"
	case OpCopyToLocal:
		return "CopyToLocal"
	case OpLoadLocal:
		return "LoadLocal"
	case OpLoadGlobal:
		return "LoadGlobal"
	case OpCreateObject:
		return "CreateObject"
	case OpArrayLen:
		return "ArrayLen"
	case OpArrayAppend:
		return "ArrayAppend"
	case OpDictInsert:
		return "DictInsert"
	case OpIndexGet:
		return "IndexGet"
	case OpIndexSet:
		return "IndexSet"
	case OpJump:
		return "Jump"
	case OpJumpIfFalse:
		return "JumpIfFalse"
	case OpCall:
		return "Call"
	case OpReturn:
		return "Return"
	case OpAdd:
		return "Add"
	case OpSub:
		return "Sub"
	case OpMul:
		return "Mul"
	case OpDiv:
		return "Div"
	case OpPow:
		return "Pow"
	case OpEq:
		return "Eq"
	case OpNe:
		return "Ne"
	case OpLt:
		return "Lt"
	case OpLe:
		return "Le"
	case OpGt:
		return "Gt"
	case OpGe:
		return "Ge"
	case OpAssert:
		return "Assert"
	case OpPrint:
		return "Print"
	case OpHalt:
		return "Halt"
	default:
		return "Unknown"
	}
}
