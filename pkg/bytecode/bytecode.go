// Package bytecode defines the flat instruction set the compiler emits
// and the fiber executes (spec.md §3, §4.1).
//
// A Program is a linear sequence of Instructions plus a constant pool.
// Instructions reference the constant pool by index for literal pushes
// and symbol names; jump instructions carry a relative offset; CallFunc
// carries an argument count; Eval carries a protected flag packed into
// Operand.
package bytecode

import (
	"fmt"
	"strings"

	"github.com/kristofer/wisp/pkg/value"
)

// Opcode is a single instruction's operation.
type Opcode byte

const (
	// OpPushConst pushes Constants[Operand].
	OpPushConst Opcode = iota
	// OpGetSym reads the symbol named by Constants[Operand] from the
	// current frame's environment and pushes its value.
	OpGetSym
	// OpDefSym pops the top of stack and defines the symbol named by
	// Constants[Operand] in the current scope, leaving the value on the
	// stack (define, then re-push, so "(def x v)" evaluates to v).
	OpDefSym
	// OpSetSym reads the top of stack (leaving it in place) and walks to
	// the defining scope of the symbol named by Constants[Operand],
	// mutating it in place.
	OpSetSym
	// OpDefBind pops [pattern, value] (value pushed first, pattern
	// second, so pattern is on top) and destructures value against
	// pattern, defining every bound name in the current scope. Leaves
	// value back on the stack.
	OpDefBind
	// OpMakeFunc pops [params-list, body-bytecode] (params pushed first)
	// and pushes a lambda closing over the current environment.
	OpMakeFunc
	// OpCallFunc pops a callee and Operand args (in push order) and
	// dispatches per spec.md §4.2.
	OpCallFunc
	// OpPopTop discards the top of stack.
	OpPopTop
	// OpJumpFwd advances ip by Operand instructions (forward only).
	OpJumpFwd
	// OpJumpBck rewinds ip by Operand instructions (backward only).
	OpJumpBck
	// OpPopJumpFwdIfTrue pops the top of stack; if truthy, advances ip by
	// Operand instructions.
	OpPopJumpFwdIfTrue
	// OpYieldTop suspends the fiber, yielding the top of stack.
	OpYieldTop
	// OpEval pops a value, compiles it, and pushes a new call frame to
	// run it. Operand != 0 marks the new frame as a protected
	// (error-catching) boundary.
	OpEval
)

func (op Opcode) String() string {
	switch op {
	case OpPushConst:
		return "PUSH_CONST"
	case OpGetSym:
		return "GET_SYM"
	case OpDefSym:
		return "DEF_SYM"
	case OpSetSym:
		return "SET_SYM"
	case OpDefBind:
		return "DEF_BIND"
	case OpMakeFunc:
		return "MAKE_FUNC"
	case OpCallFunc:
		return "CALL_FUNC"
	case OpPopTop:
		return "POP_TOP"
	case OpJumpFwd:
		return "JUMP_FWD"
	case OpJumpBck:
		return "JUMP_BCK"
	case OpPopJumpFwdIfTrue:
		return "POP_JUMP_FWD_IF_TRUE"
	case OpYieldTop:
		return "YIELD_TOP"
	case OpEval:
		return "EVAL"
	default:
		return fmt.Sprintf("OP(%d)", byte(op))
	}
}

// Instruction is a single decoded bytecode op plus its operand.
type Instruction struct {
	Op      Opcode
	Operand int
}

// Program is a compiled, runnable unit: a flat instruction sequence plus
// the constant pool those instructions index into. It implements
// value.BytecodeHolder so it can be carried inside a value.Val.
type Program struct {
	Instructions []Instruction
	Constants    []value.Val
}

// New returns an empty program ready for a builder to append to.
func New() *Program {
	return &Program{}
}

// AddConstant appends v to the constant pool and returns its index,
// reusing an existing identical constant when cheap to compare (ints,
// strings, symbols, keywords, bools, nil) to keep small programs compact
// — mirrors the teacher compiler's addConstant, extended with dedup.
func (p *Program) AddConstant(v value.Val) int {
	switch v.Kind {
	case value.KindNil, value.KindBool, value.KindInt, value.KindStr, value.KindSymbol, value.KindKeyword:
		for i, c := range p.Constants {
			if c.Kind == v.Kind && value.Equal(c, v) {
				return i
			}
		}
	}
	p.Constants = append(p.Constants, v)
	return len(p.Constants) - 1
}

// Emit appends an instruction and returns its index (used by the
// compiler for later jump-target patching).
func (p *Program) Emit(op Opcode, operand int) int {
	p.Instructions = append(p.Instructions, Instruction{Op: op, Operand: operand})
	return len(p.Instructions) - 1
}

// Patch rewrites the operand of the instruction at idx, used to back-fill
// jump targets once the jump distance is known.
func (p *Program) Patch(idx, operand int) {
	p.Instructions[idx].Operand = operand
}

// Len returns the number of instructions.
func (p *Program) Len() int { return len(p.Instructions) }

// Disassemble renders a human-readable listing, used by debug tooling and
// by error messages that embed a failing frame's code.
func (p *Program) Disassemble() string {
	var b strings.Builder
	fmt.Fprintf(&b, "constants (%d):\n", len(p.Constants))
	for i, c := range p.Constants {
		fmt.Fprintf(&b, "  [%d] %s\n", i, value.Print(c))
	}
	fmt.Fprintf(&b, "instructions (%d):\n", len(p.Instructions))
	for i, instr := range p.Instructions {
		fmt.Fprintf(&b, "  %4d: %-20s %d\n", i, instr.Op, instr.Operand)
	}
	return b.String()
}
