// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package ir

// Op is an IR instruction opcode. This is distinct from bytecode.Opcode: the
// Analyzer's Code pass (spec §4.8) lifts the raw stack-machine bytecode into
// this smaller, register-oriented instruction set before the Optimizer pass
// works on it.
type Op int

const (
	OpCREATE Op = iota
	OpINITIALIZE
	OpASSIGN
	OpDELETE
	OpTEST
	OpJZ
	OpJNZ
	OpJMP
	OpCALL
	OpRETN
	OpACTION
	OpSAVE_STATE
	OpLOGAND
	OpLOGOR
	OpINCOR
	OpEXCOR
	OpBOOLAND
	OpEQUAL
	OpNEQUAL
	OpGEQ
	OpGT
	OpLT
	OpLEQ
	OpSHLEFT
	OpSHRIGHT
	OpUSHRIGHT
	OpADD
	OpSUB
	OpMUL
	OpDIV
	OpMOD
	OpNEG
	OpCOMP
	OpNOT
	OpINC
	OpDEC
)

var opNames = [...]string{
	"CREATE", "INITIALIZE", "ASSIGN", "DELETE", "TEST", "JZ", "JNZ", "JMP",
	"CALL", "RETN", "ACTION", "SAVE_STATE", "LOGAND", "LOGOR", "INCOR",
	"EXCOR", "BOOLAND", "EQUAL", "NEQUAL", "GEQ", "GT", "LT", "LEQ",
	"SHLEFT", "SHRIGHT", "USHRIGHT", "ADD", "SUB", "MUL", "DIV", "MOD",
	"NEG", "COMP", "NOT", "INC", "DEC",
}

func (op Op) String() string {
	if int(op) < 0 || int(op) >= len(opNames) {
		return "UNKNOWN"
	}
	return opNames[op]
}

// Instruction is one lifted IR operation living inside a ControlFlow's
// ordered instruction list (spec §3 Instruction).
type Instruction struct {
	Op Op

	// PC is the originating bytecode offset, retained for diagnostics and
	// for the situation/debug mapping (spec §6.7).
	PC uint32

	// In1, In2 are the instruction's input operands (nil if unused).
	In1, In2 *Variable

	// Result receives the instruction's output, if any (e.g. ASSIGN,
	// arithmetic and comparison ops, ACTION/CALL return values).
	Result *Variable

	// TargetFlow and TargetSub are the jump/call destination: TargetFlow
	// for JMP/JZ/JNZ, TargetSub for CALL.
	TargetFlow *ControlFlow
	TargetSub  *Subroutine

	// ActionOrdinal and ActionArgCount identify the engine action invoked
	// by an ACTION instruction (spec §4.5).
	ActionOrdinal  int
	ActionArgCount int

	// Args holds the ordered argument list for CALL, ACTION, and
	// SAVE_STATE, which all pass a variable number of Variables rather
	// than fitting the fixed In1/In2 shape.
	Args []*Variable

	// Results holds an ordered output list wider than the single Result
	// field covers: the destination cells of a multi-cell CPDOWNSP/CPTOPSP/
	// CPDOWNBP/CPTOPBP copy, or DELETE's popped Variables.
	Results []*Variable

	// Situation is populated on a SAVE_STATE instruction (spec §4.6).
	Situation *Situation
}

// NewInstruction builds a zero-operand Instruction (e.g. NOP-equivalent
// bookkeeping ops); callers set fields directly for the common case since
// the shape varies widely instruction to instruction.
func NewInstruction(op Op, pc uint32) *Instruction {
	return &Instruction{Op: op, PC: pc}
}
