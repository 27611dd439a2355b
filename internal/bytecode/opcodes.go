// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package bytecode

// Opcode is the first byte of every instruction in the script image.
type Opcode uint8

// Opcodes, in the order the reference interpreter defines them. Every
// instruction begins with [opcode:8][type:8] (spec §4.2).
const (
	OpCPDOWNSP Opcode = iota + 1
	OpRSADD
	OpCPTOPSP
	OpCONST
	OpACTION
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
	OpMOD
	OpADD
	OpSUB
	OpMUL
	OpDIV
	OpNEG
	OpCOMP
	OpMOVSP
	OpSTORE_STATE
	OpJMP
	OpJSR
	OpJZ
	OpRETN
	OpDESTRUCT
	OpNOT
	OpDECISP
	OpINCISP
	OpJNZ
	OpCPDOWNBP
	OpCPTOPBP
	OpDECIBP
	OpINCIBP
	OpSAVEBP
	OpRESTOREBP
	OpSTORE_STATEALL
	OpNOP

	opcodeCount
)

// Suffix is the second byte of every instruction, selecting the operand
// shape for the opcode (spec §3 StackValue tags, §4.2).
type Suffix uint8

const (
	TypeVoid   Suffix = 0x00
	TypeInt    Suffix = 0x03
	TypeFloat  Suffix = 0x04
	TypeString Suffix = 0x05
	TypeObject Suffix = 0x06

	// TypeEngine0 .. TypeEngine9 occupy 0x10-0x19, one per opaque
	// host-owned engine structure kind (spec §3 EngineType_k).
	TypeEngine0 Suffix = 0x10

	// Binary-operand type-pair suffixes used by arithmetic/comparison/
	// bitwise instructions, where both the left/right operand types (and
	// sometimes the result type) are implied by a single byte.
	TypeIntInt       Suffix = 0x20
	TypeFloatFloat   Suffix = 0x21
	TypeObjectObject Suffix = 0x22
	TypeStringString Suffix = 0x23
	TypeStructStruct Suffix = 0x24
	TypeIntFloat     Suffix = 0x25
	TypeFloatInt     Suffix = 0x26
	TypeVectorVector Suffix = 0x3A
	TypeVectorFloat  Suffix = 0x3B
	TypeFloatVector  Suffix = 0x3C
)

// TypeEngine returns the suffix for engine-structure kind k (0-9).
func TypeEngine(k int) Suffix { return Suffix(int(TypeEngine0) + k) }

// EngineKind reports the engine-structure kind encoded by s, or -1 if s is
// not an engine-typed suffix.
func (s Suffix) EngineKind() int {
	if s >= TypeEngine0 && s < TypeEngine0+10 {
		return int(s - TypeEngine0)
	}
	return -1
}

func (op Opcode) String() string {
	if int(op) < len(opcodeNames) {
		if n := opcodeNames[op]; n != "" {
			return n
		}
	}
	return "UNKNOWN"
}

var opcodeNames = [opcodeCount]string{
	OpCPDOWNSP:       "CPDOWNSP",
	OpRSADD:          "RSADD",
	OpCPTOPSP:        "CPTOPSP",
	OpCONST:          "CONST",
	OpACTION:         "ACTION",
	OpLOGAND:         "LOGAND",
	OpLOGOR:          "LOGOR",
	OpINCOR:          "INCOR",
	OpEXCOR:          "EXCOR",
	OpBOOLAND:        "BOOLAND",
	OpEQUAL:          "EQUAL",
	OpNEQUAL:         "NEQUAL",
	OpGEQ:            "GEQ",
	OpGT:             "GT",
	OpLT:             "LT",
	OpLEQ:            "LEQ",
	OpSHLEFT:         "SHLEFT",
	OpSHRIGHT:        "SHRIGHT",
	OpUSHRIGHT:       "USHRIGHT",
	OpMOD:            "MOD",
	OpADD:            "ADD",
	OpSUB:            "SUB",
	OpMUL:            "MUL",
	OpDIV:            "DIV",
	OpNEG:            "NEG",
	OpCOMP:           "COMP",
	OpMOVSP:          "MOVSP",
	OpSTORE_STATE:    "STORE_STATE",
	OpJMP:            "JMP",
	OpJSR:            "JSR",
	OpJZ:             "JZ",
	OpRETN:           "RETN",
	OpDESTRUCT:       "DESTRUCT",
	OpNOT:            "NOT",
	OpDECISP:         "DECISP",
	OpINCISP:         "INCISP",
	OpJNZ:            "JNZ",
	OpCPDOWNBP:       "CPDOWNBP",
	OpCPTOPBP:        "CPTOPBP",
	OpDECIBP:         "DECIBP",
	OpINCIBP:         "INCIBP",
	OpSAVEBP:         "SAVEBP",
	OpRESTOREBP:      "RESTOREBP",
	OpSTORE_STATEALL: "STORE_STATEALL",
	OpNOP:            "NOP",
}

// Valid reports whether op is a known, in-range opcode.
func (op Opcode) Valid() bool {
	return op >= OpCPDOWNSP && op < opcodeCount
}
