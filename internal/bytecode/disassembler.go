// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package bytecode

import "github.com/auroraeng/scriptcore/internal/scripterr"

// Decoded is the result of decoding one instruction header (spec §4.2).
type Decoded struct {
	PC        uint32 // start PC of the instruction
	Opcode    Opcode
	Type      Suffix
	Length    uint32 // total instruction length in bytes, header included
	CursorOff uint32 // bytes the reader's cursor advanced past PC; typically 2
}

// legalTypes enumerates, per opcode, the type suffixes the disassembler
// accepts. A (opcode, suffix) pair outside this table fails with
// ErrInvalidOpcodeType (spec §4.2) — the same table the VM's dispatcher
// consults, so the two can never disagree about what is well-formed.
var legalTypes = map[Opcode][]Suffix{
	OpRSADD:    {TypeInt, TypeFloat, TypeString, TypeObject, TypeVectorVector},
	OpCONST:    {TypeInt, TypeFloat, TypeString, TypeObject},
	OpACTION:   {TypeVoid},
	OpCPDOWNSP: {TypeVoid},
	OpCPTOPSP:  {TypeVoid},
	OpCPDOWNBP: {TypeVoid},
	OpCPTOPBP:  {TypeVoid},
	OpMOVSP:    {TypeVoid},
	OpDESTRUCT: {TypeVoid},
	OpJMP:      {TypeVoid},
	OpJSR:      {TypeVoid},
	OpJZ:       {TypeVoid},
	OpJNZ:      {TypeVoid},
	OpRETN:     {TypeVoid},
	OpNOP:      {TypeVoid},
	OpSAVEBP:   {TypeVoid},
	OpRESTOREBP: {TypeVoid},
	OpDECISP:   {TypeInt, TypeFloat},
	OpINCISP:   {TypeInt, TypeFloat},
	OpDECIBP:   {TypeInt, TypeFloat},
	OpINCIBP:   {TypeInt, TypeFloat},
	OpSTORE_STATE:    {TypeVoid},
	OpSTORE_STATEALL: {TypeVoid},
	OpNEG: {TypeInt, TypeFloat},
	OpCOMP: {TypeInt},
	OpNOT: {TypeInt},
	OpADD: {TypeIntInt, TypeFloatFloat, TypeIntFloat, TypeFloatInt, TypeStringString, TypeVectorVector, TypeVectorFloat, TypeFloatVector},
	OpSUB: {TypeIntInt, TypeFloatFloat, TypeIntFloat, TypeFloatInt, TypeVectorVector},
	OpMUL: {TypeIntInt, TypeFloatFloat, TypeIntFloat, TypeFloatInt, TypeVectorFloat, TypeFloatVector},
	OpDIV: {TypeIntInt, TypeFloatFloat, TypeIntFloat, TypeFloatInt, TypeVectorFloat},
	OpMOD: {TypeIntInt},
	OpSHLEFT:   {TypeIntInt},
	OpSHRIGHT:  {TypeIntInt},
	OpUSHRIGHT: {TypeIntInt},
	OpINCOR:  {TypeIntInt},
	OpEXCOR:  {TypeIntInt},
	OpBOOLAND: {TypeIntInt},
	OpLOGAND: {TypeIntInt},
	OpLOGOR:  {TypeIntInt},
	OpEQUAL:  {TypeIntInt, TypeFloatFloat, TypeStringString, TypeObjectObject, TypeStructStruct},
	OpNEQUAL: {TypeIntInt, TypeFloatFloat, TypeStringString, TypeObjectObject, TypeStructStruct},
	OpGEQ: {TypeIntInt, TypeFloatFloat},
	OpGT:  {TypeIntInt, TypeFloatFloat},
	OpLT:  {TypeIntInt, TypeFloatFloat},
	OpLEQ: {TypeIntInt, TypeFloatFloat},
}

func init() {
	for k := 0; k < 10; k++ {
		legalTypes[OpRSADD] = append(legalTypes[OpRSADD], TypeEngine(k))
		legalTypes[OpCONST] = append(legalTypes[OpCONST], TypeEngine(k))
	}
}

// IsLegal reports whether (op, t) is an enforced (opcode, type) pair.
func IsLegal(op Opcode, t Suffix) bool {
	types, ok := legalTypes[op]
	if !ok {
		return false
	}
	for _, want := range types {
		if want == t {
			return true
		}
	}
	return false
}

// Disassemble decodes exactly one instruction starting at r's current PC: the
// opcode byte, the type-suffix byte, the total instruction length, and the
// cursor offset the reader now sits at relative to the instruction start
// (spec §4.2). It does not execute or interpret the instruction.
//
// For OpCONST with TypeString, the 16-bit length prefix must be read to
// compute Length, so CursorOff is 4 instead of the typical 2; the string
// bytes themselves are left unconsumed for the caller to read with
// Reader.ReadString.
func Disassemble(r *Reader) (Decoded, error) {
	start := r.PC()
	opByte, err := r.ReadUint8()
	if err != nil {
		return Decoded{}, err
	}
	typeByte, err := r.ReadUint8()
	if err != nil {
		return Decoded{}, err
	}
	op := Opcode(opByte)
	suffix := Suffix(typeByte)

	if !op.Valid() || !IsLegal(op, suffix) {
		return Decoded{}, scripterr.AtDetail(start, scripterr.ErrInvalidOpcodeType,
			op.String())
	}

	operandBytes, cursorOff, err := operandLength(r, op, suffix)
	if err != nil {
		return Decoded{}, err
	}

	return Decoded{
		PC:        start,
		Opcode:    op,
		Type:      suffix,
		Length:    2 + operandBytes,
		CursorOff: cursorOff,
	}, nil
}

// operandLength returns the number of operand bytes following the 2-byte
// header, and the offset the reader cursor should be left at (relative to
// the instruction start) once this function returns.
func operandLength(r *Reader, op Opcode, suffix Suffix) (uint32, uint32, error) {
	switch op {
	case OpCONST:
		switch suffix {
		case TypeInt, TypeFloat, TypeObject:
			return 4, 2, nil
		case TypeString:
			n, err := r.ReadUint16()
			if err != nil {
				return 0, 0, err
			}
			return 2 + uint32(n), 4, nil
		default:
			return 4, 2, nil // engine-typed constants carry a 4-byte placeholder
		}
	case OpCPDOWNSP, OpCPTOPSP, OpCPDOWNBP, OpCPTOPBP:
		return 6, 2, nil // offset:int32, size:uint16
	case OpMOVSP, OpDECISP, OpINCISP, OpDECIBP, OpINCIBP:
		return 4, 2, nil
	case OpDESTRUCT:
		return 6, 2, nil // size:uint16, exOffset:uint16, exSize:uint16
	case OpJMP, OpJSR, OpJZ, OpJNZ:
		return 4, 2, nil
	case OpACTION:
		return 3, 2, nil // ordinal:uint16, argCount:uint8
	case OpEQUAL, OpNEQUAL:
		if suffix == TypeStructStruct {
			return 2, 2, nil // struct size:uint16
		}
		return 0, 2, nil
	case OpSTORE_STATE:
		return 12, 2, nil // destPC:int32, globalSize:uint32, localSize:uint32
	case OpSTORE_STATEALL:
		return 4, 2, nil // destPC:int32
	default:
		return 0, 2, nil
	}
}
