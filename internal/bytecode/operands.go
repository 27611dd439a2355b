// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package bytecode

// This file centralizes operand decoding for instructions whose raw operand
// bytes more than one package needs to interpret: Structure and Code (the
// analyzer passes) and the VM's raw-bytecode execution path all need the
// exact same (offset, size), (destPC, globalSize, localSize), and similar
// tuples a disassembled instruction carries, so they read them through one
// shared place instead of three independently-maintained copies.

// ReadBranchTarget reads the int32 operand of a JMP/JZ/JNZ/JSR instruction
// already positioned by Disassemble and returns the target PC it encodes.
// Per this analyzer's convention (see structure.go), the operand is the
// absolute PC, not an offset relative to the branch instruction.
func ReadBranchTarget(r *Reader, d Decoded) (uint32, error) {
	rr := NewReader(r.Bytes())
	rr.SetPC(d.PC + d.CursorOff)
	v, err := rr.ReadInt32()
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

// ReadCopyOperand reads the (offset, size) operand of a CPDOWNSP/CPTOPSP/
// CPDOWNBP/CPTOPBP instruction. offset is a signed cell-relative
// displacement in bytes; size is the number of bytes in the copied block
// (spec §4.2) — a multi-cell copy (vectors, structs, engine handles) has
// size > 4.
func ReadCopyOperand(r *Reader, d Decoded) (offset int32, size uint16, err error) {
	rr := NewReader(r.Bytes())
	rr.SetPC(d.PC + d.CursorOff)
	if offset, err = rr.ReadInt32(); err != nil {
		return 0, 0, err
	}
	if size, err = rr.ReadUint16(); err != nil {
		return 0, 0, err
	}
	return offset, size, nil
}

// ReadMoveOperand reads MOVSP's signed byte-count operand: negative shrinks
// the stack by that many bytes, the routine way locals and temporaries are
// discarded.
func ReadMoveOperand(r *Reader, d Decoded) (int32, error) {
	rr := NewReader(r.Bytes())
	rr.SetPC(d.PC + d.CursorOff)
	return rr.ReadInt32()
}

// ReadDestructOperand reads DESTRUCT's (size, exOffset, exSize) operand, all
// in bytes: it pops size bytes but preserves the exSize-byte hole starting
// at exOffset within that range.
func ReadDestructOperand(r *Reader, d Decoded) (size, exOffset, exSize uint16, err error) {
	rr := NewReader(r.Bytes())
	rr.SetPC(d.PC + d.CursorOff)
	if size, err = rr.ReadUint16(); err != nil {
		return 0, 0, 0, err
	}
	if exOffset, err = rr.ReadUint16(); err != nil {
		return 0, 0, 0, err
	}
	if exSize, err = rr.ReadUint16(); err != nil {
		return 0, 0, 0, err
	}
	return size, exOffset, exSize, nil
}

// ReadStoreStateOperand reads STORE_STATE's (destPC, globalSize, localSize)
// operand: destPC is the embedded resume target, and globalSize/localSize
// (in bytes) are how much of the global and local frames the situation
// snapshot must capture.
func ReadStoreStateOperand(r *Reader, d Decoded) (destPC int32, globalSize, localSize uint32, err error) {
	rr := NewReader(r.Bytes())
	rr.SetPC(d.PC + d.CursorOff)
	if destPC, err = rr.ReadInt32(); err != nil {
		return 0, 0, 0, err
	}
	if globalSize, err = rr.ReadUint32(); err != nil {
		return 0, 0, 0, err
	}
	if localSize, err = rr.ReadUint32(); err != nil {
		return 0, 0, 0, err
	}
	return destPC, globalSize, localSize, nil
}

// ReadStoreStateAllOperand reads STORE_STATEALL's destPC operand.
func ReadStoreStateAllOperand(r *Reader, d Decoded) (int32, error) {
	rr := NewReader(r.Bytes())
	rr.SetPC(d.PC + d.CursorOff)
	return rr.ReadInt32()
}

// ReadActionOperand reads ACTION's (ordinal, argCount) operand.
func ReadActionOperand(r *Reader, d Decoded) (ordinal, argCount int, err error) {
	rr := NewReader(r.Bytes())
	rr.SetPC(d.PC + d.CursorOff)
	o, err := rr.ReadUint16()
	if err != nil {
		return 0, 0, err
	}
	a, err := rr.ReadUint8()
	if err != nil {
		return 0, 0, err
	}
	return int(o), int(a), nil
}
