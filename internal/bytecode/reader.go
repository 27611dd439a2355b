// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package bytecode provides a positioned cursor over an immutable script
// image (Reader) and the instruction catalog + Disassembler that decode one
// instruction at a time from it.
//
// All multi-byte integers in the stream are big-endian, matching spec §3/§6.1.
package bytecode

import (
	"encoding/binary"
	"math"

	"github.com/auroraeng/scriptcore/internal/scripterr"
)

// Reader is a positioned instruction-pointer cursor over an immutable byte
// buffer. The cursor (PC) is writable by the caller so the analyzer can
// rewind between passes (spec §4.1).
type Reader struct {
	buf []byte
	pc  uint32
}

// NewReader wraps buf for reading starting at PC 0.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// PC returns the current instruction pointer, in bytes from the start of buf.
func (r *Reader) PC() uint32 { return r.pc }

// SetPC repositions the cursor. It does not validate the new PC; the next
// read will fail with ErrTruncatedInstruction if it runs past the buffer.
func (r *Reader) SetPC(pc uint32) { r.pc = pc }

// Advance moves the cursor forward by n bytes.
func (r *Reader) Advance(n uint32) { r.pc += n }

// Len returns the total length of the underlying buffer in bytes.
func (r *Reader) Len() uint32 { return uint32(len(r.buf)) }

// AtEOF reports whether the cursor has reached the end of the buffer.
func (r *Reader) AtEOF() bool { return r.pc >= uint32(len(r.buf)) }

// Bytes returns the raw underlying buffer. Callers must not mutate it.
func (r *Reader) Bytes() []byte { return r.buf }

func (r *Reader) require(n uint32) error {
	if uint64(r.pc)+uint64(n) > uint64(len(r.buf)) {
		return scripterr.AtDetail(r.pc, scripterr.ErrTruncatedInstruction,
			"need more bytes than remain in stream")
	}
	return nil
}

// ReadUint8 reads one unsigned byte and advances the cursor.
func (r *Reader) ReadUint8() (uint8, error) {
	if err := r.require(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pc]
	r.pc++
	return v, nil
}

// ReadInt8 reads one signed byte and advances the cursor.
func (r *Reader) ReadInt8() (int8, error) {
	v, err := r.ReadUint8()
	return int8(v), err
}

// ReadUint16 reads a big-endian unsigned 16-bit integer.
func (r *Reader) ReadUint16() (uint16, error) {
	if err := r.require(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(r.buf[r.pc:])
	r.pc += 2
	return v, nil
}

// ReadInt16 reads a big-endian signed 16-bit integer.
func (r *Reader) ReadInt16() (int16, error) {
	v, err := r.ReadUint16()
	return int16(v), err
}

// ReadUint32 reads a big-endian unsigned 32-bit integer.
func (r *Reader) ReadUint32() (uint32, error) {
	if err := r.require(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.buf[r.pc:])
	r.pc += 4
	return v, nil
}

// ReadInt32 reads a big-endian signed 32-bit integer.
func (r *Reader) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	return int32(v), err
}

// ReadFloat32 reads an IEEE-754 single-precision float, big-endian.
func (r *Reader) ReadFloat32() (float32, error) {
	v, err := r.ReadUint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// ReadString reads exactly n bytes and returns them as a string with no
// terminator handling (the caller already knows the length).
func (r *Reader) ReadString(n uint16) (string, error) {
	if err := r.require(uint32(n)); err != nil {
		return "", err
	}
	s := string(r.buf[r.pc : r.pc+uint32(n)])
	r.pc += uint32(n)
	return s, nil
}
