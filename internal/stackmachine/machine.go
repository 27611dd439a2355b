// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package stackmachine

import (
	"fmt"

	"github.com/auroraeng/scriptcore/internal/scripterr"
)

// Machine is a pair of parallel arrays (tags, cells) plus a stack pointer SP
// and base pointer BP, both measured in cells (spec §3). BP marks the
// boundary between globals (below) and locals (above).
//
// Every operation below keeps SP >= 0, and every push/pop is cell-aligned.
// BP <= SP is not checked: MoveSP, Destruct and the Pop family can take SP
// below BP.
type Machine struct {
	tags  []Tag
	cells []cell
	sp    int
	bp    int
}

// New creates an empty Machine with capacity for initialCap cells.
func New(initialCap int) *Machine {
	return &Machine{
		tags:  make([]Tag, 0, initialCap),
		cells: make([]cell, 0, initialCap),
	}
}

// SP returns the current stack pointer, in cells.
func (m *Machine) SP() int { return m.sp }

// BP returns the current base pointer, in cells.
func (m *Machine) BP() int { return m.bp }

func (m *Machine) grow(n int) {
	for len(m.tags) < m.sp+n {
		m.tags = append(m.tags, TagInvalid)
		m.cells = append(m.cells, cell{})
	}
}

func (m *Machine) push(t Tag, c cell) {
	m.grow(1)
	m.tags[m.sp] = t
	m.cells[m.sp] = c
	m.sp++
}

// PushInt pushes an Int-tagged cell.
func (m *Machine) PushInt(v int32) { m.push(TagInt, cell{i: v}) }

// PushFloat pushes a Float-tagged cell.
func (m *Machine) PushFloat(v float32) { m.push(TagFloat, cell{f: v}) }

// PushString pushes a String-tagged cell, retaining sv.
func (m *Machine) PushString(sv *StringValue) { m.push(TagString, cell{str: sv.Retain()}) }

// PushObject pushes an Object-tagged cell (the payload is a host-opaque
// handle represented as an int32 index).
func (m *Machine) PushObject(handle int32) { m.push(TagObject, cell{i: handle}) }

// PushEngine pushes an EngineType_k-tagged cell.
func (m *Machine) PushEngine(kind int, handle interface{}) {
	m.push(EngineTag(kind), cell{engine: EngineHandle{Kind: kind, Handle: handle}})
}

// pushSavedBP pushes the marked cell SaveBP writes.
func (m *Machine) pushSavedBP(bp int32) { m.push(TagSavedBP, cell{i: bp}) }

func (m *Machine) top() (Tag, cell, error) {
	if m.sp <= m.bp && m.sp == 0 {
		return TagInvalid, cell{}, scripterr.At(0, scripterr.ErrStackUnderflow)
	}
	if m.sp == 0 {
		return TagInvalid, cell{}, scripterr.At(0, scripterr.ErrStackUnderflow)
	}
	return m.tags[m.sp-1], m.cells[m.sp-1], nil
}

func (m *Machine) pop(want Tag) (cell, error) {
	tag, c, err := m.top()
	if err != nil {
		return cell{}, err
	}
	if tag != want {
		return cell{}, scripterr.AtDetail(0, scripterr.ErrTypeMismatch,
			fmt.Sprintf("want %s, have %s", want, tag))
	}
	m.sp--
	return c, nil
}

// PopInt pops an Int-tagged cell.
func (m *Machine) PopInt() (int32, error) {
	c, err := m.pop(TagInt)
	return c.i, err
}

// PopFloat pops a Float-tagged cell.
func (m *Machine) PopFloat() (float32, error) {
	c, err := m.pop(TagFloat)
	return c.f, err
}

// PopString pops a String-tagged cell.
func (m *Machine) PopString() (*StringValue, error) {
	c, err := m.pop(TagString)
	return c.str, err
}

// PopObject pops an Object-tagged cell.
func (m *Machine) PopObject() (int32, error) {
	c, err := m.pop(TagObject)
	return c.i, err
}

// PopEngine pops an EngineType_k-tagged cell of the given kind.
func (m *Machine) PopEngine(kind int) (interface{}, error) {
	c, err := m.pop(EngineTag(kind))
	return c.engine.Handle, err
}

// PopVector requires three Float tags on top and returns them in push order
// (x, y, z), i.e. z was pushed last and sits at the very top.
func (m *Machine) PopVector() ([3]float32, error) {
	var v [3]float32
	for i := 2; i >= 0; i-- {
		f, err := m.PopFloat()
		if err != nil {
			return v, err
		}
		v[i] = f
	}
	return v, nil
}

// PushVector pushes three Float cells in (x, y, z) order.
func (m *Machine) PushVector(v [3]float32) {
	m.PushFloat(v[0])
	m.PushFloat(v[1])
	m.PushFloat(v[2])
}

// MoveSP deallocates |delta| cells; delta must be cell-aligned (it always
// is, SP being measured in cells already) and non-positive.
func (m *Machine) MoveSP(delta int) error {
	if delta > 0 {
		return scripterr.AtDetail(0, scripterr.ErrStackOverflow,
			"MoveSP only deallocates")
	}
	if m.sp+delta < m.bp && m.sp+delta < 0 {
		return scripterr.At(0, scripterr.ErrStackUnderflow)
	}
	if m.sp+delta < 0 {
		return scripterr.At(0, scripterr.ErrStackUnderflow)
	}
	m.sp += delta
	return nil
}

// CPDownSP copies a block of size cells from the top of the stack downward
// to SP+offset (offset is negative, measuring from the current top). Source
// and destination must not overlap.
func (m *Machine) CPDownSP(offset, size int) error {
	dst := m.sp + offset
	src := m.sp - size
	if dst < 0 || src < 0 {
		return scripterr.At(0, scripterr.ErrStackUnderflow)
	}
	if dst < src && dst+size > src {
		return scripterr.AtDetail(0, scripterr.ErrStackOverflow, "CPDownSP ranges overlap")
	}
	for i := 0; i < size; i++ {
		m.tags[dst+i] = m.tags[src+i]
		m.cells[dst+i] = m.cells[src+i]
	}
	return nil
}

// CPTopSP duplicates a block of size cells starting at SP+offset onto the
// top of the stack.
func (m *Machine) CPTopSP(offset, size int) error {
	src := m.sp + offset
	if src < 0 || src+size > m.sp {
		return scripterr.At(0, scripterr.ErrStackOutOfRange)
	}
	m.grow(size)
	for i := 0; i < size; i++ {
		m.tags[m.sp+i] = m.tags[src+i]
		m.cells[m.sp+i] = m.cells[src+i]
	}
	m.sp += size
	return nil
}

// CPDownBP and CPTopBP are the BP-relative counterparts, used for accessing
// the global frame from #globals-initialized code.
func (m *Machine) CPDownBP(offset, size int) error {
	dst := m.bp + offset
	src := m.sp - size
	if dst < 0 || src < 0 || dst+size > len(m.tags) {
		return scripterr.At(0, scripterr.ErrGlobalOutOfRange)
	}
	for i := 0; i < size; i++ {
		m.tags[dst+i] = m.tags[src+i]
		m.cells[dst+i] = m.cells[src+i]
	}
	return nil
}

func (m *Machine) CPTopBP(offset, size int) error {
	src := m.bp + offset
	if src < 0 || src+size > len(m.tags) {
		return scripterr.At(0, scripterr.ErrGlobalOutOfRange)
	}
	m.grow(size)
	for i := 0; i < size; i++ {
		m.tags[m.sp+i] = m.tags[src+i]
		m.cells[m.sp+i] = m.cells[src+i]
	}
	m.sp += size
	return nil
}

// Destruct pops size cells but preserves a hole [exOffset, exOffset+exSize)
// within that range; the preserved block ends at the new top. All arguments
// are in cells (spec §4.3).
func (m *Machine) Destruct(size, exOffset, exSize int) error {
	base := m.sp - size
	if base < 0 || exOffset < 0 || exOffset+exSize > size {
		return scripterr.At(0, scripterr.ErrStackOutOfRange)
	}
	for i := 0; i < exSize; i++ {
		m.tags[base+i] = m.tags[base+exOffset+i]
		m.cells[base+i] = m.cells[base+exOffset+i]
	}
	m.sp = base + exSize
	return nil
}

// SaveBP pushes the current BP as a marked cell and sets BP = SP.
func (m *Machine) SaveBP() {
	m.pushSavedBP(int32(m.bp))
	m.bp = m.sp
}

// RestoreBP pops the marked cell pushed by the matching SaveBP and restores
// BP to the value it held before that call.
func (m *Machine) RestoreBP() error {
	tag, c, err := m.top()
	if err != nil {
		return err
	}
	if tag != TagSavedBP {
		return scripterr.AtDetail(0, scripterr.ErrTypeMismatch, "RestoreBP without matching SaveBP")
	}
	m.sp--
	m.bp = int(c.i)
	return nil
}

// AppendToOther pushes cellsToCopy cells from this stack, starting at
// srcOffset (relative to SP, as with CPTopSP), onto a foreign stack sink.
// Used for situation capture (§4.6) and action dispatch (§4.5).
func (m *Machine) AppendToOther(sink *Machine, srcOffset, cellsToCopy int) error {
	src := m.sp + srcOffset
	if src < 0 || src+cellsToCopy > m.sp {
		return scripterr.At(0, scripterr.ErrStackOutOfRange)
	}
	sink.grow(cellsToCopy)
	for i := 0; i < cellsToCopy; i++ {
		sink.tags[sink.sp+i] = m.tags[src+i]
		sink.cells[sink.sp+i] = m.cells[src+i]
	}
	sink.sp += cellsToCopy
	return nil
}

// PeekTag returns the tag at absolute cell index idx without popping.
func (m *Machine) PeekTag(idx int) (Tag, error) {
	if idx < 0 || idx >= m.sp {
		return TagInvalid, scripterr.At(0, scripterr.ErrStackOutOfRange)
	}
	return m.tags[idx], nil
}

// AddInPlaceAt adds delta to the Int cell at absolute index idx without
// otherwise disturbing the stack (DECISP/INCISP/DECIBP/INCIBP: spec §4.4).
// Callers resolve idx relative to SP or BP as the opcode requires.
func (m *Machine) AddInPlaceAt(idx int, delta int32) error {
	if idx < 0 || idx >= m.sp {
		return scripterr.At(0, scripterr.ErrStackOutOfRange)
	}
	if m.tags[idx] != TagInt {
		return scripterr.AtDetail(0, scripterr.ErrTypeMismatch, "INC/DECISP target is not Int")
	}
	m.cells[idx].i += delta
	return nil
}

// AddFloatInPlaceAt is AddInPlaceAt's Float counterpart (DECISP/INCISP also
// accept TypeFloat per the disassembler's legalTypes table).
func (m *Machine) AddFloatInPlaceAt(idx int, delta float32) error {
	if idx < 0 || idx >= m.sp {
		return scripterr.At(0, scripterr.ErrStackOutOfRange)
	}
	if m.tags[idx] != TagFloat {
		return scripterr.AtDetail(0, scripterr.ErrTypeMismatch, "INC/DECISP target is not Float")
	}
	m.cells[idx].f += delta
	return nil
}
