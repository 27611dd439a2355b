// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package stackmachine implements the typed operand/base-pointer stack
// used by package vm's raw-bytecode RawVM and SituationCodec (spec §3, §4.3).
//
// A Cell is the only stack granule (4 bytes); every typed value occupies a
// whole number of cells, and a Vector occupies three.
package stackmachine

import "sync/atomic"

// Tag identifies which payload a stack cell currently holds. Every
// push/pop is tagged; operations fail with ErrTypeMismatch when a cell's
// tag disagrees with what the operation requires (spec §3 invariant).
type Tag uint8

const (
	TagInvalid Tag = iota
	TagInt
	TagFloat
	TagString
	TagObject
	// TagEngine0 through TagEngine9 (TagEngine0+9) tag an opaque
	// host-owned engine structure handle (spec §3 EngineType_k).
	TagEngine0
	// TagSavedBP marks a cell pushed by SaveBP holding the prior BP value;
	// it is never a legal operand to any typed Push/Pop.
	TagSavedBP = TagEngine0 + 10
)

// EngineKind returns the engine-structure kind (0-9) this tag identifies, or
// -1 if t is not an engine tag.
func (t Tag) EngineKind() int {
	if t >= TagEngine0 && t < TagEngine0+10 {
		return int(t - TagEngine0)
	}
	return -1
}

func EngineTag(kind int) Tag { return TagEngine0 + Tag(kind) }

func (t Tag) String() string {
	switch {
	case t == TagInvalid:
		return "invalid"
	case t == TagInt:
		return "int"
	case t == TagFloat:
		return "float"
	case t == TagString:
		return "string"
	case t == TagObject:
		return "object"
	case t == TagSavedBP:
		return "saved-bp"
	case t.EngineKind() >= 0:
		return "engine"
	default:
		return "unknown"
	}
}

// StringValue is a reference-counted immutable byte sequence, the payload of
// a TagString cell (spec §3). Go's GC reclaims the backing array regardless
// of the refcount; Retain/Release model the host-visible lifecycle contract
// (mirrored engine-structure handles use the same create/copy/destroy shape,
// spec §6.3) so string handling and engine-structure handling stay uniform.
type StringValue struct {
	data []byte
	refs int32
}

// NewStringValue wraps s with an initial refcount of 1.
func NewStringValue(s string) *StringValue {
	return &StringValue{data: []byte(s), refs: 1}
}

func (s *StringValue) String() string { return string(s.data) }
func (s *StringValue) Bytes() []byte  { return s.data }

// Retain increments the refcount, returning s for chaining (used when a cell
// is copied, e.g. CPDownSP/CPTopSP duplicating a String-tagged cell).
func (s *StringValue) Retain() *StringValue {
	atomic.AddInt32(&s.refs, 1)
	return s
}

// Release decrements the refcount. It never frees data: the byte slice is
// ordinary Go-GC'd memory; Release exists so callers can assert a cell's
// last reference has gone away.
func (s *StringValue) Release() int32 {
	return atomic.AddInt32(&s.refs, -1)
}

func (s *StringValue) RefCount() int32 { return atomic.LoadInt32(&s.refs) }

// EngineHandle is an opaque host-owned handle for one EngineType_k payload.
// The host supplies Create/Copy/Destroy/Compare callbacks for it (spec §6.3);
// the core never inspects Handle itself.
type EngineHandle struct {
	Kind   int
	Handle interface{}
}

// cell is the payload half of the stack's parallel tag/cell arrays. Only the
// field matching the cell's tag is meaningful.
type cell struct {
	i      int32 // Int payload, Object handle, or saved-BP value (in cells)
	f      float32
	str    *StringValue
	engine EngineHandle
}
