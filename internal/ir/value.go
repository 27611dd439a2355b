// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package ir is the data model the Analyzer lifts bytecode into: Subroutine,
// ControlFlow, Variable, and Instruction (spec §3), generalized from the
// teacher's SSA Program/Function/BasicBlock/Value/Instruction shape
// (teacherref/probe-lang/lang/ir/ir.go) to the spec's union-find Variable
// model instead of pure SSA.
package ir

import "fmt"

// Type is a Variable's fundamental type, or Void meaning "unresolved"
// (spec §3 Variable).
type Type int

const (
	TypeVoid Type = iota
	TypeInt
	TypeFloat
	TypeString
	TypeObject
	TypeVector
	// TypeEngine0 through TypeEngine0+9 identify one of the ten opaque
	// engine-structure kinds (spec §3 EngineType_k).
	TypeEngine0
)

func EngineType(kind int) Type { return TypeEngine0 + Type(kind) }

func (t Type) EngineKind() int {
	if t >= TypeEngine0 && t < TypeEngine0+10 {
		return int(t - TypeEngine0)
	}
	return -1
}

func (t Type) String() string {
	switch {
	case t == TypeVoid:
		return "void"
	case t == TypeInt:
		return "int"
	case t == TypeFloat:
		return "float"
	case t == TypeString:
		return "string"
	case t == TypeObject:
		return "object"
	case t == TypeVector:
		return "vector"
	case t.EngineKind() >= 0:
		return fmt.Sprintf("engine%d", t.EngineKind())
	default:
		return "unknown"
	}
}

// Class is the storage class of a Variable (spec §3 Variable).
type Class int

const (
	ClassLocal Class = iota
	ClassGlobal
	ClassConstant
	ClassParameter
	ClassReturnValue
	ClassCallParameter
	ClassCallReturnValue
)

// Flags are bits set on a Variable by the optimizer pass (spec §4.9).
type Flags uint8

const (
	FlagMultiplyCreated Flags = 1 << iota
	FlagLocalToFlow
	FlagSingleAssignment
	FlagWriteOnly
	FlagOptimizerEliminated
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// typeSlot is the union-find-free target of LinkTypes: every Variable in a
// "must share type" equivalence class points at the same slot, so resolving
// one resolves the whole class without walking a chain.
type typeSlot struct {
	t Type
}

// Variable is one logical IR value (spec §3 Variable).
type Variable struct {
	ID    int
	Class Class
	Flags Flags

	// ConstValue holds the literal for ClassConstant Variables: int32,
	// float32, string, or int32(0) for an Object constant (always null).
	ConstValue interface{}

	// MergedWith is the union-find parent used by the optimizer's variable
	// merging (spec §4.8 "Variable merging at flow joins", §4.9 "Copy
	// elimination"). GetHeadVariable follows it to the representative root.
	MergedWith *Variable

	slot *typeSlot

	// per-Variable slots for read/write positions (as instruction list
	// indices within a single flow) and the most recent ASSIGN source. No
	// pass fills them: Analyzer.Optimizer (spec §4.9) keeps this
	// bookkeeping in its own maps.
	reads, writes []int
	assignSrc     *Variable
}

// NewVariable allocates a fresh Variable with its own type slot.
func NewVariable(id int, class Class, t Type) *Variable {
	return &Variable{ID: id, Class: class, slot: &typeSlot{t: t}}
}

// NewConstant allocates a Constant-class Variable carrying a literal value.
func NewConstant(id int, t Type, value interface{}) *Variable {
	v := NewVariable(id, ClassConstant, t)
	v.ConstValue = value
	return v
}

// Type returns the Variable's current type (spec §3: Void means
// unresolved). It is read through the shared type slot so LinkTypes's
// effect is immediately visible on every linked Variable.
func (v *Variable) Type() Type { return v.slot.t }

// SetType resolves v's type. If the slot is already resolved to a different
// concrete type this is a no-op: the first concrete use wins, matching the
// analyzer's single forward pass over the instruction stream (spec §4.8
// "Every concrete use ... sets the type").
func (v *Variable) SetType(t Type) {
	if v.slot.t == TypeVoid {
		v.slot.t = t
	}
}

// LinkTypes records that v and other must ultimately share a type (spec §3
// Variable invariant, §4.8 "CPDOWNSP/CPDOWNBP ... link the types of dst and
// src"). Resolving either Variable's type resolves the other's too.
func LinkTypes(v, other *Variable) {
	if v.slot == other.slot {
		return
	}
	resolved := v.slot.t
	if resolved == TypeVoid {
		resolved = other.slot.t
	}
	v.slot.t = resolved
	other.slot.t = resolved
	// Union the slots so any later SetType on either side is shared.
	shared := v.slot
	other.slot = shared
}

// GetHeadVariable follows MergedWith to the union-find root with path
// compression (spec §9 "Union-find Variables"). Operations on a Variable are
// defined relative to its root.
func (v *Variable) GetHeadVariable() *Variable {
	root := v
	for root.MergedWith != nil {
		root = root.MergedWith
	}
	for n := v; n != root; {
		next := n.MergedWith
		if next == nil {
			break
		}
		n.MergedWith = root
		n = next
	}
	return root
}

// Merge unions src into dst's equivalence class (dst becomes, or remains,
// the representative root) and flags the result MultiplyCreated, matching
// the join-point unification rule (spec §4.8).
func Merge(dst, src *Variable) *Variable {
	dstRoot := dst.GetHeadVariable()
	srcRoot := src.GetHeadVariable()
	if dstRoot == srcRoot {
		return dstRoot
	}
	srcRoot.MergedWith = dstRoot
	dstRoot.Flags |= FlagMultiplyCreated
	LinkTypes(dstRoot, srcRoot)
	return dstRoot
}

func (v *Variable) String() string {
	return fmt.Sprintf("v%d:%s", v.ID, v.Type())
}

// recordRead/recordWrite are optimizer-pass-only bookkeeping helpers; they
// live on Variable because the per-variable read/write position sets are
// keyed by Variable identity, not by flow (spec §4.9).
func (v *Variable) recordRead(pos int)  { v.reads = append(v.reads, pos) }
func (v *Variable) recordWrite(pos int) { v.writes = append(v.writes, pos) }
