// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Package vm is the deterministic interpreter over an analyzer-produced
// ir.Program (spec §4.4): it walks the optimized control-flow graph,
// evaluates each typed IR instruction against a per-call environment of
// Variable values, dispatches ACTION instructions to a host-supplied
// ActionDispatcher, and can capture/resume script situations (spec §4.6).
// The fetch/decode/execute loop and its resource-guard idiom are grounded on
// the teacher's lang/vm/vm.go Step/execute dispatch shape, re-targeted from
// fixed-width register opcodes to the analyzer's typed IR and cell stack.
package vm

import (
	"github.com/auroraeng/scriptcore/internal/ir"
	"github.com/auroraeng/scriptcore/internal/stackmachine"
)

// Value is one runtime operand flowing through IR evaluation: the
// interpreter's counterpart to a stackmachine cell, but keyed by Variable
// identity rather than stack position.
type Value struct {
	Type ir.Type
	I    int32
	F    float32
	S    *stackmachine.StringValue
	// Engine carries an EngineType_k handle (spec §3 EngineType_k); Kind
	// mirrors Type.EngineKind() for convenience.
	Engine stackmachine.EngineHandle
}

func IntValue(v int32) Value     { return Value{Type: ir.TypeInt, I: v} }
func FloatValue(v float32) Value { return Value{Type: ir.TypeFloat, F: v} }
func ObjectValue(v int32) Value  { return Value{Type: ir.TypeObject, I: v} }
func StringValue(s *stackmachine.StringValue) Value {
	return Value{Type: ir.TypeString, S: s}
}
func EngineValue(kind int, handle interface{}) Value {
	return Value{Type: ir.EngineType(kind), Engine: stackmachine.EngineHandle{Kind: kind, Handle: handle}}
}

// Truthy reports whether v is non-zero, the condition JZ/JNZ branch on: it
// is false for a zero Int, a zero Float, or a null Object reference, and
// true for every other value.
func (v Value) Truthy() bool {
	switch v.Type {
	case ir.TypeInt, ir.TypeObject:
		return v.I != 0
	case ir.TypeFloat:
		return v.F != 0
	default:
		return true
	}
}

// env is the per-call map from analyzed Variable identity (post union-find)
// to its current runtime Value.
type env map[*ir.Variable]Value

func (e env) get(v *ir.Variable) Value {
	if v == nil {
		return Value{}
	}
	return e[v.GetHeadVariable()]
}

func (e env) set(v *ir.Variable, val Value) {
	if v == nil {
		return
	}
	e[v.GetHeadVariable()] = val
}

// concatStrings implements NWScript's string ADD: concatenation.
func concatStrings(a, b *stackmachine.StringValue) *stackmachine.StringValue {
	as, bs := "", ""
	if a != nil {
		as = a.String()
	}
	if b != nil {
		bs = b.String()
	}
	return stackmachine.NewStringValue(as + bs)
}

func literalValue(v *ir.Variable) (Value, bool) {
	if v == nil || v.ConstValue == nil {
		return Value{}, false
	}
	switch lit := v.ConstValue.(type) {
	case int32:
		return Value{Type: v.Type(), I: lit}, true
	case float32:
		return Value{Type: ir.TypeFloat, F: lit}, true
	case string:
		return Value{Type: ir.TypeString, S: stackmachine.NewStringValue(lit)}, true
	default:
		return Value{}, false
	}
}
