// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package ir

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVariableTypeResolvesOnce(t *testing.T) {
	v := NewVariable(0, ClassLocal, TypeVoid)
	v.SetType(TypeInt)
	v.SetType(TypeFloat) // no-op: already resolved
	require.Equal(t, TypeInt, v.Type())
}

func TestLinkTypesPropagatesBothWays(t *testing.T) {
	a := NewVariable(0, ClassLocal, TypeVoid)
	b := NewVariable(1, ClassLocal, TypeVoid)
	LinkTypes(a, b)
	b.SetType(TypeString)
	require.Equal(t, TypeString, a.Type())
	require.Equal(t, TypeString, b.Type())
}

func TestGetHeadVariableCompressesPath(t *testing.T) {
	a := NewVariable(0, ClassLocal, TypeInt)
	b := NewVariable(1, ClassLocal, TypeVoid)
	c := NewVariable(2, ClassLocal, TypeVoid)
	c.MergedWith = b
	b.MergedWith = a
	require.Same(t, a, c.GetHeadVariable())
	require.Same(t, a, c.MergedWith) // path compressed
}

func TestMergeUnifiesTypeAndFlags(t *testing.T) {
	a := NewVariable(0, ClassLocal, TypeVoid)
	b := NewVariable(1, ClassLocal, TypeInt)
	root := Merge(a, b)
	require.Same(t, a, root)
	require.True(t, root.Flags.Has(FlagMultiplyCreated))
	require.Equal(t, TypeInt, a.Type())
	require.Equal(t, TypeInt, b.Type())
	require.Same(t, a, b.GetHeadVariable())
}

func TestMergeIsIdempotent(t *testing.T) {
	a := NewVariable(0, ClassLocal, TypeInt)
	b := NewVariable(1, ClassLocal, TypeInt)
	Merge(a, b)
	root := Merge(a, b)
	require.Same(t, a, root)
}

func TestControlFlowMergeDetection(t *testing.T) {
	entry := NewControlFlow(0, 0)
	left := NewControlFlow(4, 0)
	right := NewControlFlow(8, 0)
	join := NewControlFlow(12, 0)
	entry.Term = TermSplit
	entry.AddChild(0, left)
	entry.AddChild(1, right)
	left.AddChild(0, join)
	right.AddChild(0, join)
	require.True(t, join.IsMerge())
	require.False(t, left.IsMerge())
}

func TestSituationValidateResume(t *testing.T) {
	s := &Situation{CodeSize: 100, ScriptName: "test"}
	require.True(t, s.ValidateResume("test", 100))
	require.False(t, s.ValidateResume("test", 200))
	require.False(t, s.ValidateResume("other", 100))

	zero := &Situation{CodeSize: 0, ScriptName: "legacy"}
	require.True(t, zero.ValidateResume("legacy", 9999))
	require.False(t, zero.ValidateResume("other", 9999))
}

func TestProgramAllocatesDistinctSubroutines(t *testing.T) {
	p := NewProgram(64)
	sub1, created1 := p.GetOrCreateSubroutine(16, 0)
	require.True(t, created1)
	sub2, created2 := p.GetOrCreateSubroutine(16, 0)
	require.False(t, created2)
	require.Same(t, sub1, sub2)

	sub3, created3 := p.GetOrCreateSubroutine(32, 0)
	require.True(t, created3)
	require.NotSame(t, sub1, sub3)
}
