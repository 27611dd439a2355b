// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package stackmachine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/auroraeng/scriptcore/internal/scripterr"
)

func TestPushPopInt(t *testing.T) {
	m := New(8)
	m.PushInt(42)
	require.Equal(t, 1, m.SP())
	v, err := m.PopInt()
	require.NoError(t, err)
	require.EqualValues(t, 42, v)
	require.Equal(t, 0, m.SP())
}

func TestPopTypeMismatch(t *testing.T) {
	m := New(8)
	m.PushFloat(1.5)
	_, err := m.PopInt()
	require.Error(t, err)
	require.True(t, errors.Is(err, scripterr.ErrTypeMismatch))
}

func TestPopUnderflow(t *testing.T) {
	m := New(8)
	_, err := m.PopInt()
	require.Error(t, err)
	require.True(t, errors.Is(err, scripterr.ErrStackUnderflow))
}

func TestVectorRoundTrip(t *testing.T) {
	m := New(8)
	m.PushVector([3]float32{1, 2, 3})
	require.Equal(t, 3, m.SP())
	v, err := m.PopVector()
	require.NoError(t, err)
	require.Equal(t, [3]float32{1, 2, 3}, v)
}

func TestSaveRestoreBP(t *testing.T) {
	m := New(8)
	m.PushInt(1)
	m.PushInt(2)
	m.SaveBP()
	// The saved-BP marker occupies cell 2, and BP points just above it.
	require.Equal(t, 3, m.BP())
	m.PushInt(3)
	// RestoreBP needs the marker on top, so the local is popped first.
	local, err := m.PopInt()
	require.NoError(t, err)
	require.EqualValues(t, 3, local)
	require.NoError(t, m.RestoreBP())
	require.Equal(t, 0, m.BP())
	v, err := m.PopInt()
	require.NoError(t, err)
	require.EqualValues(t, 2, v)
}

func TestCPTopSPDuplicates(t *testing.T) {
	m := New(8)
	m.PushInt(7)
	require.NoError(t, m.CPTopSP(-1, 1))
	require.Equal(t, 2, m.SP())
	v, err := m.PopInt()
	require.NoError(t, err)
	require.EqualValues(t, 7, v)
}

func TestDestructPreservesHole(t *testing.T) {
	m := New(8)
	m.PushInt(1)
	m.PushInt(2)
	m.PushInt(3)
	// Pop all 3 cells, keep only the middle one (offset 4 bytes = 1 cell).
	require.NoError(t, m.Destruct(3, 1, 1))
	require.Equal(t, 1, m.SP())
	v, err := m.PopInt()
	require.NoError(t, err)
	require.EqualValues(t, 2, v)
}
