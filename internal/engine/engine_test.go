// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/auroraeng/scriptcore/internal/vm"
)

// constReturnImage is "CONST Int 7 / RETN" as raw big-endian bytecode: a
// two-byte opcode+type header, a four-byte int32 operand, then the
// zero-operand RETN header.
func constReturnImage(v int32) []byte {
	code := []byte{
		0x04, 0x03, // CONST Int
		byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v),
		0x20, 0x00, // RETN Void
	}
	return code
}

func TestExecuteScriptRunsLoader(t *testing.T) {
	e, err := New(DefaultControls)
	require.NoError(t, err)

	// The 8-byte image is under rawVMCodeSize, so SelectEngine runs it on
	// the raw ReferenceVM with no analysis: CONST pushes 7 and the
	// top-level RETN completes the run with that value on the stack.
	_, err = e.ExecuteScript(context.Background(), constReturnImage(7), 0)
	require.NoError(t, err)
}

func TestLoadProgramCachesByContent(t *testing.T) {
	e, err := New(DefaultControls)
	require.NoError(t, err)

	// LoadProgram analyzes the image, so it needs the #loader envelope:
	// JSR to PC 10; RETN; RETN, then "CONST Int 42 / RETN" at PC 10.
	code := append([]byte{
		0x1E, 0x00, 0x00, 0x00, 0x00, 0x0A, // JSR 10
		0x20, 0x00, // RETN Void
		0x20, 0x00, // RETN Void
	}, constReturnImage(42)...)
	first, err := e.LoadProgram(code)
	require.NoError(t, err)
	second, err := e.LoadProgram(code)
	require.NoError(t, err)
	require.Same(t, first, second)
}

// actionCallImage is "ACTION ordinal=3 argCount=0 / RETN" as raw bytecode.
func actionCallImage(ordinal uint16) []byte {
	return []byte{
		0x05, 0x00, byte(ordinal >> 8), byte(ordinal), 0x00, // ACTION ordinal, argCount=0
		0x20, 0x00, // RETN Void
	}
}

func TestRegisterExposesActionToScripts(t *testing.T) {
	e, err := New(DefaultControls)
	require.NoError(t, err)

	called := false
	e.Register(3, 0, 0, func(ctx context.Context, args []vm.Value) (vm.Value, error) {
		called = true
		return vm.IntValue(1), nil
	})

	_, err = e.ExecuteScript(context.Background(), actionCallImage(3), 0)
	require.NoError(t, err)
	require.True(t, called, "script's ACTION instruction should have invoked the registered handler")
}

func TestCompressImageRoundTrip(t *testing.T) {
	code := constReturnImage(99)
	compressed := CompressImage(code)
	decompressed, err := DecompressImage(compressed)
	require.NoError(t, err)
	require.Equal(t, code, decompressed)
}
