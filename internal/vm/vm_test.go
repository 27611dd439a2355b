// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package vm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/auroraeng/scriptcore/internal/ir"
	"github.com/auroraeng/scriptcore/internal/scripterr"
)

func buildAddProgram() *ir.Program {
	program := ir.NewProgram(32)
	loader := ir.NewSubroutine("#loader", 0, 0)
	program.Loader = loader
	program.Subroutines[0] = loader

	c1 := ir.NewConstant(0, ir.TypeInt, int32(2))
	c2 := ir.NewConstant(1, ir.TypeInt, int32(3))
	sum := ir.NewVariable(2, ir.ClassLocal, ir.TypeVoid)
	loader.Locals = append(loader.Locals, c1, c2, sum)

	cf := loader.Entry
	cf.Term = ir.TermTerminate
	cf.Append(&ir.Instruction{Op: ir.OpCREATE, Result: c1})
	cf.Append(&ir.Instruction{Op: ir.OpCREATE, Result: c2})
	cf.Append(&ir.Instruction{Op: ir.OpADD, In1: c1, In2: c2, Result: sum})
	cf.Append(&ir.Instruction{Op: ir.OpRETN, Result: sum})

	return program
}

func TestExecuteAddsConstants(t *testing.T) {
	m := New(buildAddProgram(), NewRegistry(), DefaultLimits)
	results, err := m.Execute(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.EqualValues(t, 5, results[0].I)
}

func TestExecuteHonorsInstructionBudget(t *testing.T) {
	m := New(buildAddProgram(), NewRegistry(), Limits{MaxInstructions: 2, MaxCallDepth: 8})
	_, err := m.Execute(context.Background(), 0)
	require.Error(t, err)
	require.True(t, errors.Is(err, scripterr.ErrInstructionBudgetExceeded))
}

func TestEvalBinaryDivideByZero(t *testing.T) {
	_, err := evalBinary(ir.OpDIV, IntValue(1), IntValue(0), 0)
	require.Error(t, err)
	require.True(t, errors.Is(err, scripterr.ErrDivideByZero))
}

func TestEvalBinaryFloatPromotion(t *testing.T) {
	v, err := evalBinary(ir.OpADD, IntValue(1), FloatValue(2.5), 0)
	require.NoError(t, err)
	require.Equal(t, ir.TypeFloat, v.Type)
	require.InDelta(t, 3.5, float64(v.F), 1e-6)
}

func TestActionRegistryArityMismatch(t *testing.T) {
	reg := NewRegistry()
	reg.Register(1, 2, 2, func(ctx context.Context, args []Value) (Value, error) {
		return Value{}, nil
	})
	_, err := reg.Invoke(context.Background(), 1, []Value{IntValue(1)})
	require.Error(t, err)
	require.True(t, errors.Is(err, scripterr.ErrActionArity))
}

func TestSituationCodecRoundTrip(t *testing.T) {
	codec := SituationCodec{}
	situation := &ir.Situation{
		ResumeMethodID:  1,
		ResumePC:        42,
		SaveGlobalCount: 0,
		SaveLocalCount:  0,
		ObjectSelf:      7,
		CodeSize:        100,
		ScriptName:      "test",
	}
	m := codec.Encode(situation, nil, nil)
	decoded, err := codec.Decode(m, "test", 100)
	require.NoError(t, err)
	require.Equal(t, situation.ResumePC, decoded.ResumePC)
	require.Equal(t, situation.ScriptName, decoded.ScriptName)
}

func TestSituationCodecRejectsCodeSizeMismatch(t *testing.T) {
	codec := SituationCodec{}
	situation := &ir.Situation{CodeSize: 100, ScriptName: "test"}
	m := codec.Encode(situation, nil, nil)
	_, err := codec.Decode(m, "test", 200)
	require.Error(t, err)
	require.True(t, errors.Is(err, scripterr.ErrSituationSignatureMismatch))
}

func TestSituationCodecRejectsScriptNameMismatch(t *testing.T) {
	codec := SituationCodec{}
	situation := &ir.Situation{CodeSize: 100, ScriptName: "test"}
	m := codec.Encode(situation, nil, nil)
	_, err := codec.Decode(m, "other", 100)
	require.Error(t, err)
	require.True(t, errors.Is(err, scripterr.ErrSituationSignatureMismatch))
}

func TestSituationCodecZeroCodeSizeAlwaysPasses(t *testing.T) {
	codec := SituationCodec{}
	situation := &ir.Situation{CodeSize: 0, ScriptName: "legacy"}
	m := codec.Encode(situation, nil, nil)
	_, err := codec.Decode(m, "legacy", 9999)
	require.NoError(t, err)
}
