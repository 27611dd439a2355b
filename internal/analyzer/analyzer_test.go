// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package analyzer

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/auroraeng/scriptcore/internal/bytecode"
	"github.com/auroraeng/scriptcore/internal/ir"
)

// opShape flattens a subroutine's instruction stream to a comparable value:
// the Variable pointers Analyze allocates differ run to run, but the
// sequence of opcodes a deterministic analysis produces must not.
func opShape(program *ir.Program) map[string][]string {
	shape := make(map[string][]string)
	for _, sub := range program.Subroutines {
		var ops []string
		for _, flow := range sub.Flows {
			for _, inst := range flow.Instructions {
				ops = append(ops, inst.Op.String())
			}
		}
		shape[sub.Name] = ops
	}
	return shape
}

func be32(v uint32) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}

func TestAnalyzeLoaderOnly(t *testing.T) {
	var code []byte
	// #loader: JSR #entry(PC10); RETN; RETN
	code = append(code, byte(bytecode.OpJSR), byte(bytecode.TypeVoid))
	code = append(code, be32(10)...)
	code = append(code, byte(bytecode.OpRETN), byte(bytecode.TypeVoid))
	code = append(code, byte(bytecode.OpRETN), byte(bytecode.TypeVoid))
	require.Equal(t, 10, len(code))

	// #entry (at PC 10): CONST Int 5; RETN
	code = append(code, byte(bytecode.OpCONST), byte(bytecode.TypeInt))
	code = append(code, be32(5)...)
	code = append(code, byte(bytecode.OpRETN), byte(bytecode.TypeVoid))

	program, err := Analyze(code)
	require.NoError(t, err)
	require.NotNil(t, program.Loader)
	require.Equal(t, uint32(0), program.Loader.EntryPC)
	require.Nil(t, program.Globals)

	entry, ok := program.Subroutines[10]
	require.True(t, ok)
	flow := entry.Entry
	require.Equal(t, ir.TermTerminate, flow.Term)
	// The CONST's result is never read, so the dead-write elimination pass
	// drops it, leaving only RETN.
	require.Len(t, flow.Instructions, 1)
	require.Equal(t, ir.OpRETN, flow.Instructions[0].Op)
}

func TestAnalyzeDetectsGlobals(t *testing.T) {
	var code []byte
	// #loader: JSR #globals(PC10); RETN; RETN
	code = append(code, byte(bytecode.OpJSR), byte(bytecode.TypeVoid))
	code = append(code, be32(10)...)
	code = append(code, byte(bytecode.OpRETN), byte(bytecode.TypeVoid))
	code = append(code, byte(bytecode.OpRETN), byte(bytecode.TypeVoid))
	require.Equal(t, 10, len(code))

	// #globals (at PC 10): SAVEBP; RESTOREBP; RETN
	code = append(code, byte(bytecode.OpSAVEBP), byte(bytecode.TypeVoid))
	code = append(code, byte(bytecode.OpRESTOREBP), byte(bytecode.TypeVoid))
	code = append(code, byte(bytecode.OpRETN), byte(bytecode.TypeVoid))

	program, err := Analyze(code)
	require.NoError(t, err)
	require.NotNil(t, program.Loader)
	require.NotNil(t, program.Globals)
	require.Equal(t, uint32(10), program.Globals.EntryPC)
	require.Equal(t, "#globals", program.Globals.Name)
	require.Equal(t, "#loader", program.Loader.Name)
}

// branchMergeImage builds "#loader: JSR #branch(PC10); RETN; RETN" followed
// by an if/else at PC10 where both arms push one value and converge:
//
//	PC10 CONST Int 1
//	PC16 JZ  PC34            (branch to the else arm)
//	PC22 CONST Int 2         (then arm)
//	PC28 JMP PC40            (skip the else arm, join)
//	PC34 CONST Int 3         (else arm, falls through to the join)
//	PC40 RETN                (join point, two parents)
func branchMergeImage() []byte {
	var code []byte
	code = append(code, byte(bytecode.OpJSR), byte(bytecode.TypeVoid))
	code = append(code, be32(10)...)
	code = append(code, byte(bytecode.OpRETN), byte(bytecode.TypeVoid))
	code = append(code, byte(bytecode.OpRETN), byte(bytecode.TypeVoid))

	code = append(code, byte(bytecode.OpCONST), byte(bytecode.TypeInt))
	code = append(code, be32(1)...) // PC10..16
	code = append(code, byte(bytecode.OpJZ), byte(bytecode.TypeVoid))
	code = append(code, be32(34)...) // PC16..22, target PC34
	code = append(code, byte(bytecode.OpCONST), byte(bytecode.TypeInt))
	code = append(code, be32(2)...) // PC22..28
	code = append(code, byte(bytecode.OpJMP), byte(bytecode.TypeVoid))
	code = append(code, be32(40)...) // PC28..34, target PC40
	code = append(code, byte(bytecode.OpCONST), byte(bytecode.TypeInt))
	code = append(code, be32(3)...) // PC34..40
	code = append(code, byte(bytecode.OpRETN), byte(bytecode.TypeVoid))
	return code
}

func TestAnalyzeBranchMergesStack(t *testing.T) {
	code := branchMergeImage()
	require.EqualValues(t, 40, len(code)-2)

	program, err := Analyze(code)
	require.NoError(t, err)
	require.NotNil(t, program.Loader)

	branch, ok := program.Subroutines[10]
	require.True(t, ok)
	require.Equal(t, ir.TermSplit, branch.Entry.Term)

	join := branch.Entry.Children[0].Children[0]
	require.NotNil(t, join)
	require.True(t, join.IsMerge())
	require.Equal(t, ir.TermTerminate, join.Term)
}

// TestAnalyzeIsDeterministic runs the same image through Analyze twice and
// requires the opcode shape of every subroutine to match exactly (spec §8
// "analysis of the same image always produces the same result").
func TestAnalyzeIsDeterministic(t *testing.T) {
	code := branchMergeImage()

	first, err := Analyze(code)
	require.NoError(t, err)
	second, err := Analyze(code)
	require.NoError(t, err)

	if diff := cmp.Diff(opShape(first), opShape(second)); diff != "" {
		t.Fatalf("analysis of the same image diverged (-first +second):\n%s", diff)
	}
}
