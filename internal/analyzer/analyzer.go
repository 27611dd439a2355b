// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package analyzer

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/auroraeng/scriptcore/internal/ir"
)

// ContentName is the stable identity Structure.Run stamps onto every
// analyzed Program's Name (spec §4.6 "requires the script name to match the
// currently executing program"): a content hash of the bytecode, so two
// byte-identical images always share a Name whether they reach a situation
// through the analyzed NativeCodegen VM or the raw ReferenceVM, which never
// builds a Program at all.
func ContentName(code []byte) string {
	sum := sha256.Sum256(code)
	return hex.EncodeToString(sum[:])
}

// AnalyzeOptions selects which of Analyze's passes run beyond the mandatory
// Structure/Code lift (spec §6.6 Controls.EnableIROptimizations).
type AnalyzeOptions struct {
	// SkipOptimizer omits the Optimizer pass (dead-write and copy
	// elimination), trading analysis completeness for speed.
	SkipOptimizer bool
}

// Analyze runs all three passes over a raw bytecode image and returns the
// resulting Program: Structure (subroutine/CFG discovery), Code (typed IR
// lifting), Optimizer (dead-write and copy elimination), in that order
// (spec §4.7-§4.9). It is AnalyzeWithOptions with every pass enabled.
func Analyze(code []byte) (*ir.Program, error) {
	return AnalyzeWithOptions(code, AnalyzeOptions{})
}

// AnalyzeWithOptions is Analyze with Controls-driven pass selection.
func AnalyzeWithOptions(code []byte, opts AnalyzeOptions) (*ir.Program, error) {
	program, err := NewStructure(code).Run()
	if err != nil {
		return nil, err
	}
	if err := NewCode(code, program).Run(); err != nil {
		return nil, err
	}
	if !opts.SkipOptimizer {
		if err := NewOptimizer(program).Run(); err != nil {
			return nil, err
		}
	}
	return program, nil
}
