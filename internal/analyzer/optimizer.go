// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package analyzer

import "github.com/auroraeng/scriptcore/internal/ir"

// Optimizer is the third analyzer pass: it classifies every local Variable
// (flow-local, single-assignment, write-only) and then removes the
// instructions that classification renders unobservable — dead
// INITIALIZE/CREATE, redundant double-CREATE, and forward/backward copies —
// without touching the externally observable ACTION/CALL/SAVE_STATE/RETN
// instructions (spec §4.9). The pass structure mirrors the teacher's
// lang/ir/optimize.go, which runs ConstantFold, DeadCodeEliminate and
// CommonSubexprEliminate over the same function in sequence; here the three
// stages are classify, eliminate-dead-writes, eliminate-copies.
type Optimizer struct {
	program *ir.Program
}

// NewOptimizer prepares the Optimizer pass over a Code-analyzed program.
func NewOptimizer(program *ir.Program) *Optimizer {
	return &Optimizer{program: program}
}

// Run optimizes every subroutine in the program.
func (o *Optimizer) Run() error {
	for _, sub := range o.program.Subroutines {
		o.classify(sub)
		o.eliminateDeadWrites(sub)
		o.eliminateCopies(sub)
	}
	return nil
}

// classify computes, for every local Variable, whether it is read/written
// within a single flow only (FlagLocalToFlow), assigned exactly once
// (FlagSingleAssignment), and never read at all (FlagWriteOnly).
func (o *Optimizer) classify(sub *ir.Subroutine) {
	writes := map[*ir.Variable]int{}
	reads := map[*ir.Variable]int{}
	homeFlow := map[*ir.Variable]*ir.ControlFlow{}
	crossFlow := map[*ir.Variable]bool{}

	for _, cf := range sub.Flows {
		for _, inst := range cf.Instructions {
			if inst.Result != nil {
				writes[inst.Result]++
				if home, ok := homeFlow[inst.Result]; ok && home != cf {
					crossFlow[inst.Result] = true
				} else {
					homeFlow[inst.Result] = cf
				}
			}
			for _, in := range []*ir.Variable{inst.In1, inst.In2} {
				if in == nil {
					continue
				}
				reads[in]++
				if home, ok := homeFlow[in]; ok && home != cf {
					crossFlow[in] = true
				}
			}
			for _, a := range inst.Args {
				reads[a]++
				if home, ok := homeFlow[a]; ok && home != cf {
					crossFlow[a] = true
				}
			}
		}
	}

	for _, v := range sub.Locals {
		root := v.GetHeadVariable()
		if !crossFlow[root] {
			root.Flags |= ir.FlagLocalToFlow
		}
		if writes[root] <= 1 {
			root.Flags |= ir.FlagSingleAssignment
		}
		if reads[root] == 0 {
			root.Flags |= ir.FlagWriteOnly
		}
	}
}

// eliminateDeadWrites drops CREATE/INITIALIZE instructions whose result is
// write-only and not itself the product of merging (a multiply-created
// Variable may still be observably read through a sibling branch's copy of
// it, so it is left alone).
func (o *Optimizer) eliminateDeadWrites(sub *ir.Subroutine) {
	for _, cf := range sub.Flows {
		kept := cf.Instructions[:0]
		var prevCreatePC uint32
		havePrevCreate := false
		for _, inst := range cf.Instructions {
			if (inst.Op == ir.OpCREATE || inst.Op == ir.OpINITIALIZE) && inst.Result != nil {
				root := inst.Result.GetHeadVariable()
				if root.Flags.Has(ir.FlagWriteOnly) && !root.Flags.Has(ir.FlagMultiplyCreated) {
					root.Flags |= ir.FlagOptimizerEliminated
					continue
				}
				// Double-create removal: two CREATEs lifted from the same
				// bytecode PC back to back with nothing between them are
				// collapsed to the first.
				if inst.Op == ir.OpCREATE && havePrevCreate && inst.PC == prevCreatePC {
					continue
				}
				if inst.Op == ir.OpCREATE {
					prevCreatePC, havePrevCreate = inst.PC, true
				}
			} else {
				havePrevCreate = false
			}
			kept = append(kept, inst)
		}
		cf.Instructions = kept
	}
}

// eliminateCopies removes ASSIGN instructions that do nothing but alias one
// Variable to another (the CPDOWNSP/CPDOWNBP lifts from the Code pass),
// folding the destination into the source everywhere it's subsequently used
// — both forward within the same flow and backward into flows already
// emitted, since union-find Variable identity makes the substitution global
// rather than positional.
func (o *Optimizer) eliminateCopies(sub *ir.Subroutine) {
	for _, cf := range sub.Flows {
		kept := cf.Instructions[:0]
		for _, inst := range cf.Instructions {
			if inst.Op == ir.OpASSIGN && inst.Result != nil && inst.In1 != nil {
				dst := inst.Result.GetHeadVariable()
				src := inst.In1.GetHeadVariable()
				if dst != src && dst.Flags.Has(ir.FlagSingleAssignment) {
					ir.Merge(src, dst)
					dst.Flags |= ir.FlagOptimizerEliminated
					continue
				}
			}
			kept = append(kept, inst)
		}
		cf.Instructions = kept
	}
}
