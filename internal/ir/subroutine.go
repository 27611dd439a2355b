// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package ir

// SubFlags records analysis progress and special roles for a Subroutine
// (spec §3 Subroutine, §4.7, §9).
type SubFlags uint8

const (
	// FlagScriptSituation marks a subroutine synthesized as the resume
	// entry point of a captured situation rather than discovered via a
	// JSR call site (spec §4.6, §9 "Script-situation subroutines as
	// first-class IR constructs").
	FlagScriptSituation SubFlags = 1 << iota
	// FlagSavesState marks a subroutine whose body contains a STORE_STATE
	// or STORE_STATEALL instruction.
	FlagSavesState
	FlagIsAnalyzed
	FlagIsTypeAnalyzed
)

func (f SubFlags) Has(bit SubFlags) bool { return f&bit != 0 }

// Slot describes one parameter or return-value cell group: its position in
// calling-convention order and its resolved type.
type Slot struct {
	Type Type
	// Cells is how many stack cells this slot occupies (1, normally; 3 for
	// a vector).
	Cells int
}

// Subroutine is one analyzed routine: a discovered call target, #loader,
// #globals, or a script-situation resume entry (spec §3 Subroutine).
type Subroutine struct {
	// Name identifies the subroutine for diagnostics: "#loader", "#globals",
	// or a synthesized "sub_<entry>".
	Name string

	EntryPC uint32

	Params  []Slot
	Returns []Slot

	// ParamCells is the total size, in bytes, the calling convention
	// reserves for this subroutine's parameters, inferred from the MOVSP
	// this analyzer expects immediately before each of its RETN exits (see
	// Structure.inferParamCells). Params mirrors it as one Slot per 4-byte
	// cell once known, so a CALL site has something to link argument types
	// against positionally.
	ParamCells int

	// ParamVars is the ordered list of Parameter-class Variables the Code
	// pass seeds this subroutine's entry symbolic stack with, one per cell
	// of ParamCells (see Code.entryParams). callSubroutine binds an
	// incoming CALL's argument Values onto these positionally.
	ParamVars []*Variable

	Flags SubFlags

	// Entry is the subroutine's first ControlFlow node; Flows lists every
	// node reachable from it in discovery order.
	Entry *ControlFlow
	Flows []*ControlFlow

	// Locals are the subroutine-local Variables allocated across its
	// flows (not globals, which live on the owning Program).
	Locals []*Variable

	// CallSites records every CALL instruction (anywhere in the program)
	// that targets this subroutine, used by the Structure pass to detect
	// when a callee is still blocked (spec §4.7 "blocked-callee
	// tracking").
	CallSites []*Instruction
}

// NewSubroutine allocates a Subroutine rooted at entryPC with a fresh entry
// ControlFlow at the given starting stack depth.
func NewSubroutine(name string, entryPC uint32, startSP int) *Subroutine {
	entry := NewControlFlow(entryPC, startSP)
	return &Subroutine{
		Name:    name,
		EntryPC: entryPC,
		Entry:   entry,
		Flows:   []*ControlFlow{entry},
	}
}

// AddFlow records a newly discovered ControlFlow as belonging to this
// subroutine.
func (s *Subroutine) AddFlow(cf *ControlFlow) { s.Flows = append(s.Flows, cf) }

// NewLocal allocates and registers a new subroutine-local Variable.
func (s *Subroutine) NewLocal(id int, class Class, t Type) *Variable {
	v := NewVariable(id, class, t)
	s.Locals = append(s.Locals, v)
	return v
}
