// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package ir

import "fmt"

// Program is the complete analyzed result of one script image (spec §3): the
// #loader and #globals pseudo-subroutines, every ordinary subroutine keyed
// by entry PC, and the set of global Variables #globals initializes.
type Program struct {
	// Name identifies this analyzed image for situation-resume validation
	// (spec §4.6 "requires the script name to match the currently
	// executing program"): a content hash of the bytecode it was analyzed
	// from, computed once by Structure.Run. Two byte-identical images
	// always share a Name; two different images practically never collide.
	Name string

	// Loader and Globals are nil until the Structure pass locates them;
	// not every valid script image has a #globals routine.
	Loader  *Subroutine
	Globals *Subroutine

	// Subroutines maps entry PC to the discovered Subroutine there, for
	// every call target reached from #loader (spec §4.7).
	Subroutines map[uint32]*Subroutine

	// GlobalVars are the Variables #globals initializes, in declaration
	// order; JSR/RETN calling convention aside, these are the only
	// Variables visible across subroutine boundaries.
	GlobalVars []*Variable

	// CodeSize is the size, in bytes, of the bytecode image this Program
	// was analyzed from.
	CodeSize int32

	nextVarID int
	nextSubID int
}

// NewProgram allocates an empty Program.
func NewProgram(codeSize int32) *Program {
	return &Program{
		Subroutines: make(map[uint32]*Subroutine),
		CodeSize:    codeSize,
	}
}

// NewVariableID returns a fresh Variable identifier unique within this
// Program.
func (p *Program) NewVariableID() int {
	id := p.nextVarID
	p.nextVarID++
	return id
}

// GetOrCreateSubroutine returns the Subroutine already discovered at entryPC,
// or allocates and registers a new one starting at the given stack depth.
func (p *Program) GetOrCreateSubroutine(entryPC uint32, startSP int) (*Subroutine, bool) {
	if sub, ok := p.Subroutines[entryPC]; ok {
		return sub, false
	}
	p.nextSubID++
	sub := NewSubroutine(subroutineName(entryPC), entryPC, startSP)
	p.Subroutines[entryPC] = sub
	return sub, true
}

func subroutineName(entryPC uint32) string {
	return fmt.Sprintf("sub_%06x", entryPC)
}

// AddGlobal registers a Variable as part of the #globals-initialized set.
func (p *Program) AddGlobal(v *Variable) {
	p.GlobalVars = append(p.GlobalVars, v)
}
