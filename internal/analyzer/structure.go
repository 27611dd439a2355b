// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package analyzer

import (
	mapset "github.com/deckarep/golang-set"

	"github.com/auroraeng/scriptcore/internal/bytecode"
	"github.com/auroraeng/scriptcore/internal/ir"
	"github.com/auroraeng/scriptcore/internal/scripterr"
)

// Structure is the first analyzer pass: recursive-descent discovery of every
// subroutine reachable from #loader, and the control-flow graph within each
// (spec §4.7).
type Structure struct {
	code    []byte
	program *ir.Program

	// ranges holds every fully-walked block, used for containment queries
	// when a newly discovered edge target lands inside an already-walked
	// block (requiring a split).
	ranges []blockRange

	// blocked tracks call targets whose callee Subroutine is still being
	// discovered, so discovery can confirm every forward reference was
	// eventually resolved (spec §4.7 "blocked-callee tracking").
	blocked mapset.Set

	// nodes maps every PC known to start a block — walked or still
	// pending — to its ControlFlow, so a block being walked linearly can
	// recognize it has run into a branch target discovered via a
	// different edge and must stop there instead of decoding across it.
	nodes map[uint32]*ir.ControlFlow
}

type blockRange struct {
	start, end uint32
	cf         *ir.ControlFlow
}

// NewStructure prepares a Structure pass over the given bytecode image.
func NewStructure(code []byte) *Structure {
	return &Structure{
		code:    code,
		blocked: mapset.NewSet(),
		nodes:   make(map[uint32]*ir.ControlFlow),
	}
}

// Run validates the #loader envelope, discovers every subroutine reachable
// from it (including script-situation resume points registered by
// STORE_STATE/STORE_STATEALL), builds each one's control-flow graph, and
// attempts to recognize #globals (spec §4.7, §9).
func (s *Structure) Run() (*ir.Program, error) {
	if err := findLoaderEntry(s.code); err != nil {
		return nil, err
	}

	s.program = ir.NewProgram(int32(len(s.code)))
	s.program.Name = ContentName(s.code)

	loader, _ := s.program.GetOrCreateSubroutine(0, 0)
	loader.Name = "#loader"
	s.program.Loader = loader
	s.nodes[0] = loader.Entry

	pending := []*ir.Subroutine{loader}
	for len(pending) > 0 {
		sub := pending[0]
		pending = pending[1:]
		discovered, err := s.discoverSubroutine(sub)
		if err != nil {
			return nil, err
		}
		pending = append(pending, discovered...)
		sub.Flags |= ir.FlagIsAnalyzed
	}

	if err := s.checkBlockedResolved(); err != nil {
		return nil, err
	}

	s.detectGlobals()
	s.inferParamCells()

	return s.program, nil
}

// findLoaderEntry enforces the exact #loader instruction pattern (spec §4,
// "SUPPLEMENTED FEATURES"): either a void-returning `JSR <entry>; RETN;
// RETN`, or an int-returning `RSADD Int; JSR <entry>; RETN; RETN`, either
// form optionally prefixed by one NOP (a patched-image artifact).
// Anything else fails with ErrInvalidOpcodeType, re-purposed from its usual
// (opcode, type) role to flag a malformed loader envelope.
func findLoaderEntry(code []byte) error {
	r := bytecode.NewReader(code)
	d, err := bytecode.Disassemble(r)
	if err != nil {
		return err
	}
	if d.Opcode == bytecode.OpNOP {
		r.SetPC(d.PC + d.Length)
		if d, err = bytecode.Disassemble(r); err != nil {
			return err
		}
	}

	switch d.Opcode {
	case bytecode.OpJSR:
		return expectLoaderTail(r, d)
	case bytecode.OpRSADD:
		r.SetPC(d.PC + d.Length)
		jsr, err := bytecode.Disassemble(r)
		if err != nil {
			return err
		}
		if jsr.Opcode != bytecode.OpJSR {
			return scripterr.AtDetail(jsr.PC, scripterr.ErrInvalidOpcodeType,
				"#loader: RSADD must be directly followed by JSR")
		}
		return expectLoaderTail(r, jsr)
	default:
		return scripterr.AtDetail(d.PC, scripterr.ErrInvalidOpcodeType,
			"#loader must be JSR;RETN;RETN or RSADD;JSR;RETN;RETN")
	}
}

// expectLoaderTail requires RETN;RETN immediately following the JSR already
// decoded as jsr.
func expectLoaderTail(r *bytecode.Reader, jsr bytecode.Decoded) error {
	r.SetPC(jsr.PC + jsr.Length)
	for i := 0; i < 2; i++ {
		d, err := bytecode.Disassemble(r)
		if err != nil {
			return err
		}
		if d.Opcode != bytecode.OpRETN {
			return scripterr.AtDetail(d.PC, scripterr.ErrInvalidOpcodeType,
				"#loader's JSR must be followed by RETN;RETN")
		}
		r.SetPC(d.PC + d.Length)
	}
	return nil
}

// discoverSubroutine walks every reachable block of sub starting from its
// entry, splitting blocks as new branch targets are discovered and
// returning any newly-seen call/situation targets for the caller's
// worklist.
func (s *Structure) discoverSubroutine(sub *ir.Subroutine) ([]*ir.Subroutine, error) {
	var newSubs []*ir.Subroutine
	worklist := []*ir.ControlFlow{sub.Entry}
	seen := mapset.NewSet()
	seen.Add(sub.Entry.StartPC)

	for len(worklist) > 0 {
		cf := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]

		if s.findRange(cf.StartPC) != nil {
			// Already walked (reached via an earlier edge); nothing to do.
			continue
		}

		flows, subs, err := s.walkBlock(cf, sub, seen)
		if err != nil {
			return nil, err
		}
		worklist = append(worklist, flows...)
		newSubs = append(newSubs, subs...)
	}
	return newSubs, nil
}

// walkBlock decodes instructions from cf.StartPC until it reaches a
// terminator (JMP/JZ/JNZ/RETN) or runs off the end of the image, recording
// cf's extent and wiring successor edges. JSR instructions encountered along
// the way do not end the block (the call always returns to the very next
// instruction); they register the callee for discovery instead.
// STORE_STATE/STORE_STATEALL likewise fall through, but additionally
// register their resume destination as a script-situation subroutine (spec
// §4.7 "script-situation subroutines are first-class IR constructs").
func (s *Structure) walkBlock(cf *ir.ControlFlow, sub *ir.Subroutine, seen mapset.Set) ([]*ir.ControlFlow, []*ir.Subroutine, error) {
	r := bytecode.NewReader(s.code)
	r.SetPC(cf.StartPC)

	var newFlows []*ir.ControlFlow
	var newSubs []*ir.Subroutine

	first := true
	for {
		if !first {
			if existing, ok := s.nodes[r.PC()]; ok && existing != cf {
				s.finishBlock(cf, r.PC(), ir.TermTransfer)
				cf.AddChild(0, existing)
				return newFlows, newSubs, nil
			}
		}
		first = false

		d, err := bytecode.Disassemble(r)
		if err != nil {
			return nil, nil, err
		}

		switch d.Opcode {
		case bytecode.OpJSR:
			target, err := readTargetPC(r, d)
			if err != nil {
				return nil, nil, err
			}
			if cf == sub.Entry && target == sub.EntryPC {
				// An unconditional self-call in the subroutine's own entry
				// block, with no guarding branch anywhere above it, can
				// never terminate (spec §8 "an unbounded self-call must be
				// rejected").
				return nil, nil, scripterr.AtDetail(d.PC, scripterr.ErrUnboundedRecursion, sub.Name)
			}
			callee, created := s.program.GetOrCreateSubroutine(target, 0)
			if created {
				newSubs = append(newSubs, callee)
				s.blocked.Add(target)
			}
			r.SetPC(d.PC + d.Length)
			continue

		case bytecode.OpSTORE_STATE:
			destPC, _, _, err := bytecode.ReadStoreStateOperand(r, d)
			if err != nil {
				return nil, nil, err
			}
			situationSub, created := s.program.GetOrCreateSubroutine(uint32(destPC), 0)
			if created {
				situationSub.Flags |= ir.FlagScriptSituation
				newSubs = append(newSubs, situationSub)
				s.blocked.Add(uint32(destPC))
			}
			sub.Flags |= ir.FlagSavesState
			r.SetPC(d.PC + d.Length)
			continue

		case bytecode.OpSTORE_STATEALL:
			destPC, err := bytecode.ReadStoreStateAllOperand(r, d)
			if err != nil {
				return nil, nil, err
			}
			situationSub, created := s.program.GetOrCreateSubroutine(uint32(destPC), 0)
			if created {
				situationSub.Flags |= ir.FlagScriptSituation
				newSubs = append(newSubs, situationSub)
				s.blocked.Add(uint32(destPC))
			}
			sub.Flags |= ir.FlagSavesState
			r.SetPC(d.PC + d.Length)
			continue

		case bytecode.OpJMP:
			target, err := readTargetPC(r, d)
			if err != nil {
				return nil, nil, err
			}
			s.finishBlock(cf, d.PC+d.Length, ir.TermTransfer)
			child, isNew := s.nodeAt(target, sub, seen)
			cf.AddChild(0, child)
			if isNew {
				newFlows = append(newFlows, child)
			}
			return newFlows, newSubs, nil

		case bytecode.OpJZ, bytecode.OpJNZ:
			target, err := readTargetPC(r, d)
			if err != nil {
				return nil, nil, err
			}
			fallPC := d.PC + d.Length
			s.finishBlock(cf, fallPC, ir.TermSplit)
			fallCF, fallNew := s.nodeAt(fallPC, sub, seen)
			takenCF, takenNew := s.nodeAt(target, sub, seen)
			cf.AddChild(0, fallCF)
			cf.AddChild(1, takenCF)
			if fallNew {
				newFlows = append(newFlows, fallCF)
			}
			if takenNew {
				newFlows = append(newFlows, takenCF)
			}
			return newFlows, newSubs, nil

		case bytecode.OpRETN:
			s.finishBlock(cf, d.PC+d.Length, ir.TermTerminate)
			return newFlows, newSubs, nil

		default:
			r.SetPC(d.PC + d.Length)
		}

		if r.AtEOF() {
			s.finishBlock(cf, r.PC(), ir.TermTerminate)
			return newFlows, newSubs, nil
		}
	}
}

func (s *Structure) finishBlock(cf *ir.ControlFlow, endPC uint32, term ir.TermKind) {
	cf.EndPC = endPC
	cf.Term = term
	s.ranges = append(s.ranges, blockRange{start: cf.StartPC, end: endPC, cf: cf})
}

// nodeAt returns the ControlFlow node starting at pc, splitting an
// already-walked block if pc lands strictly inside it, or allocating a
// fresh one if pc is entirely new. The second return value reports whether
// the node still needs to be walked.
func (s *Structure) nodeAt(pc uint32, sub *ir.Subroutine, seen mapset.Set) (*ir.ControlFlow, bool) {
	if br := s.findRange(pc); br != nil {
		if br.start == pc {
			return br.cf, false
		}
		tail := s.splitBlock(br, pc)
		sub.AddFlow(tail)
		return tail, false
	}
	if existing, ok := s.nodes[pc]; ok {
		return existing, !seen.Contains(pc)
	}
	seen.Add(pc)
	cf := ir.NewControlFlow(pc, 0)
	sub.AddFlow(cf)
	s.nodes[pc] = cf
	return cf, true
}

func (s *Structure) findRange(pc uint32) *blockRange {
	for i := range s.ranges {
		if s.ranges[i].start <= pc && pc < s.ranges[i].end {
			return &s.ranges[i]
		}
	}
	return nil
}

// splitBlock divides br's block in two at pc: the original node keeps
// [start, pc) and falls through unconditionally into a new node covering
// [pc, end), which inherits the original's terminator and children.
func (s *Structure) splitBlock(br *blockRange, pc uint32) *ir.ControlFlow {
	tail := ir.NewControlFlow(pc, 0)
	tail.EndPC = br.end
	tail.Term = br.cf.Term
	tail.Children = br.cf.Children
	for _, child := range tail.Children {
		if child == nil {
			continue
		}
		for pi, parent := range child.Parents {
			if parent == br.cf {
				child.Parents[pi] = tail
			}
		}
	}

	br.cf.EndPC = pc
	br.cf.Term = ir.TermTransfer
	br.cf.Children = [2]*ir.ControlFlow{}
	br.cf.AddChild(0, tail)

	br.end = pc
	s.ranges = append(s.ranges, blockRange{start: pc, end: tail.EndPC, cf: tail})
	s.nodes[pc] = tail

	return tail
}

// readTargetPC reads a branch/call operand via the shared bytecode helper
// and attaches PC context to any read failure.
func readTargetPC(r *bytecode.Reader, d bytecode.Decoded) (uint32, error) {
	v, err := bytecode.ReadBranchTarget(r, d)
	if err != nil {
		return 0, scripterr.At(d.PC, err)
	}
	return v, nil
}

// checkBlockedResolved confirms every call/situation target discovery
// forward-referenced was itself fully walked by the time the BFS worklist
// drained (spec §4.7 "blocked-callee tracking"). A well-formed image always
// satisfies this; the check exists so blocked's bookkeeping is read, not
// just written.
func (s *Structure) checkBlockedResolved() error {
	for _, v := range s.blocked.ToSlice() {
		target := v.(uint32)
		sub, ok := s.program.Subroutines[target]
		if !ok || !sub.Flags.Has(ir.FlagIsAnalyzed) {
			return scripterr.AtDetail(target, scripterr.ErrUnboundedRecursion,
				"callee never resolved by discovery")
		}
	}
	return nil
}

// inferParamCells derives each subroutine's parameter cell count from the
// MOVSP this analyzer's calling convention expects immediately before every
// RETN exit: since a raw JSR instruction carries no argument count of its
// own (spec §4.2's JSR operand is only the target PC), arity has to come
// from the callee's own body instead of the call site. This codebase's
// convention has the callee deallocate its own
// incoming parameters right before returning, so the magnitude of that
// MOVSP's negative operand is the parameter size in bytes.
func (s *Structure) inferParamCells() {
	for _, sub := range s.program.Subroutines {
		if sub == s.program.Loader {
			continue
		}
		best := 0
		for _, cf := range sub.Flows {
			if cf.Term != ir.TermTerminate {
				continue
			}
			if n := s.trailingMovspCells(cf.StartPC, cf.EndPC); n > best {
				best = n
			}
		}
		if best <= 0 {
			continue
		}
		sub.ParamCells = best
		sub.Params = make([]ir.Slot, best/4)
		for i := range sub.Params {
			sub.Params[i] = ir.Slot{Type: ir.TypeVoid, Cells: 1}
		}
	}
}

// trailingMovspCells decodes [start, end) and, when its last instruction is
// RETN immediately preceded by a MOVSP with a negative operand, returns the
// byte count that MOVSP deallocates.
func (s *Structure) trailingMovspCells(start, end uint32) int {
	var seq []bytecode.Decoded
	r := bytecode.NewReader(s.code)
	r.SetPC(start)
	for r.PC() < end {
		d, err := bytecode.Disassemble(r)
		if err != nil {
			return 0
		}
		seq = append(seq, d)
		r.SetPC(d.PC + d.Length)
	}
	n := len(seq)
	if n < 2 || seq[n-1].Opcode != bytecode.OpRETN || seq[n-2].Opcode != bytecode.OpMOVSP {
		return 0
	}
	delta, err := bytecode.ReadMoveOperand(r, seq[n-2])
	if err != nil || delta >= 0 {
		return 0
	}
	return int(-delta)
}

// detectGlobals recognizes the #globals pseudo-subroutine: #loader's first
// JSR (skipping over the leading RSADD an int-returning loader carries)
// targets #globals when that routine executes a SAVEBP before its own first
// JSR. The routine's instructions are scanned in PC order from its entry;
// reaching a JSR or RETN first means it is an ordinary subroutine.
func (s *Structure) detectGlobals() {
	loader := s.program.Loader
	if loader == nil {
		return
	}
	r := bytecode.NewReader(s.code)
	r.SetPC(loader.EntryPC)
	d, err := bytecode.Disassemble(r)
	if err != nil {
		return
	}
	if d.Opcode == bytecode.OpRSADD {
		r.SetPC(d.PC + d.Length)
		if d, err = bytecode.Disassemble(r); err != nil {
			return
		}
	}
	if d.Opcode != bytecode.OpJSR {
		return
	}
	target, err := readTargetPC(r, d)
	if err != nil {
		return
	}
	sub, ok := s.program.Subroutines[target]
	if !ok || sub == loader {
		return
	}

	gr := bytecode.NewReader(s.code)
	gr.SetPC(sub.EntryPC)
	for {
		gd, err := bytecode.Disassemble(gr)
		if err != nil || gd.Opcode == bytecode.OpJSR || gd.Opcode == bytecode.OpRETN {
			return
		}
		if gd.Opcode == bytecode.OpSAVEBP {
			break
		}
		gr.SetPC(gd.PC + gd.Length)
	}

	sub.Name = "#globals"
	s.program.Globals = sub
}
