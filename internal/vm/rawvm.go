// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package vm

import (
	"context"

	"github.com/auroraeng/scriptcore/internal/bytecode"
	"github.com/auroraeng/scriptcore/internal/ir"
	"github.com/auroraeng/scriptcore/internal/scripterr"
	"github.com/auroraeng/scriptcore/internal/stackmachine"
)

// frameSentinel is the return address RawVM.run pushes for the outermost
// call, letting RETN tell a legitimate top-level unwind apart from a
// genuinely unbalanced one (spec §4.4 "Unbalanced RETN... fails with
// FrameUnderflow").
const frameSentinel = ^uint32(0)

// RawVM executes a script image straight off its bytecode, with no
// Structure/Code analysis pass in front of it (spec §4.1 "Host ->
// BytecodeReader -> {VM || Analyzer}"; §4.4's ReferenceVM, selected by
// SelectEngine for scripts too small or untrusted to warrant the analyzed
// NativeCodegen path). It shares StackMachine with that VM (spec §4.3
// "shared by the VM and any interpreter fallback") but owns its own
// fetch/decode/execute loop over raw, relative-displacement control flow,
// grounded on the same dispatch shape as vm.VM's evalBinary/evalUnary
// (internal/vm/vm.go) retargeted from typed IR Variables to stackmachine
// cells addressed the way the reference interpreter's bytecode itself
// addresses them.
type RawVM struct {
	dispatcher ActionDispatcher
	limits     Limits
	scriptName string
	codeSize   int32

	// OnSaveState is invoked synchronously whenever STORE_STATE/
	// STORE_STATEALL executes, receiving the captured Situation and a
	// fresh Machine already holding the snapshotted globals/locals cells
	// in SituationCodec wire order (spec §4.6). A nil OnSaveState makes
	// the capture a no-op; either way the script continues running past
	// the instruction, since STORE_STATE does not itself transfer control.
	OnSaveState func(situation *ir.Situation, snapshot *stackmachine.Machine)

	instructionsUsed int
	callDepth        int
	loopVisits       map[uint32]int
	aborted          bool
}

// NewRaw creates a RawVM over a script image identified by scriptName and
// codeSize (stamped onto any situation it captures: spec §4.6), dispatching
// ACTION instructions to dispatcher.
func NewRaw(scriptName string, codeSize int32, dispatcher ActionDispatcher, limits Limits) *RawVM {
	return &RawVM{
		dispatcher: dispatcher,
		limits:     limits,
		scriptName: scriptName,
		codeSize:   codeSize,
	}
}

// AbortScript requests that the currently executing script be torn down
// with an error; effective at the next instruction boundary (spec §4.4).
func (m *RawVM) AbortScript() { m.aborted = true }

// Execute runs the script starting at entryPC. The host has already pushed
// return-value placeholders and arguments onto paramStack in declaration
// order, outermost return first, then parameters left-to-right (spec §4.4);
// Execute returns whatever single value sits on top of the stack once the
// call unwinds completely.
func (m *RawVM) Execute(ctx context.Context, entryPC uint32, reader *bytecode.Reader, paramStack *stackmachine.Machine, objectSelf int32) (Value, error) {
	m.instructionsUsed = 0
	m.callDepth = 0
	m.loopVisits = make(map[uint32]int)
	m.aborted = false
	return m.run(ctx, entryPC, reader, paramStack, objectSelf)
}

// ExecuteSituation resumes a previously captured situation (spec §4.6): the
// caller has already restored stack and BP onto restored; the VM resumes at
// the saved PC.
func (m *RawVM) ExecuteSituation(ctx context.Context, reader *bytecode.Reader, state *ir.Situation, restored *stackmachine.Machine) (Value, error) {
	m.instructionsUsed = 0
	m.callDepth = 0
	m.loopVisits = make(map[uint32]int)
	m.aborted = false
	if !state.ValidateResume(m.scriptName, m.codeSize) {
		return Value{}, scripterr.AtDetail(state.ResumePC, scripterr.ErrSituationSignatureMismatch, state.ScriptName)
	}
	return m.run(ctx, state.ResumePC, reader, restored, state.ObjectSelf)
}

// run is the shared fetch/decode/execute loop driving both Execute and
// ExecuteSituation.
func (m *RawVM) run(ctx context.Context, pc uint32, reader *bytecode.Reader, s *stackmachine.Machine, objectSelf int32) (Value, error) {
	callStack := []uint32{frameSentinel}

	for {
		select {
		case <-ctx.Done():
			return Value{}, scripterr.At(pc, scripterr.ErrAborted)
		default:
		}
		if m.aborted {
			return Value{}, scripterr.At(pc, scripterr.ErrAborted)
		}

		m.instructionsUsed++
		if m.limits.MaxInstructions > 0 && m.instructionsUsed > m.limits.MaxInstructions {
			return Value{}, scripterr.At(pc, scripterr.ErrInstructionBudgetExceeded)
		}

		reader.SetPC(pc)
		d, err := bytecode.Disassemble(reader)
		if err != nil {
			return Value{}, err
		}

		switch d.Opcode {
		case bytecode.OpNOP:
			pc = d.PC + d.Length

		case bytecode.OpCONST:
			if err := execConst(reader, d, s); err != nil {
				return Value{}, err
			}
			pc = d.PC + d.Length

		case bytecode.OpRSADD:
			pushZero(s, d.Type)
			pc = d.PC + d.Length

		case bytecode.OpCPDOWNSP, bytecode.OpCPDOWNBP, bytecode.OpCPTOPSP, bytecode.OpCPTOPBP:
			if err := execCopy(d.Opcode, reader, d, s); err != nil {
				return Value{}, err
			}
			pc = d.PC + d.Length

		case bytecode.OpMOVSP:
			delta, err := bytecode.ReadMoveOperand(reader, d)
			if err != nil {
				return Value{}, err
			}
			if err := s.MoveSP(int(delta) / 4); err != nil {
				return Value{}, err
			}
			pc = d.PC + d.Length

		case bytecode.OpDESTRUCT:
			size, exOffset, exSize, err := bytecode.ReadDestructOperand(reader, d)
			if err != nil {
				return Value{}, err
			}
			if err := s.Destruct(int(size)/4, int(exOffset)/4, int(exSize)/4); err != nil {
				return Value{}, err
			}
			pc = d.PC + d.Length

		case bytecode.OpSAVEBP:
			s.SaveBP()
			pc = d.PC + d.Length

		case bytecode.OpRESTOREBP:
			if err := s.RestoreBP(); err != nil {
				return Value{}, err
			}
			pc = d.PC + d.Length

		case bytecode.OpDECISP, bytecode.OpINCISP, bytecode.OpDECIBP, bytecode.OpINCIBP:
			if err := execIncDec(d.Opcode, d.Type, reader, d, s); err != nil {
				return Value{}, err
			}
			pc = d.PC + d.Length

		case bytecode.OpACTION:
			if err := m.execAction(ctx, reader, d, s); err != nil {
				return Value{}, err
			}
			pc = d.PC + d.Length

		case bytecode.OpJMP:
			target, err := relativeTarget(reader, d)
			if err != nil {
				return Value{}, err
			}
			if err := m.checkLoop(target, d.PC); err != nil {
				return Value{}, err
			}
			pc = target

		case bytecode.OpJZ, bytecode.OpJNZ:
			target, err := relativeTarget(reader, d)
			if err != nil {
				return Value{}, err
			}
			cond, err := popTruthy(s)
			if err != nil {
				return Value{}, err
			}
			taken := cond
			if d.Opcode == bytecode.OpJZ {
				taken = !cond
			}
			if !taken {
				pc = d.PC + d.Length
				continue
			}
			if err := m.checkLoop(target, d.PC); err != nil {
				return Value{}, err
			}
			pc = target

		case bytecode.OpJSR:
			target, err := relativeTarget(reader, d)
			if err != nil {
				return Value{}, err
			}
			if m.limits.MaxCallDepth > 0 && m.callDepth+1 > m.limits.MaxCallDepth {
				return Value{}, scripterr.At(d.PC, scripterr.ErrCallDepthExceeded)
			}
			m.callDepth++
			callStack = append(callStack, d.PC+d.Length)
			pc = target

		case bytecode.OpRETN:
			if len(callStack) == 0 {
				return Value{}, scripterr.At(d.PC, scripterr.ErrFrameUnderflow)
			}
			ret := callStack[len(callStack)-1]
			callStack = callStack[:len(callStack)-1]
			if ret == frameSentinel {
				return topValue(s)
			}
			m.callDepth--
			pc = ret

		case bytecode.OpSTORE_STATE, bytecode.OpSTORE_STATEALL:
			if err := m.execStoreState(d.Opcode, reader, d, s, objectSelf); err != nil {
				return Value{}, err
			}
			pc = d.PC + d.Length

		default:
			if err := execArith(d.Opcode, d.Type, s, d.PC); err != nil {
				return Value{}, err
			}
			pc = d.PC + d.Length
		}
	}
}

// checkLoop enforces MaxLoopIterations on a backward branch (spec §6.6): a
// forward jump never counts against the budget, only a target at or behind
// the branch instruction itself.
func (m *RawVM) checkLoop(target, from uint32) error {
	if target > from || m.limits.MaxLoopIterations <= 0 {
		return nil
	}
	m.loopVisits[target]++
	if m.loopVisits[target] > m.limits.MaxLoopIterations {
		return scripterr.AtDetail(from, scripterr.ErrInstructionBudgetExceeded, "loop iteration limit exceeded")
	}
	return nil
}

// relativeTarget resolves a JMP/JZ/JNZ/JSR operand as a displacement
// relative to the start of the branch instruction (spec §4.4), the
// reference interpreter's convention for raw bytecode — distinct from the
// analyzer's absolute-PC convention (internal/analyzer/structure.go), which
// RawVM has no reason to share since it never builds an ir.Program.
func relativeTarget(r *bytecode.Reader, d bytecode.Decoded) (uint32, error) {
	delta, err := bytecode.ReadBranchTarget(r, d)
	if err != nil {
		return 0, err
	}
	return d.PC + delta, nil
}

func execConst(r *bytecode.Reader, d bytecode.Decoded, s *stackmachine.Machine) error {
	r.SetPC(d.PC + d.CursorOff)
	switch d.Type {
	case bytecode.TypeInt:
		v, err := r.ReadInt32()
		if err != nil {
			return err
		}
		s.PushInt(v)
	case bytecode.TypeFloat:
		v, err := r.ReadFloat32()
		if err != nil {
			return err
		}
		s.PushFloat(v)
	case bytecode.TypeObject:
		v, err := r.ReadInt32()
		if err != nil {
			return err
		}
		s.PushObject(v)
	case bytecode.TypeString:
		n := d.Length - d.CursorOff
		str, err := r.ReadString(uint16(n))
		if err != nil {
			return err
		}
		s.PushString(stackmachine.NewStringValue(str))
	default:
		if k := d.Type.EngineKind(); k >= 0 {
			if _, err := r.ReadInt32(); err != nil {
				return err
			}
			s.PushEngine(k, nil)
			return nil
		}
		return scripterr.AtDetail(d.PC, scripterr.ErrInvalidOpcodeType, "unsupported CONST suffix")
	}
	return nil
}

// pushZero implements RSADD: push a default-valued cell of the declared
// type, the slot CPDOWNSP/CPTOPSP later fill in.
func pushZero(s *stackmachine.Machine, suffix bytecode.Suffix) {
	switch suffix {
	case bytecode.TypeFloat:
		s.PushFloat(0)
	case bytecode.TypeString:
		s.PushString(stackmachine.NewStringValue(""))
	case bytecode.TypeObject:
		s.PushObject(0)
	case bytecode.TypeVectorVector:
		s.PushVector([3]float32{})
	default:
		if k := suffix.EngineKind(); k >= 0 {
			s.PushEngine(k, nil)
			return
		}
		s.PushInt(0)
	}
}

func cellsFor(size uint16) int {
	n := int(size) / 4
	if int(size)%4 != 0 {
		n++
	}
	if n < 1 {
		n = 1
	}
	return n
}

func execCopy(op bytecode.Opcode, r *bytecode.Reader, d bytecode.Decoded, s *stackmachine.Machine) error {
	offset, size, err := bytecode.ReadCopyOperand(r, d)
	if err != nil {
		return err
	}
	cells := cellsFor(size)
	offCells := int(offset) / 4
	switch op {
	case bytecode.OpCPDOWNSP:
		return s.CPDownSP(offCells, cells)
	case bytecode.OpCPTOPSP:
		return s.CPTopSP(offCells, cells)
	case bytecode.OpCPDOWNBP:
		return s.CPDownBP(offCells, cells)
	default: // OpCPTOPBP
		return s.CPTopBP(offCells, cells)
	}
}

// execIncDec implements DECISP/INCISP/DECIBP/INCIBP: an in-place +-1 on an
// Int or Float cell addressed relative to SP or BP (spec §4.4). The
// operand's wire shape is identical to MOVSP's, so ReadMoveOperand is
// reused rather than duplicating a decoder for it.
func execIncDec(op bytecode.Opcode, suffix bytecode.Suffix, r *bytecode.Reader, d bytecode.Decoded, s *stackmachine.Machine) error {
	offset, err := bytecode.ReadMoveOperand(r, d)
	if err != nil {
		return err
	}
	offCells := int(offset) / 4
	var base int
	switch op {
	case bytecode.OpDECISP, bytecode.OpINCISP:
		base = s.SP()
	default:
		base = s.BP()
	}
	idx := base + offCells

	delta := int32(1)
	if op == bytecode.OpDECISP || op == bytecode.OpDECIBP {
		delta = -1
	}
	if suffix == bytecode.TypeFloat {
		return s.AddFloatInPlaceAt(idx, float32(delta))
	}
	return s.AddInPlaceAt(idx, delta)
}

func (m *RawVM) execAction(ctx context.Context, r *bytecode.Reader, d bytecode.Decoded, s *stackmachine.Machine) error {
	ordinal, argCount, err := bytecode.ReadActionOperand(r, d)
	if err != nil {
		return err
	}
	args := make([]Value, argCount)
	for i := argCount - 1; i >= 0; i-- {
		v, err := popValue(s)
		if err != nil {
			return err
		}
		args[i] = v
	}
	result, err := m.dispatcher.Invoke(ctx, ordinal, args)
	if err != nil {
		return err
	}
	pushValue(s, result)
	return nil
}

// execStoreState implements STORE_STATE/STORE_STATEALL: it captures a
// continuation without altering control flow (spec §4.6) — execution falls
// through to the next instruction exactly as it would without the
// instruction, the captured Situation only becoming meaningful if a host
// later replays it through ExecuteSituation. STORE_STATEALL's globalSize/
// localSize are implicit (the entire global and local frames as they stand
// at BP/SP), unlike STORE_STATE's explicit operand sizes.
func (m *RawVM) execStoreState(op bytecode.Opcode, r *bytecode.Reader, d bytecode.Decoded, s *stackmachine.Machine, objectSelf int32) error {
	var destPC int32
	var globalCells, localCells int32

	if op == bytecode.OpSTORE_STATE {
		dpc, gSize, lSize, err := bytecode.ReadStoreStateOperand(r, d)
		if err != nil {
			return err
		}
		destPC = dpc
		globalCells = int32(gSize) / 4
		localCells = int32(lSize) / 4
	} else {
		dpc, err := bytecode.ReadStoreStateAllOperand(r, d)
		if err != nil {
			return err
		}
		destPC = dpc
		globalCells = int32(s.BP())
		localCells = int32(s.SP() - s.BP())
	}

	situation := &ir.Situation{
		ResumePC:        uint32(destPC),
		SaveGlobalCount: globalCells,
		SaveLocalCount:  localCells,
		ObjectSelf:      objectSelf,
		CodeSize:        m.codeSize,
		ScriptName:      m.scriptName,
	}

	if m.OnSaveState == nil {
		return nil
	}

	snapshot := stackmachine.New(int(globalCells + localCells))
	if globalCells > 0 {
		if err := s.AppendToOther(snapshot, -s.SP(), int(globalCells)); err != nil {
			return err
		}
	}
	if localCells > 0 {
		if err := s.AppendToOther(snapshot, -int(localCells), int(localCells)); err != nil {
			return err
		}
	}
	m.OnSaveState(situation, snapshot)
	return nil
}

// popValue pops whatever is on top of s and wraps it as a Value, dispatched
// on the cell's own tag rather than any externally supplied type — raw
// bytecode carries no separate type table for ACTION arguments or a RETN's
// result, so the stack's own tags are the only source of truth here (spec
// §4.3 "every push/pop is tagged").
func popValue(s *stackmachine.Machine) (Value, error) {
	tag, err := s.PeekTag(s.SP() - 1)
	if err != nil {
		return Value{}, err
	}
	switch tag {
	case stackmachine.TagInt:
		v, err := s.PopInt()
		return IntValue(v), err
	case stackmachine.TagFloat:
		v, err := s.PopFloat()
		return FloatValue(v), err
	case stackmachine.TagString:
		v, err := s.PopString()
		return StringValue(v), err
	case stackmachine.TagObject:
		v, err := s.PopObject()
		return ObjectValue(v), err
	default:
		if k := tag.EngineKind(); k >= 0 {
			v, err := s.PopEngine(k)
			return EngineValue(k, v), err
		}
		return Value{}, scripterr.At(0, scripterr.ErrTypeMismatch)
	}
}

// topValue is popValue under the name the call site reads as what it is:
// the one remaining value a fully unwound top-level RETN leaves behind
// (spec §4.4 Execute's return value).
func topValue(s *stackmachine.Machine) (Value, error) {
	return popValue(s)
}

func popTruthy(s *stackmachine.Machine) (bool, error) {
	v, err := popValue(s)
	if err != nil {
		return false, err
	}
	return v.Truthy(), nil
}

func execArith(op bytecode.Opcode, suffix bytecode.Suffix, s *stackmachine.Machine, pc uint32) error {
	switch op {
	case bytecode.OpNEG, bytecode.OpCOMP, bytecode.OpNOT:
		return execUnary(op, suffix, s, pc)
	default:
		return execBinary(op, suffix, s, pc)
	}
}

func execUnary(op bytecode.Opcode, suffix bytecode.Suffix, s *stackmachine.Machine, pc uint32) error {
	switch op {
	case bytecode.OpNEG:
		if suffix == bytecode.TypeFloat {
			v, err := s.PopFloat()
			if err != nil {
				return err
			}
			s.PushFloat(-v)
			return nil
		}
		v, err := s.PopInt()
		if err != nil {
			return err
		}
		s.PushInt(-v)
		return nil
	case bytecode.OpCOMP:
		v, err := s.PopInt()
		if err != nil {
			return err
		}
		s.PushInt(^v)
		return nil
	case bytecode.OpNOT:
		v, err := s.PopInt()
		if err != nil {
			return err
		}
		s.PushInt(boolToInt(v == 0))
		return nil
	default:
		return scripterr.At(pc, scripterr.ErrInvalidOpcodeType)
	}
}

// execBinary mirrors vm.go's evalBinary, but operates directly on
// stackmachine cells addressed by the instruction's own type suffix rather
// than on typed IR Variables — vectors and struct-shaped EQUAL/NEQUAL are
// not handled here: their suffixes fall through to the Int case below,
// which pops two Int cells (a type mismatch for vector operands).
// SelectEngine picks an engine by code size alone, so a small script using
// them still runs on ReferenceVM.
func execBinary(op bytecode.Opcode, suffix bytecode.Suffix, s *stackmachine.Machine, pc uint32) error {
	switch suffix {
	case bytecode.TypeStringString:
		rhs, err := s.PopString()
		if err != nil {
			return err
		}
		lhs, err := s.PopString()
		if err != nil {
			return err
		}
		switch op {
		case bytecode.OpADD:
			s.PushString(concatStrings(lhs, rhs))
			return nil
		case bytecode.OpEQUAL:
			s.PushInt(boolToInt(lhs.String() == rhs.String()))
			return nil
		case bytecode.OpNEQUAL:
			s.PushInt(boolToInt(lhs.String() != rhs.String()))
			return nil
		default:
			return scripterr.AtDetail(pc, scripterr.ErrInvalidOpcodeType, "unsupported string binary op")
		}

	case bytecode.TypeObjectObject:
		rhs, err := s.PopObject()
		if err != nil {
			return err
		}
		lhs, err := s.PopObject()
		if err != nil {
			return err
		}
		switch op {
		case bytecode.OpEQUAL:
			s.PushInt(boolToInt(lhs == rhs))
			return nil
		case bytecode.OpNEQUAL:
			s.PushInt(boolToInt(lhs != rhs))
			return nil
		default:
			return scripterr.AtDetail(pc, scripterr.ErrInvalidOpcodeType, "unsupported object binary op")
		}

	case bytecode.TypeFloatFloat, bytecode.TypeIntFloat, bytecode.TypeFloatInt:
		var lhs, rhs float32
		switch suffix {
		case bytecode.TypeFloatInt:
			r, err := s.PopInt()
			if err != nil {
				return err
			}
			l, err := s.PopFloat()
			if err != nil {
				return err
			}
			lhs, rhs = l, float32(r)
		case bytecode.TypeIntFloat:
			r, err := s.PopFloat()
			if err != nil {
				return err
			}
			l, err := s.PopInt()
			if err != nil {
				return err
			}
			lhs, rhs = float32(l), r
		default:
			r, err := s.PopFloat()
			if err != nil {
				return err
			}
			l, err := s.PopFloat()
			if err != nil {
				return err
			}
			lhs, rhs = l, r
		}
		return pushFloatBinary(s, op, lhs, rhs, pc)

	default:
		rhs, err := s.PopInt()
		if err != nil {
			return err
		}
		lhs, err := s.PopInt()
		if err != nil {
			return err
		}
		return pushIntBinary(s, op, lhs, rhs, pc)
	}
}

func pushFloatBinary(s *stackmachine.Machine, op bytecode.Opcode, lhs, rhs float32, pc uint32) error {
	switch op {
	case bytecode.OpADD:
		s.PushFloat(lhs + rhs)
	case bytecode.OpSUB:
		s.PushFloat(lhs - rhs)
	case bytecode.OpMUL:
		s.PushFloat(lhs * rhs)
	case bytecode.OpDIV:
		if rhs == 0 {
			return scripterr.At(pc, scripterr.ErrDivideByZero)
		}
		s.PushFloat(lhs / rhs)
	case bytecode.OpEQUAL:
		s.PushInt(boolToInt(lhs == rhs))
	case bytecode.OpNEQUAL:
		s.PushInt(boolToInt(lhs != rhs))
	case bytecode.OpGEQ:
		s.PushInt(boolToInt(lhs >= rhs))
	case bytecode.OpGT:
		s.PushInt(boolToInt(lhs > rhs))
	case bytecode.OpLT:
		s.PushInt(boolToInt(lhs < rhs))
	case bytecode.OpLEQ:
		s.PushInt(boolToInt(lhs <= rhs))
	default:
		return scripterr.AtDetail(pc, scripterr.ErrInvalidOpcodeType, "unsupported float binary op")
	}
	return nil
}

func pushIntBinary(s *stackmachine.Machine, op bytecode.Opcode, lhs, rhs int32, pc uint32) error {
	switch op {
	case bytecode.OpADD:
		s.PushInt(lhs + rhs)
	case bytecode.OpSUB:
		s.PushInt(lhs - rhs)
	case bytecode.OpMUL:
		s.PushInt(lhs * rhs)
	case bytecode.OpDIV:
		if rhs == 0 {
			return scripterr.At(pc, scripterr.ErrDivideByZero)
		}
		s.PushInt(lhs / rhs)
	case bytecode.OpMOD:
		if rhs == 0 {
			return scripterr.At(pc, scripterr.ErrDivideByZero)
		}
		s.PushInt(lhs % rhs)
	case bytecode.OpLOGAND:
		s.PushInt(boolToInt(lhs != 0 && rhs != 0))
	case bytecode.OpLOGOR:
		s.PushInt(boolToInt(lhs != 0 || rhs != 0))
	case bytecode.OpINCOR:
		s.PushInt(lhs | rhs)
	case bytecode.OpEXCOR:
		s.PushInt(lhs ^ rhs)
	case bytecode.OpBOOLAND:
		s.PushInt(lhs & rhs)
	case bytecode.OpSHLEFT:
		s.PushInt(lhs << uint32(rhs))
	case bytecode.OpSHRIGHT:
		s.PushInt(lhs >> uint32(rhs))
	case bytecode.OpUSHRIGHT:
		s.PushInt(int32(uint32(lhs) >> uint32(rhs)))
	case bytecode.OpEQUAL:
		s.PushInt(boolToInt(lhs == rhs))
	case bytecode.OpNEQUAL:
		s.PushInt(boolToInt(lhs != rhs))
	case bytecode.OpGEQ:
		s.PushInt(boolToInt(lhs >= rhs))
	case bytecode.OpGT:
		s.PushInt(boolToInt(lhs > rhs))
	case bytecode.OpLT:
		s.PushInt(boolToInt(lhs < rhs))
	case bytecode.OpLEQ:
		s.PushInt(boolToInt(lhs <= rhs))
	default:
		return scripterr.AtDetail(pc, scripterr.ErrInvalidOpcodeType, "unsupported int binary op")
	}
	return nil
}
