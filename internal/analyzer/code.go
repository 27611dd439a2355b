// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package analyzer

import (
	"github.com/auroraeng/scriptcore/internal/bytecode"
	"github.com/auroraeng/scriptcore/internal/ir"
	"github.com/auroraeng/scriptcore/internal/scripterr"
)

// Code is the second analyzer pass: it walks the control-flow graph
// Structure discovered and lifts each block's raw bytecode into typed IR
// Instructions, tracking a symbolic operand stack of Variables the same way
// the runtime stackmachine tracks cells (spec §4.8).
type Code struct {
	code    []byte
	program *ir.Program
}

// NewCode prepares a Code pass over program, whose control-flow graph must
// already have been built by Structure.Run.
func NewCode(code []byte, program *ir.Program) *Code {
	return &Code{code: code, program: program}
}

// Run lifts every subroutine's control-flow graph into typed IR.
func (c *Code) Run() error {
	for _, sub := range c.program.Subroutines {
		if err := c.runSubroutine(sub); err != nil {
			return err
		}
	}
	return nil
}

// runSubroutine threads a symbolic Variable stack through sub's flow graph,
// emitting instructions per block and merging stack state at join points
// (spec §4.8 "variable merging at flow joins"). It tolerates back-edges
// (loops) by iterating to a fixed point: a block is emitted once its entry
// state is known from at least one predecessor, and later-arriving edges
// are reconciled by merging rather than re-emitting.
func (c *Code) runSubroutine(sub *ir.Subroutine) error {
	entryState := map[*ir.ControlFlow][]*ir.Variable{sub.Entry: c.entryParams(sub)}
	processed := map[*ir.ControlFlow]bool{}

	maxPasses := len(sub.Flows) + 1
	for pass := 0; pass < maxPasses; pass++ {
		progressed := false
		for _, cf := range sub.Flows {
			if processed[cf] {
				continue
			}
			st, ready := entryState[cf]
			if !ready {
				continue
			}
			cf.StartSP = len(st)

			exit, err := c.emitBlock(cf, cloneStack(st), sub)
			if err != nil {
				return err
			}
			cf.EndSP = len(exit)
			processed[cf] = true
			progressed = true

			for _, child := range cf.Children {
				if child == nil {
					continue
				}
				if existing, ok := entryState[child]; ok {
					if len(existing) != len(exit) {
						return scripterr.AtDetail(cf.EndPC, scripterr.ErrFlowSPMismatch,
							sub.Name)
					}
					for i := range existing {
						ir.Merge(existing[i], exit[i])
					}
				} else {
					entryState[child] = exit
				}
			}
		}
		if !progressed {
			break
		}
	}

	for _, cf := range sub.Flows {
		if !processed[cf] {
			return scripterr.AtDetail(cf.StartPC, scripterr.ErrFlowSPMismatch,
				"unreachable block never received an entry stack")
		}
	}
	sub.Flags |= ir.FlagIsTypeAnalyzed
	return nil
}

// entryParams seeds a subroutine's symbolic entry stack with one Parameter
// Variable per cell Structure's inferParamCells attributed to it, so a JSR
// at a call site has something positional to link its popped arguments
// against (spec §4.8 "Link types across caller and callee per position").
// #loader and routines inferParamCells left at zero start with an empty
// stack, same as before.
func (c *Code) entryParams(sub *ir.Subroutine) []*ir.Variable {
	n := sub.ParamCells / 4
	if n <= 0 {
		return nil
	}
	params := make([]*ir.Variable, n)
	for i := range params {
		v := sub.NewLocal(c.program.NewVariableID(), ir.ClassParameter, ir.TypeVoid)
		params[i] = v
	}
	sub.ParamVars = params
	return params
}

func cloneStack(st []*ir.Variable) []*ir.Variable {
	out := make([]*ir.Variable, len(st))
	copy(out, st)
	return out
}

// cellsFor converts a byte-granular copy/move size into a cell count,
// rounding up so a sub-cell size (shouldn't occur in well-formed bytecode)
// still reserves one Variable rather than none.
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

// emitBlock decodes every instruction in [cf.StartPC, cf.EndPC), appending
// the corresponding IR Instruction(s) to cf and threading the symbolic
// Variable stack through each one. It returns the stack as it stands at the
// block's exit.
func (c *Code) emitBlock(cf *ir.ControlFlow, stack []*ir.Variable, sub *ir.Subroutine) ([]*ir.Variable, error) {
	r := bytecode.NewReader(c.code)
	r.SetPC(cf.StartPC)

	push := func(v *ir.Variable) { stack = append(stack, v) }
	pop := func() (*ir.Variable, error) {
		if len(stack) == 0 {
			return nil, scripterr.At(r.PC(), scripterr.ErrStackUnderflow)
		}
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v, nil
	}
	newVar := func(t ir.Type) *ir.Variable {
		return sub.NewLocal(c.program.NewVariableID(), ir.ClassLocal, t)
	}

	for r.PC() < cf.EndPC {
		d, err := bytecode.Disassemble(r)
		if err != nil {
			return nil, err
		}
		inst := ir.NewInstruction(opFor(d.Opcode), d.PC)

		switch d.Opcode {
		case bytecode.OpCONST:
			t := constType(d.Type)
			lit, err := readConstOperand(r, d)
			if err != nil {
				return nil, err
			}
			result := sub.NewLocal(c.program.NewVariableID(), ir.ClassConstant, t)
			result.ConstValue = lit
			inst.Op = ir.OpCREATE
			inst.Result = result
			push(result)

		case bytecode.OpRSADD:
			result := newVar(ir.TypeVoid)
			inst.Result = result
			push(result)

		case bytecode.OpADD, bytecode.OpSUB, bytecode.OpMUL, bytecode.OpDIV, bytecode.OpMOD,
			bytecode.OpLOGAND, bytecode.OpLOGOR, bytecode.OpINCOR, bytecode.OpEXCOR,
			bytecode.OpBOOLAND, bytecode.OpEQUAL, bytecode.OpNEQUAL, bytecode.OpGEQ,
			bytecode.OpGT, bytecode.OpLT, bytecode.OpLEQ, bytecode.OpSHLEFT,
			bytecode.OpSHRIGHT, bytecode.OpUSHRIGHT:
			rhs, err := pop()
			if err != nil {
				return nil, err
			}
			lhs, err := pop()
			if err != nil {
				return nil, err
			}
			result := newVar(ir.TypeVoid)
			inst.In1, inst.In2, inst.Result = lhs, rhs, result
			push(result)

		case bytecode.OpNEG, bytecode.OpCOMP, bytecode.OpNOT:
			operand, err := pop()
			if err != nil {
				return nil, err
			}
			result := newVar(ir.TypeVoid)
			inst.In1, inst.Result = operand, result
			push(result)

		case bytecode.OpCPDOWNSP, bytecode.OpCPDOWNBP:
			// CPDOWN copies the top 'size' bytes down onto an existing stack
			// slot without popping the source (spec §4.2): offset addresses
			// that destination within the stack, which this analyzer's
			// sequential symbolic stack has no positional model for, so the
			// destination is approximated as a fresh Variable type-linked to
			// every copied source cell rather than resolved to the real
			// slot. size now genuinely drives how many cells are copied
			// (Results), where before exactly one was always assumed.
			_, size, err := bytecode.ReadCopyOperand(r, d)
			if err != nil {
				return nil, err
			}
			cells := cellsFor(size)
			if cells > len(stack) {
				return nil, scripterr.At(d.PC, scripterr.ErrStackUnderflow)
			}
			srcs := append([]*ir.Variable(nil), stack[len(stack)-cells:]...)
			dsts := make([]*ir.Variable, cells)
			for i, src := range srcs {
				dst := newVar(ir.TypeVoid)
				ir.LinkTypes(dst, src)
				dsts[i] = dst
			}
			inst.In1, inst.Result = srcs[0], dsts[0]
			inst.Args = srcs
			inst.Results = dsts

		case bytecode.OpCPTOPSP, bytecode.OpCPTOPBP:
			// CPTOP duplicates 'size' bytes from an existing slot onto the
			// top of the stack without popping the source; same positional
			// approximation as CPDOWN above, but the duplicated cells are
			// genuinely pushed (the stack grows by cells).
			_, size, err := bytecode.ReadCopyOperand(r, d)
			if err != nil {
				return nil, err
			}
			cells := cellsFor(size)
			if cells > len(stack) {
				return nil, scripterr.At(d.PC, scripterr.ErrStackUnderflow)
			}
			srcs := append([]*ir.Variable(nil), stack[len(stack)-cells:]...)
			dups := make([]*ir.Variable, cells)
			for i, src := range srcs {
				dup := newVar(ir.TypeVoid)
				ir.LinkTypes(dup, src)
				dups[i] = dup
			}
			inst.In1, inst.Result = srcs[0], dups[0]
			inst.Args = srcs
			inst.Results = dups
			for _, dup := range dups {
				push(dup)
			}

		case bytecode.OpMOVSP:
			// A negative operand discards the top |delta| bytes of the
			// stack, the routine way locals and temporaries are torn down
			// (spec §4.8 "MOVSP (negative): emit DELETE v for each popped
			// cell"). A non-negative operand is allocation, already
			// accounted for by the RSADD/CONST pushes that follow it, so it
			// carries no symbolic effect here.
			delta, err := bytecode.ReadMoveOperand(r, d)
			if err != nil {
				return nil, err
			}
			if delta < 0 {
				n := cellsFor(uint16(-delta))
				if n > len(stack) {
					n = len(stack)
				}
				popped := append([]*ir.Variable(nil), stack[len(stack)-n:]...)
				stack = stack[:len(stack)-n]
				inst.Op = ir.OpDELETE
				inst.Results = popped
			}

		case bytecode.OpDESTRUCT:
			v, err := pop()
			if err != nil {
				return nil, err
			}
			inst.In1 = v
			push(v)

		case bytecode.OpSAVEBP:
			// no symbolic stack effect; recorded for the VM's BP bookkeeping

		case bytecode.OpRESTOREBP:

		case bytecode.OpACTION:
			ordinal, argCount, err := bytecode.ReadActionOperand(r, d)
			if err != nil {
				return nil, err
			}
			inst.ActionOrdinal = ordinal
			inst.ActionArgCount = argCount
			for i := 0; i < argCount; i++ {
				v, err := pop()
				if err != nil {
					return nil, err
				}
				inst.Args = append([]*ir.Variable{v}, inst.Args...)
			}
			result := newVar(ir.TypeVoid)
			inst.Result = result
			push(result)

		case bytecode.OpJSR:
			target, err := readTargetPC(r, d)
			if err != nil {
				return nil, err
			}
			callee := c.program.Subroutines[target]
			inst.TargetSub = callee
			if callee != nil {
				callee.CallSites = append(callee.CallSites, inst)

				// Pop the callee's parameters (spec §4.8 "emit CALL sub
				// carrying the ordered list of parameter Variables
				// (popped)"), reclassifying them so a later pass can tell
				// an argument Variable from an ordinary local.
				n := callee.ParamCells / 4
				if n > len(stack) {
					n = len(stack)
				}
				if n > 0 {
					args := append([]*ir.Variable(nil), stack[len(stack)-n:]...)
					stack = stack[:len(stack)-n]
					for _, a := range args {
						a.Class = ir.ClassCallParameter
					}
					inst.Args = args
				}

				// The return-value slot, if any, was already pushed by the
				// RSADD the caller emits immediately before JSR to reserve
				// it; reclassify that existing Variable in place rather
				// than conjuring a new push; this links its type across
				// caller and callee without disturbing the tracked depth.
				if len(stack) > 0 {
					ret := stack[len(stack)-1]
					ret.Class = ir.ClassCallReturnValue
					inst.Result = ret
				}
			}

		case bytecode.OpJMP:
			inst.TargetFlow = cf.Children[0]

		case bytecode.OpJZ, bytecode.OpJNZ:
			cond, err := pop()
			if err != nil {
				return nil, err
			}
			inst.In1 = cond
			inst.TargetFlow = cf.Children[1]

		case bytecode.OpSTORE_STATE:
			destPC, globalSize, localSize, err := bytecode.ReadStoreStateOperand(r, d)
			if err != nil {
				return nil, err
			}
			inst.Situation = &ir.Situation{
				ResumePC:        uint32(destPC),
				SaveGlobalCount: int32(globalSize / 4),
				SaveLocalCount:  int32(localSize / 4),
				ScriptName:      c.program.Name,
				CodeSize:        c.program.CodeSize,
				Subroutine:      c.program.Subroutines[uint32(destPC)],
			}

		case bytecode.OpSTORE_STATEALL:
			destPC, err := bytecode.ReadStoreStateAllOperand(r, d)
			if err != nil {
				return nil, err
			}
			inst.Situation = &ir.Situation{
				ResumePC:   uint32(destPC),
				ScriptName: c.program.Name,
				CodeSize:   c.program.CodeSize,
				Subroutine: c.program.Subroutines[uint32(destPC)],
			}

		case bytecode.OpRETN, bytecode.OpNOP, bytecode.OpINCISP, bytecode.OpDECISP,
			bytecode.OpINCIBP, bytecode.OpDECIBP:
			// No operand-stack effect tracked symbolically. RETN does not
			// itself pop a result: the caller's own CPDOWNSP/DESTRUCT
			// sequence after JSR is what lifts a return value out of the
			// callee's frame (spec §4.3), so RETN carries no Result here —
			// a left-over stack value is either genuinely dead or belongs
			// to a slot the caller addresses directly.

		default:
			// Unrecognized opcode at this layer is impossible: Disassemble
			// already validated it against the legal (opcode, suffix) table.
		}

		// Whatever operand bytes this opcode carries but didn't need to
		// inspect above, land the cursor at the next instruction boundary.
		r.SetPC(d.PC + d.Length)

		cf.Append(inst)
	}

	return stack, nil
}

func opFor(op bytecode.Opcode) ir.Op {
	switch op {
	case bytecode.OpADD:
		return ir.OpADD
	case bytecode.OpSUB:
		return ir.OpSUB
	case bytecode.OpMUL:
		return ir.OpMUL
	case bytecode.OpDIV:
		return ir.OpDIV
	case bytecode.OpMOD:
		return ir.OpMOD
	case bytecode.OpNEG:
		return ir.OpNEG
	case bytecode.OpCOMP:
		return ir.OpCOMP
	case bytecode.OpNOT:
		return ir.OpNOT
	case bytecode.OpLOGAND:
		return ir.OpLOGAND
	case bytecode.OpLOGOR:
		return ir.OpLOGOR
	case bytecode.OpINCOR:
		return ir.OpINCOR
	case bytecode.OpEXCOR:
		return ir.OpEXCOR
	case bytecode.OpBOOLAND:
		return ir.OpBOOLAND
	case bytecode.OpEQUAL:
		return ir.OpEQUAL
	case bytecode.OpNEQUAL:
		return ir.OpNEQUAL
	case bytecode.OpGEQ:
		return ir.OpGEQ
	case bytecode.OpGT:
		return ir.OpGT
	case bytecode.OpLT:
		return ir.OpLT
	case bytecode.OpLEQ:
		return ir.OpLEQ
	case bytecode.OpSHLEFT:
		return ir.OpSHLEFT
	case bytecode.OpSHRIGHT:
		return ir.OpSHRIGHT
	case bytecode.OpUSHRIGHT:
		return ir.OpUSHRIGHT
	case bytecode.OpJMP:
		return ir.OpJMP
	case bytecode.OpJZ:
		return ir.OpJZ
	case bytecode.OpJNZ:
		return ir.OpJNZ
	case bytecode.OpJSR:
		return ir.OpCALL
	case bytecode.OpRETN:
		return ir.OpRETN
	case bytecode.OpACTION:
		return ir.OpACTION
	case bytecode.OpSTORE_STATE, bytecode.OpSTORE_STATEALL:
		return ir.OpSAVE_STATE
	case bytecode.OpDESTRUCT, bytecode.OpCPDOWNSP, bytecode.OpCPDOWNBP:
		return ir.OpASSIGN
	default:
		return ir.OpINITIALIZE
	}
}

func constType(suffix bytecode.Suffix) ir.Type {
	switch suffix {
	case bytecode.TypeInt:
		return ir.TypeInt
	case bytecode.TypeFloat:
		return ir.TypeFloat
	case bytecode.TypeString:
		return ir.TypeString
	case bytecode.TypeObject:
		return ir.TypeObject
	default:
		if k := suffix.EngineKind(); k >= 0 {
			return ir.EngineType(k)
		}
		return ir.TypeVoid
	}
}

func readConstOperand(r *bytecode.Reader, d bytecode.Decoded) (interface{}, error) {
	switch d.Type {
	case bytecode.TypeInt, bytecode.TypeObject:
		return r.ReadInt32()
	case bytecode.TypeFloat:
		return r.ReadFloat32()
	case bytecode.TypeString:
		// Disassemble already consumed the 2-byte length prefix while
		// computing d.Length; the reader's cursor sits right after it.
		n := uint16(d.Length - d.CursorOff)
		return r.ReadString(n)
	default:
		_, err := r.ReadInt32()
		return nil, err
	}
}
