// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package vm

import (
	"context"

	"github.com/auroraeng/scriptcore/internal/ir"
	"github.com/auroraeng/scriptcore/internal/scripterr"
)

// Limits bounds one Execute call's resource consumption (spec §5 Resource
// Model): an exhausted limit aborts the script with the matching error
// sentinel rather than letting it run unbounded.
type Limits struct {
	MaxInstructions int
	MaxCallDepth    int

	// MaxLoopIterations caps how many times a single ControlFlow node may
	// be re-entered within one callSubroutine invocation, guarding against
	// a script looping forever on cheap instructions that would never trip
	// MaxInstructions in practice (e.g. a tight no-op spin). Zero disables
	// the guard.
	MaxLoopIterations int
}

// DefaultLimits mirrors the reference interpreter's conservative defaults.
var DefaultLimits = Limits{MaxInstructions: 1 << 20, MaxCallDepth: 64, MaxLoopIterations: 1 << 16}

// VM interprets one analyzed Program (spec §4.4). Execute and
// ExecuteSituation reset its instruction and call-depth counters before
// each call, so a single VM is safe to reuse (but not to share concurrently: spec §5
// "single script execution is never parallelized").
type VM struct {
	program    *ir.Program
	dispatcher ActionDispatcher
	limits     Limits

	globals env

	instructionsUsed int
	callDepth        int
}

// New creates a VM over an analyzed Program, dispatching ACTION
// instructions to dispatcher.
func New(program *ir.Program, dispatcher ActionDispatcher, limits Limits) *VM {
	return &VM{
		program:    program,
		dispatcher: dispatcher,
		limits:     limits,
		globals:    make(env),
	}
}

// Execute runs #loader to completion, first executing #globals if present
// (spec §4.1 load/initialize order), and returns #loader's result value set
// (if any).
func (m *VM) Execute(ctx context.Context, objectSelf int32) ([]Value, error) {
	m.instructionsUsed = 0
	m.callDepth = 0

	if m.program.Globals != nil {
		if _, err := m.callSubroutine(ctx, m.program.Globals, nil); err != nil {
			return nil, err
		}
	}
	if m.program.Loader == nil {
		return nil, scripterr.At(0, scripterr.ErrAborted)
	}
	return m.callSubroutine(ctx, m.program.Loader, nil)
}

// ExecuteSituation resumes a previously captured situation (spec §4.6),
// running from its recorded entry point with its snapshotted globals
// restored.
func (m *VM) ExecuteSituation(ctx context.Context, situation *ir.Situation, capturedGlobals env) ([]Value, error) {
	m.instructionsUsed = 0
	m.callDepth = 0
	if capturedGlobals != nil {
		m.globals = capturedGlobals
	}
	if situation.Subroutine == nil {
		return nil, scripterr.At(situation.ResumePC, scripterr.ErrSituationSignatureMismatch)
	}
	return m.callSubroutine(ctx, situation.Subroutine, nil)
}

// callSubroutine runs one subroutine's control-flow graph to a RETN (or a
// dangling end, treated as an implicit void return) and returns the Values
// carried by the last RETN it executed (nil when no RETN carried a Result);
// the subroutine's Returns slots are not consulted.
func (m *VM) callSubroutine(ctx context.Context, sub *ir.Subroutine, args []Value) ([]Value, error) {
	if m.callDepth >= m.limits.MaxCallDepth {
		return nil, scripterr.AtDetail(sub.EntryPC, scripterr.ErrCallDepthExceeded, sub.Name)
	}
	m.callDepth++
	defer func() { m.callDepth-- }()

	locals := make(env)
	for i, v := range sub.ParamVars {
		if i >= len(args) {
			break
		}
		locals.set(v, args[i])
	}

	var lastValues []Value
	visits := make(map[*ir.ControlFlow]int)
	cf := sub.Entry
	for cf != nil {
		select {
		case <-ctx.Done():
			return nil, scripterr.At(cf.StartPC, scripterr.ErrAborted)
		default:
		}

		visits[cf]++
		if m.limits.MaxLoopIterations > 0 && visits[cf] > m.limits.MaxLoopIterations {
			return nil, scripterr.AtDetail(cf.StartPC, scripterr.ErrInstructionBudgetExceeded,
				"loop iteration limit exceeded")
		}

		values, next, err := m.runFlow(ctx, cf, locals)
		if err != nil {
			return nil, err
		}
		if values != nil {
			lastValues = values
		}
		cf = next
	}
	return lastValues, nil
}

// runFlow evaluates every instruction in one ControlFlow node and decides
// which child (if any) to transfer control to next.
func (m *VM) runFlow(ctx context.Context, cf *ir.ControlFlow, locals env) ([]Value, *ir.ControlFlow, error) {
	var retValues []Value

	for _, inst := range cf.Instructions {
		if err := m.chargeInstruction(inst.PC); err != nil {
			return nil, nil, err
		}

		result, values, err := m.evalInstruction(ctx, inst, locals)
		if err != nil {
			return nil, nil, err
		}
		if inst.Result != nil {
			locals.set(inst.Result, result)
		}
		if inst.Op == ir.OpRETN {
			retValues = values
		}
	}

	switch cf.Term {
	case ir.TermTerminate:
		return retValues, nil, nil
	case ir.TermTransfer:
		return retValues, cf.Children[0], nil
	case ir.TermSplit, ir.TermMerge:
		cond := m.branchCondition(cf, locals)
		if cond {
			return retValues, cf.Children[1], nil
		}
		return retValues, cf.Children[0], nil
	default:
		return retValues, nil, nil
	}
}

// branchCondition finds the JZ/JNZ instruction ending cf and evaluates its
// guard, returning true when control should transfer to Children[1] (the
// taken branch).
func (m *VM) branchCondition(cf *ir.ControlFlow, locals env) bool {
	for i := len(cf.Instructions) - 1; i >= 0; i-- {
		inst := cf.Instructions[i]
		switch inst.Op {
		case ir.OpJZ:
			return !locals.get(inst.In1).Truthy()
		case ir.OpJNZ:
			return locals.get(inst.In1).Truthy()
		}
	}
	return false
}

func (m *VM) chargeInstruction(pc uint32) error {
	m.instructionsUsed++
	if m.instructionsUsed > m.limits.MaxInstructions {
		return scripterr.At(pc, scripterr.ErrInstructionBudgetExceeded)
	}
	return nil
}

// evalInstruction evaluates one IR instruction, returning its result value
// (if it produces one) and, for a RETN, the list of return values it
// carries.
func (m *VM) evalInstruction(ctx context.Context, inst *ir.Instruction, locals env) (Value, []Value, error) {
	switch inst.Op {
	case ir.OpCREATE, ir.OpINITIALIZE:
		if inst.Result == nil {
			return Value{}, nil, nil
		}
		if lit, ok := literalValue(inst.Result); ok {
			return lit, nil, nil
		}
		return Value{Type: inst.Result.Type()}, nil, nil

	case ir.OpASSIGN:
		return locals.get(inst.In1), nil, nil

	case ir.OpADD, ir.OpSUB, ir.OpMUL, ir.OpDIV, ir.OpMOD,
		ir.OpLOGAND, ir.OpLOGOR, ir.OpINCOR, ir.OpEXCOR, ir.OpBOOLAND,
		ir.OpEQUAL, ir.OpNEQUAL, ir.OpGEQ, ir.OpGT, ir.OpLT, ir.OpLEQ,
		ir.OpSHLEFT, ir.OpSHRIGHT, ir.OpUSHRIGHT:
		lhs, rhs := locals.get(inst.In1), locals.get(inst.In2)
		v, err := evalBinary(inst.Op, lhs, rhs, inst.PC)
		return v, nil, err

	case ir.OpNEG, ir.OpCOMP, ir.OpNOT:
		v, err := evalUnary(inst.Op, locals.get(inst.In1), inst.PC)
		return v, nil, err

	case ir.OpACTION:
		args := make([]Value, len(inst.Args))
		for i, a := range inst.Args {
			args[i] = locals.get(a)
		}
		v, err := m.dispatcher.Invoke(ctx, inst.ActionOrdinal, args)
		return v, nil, err

	case ir.OpCALL:
		if inst.TargetSub == nil {
			return Value{}, nil, scripterr.At(inst.PC, scripterr.ErrAborted)
		}
		args := make([]Value, len(inst.Args))
		for i, a := range inst.Args {
			args[i] = locals.get(a)
		}
		results, err := m.callSubroutine(ctx, inst.TargetSub, args)
		if err != nil {
			return Value{}, nil, err
		}
		if len(results) > 0 {
			return results[0], nil, nil
		}
		return Value{}, nil, nil

	case ir.OpRETN:
		if inst.Result != nil {
			return locals.get(inst.Result), []Value{locals.get(inst.Result)}, nil
		}
		return Value{}, nil, nil

	case ir.OpSAVE_STATE:
		// Situation capture is driven by the codec, not inline evaluation;
		// the instruction here only marks where resumption continues.
		return Value{}, nil, nil

	default:
		return Value{}, nil, nil
	}
}

func evalBinary(op ir.Op, lhs, rhs Value, pc uint32) (Value, error) {
	switch op {
	case ir.OpADD:
		if lhs.Type == ir.TypeString {
			return Value{Type: ir.TypeString, S: concatStrings(lhs.S, rhs.S)}, nil
		}
		if lhs.Type == ir.TypeFloat || rhs.Type == ir.TypeFloat {
			return FloatValue(asFloat(lhs) + asFloat(rhs)), nil
		}
		return IntValue(lhs.I + rhs.I), nil
	case ir.OpSUB:
		if lhs.Type == ir.TypeFloat || rhs.Type == ir.TypeFloat {
			return FloatValue(asFloat(lhs) - asFloat(rhs)), nil
		}
		return IntValue(lhs.I - rhs.I), nil
	case ir.OpMUL:
		if lhs.Type == ir.TypeFloat || rhs.Type == ir.TypeFloat {
			return FloatValue(asFloat(lhs) * asFloat(rhs)), nil
		}
		return IntValue(lhs.I * rhs.I), nil
	case ir.OpDIV:
		if lhs.Type == ir.TypeFloat || rhs.Type == ir.TypeFloat {
			if asFloat(rhs) == 0 {
				return Value{}, scripterr.At(pc, scripterr.ErrDivideByZero)
			}
			return FloatValue(asFloat(lhs) / asFloat(rhs)), nil
		}
		if rhs.I == 0 {
			return Value{}, scripterr.At(pc, scripterr.ErrDivideByZero)
		}
		return IntValue(lhs.I / rhs.I), nil
	case ir.OpMOD:
		if rhs.I == 0 {
			return Value{}, scripterr.At(pc, scripterr.ErrDivideByZero)
		}
		return IntValue(lhs.I % rhs.I), nil
	case ir.OpLOGAND:
		return IntValue(boolToInt(lhs.Truthy() && rhs.Truthy())), nil
	case ir.OpLOGOR:
		return IntValue(boolToInt(lhs.Truthy() || rhs.Truthy())), nil
	case ir.OpINCOR:
		return IntValue(lhs.I | rhs.I), nil
	case ir.OpEXCOR:
		return IntValue(lhs.I ^ rhs.I), nil
	case ir.OpBOOLAND:
		return IntValue(lhs.I & rhs.I), nil
	case ir.OpSHLEFT:
		return IntValue(lhs.I << uint32(rhs.I)), nil
	case ir.OpSHRIGHT:
		return IntValue(lhs.I >> uint32(rhs.I)), nil
	case ir.OpUSHRIGHT:
		return IntValue(int32(uint32(lhs.I) >> uint32(rhs.I))), nil
	case ir.OpEQUAL:
		return IntValue(boolToInt(valuesEqual(lhs, rhs))), nil
	case ir.OpNEQUAL:
		return IntValue(boolToInt(!valuesEqual(lhs, rhs))), nil
	case ir.OpGEQ:
		return IntValue(boolToInt(asFloat(lhs) >= asFloat(rhs))), nil
	case ir.OpGT:
		return IntValue(boolToInt(asFloat(lhs) > asFloat(rhs))), nil
	case ir.OpLT:
		return IntValue(boolToInt(asFloat(lhs) < asFloat(rhs))), nil
	case ir.OpLEQ:
		return IntValue(boolToInt(asFloat(lhs) <= asFloat(rhs))), nil
	default:
		return Value{}, scripterr.At(pc, scripterr.ErrInvalidOpcodeType)
	}
}

func evalUnary(op ir.Op, v Value, pc uint32) (Value, error) {
	switch op {
	case ir.OpNEG:
		if v.Type == ir.TypeFloat {
			return FloatValue(-v.F), nil
		}
		return IntValue(-v.I), nil
	case ir.OpCOMP:
		return IntValue(^v.I), nil
	case ir.OpNOT:
		return IntValue(boolToInt(!v.Truthy())), nil
	default:
		return Value{}, scripterr.At(pc, scripterr.ErrInvalidOpcodeType)
	}
}

func asFloat(v Value) float32 {
	if v.Type == ir.TypeFloat {
		return v.F
	}
	return float32(v.I)
}

func boolToInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

func valuesEqual(a, b Value) bool {
	if a.Type != b.Type {
		return false
	}
	switch a.Type {
	case ir.TypeFloat:
		return a.F == b.F
	case ir.TypeString:
		if a.S == nil || b.S == nil {
			return a.S == b.S
		}
		return a.S.String() == b.S.String()
	default:
		return a.I == b.I
	}
}
