// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package vm

import (
	"github.com/auroraeng/scriptcore/internal/ir"
	"github.com/auroraeng/scriptcore/internal/scripterr"
	"github.com/auroraeng/scriptcore/internal/stackmachine"
)

// SituationCodec serializes and restores a captured continuation as the
// exact ten-part cell sequence spec §4.6 defines: the global snapshot, the
// local snapshot, the resume method id, the resume PC, the two snapshot
// counts, ObjectSelf, the originating code size, the script name, and the
// closing magic tag.
type SituationCodec struct{}

// Encode writes situation and its captured environments onto a fresh
// stackmachine.Machine in wire order.
func (SituationCodec) Encode(situation *ir.Situation, globals, locals env) *stackmachine.Machine {
	m := stackmachine.New(len(globals) + len(locals) + 8)

	pushEnv := func(e env) {
		for _, v := range e {
			pushValue(m, v)
		}
	}
	pushEnv(globals)
	pushEnv(locals)

	m.PushInt(situation.ResumeMethodID)
	m.PushInt(int32(situation.ResumePC))
	m.PushInt(situation.SaveGlobalCount)
	m.PushInt(situation.SaveLocalCount)
	m.PushInt(situation.ObjectSelf)
	m.PushInt(situation.CodeSize)
	m.PushString(stackmachine.NewStringValue(situation.ScriptName))
	m.PushInt(int32(ir.SituationMagic))

	return m
}

// Decode reads a situation back from a Machine built by Encode (or by a
// host's STORE_STATE/STORE_STATEALL capture), verifying the closing magic
// tag, that the situation was captured from the program currently
// executing (liveScriptName), and that liveCodeSize is compatible with what
// was recorded (spec §4.6, §9 Open Question resolution).
func (SituationCodec) Decode(m *stackmachine.Machine, liveScriptName string, liveCodeSize int32) (*ir.Situation, error) {
	magic, err := m.PopInt()
	if err != nil {
		return nil, err
	}
	if uint32(magic) != ir.SituationMagic {
		return nil, scripterr.At(0, scripterr.ErrSituationSignatureMismatch)
	}

	nameVal, err := m.PopString()
	if err != nil {
		return nil, err
	}
	codeSize, err := m.PopInt()
	if err != nil {
		return nil, err
	}
	objectSelf, err := m.PopInt()
	if err != nil {
		return nil, err
	}
	localCount, err := m.PopInt()
	if err != nil {
		return nil, err
	}
	globalCount, err := m.PopInt()
	if err != nil {
		return nil, err
	}
	resumePC, err := m.PopInt()
	if err != nil {
		return nil, err
	}
	resumeMethod, err := m.PopInt()
	if err != nil {
		return nil, err
	}

	situation := &ir.Situation{
		ResumeMethodID:  resumeMethod,
		ResumePC:        uint32(resumePC),
		SaveGlobalCount: globalCount,
		SaveLocalCount:  localCount,
		ObjectSelf:      objectSelf,
		CodeSize:        codeSize,
		ScriptName:      nameVal.String(),
	}
	if !situation.ValidateResume(liveScriptName, liveCodeSize) {
		return nil, scripterr.AtDetail(situation.ResumePC, scripterr.ErrSituationSignatureMismatch,
			situation.ScriptName)
	}
	return situation, nil
}

func pushValue(m *stackmachine.Machine, v Value) {
	switch v.Type {
	case ir.TypeFloat:
		m.PushFloat(v.F)
	case ir.TypeString:
		m.PushString(v.S)
	case ir.TypeObject:
		m.PushObject(v.I)
	default:
		if k := v.Type.EngineKind(); k >= 0 {
			m.PushEngine(k, v.Engine.Handle)
			return
		}
		m.PushInt(v.I)
	}
}
