// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package engine

import (
	"context"
	"math"
	"os"

	mmap "github.com/edsrzf/mmap-go"
	"github.com/golang/snappy"

	"github.com/auroraeng/scriptcore/internal/analyzer"
	"github.com/auroraeng/scriptcore/internal/bytecode"
	"github.com/auroraeng/scriptcore/internal/ir"
	"github.com/auroraeng/scriptcore/internal/obslog"
	"github.com/auroraeng/scriptcore/internal/scripterr"
	"github.com/auroraeng/scriptcore/internal/stackmachine"
	"github.com/auroraeng/scriptcore/internal/vm"
)

// maxRecursionDepth bounds re-entrant VM invocation (spec §4.4): an action
// handler may itself drive the VM (e.g. to run an event handler), and the
// recursion-level counter must never exceed this, typical-implementation-
// defined ceiling before failing with RecursionTooDeep.
const maxRecursionDepth = 8

// rawVMCodeSize is the bytecode size below which SelectEngine routes a
// script to the raw ReferenceVM instead of the analyzed NativeCodegen VM
// (spec §6.6): small scripts rarely amortize the cost of a full three-pass
// analysis, and skipping it also keeps tooling usable against code the
// analyzer would reject outright.
const rawVMCodeSize = 256

// EngineKind names which interpreter ExecuteScript routes a script to.
type EngineKind int

const (
	// ReferenceVM runs the script directly off its bytecode via vm.RawVM,
	// with no Structure/Code analysis pass (spec §4.4).
	ReferenceVM EngineKind = iota
	// NativeCodegen runs the script through the Structure/Code/Optimizer-
	// analyzed IR via vm.VM.
	NativeCodegen
)

// SelectEngine picks which interpreter ExecuteScript should use for a
// script of the given size (spec §6.6 "SelectEngine(codeSize) ->
// ReferenceVM | NativeCodegen"): AllowNativeEngineScripts disabled pins
// every script to ReferenceVM regardless of size.
func SelectEngine(codeSize int, controls Controls) EngineKind {
	if !controls.AllowNativeEngineScripts {
		return ReferenceVM
	}
	if codeSize < rawVMCodeSize {
		return ReferenceVM
	}
	return NativeCodegen
}

// effectiveLimits resolves Controls into the vm.Limits ExecuteScript/
// ResumeSituation enforce, honoring DisableExecutionGuards (spec §6.6) by
// substituting effectively-unbounded ceilings rather than zero, since
// vm.VM treats a zero MaxInstructions/MaxCallDepth as "fail immediately",
// not "unlimited" (vm.RawVM skips a check whose limit is zero, and
// MaxLoopIterations uses zero as "unlimited" in both).
func effectiveLimits(c Controls) vm.Limits {
	if c.DisableExecutionGuards {
		return vm.Limits{
			MaxInstructions: math.MaxInt32,
			MaxCallDepth:    math.MaxInt32,
		}
	}
	return vm.Limits{
		MaxInstructions:   c.MaxInstructions,
		MaxCallDepth:      c.MaxCallDepth,
		MaxLoopIterations: c.MaxLoopIterations,
	}
}

// Engine is the host-facing entry point a long-running process embeds
// (spec §6): one Engine owns an action table shared by every script it
// runs, an analyzed-program cache keyed by script content, and the
// resource Controls applied to each execution. It is grounded on the
// teacher's integration/engine.go Execute entry point, generalized from a
// single-contract ABI to a script-image loader serving many callers.
type Engine struct {
	controls Controls
	actions  *vm.Registry
	cache    *programCache
	log      *obslog.Logger

	// recursionDepth counts nested ExecuteScript/ResumeSituation calls
	// driven by a re-entrant action handler (spec §4.4); it is not
	// goroutine-safe, matching the rest of Engine's single-caller-at-a-time
	// contract (spec §5 "single script execution is never parallelized").
	recursionDepth int
}

// New creates an Engine with the given Controls and an empty action table;
// callers register host actions with Register before first use.
func New(controls Controls) (*Engine, error) {
	cache, err := newProgramCache(controls.ProgramCacheSize)
	if err != nil {
		return nil, err
	}
	return &Engine{
		controls: controls,
		actions:  vm.NewRegistry(),
		cache:    cache,
		log:      obslog.Root.With("component", "engine"),
	}, nil
}

// Register binds a host action ordinal to its implementation (spec §6.3),
// delegating straight to the underlying vm.Registry. minParams/numParams
// bound the argument count the runtime ACTION instruction must carry (spec
// §4.5, §6.2's minParams/numParams action-table fields); fixed-arity
// actions register them equal.
func (e *Engine) Register(ordinal, minParams, numParams int, fn vm.ActionFunc) {
	e.actions.Register(ordinal, minParams, numParams, fn)
}

// LoadProgram analyzes code, or returns the cached analysis from a prior
// LoadProgram/ExecuteScript call over byte-identical code (spec §6.4
// "repeated analysis of the same image is wasted work"). The Optimizer pass
// runs unless Controls.EnableIROptimizations is false.
func (e *Engine) LoadProgram(code []byte) (*ir.Program, error) {
	if cached, ok := e.cache.get(code); ok {
		return cached, nil
	}
	program, err := analyzer.AnalyzeWithOptions(code, analyzer.AnalyzeOptions{
		SkipOptimizer: !e.controls.EnableIROptimizations,
	})
	if err != nil {
		e.log.Error("analysis failed", "err", err)
		return nil, err
	}
	e.cache.put(code, program)
	return program, nil
}

// enterReentrant and leaveReentrant bound re-entrant VM invocation depth
// (spec §4.4 "the recursion-level counter increments on entry and must
// never exceed a fixed maximum... fails with RecursionTooDeep").
func (e *Engine) enterReentrant() error {
	if e.recursionDepth >= maxRecursionDepth {
		return scripterr.At(0, scripterr.ErrRecursionTooDeep)
	}
	e.recursionDepth++
	return nil
}

func (e *Engine) leaveReentrant() { e.recursionDepth-- }

// LoadProgramFile memory-maps path (spec §6.4 "disk-backed script images"),
// grounded on the teacher's use of edsrzf/mmap-go for large read-only
// account state. The mapping is closed before returning; callers only need
// the bytes, not a live mapping, since analysis copies everything it keeps
// into the IR.
func (e *Engine) LoadProgramFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, err
	}
	defer m.Unmap()

	code := make([]byte, len(m))
	copy(code, m)
	return code, nil
}

// ExecuteScript runs code to completion as objectSelf, returning #loader's
// result values. SelectEngine (spec §6.6) decides whether code runs through
// the raw-bytecode ReferenceVM (no analysis) or the analyzed NativeCodegen
// VM; the two paths share resource Limits and action dispatch.
func (e *Engine) ExecuteScript(ctx context.Context, code []byte, objectSelf int32) ([]vm.Value, error) {
	if err := e.enterReentrant(); err != nil {
		return nil, err
	}
	defer e.leaveReentrant()

	if SelectEngine(len(code), e.controls) == ReferenceVM {
		rv := vm.NewRaw(rawScriptName(code), int32(len(code)), e.actions, effectiveLimits(e.controls))
		reader := bytecode.NewReader(code)
		result, err := rv.Execute(ctx, 0, reader, stackmachine.New(16), objectSelf)
		if err != nil {
			return nil, err
		}
		return []vm.Value{result}, nil
	}

	program, err := e.LoadProgram(code)
	if err != nil {
		return nil, err
	}
	m := vm.New(program, e.actions, effectiveLimits(e.controls))
	return m.Execute(ctx, objectSelf)
}

// rawScriptName identifies a raw image the same way Structure.Run stamps an
// analyzed Program's Name, so a situation ReferenceVM captures and a later
// ResumeSituation call validate against the same identity regardless of
// which engine ran the script (spec §4.6).
func rawScriptName(code []byte) string {
	return analyzer.ContentName(code)
}

// CaptureSituation serializes situation onto a fresh stackmachine.Machine
// using the core situation wire format (spec §4.6), for a host to persist
// across a save point.
func (e *Engine) CaptureSituation(situation *ir.Situation) *stackmachine.Machine {
	codec := vm.SituationCodec{}
	return codec.Encode(situation, nil, nil)
}

// ResumeSituation decodes a previously captured situation and resumes it
// against program, failing if it was not captured from program's own image
// (spec §4.6 "requires the script name to match the currently executing
// program") or if liveCodeSize is incompatible with the situation's
// recorded CodeSize (spec §9 Open Question resolution).
func (e *Engine) ResumeSituation(ctx context.Context, program *ir.Program, m *stackmachine.Machine, liveCodeSize int32) ([]vm.Value, error) {
	if err := e.enterReentrant(); err != nil {
		return nil, err
	}
	defer e.leaveReentrant()

	codec := vm.SituationCodec{}
	situation, err := codec.Decode(m, program.Name, liveCodeSize)
	if err != nil {
		return nil, err
	}
	sub, ok := program.Subroutines[situation.ResumePC]
	if !ok {
		return nil, scripterr.AtDetail(situation.ResumePC, scripterr.ErrSituationSignatureMismatch, situation.ScriptName)
	}
	situation.Subroutine = sub

	vmachine := vm.New(program, e.actions, effectiveLimits(e.controls))
	return vmachine.ExecuteSituation(ctx, situation, nil)
}

// CompressImage snappy-compresses a raw script image for a host to spool to
// disk or ship to a peer (spec §6.4 "script images are cached and
// distributed across process boundaries"); LoadProgram accepts the
// decompressed bytes.
func CompressImage(code []byte) []byte {
	return snappy.Encode(nil, code)
}

// DecompressImage reverses CompressImage.
func DecompressImage(compressed []byte) ([]byte, error) {
	return snappy.Decode(nil, compressed)
}
