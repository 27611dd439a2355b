// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Package engine is the host-facing entry point (spec §6): it owns the
// action table, the analyzed-program cache, and the load/execute/capture/
// resume surface a host embeds. The Contract/ExecutionContext/
// ExecutionResult/Execute shape is grounded on the teacher's
// integration/engine.go, re-targeted from a blockchain contract ABI to the
// spec's script-image loading and situation model.
package engine

// Controls configures one Engine instance (spec §6.6): the resource limits
// applied to every execution, and whether debug instrumentation is loaded.
type Controls struct {
	MaxInstructions  int  `toml:"max_instructions"`
	MaxCallDepth     int  `toml:"max_call_depth"`
	LoadDebugSymbols bool `toml:"load_debug_symbols"`
	// ProgramCacheSize bounds the number of analyzed programs held in the
	// in-memory LRU cache before the least recently used is evicted.
	ProgramCacheSize int `toml:"program_cache_size"`

	// MaxLoopIterations caps how many times execution may re-enter a
	// single ControlFlow node within one call (spec §6.6), guarding
	// against a tight infinite loop that would never trip
	// MaxInstructions. Zero disables the guard.
	MaxLoopIterations int `toml:"max_loop_iterations"`

	// DisableExecutionGuards turns off MaxInstructions/MaxCallDepth/
	// MaxLoopIterations enforcement entirely (spec §6.6), for trusted
	// tooling (disassembly-driven debugging, offline batch analysis) that
	// needs scripts to run to completion regardless of cost.
	DisableExecutionGuards bool `toml:"disable_execution_guards"`

	// EnableIROptimizations runs the Optimizer pass after Code lifting
	// (spec §6.6); disabling it trades analysis completeness for speed
	// when a caller only needs the unoptimized IR (e.g. disassembly
	// tooling, or the NativeCodegen path compiling straight off Code's
	// output).
	EnableIROptimizations bool `toml:"enable_ir_optimizations"`

	// AllowNativeEngineScripts permits ExecuteScript to route a script
	// through the analyzed NativeCodegen VM path (spec §6.6
	// SelectEngine); when false, every script runs on the raw-bytecode
	// ReferenceVM regardless of size.
	AllowNativeEngineScripts bool `toml:"allow_native_engine_scripts"`
}

// DefaultControls mirrors DefaultLimits in internal/vm, plus a modest
// program cache and debug symbols off by default.
var DefaultControls = Controls{
	MaxInstructions:          1 << 20,
	MaxCallDepth:             64,
	LoadDebugSymbols:         false,
	ProgramCacheSize:         128,
	MaxLoopIterations:        1 << 16,
	DisableExecutionGuards:   false,
	EnableIROptimizations:    true,
	AllowNativeEngineScripts: true,
}
