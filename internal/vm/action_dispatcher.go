// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package vm

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/auroraeng/scriptcore/internal/scripterr"
)

// ActionDispatcher invokes a host-supplied engine action by ordinal (spec
// §4.5, §6.3). The VM is re-entrant across this call: an action may itself
// drive the VM (e.g. to execute an event handler), so Invoke receives the
// context the call chain is running under rather than touching VM internals
// directly.
type ActionDispatcher interface {
	// Invoke calls the action identified by ordinal with the given
	// arguments, already popped/evaluated in calling-convention order, and
	// returns its result. A nil result is only valid for a void-returning
	// action.
	Invoke(ctx context.Context, ordinal int, args []Value) (Value, error)
}

// ActionFunc adapts a plain function to ActionDispatcher for a single
// action ordinal's registration.
type ActionFunc func(ctx context.Context, args []Value) (Value, error)

// actionEntry pairs a registered action with the argument count range the
// VM must enforce before calling it (spec §4.5, §6.2 action table's
// minParams/numParams): optional trailing parameters make minParams <
// numParams legal, unlike a single fixed arity.
type actionEntry struct {
	minParams int
	numParams int
	fn        ActionFunc
}

// Registry is the default ActionDispatcher: a table of host actions keyed
// by ordinal, mirroring the teacher's action-table registration style in
// integration/engine.go (contract methods keyed by selector).
type Registry struct {
	actions map[int]actionEntry
}

// NewRegistry creates an empty action Registry.
func NewRegistry() *Registry {
	return &Registry{actions: make(map[int]actionEntry)}
}

// Register binds ordinal to fn, enforcing minParams <= len(args) <=
// numParams on every call (spec §4.5): actions whose trailing parameters
// are optional register minParams < numParams, fixed-arity actions
// register them equal.
func (r *Registry) Register(ordinal, minParams, numParams int, fn ActionFunc) {
	r.actions[ordinal] = actionEntry{minParams: minParams, numParams: numParams, fn: fn}
}

// Invoke implements ActionDispatcher.
func (r *Registry) Invoke(ctx context.Context, ordinal int, args []Value) (Value, error) {
	entry, ok := r.actions[ordinal]
	if !ok {
		return Value{}, scripterr.AtDetail(0, scripterr.ErrActionFailed,
			fmt.Sprintf("unregistered action ordinal %d", ordinal))
	}
	if len(args) < entry.minParams || len(args) > entry.numParams {
		return Value{}, scripterr.AtDetail(0, scripterr.ErrActionArity,
			fmt.Sprintf("action %d wants %d-%d args, got %d", ordinal, entry.minParams, entry.numParams, len(args)))
	}
	invocationID := uuid.New()
	result, err := entry.fn(ctx, args)
	if err != nil {
		return Value{}, scripterr.AtDetail(0, scripterr.ErrActionFailed,
			fmt.Sprintf("action %d (invocation %s): %v", ordinal, invocationID, err))
	}
	return result, nil
}
