// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load("/nonexistent/scriptcore.toml")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestDecodeOverridesEngineControls(t *testing.T) {
	cfg := Default()
	toml := `
action_modules = ["math", "logging"]

[engine]
max_instructions = 4096
max_call_depth = 8
load_debug_symbols = true
program_cache_size = 16
`
	err := Decode(strings.NewReader(toml), &cfg)
	require.NoError(t, err)
	require.Equal(t, []string{"math", "logging"}, cfg.ActionModules)
	require.Equal(t, 4096, cfg.Engine.MaxInstructions)
	require.Equal(t, 8, cfg.Engine.MaxCallDepth)
	require.True(t, cfg.Engine.LoadDebugSymbols)
	require.Equal(t, 16, cfg.Engine.ProgramCacheSize)
}
