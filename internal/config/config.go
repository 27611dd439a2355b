// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Package config loads cmd/scriptcore's TOML configuration file into an
// engine.Controls, grounded on the teacher's naoina/toml-based process
// config (geth's config.toml). This is new surface the CLI owns for its
// own demonstration/ops use, not a host's embedding-time configuration.
package config

import (
	"io"
	"os"

	"github.com/naoina/toml"

	"github.com/auroraeng/scriptcore/internal/engine"
)

// Config is the top-level shape of scriptcore.toml.
type Config struct {
	Engine engine.Controls `toml:"engine"`

	// ActionModules lists the names of host action plugins cmd/scriptcore
	// should register before executing a script (spec §6.3); resolution of
	// a named module into an ActionDispatcher happens in cmd/scriptcore,
	// which owns the concrete action implementations.
	ActionModules []string `toml:"action_modules"`
}

// Default returns a Config seeded from engine.DefaultControls with no
// action modules enabled.
func Default() Config {
	return Config{Engine: engine.DefaultControls}
}

// Load reads and decodes a TOML config file at path. A missing file is not
// an error: Default() is returned instead, so a bare `scriptcore run`
// invocation works without requiring a config file on disk first.
func Load(path string) (Config, error) {
	cfg := Default()
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	defer f.Close()

	if err := Decode(f, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Decode reads TOML from r into cfg, leaving any field Load already seeded
// from Default() untouched where r doesn't set it.
func Decode(r io.Reader, cfg *Config) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	return toml.Unmarshal(data, cfg)
}
