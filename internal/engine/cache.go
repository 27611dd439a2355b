// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package engine

import (
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru"

	"github.com/auroraeng/scriptcore/internal/ir"
)

// programCache holds analyzed programs keyed by a content hash of their
// source bytecode, so re-loading the same script image (the common case for
// a long-running host re-entering the same event handlers) skips analysis
// entirely.
type programCache struct {
	lru *lru.Cache
}

func newProgramCache(size int) (*programCache, error) {
	if size <= 0 {
		size = DefaultControls.ProgramCacheSize
	}
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &programCache{lru: c}, nil
}

func cacheKey(code []byte) string {
	sum := sha256.Sum256(code)
	return hex.EncodeToString(sum[:])
}

func (c *programCache) get(code []byte) (*ir.Program, bool) {
	v, ok := c.lru.Get(cacheKey(code))
	if !ok {
		return nil, false
	}
	return v.(*ir.Program), true
}

func (c *programCache) put(code []byte, program *ir.Program) {
	c.lru.Add(cacheKey(code), program)
}
