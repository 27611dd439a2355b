// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/auroraeng/scriptcore/internal/ir"
	"github.com/auroraeng/scriptcore/internal/stackmachine"
	"github.com/auroraeng/scriptcore/internal/vm"
)

func TestDescribeValueFormatsEachType(t *testing.T) {
	require.Equal(t, "7", describeValue(vm.IntValue(7)))
	require.Equal(t, "2.5", describeValue(vm.FloatValue(2.5)))
	require.Equal(t, "hi", describeValue(vm.StringValue(stackmachine.NewStringValue("hi"))))
	require.Equal(t, "object#3", describeValue(vm.ObjectValue(3)))
}

func TestSubroutineFlagsStringReportsDash(t *testing.T) {
	sub := ir.NewSubroutine("#loader", 0, 0)
	require.Equal(t, "-", subroutineFlagsString(sub))

	sub.Flags |= ir.FlagIsAnalyzed
	require.Contains(t, subroutineFlagsString(sub), "analyzed")
}
