// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Command scriptcore is a disassembler, analyzer, and interpreter for the
// core's script bytecode format: disasm prints raw instructions, analyze
// prints the subroutine/control-flow graph an analyzed image produces, run
// executes a script to completion, resume loads an image and reports that
// no captured situation can be read into it, and debug drops into an
// interactive shell that lists the analyzed subroutines.
//
// Usage:
//
//	scriptcore [global flags] <command> [command flags] <script.ncs>
package main

import (
	"fmt"
	"os"

	"gopkg.in/urfave/cli.v1"

	scconfig "github.com/auroraeng/scriptcore/internal/config"
	"github.com/auroraeng/scriptcore/internal/obslog"
)

const version = "0.1.0"

var configFileFlag = cli.StringFlag{
	Name:  "config",
	Usage: "TOML configuration file (default: engine.DefaultControls)",
}

func main() {
	app := cli.NewApp()
	app.Name = "scriptcore"
	app.Usage = "disassemble, analyze, and run script bytecode images"
	app.Version = version
	app.Flags = []cli.Flag{configFileFlag}
	app.Commands = []cli.Command{
		disasmCommand,
		analyzeCommand,
		runCommand,
		resumeCommand,
		debugCommand,
	}

	if err := app.Run(os.Args); err != nil {
		obslog.Crit("scriptcore failed", "err", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfigFromContext(ctx *cli.Context) (scconfig.Config, error) {
	path := ctx.GlobalString(configFileFlag.Name)
	if path == "" {
		return scconfig.Default(), nil
	}
	return scconfig.Load(path)
}

func readScriptArg(ctx *cli.Context) ([]byte, string, error) {
	if ctx.NArg() < 1 {
		return nil, "", cli.NewExitError("usage: scriptcore <command> <script.ncs>", 1)
	}
	path := ctx.Args().First()
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, "", cli.NewExitError(err.Error(), 1)
	}
	return code, path, nil
}
