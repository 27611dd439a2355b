// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/peterh/liner"
	"gopkg.in/urfave/cli.v1"

	"github.com/auroraeng/scriptcore/internal/analyzer"
	"github.com/auroraeng/scriptcore/internal/bytecode"
	"github.com/auroraeng/scriptcore/internal/engine"
	"github.com/auroraeng/scriptcore/internal/ir"
	"github.com/auroraeng/scriptcore/internal/obslog"
	"github.com/auroraeng/scriptcore/internal/vm"
)

var disasmCommand = cli.Command{
	Name:      "disasm",
	Usage:     "print the raw instruction stream of a script image",
	ArgsUsage: "<script.ncs>",
	Action:    runDisasm,
}

func runDisasm(ctx *cli.Context) error {
	code, _, err := readScriptArg(ctx)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"PC", "Opcode", "Type", "Length"})

	r := bytecode.NewReader(code)
	for r.PC() < uint32(len(code)) {
		d, err := bytecode.Disassemble(r)
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		table.Append([]string{
			fmt.Sprintf("%#06x", d.PC),
			d.Opcode.String(),
			fmt.Sprintf("%#02x", uint8(d.Type)),
			fmt.Sprintf("%d", d.Length),
		})
		r.SetPC(d.PC + d.Length)
	}
	table.Render()
	return nil
}

var analyzeCommand = cli.Command{
	Name:      "analyze",
	Usage:     "run the three analyzer passes and print the subroutine table",
	ArgsUsage: "<script.ncs>",
	Action:    runAnalyze,
}

func runAnalyze(ctx *cli.Context) error {
	code, _, err := readScriptArg(ctx)
	if err != nil {
		return err
	}
	program, err := analyzer.Analyze(code)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Subroutine", "Entry PC", "Flows", "Locals", "Flags"})
	for _, sub := range program.Subroutines {
		table.Append([]string{
			sub.Name,
			fmt.Sprintf("%#06x", sub.EntryPC),
			fmt.Sprintf("%d", len(sub.Flows)),
			fmt.Sprintf("%d", len(sub.Locals)),
			subroutineFlagsString(sub),
		})
	}
	table.Render()
	return nil
}

func subroutineFlagsString(sub *ir.Subroutine) string {
	s := ""
	if sub.Flags.Has(ir.FlagScriptSituation) {
		s += "situation "
	}
	if sub.Flags.Has(ir.FlagSavesState) {
		s += "saves-state "
	}
	if sub.Flags.Has(ir.FlagIsAnalyzed) {
		s += "analyzed "
	}
	if sub.Flags.Has(ir.FlagIsTypeAnalyzed) {
		s += "typed "
	}
	if s == "" {
		return "-"
	}
	return s
}

var runCommand = cli.Command{
	Name:      "run",
	Usage:     "execute a script image to completion",
	ArgsUsage: "<script.ncs>",
	Flags: []cli.Flag{
		cli.IntFlag{Name: "object-self", Value: 0, Usage: "ObjectSelf reference to execute as"},
	},
	Action: runExecute,
}

func runExecute(ctx *cli.Context) error {
	cfg, err := loadConfigFromContext(ctx)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	code, _, err := readScriptArg(ctx)
	if err != nil {
		return err
	}

	e, err := engine.New(cfg.Engine)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	registerActionModules(e, cfg.ActionModules)

	results, err := e.ExecuteScript(context.Background(), code, int32(ctx.Int("object-self")))
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	for _, v := range results {
		fmt.Printf("%s\n", describeValue(v))
	}
	return nil
}

var resumeCommand = cli.Command{
	Name:      "resume",
	Usage:     "load an image for resume (reading a captured situation is not supported)",
	ArgsUsage: "<script.ncs>",
	Action:    runResume,
}

func runResume(ctx *cli.Context) error {
	cfg, err := loadConfigFromContext(ctx)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	code, _, err := readScriptArg(ctx)
	if err != nil {
		return err
	}

	e, err := engine.New(cfg.Engine)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	registerActionModules(e, cfg.ActionModules)

	program, err := e.LoadProgram(code)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	// TODO: wire a binary encoding for stackmachine.Machine so a situation
	// captured by one process can cross stdin/a file into this command;
	// today SituationCodec only round-trips within one process's memory.
	fmt.Fprintln(os.Stderr, "resume requires a situation cell sequence on stdin; not yet wired to a transport")
	_ = program
	return nil
}

var debugCommand = cli.Command{
	Name:      "debug",
	Usage:     "interactive shell listing an analyzed script image's subroutines",
	ArgsUsage: "<script.ncs>",
	Action:    runDebugShell,
}

func runDebugShell(ctx *cli.Context) error {
	code, path, err := readScriptArg(ctx)
	if err != nil {
		return err
	}
	program, err := analyzer.Analyze(code)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	fmt.Printf("scriptcore debug: %s (%d subroutines)\n", path, len(program.Subroutines))
	for {
		input, err := line.Prompt("(scriptcore) ")
		if err != nil {
			return nil
		}
		line.AppendHistory(input)
		switch input {
		case "quit", "q", "exit":
			return nil
		case "subs":
			for _, sub := range program.Subroutines {
				fmt.Printf("  %-16s entry=%#06x flows=%d\n", sub.Name, sub.EntryPC, len(sub.Flows))
			}
		case "help", "":
			fmt.Println("commands: subs, quit")
		default:
			fmt.Printf("unknown command %q (try: help)\n", input)
		}
	}
}

// registerActionModules binds the small set of demonstration action
// modules scriptcore ships with by name; a production host would instead
// link in its own game- or chain-specific action implementations here.
func registerActionModules(e *engine.Engine, names []string) {
	for _, name := range names {
		switch name {
		case "logging":
			e.Register(0, 1, 1, func(ctx context.Context, args []vm.Value) (vm.Value, error) {
				obslog.Info("script log", "value", describeValue(args[0]))
				return vm.Value{}, nil
			})
		default:
			obslog.Warn("unknown action module requested", "name", name)
		}
	}
}

func describeValue(v vm.Value) string {
	switch v.Type {
	case ir.TypeFloat:
		return fmt.Sprintf("%g", v.F)
	case ir.TypeString:
		if v.S == nil {
			return ""
		}
		return v.S.String()
	case ir.TypeObject:
		return fmt.Sprintf("object#%d", v.I)
	default:
		return fmt.Sprintf("%d", v.I)
	}
}
