// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package obslog is a small structured logger in the geth "log15" idiom:
// Info/Warn/Error/Crit take a message plus an alternating key-value context,
// colorize output when attached to a terminal, and annotate the call site on
// Warn/Error/Crit using a captured stack frame.
package obslog

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/go-stack/stack"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Level is the severity of a log record.
type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelCrit
)

func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "TRCE"
	case LevelDebug:
		return "DBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "EROR"
	case LevelCrit:
		return "CRIT"
	default:
		return "????"
	}
}

var levelColor = map[Level]*color.Color{
	LevelTrace: color.New(color.FgWhite),
	LevelDebug: color.New(color.FgCyan),
	LevelInfo:  color.New(color.FgGreen),
	LevelWarn:  color.New(color.FgYellow),
	LevelError: color.New(color.FgRed),
	LevelCrit:  color.New(color.FgRed, color.Bold),
}

// Logger emits leveled, structured log records prefixed with a fixed context
// (e.g. an "invocation" UUID), in the style of the teacher's package-level
// `log.Info("msg", "key", val, ...)` call sites.
type Logger struct {
	mu       sync.Mutex
	out      io.Writer
	minLevel Level
	colorize bool
	ctx      []interface{}
}

// Root is the process-wide default logger, analogous to the teacher's
// package-level `log` singleton.
var Root = New(os.Stderr)

// New creates a Logger writing to w, auto-detecting whether w is a
// colorable terminal (mirrors mattn/go-isatty + mattn/go-colorable use in
// the teacher's dependency graph).
func New(w io.Writer) *Logger {
	colorize := false
	out := w
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		out = colorable.NewColorable(f)
		colorize = true
	}
	return &Logger{out: out, minLevel: LevelInfo, colorize: colorize}
}

// SetLevel changes the minimum level this logger emits.
func (l *Logger) SetLevel(lvl Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.minLevel = lvl
}

// With returns a child Logger that always includes the given key-value
// context ahead of each record's own context.
func (l *Logger) With(ctx ...interface{}) *Logger {
	child := &Logger{out: l.out, minLevel: l.minLevel, colorize: l.colorize}
	child.ctx = append(append([]interface{}{}, l.ctx...), ctx...)
	return child
}

func (l *Logger) log(lvl Level, skip int, msg string, ctx ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lvl < l.minLevel {
		return
	}

	var b []byte
	ts := time.Now().Format("2006-01-02T15:04:05-0700")
	if l.colorize {
		b = levelColor[lvl].Sprintf("%s[%s] %s", lvl, ts, msg)
	} else {
		b = fmt.Appendf(nil, "%s[%s] %s", lvl, ts, msg)
	}
	line := string(b)

	all := append(append([]interface{}{}, l.ctx...), ctx...)
	for i := 0; i+1 < len(all); i += 2 {
		line += fmt.Sprintf(" %v=%v", all[i], all[i+1])
	}
	if lvl >= LevelWarn {
		if call := callerAt(skip + 2); call != "" {
			line += fmt.Sprintf(" caller=%s", call)
		}
	}
	fmt.Fprintln(l.out, line)
}

// callerAt returns a short "file:line" for the frame `skip` levels above the
// logging method, using go-stack/stack the way the teacher's wider tree
// pulls it in for diagnostic call-site annotation.
func callerAt(skip int) string {
	trace := stack.Trace().TrimRuntime()
	if skip < 0 || skip >= len(trace) {
		return ""
	}
	return fmt.Sprintf("%+v", trace[skip])
}

func (l *Logger) Trace(msg string, ctx ...interface{}) { l.log(LevelTrace, 0, msg, ctx...) }
func (l *Logger) Debug(msg string, ctx ...interface{}) { l.log(LevelDebug, 0, msg, ctx...) }
func (l *Logger) Info(msg string, ctx ...interface{})  { l.log(LevelInfo, 0, msg, ctx...) }
func (l *Logger) Warn(msg string, ctx ...interface{})  { l.log(LevelWarn, 0, msg, ctx...) }
func (l *Logger) Error(msg string, ctx ...interface{}) { l.log(LevelError, 0, msg, ctx...) }
func (l *Logger) Crit(msg string, ctx ...interface{})  { l.log(LevelCrit, 0, msg, ctx...) }

func Trace(msg string, ctx ...interface{}) { Root.Trace(msg, ctx...) }
func Debug(msg string, ctx ...interface{}) { Root.Debug(msg, ctx...) }
func Info(msg string, ctx ...interface{})  { Root.Info(msg, ctx...) }
func Warn(msg string, ctx ...interface{})  { Root.Warn(msg, ctx...) }
func Error(msg string, ctx ...interface{}) { Root.Error(msg, ctx...) }
func Crit(msg string, ctx ...interface{})  { Root.Crit(msg, ctx...) }
