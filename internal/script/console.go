// Package script exposes tracehost's debug session commands as Starlark
// builtins, grounded on pkg/terminal/starbind.Env: a small starlark.Thread
// bound to a StringDict of host functions, executed one script (or one
// REPL line) at a time.
package script

import (
	"context"
	"fmt"
	"io"

	"go.starlark.net/starlark"

	"github.com/vru6650/tracehost/internal/langb"
	"github.com/vru6650/tracehost/internal/session"
	"github.com/vru6650/tracehost/internal/traceapi"
)

const (
	startBuiltinName = "start"
	stepBuiltinName  = "step"
	nextBuiltinName  = "next"
	outBuiltinName   = "out"
	contBuiltinName  = "cont"
	setbpBuiltinName = "setbp"
)

// Console runs Starlark scripts against a single debug session at a time,
// the way pkg/terminal/starbind.Env runs scripts against a live delve
// client. It only supports lang-b: Starlark scripting a Lang-A program
// would be scripting an interpreter written in a toy language, which is of
// no use to an operator.
type Console struct {
	runner *langb.Runner
	store  *session.Store
	out    io.Writer

	sess *session.Session
}

// NewConsole builds a Console that stages lang-b programs through runner
// and tracks sessions in store.
func NewConsole(runner *langb.Runner, store *session.Store, out io.Writer) *Console {
	return &Console{runner: runner, store: store, out: out}
}

// Eval evaluates source (one file, or one REPL line) as a single Starlark
// expression and returns its value formatted for display, mirroring
// starbind.Env.Execute's "run to completion, report the top-level result"
// shape. Statements are not accepted: source that is not exactly one
// expression (an assignment, a loop, several calls on separate lines)
// fails with a syntax error.
func (c *Console) Eval(ctx context.Context, name, source string) (string, error) {
	thread := &starlark.Thread{
		Name:  name,
		Print: func(_ *starlark.Thread, msg string) { fmt.Fprintln(c.out, msg) },
	}
	v, err := starlark.Eval(thread, name, source, c.builtins(ctx))
	if err != nil {
		return "", err
	}
	if v == starlark.None {
		return "", nil
	}
	return v.String(), nil
}

func (c *Console) builtins(ctx context.Context) starlark.StringDict {
	return starlark.StringDict{
		startBuiltinName: starlark.NewBuiltin(startBuiltinName, c.builtinStart(ctx)),
		stepBuiltinName:  starlark.NewBuiltin(stepBuiltinName, c.builtinCommand("step")),
		nextBuiltinName:  starlark.NewBuiltin(nextBuiltinName, c.builtinCommand("next")),
		outBuiltinName:   starlark.NewBuiltin(outBuiltinName, c.builtinCommand("out")),
		contBuiltinName:  starlark.NewBuiltin(contBuiltinName, c.builtinCommand("continue")),
		setbpBuiltinName: starlark.NewBuiltin(setbpBuiltinName, c.builtinSetbp()),
	}
}

// builtinStart implements start(code) -> string: stages code as a lang-b
// program, runs the tracer, and opens a debug session on the resulting
// trace, matching POST /debug/start's semantics without the HTTP envelope.
func (c *Console) builtinStart(ctx context.Context) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var code starlark.String
		if err := starlark.UnpackArgs(startBuiltinName, args, kwargs, "code", &code); err != nil {
			return nil, err
		}
		doc := c.runner.Run(ctx, string(code), nil)
		if doc.HasError() {
			return nil, fmt.Errorf("start: %s", doc.ErrorMessage())
		}
		c.sess = c.store.Create(doc.Events, nil)
		return starlark.String(c.sess.ID), nil
	}
}

// builtinCommand implements the zero-argument step/next/out/cont builtins,
// all of which forward to the same session.Handle dispatch the HTTP
// boundary uses.
func (c *Console) builtinCommand(name string) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if err := starlark.UnpackArgs(name, args, kwargs); err != nil {
			return nil, err
		}
		if c.sess == nil {
			return nil, fmt.Errorf("%s: no active session, call start(code) first", name)
		}
		res, err := c.sess.Handle(session.Command{Name: name})
		if err != nil {
			return nil, err
		}
		return resultToStarlark(res)
	}
}

// builtinSetbp implements setbp(line, condition="") -> [breakpoint lines].
func (c *Console) builtinSetbp() func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var line starlark.Int
		var condition starlark.String
		if err := starlark.UnpackArgs(setbpBuiltinName, args, kwargs, "line", &line, "condition?", &condition); err != nil {
			return nil, err
		}
		if c.sess == nil {
			return nil, fmt.Errorf("setbp: no active session, call start(code) first")
		}
		n, ok := line.Uint64()
		if !ok {
			return nil, fmt.Errorf("setbp: line must be a non-negative integer")
		}
		l := uint32(n)
		res, err := c.sess.Handle(session.Command{Name: "setBreakpoint", Line: &l, Condition: string(condition)})
		if err != nil {
			return nil, err
		}
		elems := make([]starlark.Value, len(res.Breakpoints))
		for i, bp := range res.Breakpoints {
			elems[i] = starlark.MakeUint(uint(bp))
		}
		return starlark.NewList(elems), nil
	}
}

// resultToStarlark renders a session.Result as a small Starlark dict, so a
// script can inspect the line it stopped on without a full DAP client.
func resultToStarlark(res session.Result) (starlark.Value, error) {
	d := starlark.NewDict(3)
	if err := d.SetKey(starlark.String("done"), starlark.Bool(res.Done)); err != nil {
		return nil, err
	}
	if res.Event == nil {
		if err := d.SetKey(starlark.String("line"), starlark.None); err != nil {
			return nil, err
		}
		return d, nil
	}
	if err := d.SetKey(starlark.String("line"), starlark.MakeUint(uint(res.Event.Line))); err != nil {
		return nil, err
	}
	if err := d.SetKey(starlark.String("locals"), localsToStarlark(res.Event.Locals)); err != nil {
		return nil, err
	}
	return d, nil
}

func localsToStarlark(locals traceapi.Locals) starlark.Value {
	d := starlark.NewDict(len(locals))
	for k, v := range locals {
		d.SetKey(starlark.String(k), starlark.String(fmt.Sprintf("%v", v)))
	}
	return d
}
