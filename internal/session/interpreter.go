package session

import (
	"fmt"

	"go.starlark.net/starlark"

	"github.com/vru6650/tracehost/internal/traceapi"
	"github.com/vru6650/tracehost/pkg/logflags"
)

// Command is a name+args pair dispatched against a Session.
type Command struct {
	Name      string
	Line      *uint32 // for setBreakpoint
	Condition string  // for setBreakpoint, optional
}

// Result is the interpreter's response to a Command. Breakpoints is only
// populated for setBreakpoint; Event/Done otherwise.
type Result struct {
	Event       *traceapi.TraceEvent
	Done        bool
	Breakpoints []uint32
	BadCommand  bool
}

// ErrUnknownCommand marks a Command.Name the interpreter does not
// recognize, surfaced by the HTTP boundary as a 400.
type ErrUnknownCommand struct{ Name string }

func (e *ErrUnknownCommand) Error() string { return fmt.Sprintf("unknown debug command %q", e.Name) }

// Handle dispatches cmd against sess, serializing concurrent commands on
// the same session behind its mutex.
func (s *Session) Handle(cmd Command) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch cmd.Name {
	case "step":
		return s.step(), nil
	case "continue":
		return s.scan(func(int) bool { return !s.atBreakpoint(s.pointer) }), nil
	case "next":
		depth := s.depthAt(s.pointer)
		return s.scan(func(int) bool { return s.depthAt(s.pointer) > depth }), nil
	case "out":
		depth := s.depthAt(s.pointer)
		return s.scan(func(int) bool { return s.depthAt(s.pointer) >= depth }), nil
	case "setBreakpoint":
		return s.setBreakpoint(cmd), nil
	default:
		return Result{BadCommand: true}, &ErrUnknownCommand{Name: cmd.Name}
	}
}

// step advances the pointer by exactly one.
func (s *Session) step() Result {
	s.pointer++
	return s.clampedResult()
}

// scan advances the pointer by one, then continues advancing while
// keepGoing(s.pointer) is true, matching the shared shape of
// continue/next/out: the search always begins one past the current
// pointer. keepGoing is evaluated against the session's
// current pointer so continue's breakpoint check and next/out's depth
// check can each read whatever event fields they need.
func (s *Session) scan(keepGoing func(pointer int) bool) Result {
	s.pointer++
	for s.pointer < len(s.Events)-1 && keepGoing(s.pointer) {
		s.pointer++
	}
	return s.clampedResult()
}

// atBreakpoint reports whether the event at idx sits on a breakpoint line
// whose optional condition (if any) evaluates truthy.
func (s *Session) atBreakpoint(idx int) bool {
	if idx < 0 || idx >= len(s.Events) {
		return false
	}
	ev := s.Events[idx]
	cond, ok := s.breakpoints[ev.Line]
	if !ok {
		return false
	}
	if cond == "" {
		return true
	}
	hit, err := evalCondition(cond, ev.Locals)
	if err != nil {
		logflags.SessionLogger().WithError(err).WithField("condition", cond).Debug("breakpoint condition failed to evaluate; treating as non-hit")
		return false
	}
	return hit
}

func (s *Session) depthAt(idx int) int {
	if idx < 0 || idx >= len(s.Events) {
		return 0
	}
	return s.Events[idx].Depth()
}

// clampedResult clamps the pointer into range and reports the event there,
// or done=true with a nil event if Events is empty.
func (s *Session) clampedResult() Result {
	if len(s.Events) == 0 {
		s.pointer = -1
		return Result{Event: nil, Done: true}
	}
	if s.pointer >= len(s.Events)-1 {
		s.pointer = len(s.Events) - 1
		ev := s.Events[s.pointer]
		return Result{Event: &ev, Done: true}
	}
	ev := s.Events[s.pointer]
	return Result{Event: &ev, Done: false}
}

// setBreakpoint adds cmd.Line (with an optional condition) to the
// session's breakpoint set and returns the current set. A missing Line is
// silently ignored.
func (s *Session) setBreakpoint(cmd Command) Result {
	if cmd.Line != nil {
		s.breakpoints[*cmd.Line] = cmd.Condition
	}
	lines := make([]uint32, 0, len(s.breakpoints))
	for line := range s.breakpoints {
		lines = append(lines, line)
	}
	return Result{Breakpoints: lines}
}

// evalCondition evaluates a Starlark boolean expression with a Step
// event's locals bound as globals, grounded on pkg/terminal/starbind's use
// of go.starlark.net to run small operator-supplied expressions inside the
// debugger.
func evalCondition(expr string, locals traceapi.Locals) (bool, error) {
	env := make(starlark.StringDict, len(locals))
	for k, v := range locals {
		sv, err := toStarlark(v)
		if err != nil {
			return false, err
		}
		env[k] = sv
	}
	thread := &starlark.Thread{Name: "breakpoint-condition"}
	v, err := starlark.Eval(thread, "<condition>", expr, env)
	if err != nil {
		return false, err
	}
	return bool(v.Truth()), nil
}

func toStarlark(v traceapi.Value) (starlark.Value, error) {
	switch x := v.(type) {
	case nil:
		return starlark.None, nil
	case bool:
		return starlark.Bool(x), nil
	case float64:
		return starlark.Float(x), nil
	case string:
		return starlark.String(x), nil
	case []interface{}:
		elems := make([]traceapi.Value, len(x))
		for i, el := range x {
			elems[i] = el
		}
		return toStarlark(elems)
	case map[string]interface{}:
		m := make(map[string]traceapi.Value, len(x))
		for k, val := range x {
			m[k] = val
		}
		return toStarlark(m)
	case []traceapi.Value:
		elems := make([]starlark.Value, len(x))
		for i, el := range x {
			sv, err := toStarlark(el)
			if err != nil {
				return nil, err
			}
			elems[i] = sv
		}
		return starlark.NewList(elems), nil
	case map[string]traceapi.Value:
		d := starlark.NewDict(len(x))
		for k, val := range x {
			sv, err := toStarlark(val)
			if err != nil {
				return nil, err
			}
			if err := d.SetKey(starlark.String(k), sv); err != nil {
				return nil, err
			}
		}
		return d, nil
	default:
		return nil, fmt.Errorf("value of type %T has no Starlark equivalent", v)
	}
}
