package langa

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vru6650/tracehost/internal/traceapi"
	"github.com/vru6650/tracehost/pkg/logflags"
)

// returnSignal unwinds a function call, or the top-level program, which is
// itself allowed to return.
type returnSignal struct{ value Value }

func (returnSignal) Error() string { return "return" }

// throwSignal unwinds toward the nearest enclosing try/catch, or to the
// top level, where it becomes a terminal Error event.
type throwSignal struct{ value Value }

func (throwSignal) Error() string { return "uncaught exception" }

// deadlineExceeded is returned when the cooperative deadline check fires.
// It is treated as a runtime failure rather than an internal error.
type deadlineExceeded struct{}

func (deadlineExceeded) Error() string { return "execution timed out" }

// Interp is a fresh, single-use evaluator context for one instrumented
// program.
type Interp struct {
	sandbox   map[string]Value
	root      *Scope
	callStack []string
	deadline  time.Time

	mu     sync.Mutex
	events []traceapi.TraceEvent

	log *logrus.Entry
}

const defaultDeadlineMS = 1000

// Evaluate parses and executes an instrumented Lang-A program, returning a
// TraceDocument. deadlineMS of 0 selects the default of 1000ms.
func Evaluate(instrumented string, deadlineMS uint32) traceapi.TraceDocument {
	if deadlineMS == 0 {
		deadlineMS = defaultDeadlineMS
	}
	log := logflags.EvaluatorLogger()

	prog, err := Parse(instrumented)
	if err != nil {
		log.WithError(err).Debug("evaluator could not parse instrumented source")
		return traceapi.TraceDocument{
			Events: []traceapi.TraceEvent{traceapi.Error(err.Error())},
			Status: traceapi.StatusError,
			Error:  err.Error(),
		}
	}

	in := &Interp{
		sandbox: map[string]Value{},
		log:     log,
	}
	in.root = newRootScope(in.sandbox)

	deadline := time.Now().Add(time.Duration(deadlineMS) * time.Millisecond)
	in.deadline = deadline

	done := make(chan error, 1)
	go func() {
		done <- in.run(prog)
	}()

	grace := 250 * time.Millisecond
	select {
	case runErr := <-done:
		return in.finish(runErr)
	case <-time.After(time.Duration(deadlineMS)*time.Millisecond + grace):
		log.Warn("evaluator goroutine did not observe cooperative deadline in time")
		return in.finish(deadlineExceeded{})
	}
}

func (in *Interp) finish(runErr error) traceapi.TraceDocument {
	in.mu.Lock()
	events := append([]traceapi.TraceEvent(nil), in.events...)
	in.mu.Unlock()

	doc := traceapi.TraceDocument{Events: events, Status: traceapi.StatusOK}
	switch e := runErr.(type) {
	case nil:
		// success
	case returnSignal:
		// top-level return; not an error
	case throwSignal:
		msg := toDisplayString(e.value)
		doc.Events = append(doc.Events, traceapi.Error(msg))
		doc.Status = traceapi.StatusError
		doc.Error = msg
	case deadlineExceeded:
		doc.Events = append(doc.Events, traceapi.Error(e.Error()))
		doc.Status = traceapi.StatusError
		doc.Error = e.Error()
	default:
		doc.Events = append(doc.Events, traceapi.Error(runErr.Error()))
		doc.Status = traceapi.StatusError
		doc.Error = runErr.Error()
	}
	return doc
}

func (in *Interp) appendEvent(ev traceapi.TraceEvent) {
	in.mu.Lock()
	in.events = append(in.events, ev)
	in.mu.Unlock()
}

func (in *Interp) checkDeadline() error {
	if time.Now().After(in.deadline) {
		return deadlineExceeded{}
	}
	return nil
}

// run hoists top-level function declarations, then executes the program
// body in the root scope (which is the sandbox itself).
func (in *Interp) run(prog *Program) error {
	in.hoistFunctions(prog.Body, in.root)
	return in.execStmts(prog.Body, in.root)
}

func (in *Interp) hoistFunctions(stmts []Stmt, sc *Scope) {
	for _, st := range stmts {
		if fd, ok := st.(*FunctionDeclStmt); ok {
			sc.Define(fd.Name, &Function{Name: fd.Name, Params: fd.Params, Body: fd.Body, Closure: sc})
		}
	}
}

func (in *Interp) execStmts(stmts []Stmt, sc *Scope) error {
	for _, st := range stmts {
		if err := in.execStmt(st, sc); err != nil {
			return err
		}
	}
	return nil
}

func (in *Interp) execStmt(st Stmt, sc *Scope) error {
	switch s := st.(type) {
	case *TraceCallStmt:
		if err := in.checkDeadline(); err != nil {
			return err
		}
		var cs []string
		if len(in.callStack) > 0 {
			cs = append([]string(nil), in.callStack...)
		}
		in.appendEvent(traceapi.Step(s.ProbeLine, shallowCloneSandbox(in.sandbox), cs))
		return nil

	case *VarDeclStmt:
		for i, name := range s.Names {
			var v Value
			if s.Inits[i] != nil {
				val, err := in.evalExpr(s.Inits[i], sc)
				if err != nil {
					return err
				}
				v = val
			}
			sc.Define(name, v)
		}
		return nil

	case *ExprStmt:
		_, err := in.evalExpr(s.X, sc)
		return err

	case *BlockStmt:
		return in.execStmts(s.Body, sc)

	case *IfStmt:
		cond, err := in.evalExpr(s.Cond, sc)
		if err != nil {
			return err
		}
		if isTruthy(cond) {
			return in.execStmt(s.Then, sc)
		}
		if s.Else != nil {
			return in.execStmt(s.Else, sc)
		}
		return nil

	case *ForStmt:
		if s.Init != nil {
			if err := in.execStmt(s.Init, sc); err != nil {
				return err
			}
		}
		for {
			if err := in.checkDeadline(); err != nil {
				return err
			}
			if s.Test != nil {
				cond, err := in.evalExpr(s.Test, sc)
				if err != nil {
					return err
				}
				if !isTruthy(cond) {
					break
				}
			}
			if err := in.execStmt(s.Body, sc); err != nil {
				return err
			}
			if s.Update != nil {
				if _, err := in.evalExpr(s.Update, sc); err != nil {
					return err
				}
			}
		}
		return nil

	case *WhileStmt:
		for {
			if err := in.checkDeadline(); err != nil {
				return err
			}
			cond, err := in.evalExpr(s.Cond, sc)
			if err != nil {
				return err
			}
			if !isTruthy(cond) {
				break
			}
			if err := in.execStmt(s.Body, sc); err != nil {
				return err
			}
		}
		return nil

	case *ReturnStmt:
		var v Value
		if s.Arg != nil {
			val, err := in.evalExpr(s.Arg, sc)
			if err != nil {
				return err
			}
			v = val
		}
		return returnSignal{value: v}

	case *ThrowStmt:
		v, err := in.evalExpr(s.Arg, sc)
		if err != nil {
			return err
		}
		return throwSignal{value: v}

	case *TryStmt:
		err := in.execStmts(s.Body.Body, sc)
		if ts, ok := err.(throwSignal); ok && s.Catch != nil {
			catchScope := newChildScope(sc)
			if s.CatchParam != "" {
				catchScope.Define(s.CatchParam, ts.value)
			}
			err = in.execStmts(s.Catch.Body, catchScope)
		}
		if s.Finally != nil {
			if ferr := in.execStmts(s.Finally.Body, sc); ferr != nil {
				return ferr
			}
		}
		return err

	case *FunctionDeclStmt:
		// Already hoisted; re-executing is a harmless redefinition.
		sc.Define(s.Name, &Function{Name: s.Name, Params: s.Params, Body: s.Body, Closure: sc})
		return nil

	default:
		return fmt.Errorf("unsupported statement type %T", st)
	}
}

func (in *Interp) evalExpr(e Expr, sc *Scope) (Value, error) {
	switch x := e.(type) {
	case *Ident:
		if v, ok := sc.Get(x.Name); ok {
			return v, nil
		}
		return nil, fmt.Errorf("%s is not defined", x.Name)

	case *NumberLit:
		var f float64
		fmt.Sscanf(x.Text, "%g", &f)
		return f, nil

	case *StringLit:
		return x.Value, nil

	case *BoolLit:
		return x.Value, nil

	case *NullLit:
		return nil, nil

	case *ArrayLit:
		out := make([]interface{}, len(x.Elements))
		for i, el := range x.Elements {
			v, err := in.evalExpr(el, sc)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil

	case *ObjectLit:
		out := map[string]interface{}{}
		for _, prop := range x.Props {
			v, err := in.evalExpr(prop.Value, sc)
			if err != nil {
				return nil, err
			}
			out[prop.Key] = v
		}
		return out, nil

	case *FunctionExpr:
		return &Function{Name: x.Name, Params: x.Params, Body: x.Body, Closure: sc}, nil

	case *AssignExpr:
		return in.evalAssign(x, sc)

	case *BinaryExpr:
		return in.evalBinary(x, sc)

	case *LogicalExpr:
		left, err := in.evalExpr(x.Left, sc)
		if err != nil {
			return nil, err
		}
		if x.Op == "&&" {
			if !isTruthy(left) {
				return left, nil
			}
			return in.evalExpr(x.Right, sc)
		}
		if isTruthy(left) {
			return left, nil
		}
		return in.evalExpr(x.Right, sc)

	case *UnaryExpr:
		v, err := in.evalExpr(x.X, sc)
		if err != nil {
			return nil, err
		}
		if x.Op == "!" {
			return !isTruthy(v), nil
		}
		return -toNumber(v), nil

	case *UpdateExpr:
		return in.evalUpdate(x, sc)

	case *MemberExpr:
		return in.evalMemberGet(x, sc)

	case *CallExpr:
		return in.evalCall(x, sc)

	default:
		return nil, fmt.Errorf("unsupported expression type %T", e)
	}
}

func (in *Interp) evalAssign(x *AssignExpr, sc *Scope) (Value, error) {
	rhs, err := in.evalExpr(x.Value, sc)
	if err != nil {
		return nil, err
	}
	v := rhs
	if x.Op != "=" {
		cur, err := in.evalExpr(x.Target, sc)
		if err != nil {
			return nil, err
		}
		switch x.Op {
		case "+=":
			if cs, ok := cur.(string); ok {
				v = cs + toDisplayString(rhs)
			} else {
				v = toNumber(cur) + toNumber(rhs)
			}
		case "-=":
			v = toNumber(cur) - toNumber(rhs)
		case "*=":
			v = toNumber(cur) * toNumber(rhs)
		case "/=":
			v = toNumber(cur) / toNumber(rhs)
		}
	}
	if err := in.assignTo(x.Target, v, sc); err != nil {
		return nil, err
	}
	return v, nil
}

func (in *Interp) assignTo(target Expr, v Value, sc *Scope) error {
	switch t := target.(type) {
	case *Ident:
		sc.Set(t.Name, v)
		return nil
	case *MemberExpr:
		obj, err := in.evalExpr(t.Object, sc)
		if err != nil {
			return err
		}
		key, err := in.memberKey(t, sc)
		if err != nil {
			return err
		}
		switch o := obj.(type) {
		case map[string]interface{}:
			o[key] = v
			return nil
		case []interface{}:
			idx := int(toNumber(key))
			if idx >= 0 && idx < len(o) {
				o[idx] = v
				return nil
			}
			return fmt.Errorf("array index %d out of range", idx)
		default:
			return fmt.Errorf("cannot assign property on non-object value")
		}
	default:
		return fmt.Errorf("invalid assignment target")
	}
}

func (in *Interp) memberKey(x *MemberExpr, sc *Scope) (string, error) {
	if !x.Computed {
		return x.Property.(*Ident).Name, nil
	}
	v, err := in.evalExpr(x.Property, sc)
	if err != nil {
		return "", err
	}
	if s, ok := v.(string); ok {
		return s, nil
	}
	return toDisplayString(v), nil
}

func (in *Interp) evalMemberGet(x *MemberExpr, sc *Scope) (Value, error) {
	obj, err := in.evalExpr(x.Object, sc)
	if err != nil {
		return nil, err
	}
	if !x.Computed {
		if id, ok := x.Property.(*Ident); ok && id.Name == "length" {
			switch o := obj.(type) {
			case string:
				return float64(len(o)), nil
			case []interface{}:
				return float64(len(o)), nil
			}
		}
	}
	key, err := in.memberKey(x, sc)
	if err != nil {
		return nil, err
	}
	switch o := obj.(type) {
	case map[string]interface{}:
		return o[key], nil
	case []interface{}:
		idx := int(toNumber(key))
		if idx >= 0 && idx < len(o) {
			return o[idx], nil
		}
		return nil, nil
	default:
		return nil, nil
	}
}

func (in *Interp) evalUpdate(x *UpdateExpr, sc *Scope) (Value, error) {
	cur, err := in.evalExpr(x.Target, sc)
	if err != nil {
		return nil, err
	}
	old := toNumber(cur)
	next := old + 1
	if x.Op == "--" {
		next = old - 1
	}
	if err := in.assignTo(x.Target, next, sc); err != nil {
		return nil, err
	}
	if x.Prefix {
		return next, nil
	}
	return old, nil
}

func (in *Interp) evalBinary(x *BinaryExpr, sc *Scope) (Value, error) {
	left, err := in.evalExpr(x.Left, sc)
	if err != nil {
		return nil, err
	}
	right, err := in.evalExpr(x.Right, sc)
	if err != nil {
		return nil, err
	}
	switch x.Op {
	case "+":
		if ls, ok := left.(string); ok {
			return ls + toDisplayString(right), nil
		}
		if rs, ok := right.(string); ok {
			return toDisplayString(left) + rs, nil
		}
		return toNumber(left) + toNumber(right), nil
	case "-":
		return toNumber(left) - toNumber(right), nil
	case "*":
		return toNumber(left) * toNumber(right), nil
	case "/":
		return toNumber(left) / toNumber(right), nil
	case "%":
		li, ri := int64(toNumber(left)), int64(toNumber(right))
		if ri == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return float64(li % ri), nil
	case "==", "===":
		return valuesEqual(left, right), nil
	case "!=", "!==":
		return !valuesEqual(left, right), nil
	case "<":
		return toNumber(left) < toNumber(right), nil
	case ">":
		return toNumber(left) > toNumber(right), nil
	case "<=":
		return toNumber(left) <= toNumber(right), nil
	case ">=":
		return toNumber(left) >= toNumber(right), nil
	default:
		return nil, fmt.Errorf("unsupported operator %q", x.Op)
	}
}

func valuesEqual(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return as == bs
	}
	return toNumber(a) == toNumber(b)
}

// evalCall dispatches console.log and Array.push specially, and otherwise
// resolves and invokes a Function value.
func (in *Interp) evalCall(x *CallExpr, sc *Scope) (Value, error) {
	if id, ok := x.Callee.(*Ident); ok && id.Name == "Error" {
		var msg string
		if len(x.Args) > 0 {
			v, err := in.evalExpr(x.Args[0], sc)
			if err != nil {
				return nil, err
			}
			msg = toDisplayString(v)
		}
		return &errorObject{Message: msg}, nil
	}

	if m, ok := x.Callee.(*MemberExpr); ok && !m.Computed {
		if obj, ok := m.Object.(*Ident); ok && obj.Name == "console" {
			if prop, ok := m.Property.(*Ident); ok && prop.Name == "log" {
				return in.evalConsoleLog(x.Args, sc)
			}
		}
		if obj, ok := m.Object.(*Ident); ok {
			if prop, ok := m.Property.(*Ident); ok && prop.Name == "push" {
				return in.evalArrayPush(obj, x.Args, sc)
			}
		}
	}

	callee, err := in.evalExpr(x.Callee, sc)
	if err != nil {
		return nil, err
	}
	fn, ok := callee.(*Function)
	if !ok {
		return nil, fmt.Errorf("value is not callable")
	}
	args := make([]Value, len(x.Args))
	for i, a := range x.Args {
		v, err := in.evalExpr(a, sc)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return in.callFunction(fn, args)
}

func (in *Interp) evalArrayPush(obj *Ident, argExprs []Expr, sc *Scope) (Value, error) {
	cur, ok := sc.Get(obj.Name)
	if !ok {
		return nil, fmt.Errorf("%s is not defined", obj.Name)
	}
	arr, ok := cur.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%s.push called on a non-array value", obj.Name)
	}
	for _, a := range argExprs {
		v, err := in.evalExpr(a, sc)
		if err != nil {
			return nil, err
		}
		arr = append(arr, v)
	}
	sc.Set(obj.Name, arr)
	return float64(len(arr)), nil
}

// evalConsoleLog joins string-coerced scalar arguments and JSON-serialized
// non-scalar arguments with single spaces.
func (in *Interp) evalConsoleLog(argExprs []Expr, sc *Scope) (Value, error) {
	parts := make([]string, len(argExprs))
	for i, a := range argExprs {
		v, err := in.evalExpr(a, sc)
		if err != nil {
			return nil, err
		}
		if isScalar(v) {
			parts[i] = toDisplayString(v)
		} else {
			s, err := traceapi.MarshalLocals(toLoggableJSON(v, map[uintptr]bool{}))
			if err != nil {
				return nil, err
			}
			parts[i] = s
		}
	}
	in.appendEvent(traceapi.Log(strings.Join(parts, " ")))
	return nil, nil
}

func (in *Interp) callFunction(fn *Function, args []Value) (Value, error) {
	in.callStack = append(in.callStack, fn.Name)
	defer func() { in.callStack = in.callStack[:len(in.callStack)-1] }()

	scope := newChildScope(fn.Closure)
	for i, p := range fn.Params {
		if i < len(args) {
			scope.Define(p, args[i])
		} else {
			scope.Define(p, nil)
		}
	}
	in.hoistFunctions(fn.Body.Body, scope)
	err := in.execStmts(fn.Body.Body, scope)
	if rs, ok := err.(returnSignal); ok {
		return rs.value, nil
	}
	if err != nil {
		return nil, err
	}
	return nil, nil
}
