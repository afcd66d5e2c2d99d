package langa

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/vru6650/tracehost/internal/traceapi"
)

// Value is the dynamic runtime representation used by the evaluator: nil,
// bool, float64, string, []interface{}, map[string]interface{}, *Function,
// or *errorObject. It is convertible to traceapi.Value for reporting.
type Value = interface{}

// Function is a callable Lang-A value: either a named declaration or an
// anonymous literal, closing over the scope in which it was defined.
type Function struct {
	Name    string
	Params  []string
	Body    *BlockStmt
	Closure *Scope
}

// errorObject is the value produced by the builtin Error(message)
// constructor, invoked either bare or via "new" (e.g. "throw new
// Error(\"boom\")"). Lang-A has no class system, so this is the one
// builtin constructor the evaluator recognizes by name.
type errorObject struct {
	Message string
}

func isTruthy(v Value) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		return x != ""
	default:
		return true
	}
}

func toNumber(v Value) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case bool:
		if x {
			return 1
		}
		return 0
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0
		}
		return f
	case nil:
		return 0
	default:
		return 0
	}
}

// toDisplayString is the string-coercion of each argument used by
// console.log for scalars.
func toDisplayString(v Value) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case bool:
		if x {
			return "true"
		}
		return "false"
	case float64:
		if x == float64(int64(x)) {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'g', -1, 64)
	case string:
		return x
	case *Function:
		return fmt.Sprintf("[Function: %s]", x.Name)
	case *errorObject:
		return x.Message
	default:
		return fmt.Sprintf("%v", x)
	}
}

// isScalar reports whether v is console.log-formatted via string coercion
// rather than JSON serialization.
func isScalar(v Value) bool {
	switch v.(type) {
	case nil, bool, float64, string, *errorObject:
		return true
	default:
		return false
	}
}

// toReportValue converts a single evaluator Value into a traceapi.Value
// suitable for a Step event's locals. Per the shallow-clone contract,
// arrays and objects are reported as an opaque descriptor rather than
// walked, so a cyclic object (e.g. "let a = {}; a.self = a;") is
// "referenced, not expanded": neither this function nor the later JSON
// encoding of the resulting TraceEvent, which has no cycle protection for
// plain maps and slices, ever walks into it.
func toReportValue(v Value) traceapi.Value {
	switch x := v.(type) {
	case *Function:
		return fmt.Sprintf("[Function: %s]", x.Name)
	case []interface{}:
		return fmt.Sprintf("[Array(%d)]", len(x))
	case map[string]interface{}:
		return fmt.Sprintf("[Object(%d)]", len(x))
	default:
		return v
	}
}

// shallowCloneSandbox copies the sandbox map's own top-level keys; nested
// arrays/objects are reported as a descriptor rather than expanded, so
// cyclic objects remain referenced rather than expanded.
func shallowCloneSandbox(sandbox map[string]Value) traceapi.Locals {
	out := make(traceapi.Locals, len(sandbox))
	for k, v := range sandbox {
		out[k] = toReportValue(v)
	}
	return out
}

// toLoggableJSON renders v as a JSON-serializable value for console.log's
// non-scalar argument path ("object-like values rendered as their JSON
// serialization"). Composite values are walked and fully expanded, unlike
// toReportValue, but seen tracks the composite values already on the
// current path by their backing-array/bucket pointer, so a cyclic object
// reports "[Circular]" at the repeated reference instead of recursing
// forever; a value reachable by more than one non-cyclic path is still
// expanded in full at each occurrence.
func toLoggableJSON(v Value, seen map[uintptr]bool) traceapi.Value {
	switch x := v.(type) {
	case *Function:
		return fmt.Sprintf("[Function: %s]", x.Name)
	case []interface{}:
		ptr := reflect.ValueOf(x).Pointer()
		if seen[ptr] {
			return "[Circular]"
		}
		seen[ptr] = true
		out := make([]traceapi.Value, len(x))
		for i, el := range x {
			out[i] = toLoggableJSON(el, seen)
		}
		delete(seen, ptr)
		return out
	case map[string]interface{}:
		ptr := reflect.ValueOf(x).Pointer()
		if seen[ptr] {
			return "[Circular]"
		}
		seen[ptr] = true
		out := make(map[string]traceapi.Value, len(x))
		for k, val := range x {
			out[k] = toLoggableJSON(val, seen)
		}
		delete(seen, ptr)
		return out
	default:
		return v
	}
}
