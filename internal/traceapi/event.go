// Package traceapi defines the language-neutral trace event taxonomy shared
// by the Lang-A evaluator and the Lang-B tracer runner.
package traceapi

import "encoding/json"

// Kind discriminates the variants of TraceEvent.
type Kind string

const (
	KindStep  Kind = "step"
	KindLog   Kind = "log"
	KindError Kind = "error"
)

// Value is a language-neutral JSON-compatible value: nil, bool, float64,
// string, or an array/object. Arrays and objects decoded by encoding/json
// (such as Lang-B trace locals) are []interface{} and
// map[string]interface{}; values built in Go may also be []Value or
// map[string]Value.
type Value interface{}

// Locals is a plain map from variable name to value. It does not preserve
// insertion order: encoding/json writes its keys in sorted order. Key order
// is not semantically load-bearing.
type Locals map[string]Value

// TraceEvent is a tagged variant over Step, Log, and Error.
//
// Event is always set; the payload fields present depend on Event. This
// mirrors service/api's flat, JSON-tag-driven struct style rather than a
// Go-native sum type, since the wire format is a single flat JSON object
// with an "event" discriminator.
type TraceEvent struct {
	Event     Kind    `json:"event"`
	Line      uint32  `json:"line,omitempty"`
	Locals    Locals  `json:"locals,omitempty"`
	CallStack []string `json:"callStack,omitempty"`
	Value     string  `json:"value,omitempty"`
	Message   string  `json:"message,omitempty"`
}

// Step returns a new Step event.
func Step(line uint32, locals Locals, callStack []string) TraceEvent {
	return TraceEvent{Event: KindStep, Line: line, Locals: locals, CallStack: callStack}
}

// Log returns a new Log event.
func Log(value string) TraceEvent {
	return TraceEvent{Event: KindLog, Value: value}
}

// Error returns a new Error event.
func Error(message string) TraceEvent {
	return TraceEvent{Event: KindError, Message: message}
}

// Depth returns the call-stack depth of the event, treating a missing
// callStack as depth 0.
func (e TraceEvent) Depth() int {
	return len(e.CallStack)
}

// Status is the top-level outcome of executing a program under either
// backend.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// TraceDocument is the ordered result of executing an instrumented program.
// Stdout is only meaningful for Lang-B; Lang-A observes console output as
// Log events instead.
type TraceDocument struct {
	Events []TraceEvent `json:"traces"`
	Stdout string       `json:"stdout,omitempty"`
	Status Status       `json:"status"`
	Error  string       `json:"error,omitempty"`
}

// HasError reports whether the document terminated in an error state,
// either via its top-level Status or a trailing Error event.
func (d TraceDocument) HasError() bool {
	if d.Status == StatusError {
		return true
	}
	for _, ev := range d.Events {
		if ev.Event == KindError {
			return true
		}
	}
	return false
}

// ErrorMessage returns the most relevant error message for the document, or
// "" if the document has no error.
func (d TraceDocument) ErrorMessage() string {
	if d.Error != "" {
		return d.Error
	}
	for i := len(d.Events) - 1; i >= 0; i-- {
		if d.Events[i].Event == KindError {
			return d.Events[i].Message
		}
	}
	return ""
}

// MarshalLocals renders a value as its JSON serialization, used by the
// console shim for non-scalar arguments.
func MarshalLocals(v Value) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
