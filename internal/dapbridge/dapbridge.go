// Package dapbridge translates tracehost's trace events into Debug Adapter
// Protocol messages, grounded on service/dap.Server's event construction
// (newEvent, handleStop, handleStopOnError).
package dapbridge

import (
	"fmt"

	"github.com/google/go-dap"

	"github.com/vru6650/tracehost/internal/traceapi"
)

// threadID is the only thread tracehost ever reports; Lang-A and Lang-B
// programs are single-threaded from the DAP client's point of view.
const threadID = 1

func newEvent(event string) *dap.Event {
	return &dap.Event{
		ProtocolMessage: dap.ProtocolMessage{Seq: 0, Type: "event"},
		Event:           event,
	}
}

// Translate maps a single Handle result to the DAP event a client expects
// to see next: a Step event becomes "stopped" (reason "step"), a Log event
// becomes "output", an Error event becomes "stopped" (reason "exception",
// carrying the message), and a nil event (an empty trace) becomes
// "terminated". done is not consulted: the last event of a non-empty trace
// is translated like any other. The stop/error-stop/exit split mirrors
// service/dap.Server.handleStop and handleStopOnError.
func Translate(ev *traceapi.TraceEvent, done bool) dap.Message {
	if ev == nil {
		return &dap.TerminatedEvent{Event: *newEvent("terminated")}
	}

	switch ev.Event {
	case traceapi.KindStep:
		e := &dap.StoppedEvent{Event: *newEvent("stopped")}
		e.Body.Reason = "step"
		e.Body.ThreadId = threadID
		e.Body.AllThreadsStopped = true
		return e

	case traceapi.KindLog:
		return &dap.OutputEvent{
			Event: *newEvent("output"),
			Body: dap.OutputEventBody{
				Output:   ev.Value + "\n",
				Category: "stdout",
			},
		}

	case traceapi.KindError:
		e := &dap.StoppedEvent{Event: *newEvent("stopped")}
		e.Body.Reason = "exception"
		e.Body.ThreadId = threadID
		e.Body.AllThreadsStopped = true
		e.Body.Text = ev.Message
		return e

	default:
		return &dap.OutputEvent{
			Event: *newEvent("output"),
			Body: dap.OutputEventBody{
				Output:   fmt.Sprintf("unrecognized trace event %q\n", ev.Event),
				Category: "stderr",
			},
		}
	}
}

// StoppedThread returns the thread ID reported by every StoppedEvent
// tracehost emits. Exposed so a future DAP request handler (StackTrace,
// Scopes, Variables) can address the same thread without re-deriving it.
func StoppedThread() int {
	return threadID
}
