package dapbridge

import (
	"testing"

	"github.com/google/go-dap"

	"github.com/vru6650/tracehost/internal/traceapi"
)

func TestTranslateStepProducesStoppedEvent(t *testing.T) {
	ev := traceapi.Step(3, nil, []string{"main"})
	msg := Translate(&ev, false)
	stopped, ok := msg.(*dap.StoppedEvent)
	if !ok {
		t.Fatalf("expected *dap.StoppedEvent, got %T", msg)
	}
	if stopped.Body.Reason != "step" {
		t.Errorf("expected reason %q, got %q", "step", stopped.Body.Reason)
	}
	if stopped.Body.ThreadId != StoppedThread() {
		t.Errorf("expected thread id %d, got %d", StoppedThread(), stopped.Body.ThreadId)
	}
}

func TestTranslateLogProducesOutputEvent(t *testing.T) {
	ev := traceapi.Log("hello")
	msg := Translate(&ev, false)
	out, ok := msg.(*dap.OutputEvent)
	if !ok {
		t.Fatalf("expected *dap.OutputEvent, got %T", msg)
	}
	if out.Body.Output != "hello\n" {
		t.Errorf("expected output %q, got %q", "hello\n", out.Body.Output)
	}
	if out.Body.Category != "stdout" {
		t.Errorf("expected category stdout, got %q", out.Body.Category)
	}
}

func TestTranslateErrorProducesStoppedExceptionEvent(t *testing.T) {
	ev := traceapi.Error("boom")
	msg := Translate(&ev, false)
	stopped, ok := msg.(*dap.StoppedEvent)
	if !ok {
		t.Fatalf("expected *dap.StoppedEvent, got %T", msg)
	}
	if stopped.Body.Reason != "exception" {
		t.Errorf("expected reason exception, got %q", stopped.Body.Reason)
	}
	if stopped.Body.Text != "boom" {
		t.Errorf("expected text %q, got %q", "boom", stopped.Body.Text)
	}
}

func TestTranslateNilEventProducesTerminatedEvent(t *testing.T) {
	msg := Translate(nil, true)
	if _, ok := msg.(*dap.TerminatedEvent); !ok {
		t.Fatalf("expected *dap.TerminatedEvent, got %T", msg)
	}
}
