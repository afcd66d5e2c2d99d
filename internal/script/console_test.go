package script

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vru6650/tracehost/internal/langb"
	"github.com/vru6650/tracehost/internal/session"
)

func writeFakeTracer(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "faketracer.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("writing fake tracer: %v", err)
	}
	return path
}

func newTestConsole(t *testing.T, tracerBody string) (*Console, *bytes.Buffer) {
	t.Helper()
	tracer := writeFakeTracer(t, tracerBody)
	runner, err := langb.NewRunner(tracer, t.TempDir(), "py", 0)
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	var out bytes.Buffer
	return NewConsole(runner, session.NewStore(), &out), &out
}

func TestStartThenStepReportsFirstLine(t *testing.T) {
	c, _ := newTestConsole(t, `cat <<'EOF'
{"status":"ok","traces":[
  {"event":"step","line":1,"callStack":["main"]},
  {"event":"step","line":2,"callStack":["main"]}
]}
EOF
`)
	if _, err := c.Eval(context.Background(), "<test>", `start("print(1)")`); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	out, err := c.Eval(context.Background(), "<test>", `step()`)
	if err != nil {
		t.Fatalf("step failed: %v", err)
	}
	if out == "" {
		t.Fatalf("expected a non-empty step result")
	}
	if !strings.Contains(out, `"line": 1`) {
		t.Errorf("expected the first step to report line 1, got %q", out)
	}
}

func TestCommandBeforeStartFails(t *testing.T) {
	c, _ := newTestConsole(t, `echo '{"status":"ok","traces":[]}'`)
	if _, err := c.Eval(context.Background(), "<test>", `step()`); err == nil {
		t.Fatalf("expected an error calling step() before start()")
	}
}

func TestSetbpReturnsBreakpointList(t *testing.T) {
	c, _ := newTestConsole(t, `cat <<'EOF'
{"status":"ok","traces":[{"event":"step","line":1}]}
EOF
`)
	if _, err := c.Eval(context.Background(), "<test>", `start("x")`); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	out, err := c.Eval(context.Background(), "<test>", `setbp(1)`)
	if err != nil {
		t.Fatalf("setbp failed: %v", err)
	}
	if out != "[1]" {
		t.Errorf("expected breakpoint list [1], got %q", out)
	}
}

func TestPrintIsRoutedToConsoleOutput(t *testing.T) {
	c, out := newTestConsole(t, `echo '{"status":"ok","traces":[]}'`)
	if _, err := c.Eval(context.Background(), "<test>", `print("hello from script")`); err != nil {
		t.Fatalf("eval failed: %v", err)
	}
	if out.String() != "hello from script\n" {
		t.Errorf("expected print output to reach the console writer, got %q", out.String())
	}
}
