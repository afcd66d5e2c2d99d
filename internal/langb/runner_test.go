package langb

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vru6650/tracehost/internal/traceapi"
)

// writeFakeTracer writes a small shell script standing in for the real
// pythonTracer.py collaborator, and returns its path.
func writeFakeTracer(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "faketracer.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("writing fake tracer: %v", err)
	}
	return path
}

// TestRunHappyPath covers scenario S3: a well-formed tracer response
// produces an ok document with the expected step count and call stacks.
func TestRunHappyPath(t *testing.T) {
	tracer := writeFakeTracer(t, `cat <<'EOF'
{"status":"ok","stdout":"hello\n","traces":[
  {"event":"step","line":1,"callStack":["main"]},
  {"event":"step","line":2,"callStack":["main","greet"]},
  {"event":"log","value":"hello"}
]}
EOF
`)
	r, err := NewRunner(tracer, t.TempDir(), "py", 0)
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	doc := r.Run(context.Background(), "print('hello')\n", nil)
	if doc.HasError() {
		t.Fatalf("unexpected error: %s", doc.ErrorMessage())
	}
	if doc.Stdout != "hello\n" {
		t.Errorf("expected stdout %q, got %q", "hello\n", doc.Stdout)
	}
	steps := 0
	for _, ev := range doc.Events {
		if ev.Event == traceapi.KindStep {
			steps++
			if ev.CallStack == nil {
				t.Errorf("expected step event to carry a callStack")
			}
		}
	}
	if steps < 2 {
		t.Errorf("expected at least two step events, got %d", steps)
	}
}

func TestRunTracerReportedError(t *testing.T) {
	tracer := writeFakeTracer(t, `cat <<'EOF'
{"status":"error","stdout":"","traces":[],"error":"NameError: x is not defined"}
EOF
`)
	r, err := NewRunner(tracer, t.TempDir(), "py", 0)
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	doc := r.Run(context.Background(), "print(x)\n", nil)
	if !doc.HasError() {
		t.Fatalf("expected the document to report an error")
	}
	if doc.Error != "NameError: x is not defined" {
		t.Errorf("expected the tracer's error message to be forwarded, got %q", doc.Error)
	}
}

// TestRunIgnoresNonZeroExitWhenStdoutIsWellFormed covers the "exit code is
// not interpreted" contract: a tracer that exits non-zero but still emits a
// valid document on stdout is not reported as a subprocess error.
func TestRunIgnoresNonZeroExitWhenStdoutIsWellFormed(t *testing.T) {
	tracer := writeFakeTracer(t, `cat <<'EOF'
{"status":"ok","stdout":"hi\n","traces":[]}
EOF
exit 7
`)
	r, err := NewRunner(tracer, t.TempDir(), "py", 0)
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	doc := r.Run(context.Background(), "print('hi')\n", nil)
	if doc.HasError() {
		t.Fatalf("expected a non-zero exit with well-formed stdout to be reported as success, got error: %s", doc.ErrorMessage())
	}
	if doc.Stdout != "hi\n" {
		t.Errorf("expected stdout %q, got %q", "hi\n", doc.Stdout)
	}
}

func TestRunTimeout(t *testing.T) {
	tracer := writeFakeTracer(t, "sleep 30\n")
	r, err := NewRunner(tracer, t.TempDir(), "py", 1)
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	doc := r.Run(context.Background(), "while True: pass\n", nil)
	if !doc.HasError() {
		t.Fatalf("expected a timeout to be reported as an error")
	}
	if doc.Error != "timeout" {
		t.Errorf("expected error message %q, got %q", "timeout", doc.Error)
	}
}

func TestNewRunnerUsesConfiguredTimeout(t *testing.T) {
	r, err := NewRunner("/bin/true", t.TempDir(), "py", 30)
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	if r.Timeout != 30*time.Second {
		t.Fatalf("expected a configured timeout of 30s, got %v", r.Timeout)
	}
}

func TestNewRunnerFallsBackToDefaultTimeout(t *testing.T) {
	r, err := NewRunner("/bin/true", t.TempDir(), "py", 0)
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	if r.Timeout != DefaultTimeout {
		t.Fatalf("expected the default timeout for a non-positive timeoutSec, got %v", r.Timeout)
	}
}

func TestRunBreakpointsArgument(t *testing.T) {
	tracer := writeFakeTracer(t, `echo "{\"status\":\"ok\",\"stdout\":\"\",\"traces\":[],\"receivedArgs\":$#}"
if [ "$#" -lt 2 ]; then
  echo "expected a breakpoints argument"
fi
`)
	r, err := NewRunner(tracer, t.TempDir(), "py", 0)
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	doc := r.Run(context.Background(), "print(1)\n", []uint32{3, 7})
	if doc.HasError() {
		t.Fatalf("unexpected error: %s", doc.ErrorMessage())
	}
}

func TestRunCleansUpTempFile(t *testing.T) {
	dir := t.TempDir()
	tracer := writeFakeTracer(t, `echo '{"status":"ok","stdout":"","traces":[]}'`)
	r, err := NewRunner(tracer, dir, "py", 0)
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	r.Run(context.Background(), "print(1)\n", nil)
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading temp dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected the staged source file to be removed, found %d entries", len(entries))
	}
}
