package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/vru6650/tracehost/internal/tconfig"
	"github.com/vru6650/tracehost/pkg/logflags"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := tconfig.Defaults()
	cfg.TempDir = t.TempDir()
	cfg.TracerPath = "/bin/echo" // unused by lang-a tests; NewServer does not check it
	s, err := NewServer(&cfg)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	return httptest.NewServer(s.container)
}

// newTestServerWithTracer is newTestServer, but TracerPath points at a fake
// tracer script producing body on stdout, for the /debug/start tests.
func newTestServerWithTracer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	dir := t.TempDir()
	tracerPath := filepath.Join(dir, "faketracer.sh")
	if err := os.WriteFile(tracerPath, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("writing fake tracer: %v", err)
	}
	cfg := tconfig.Defaults()
	cfg.TempDir = t.TempDir()
	cfg.TracerPath = tracerPath
	s, err := NewServer(&cfg)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	return httptest.NewServer(s.container)
}

func postJSON(t *testing.T, url string, body interface{}, out interface{}) *http.Response {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding response from %s: %v", url, err)
		}
	}
	return resp
}

func TestExecuteLangAHappyPath(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	var out ExecuteResponse
	resp := postJSON(t, srv.URL+"/execute", ExecuteRequest{Language: "lang-a", Code: "let x = 1;\nconsole.log(x);\n"}, &out)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if out.Error {
		t.Fatalf("unexpected error: %s", out.Message)
	}
	if len(out.Events) == 0 {
		t.Fatalf("expected at least one event")
	}
}

func TestExecuteUnsupportedLanguage(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/execute", ExecuteRequest{Language: "cobol", Code: "x"}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestExecuteMissingFields(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/execute", ExecuteRequest{Language: "lang-a"}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestExecuteLangARuntimeErrorIsHTTP200(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	var out ExecuteResponse
	resp := postJSON(t, srv.URL+"/execute", ExecuteRequest{Language: "lang-a", Code: "throw new Error(\"boom\");\n"}, &out)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected HTTP 200 even for a user code runtime error, got %d", resp.StatusCode)
	}
	if !out.Error {
		t.Fatalf("expected error=true in the payload")
	}
}

func TestDebugCommandUnknownSessionIs404(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/debug/command", DebugCommandRequest{SessionID: "nope", Command: "step"}, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

// TestDebugStartSeedsBreakpoints covers scenario S4: starting a session
// with breakpoints set, then issuing continue with no prior setBreakpoint
// call, stops at the seeded line instead of running to the end.
func TestDebugStartSeedsBreakpoints(t *testing.T) {
	srv := newTestServerWithTracer(t, `cat <<'EOF'
{"status":"ok","stdout":"","traces":[
  {"event":"step","line":3},
  {"event":"step","line":4},
  {"event":"step","line":5},
  {"event":"step","line":6}
]}
EOF
`)
	defer srv.Close()

	var start DebugStartResponse
	postJSON(t, srv.URL+"/debug/start", DebugStartRequest{Language: "lang-b", Code: "x = 1\n", Breakpoints: []uint32{5}}, &start)
	if start.Error {
		t.Fatalf("unexpected error starting session: %s", start.Message)
	}

	var cmd DebugCommandResponse
	postJSON(t, srv.URL+"/debug/command", DebugCommandRequest{SessionID: start.SessionID, Command: "continue"}, &cmd)
	if cmd.Done {
		t.Fatalf("expected continue to stop before the end of the trace, got done=true")
	}
	if cmd.Event == nil || cmd.Event.Line != 5 {
		t.Fatalf("expected continue to stop at the breakpoint seeded at start (line 5), got %+v", cmd.Event)
	}
}

// TestDebugCommandDapRendering covers the ?dap=1 query parameter: a
// stopped-at-a-step command response is rendered as a DAP StoppedEvent
// instead of the plain DebugCommandResponse envelope.
func TestDebugCommandDapRendering(t *testing.T) {
	srv := newTestServerWithTracer(t, `cat <<'EOF'
{"status":"ok","stdout":"","traces":[
  {"event":"step","line":1},
  {"event":"step","line":2}
]}
EOF
`)
	defer srv.Close()

	var start DebugStartResponse
	postJSON(t, srv.URL+"/debug/start", DebugStartRequest{Language: "lang-b", Code: "x = 1\n"}, &start)
	if start.Error {
		t.Fatalf("unexpected error starting session: %s", start.Message)
	}

	var dapEvent map[string]interface{}
	resp := postJSON(t, srv.URL+"/debug/command?dap=1", DebugCommandRequest{SessionID: start.SessionID, Command: "step"}, &dapEvent)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if dapEvent["event"] != "stopped" {
		t.Fatalf("expected a DAP stopped event, got %+v", dapEvent)
	}
	body, ok := dapEvent["body"].(map[string]interface{})
	if !ok || body["reason"] != "step" {
		t.Errorf("expected body.reason %q, got %+v", "step", dapEvent["body"])
	}
}

// TestStatusReportsEnabledSubsystems covers GET /status: it reflects
// whatever pkg/logflags.Setup last configured, not just zero values.
func TestStatusReportsEnabledSubsystems(t *testing.T) {
	logflags.Setup(true, "session,http")
	srv := newTestServer(t)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decoding /status response: %v", err)
	}
	if !out.Session || !out.HTTP {
		t.Errorf("expected session and http to be reported enabled, got %+v", out)
	}
	if out.Instrumenter || out.Evaluator || out.Tracer {
		t.Errorf("expected subsystems not named in Setup to be reported disabled, got %+v", out)
	}
}

func TestDebugStartRejectsNonLangB(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/debug/start", DebugStartRequest{Language: "lang-a", Code: "let x = 1;"}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
