// Package langb spawns the external Lang-B tracer subprocess and translates
// its stdout contract into a traceapi.TraceDocument.
package langb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vru6650/tracehost/internal/idgen"
	"github.com/vru6650/tracehost/internal/traceapi"
	"github.com/vru6650/tracehost/pkg/logflags"
)

// DefaultTimeout is the wall-clock budget for the tracer subprocess used
// when NewRunner is given a non-positive timeoutSec.
const DefaultTimeout = 5 * time.Second

// Runner holds the fixed collaborator details needed to spawn the tracer
// subprocess: its path, the temp directory to stage sources in, the file
// extension the tracer expects, and its wall-clock timeout.
type Runner struct {
	TracerPath string
	TempDir    string
	LangBExt   string
	Timeout    time.Duration
}

// NewRunner ensures tempDir exists and returns a Runner ready to execute
// sources against tracerPath. A non-positive timeoutSec falls back to
// DefaultTimeout.
func NewRunner(tracerPath, tempDir, langBExt string, timeoutSec int) (*Runner, error) {
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("langb: creating temp dir: %w", err)
	}
	timeout := DefaultTimeout
	if timeoutSec > 0 {
		timeout = time.Duration(timeoutSec) * time.Second
	}
	return &Runner{TracerPath: tracerPath, TempDir: tempDir, LangBExt: langBExt, Timeout: timeout}, nil
}

// tracerOutput mirrors the JSON shape the tracer subprocess writes to
// stdout.
type tracerOutput struct {
	Status string               `json:"status"`
	Traces []traceapi.TraceEvent `json:"traces"`
	Stdout string               `json:"stdout"`
	Error  string               `json:"error"`
}

// Run stages source into a fresh temp file, spawns the tracer with an
// optional breakpoints argument, and parses its stdout into a
// TraceDocument. Once written, the temp file is removed on every exit path;
// removal is attempted once and a failure is only logged (see removeQuiet).
func (r *Runner) Run(ctx context.Context, source string, breakpoints []uint32) traceapi.TraceDocument {
	log := logflags.TracerLogger()

	sourcePath := filepath.Join(r.TempDir, idgen.New()+"."+r.LangBExt)
	if err := os.WriteFile(sourcePath, []byte(source), 0o644); err != nil {
		log.WithError(err).Error("could not stage lang-b source file")
		return traceapi.TraceDocument{Status: traceapi.StatusError, Error: err.Error()}
	}
	defer removeQuiet(sourcePath)

	args := []string{sourcePath}
	if len(breakpoints) > 0 {
		bps, err := json.Marshal(breakpoints)
		if err != nil {
			return traceapi.TraceDocument{Status: traceapi.StatusError, Error: err.Error()}
		}
		args = append(args, string(bps))
	}

	runCtx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, r.TracerPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()

	// Exit code is not interpreted: a tracer that exits non-zero but still
	// writes a well-formed document to stdout is a success, not a
	// subprocess error, so stdout is parsed before err is consulted at all.
	var parsed tracerOutput
	if jsonErr := json.Unmarshal(out, &parsed); jsonErr == nil {
		status := traceapi.StatusOK
		if parsed.Status == string(traceapi.StatusError) {
			status = traceapi.StatusError
		}
		return traceapi.TraceDocument{
			Events: parsed.Traces,
			Stdout: parsed.Stdout,
			Status: status,
			Error:  parsed.Error,
		}
	}

	if runCtx.Err() == context.DeadlineExceeded {
		log.WithFields(logrus.Fields{"tracerPath": r.TracerPath}).Warn("lang-b tracer timed out")
		return traceapi.TraceDocument{Status: traceapi.StatusError, Error: "timeout"}
	}
	if err != nil {
		msg := err.Error()
		if stderr.Len() > 0 {
			msg = stderr.String()
		}
		log.WithError(err).WithFields(logrus.Fields{"stderr": stderr.String()}).Debug("lang-b tracer exited with an error")
		return traceapi.TraceDocument{Status: traceapi.StatusError, Error: msg}
	}

	log.Debug("lang-b tracer stdout was not valid JSON")
	return traceapi.TraceDocument{Status: traceapi.StatusError, Error: string(out)}
}

// removeQuiet mirrors pkg/gobuild.Remove: best-effort cleanup, diagnostic
// only on failure, errors never surfaced to the caller.
func removeQuiet(path string) {
	if err := os.Remove(path); err != nil {
		logflags.TracerLogger().WithError(err).Debug("could not remove lang-b temp source file")
	}
}
