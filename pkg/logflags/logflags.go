// Package logflags configures per-subsystem structured logging for
// tracehost, adapted from delve's pkg/logflags: each subsystem is a boolean
// flag gating a logrus.Entry between DebugLevel and PanicLevel, so a
// disabled subsystem's logging calls cost nothing observable.
package logflags

import (
	"io"
	"log"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

var (
	instrumenter = false
	evaluator    = false
	tracer       = false
	session      = false
	httpLog      = false
)

func makeLogger(flag bool, fields logrus.Fields) *logrus.Entry {
	base := logrus.New()
	base.Out = Writer()
	logger := base.WithFields(fields)
	logger.Logger.Level = logrus.DebugLevel
	if !flag {
		logger.Logger.Level = logrus.PanicLevel
	}
	return logger
}

// Instrumenter returns true if internal/langa's instrumenter should log.
func Instrumenter() bool { return instrumenter }

// InstrumenterLogger returns a logger for the Lang-A instrumenter.
func InstrumenterLogger() *logrus.Entry {
	return makeLogger(instrumenter, logrus.Fields{"layer": "instrumenter"})
}

// Evaluator returns true if internal/langa's evaluator should log.
func Evaluator() bool { return evaluator }

// EvaluatorLogger returns a logger for the Lang-A evaluator.
func EvaluatorLogger() *logrus.Entry {
	return makeLogger(evaluator, logrus.Fields{"layer": "evaluator"})
}

// Tracer returns true if internal/langb's tracer runner should log.
func Tracer() bool { return tracer }

// TracerLogger returns a logger for the Lang-B tracer runner.
func TracerLogger() *logrus.Entry {
	return makeLogger(tracer, logrus.Fields{"layer": "tracer"})
}

// Session returns true if internal/session should log.
func Session() bool { return session }

// SessionLogger returns a logger for the debug session store/interpreter.
func SessionLogger() *logrus.Entry {
	return makeLogger(session, logrus.Fields{"layer": "session"})
}

// HTTP returns true if internal/httpapi should log.
func HTTP() bool { return httpLog }

// HTTPLogger returns a logger for the HTTP boundary.
func HTTPLogger() *logrus.Entry {
	return makeLogger(httpLog, logrus.Fields{"layer": "http"})
}

// Setup configures the package-level flags from a comma-separated flag
// string, mirroring delve's Setup(logFlag bool, logstr string).
func Setup(logEnabled bool, logstr string) {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	if !logEnabled {
		log.SetOutput(io.Discard)
		return
	}
	if logstr == "" {
		logstr = "instrumenter,evaluator,tracer,session,http"
	}
	for _, name := range strings.Split(logstr, ",") {
		switch strings.TrimSpace(name) {
		case "instrumenter":
			instrumenter = true
		case "evaluator":
			evaluator = true
		case "tracer":
			tracer = true
		case "session":
			session = true
		case "http":
			httpLog = true
		}
	}
}

// Writer returns stderr wrapped for ANSI color support when it is a
// terminal, following pkg/terminal's getColorableWriter split between
// *nix (stderr is already ANSI-capable) and Windows (needs go-colorable's
// translation layer or a modern console mode).
func Writer() io.Writer {
	if !isatty.IsTerminal(os.Stderr.Fd()) {
		return os.Stderr
	}
	return colorableWriter()
}
