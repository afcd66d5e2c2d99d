// Command tracehost runs the trace-and-debug HTTP service described in
// SPEC_FULL.md, built the way cmd/dlv assembles its command tree: a cobra
// root command with persistent logging flags and one subcommand per mode
// of operation.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	sys "golang.org/x/sys/unix"

	"github.com/vru6650/tracehost/internal/httpapi"
	"github.com/vru6650/tracehost/internal/tconfig"
	"github.com/vru6650/tracehost/pkg/logflags"
	"github.com/vru6650/tracehost/pkg/version"
)

var (
	logEnabled bool
	logOutput  string
	addr       string
)

func New() *cobra.Command {
	rootCommand := &cobra.Command{
		Use:   "tracehost",
		Short: "tracehost is an instrumented execution and debugging service.",
		Long: `tracehost runs untrusted Lang-A and Lang-B programs under an
instrumented evaluator, streams their step-by-step trace, and exposes a
debug-session protocol (step/next/out/continue/breakpoints) over HTTP.`,
	}

	rootCommand.PersistentFlags().StringVar(&addr, "listen", "", "override the configured listen address (host:port)")
	rootCommand.PersistentFlags().BoolVar(&logEnabled, "log", false, "enable debug logging")
	rootCommand.PersistentFlags().StringVar(&logOutput, "log-output", "", `comma separated list of components to log: instrumenter, evaluator, tracer, session, http (default: all)`)

	serveCommand := &cobra.Command{
		Use:   "serve",
		Short: "Starts the tracehost HTTP server.",
		RunE:  runServe,
	}
	rootCommand.AddCommand(serveCommand)

	versionCommand := &cobra.Command{
		Use:   "version",
		Short: "Prints version.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("tracehost\n%s\n", version.TracehostVersion)
		},
	}
	rootCommand.AddCommand(versionCommand)

	scriptCommand := &cobra.Command{
		Use:   "script [file]",
		Short: "Runs a Starlark debug-session script, or an interactive script REPL if no file is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			cfg := tconfig.LoadConfig()
			applyOverrides(cfg)
			return runScript(cfg, path)
		},
	}
	rootCommand.AddCommand(scriptCommand)

	rootCommand.DisableAutoGenTag = true
	return rootCommand
}

func applyOverrides(cfg *tconfig.Config) {
	if addr != "" {
		cfg.ListenAddr = addr
	}
}

// runServe starts the HTTP server and blocks until it receives SIGINT or
// SIGTERM, at which point it drains in-flight requests before exiting,
// mirroring cmd/dlv/cmds's waitForDisconnectSignal / graceful teardown.
func runServe(cmd *cobra.Command, args []string) error {
	logflags.Setup(logEnabled, logOutput)

	cfg := tconfig.LoadConfig()
	applyOverrides(cfg)

	srv, err := httpapi.NewServer(cfg)
	if err != nil {
		return fmt.Errorf("could not start server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, sys.SIGINT, sys.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}

func main() {
	if err := New().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
