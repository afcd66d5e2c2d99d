package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cosiner/argv"
	liner "github.com/go-delve/liner"

	"github.com/vru6650/tracehost/internal/langb"
	"github.com/vru6650/tracehost/internal/script"
	"github.com/vru6650/tracehost/internal/session"
	"github.com/vru6650/tracehost/internal/tconfig"
)

// runScript implements the "script" subcommand: it either evaluates a
// single script file and exits, or drops into a REPL, exactly as
// pkg/terminal.Term reads one line at a time from a liner.State and
// evaluates it (terminal.go's promptForInput/Term.Run loop).
func runScript(cfg *tconfig.Config, scriptPath string) error {
	runner, err := langb.NewRunner(cfg.TracerPath, cfg.TempDir, cfg.LangBExt, cfg.TracerTimeoutSec)
	if err != nil {
		return err
	}
	console := script.NewConsole(runner, session.NewStore(), os.Stdout)

	if scriptPath != "" {
		src, err := os.ReadFile(scriptPath)
		if err != nil {
			return fmt.Errorf("reading %s: %w", scriptPath, err)
		}
		out, err := console.Eval(context.Background(), scriptPath, string(src))
		if err != nil {
			return err
		}
		if out != "" {
			fmt.Println(out)
		}
		return nil
	}

	return runScriptREPL(console)
}

const scriptPrompt = "(tracehost-script) "

// runScriptREPL mirrors terminal.Term's read-eval-print loop: a liner.State
// for history-backed prompting, one line evaluated per iteration, and a
// ":load <file>" meta-command tokenized with cosiner/argv the way
// pkg/terminal/command.go tokenizes restart's argument string.
func runScriptREPL(console *script.Console) error {
	line := liner.NewLiner()
	defer line.Close()

	ctx := context.Background()
	for {
		l, err := line.Prompt(scriptPrompt)
		if err == io.EOF {
			fmt.Println()
			return nil
		}
		if err != nil {
			return err
		}
		l = strings.TrimSuffix(l, "\n")
		if l == "" {
			continue
		}
		line.AppendHistory(l)

		if strings.HasPrefix(l, ":load ") {
			if err := loadScriptFile(ctx, console, strings.TrimPrefix(l, ":load ")); err != nil {
				fmt.Fprintln(os.Stderr, err)
			}
			continue
		}
		if l == ":quit" || l == ":q" {
			return nil
		}

		out, err := console.Eval(ctx, "<repl>", l)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			continue
		}
		if out != "" {
			fmt.Println(out)
		}
	}
}

// loadScriptFile tokenizes rawArgs the way restart's newargv is tokenized,
// so ":load" tolerates a quoted path with spaces.
func loadScriptFile(ctx context.Context, console *script.Console, rawArgs string) error {
	parsed, err := argv.Argv(rawArgs, nil, nil)
	if err != nil {
		return fmt.Errorf(":load: %w", err)
	}
	if len(parsed) != 1 || len(parsed[0]) != 1 {
		return fmt.Errorf(":load: expected exactly one file path")
	}
	path := parsed[0][0]
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf(":load: %w", err)
	}
	out, err := console.Eval(ctx, path, string(src))
	if err != nil {
		return err
	}
	if out != "" {
		fmt.Println(out)
	}
	return nil
}
