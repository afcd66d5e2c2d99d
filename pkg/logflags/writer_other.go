//go:build !windows

package logflags

import (
	"io"
	"os"
)

// colorableWriter returns stderr directly: on *nix terminals ANSI escapes
// already work without translation, matching pkg/terminal's
// getColorableWriter for !windows.
func colorableWriter() io.Writer {
	return os.Stderr
}
