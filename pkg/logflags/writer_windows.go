//go:build windows

package logflags

import (
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/mattn/go-colorable"
)

// colorableWriter mirrors pkg/terminal's Windows getColorableWriter:
// consoles that already understand ANSI (ConEmu, or the modern Windows
// virtual terminal mode) get stderr directly; everything else is wrapped
// in go-colorable's translation layer.
func colorableWriter() io.Writer {
	if strings.ToLower(os.Getenv("ConEmuANSI")) == "on" {
		return os.Stderr
	}

	const enableVirtualTerminalProcessing = 0x0004

	h, err := syscall.GetStdHandle(syscall.STD_ERROR_HANDLE)
	if err != nil {
		return os.Stderr
	}
	var m uint32
	if err := syscall.GetConsoleMode(h, &m); err != nil {
		return os.Stderr
	}
	if m&enableVirtualTerminalProcessing != 0 {
		return os.Stderr
	}
	return colorable.NewColorableStderr()
}
