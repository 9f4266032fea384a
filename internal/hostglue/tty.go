package hostglue

import (
	"os"

	"golang.org/x/term"
)

// StdoutIsTerminal reports whether stdout is an interactive terminal,
// mirroring go-jeebie's terminal-capability check before invoking tcell:
// `cmd/psxcore` uses this to fall back to HeadlessBackend when stdout is
// redirected (CI logs, a pipe) instead of failing to open a tcell.Screen.
func StdoutIsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}
