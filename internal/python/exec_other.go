//go:build !windows

package python

import "os/exec"

// HideConsole keeps child processes from opening a console window. It is a
// no-op outside Windows.
func HideConsole(cmd *exec.Cmd) {}
