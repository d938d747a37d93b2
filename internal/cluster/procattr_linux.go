//go:build linux

package cluster

import (
	"os/exec"
	"syscall"
)

// configureSysProcAttr puts the worker in its own process group, so terminal
// signals reach only the primary, and asks the kernel to send SIGTERM to the
// worker when the primary dies.
func configureSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGTERM,
	}
}
