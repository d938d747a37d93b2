//go:build unix && !linux

package cluster

import (
	"os/exec"
	"syscall"
)

// configureSysProcAttr puts the worker in its own process group so terminal
// signals reach only the primary.
func configureSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
