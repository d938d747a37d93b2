//go:build !unix

package cluster

import "os/exec"

// configureSysProcAttr is a no-op without process groups.
func configureSysProcAttr(cmd *exec.Cmd) {}
