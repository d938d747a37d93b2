//go:build linux || darwin || dragonfly || freebsd || netbsd || openbsd

package server

import (
	"fmt"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// SharedPort reports whether several processes can bind the same port.
const SharedPort = true

// listenConfig sets SO_REUSEPORT on the socket before bind so every worker
// can listen on the same port and the kernel spreads connections among them.
func listenConfig() net.ListenConfig {
	return net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				if sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); sockErr != nil {
					sockErr = fmt.Errorf("set SO_REUSEADDR: %w", sockErr)
					return
				}
				if sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); sockErr != nil {
					sockErr = fmt.Errorf("set SO_REUSEPORT: %w", sockErr)
				}
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}
}
