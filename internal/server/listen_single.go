//go:build !(linux || darwin || dragonfly || freebsd || netbsd || openbsd)

package server

import "net"

// SharedPort reports whether several processes can bind the same port.
// Without SO_REUSEPORT only the first worker binds; the others fail and are
// replaced, so run with WORKERS=1 on these platforms.
const SharedPort = false

func listenConfig() net.ListenConfig {
	return net.ListenConfig{}
}
