//go:build !linux

package wire

import "net"

// tuneConn is a no-op off Linux; golang.org/x/sys/unix's socket option
// constants are Linux-specific.
func tuneConn(conn net.Conn) {}
