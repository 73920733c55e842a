//go:build linux

package wire

import (
	"net"

	"golang.org/x/sys/unix"
)

// tuneConn turns on TCP_NODELAY and SO_KEEPALIVE on the accepted
// replica socket. The protocol is latency sensitive — the push loop does
// a small write followed by waiting on a one-line ack every iteration —
// so Nagle's algorithm works directly against it.
func tuneConn(conn net.Conn) {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}
	raw, err := tc.SyscallConn()
	if err != nil {
		return
	}
	_ = raw.Control(func(fd uintptr) {
		_ = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
		_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1)
	})
}
