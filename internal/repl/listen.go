package repl

import (
	"bufio"
	"net"
	"strings"
	"time"

	"mrkv-repl/internal/wire"
)

const acceptLineTimeout = 2 * time.Second

// Serve accepts connections on ln forever, parsing exactly one command
// line off each ("FULLSYNC storeId" or "INCRSYNC storeId dstStoreId
// binlogPos") and handing the rest of the connection's lifetime to the
// matching handler. It returns once ln.Accept fails, which is how the
// caller shuts it down (by closing ln).
func (m *Manager) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go m.dispatchConn(conn)
	}
}

func (m *Manager) dispatchConn(conn net.Conn) {
	r := bufio.NewReaderSize(conn, 64*1024)

	if err := conn.SetReadDeadline(time.Now().Add(acceptLineTimeout)); err != nil {
		_ = conn.Close()
		return
	}
	line, err := r.ReadString('\n')
	if err != nil {
		_ = conn.Close()
		return
	}
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		_ = conn.Close()
		return
	}

	fields := strings.Fields(line)
	if len(fields) == 0 {
		_ = conn.Close()
		return
	}

	client := wire.NewBlockingClientFromReader(conn, r)

	switch strings.ToUpper(fields[0]) {
	case "FULLSYNC":
		if len(fields) != 2 {
			_ = client.Close()
			return
		}
		m.SupplyFullSync(client, fields[1])
	case "INCRSYNC":
		if len(fields) != 4 {
			_ = client.Close()
			return
		}
		m.RegisterIncrSync(client, fields[1], fields[2], fields[3])
	default:
		m.log.Warnf("repl: unknown command %q from %s", fields[0], conn.RemoteAddr())
		_ = client.Close()
	}
}
