package repl

import (
	"bufio"
	"net"
	"testing"

	"mrkv-repl/internal/wire"
)

// driveHandshake plays the slave side of the three-step INCRSYNC
// handshake over conn: read the master's reply line and, if it is +OK,
// send +PONG. It returns the reply line and reads nothing after it.
func driveHandshake(t *testing.T, conn net.Conn) string {
	t.Helper()
	r := bufio.NewReader(conn)
	line, err := r.ReadString('\n')
	if err != nil {
		t.Errorf("driveHandshake: read reply: %v", err)
		return line
	}
	if line == "+OK\r\n" {
		if _, err := conn.Write([]byte("+PONG\r\n")); err != nil {
			t.Errorf("driveHandshake: write pong: %v", err)
		}
	}
	return line
}

func TestRegisterIncrSyncSucceeds(t *testing.T) {
	st := &fakeStore{running: true}
	m := newTestManager(st)

	serverConn, slaveConn := net.Pipe()
	defer slaveConn.Close()

	go driveHandshake(t, slaveConn)

	serverSide := wire.NewBlockingClient(serverConn)
	m.RegisterIncrSync(serverSide, "0", "0", "0")

	snap := m.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected one registered replica, got %d", len(snap))
	}
	if snap[0].BinlogPos != 0 || snap[0].DstStoreId != 0 {
		t.Fatalf("unexpected MPov snapshot: %+v", snap[0])
	}
}

func TestRegisterIncrSyncRejectsStaleBinlogPos(t *testing.T) {
	st := &fakeStore{running: true}
	m := newTestManager(st)
	m.SetFirstBinlogId(0, 100)

	serverConn, slaveConn := net.Pipe()
	defer slaveConn.Close()
	defer serverConn.Close()

	read := make(chan string, 1)
	go func() {
		r := bufio.NewReader(slaveConn)
		line, _ := r.ReadString('\n')
		read <- line
	}()

	m.RegisterIncrSync(wire.NewBlockingClient(serverConn), "0", "0", "50")

	line := <-read
	if line == "+OK\r\n" {
		t.Fatal("expected stale binlogPos to be rejected before +OK")
	}

	if len(m.Snapshot()) != 0 {
		t.Fatal("expected no MPov entry for rejected handshake")
	}
}

func TestRegisterIncrSyncRejectsInvalidStoreId(t *testing.T) {
	st := &fakeStore{running: true}
	m := newTestManager(st)

	serverConn, slaveConn := net.Pipe()
	defer slaveConn.Close()
	defer serverConn.Close()

	read := make(chan string, 1)
	go func() {
		r := bufio.NewReader(slaveConn)
		line, _ := r.ReadString('\n')
		read <- line
	}()

	m.RegisterIncrSync(wire.NewBlockingClient(serverConn), "999", "0", "0")

	line := <-read
	if line == "+OK\r\n" {
		t.Fatal("expected out-of-range storeId to be rejected")
	}
}

func TestKickRemovesEntryAndClosesSocket(t *testing.T) {
	st := &fakeStore{running: true}
	m := newTestManager(st)

	serverConn, slaveConn := net.Pipe()
	defer slaveConn.Close()

	go driveHandshake(t, slaveConn)
	m.RegisterIncrSync(wire.NewBlockingClient(serverConn), "0", "0", "0")

	snap := m.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("setup failed: expected one replica, got %d", len(snap))
	}

	if !m.Kick(snap[0].StoreId, snap[0].ClientId) {
		t.Fatal("expected Kick to find and remove the entry")
	}
	if len(m.Snapshot()) != 0 {
		t.Fatal("expected no entries after Kick")
	}
	if _, err := slaveConn.Write([]byte("x")); err == nil {
		t.Fatal("expected the replica socket to be closed after Kick")
	}
}
