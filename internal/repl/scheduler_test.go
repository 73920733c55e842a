package repl

import (
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"mrkv-repl/internal/binlog"
	"mrkv-repl/internal/repl/etc"
	"mrkv-repl/internal/store"
	"mrkv-repl/internal/wire"
)

type fakeCursor struct {
	rows []binlog.ReplLog
	pos  int
}

func (c *fakeCursor) Next() (binlog.ReplLog, error) {
	if c.pos >= len(c.rows) {
		return binlog.ReplLog{}, binlog.ErrExhausted
	}
	row := c.rows[c.pos]
	c.pos++
	return row, nil
}

func (c *fakeCursor) Close() {}

type fakeTxn struct {
	rows       []binlog.ReplLog
	appliedPos uint64
}

func (t *fakeTxn) CreateBinlogCursor(appliedPos uint64) binlog.Cursor {
	var rows []binlog.ReplLog
	for _, r := range t.rows {
		if r.Key.TxnId > appliedPos {
			rows = append(rows, r)
		}
	}
	return &fakeCursor{rows: rows}
}

func (t *fakeTxn) Discard() {}

type fakeStore struct {
	running bool
	rows    []binlog.ReplLog
}

func (s *fakeStore) IsRunning() bool { return s.running }
func (s *fakeStore) CreateTransaction() (store.Txn, error) {
	return &fakeTxn{rows: s.rows}, nil
}
func (s *fakeStore) Backup() (store.BackupInfo, error) { return store.BackupInfo{}, nil }
func (s *fakeStore) ReleaseBackup() error              { return nil }
func (s *fakeStore) BackupDir() string                 { return "" }

type fakeSegMgr struct {
	stores map[uint32]store.Store
}

func (m *fakeSegMgr) GetInstanceById(storeId uint32) (store.Store, bool) {
	s, ok := m.stores[storeId]
	return s, ok
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(new(nullWriter))
	return l
}

type nullWriter struct{}

func (nullWriter) Write(p []byte) (int, error) { return len(p), nil }

func newTestManager(st store.Store) *Manager {
	segMgr := &fakeSegMgr{stores: map[uint32]store.Store{0: st}}
	return NewManager(etc.Default(), segMgr, testLogger())
}

// replyOK drains one framed batch written to serverConn and writes back
// +OK, mimicking a well-behaved slave's ack.
func replyOK(t *testing.T, conn net.Conn) {
	t.Helper()
	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil {
		t.Errorf("replyOK: read batch: %v", err)
		return
	}
	if n == 0 {
		t.Error("replyOK: empty batch")
		return
	}
	if _, err := conn.Write([]byte("+OK\r\n")); err != nil {
		t.Errorf("replyOK: write ack: %v", err)
	}
}

func TestMasterSendBinlogSendsAndAdvancesPos(t *testing.T) {
	rows := []binlog.ReplLog{
		{Key: binlog.ReplLogKey{TxnId: 1}, Value: binlog.ReplLogValue{OpType: binlog.OpPut, OpKey: []byte("a"), OpVal: []byte("1")}},
		{Key: binlog.ReplLogKey{TxnId: 2}, Value: binlog.ReplLogValue{OpType: binlog.OpPut, OpKey: []byte("b"), OpVal: []byte("2")}},
	}
	st := &fakeStore{running: true, rows: rows}
	m := newTestManager(st)

	serverConn, slaveConn := net.Pipe()
	defer serverConn.Close()
	defer slaveConn.Close()

	mp := &MPov{ClientId: 1, DstStoreId: 0, BinlogPos: 0, client: wire.NewBlockingClient(serverConn)}

	done := make(chan struct{})
	go func() {
		replyOK(t, slaveConn)
		close(done)
	}()

	sent, nextPos, err := m.masterSendBinlog(0, mp)
	<-done
	if err != nil {
		t.Fatal(err)
	}
	if sent != 2 {
		t.Fatalf("expected 2 rows sent, got %d", sent)
	}
	if nextPos != 2 {
		t.Fatalf("expected nextPos 2, got %d", nextPos)
	}
}

// TestMasterSendBinlogEmptyBatchStillHeartbeats covers spec.md §4.1's
// documented edge case: a fully caught-up replica still gets an
// applybinlogs frame with zero rows, and the round trip still waits on
// the +OK. If this ever regressed to a silent no-op, a caught-up
// replica would never see a heartbeat and a dead connection on one would
// never be detected (no read whose failure could reap it).
func TestMasterSendBinlogEmptyBatchStillHeartbeats(t *testing.T) {
	st := &fakeStore{running: true, rows: nil}
	m := newTestManager(st)

	serverConn, slaveConn := net.Pipe()
	defer serverConn.Close()
	defer slaveConn.Close()

	mp := &MPov{ClientId: 1, DstStoreId: 0, BinlogPos: 5, client: wire.NewBlockingClient(serverConn)}

	done := make(chan struct{})
	go func() {
		replyOK(t, slaveConn)
		close(done)
	}()

	sent, nextPos, err := m.masterSendBinlog(0, mp)
	<-done
	if err != nil {
		t.Fatal(err)
	}
	if sent != 0 {
		t.Fatalf("expected 0 rows sent, got %d", sent)
	}
	if nextPos != 5 {
		t.Fatalf("expected pos to stay 5, got %d", nextPos)
	}
}

// TestMasterSendBinlogDeadConnectionOnEmptyBatchIsReaped covers the other
// half of the same property: since the empty-batch path still performs a
// real write+read round trip, a slave that never acks is detected and
// surfaces as an error, the same as a non-empty batch would.
func TestMasterSendBinlogDeadConnectionOnEmptyBatchIsReaped(t *testing.T) {
	st := &fakeStore{running: true, rows: nil}
	m := newTestManager(st)

	serverConn, slaveConn := net.Pipe()
	defer serverConn.Close()
	_ = slaveConn.Close()

	mp := &MPov{ClientId: 1, DstStoreId: 0, BinlogPos: 5, client: wire.NewBlockingClient(serverConn)}

	if _, _, err := m.masterSendBinlog(0, mp); err == nil {
		t.Fatal("expected an error when the slave side is gone")
	}
}

func TestMasterSendBinlogStoreNotRunning(t *testing.T) {
	st := &fakeStore{running: false}
	m := newTestManager(st)

	serverConn, slaveConn := net.Pipe()
	defer serverConn.Close()
	defer slaveConn.Close()

	mp := &MPov{ClientId: 1, DstStoreId: 0, BinlogPos: 0, client: wire.NewBlockingClient(serverConn)}

	if _, _, err := m.masterSendBinlog(0, mp); err == nil {
		t.Fatal("expected error for non-running store")
	}
}

func TestEndPushDropsEntryOnFailure(t *testing.T) {
	st := &fakeStore{running: true}
	m := newTestManager(st)

	serverConn, slaveConn := net.Pipe()
	defer slaveConn.Close()

	m.pushStatus[0] = map[uint64]*MPov{
		1: {ClientId: 1, client: wire.NewBlockingClient(serverConn), isRunning: true},
	}

	m.endPush(0, 1, "test", false, 0, 0)

	if _, ok := m.pushStatus[0][1]; ok {
		t.Fatal("expected entry to be removed after failed push")
	}
}

func TestEndPushReschedulesOnSuccess(t *testing.T) {
	st := &fakeStore{running: true}
	m := newTestManager(st)

	serverConn, slaveConn := net.Pipe()
	defer serverConn.Close()
	defer slaveConn.Close()

	m.pushStatus[0] = map[uint64]*MPov{
		1: {ClientId: 1, client: wire.NewBlockingClient(serverConn), isRunning: true, BinlogPos: 0},
	}

	before := time.Now()
	m.endPush(0, 1, "test", true, 9, backoffOnNoProgress)

	mp := m.pushStatus[0][1]
	if mp == nil {
		t.Fatal("expected entry to still exist after successful push")
	}
	if mp.isRunning {
		t.Fatal("expected isRunning to be cleared")
	}
	if mp.BinlogPos != 9 {
		t.Fatalf("expected BinlogPos 9, got %d", mp.BinlogPos)
	}
	if !mp.nextSchedTime.After(before) {
		t.Fatal("expected nextSchedTime to be pushed into the future")
	}
}
