package store

import (
	"testing"

	"mrkv-repl/internal/binlog"
)

func openTestStore(t *testing.T) *LevelDBStore {
	t.Helper()
	dir := t.TempDir()
	st, err := OpenLevelDBStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestLevelDBStorePutGet(t *testing.T) {
	st := openTestStore(t)

	if err := st.Put("foo", []byte("bar")); err != nil {
		t.Fatal(err)
	}
	val, err := st.Get("foo")
	if err != nil {
		t.Fatal(err)
	}
	if string(val) != "bar" {
		t.Fatalf("expected bar, got %q", val)
	}

	missing, err := st.Get("nope")
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Fatalf("expected nil for missing key, got %q", missing)
	}
}

func TestLevelDBStoreBinlogCursorOrdering(t *testing.T) {
	st := openTestStore(t)

	if err := st.AppendBinlog(1, []binlog.ReplLogValue{
		{OpType: binlog.OpPut, OpKey: []byte("a"), OpVal: []byte("1")},
		{OpType: binlog.OpPut, OpKey: []byte("b"), OpVal: []byte("2")},
	}); err != nil {
		t.Fatal(err)
	}
	if err := st.AppendBinlog(2, []binlog.ReplLogValue{
		{OpType: binlog.OpDelete, OpKey: []byte("a"), OpVal: nil},
	}); err != nil {
		t.Fatal(err)
	}

	txn, err := st.CreateTransaction()
	if err != nil {
		t.Fatal(err)
	}
	defer txn.Discard()

	cursor := txn.CreateBinlogCursor(0)
	defer cursor.Close()
	var gotTxnIds []uint64
	for {
		row, err := cursor.Next()
		if err != nil {
			if err == binlog.ErrExhausted {
				break
			}
			t.Fatal(err)
		}
		gotTxnIds = append(gotTxnIds, row.Key.TxnId)
	}

	if len(gotTxnIds) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(gotTxnIds))
	}
	if gotTxnIds[0] != 1 || gotTxnIds[1] != 1 || gotTxnIds[2] != 2 {
		t.Fatalf("expected txn order [1 1 2], got %v", gotTxnIds)
	}
}

func TestLevelDBStoreBinlogCursorResumesAfterAppliedPos(t *testing.T) {
	st := openTestStore(t)

	for txnId := uint64(1); txnId <= 3; txnId++ {
		if err := st.AppendBinlog(txnId, []binlog.ReplLogValue{
			{OpType: binlog.OpPut, OpKey: []byte("k"), OpVal: []byte("v")},
		}); err != nil {
			t.Fatal(err)
		}
	}

	txn, err := st.CreateTransaction()
	if err != nil {
		t.Fatal(err)
	}
	defer txn.Discard()

	cursor := txn.CreateBinlogCursor(1)
	defer cursor.Close()
	row, err := cursor.Next()
	if err != nil {
		t.Fatal(err)
	}
	if row.Key.TxnId != 2 {
		t.Fatalf("expected first row after appliedPos=1 to be txn 2, got %d", row.Key.TxnId)
	}
}

// TestLevelDBStoreBinlogCursorCloseIsIdempotent covers the leak this
// cursor exists to avoid: BuildBatch routinely stops reading before
// exhaustion, so Close must be safe to call even after Next has already
// released the iterator on exhaustion, and safe to call twice.
func TestLevelDBStoreBinlogCursorCloseIsIdempotent(t *testing.T) {
	st := openTestStore(t)
	if err := st.AppendBinlog(1, []binlog.ReplLogValue{
		{OpType: binlog.OpPut, OpKey: []byte("k"), OpVal: []byte("v")},
	}); err != nil {
		t.Fatal(err)
	}

	txn, err := st.CreateTransaction()
	if err != nil {
		t.Fatal(err)
	}
	defer txn.Discard()

	cursor := txn.CreateBinlogCursor(0)
	for {
		if _, err := cursor.Next(); err != nil {
			if err == binlog.ErrExhausted {
				break
			}
			t.Fatal(err)
		}
	}
	cursor.Close()
	cursor.Close()
}

func TestLevelDBStoreBackupAndRelease(t *testing.T) {
	st := openTestStore(t)
	if err := st.Put("k", []byte("v")); err != nil {
		t.Fatal(err)
	}

	info, err := st.Backup()
	if err != nil {
		t.Fatal(err)
	}
	if len(info.FileList()) == 0 {
		t.Fatal("expected at least one backup file")
	}

	if _, err := st.Backup(); err == nil {
		t.Fatal("expected concurrent backup to be rejected")
	}

	if err := st.ReleaseBackup(); err != nil {
		t.Fatal(err)
	}

	if _, err := st.Backup(); err != nil {
		t.Fatalf("expected backup to succeed again after release: %v", err)
	}
	_ = st.ReleaseBackup()
}
