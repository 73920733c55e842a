package binlog

import "testing"

// sliceCursor replays a fixed list of rows, grounded on the fake cursor
// the original mpov_test.cpp drives BuildBatch with.
type sliceCursor struct {
	rows []ReplLog
	pos  int
}

func (c *sliceCursor) Next() (ReplLog, error) {
	if c.pos >= len(c.rows) {
		return ReplLog{}, ErrExhausted
	}
	row := c.rows[c.pos]
	c.pos++
	return row, nil
}

func (c *sliceCursor) Close() {}

func rowsOfTxns(txnIds ...uint64) []ReplLog {
	rows := make([]ReplLog, len(txnIds))
	for i, id := range txnIds {
		rows[i] = ReplLog{Key: ReplLogKey{TxnId: id}, Value: ReplLogValue{OpType: OpPut, OpKey: []byte("k"), OpVal: []byte("v")}}
	}
	return rows
}

// Scenario A: fewer rows than SuggestBatch, cursor exhausts -> whole
// thing comes back as one batch.
func TestBuildBatch_ExhaustsBelowThreshold(t *testing.T) {
	rows := rowsOfTxns(1, 2, 3)
	cursor := &sliceCursor{rows: rows}

	batch, pos, err := BuildBatch(cursor, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(batch) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(batch))
	}
	if pos != 3 {
		t.Fatalf("expected pos 3, got %d", pos)
	}
}

// Scenario C: exactly SuggestBatch single-row transactions followed by a
// 65th row that starts a new transaction; the batch must close at
// exactly 64 rows/txns, not 65.
func TestBuildBatch_ClosesAtExactlySuggestBatch(t *testing.T) {
	ids := make([]uint64, 0, SuggestBatch+1)
	for i := uint64(1); i <= uint64(SuggestBatch)+1; i++ {
		ids = append(ids, i)
	}
	cursor := &sliceCursor{rows: rowsOfTxns(ids...)}

	batch, pos, err := BuildBatch(cursor, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(batch) != SuggestBatch {
		t.Fatalf("expected exactly %d rows, got %d", SuggestBatch, len(batch))
	}
	if pos != uint64(SuggestBatch) {
		t.Fatalf("expected pos %d, got %d", SuggestBatch, pos)
	}
}

// Scenario D: a single transaction spans more rows than SuggestBatch; it
// must never be split across two batches.
func TestBuildBatch_NeverSplitsATransaction(t *testing.T) {
	ids := make([]uint64, 0, SuggestBatch*2)
	for i := 0; i < SuggestBatch*2; i++ {
		ids = append(ids, 1) // every row belongs to txn 1
	}
	ids = append(ids, 2) // then one row from the next txn
	cursor := &sliceCursor{rows: rowsOfTxns(ids...)}

	batch, pos, err := BuildBatch(cursor, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(batch) != SuggestBatch*2 {
		t.Fatalf("expected all %d rows of txn 1 kept together, got %d", SuggestBatch*2, len(batch))
	}
	if pos != 1 {
		t.Fatalf("expected pos 1 (last fully-included txn), got %d", pos)
	}
}

func TestBuildBatch_EmptyCursorReturnsUnchangedPos(t *testing.T) {
	cursor := &sliceCursor{rows: nil}

	batch, pos, err := BuildBatch(cursor, 42)
	if err != nil {
		t.Fatal(err)
	}
	if len(batch) != 0 {
		t.Fatalf("expected empty batch, got %d rows", len(batch))
	}
	if pos != 42 {
		t.Fatalf("expected pos to stay 42, got %d", pos)
	}
}

func TestReplLogEncodeDecodeRoundTrip(t *testing.T) {
	log := ReplLog{
		Key:   ReplLogKey{TxnId: 7},
		Value: ReplLogValue{OpType: OpDelete, OpKey: []byte("foo"), OpVal: []byte("bar")},
	}
	kv, err := log.Encode()
	if err != nil {
		t.Fatal(err)
	}
	got, err := Decode(kv)
	if err != nil {
		t.Fatal(err)
	}
	if got.Key.TxnId != 7 || got.Value.OpType != OpDelete || string(got.Value.OpKey) != "foo" || string(got.Value.OpVal) != "bar" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}
