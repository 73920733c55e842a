package binlog

import (
	"errors"

	"golang.org/x/xerrors"
)

// ErrExhausted is returned by a Cursor once it has no more rows to give,
// the one "expected" cursor outcome the batcher treats as a normal batch
// close rather than a failure.
var ErrExhausted = errors.New("binlog: cursor exhausted")

const (
	// SuggestBatch is the row-count threshold at which the batcher starts
	// looking for the next transaction boundary to close on.
	SuggestBatch = 64
	// SuggestBytes is the accumulated-payload-bytes threshold, same role
	// as SuggestBatch but measured in bytes of op value.
	SuggestBytes = 16 * 1024 * 1024
)

// Cursor yields ordered ReplLog rows starting strictly after the position
// it was created with. It returns ErrExhausted, not a zero value, once
// there is nothing left to read.
//
// Close must be called once the caller is done with the cursor, whether
// or not it was read to exhaustion: BuildBatch routinely stops early once
// a threshold is hit (the steady-state case for a lagging replica), and a
// cursor backed by a storage-engine iterator needs that signal to release
// whatever snapshot/iterator state it is holding. Close is idempotent.
type Cursor interface {
	Next() (ReplLog, error)
	Close()
}

// BuildBatch pulls rows from cursor until either the batch is big enough
// (by count or by bytes) and the next row would start a new transaction,
// or the cursor is exhausted. It never splits a transaction across two
// batches: rows sharing the terminal txnId are always kept together.
//
// fromPos is only used to report back an unchanged position when the
// batch turns out empty; the cursor itself must already be positioned at
// fromPos+1.
func BuildBatch(cursor Cursor, fromPos uint64) ([]ReplLog, uint64, error) {
	var (
		batch        []ReplLog
		nowId        uint64
		estimateSize int
	)

	for {
		row, err := cursor.Next()
		if err == nil {
			rlk := row.Key
			rlv := row.Value
			estimateSize += len(rlv.OpVal)

			if nowId == 0 || nowId != rlk.TxnId {
				nowId = rlk.TxnId
				if len(batch) >= SuggestBatch || estimateSize >= SuggestBytes {
					break
				}
				batch = append(batch, row)
			} else {
				batch = append(batch, row)
			}
			continue
		}

		if errors.Is(err, ErrExhausted) {
			break
		}
		return nil, fromPos, xerrors.Errorf("iter binlog failed: %w", err)
	}

	if len(batch) == 0 {
		return batch, fromPos, nil
	}
	return batch, batch[len(batch)-1].Key.TxnId, nil
}
