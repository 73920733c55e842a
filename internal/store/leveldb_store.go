package store

import (
	"encoding/binary"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/util"
	"golang.org/x/xerrors"

	"mrkv-repl/internal/binlog"
	"mrkv-repl/pkg/common/utils"
)

const (
	dataPrefix   = "data:"
	binlogPrefix = "binlog:"
)

// LevelDBStore is a single local shard backed by goleveldb, grounded on
// the teacher's replica.LevelStore. User data lives under dataPrefix; the
// append-only binlog lives under binlogPrefix, keyed so that key order is
// exactly (txnId, intra-txn seq) order — the property the binlog cursor
// depends on.
type LevelDBStore struct {
	mu  sync.RWMutex
	db  *leveldb.DB
	dir string

	running    bool
	backupDir  string
	backupSnap *leveldb.Snapshot
}

func OpenLevelDBStore(dir string) (*LevelDBStore, error) {
	if err := utils.CheckAndMkdir(dir); err != nil {
		return nil, xerrors.Errorf("store: mkdir %s: %w", dir, err)
	}
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, xerrors.Errorf("store: open %s: %w", dir, err)
	}
	return &LevelDBStore{db: db, dir: dir, running: true}, nil
}

func (s *LevelDBStore) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *LevelDBStore) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
}

func (s *LevelDBStore) Close() error {
	return s.db.Close()
}

func (s *LevelDBStore) Get(key string) ([]byte, error) {
	val, err := s.db.Get([]byte(dataPrefix+key), nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	return val, err
}

func (s *LevelDBStore) Put(key string, val []byte) error {
	return s.db.Put([]byte(dataPrefix+key), val, nil)
}

// AppendBinlog durably records one transaction's rows. It is the only
// write path binlog rows come from; the replication core itself never
// writes binlog rows, only reads them.
func (s *LevelDBStore) AppendBinlog(txnId uint64, rows []binlog.ReplLogValue) error {
	batch := new(leveldb.Batch)
	for seq, row := range rows {
		key := binlogKey(txnId, uint32(seq))
		val, err := utils.MsgpEncode(&row)
		if err != nil {
			return xerrors.Errorf("store: encode binlog row: %w", err)
		}
		batch.Put(key, val)
	}
	return s.db.Write(batch, nil)
}

func binlogKey(txnId uint64, seq uint32) []byte {
	key := make([]byte, len(binlogPrefix)+12)
	n := copy(key, binlogPrefix)
	binary.BigEndian.PutUint64(key[n:], txnId)
	binary.BigEndian.PutUint32(key[n+8:], seq)
	return key
}

func decodeBinlogKey(key []byte) (txnId uint64, seq uint32) {
	body := key[len(binlogPrefix):]
	txnId = binary.BigEndian.Uint64(body[:8])
	seq = binary.BigEndian.Uint32(body[8:12])
	return
}

type levelTxn struct {
	snap *leveldb.Snapshot
}

func (s *LevelDBStore) CreateTransaction() (Txn, error) {
	snap, err := s.db.GetSnapshot()
	if err != nil {
		return nil, xerrors.Errorf("store: create snapshot: %w", err)
	}
	return &levelTxn{snap: snap}, nil
}

func (t *levelTxn) CreateBinlogCursor(appliedPos uint64) binlog.Cursor {
	prefixRange := util.BytesPrefix([]byte(binlogPrefix))
	start := binlogKey(appliedPos+1, 0)
	iter := t.snap.NewIterator(&util.Range{Start: start, Limit: prefixRange.Limit}, nil)
	return &levelCursor{iter: iter}
}

func (t *levelTxn) Discard() {
	t.snap.Release()
}

type levelCursor struct {
	iter   iterator.Iterator
	closed bool
}

func (c *levelCursor) Next() (binlog.ReplLog, error) {
	if !c.iter.Next() {
		c.Close()
		return binlog.ReplLog{}, binlog.ErrExhausted
	}
	txnId, _ := decodeBinlogKey(c.iter.Key())
	var val binlog.ReplLogValue
	if err := utils.MsgpDecode(c.iter.Value(), &val); err != nil {
		return binlog.ReplLog{}, xerrors.Errorf("store: decode binlog row: %w", err)
	}
	return binlog.ReplLog{Key: binlog.ReplLogKey{TxnId: txnId}, Value: val}, nil
}

// Close releases the underlying goleveldb iterator. It is safe to call
// more than once (Next calls it itself on exhaustion, and BuildBatch's
// caller calls it again via defer regardless of how the cursor ended).
func (c *levelCursor) Close() {
	if c.closed {
		return
	}
	c.closed = true
	c.iter.Release()
}

var _ Store = (*LevelDBStore)(nil)
