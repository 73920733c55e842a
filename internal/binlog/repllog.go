// Package binlog holds the wire/storage representation of one binlog row
// and the batching policy that groups rows into transaction-aligned
// replication batches.
package binlog

import (
	"github.com/Allen1211/msgp/msgp"

	"mrkv-repl/pkg/common/utils"
)

// Op enumerates the kinds of mutation a binlog row can carry. The payload
// itself (OpKey/OpVal) is opaque to everything above the store layer.
type Op uint8

const (
	OpPut Op = iota
	OpDelete
)

// ReplLogKey is the ordering key of a binlog row. TxnId is monotonic
// across rows within one store; several consecutive rows may share a
// TxnId when one logical transaction wrote more than one key.
type ReplLogKey struct {
	TxnId uint64
}

func (k *ReplLogKey) EncodeMsg(w *msgp.Writer) error {
	if err := w.WriteMapHeader(1); err != nil {
		return err
	}
	if err := w.WriteString("txnId"); err != nil {
		return err
	}
	return w.WriteUint64(k.TxnId)
}

func (k *ReplLogKey) DecodeMsg(r *msgp.Reader) error {
	n, err := r.ReadMapHeader()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		field, err := r.ReadString()
		if err != nil {
			return err
		}
		switch field {
		case "txnId":
			if k.TxnId, err = r.ReadUint64(); err != nil {
				return err
			}
		default:
			if err := r.Skip(); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReplLogValue carries the actual mutation. OpVal's byte length is the
// only thing the batcher's byte budget cares about; its contents are
// opaque.
type ReplLogValue struct {
	OpType Op
	OpKey  []byte
	OpVal  []byte
}

func (v *ReplLogValue) EncodeMsg(w *msgp.Writer) error {
	if err := w.WriteMapHeader(3); err != nil {
		return err
	}
	if err := w.WriteString("opType"); err != nil {
		return err
	}
	if err := w.WriteUint8(uint8(v.OpType)); err != nil {
		return err
	}
	if err := w.WriteString("opKey"); err != nil {
		return err
	}
	if err := w.WriteBytes(v.OpKey); err != nil {
		return err
	}
	if err := w.WriteString("opVal"); err != nil {
		return err
	}
	return w.WriteBytes(v.OpVal)
}

func (v *ReplLogValue) DecodeMsg(r *msgp.Reader) error {
	n, err := r.ReadMapHeader()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		field, err := r.ReadString()
		if err != nil {
			return err
		}
		switch field {
		case "opType":
			b, err := r.ReadUint8()
			if err != nil {
				return err
			}
			v.OpType = Op(b)
		case "opKey":
			if v.OpKey, err = r.ReadBytes(v.OpKey[:0]); err != nil {
				return err
			}
		case "opVal":
			if v.OpVal, err = r.ReadBytes(v.OpVal[:0]); err != nil {
				return err
			}
		default:
			if err := r.Skip(); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReplLog is one binlog row as produced by a store's binlog cursor.
type ReplLog struct {
	Key   ReplLogKey
	Value ReplLogValue
}

// KV is the encoded (key bytes, value bytes) pair placed on the wire as
// two consecutive bulk strings.
type KV struct {
	Key []byte
	Val []byte
}

// Encode serialises the row's key and value independently so the wire
// codec can frame them as two bulk strings, matching
// tendisplus's ReplLog::encode() contract.
func (l *ReplLog) Encode() (KV, error) {
	keyBytes, err := utils.MsgpEncode(&l.Key)
	if err != nil {
		return KV{}, err
	}
	valBytes, err := utils.MsgpEncode(&l.Value)
	if err != nil {
		return KV{}, err
	}
	return KV{Key: keyBytes, Val: valBytes}, nil
}

// Decode is the inverse of Encode, used by tests and by the slave-side
// apply path (not part of this core, but exercised by our own tests).
func Decode(kv KV) (ReplLog, error) {
	var l ReplLog
	if err := utils.MsgpDecode(kv.Key, &l.Key); err != nil {
		return ReplLog{}, err
	}
	if err := utils.MsgpDecode(kv.Val, &l.Value); err != nil {
		return ReplLog{}, err
	}
	return l, nil
}
