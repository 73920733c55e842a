package repl

import (
	"time"

	"mrkv-repl/internal/wire"
)

// MPov ("master's point of view") is the manager's bookkeeping for one
// active replica, grounded on tendisplus's MPovStatus struct. It is
// owned exclusively by the Manager and is only ever mutated while
// holding the manager mutex, except for isRunning's guarantee that at
// most one push routine is ever acting on it at a time.
type MPov struct {
	ClientId   uint64
	DstStoreId uint32

	// BinlogPos is the greatest txnId acknowledged as applied by this
	// replica, not the next one to send; the cursor for this entry's
	// next push always starts at BinlogPos+1.
	BinlogPos uint64

	client *wire.BlockingClient

	isRunning     bool
	nextSchedTime time.Time
}

// RemoteAddr is exposed for logging; it never changes for the entry's
// lifetime.
func (m *MPov) RemoteAddr() string {
	return m.client.RemoteAddr()
}
