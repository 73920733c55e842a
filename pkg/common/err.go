package common

// Err is the small set of protocol-visible outcomes the full-sync and
// handshake paths report back to slaves in their -ERR lines. Internal
// failures use plain Go errors (see internal/store, internal/binlog)
// wrapped with golang.org/x/xerrors; Err is only for values that cross
// the wire.
type Err string

const (
	OK                  Err = "OK"
	ErrInvalidStoreId   Err = "ErrInvalidStoreId"
	ErrStoreNotRunning  Err = "ErrStoreNotRunning"
	ErrStaleOffset      Err = "ErrStaleOffset"
	ErrWorkerPoolFull   Err = "ErrWorkerPoolFull"
	ErrBackupFailed     Err = "ErrBackupFailed"
	ErrParseOptsFailed  Err = "ErrParseOptsFailed"
	ErrNetwork          Err = "ErrNetwork"
	ErrProtocol         Err = "ErrProtocol"
	ErrNoSuchReplica    Err = "ErrNoSuchReplica"
)
