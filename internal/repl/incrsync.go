package repl

import (
	"strconv"
	"time"

	"mrkv-repl/internal/wire"
	"mrkv-repl/pkg/common"
)

const handshakeTimeout = 1 * time.Second

// RegisterIncrSync performs the master side of the three-step INCRSYNC
// handshake described in spec.md §4.4.2 and §6:
//
//	S→M  INCRSYNC storeId dstStoreId binlogPos   (already parsed by caller)
//	M→S  +OK
//	S→M  +PONG
//
// The +PONG round trip exists because the next writes on this connection
// are streaming binlog batches with no fixed frame size; without it, the
// +OK here and the first batch could coalesce in the slave's read
// buffer, and the slave's demultiplexer would have to disambiguate them
// itself (original_source/mpov.cpp's comment above registerIncrSync).
//
// On success an MPov entry is registered and the socket is owned by the
// manager from then on. On any failure the connection is closed: a bad
// argument, an out-of-range store id or a stale binlogPos is first
// answered with an -ERR line, while a failure after +OK gets no reply.
// The slave must retry or escalate to a full sync.
func (m *Manager) RegisterIncrSync(client *wire.BlockingClient, storeIdArg, dstStoreIdArg, binlogPosArg string) {
	storeId, dstStoreId, binlogPos, err := parseIncrSyncArgs(storeIdArg, dstStoreIdArg, binlogPosArg)
	if err != nil {
		_ = client.WriteLine(errLine(common.ErrParseOptsFailed, err.Error()), handshakeTimeout)
		_ = client.Close()
		return
	}

	if storeId >= m.conf.InstanceNum || dstStoreId >= m.conf.InstanceNum {
		_ = client.WriteLine(errLine(common.ErrInvalidStoreId, ""), handshakeTimeout)
		_ = client.Close()
		return
	}

	// Fast, deliberately racy pre-check (spec.md §9's open questions):
	// not atomic with the authoritative re-check below, just an early
	// exit for the common "way too stale" case before we spend a round
	// trip on +OK/+PONG.
	firstPos := m.snapshotFirstBinlogId(storeId)
	if firstPos > binlogPos {
		_ = client.WriteLine(errLine(common.ErrStaleOffset, ""), handshakeTimeout)
		_ = client.Close()
		return
	}

	if err := client.WriteLine("+OK", handshakeTimeout); err != nil {
		_ = client.Close()
		return
	}

	pong, err := client.ReadLine(handshakeTimeout)
	if err != nil {
		m.log.Warnf("slave incrsync handshake failed: %v", err)
		_ = client.Close()
		return
	}
	if pong != "+PONG" {
		m.log.Warnf("slave incrsync handshake not +PONG: %q", pong)
		_ = client.Close()
		return
	}

	remote := client.RemoteAddr()
	ok := m.tryRegister(storeId, dstStoreId, binlogPos, client)
	if !ok {
		_ = client.Close()
	}
	m.log.Infof("slave:%s registerIncrSync %s", remote, registerOutcome(ok))
}

func registerOutcome(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}

func parseIncrSyncArgs(storeIdArg, dstStoreIdArg, binlogPosArg string) (storeId, dstStoreId uint32, binlogPos uint64, err error) {
	s, err := strconv.ParseUint(storeIdArg, 10, 32)
	if err != nil {
		return 0, 0, 0, err
	}
	d, err := strconv.ParseUint(dstStoreIdArg, 10, 32)
	if err != nil {
		return 0, 0, 0, err
	}
	p, err := strconv.ParseUint(binlogPosArg, 10, 64)
	if err != nil {
		return 0, 0, 0, err
	}
	return uint32(s), uint32(d), p, nil
}

func (m *Manager) snapshotFirstBinlogId(storeId uint32) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.firstBinlogId[storeId]
}

// tryRegister is the authoritative, mutex-held re-check and insert.
func (m *Manager) tryRegister(storeId, dstStoreId uint32, binlogPos uint64, client *wire.BlockingClient) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.firstBinlogId[storeId] > binlogPos {
		return false
	}

	m.clientIdGen++
	clientId := m.clientIdGen

	if m.pushStatus[storeId] == nil {
		m.pushStatus[storeId] = make(map[uint64]*MPov)
	}
	m.pushStatus[storeId][clientId] = &MPov{
		ClientId:      clientId,
		DstStoreId:    dstStoreId,
		BinlogPos:     binlogPos,
		client:        client,
		isRunning:     false,
		nextSchedTime: time.Now(),
	}
	return true
}
