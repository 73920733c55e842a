package repl

import (
	"time"

	"mrkv-repl/internal/binlog"
	"mrkv-repl/internal/wire"
)

// backoffOnNoProgress is how long a push routine waits before its next
// scheduled attempt when a round trip succeeded but produced no rows
// (the replica is caught up). A round that does make progress reschedules
// immediately, so a lagging replica drains as fast as it can ack.
const backoffOnNoProgress = 1 * time.Second

// schedulerLoop sweeps pushStatus on a fixed tick, handing every entry
// that is not already running and whose nextSchedTime has arrived to the
// incremental push pool. Grounded on tendisplus's
// ReplManager::schedule()/masterPushRoutine dispatch loop.
func (m *Manager) schedulerLoop(interval time.Duration) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.dispatchReady()
		}
	}
}

func (m *Manager) dispatchReady() {
	type target struct {
		storeId  uint32
		clientId uint64
	}
	var ready []target

	m.mu.Lock()
	now := time.Now()
	for storeId, clients := range m.pushStatus {
		for clientId, mp := range clients {
			if mp.isRunning || mp.nextSchedTime.After(now) {
				continue
			}
			mp.isRunning = true
			ready = append(ready, target{storeId, clientId})
		}
	}
	m.mu.Unlock()

	for _, t := range ready {
		storeId, clientId := t.storeId, t.clientId
		m.incrPool.Schedule(func() {
			m.masterPushRoutine(storeId, clientId)
		})
	}
}

// masterPushRoutine drives one push attempt for a single replica: it
// snapshots the entry's cursor position and socket, builds and sends one
// batch outside the manager mutex, then reacquires the mutex to either
// advance the entry and reschedule it, or drop it on any failure. Mirrors
// masterPushRoutine/masterSendBinlog in original_source/mpov.cpp, with
// the distinguishing feature that the mutex is never held across the
// socket round trip (spec.md §5).
func (m *Manager) masterPushRoutine(storeId uint32, clientId uint64) {
	mp, ok := m.beginPush(storeId, clientId)
	if !ok {
		return
	}

	sentRows, nextPos, err := m.masterSendBinlog(storeId, mp)
	if err != nil {
		m.log.Warnf("push store:%d client:%d failed: %v", storeId, clientId, err)
		m.metrics.PushErrors.Inc()
		m.endPush(storeId, clientId, mp.client.RemoteAddr(), false, 0, 0)
		return
	}

	m.endPush(storeId, clientId, mp.client.RemoteAddr(), true, nextPos, nextDelay(sentRows))
}

func nextDelay(sentRows int) time.Duration {
	if sentRows > 0 {
		return 0
	}
	return backoffOnNoProgress
}

// beginPush looks the entry up under the mutex and returns the live MPov
// pointer, which the caller then reads outside the mutex. That is safe
// because masterPushRoutine runs exclusively per clientId thanks to
// isRunning, and it alone changes BinlogPos (through endPush, under the
// mutex).
func (m *Manager) beginPush(storeId uint32, clientId uint64) (*MPov, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	clients, ok := m.pushStatus[storeId]
	if !ok {
		return nil, false
	}
	mp, ok := clients[clientId]
	if !ok {
		return nil, false
	}
	return mp, true
}

// endPush reacquires the mutex once the round trip is done: on success it
// commits newPos and reschedules the entry after delay, all while
// isRunning is still true, so no other goroutine can observe BinlogPos
// mid-update. On failure it removes the entry and closes its socket,
// since any protocol or network error on this connection is
// unrecoverable without a fresh handshake.
func (m *Manager) endPush(storeId uint32, clientId uint64, remote string, success bool, newPos uint64, delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	clients, ok := m.pushStatus[storeId]
	if !ok {
		return
	}
	mp, ok := clients[clientId]
	if !ok {
		return
	}

	if !success {
		delete(clients, clientId)
		_ = mp.client.Close()
		m.log.Infof("push store:%d client:%d slave:%s dropped", storeId, clientId, remote)
		return
	}

	mp.BinlogPos = newPos
	mp.isRunning = false
	mp.nextSchedTime = time.Now().Add(delay)
}

// masterSendBinlog builds one batch starting just after mp's current
// BinlogPos and sends it, even if it is empty: a caught-up replica still
// gets an applybinlogs frame with zero rows, and the round trip still
// waits on its +OK. This is deliberate (original_source/mpov.cpp's
// masterSendBinlog does the same): without it a caught-up replica never
// sees a heartbeat, and a dead connection on a caught-up replica is never
// detected, since there would be no read whose failure could reap it
// (spec.md §4.1, §8 property 3). It returns the number of rows sent and
// the new BinlogPos the caller should commit on success.
func (m *Manager) masterSendBinlog(storeId uint32, mp *MPov) (int, uint64, error) {
	st, ok := m.segMgr.GetInstanceById(storeId)
	if !ok || !st.IsRunning() {
		return 0, mp.BinlogPos, errStoreNotRunning
	}

	txn, err := st.CreateTransaction()
	if err != nil {
		return 0, mp.BinlogPos, err
	}
	defer txn.Discard()

	cursor := txn.CreateBinlogCursor(mp.BinlogPos)
	defer cursor.Close()

	rows, nextPos, err := binlog.BuildBatch(cursor, mp.BinlogPos)
	if err != nil {
		return 0, mp.BinlogPos, err
	}

	payload, err := wire.EncodeBatch(mp.DstStoreId, rows)
	if err != nil {
		return 0, mp.BinlogPos, err
	}

	timeout := wire.WriteTimeoutFor(len(payload))
	if err := mp.client.WriteData(payload, timeout); err != nil {
		return 0, mp.BinlogPos, err
	}

	line, err := mp.client.ReadLine(timeout)
	if err != nil {
		return 0, mp.BinlogPos, err
	}
	if err := wire.ParseAck(line); err != nil {
		return 0, mp.BinlogPos, err
	}

	m.metrics.observeBatch(len(rows), len(payload))
	return len(rows), nextPos, nil
}
