// Package repl is the master-side replication core: it owns per-store
// replica bookkeeping (MPov), the full-sync and incremental-push worker
// pools, the handshake logic, and the periodic push scheduler. It is a
// direct port of tendisplus's ReplManager (see
// original_source/src/tendisplus/replication/mpov.cpp), restructured
// around Go's concurrency primitives the way the teacher structures its
// ShardKV and ShardMaster servers.
package repl

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"mrkv-repl/internal/repl/etc"
	"mrkv-repl/internal/store"
)

// Manager owns every per-store replica table and both worker pools. All
// of pushStatus/firstBinlogId/clientIdGen is serialised by mu; mu must
// never be held across blocking socket I/O (spec.md §9).
type Manager struct {
	log    *logrus.Logger
	conf   etc.ReplConf
	segMgr store.SegmentMgr

	mu            sync.Mutex
	pushStatus    map[uint32]map[uint64]*MPov
	firstBinlogId map[uint32]uint64
	clientIdGen   uint64

	fullPool *WorkerPool
	incrPool *WorkerPool

	metrics *Metrics

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewManager(conf etc.ReplConf, segMgr store.SegmentMgr, log *logrus.Logger) *Manager {
	return &Manager{
		log:           log,
		conf:          conf,
		segMgr:        segMgr,
		pushStatus:    make(map[uint32]map[uint64]*MPov),
		firstBinlogId: make(map[uint32]uint64),
		fullPool:      NewWorkerPool("full_pusher", conf.FullSyncPoolSize),
		incrPool:      NewWorkerPool("incr_pusher", conf.IncrPushPoolSize),
		metrics:       NewMetrics(),
		stopCh:        make(chan struct{}),
	}
}

// Start launches the push scheduler and (if configured) the Graphite
// metrics reporter. It does not open any listener itself — that is the
// caller's job, dispatching accepted connections to SupplyFullSync /
// RegisterIncrSync.
func (m *Manager) Start() {
	interval := time.Duration(m.conf.SchedIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	m.wg.Add(1)
	go m.schedulerLoop(interval)

	if err := m.metrics.StartGraphiteReporter(m.conf.Graphite, m.stopCh); err != nil {
		m.log.Warnf("repl: graphite reporter not started: %v", err)
	}
}

// Stop signals the scheduler loop to exit and waits for in-flight push
// and full-sync tasks to finish. It does not forcibly close any replica
// socket: a full-sync socket closes as its routine returns, and the
// sockets of registered MPov entries stay open.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.wg.Wait()
	m.incrPool.Stop()
	m.fullPool.Stop()
}

// MetricsRegistry exposes the Prometheus registry backing this manager's
// counters, for the admin surface to serve over /metrics.
func (m *Manager) MetricsRegistry() *prometheus.Registry {
	return m.metrics.Registry()
}

// SetFirstBinlogId records the smallest binlog id still retained for a
// store. The retention policy that decides this value lives outside the
// replication core (spec.md §3 invariant 4); this is just the setter the
// owning subsystem calls.
func (m *Manager) SetFirstBinlogId(storeId uint32, pos uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.firstBinlogId[storeId] = pos
}

// Snapshot returns a point-in-time copy of every live MPov, for the admin
// surface to render.
func (m *Manager) Snapshot() []MPovView {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []MPovView
	for storeId, clients := range m.pushStatus {
		for _, mp := range clients {
			out = append(out, MPovView{
				StoreId:    storeId,
				ClientId:   mp.ClientId,
				DstStoreId: mp.DstStoreId,
				BinlogPos:  mp.BinlogPos,
				Running:    mp.isRunning,
				RemoteAddr: mp.RemoteAddr(),
			})
		}
	}
	return out
}

// Kick drops an MPov entry out of band, closing its socket. The next
// scheduler tick (or the in-flight push routine's finaliser) simply finds
// nothing to reschedule.
func (m *Manager) Kick(storeId uint32, clientId uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	clients, ok := m.pushStatus[storeId]
	if !ok {
		return false
	}
	mp, ok := clients[clientId]
	if !ok {
		return false
	}
	delete(clients, clientId)
	_ = mp.client.Close()
	return true
}

// MPovView is a read-only snapshot row, decoupled from MPov so callers
// outside this package never see the live pointer.
type MPovView struct {
	StoreId    uint32
	ClientId   uint64
	DstStoreId uint32
	BinlogPos  uint64
	Running    bool
	RemoteAddr string
}

// StoreSummary is one row of the per-store overview the admin surface's
// Status call renders.
type StoreSummary struct {
	StoreId       uint32
	FirstBinlogId uint64
	ReplicaCount  int
}

// Stores returns one summary row per store that has either a known
// firstBinlogId or at least one registered replica.
func (m *Manager) Stores() []StoreSummary {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[uint32]struct{})
	for storeId := range m.firstBinlogId {
		seen[storeId] = struct{}{}
	}
	for storeId := range m.pushStatus {
		seen[storeId] = struct{}{}
	}

	out := make([]StoreSummary, 0, len(seen))
	for storeId := range seen {
		out = append(out, StoreSummary{
			StoreId:       storeId,
			FirstBinlogId: m.firstBinlogId[storeId],
			ReplicaCount:  len(m.pushStatus[storeId]),
		})
	}
	return out
}
