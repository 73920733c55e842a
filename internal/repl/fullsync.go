package repl

import (
	"io"
	"os"
	"strconv"
	"time"

	"mrkv-repl/internal/store"
	"mrkv-repl/internal/wire"
	"mrkv-repl/pkg/common"
)

const fullSyncLineTimeout = 1 * time.Second

// SupplyFullSync handles a freshly accepted FULLSYNC storeId connection:
// parse the id, admission-check the full-sync pool, then hand the socket
// off to supplyFullSyncRoutine on a pool goroutine. Mirrors
// ReplManager::supplyFullSync.
func (m *Manager) SupplyFullSync(client *wire.BlockingClient, storeIdArg string) {
	// NOTE: this check is not precise — even if the pool isn't full right
	// now, it can fill up before Schedule below actually runs. Carried
	// forward from the source on purpose (spec.md §9).
	if m.fullPool.IsFull() {
		_ = client.WriteLine(errLine(common.ErrWorkerPoolFull, ""), fullSyncLineTimeout)
		_ = client.Close()
		return
	}

	storeIdN, err := strconv.ParseUint(storeIdArg, 10, 32)
	if err != nil {
		_ = client.WriteLine(errLine(common.ErrInvalidStoreId, ""), fullSyncLineTimeout)
		_ = client.Close()
		return
	}
	storeId := uint32(storeIdN)

	m.fullPool.Schedule(func() {
		m.supplyFullSyncRoutine(client, storeId)
	})
}

func (m *Manager) supplyFullSyncRoutine(client *wire.BlockingClient, storeId uint32) {
	defer client.Close()

	st, ok := m.segMgr.GetInstanceById(storeId)
	if !ok || !st.IsRunning() {
		_ = client.WriteLine(errLine(common.ErrStoreNotRunning, ""), fullSyncLineTimeout)
		return
	}

	bkInfo, err := st.Backup()
	if err != nil {
		_ = client.WriteLine(errLine(common.ErrBackupFailed, err.Error()), fullSyncLineTimeout)
		return
	}
	defer func() {
		if err := st.ReleaseBackup(); err != nil {
			m.log.Errorf("supplyFullSync end clean store:%d error:%v", storeId, err)
		}
	}()

	if err := writeManifest(client, bkInfo); err != nil {
		m.log.Errorf("store:%d writeLine failed: %v", storeId, err)
		return
	}

	if err := streamFiles(client, st, bkInfo); err != nil {
		m.log.Errorf("store:%d stream files failed: %v", storeId, err)
		return
	}

	reply, err := client.ReadLine(fullSyncLineTimeout)
	if err != nil {
		m.log.Errorf("fullsync done read %s reply failed: %v", client.RemoteAddr(), err)
		return
	}
	m.log.Infof("fullsync done read %s reply: %s", client.RemoteAddr(), reply)
	m.metrics.FullSyncsDone.Inc()
}

func writeManifest(client *wire.BlockingClient, bkInfo store.BackupInfo) error {
	entries := make([]wire.ManifestEntry, 0, len(bkInfo.FileList()))
	for _, f := range bkInfo.FileList() {
		entries = append(entries, wire.ManifestEntry{Name: f.Name, Size: f.Size})
	}
	line, err := wire.EncodeManifest(entries)
	if err != nil {
		return err
	}
	return client.WriteLine(string(line), fullSyncLineTimeout)
}

// fullSyncChunkBytes is the max chunk size when streaming a backup file,
// spec.md §4.3 step 5.
const fullSyncChunkBytes = 20 * 1024 * 1024

func streamFiles(client *wire.BlockingClient, st store.Store, bkInfo store.BackupInfo) error {
	dir := st.BackupDir()
	for _, f := range bkInfo.FileList() {
		if err := client.WriteLine(f.Name, fullSyncLineTimeout); err != nil {
			return err
		}
		if err := streamFile(client, dir+"/"+f.Name, f.Size); err != nil {
			return err
		}
	}
	return nil
}

func streamFile(client *wire.BlockingClient, path string, size int64) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	buf := make([]byte, fullSyncChunkBytes)
	remain := size
	for remain > 0 {
		batch := int64(len(buf))
		if remain < batch {
			batch = remain
		}
		if _, err := io.ReadFull(file, buf[:batch]); err != nil {
			return err
		}
		remain -= batch
		if err := client.WriteData(buf[:batch], fullSyncLineTimeout); err != nil {
			return err
		}
	}
	return nil
}
