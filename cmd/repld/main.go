// Command repld is the replication core's server process: it opens one
// LevelDBStore per configured instance, wires them into a repl.Manager,
// starts the admin RPC surface, and serves FULLSYNC/INCRSYNC connections
// until killed. Grounded on the teacher's internal/master/main and
// internal/replica/main entrypoints.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"mrkv-repl/internal/admin"
	"mrkv-repl/internal/repl"
	"mrkv-repl/internal/repl/etc"
	"mrkv-repl/internal/store"
	"mrkv-repl/pkg/common"
)

func main() {
	conf := makeConfig()

	logger, err := common.InitLogger(conf.LogLevel, "repld")
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	segMgr, err := openStores(conf, logger)
	if err != nil {
		logger.Fatalf("open stores: %v", err)
	}

	mgr := repl.NewManager(conf, segMgr, logger)
	mgr.Start()

	adminServ := admin.NewServer(conf.AdminAddr, conf.MetricsAddr, mgr, logger)
	if err := adminServ.Start(); err != nil {
		logger.Fatalf("start admin server: %v", err)
	}

	ln, err := net.Listen("tcp", conf.ListenAddr)
	if err != nil {
		logger.Fatalf("listen %s: %v", conf.ListenAddr, err)
	}
	logger.Infof("repld listening on %s, admin on %s", conf.ListenAddr, conf.AdminAddr)

	go func() {
		if err := mgr.Serve(ln); err != nil {
			logger.Warnf("repl listener closed: %v", err)
		}
	}()

	waitForSignal(logger)

	_ = ln.Close()
	adminServ.Stop()
	mgr.Stop()
}

func makeConfig() etc.ReplConf {
	var confPath string
	flag.StringVar(&confPath, "c", "", "config file path")
	flag.Parse()

	if confPath == "" {
		return etc.Default()
	}
	return etc.ParseReplConf(confPath)
}

func openStores(conf etc.ReplConf, logger *log.Logger) (*store.InMemSegmentMgr, error) {
	segMgr := store.NewInMemSegmentMgr()
	for i := uint32(0); i < conf.InstanceNum; i++ {
		dir := fmt.Sprintf("%s/store%d", conf.DataDir, i)
		st, err := store.OpenLevelDBStore(dir)
		if err != nil {
			return nil, fmt.Errorf("store %d: %w", i, err)
		}
		segMgr.Register(i, st)
		logger.Infof("opened store %d at %s", i, dir)
	}
	return segMgr, nil
}

func waitForSignal(logger *log.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Infof("received signal %v, shutting down", sig)
}
