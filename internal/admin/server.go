// Package admin is the control-plane RPC surface: an rpcx service,
// separate from the raw-socket FULLSYNC/INCRSYNC data plane in
// internal/wire, that lets an operator or a higher-level orchestrator
// inspect and nudge the replication manager. Grounded on the teacher's
// internal/netw.RpcxServer and internal/master's StartRPCServer, adapted
// from registering raft handlers to registering replManager's three
// read/control calls.
package admin

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/smallnest/rpcx/log"
	"github.com/smallnest/rpcx/protocol"
	"github.com/smallnest/rpcx/server"
	"github.com/smallnest/rpcx/share"

	admincodec "mrkv-repl/internal/admin/codec"
	"mrkv-repl/internal/repl"
)

// SerializeType is the rpcx serialize type id this package registers its
// msgp codec under. 5 matches the teacher's own choice in netw/rpcx.go;
// since this is a fully separate rpcx server instance from anything the
// teacher's code registers, there is no collision to worry about.
const SerializeType = protocol.SerializeType(5)

func init() {
	log.SetDummyLogger()
	share.Codecs[SerializeType] = &admincodec.MsgpCodec{}
}

// Server exposes one replication Manager over rpcx under the service
// name "ReplAdmin".
type Server struct {
	addr       string
	metricsAddr string
	log        *logrus.Logger
	mgr        *repl.Manager
	serv       *server.Server
	metricsSrv *http.Server
}

func NewServer(addr, metricsAddr string, mgr *repl.Manager, log *logrus.Logger) *Server {
	return &Server{addr: addr, metricsAddr: metricsAddr, log: log, mgr: mgr, serv: server.NewServer()}
}

func (s *Server) Start() error {
	if err := s.serv.RegisterName("ReplAdmin", (*service)(s), ""); err != nil {
		return fmt.Errorf("admin: register: %w", err)
	}
	go func() {
		if err := s.serv.Serve("tcp", s.addr); err != nil {
			s.log.Errorf("admin: serve: %v", err)
		}
	}()

	if s.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(s.mgr.MetricsRegistry(), promhttp.HandlerOpts{}))
		s.metricsSrv = &http.Server{Addr: s.metricsAddr, Handler: mux}
		go func() {
			if err := s.metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.log.Errorf("admin: metrics server: %v", err)
			}
		}()
	}
	return nil
}

func (s *Server) Stop() {
	_ = s.serv.Close()
	if s.metricsSrv != nil {
		_ = s.metricsSrv.Close()
	}
}

// service is Server under rpcx's calling convention: every exported
// method is one RPC, shaped (ctx, *Args, *Reply) error.
type service Server

func (s *service) Status(ctx context.Context, args *StatusArgs, reply *StatusReply) error {
	for _, row := range s.mgr.Stores() {
		reply.Stores = append(reply.Stores, StoreStatus{
			StoreId:       row.StoreId,
			FirstBinlogId: row.FirstBinlogId,
			ReplicaCount:  row.ReplicaCount,
		})
	}
	return nil
}

func (s *service) ListReplicas(ctx context.Context, args *ListReplicasArgs, reply *ListReplicasReply) error {
	for _, mp := range s.mgr.Snapshot() {
		if !args.All && mp.StoreId != args.StoreId {
			continue
		}
		reply.Replicas = append(reply.Replicas, ReplicaView{
			StoreId:    mp.StoreId,
			ClientId:   mp.ClientId,
			DstStoreId: mp.DstStoreId,
			BinlogPos:  mp.BinlogPos,
			Running:    mp.Running,
			RemoteAddr: mp.RemoteAddr,
		})
	}
	return nil
}

func (s *service) Kick(ctx context.Context, args *KickArgs, reply *KickReply) error {
	reply.Ok = s.mgr.Kick(args.StoreId, args.ClientId)
	return nil
}
