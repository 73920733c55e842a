// Command replctl is an operator CLI against a running repld's admin RPC
// surface: list stores, list replicas, kick a stuck one. Grounded on the
// teacher's src/client/console_client.go table-rendering idiom, trimmed
// to a subcommand-per-invocation CLI instead of a REPL.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/liushuochen/gotable"
	"github.com/liushuochen/gotable/cell"

	"mrkv-repl/internal/admin"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:61002", "repld admin address")
	flag.Parse()
	args := flag.Args()

	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	cli, err := admin.Dial(*addr)
	if err != nil {
		fatalf("dial %s: %v", *addr, err)
	}
	defer cli.Close()

	ctx := context.Background()
	switch args[0] {
	case "status":
		runStatus(ctx, cli)
	case "replicas":
		runReplicas(ctx, cli, args[1:])
	case "kick":
		runKick(ctx, cli, args[1:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: replctl [-addr host:port] status|replicas [storeId]|kick <storeId> <clientId>")
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func runStatus(ctx context.Context, cli *admin.Client) {
	reply, err := cli.Status(ctx)
	if err != nil {
		fatalf("status: %v", err)
	}

	table, err := gotable.Create("StoreId", "FirstBinlogId", "Replicas")
	if err != nil {
		fatalf("table: %v", err)
	}
	for _, col := range []string{"StoreId", "FirstBinlogId", "Replicas"} {
		table.Align(col, cell.AlignLeft)
	}
	for _, s := range reply.Stores {
		_ = table.AddRow([]string{
			strconv.FormatUint(uint64(s.StoreId), 10),
			strconv.FormatUint(s.FirstBinlogId, 10),
			strconv.Itoa(s.ReplicaCount),
		})
	}
	fmt.Print(table.String())
}

func runReplicas(ctx context.Context, cli *admin.Client, args []string) {
	var storeId uint32
	all := true
	if len(args) > 0 {
		n, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			fatalf("invalid storeId %q: %v", args[0], err)
		}
		storeId = uint32(n)
		all = false
	}

	reply, err := cli.ListReplicas(ctx, storeId, all)
	if err != nil {
		fatalf("replicas: %v", err)
	}

	table, err := gotable.Create("StoreId", "ClientId", "DstStoreId", "BinlogPos", "Running", "RemoteAddr")
	if err != nil {
		fatalf("table: %v", err)
	}
	for _, r := range reply.Replicas {
		_ = table.AddRow([]string{
			strconv.FormatUint(uint64(r.StoreId), 10),
			strconv.FormatUint(r.ClientId, 10),
			strconv.FormatUint(uint64(r.DstStoreId), 10),
			strconv.FormatUint(r.BinlogPos, 10),
			strconv.FormatBool(r.Running),
			r.RemoteAddr,
		})
	}
	fmt.Print(table.String())
}

func runKick(ctx context.Context, cli *admin.Client, args []string) {
	if len(args) != 2 {
		usage()
		os.Exit(1)
	}
	storeId, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		fatalf("invalid storeId %q: %v", args[0], err)
	}
	clientId, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		fatalf("invalid clientId %q: %v", args[1], err)
	}

	ok, err := cli.Kick(ctx, uint32(storeId), clientId)
	if err != nil {
		fatalf("kick: %v", err)
	}
	if ok {
		fmt.Println("kicked")
	} else {
		fmt.Println("no such replica")
	}
}
