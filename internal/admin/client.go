package admin

import (
	"context"

	rpcx_client "github.com/smallnest/rpcx/client"
)

// Client is the thin rpcx wrapper replctl dials; grounded on the
// teacher's netw.ClientEnd, trimmed to what a CLI needs (no retry
// discovery, no fault injection).
type Client struct {
	cli rpcx_client.XClient
}

func Dial(addr string) (*Client, error) {
	d, err := rpcx_client.NewPeer2PeerDiscovery("tcp@"+addr, "")
	if err != nil {
		return nil, err
	}
	option := rpcx_client.DefaultOption
	option.SerializeType = SerializeType
	cli := rpcx_client.NewXClient("ReplAdmin", rpcx_client.Failfast, rpcx_client.RoundRobin, d, option)
	return &Client{cli: cli}, nil
}

func (c *Client) Close() error {
	return c.cli.Close()
}

func (c *Client) Status(ctx context.Context) (*StatusReply, error) {
	reply := &StatusReply{}
	if err := c.cli.Call(ctx, "Status", &StatusArgs{}, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

func (c *Client) ListReplicas(ctx context.Context, storeId uint32, all bool) (*ListReplicasReply, error) {
	reply := &ListReplicasReply{}
	args := &ListReplicasArgs{StoreId: storeId, All: all}
	if err := c.cli.Call(ctx, "ListReplicas", args, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

func (c *Client) Kick(ctx context.Context, storeId uint32, clientId uint64) (bool, error) {
	reply := &KickReply{}
	args := &KickArgs{StoreId: storeId, ClientId: clientId}
	if err := c.cli.Call(ctx, "Kick", args, reply); err != nil {
		return false, err
	}
	return reply.Ok, nil
}
