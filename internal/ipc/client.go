package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call(ServiceName+".Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueAdd enqueues a new script.
func (c *Client) QueueAdd(req QueueAddRequest) (*QueueAddResponse, error) {
	var resp QueueAddResponse
	if err := c.client.Call(ServiceName+".QueueAdd", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueList lists queue items, optionally filtered by status.
func (c *Client) QueueList(req QueueListRequest) (*QueueListResponse, error) {
	var resp QueueListResponse
	if err := c.client.Call(ServiceName+".QueueList", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueRemove deletes one item.
func (c *Client) QueueRemove(id string) (*QueueRemoveResponse, error) {
	var resp QueueRemoveResponse
	if err := c.client.Call(ServiceName+".QueueRemove", QueueRemoveRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueRetry requeues a finished item, optionally resuming at a stage.
func (c *Client) QueueRetry(id, fromStage string) (*QueueRetryResponse, error) {
	var resp QueueRetryResponse
	req := QueueRetryRequest{ID: id, FromStage: fromStage}
	if err := c.client.Call(ServiceName+".QueueRetry", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueClear removes items in the given scope: "all", "completed", "failed".
func (c *Client) QueueClear(scope string) (*QueueClearResponse, error) {
	var resp QueueClearResponse
	if err := c.client.Call(ServiceName+".QueueClear", QueueClearRequest{Scope: scope}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Pause stops dispatching new items.
func (c *Client) Pause() (*PauseResponse, error) {
	var resp PauseResponse
	if err := c.client.Call(ServiceName+".Pause", PauseRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Resume re-enables dispatching.
func (c *Client) Resume() (*ResumeResponse, error) {
	var resp ResumeResponse
	if err := c.client.Call(ServiceName+".Resume", ResumeRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop asks the daemon process to shut down.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call(ServiceName+".Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
