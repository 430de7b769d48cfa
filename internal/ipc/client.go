package ipc

import (
	"context"
	"errors"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"strings"
	"time"

	"sessionq/internal/api"
	"sessionq/internal/queue"
	"sessionq/internal/worker"
)

const (
	dialTimeout       = 2 * time.Second
	claimReplyTimeout = 5 * time.Second
)

// Client provides RPC access to the daemon. It is safe for concurrent use.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

var _ worker.Source = (*Client)(nil)

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, dialTimeout)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// call invokes method and waits for the reply or ctx cancellation.
func (c *Client) call(ctx context.Context, method string, req, resp any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	pending := c.client.Go(ServiceName+"."+method, req, resp, make(chan *rpc.Call, 1))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case done := <-pending.Done:
		return remoteError(done.Error)
	}
}

// remoteError restores sentinel errors that lost identity on the wire.
func remoteError(err error) error {
	var serverErr rpc.ServerError
	if !errors.As(err, &serverErr) {
		return err
	}
	msg := string(serverErr)
	switch {
	case msg == api.ErrJournalDisabled.Error():
		return api.ErrJournalDisabled
	case strings.HasPrefix(msg, api.ErrInvalidKind.Error()):
		return errors.Join(api.ErrInvalidKind, errors.New(msg))
	}
	return err
}

// SubmitItem adds or overwrites an item.
func (c *Client) SubmitItem(ctx context.Context, req SubmitRequest) (*SubmitResponse, error) {
	var resp SubmitResponse
	if err := c.call(ctx, "Submit", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ClaimItem asks the daemon for the next claimable item. Once the request is
// sent the daemon may commit the claim, so cancelling ctx only stops a call
// that has not been sent yet; an in-flight claim is always awaited, up to
// claimReplyTimeout, and its item returned.
func (c *Client) ClaimItem(ctx context.Context, consumerID string) (*ClaimResponse, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), claimReplyTimeout)
	defer cancel()
	var resp ClaimResponse
	if err := c.call(waitCtx, "Claim", ClaimRequest{ConsumerID: consumerID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FinalizeItem removes an item and releases its key.
func (c *Client) FinalizeItem(ctx context.Context, consumerID, itemID string) (*FinalizeResponse, error) {
	var resp FinalizeResponse
	req := FinalizeRequest{ConsumerID: consumerID, ItemID: itemID}
	if err := c.call(ctx, "Finalize", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Submit implements worker.Source.
func (c *Client) Submit(ctx context.Context, item queue.Item) error {
	_, err := c.SubmitItem(ctx, SubmitRequest{ID: item.ID, Key: item.Key, Payload: item.Payload})
	return err
}

// Claim implements worker.Source.
func (c *Client) Claim(ctx context.Context, consumerID string) (queue.Item, bool, error) {
	resp, err := c.ClaimItem(ctx, consumerID)
	if err != nil {
		return queue.Item{}, false, err
	}
	if !resp.Found || resp.Item == nil {
		return queue.Item{}, false, nil
	}
	return resp.Item.ToItem(), true, nil
}

// Finalize implements worker.Source.
func (c *Client) Finalize(ctx context.Context, consumerID, itemID string) error {
	_, err := c.FinalizeItem(ctx, consumerID, itemID)
	return err
}

// Count returns the number of pending items, in-flight included.
func (c *Client) Count(ctx context.Context) (int, error) {
	var resp CountResponse
	if err := c.call(ctx, "Count", CountRequest{}, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// List returns pending items in insertion order with queue stats.
func (c *Client) List(ctx context.Context) (*QueueListResponse, error) {
	var resp QueueListResponse
	if err := c.call(ctx, "List", ListRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.call(ctx, "Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Journal queries the daemon's audit journal.
func (c *Client) Journal(ctx context.Context, req JournalRequest) (*JournalResponse, error) {
	var resp JournalResponse
	if err := c.call(ctx, "Journal", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
