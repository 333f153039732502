// Package sqlclient talks to a novaquery server over the framed wire
// protocol. Requests on one Client run one at a time.
package sqlclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/tuannm99/novaquery/internal/sql/executor"
	"github.com/tuannm99/novaquery/server/novaquerywire"
)

var ErrClosed = errors.New("sqlclient: client closed")

type Client struct {
	mu      sync.Mutex
	conn    net.Conn
	codec   *novaquerywire.Codec
	nextID  uint64
	session string
	closed  bool

	dialTimeout    time.Duration
	requestTimeout time.Duration
}

type Option func(*Client)

// WithDialTimeout bounds connection setup.
func WithDialTimeout(d time.Duration) Option {
	return func(c *Client) { c.dialTimeout = d }
}

// WithRequestTimeout bounds each request whose context has no deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) { c.requestTimeout = d }
}

// Dial connects to a server at addr.
func Dial(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	c := &Client{}
	for _, opt := range opts {
		opt(c)
	}

	d := net.Dialer{Timeout: c.dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("sqlclient: dial %s: %w", addr, err)
	}
	c.conn = conn
	c.codec = novaquerywire.NewCodec(conn)
	return c, nil
}

// Close closes the connection. Closing twice, or a nil Client, is a no-op.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.conn == nil {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

// Session is the id the server gave this connection, empty until the first
// response arrives.
func (c *Client) Session() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *Client) Exec(ctx context.Context, sql string, params ...any) (*executor.Result, error) {
	resp, err := c.Do(ctx, novaquerywire.ExecuteRequest{SQL: sql, Params: params})
	if err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// Explain returns the server's rendering of the compiled statement.
func (c *Client) Explain(ctx context.Context, sql string, params ...any) (string, error) {
	resp, err := c.Do(ctx, novaquerywire.ExecuteRequest{SQL: sql, Params: params, Explain: true})
	if err != nil {
		return "", err
	}
	return resp.Plan, nil
}

// Do sends req and waits for its response; req.ID is assigned here. A
// statement the server rejected comes back as a *RemoteError and the
// connection stays usable. Any transport failure closes the Client.
func (c *Client) Do(ctx context.Context, req novaquerywire.ExecuteRequest) (*novaquerywire.ExecuteResponse, error) {
	if c == nil {
		return nil, ErrClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.conn == nil {
		return nil, ErrClosed
	}

	c.nextID++
	req.ID = c.nextID

	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		// the stream may be mid-frame, so the connection is done
		c.closed = true
		_ = c.conn.Close()
		return nil, err
	}
	if resp.Session != "" {
		c.session = resp.Session
	}
	if resp.Error != "" {
		return nil, &RemoteError{Kind: resp.Kind, Msg: resp.Error}
	}
	return resp, nil
}

func (c *Client) roundTrip(ctx context.Context, req novaquerywire.ExecuteRequest) (*novaquerywire.ExecuteResponse, error) {
	deadline, ok := ctx.Deadline()
	if !ok && c.requestTimeout > 0 {
		deadline = time.Now().Add(c.requestTimeout)
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, err
	}
	// a cancelled context unblocks the pending read
	stop := context.AfterFunc(ctx, func() { _ = c.conn.SetDeadline(time.Unix(1, 0)) })
	defer stop()

	if err := c.codec.Write(req); err != nil {
		return nil, c.wrap(ctx, "send", err)
	}
	var resp novaquerywire.ExecuteResponse
	if err := c.codec.Read(&resp); err != nil {
		return nil, c.wrap(ctx, "receive", err)
	}
	if resp.ID != req.ID {
		return nil, fmt.Errorf("sqlclient: response %d answers request %d", resp.ID, req.ID)
	}
	return &resp, nil
}

func (c *Client) wrap(ctx context.Context, op string, err error) error {
	if _, ok := ctx.Deadline(); ok && errors.Is(err, os.ErrDeadlineExceeded) {
		// the socket deadline is the context's; let the context catch up
		<-ctx.Done()
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("sqlclient: %s: %w", op, ctxErr)
	}
	return fmt.Errorf("sqlclient: %s: %w", op, err)
}

// RemoteError is a statement failure reported by the server. Kind is the
// server's error kind, such as "parse" or "eval".
type RemoteError struct {
	Kind string
	Msg  string
}

func (e *RemoteError) Error() string { return e.Msg }
