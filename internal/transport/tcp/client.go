package tcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"time"
)

// DefaultClientTimeout bounds a whole exchange, generation included.
const DefaultClientTimeout = 120 * time.Second

const maxResponseSize = 4 << 20

// ReplyError is a reply with status "error".
type ReplyError struct {
	Message string
}

func (e *ReplyError) Error() string { return "server: " + e.Message }

// Client talks to a ragd question server.
type Client struct {
	addr    string
	timeout time.Duration
	dialer  net.Dialer
}

// NewClient creates a client for addr. A zero timeout uses DefaultClientTimeout.
func NewClient(addr string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultClientTimeout
	}
	return &Client{addr: addr, timeout: timeout}
}

// Ask sends a question. A server-side error reply is returned as *ReplyError.
func (c *Client) Ask(ctx context.Context, question string) (Response, error) {
	return c.do(ctx, Request{Question: question})
}

// Ping checks that the server is reachable and answering.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, Request{Command: CommandPing})
	if err != nil {
		return err
	}
	if resp.Answer != "pong" {
		return fmt.Errorf("unexpected ping reply %q", resp.Answer)
	}
	return nil
}

// Status fetches readiness and the pipeline report.
func (c *Client) Status(ctx context.Context) (Response, error) {
	return c.do(ctx, Request{Command: CommandStatus})
}

func (c *Client) do(ctx context.Context, req Request) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, err := c.dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return Response{}, fmt.Errorf("dial %s: %w", c.addr, err)
	}
	defer func() { _ = conn.Close() }()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	// unblock reads when the caller cancels
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	data, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}
	if _, err := conn.Write(data); err != nil {
		return Response{}, fmt.Errorf("send request: %w", err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.CloseWrite()
	}

	raw, err := io.ReadAll(io.LimitReader(conn, maxResponseSize))
	if err != nil {
		if ctx.Err() != nil {
			return Response{}, fmt.Errorf("read response: %w", ctx.Err())
		}
		return Response{}, fmt.Errorf("read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	if resp.Status != StatusSuccess {
		return resp, &ReplyError{Message: resp.Answer}
	}
	return resp, nil
}
