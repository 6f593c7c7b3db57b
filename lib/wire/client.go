// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/bureau-foundation/buildclient/lib/codec"
)

// dialTimeout bounds connection establishment when the context has no
// earlier deadline. A loopback connect that takes this long means the
// server's accept loop is wedged.
const dialTimeout = 5 * time.Second

// ServerError is a rejection reported by the server in a ping or
// cancel response.
type ServerError struct {
	Action  string
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server rejected %q: %s", e.Action, e.Message)
}

// Client issues calls to one server endpoint.
type Client struct {
	address string
}

// NewClient returns a client for the loopback endpoint address
// ("127.0.0.1:PORT").
func NewClient(address string) *Client {
	return &Client{address: address}
}

// Address returns the endpoint this client talks to.
func (c *Client) Address() string { return c.address }

// Ping sends cookie and returns the cookie the server echoes.
func (c *Client) Ping(ctx context.Context, cookie string) (string, error) {
	var response PingResponse
	err := c.call(ctx, &PingRequest{Action: ActionPing, Cookie: cookie}, &response)
	if err != nil {
		return "", fmt.Errorf("ping %s: %w", c.address, err)
	}
	if response.Error != "" {
		return "", &ServerError{Action: ActionPing, Message: response.Error}
	}
	return response.Cookie, nil
}

// Cancel asks the server to interrupt a command and returns the cookie
// the server echoes.
func (c *Client) Cancel(ctx context.Context, request *CancelRequest) (string, error) {
	request.Action = ActionCancel
	var response CancelResponse
	if err := c.call(ctx, request, &response); err != nil {
		return "", fmt.Errorf("cancel on %s: %w", c.address, err)
	}
	if response.Error != "" {
		return "", &ServerError{Action: ActionCancel, Message: response.Error}
	}
	return response.Cookie, nil
}

// Run submits a command and returns the response stream. The context
// bounds connecting and writing the request only; reading the stream
// has no deadline. The caller must Close the stream.
func (c *Client) Run(ctx context.Context, request *RunRequest) (*RunStream, error) {
	request.Action = ActionRun
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("run on %s: %w", c.address, err)
	}

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	err = codec.NewEncoder(conn).Encode(request)
	stopped := stop()
	if err != nil || !stopped {
		conn.Close()
		if err == nil {
			err = ctx.Err()
		}
		return nil, fmt.Errorf("sending run request to %s: %w", c.address, err)
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		tcp.CloseWrite()
	}

	return &RunStream{conn: conn, decoder: codec.NewDecoder(conn)}, nil
}

// call performs a single request/response exchange under ctx.
func (c *Client) call(ctx context.Context, request, response any) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		return fmt.Errorf("writing request: %w", err)
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		tcp.CloseWrite()
	}
	if err := codec.NewDecoder(io.LimitReader(conn, codec.MaxMessageSize)).Decode(response); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("reading response: %w", ctx.Err())
		}
		return fmt.Errorf("reading response: %w", err)
	}
	return nil
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.address)
	if err != nil {
		return nil, fmt.Errorf("connecting: %w", err)
	}
	return conn, nil
}

// RunStream reads the responses to one run request.
type RunStream struct {
	conn    net.Conn
	decoder *codec.Decoder
}

// Next returns the next response. At the end of the stream it returns
// io.EOF; any other error means the transport failed mid-stream.
func (s *RunStream) Next() (*RunResponse, error) {
	var response RunResponse
	if err := s.decoder.Decode(&response); err != nil {
		return nil, err
	}
	return &response, nil
}

// Close tears down the connection. Safe to call more than once and
// concurrently with Next, which then fails.
func (s *RunStream) Close() error {
	return s.conn.Close()
}
