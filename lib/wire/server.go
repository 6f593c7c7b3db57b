// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/bureau-foundation/buildclient/lib/codec"
)

// readTimeout bounds how long a connection may take to deliver its
// request.
const readTimeout = 30 * time.Second

// writeTimeout bounds each response write.
const writeTimeout = 10 * time.Second

// Handler implements the server side of the protocol. Cookie checks
// are the handler's job: it knows the cookies it published.
type Handler interface {
	Ping(ctx context.Context, request *PingRequest) (*PingResponse, error)

	// Run executes a command, delivering responses through send. The
	// last response sent must have Finished set. Returning an error
	// closes the connection without a terminal response.
	Run(ctx context.Context, request *RunRequest, send func(*RunResponse) error) error

	Cancel(ctx context.Context, request *CancelRequest) (*CancelResponse, error)
}

// Server accepts connections and dispatches requests to a Handler.
type Server struct {
	handler Handler
	logger  *slog.Logger

	activeConnections sync.WaitGroup
}

// NewServer returns a server dispatching to handler.
func NewServer(handler Handler, logger *slog.Logger) *Server {
	return &Server{handler: handler, logger: logger}
}

// Serve accepts connections on listener until ctx is cancelled, then
// closes the listener and waits for in-flight calls to return.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		s.activeConnections.Add(1)
		go func() {
			defer s.activeConnections.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.activeConnections.Wait()
	return nil
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(readTimeout))

	var raw codec.RawMessage
	if err := codec.NewDecoder(io.LimitReader(conn, codec.MaxMessageSize)).Decode(&raw); err != nil {
		if !errors.Is(err, io.EOF) {
			s.logger.Debug("invalid request", "error", err)
		}
		return
	}
	conn.SetReadDeadline(time.Time{})

	var header struct {
		Action string `cbor:"action"`
	}
	if err := codec.Unmarshal(raw, &header); err != nil {
		s.logger.Debug("invalid request header", "error", err)
		return
	}

	var err error
	switch header.Action {
	case ActionPing:
		err = s.handlePing(ctx, conn, raw)
	case ActionRun:
		err = s.handleRun(ctx, conn, raw)
	case ActionCancel:
		err = s.handleCancel(ctx, conn, raw)
	default:
		err = fmt.Errorf("unknown action %q", header.Action)
	}
	if err != nil {
		s.logger.Debug("request failed", "action", header.Action, "error", err)
	}
}

func (s *Server) handlePing(ctx context.Context, conn net.Conn, raw []byte) error {
	var request PingRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return s.write(conn, &PingResponse{Error: fmt.Sprintf("invalid ping: %v", err)})
	}
	response, err := s.handler.Ping(ctx, &request)
	if err != nil {
		return s.write(conn, &PingResponse{Error: err.Error()})
	}
	return s.write(conn, response)
}

func (s *Server) handleCancel(ctx context.Context, conn net.Conn, raw []byte) error {
	var request CancelRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return s.write(conn, &CancelResponse{Error: fmt.Sprintf("invalid cancel: %v", err)})
	}
	response, err := s.handler.Cancel(ctx, &request)
	if err != nil {
		return s.write(conn, &CancelResponse{Error: err.Error()})
	}
	return s.write(conn, response)
}

func (s *Server) handleRun(ctx context.Context, conn net.Conn, raw []byte) error {
	var request RunRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return fmt.Errorf("invalid run request: %w", err)
	}
	encoder := codec.NewEncoder(conn)
	send := func(response *RunResponse) error {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		return encoder.Encode(response)
	}
	return s.handler.Run(ctx, &request, send)
}

func (s *Server) write(conn net.Conn, response any) error {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return codec.NewEncoder(conn).Encode(response)
}
