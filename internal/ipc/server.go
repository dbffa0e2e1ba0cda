package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"
)

// Handler processes one IPC command request.
type Handler interface {
	Handle(context.Context, Request) Response
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(context.Context, Request) Response

func (f HandlerFunc) Handle(ctx context.Context, req Request) Response {
	return f(ctx, req)
}

// Serve accepts unix-socket clients until context cancellation or listener close.
//
// Each connection carries exactly one request line and one response line.
// logger may be nil.
func Serve(ctx context.Context, listener net.Listener, handler Handler, logger *slog.Logger) error {
	var wg sync.WaitGroup

	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				wg.Wait()
				return nil
			}
			return fmt.Errorf("accept IPC connection: %w", err)
		}

		wg.Add(1)
		go func(c net.Conn) {
			defer wg.Done()
			defer c.Close()
			serveConn(ctx, c, handler, logger)
		}(conn)
	}
}

func serveConn(ctx context.Context, conn net.Conn, handler Handler, logger *slog.Logger) {
	reader := bufio.NewReader(conn)
	line, err := reader.ReadBytes('\n')
	if err != nil {
		_ = json.NewEncoder(conn).Encode(Response{OK: false, Error: fmt.Sprintf("read request: %v", err)})
		return
	}

	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		if logger != nil {
			logger.Debug("ipc request rejected", "error", err.Error())
		}
		_ = json.NewEncoder(conn).Encode(Response{OK: false, Error: fmt.Sprintf("decode request: %v", err)})
		return
	}

	started := time.Now()
	resp := handler.Handle(ctx, req)
	if logger != nil {
		logger.Debug("ipc request handled",
			"command", req.Command,
			"ok", resp.OK,
			"duration_ms", time.Since(started).Milliseconds(),
		)
	}
	_ = json.NewEncoder(conn).Encode(resp)
}
