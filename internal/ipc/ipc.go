// Package ipc exposes the action router on a Unix domain socket.
//
// Protocol: line-delimited JSON.
//   - client sends: {"action": "Power"}
//   - server replies: {"status": "ok"} or {"status": "error", "error": "msg"}
package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"
)

// Request is one client line.
type Request struct {
	Action string `json:"action"`
}

// Response is sent back for every request line.
type Response struct {
	Status string `json:"status"`          // "ok" or "error"
	Error  string `json:"error,omitempty"` // set when Status is "error"
}

// Router receives action names.
type Router interface {
	Route(name string) error
}

// Serve listens on socketPath until ctx is canceled.
func Serve(ctx context.Context, socketPath string, r Router, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.RemoveAll(socketPath); err != nil {
		return fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", socketPath, err)
	}
	defer listener.Close()
	defer os.Remove(socketPath)

	if err := os.Chmod(socketPath, 0o660); err != nil {
		return fmt.Errorf("chmod socket: %w", err)
	}

	logger.Info("IPC listening", "socket", socketPath)

	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				logger.Debug("IPC listener closed")
				return nil
			}
			logger.Error("IPC accept error", "error", err)
			continue
		}
		go handleConn(ctx, conn, r, logger)
	}
}

func handleConn(ctx context.Context, conn net.Conn, r Router, logger *slog.Logger) {
	defer conn.Close()

	// Unblock the scanner on shutdown.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	scanner := bufio.NewScanner(conn)
	encoder := json.NewEncoder(conn)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		logger.Debug("IPC received", "line", line)

		resp := handleLine([]byte(line), r)
		if err := encoder.Encode(resp); err != nil {
			logger.Error("IPC failed to send response", "error", err)
			return
		}
	}
}

func handleLine(line []byte, r Router) Response {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return Response{Status: "error", Error: fmt.Sprintf("parse request: %v", err)}
	}
	if req.Action == "" {
		return Response{Status: "error", Error: "missing action"}
	}
	if err := r.Route(req.Action); err != nil {
		return Response{Status: "error", Error: err.Error()}
	}
	return Response{Status: "ok"}
}

// SendAction asks the daemon listening on socketPath to press an action.
func SendAction(socketPath, action string) error {
	conn, err := net.DialTimeout("unix", socketPath, 2*time.Second)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	data, err := json.Marshal(Request{Action: action})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	if _, err := fmt.Fprintf(conn, "%s\n", data); err != nil {
		return fmt.Errorf("send request: %w", err)
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.Status != "ok" {
		return fmt.Errorf("ipc error: %s", resp.Error)
	}
	return nil
}
