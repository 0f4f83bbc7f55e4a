package bus

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Handler dispatches one accepted Request and returns the Response to
// reply with. It is responsible for running the request through a
// validator and, on acceptance, spawning the background work; Handler
// itself must return quickly — the server replies as soon as Handler
// returns.
type Handler func(req Request) Response

// Server owns one listening Unix socket and accepts connections serially:
// each request is brief (validate, dispatch, reply), so there is no
// benefit to concurrent accepts and real benefit to the simplicity of a
// single accept loop.
type Server struct {
	SocketPath string
	Handler    Handler
	Logger     *zap.Logger

	listener net.Listener
}

// unlinkRetries and unlinkDelay implement the socket-bootstrap contract:
// attempt to unlink a stale socket file, retrying briefly before giving up.
const (
	unlinkRetries = 10
	unlinkDelay   = 200 * time.Millisecond
)

// Listen performs the socket bootstrap: unlink any stale socket file
// (retrying), bind, and apply the parent directory's permission bits so a
// less-privileged peer (the API) can connect.
func (s *Server) Listen() error {
	var lastErr error
	for i := 0; i < unlinkRetries; i++ {
		if err := os.Remove(s.SocketPath); err != nil && !os.IsNotExist(err) {
			lastErr = err
			time.Sleep(unlinkDelay)
			continue
		}
		lastErr = nil
		break
	}
	if lastErr != nil {
		return fmt.Errorf("bus: failed to unlink stale socket %s after %d attempts: %w", s.SocketPath, unlinkRetries, lastErr)
	}

	ln, err := net.Listen("unix", s.SocketPath)
	if err != nil {
		return fmt.Errorf("bus: failed to listen on %s: %w", s.SocketPath, err)
	}

	parentInfo, err := os.Stat(filepath.Dir(s.SocketPath))
	if err == nil {
		if err := os.Chmod(s.SocketPath, parentInfo.Mode().Perm()); err != nil {
			s.Logger.Warn("bus: failed to inherit parent permission bits", zap.Error(err))
		}
	}

	s.listener = ln
	return nil
}

// Serve runs the accept loop until the listener is closed. Unlike the
// source this project replaces — which recursively reopened the listener
// inside a finally block — this is a plain loop: a stale connection or a
// transient accept error never causes the server to reinvoke itself.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if isClosedErr(err) {
				return nil
			}
			s.Logger.Error("bus: accept failed", zap.Error(err))
			continue
		}
		s.serveOne(conn)
	}
}

// Close shuts the listener down, ending Serve's loop.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

// serveOne handles exactly one request/response cycle on conn, then
// closes it — accept is serial, but each request's handling is brief.
func (s *Server) serveOne(conn net.Conn) {
	defer conn.Close()

	body, err := readUntilIdle(conn)
	if err != nil {
		s.Logger.Warn("bus: read failed", zap.Error(err))
		return
	}

	var req Request
	resp := func() Response {
		if uerr := json.Unmarshal(body, &req); uerr != nil {
			return Response{Code: int(CodeBadRequest), Status: "invalid request"}
		}
		return s.dispatch(req)
	}()

	encoded, err := json.Marshal(resp)
	if err != nil {
		s.Logger.Error("bus: failed to marshal response", zap.Error(err))
		return
	}
	if _, err := conn.Write(encoded); err != nil {
		s.Logger.Warn("bus: write failed", zap.Error(err))
	}
}

// dispatch recovers from a panic escaping Handler so an uncaught error
// never takes the socket server down — it becomes a 500 to the caller
// instead, per spec.md §4.1.
func (s *Server) dispatch(req Request) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			s.Logger.Error("bus: handler panicked", zap.Any("recover", r))
			resp = Response{Code: int(CodeInternal), Status: "error"}
		}
	}()
	return s.Handler(req)
}

// readUntilIdle reads from conn until a read pauses for IdleWindow without
// new bytes arriving, or the peer closes the connection.
func readUntilIdle(conn net.Conn) ([]byte, error) {
	var buf bytes.Buffer
	chunk := make([]byte, 4096)

	for {
		if err := conn.SetReadDeadline(time.Now().Add(IdleWindow * time.Millisecond)); err != nil {
			return nil, err
		}
		n, err := conn.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
		}
		if err != nil {
			if isTimeout(err) {
				if buf.Len() > 0 {
					return buf.Bytes(), nil
				}
				continue
			}
			if err == io.EOF {
				return buf.Bytes(), nil
			}
			return nil, err
		}
	}
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

func isClosedErr(err error) bool {
	return errors.Is(err, net.ErrClosed)
}
