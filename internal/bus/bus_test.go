package bus

import (
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestServer(t *testing.T, handler Handler) (*Server, string) {
	t.Helper()
	socketPath := filepath.Join(t.TempDir(), "test.sock")
	srv := &Server{SocketPath: socketPath, Handler: handler, Logger: zap.NewNop()}
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	go srv.Serve()
	t.Cleanup(func() { srv.Close() })
	return srv, socketPath
}

func TestClientServer_RoundTrip(t *testing.T) {
	_, socketPath := newTestServer(t, func(req Request) Response {
		if req.Cmd != "full_backup" {
			return Response{Code: int(CodeBadRequest), Status: "unexpected cmd"}
		}
		return Response{Code: int(CodeAccepted), Status: "accepted", ID: "cmd-123"}
	})

	client := &Client{SocketPath: socketPath, Timeout: 2 * time.Second}
	resp := client.Call(Request{Cmd: "full_backup", Args: map[string]any{"id": "b-1"}})

	if resp.Code != int(CodeAccepted) {
		t.Fatalf("expected 202, got %d (%s)", resp.Code, resp.Status)
	}
	if resp.ID != "cmd-123" {
		t.Errorf("expected id cmd-123, got %q", resp.ID)
	}
}

func TestClientServer_HandlerPanicBecomes500(t *testing.T) {
	_, socketPath := newTestServer(t, func(req Request) Response {
		panic("boom")
	})

	client := &Client{SocketPath: socketPath, Timeout: 2 * time.Second}
	resp := client.Call(Request{Cmd: "full_backup"})

	if resp.Code != int(CodeInternal) {
		t.Fatalf("expected a panicking handler to yield 500, got %d", resp.Code)
	}
}

func TestClient_ConnectionFailureYields503(t *testing.T) {
	client := &Client{SocketPath: "/no/such/socket/path.sock", Timeout: 100 * time.Millisecond}
	resp := client.Call(Request{Cmd: "full_backup"})
	if resp.Code != int(CodeServiceUnavailable) {
		t.Fatalf("expected 503 for an unreachable socket, got %d", resp.Code)
	}
}

func TestServer_ListenUnlinksStaleSocket(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "stale.sock")

	first := &Server{SocketPath: socketPath, Handler: func(Request) Response { return Response{} }, Logger: zap.NewNop()}
	if err := first.Listen(); err != nil {
		t.Fatalf("first Listen: %v", err)
	}
	defer first.Close()

	second := &Server{SocketPath: socketPath, Handler: func(Request) Response { return Response{} }, Logger: zap.NewNop()}
	if err := second.Listen(); err != nil {
		t.Fatalf("expected second Listen to succeed after unlinking the stale (but live) socket path: %v", err)
	}
	defer second.Close()
}

func TestClientServer_BadJSONRequestYields400(t *testing.T) {
	_, socketPath := newTestServer(t, func(req Request) Response {
		return Response{Code: int(CodeAccepted)}
	})

	conn, err := net.DialTimeout("unix", socketPath, time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if cw, ok := conn.(interface{ CloseWrite() error }); ok {
		_ = cw.CloseWrite()
	}

	body, err := readUntilIdle(conn)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(body), "invalid request") {
		t.Errorf("expected an invalid-request status in %q", body)
	}
}
