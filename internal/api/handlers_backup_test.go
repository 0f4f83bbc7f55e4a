package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dbcalm/dbcalm/internal/bus"
	"github.com/dbcalm/dbcalm/internal/db"
	"github.com/dbcalm/dbcalm/internal/repository"
)

type fakeBackupRepo struct {
	byID   map[string]db.Backup
	latest *db.Backup
}

func newFakeBackupRepo() *fakeBackupRepo { return &fakeBackupRepo{byID: map[string]db.Backup{}} }

func (f *fakeBackupRepo) Create(ctx context.Context, b *db.Backup) error {
	f.byID[b.ID] = *b
	return nil
}
func (f *fakeBackupRepo) GetByID(ctx context.Context, id string) (*db.Backup, error) {
	b, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &b, nil
}
func (f *fakeBackupRepo) Exists(ctx context.Context, id string) (bool, error) {
	_, ok := f.byID[id]
	return ok, nil
}
func (f *fakeBackupRepo) Latest(ctx context.Context) (*db.Backup, error) {
	if f.latest == nil {
		return nil, repository.ErrNotFound
	}
	return f.latest, nil
}
func (f *fakeBackupRepo) ListByScheduleID(ctx context.Context, scheduleID string) ([]db.Backup, error) {
	return nil, nil
}
func (f *fakeBackupRepo) Delete(ctx context.Context, id string) error {
	delete(f.byID, id)
	return nil
}
func (f *fakeBackupRepo) List(ctx context.Context, opts repository.ListOptions) ([]db.Backup, error) {
	out := make([]db.Backup, 0, len(f.byID))
	for _, b := range f.byID {
		out = append(out, b)
	}
	return out, nil
}

type fakeProcessRepo struct {
	byCommandID map[string]db.Process
}

func (f *fakeProcessRepo) Create(ctx context.Context, p *db.Process) error { return nil }
func (f *fakeProcessRepo) GetByID(ctx context.Context, id uint) (*db.Process, error) {
	return nil, repository.ErrNotFound
}
func (f *fakeProcessRepo) GetByCommandID(ctx context.Context, commandID string) (*db.Process, error) {
	p, ok := f.byCommandID[commandID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}
func (f *fakeProcessRepo) LatestByCommandID(ctx context.Context, commandID string) (*db.Process, error) {
	return f.GetByCommandID(ctx, commandID)
}
func (f *fakeProcessRepo) Update(ctx context.Context, p *db.Process) error { return nil }
func (f *fakeProcessRepo) ListRunningOlderThan(ctx context.Context, cutoff time.Time) ([]db.Process, error) {
	return nil, nil
}

// newTestDBSocket starts a real bus.Server driven by handler and returns a
// Client wired to it, so the HTTP handler's command-bus round trip is
// exercised end-to-end rather than mocked away.
func newTestDBSocket(t *testing.T, handler bus.Handler) *bus.Client {
	t.Helper()
	socketPath := filepath.Join(t.TempDir(), "dbcmd.sock")
	srv := &bus.Server{SocketPath: socketPath, Handler: handler, Logger: zap.NewNop()}
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	go srv.Serve()
	t.Cleanup(func() { srv.Close() })
	return &bus.Client{SocketPath: socketPath, Timeout: 2 * time.Second}
}

var resourceIDPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}-\d{2}-\d{2}-\d{2}$`)

func TestBackupHandler_Create_FullBackupHappyPath(t *testing.T) {
	backups := newFakeBackupRepo()
	processes := &fakeProcessRepo{byCommandID: map[string]db.Process{
		"cmd-1": {CommandID: "cmd-1", Pid: 4242},
	}}
	dbSocket := newTestDBSocket(t, func(req bus.Request) bus.Response {
		if req.Cmd != "full_backup" {
			t.Fatalf("unexpected cmd %q", req.Cmd)
		}
		return bus.Response{Code: int(bus.CodeAccepted), Status: "Accepted", ID: "cmd-1"}
	})

	h := NewBackupHandler(dbSocket, backups, processes, zap.NewNop())

	body, _ := json.Marshal(map[string]string{"type": "full"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/backups", bytes.NewReader(body))
	rr := httptest.NewRecorder()

	h.Create(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp acceptedBackupResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Pid != 4242 {
		t.Errorf("expected pid 4242, got %d", resp.Pid)
	}
	if !resourceIDPattern.MatchString(resp.ResourceID) {
		t.Errorf("expected resource_id to match %s, got %q", resourceIDPattern, resp.ResourceID)
	}
}

func TestBackupHandler_Create_IncrementalAutoDetectsFromLatest(t *testing.T) {
	backups := newFakeBackupRepo()
	backups.latest = &db.Backup{ID: "2026-07-30-00-00-00"}
	processes := &fakeProcessRepo{byCommandID: map[string]db.Process{"cmd-2": {CommandID: "cmd-2"}}}

	var capturedArgs map[string]any
	dbSocket := newTestDBSocket(t, func(req bus.Request) bus.Response {
		capturedArgs = req.Args
		return bus.Response{Code: int(bus.CodeAccepted), Status: "Accepted", ID: "cmd-2"}
	})

	h := NewBackupHandler(dbSocket, backups, processes, zap.NewNop())

	body, _ := json.Marshal(map[string]string{"type": "incremental"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/backups", bytes.NewReader(body))
	rr := httptest.NewRecorder()

	h.Create(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rr.Code, rr.Body.String())
	}
	if capturedArgs["from_backup_id"] != "2026-07-30-00-00-00" {
		t.Errorf("expected from_backup_id to be auto-detected from Latest, got %v", capturedArgs["from_backup_id"])
	}
}

func TestBackupHandler_Create_IncrementalWithNoPriorBackupIs404(t *testing.T) {
	backups := newFakeBackupRepo() // no Latest configured
	processes := &fakeProcessRepo{byCommandID: map[string]db.Process{}}
	dbSocket := newTestDBSocket(t, func(req bus.Request) bus.Response {
		t.Fatal("the command bus must not be called when from_backup_id cannot be resolved")
		return bus.Response{}
	})

	h := NewBackupHandler(dbSocket, backups, processes, zap.NewNop())

	body, _ := json.Marshal(map[string]string{"type": "incremental"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/backups", bytes.NewReader(body))
	rr := httptest.NewRecorder()

	h.Create(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestBackupHandler_Create_PreconditionFailureIs503(t *testing.T) {
	backups := newFakeBackupRepo()
	processes := &fakeProcessRepo{byCommandID: map[string]db.Process{}}
	dbSocket := newTestDBSocket(t, func(req bus.Request) bus.Response {
		return bus.Response{Code: int(bus.CodeServiceUnavailable), Status: "database server is not stopped"}
	})

	h := NewBackupHandler(dbSocket, backups, processes, zap.NewNop())

	body, _ := json.Marshal(map[string]string{"type": "full"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/backups", bytes.NewReader(body))
	rr := httptest.NewRecorder()

	h.Create(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", rr.Code, rr.Body.String())
	}
	if !bytes.Contains(rr.Body.Bytes(), []byte("not stopped")) {
		t.Errorf("expected the error body to contain %q, got %s", "not stopped", rr.Body.String())
	}
}

func TestBackupHandler_GetByID_NotFoundContainsID(t *testing.T) {
	backups := newFakeBackupRepo()
	processes := &fakeProcessRepo{byCommandID: map[string]db.Process{}}
	h := NewBackupHandler(newTestDBSocket(t, nil), backups, processes, zap.NewNop())

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("resource_id", "missing-id")
	req := httptest.NewRequest(http.MethodGet, "/api/v1/backups/missing-id", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rr := httptest.NewRecorder()

	h.GetByID(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if !bytes.Contains(rr.Body.Bytes(), []byte("missing-id")) {
		t.Errorf("expected the 404 body to contain the missing id, got %s", rr.Body.String())
	}
}

