package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dbcalm/dbcalm/internal/bus"
	"github.com/dbcalm/dbcalm/internal/db"
)

type fakeScheduleRepo struct {
	enabled []db.Schedule
}

func (f *fakeScheduleRepo) Create(ctx context.Context, s *db.Schedule) error { return nil }
func (f *fakeScheduleRepo) GetByID(ctx context.Context, id uuid.UUID) (*db.Schedule, error) {
	for _, s := range f.enabled {
		if s.ID == id {
			return &s, nil
		}
	}
	return nil, nil
}
func (f *fakeScheduleRepo) Update(ctx context.Context, s *db.Schedule) error { return nil }
func (f *fakeScheduleRepo) Delete(ctx context.Context, id uuid.UUID) error  { return nil }
func (f *fakeScheduleRepo) List(ctx context.Context) ([]db.Schedule, error) { return f.enabled, nil }
func (f *fakeScheduleRepo) ListEnabled(ctx context.Context) ([]db.Schedule, error) {
	return f.enabled, nil
}
func (f *fakeScheduleRepo) HasEnabledFull(ctx context.Context) (bool, error) { return len(f.enabled) > 0, nil }

func intPtr(v int) *int { return &v }

func TestCleanupHandler_Create_NoExpiredBackupsIsNoWork(t *testing.T) {
	scheduleID, _ := uuid.NewV7()
	retentionValue := 30
	retentionUnit := db.RetentionDays
	schedule := db.Schedule{Frequency: db.FrequencyDaily, Minute: intPtr(0), Hour: intPtr(2), RetentionValue: &retentionValue, RetentionUnit: &retentionUnit}
	schedule.ID = scheduleID

	schedules := &fakeScheduleRepo{enabled: []db.Schedule{schedule}}
	backups := newFakeBackupRepo()
	dbSocket := newTestDBSocket(t, func(req bus.Request) bus.Response {
		t.Fatal("the system command bus must not be called with nothing to clean up")
		return bus.Response{}
	})

	h := NewCleanupHandler(dbSocket, schedules, backups, "/var/lib/dbcalm/backups", zap.NewNop())

	body, _ := json.Marshal(map[string]string{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cleanup", bytes.NewReader(body))
	rr := httptest.NewRecorder()

	h.Create(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 'no work', got %d: %s", rr.Code, rr.Body.String())
	}
	if !bytes.Contains(rr.Body.Bytes(), []byte("no work")) {
		t.Errorf("expected a 'no work' status, got %s", rr.Body.String())
	}
}

func TestCleanupHandler_Create_DispatchesExpiredChain(t *testing.T) {
	scheduleID, _ := uuid.NewV7()
	retentionValue := 1
	retentionUnit := db.RetentionDays
	schedule := db.Schedule{Frequency: db.FrequencyDaily, Minute: intPtr(0), Hour: intPtr(2), RetentionValue: &retentionValue, RetentionUnit: &retentionUnit}
	schedule.ID = scheduleID

	schedules := &fakeScheduleRepo{enabled: []db.Schedule{schedule}}
	backups := newFakeBackupRepo()
	old := db.Backup{ID: "old-1", ScheduleID: ptrStr(scheduleID.String()), StartTime: time.Now().Add(-72 * time.Hour), EndTime: time.Now().Add(-72 * time.Hour)}
	backups.byID["old-1"] = old
	// ListByScheduleID in the fake repo doesn't filter; wire it directly.

	var captured map[string]any
	dbSocket := newTestDBSocket(t, func(req bus.Request) bus.Response {
		captured = req.Args
		return bus.Response{Code: int(bus.CodeAccepted), Status: "Accepted", ID: "cmd-cleanup-1"}
	})

	h := NewCleanupHandler(dbSocket, schedules, &listByScheduleBackupRepo{fakeBackupRepo: backups, scheduleID: scheduleID.String()}, "/var/lib/dbcalm/backups", zap.NewNop())

	body, _ := json.Marshal(map[string]string{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cleanup", bytes.NewReader(body))
	rr := httptest.NewRecorder()

	h.Create(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rr.Code, rr.Body.String())
	}
	ids, ok := captured["backup_ids"].([]any)
	if !ok || len(ids) != 1 || ids[0] != "old-1" {
		t.Errorf("expected backup_ids [old-1], got %v", captured["backup_ids"])
	}
}

// listByScheduleBackupRepo wraps fakeBackupRepo to make ListByScheduleID
// actually filter, since the bare fake returns everything.
type listByScheduleBackupRepo struct {
	*fakeBackupRepo
	scheduleID string
}

func (r *listByScheduleBackupRepo) ListByScheduleID(ctx context.Context, scheduleID string) ([]db.Backup, error) {
	var out []db.Backup
	for _, b := range r.byID {
		if b.ScheduleID != nil && *b.ScheduleID == scheduleID {
			out = append(out, b)
		}
	}
	return out, nil
}
