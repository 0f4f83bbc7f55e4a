package queue

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/dbcalm/dbcalm/internal/db"
	"github.com/dbcalm/dbcalm/internal/repository"
)

type fakeBackups struct {
	byID    map[string]db.Backup
	created []db.Backup
	deleted []string
}

func newFakeBackups() *fakeBackups { return &fakeBackups{byID: map[string]db.Backup{}} }

func (f *fakeBackups) Create(ctx context.Context, b *db.Backup) error {
	f.created = append(f.created, *b)
	f.byID[b.ID] = *b
	return nil
}
func (f *fakeBackups) GetByID(ctx context.Context, id string) (*db.Backup, error) {
	b, ok := f.byID[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return &b, nil
}
func (f *fakeBackups) Exists(ctx context.Context, id string) (bool, error) {
	_, ok := f.byID[id]
	return ok, nil
}
func (f *fakeBackups) Latest(ctx context.Context) (*db.Backup, error) { return nil, nil }
func (f *fakeBackups) ListByScheduleID(ctx context.Context, scheduleID string) ([]db.Backup, error) {
	return nil, nil
}
func (f *fakeBackups) Delete(ctx context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	delete(f.byID, id)
	return nil
}
func (f *fakeBackups) List(ctx context.Context, opts repository.ListOptions) ([]db.Backup, error) {
	return nil, nil
}

type fakeRestores struct {
	created []db.Restore
}

func (f *fakeRestores) Create(ctx context.Context, r *db.Restore) error {
	f.created = append(f.created, *r)
	return nil
}
func (f *fakeRestores) GetByID(ctx context.Context, id string) (*db.Restore, error) { return nil, nil }
func (f *fakeRestores) List(ctx context.Context, opts repository.ListOptions) ([]db.Restore, error) {
	return nil, nil
}

func successProcess(typ db.ProcessType, args db.JSONMap) db.Process {
	end := time.Now()
	rc := 0
	return db.Process{
		ID:         1,
		Type:       typ,
		Status:     db.ProcessSuccess,
		Args:       args,
		StartTime:  end.Add(-time.Minute),
		EndTime:    &end,
		ReturnCode: &rc,
	}
}

func TestHandler_ProcessToBackup_MaterializesRow(t *testing.T) {
	backups := newFakeBackups()
	h := New(backups, &fakeRestores{}, zap.NewNop(), nil, t.TempDir())

	proc := successProcess(db.ProcessBackup, db.JSONMap{"id": "b-1", "from_backup_id": "b-0"})
	ch := make(chan db.Process, 1)
	ch <- proc
	close(ch)
	h.Run(context.Background(), ch)

	if len(backups.created) != 1 {
		t.Fatalf("expected 1 backup created, got %d", len(backups.created))
	}
	b := backups.created[0]
	if b.ID != "b-1" || b.FromBackupID == nil || *b.FromBackupID != "b-0" {
		t.Errorf("unexpected materialized backup: %+v", b)
	}
}

func TestHandler_ProcessToBackup_SkipsOnExistingID(t *testing.T) {
	backups := newFakeBackups()
	backups.byID["b-1"] = db.Backup{ID: "b-1"}
	h := New(backups, &fakeRestores{}, zap.NewNop(), nil, t.TempDir())

	proc := successProcess(db.ProcessBackup, db.JSONMap{"id": "b-1"})
	ch := make(chan db.Process, 1)
	ch <- proc
	close(ch)
	h.Run(context.Background(), ch)

	if len(backups.created) != 0 {
		t.Fatalf("expected no new backup row for a colliding id, got %d", len(backups.created))
	}
}

func TestHandler_FailedProcess_RunsCompensation(t *testing.T) {
	backupDir := t.TempDir()
	backups := newFakeBackups()
	h := New(backups, &fakeRestores{}, zap.NewNop(), nil, backupDir)

	partial := filepath.Join(backupDir, "b-1")
	if err := os.Mkdir(partial, 0o755); err != nil {
		t.Fatal(err)
	}

	rc := 1
	proc := db.Process{
		ID:         1,
		Type:       db.ProcessBackup,
		Args:       db.JSONMap{"id": "b-1"},
		StartTime:  time.Now(),
		ReturnCode: &rc,
	}
	ch := make(chan db.Process, 1)
	ch <- proc
	close(ch)
	h.Run(context.Background(), ch)

	if _, err := os.Stat(partial); !os.IsNotExist(err) {
		t.Errorf("expected the partial backup folder to be removed by compensation")
	}
	if len(backups.created) != 0 {
		t.Errorf("a failed process must not materialize a Backup row")
	}
}

func TestHandler_ReconcileCleanup_PartialSuccess(t *testing.T) {
	backupDir := t.TempDir()
	backups := newFakeBackups()
	backups.byID["gone"] = db.Backup{ID: "gone"}
	backups.byID["still-here"] = db.Backup{ID: "still-here"}
	h := New(backups, &fakeRestores{}, zap.NewNop(), nil, backupDir)

	stillHereDir := filepath.Join(backupDir, "still-here")
	if err := os.Mkdir(stillHereDir, 0o755); err != nil {
		t.Fatal(err)
	}

	rc := 0
	proc := db.Process{
		ID:   1,
		Type: db.ProcessCleanupBackups,
		Args: db.JSONMap{
			"backup_ids": []any{"gone", "still-here"},
			"folders":    []any{filepath.Join(backupDir, "gone"), stillHereDir},
		},
		StartTime:  time.Now(),
		ReturnCode: &rc,
	}
	ch := make(chan db.Process, 1)
	ch <- proc
	close(ch)
	h.Run(context.Background(), ch)

	if len(backups.deleted) != 1 || backups.deleted[0] != "gone" {
		t.Errorf("expected only the backup whose folder is gone to be deleted, got %v", backups.deleted)
	}
	if _, ok := backups.byID["still-here"]; !ok {
		t.Errorf("expected the still-present folder's backup row to be kept")
	}
}

func TestHandler_ProcessToRestore_RemovesScratchDirForDatabaseTarget(t *testing.T) {
	tmpDir := t.TempDir()
	scratch := filepath.Join(tmpDir, "scratch")
	if err := os.Mkdir(scratch, 0o755); err != nil {
		t.Fatal(err)
	}

	backups := newFakeBackups()
	restores := &fakeRestores{}
	h := New(backups, restores, zap.NewNop(), nil, t.TempDir())

	proc := successProcess(db.ProcessRestore, db.JSONMap{
		"id_list": []any{"full-1", "inc-1"},
		"target":  "database",
		"tmp_dir": scratch,
	})
	proc.CommandID = "cmd-1"
	ch := make(chan db.Process, 1)
	ch <- proc
	close(ch)
	h.Run(context.Background(), ch)

	if len(restores.created) != 1 {
		t.Fatalf("expected 1 restore row created, got %d", len(restores.created))
	}
	r := restores.created[0]
	if r.BackupID != "full-1" {
		t.Errorf("expected BackupID to be the chain's base id, got %q", r.BackupID)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(scratch); os.IsNotExist(err) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Errorf("expected the scratch directory to be removed asynchronously")
}
