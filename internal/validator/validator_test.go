package validator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dbcalm/dbcalm/internal/db"
	"github.com/dbcalm/dbcalm/internal/repository"
)

// fakeBackups is a minimal in-memory repository.BackupRepository for
// validator tests; only Exists is exercised by the unique-id check.
type fakeBackups struct {
	existing map[string]bool
	err      error
}

func (f *fakeBackups) Create(ctx context.Context, b *db.Backup) error { return nil }
func (f *fakeBackups) GetByID(ctx context.Context, id string) (*db.Backup, error) {
	return nil, nil
}
func (f *fakeBackups) Exists(ctx context.Context, id string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.existing[id], nil
}
func (f *fakeBackups) Latest(ctx context.Context) (*db.Backup, error) { return nil, nil }
func (f *fakeBackups) ListByScheduleID(ctx context.Context, scheduleID string) ([]db.Backup, error) {
	return nil, nil
}
func (f *fakeBackups) Delete(ctx context.Context, id string) error { return nil }
func (f *fakeBackups) List(ctx context.Context, opts repository.ListOptions) ([]db.Backup, error) {
	return nil, nil
}

func newTestDeps(t *testing.T, backups repository.BackupRepository) *Deps {
	t.Helper()
	dir := t.TempDir()
	dataDir := filepath.Join(dir, "data")
	if err := os.Mkdir(dataDir, 0o755); err != nil {
		t.Fatal(err)
	}
	credsFile := filepath.Join(dir, "creds.cnf")
	if err := os.WriteFile(credsFile, []byte("[client-myproj]\nuser=root\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	return &Deps{
		Project:         "myproj",
		AdminBin:        "/bin/false", // a ping always fails: the server reads as stopped
		CredentialsFile: credsFile,
		DataDir:         dataDir,
		Backups:         backups,
	}
}

func TestValidate_UnrecognizedCommand(t *testing.T) {
	v := New(newTestDeps(t, &fakeBackups{}))
	err := v.Validate(context.Background(), "no_such_command", nil)
	if err == nil || err.Code != CodeBadRequest {
		t.Fatalf("expected CodeBadRequest, got %v", err)
	}
}

func TestValidate_MissingRequiredArg(t *testing.T) {
	v := New(newTestDeps(t, &fakeBackups{}))
	err := v.Validate(context.Background(), "full_backup", map[string]any{})
	if err == nil || err.Code != CodeBadRequest {
		t.Fatalf("expected CodeBadRequest for missing id, got %v", err)
	}
}

func TestValidate_DuplicateBackupID(t *testing.T) {
	v := New(newTestDeps(t, &fakeBackups{existing: map[string]bool{"b-1": true}}))
	err := v.Validate(context.Background(), "full_backup", map[string]any{"id": "b-1"})
	if err == nil || err.Code != CodeConflict {
		t.Fatalf("expected CodeConflict for a pre-existing backup id, got %v", err)
	}
}

func TestValidate_BackupLookupFailure(t *testing.T) {
	v := New(newTestDeps(t, &fakeBackups{err: errors.New("disk error")}))
	err := v.Validate(context.Background(), "full_backup", map[string]any{"id": "b-1"})
	if err == nil || err.Code != CodePreconditionFailed {
		t.Fatalf("expected CodePreconditionFailed on lookup error, got %v", err)
	}
}

func TestValidate_CleanupBackupsHasNoGates(t *testing.T) {
	v := New(newTestDeps(t, &fakeBackups{}))
	err := v.Validate(context.Background(), "cleanup_backups", map[string]any{
		"backup_ids": []string{"b-1"},
		"folders":    []string{},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestGateRestorePrecondition_FolderTargetSkipsChecks(t *testing.T) {
	d := newTestDeps(t, &fakeBackups{})
	// a folder target must not consult PingServer/DataDirEmpty at all, so
	// an AdminBin that would fail to exec is safe here.
	err := GateRestorePrecondition(context.Background(), d, map[string]any{"target": "folder"})
	if err != nil {
		t.Fatalf("expected no precondition error for a folder-target restore, got %v", err)
	}
}

func TestGateRestorePrecondition_DatabaseTargetRequiresEmptyDataDir(t *testing.T) {
	d := newTestDeps(t, &fakeBackups{})
	if err := os.WriteFile(filepath.Join(d.DataDir, "mysql.ibd"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	err := GateRestorePrecondition(context.Background(), d, map[string]any{"target": "database"})
	if err == nil || err.Code != CodePreconditionFailed {
		t.Fatalf("expected CodePreconditionFailed for non-empty data dir, got %v", err)
	}
}

func TestDataDirEmpty_AllowlistedEntriesDoNotCount(t *testing.T) {
	d := newTestDeps(t, &fakeBackups{})
	for _, name := range []string{"ibdata1", "ib_logfile0", "mysqld.sock", "mysqld.pid"} {
		if err := os.WriteFile(filepath.Join(d.DataDir, name), []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	if !d.DataDirEmpty() {
		t.Fatalf("expected data dir with only allowlisted entries to count as empty")
	}
}

func TestDataDirEmpty_UnreadableDirIsNotEmpty(t *testing.T) {
	d := newTestDeps(t, &fakeBackups{})
	d.DataDir = filepath.Join(d.DataDir, "does-not-exist")
	if d.DataDirEmpty() {
		t.Fatalf("expected an unreadable data dir to be treated as not empty")
	}
}

func TestCredentialsFileValid(t *testing.T) {
	d := newTestDeps(t, &fakeBackups{})
	if !d.CredentialsFileValid() {
		t.Fatalf("expected credentials file with matching client group header to be valid")
	}

	d.Project = "other"
	if d.CredentialsFileValid() {
		t.Fatalf("expected credentials file to be invalid for a mismatched project group")
	}
}

func TestValidateSchedule_FrequencyRequirements(t *testing.T) {
	cases := []struct {
		name    string
		s       db.Schedule
		wantErr bool
	}{
		{"hourly missing minute", db.Schedule{Frequency: db.FrequencyHourly}, true},
		{"hourly ok", db.Schedule{Frequency: db.FrequencyHourly, Minute: intPtr(30)}, false},
		{"daily missing hour", db.Schedule{Frequency: db.FrequencyDaily, Minute: intPtr(0)}, true},
		{"weekly ok", db.Schedule{Frequency: db.FrequencyWeekly, Hour: intPtr(1), Minute: intPtr(0), DayOfWeek: intPtr(3)}, false},
		{"monthly missing day", db.Schedule{Frequency: db.FrequencyMonthly, Hour: intPtr(1), Minute: intPtr(0)}, true},
		{"interval missing unit", db.Schedule{Frequency: db.FrequencyInterval, IntervalValue: intPtr(5)}, true},
		{"unrecognized frequency", db.Schedule{Frequency: "never"}, true},
	}

	for _, c := range cases {
		err := ValidateSchedule(&c.s)
		if c.wantErr && err == nil {
			t.Errorf("%s: expected an error, got nil", c.name)
		}
		if !c.wantErr && err != nil {
			t.Errorf("%s: expected no error, got %v", c.name, err)
		}
	}
}

func TestValidateSchedule_OutOfRangeFields(t *testing.T) {
	s := db.Schedule{Frequency: db.FrequencyDaily, Hour: intPtr(24), Minute: intPtr(0)}
	err := ValidateSchedule(&s)
	if err == nil || err.Code != CodeBadRequest {
		t.Fatalf("expected CodeBadRequest for an out-of-range hour, got %v", err)
	}
}

func intPtr(v int) *int { return &v }
