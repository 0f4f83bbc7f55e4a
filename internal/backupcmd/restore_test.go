package backupcmd

import (
	"context"
	"strings"
	"testing"
)

func TestBuildRestoreCmds_FullOnlyDatabaseTarget(t *testing.T) {
	cfg := testConfig()
	cfg.Engine = EngineMySQL
	detector := NewVersionDetector(Config{Engine: EngineMySQL, AdminBin: fakeAdminBin(t, "8.0.30")})

	steps, err := BuildRestoreCmds(context.Background(), cfg, detector, "/tmp/scratch", []string{"full-1"}, RestoreTargetDatabase)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// copy, prepare, copy-back — no incrementals to apply.
	if len(steps) != 3 {
		t.Fatalf("expected 3 steps, got %d: %v", len(steps), steps)
	}
	if strings.Contains(steps[1].String(), "--apply-log-only") {
		t.Errorf("base prepare should not set --apply-log-only with no incrementals, got %q", steps[1].String())
	}
	last := steps[len(steps)-1].String()
	if !strings.Contains(last, "--copy-back") || !strings.Contains(last, "--datadir=/var/lib/mysql") {
		t.Errorf("expected a MySQL copy-back step with explicit --datadir, got %q", last)
	}
}

func TestBuildRestoreCmds_IncrementalChainBelowThreshold(t *testing.T) {
	cfg := testConfig()
	detector := NewVersionDetector(Config{Engine: EngineMariaDB, AdminBin: fakeAdminBin(t, "10.1.9-MariaDB")})

	steps, err := BuildRestoreCmds(context.Background(), cfg, detector, "/tmp/scratch", []string{"full-1", "inc-1", "inc-2"}, RestoreTargetFolder)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// copy, prepare(base, --apply-log-only), apply inc-1 (--apply-log-only), apply inc-2 (no flag, last one) — no copy-back for folder target.
	if len(steps) != 4 {
		t.Fatalf("expected 4 steps, got %d: %v", len(steps), steps)
	}
	if !strings.Contains(steps[1].String(), "--apply-log-only") {
		t.Errorf("base prepare with more increments to come should set --apply-log-only below threshold, got %q", steps[1].String())
	}
	if !strings.Contains(steps[2].String(), "--apply-log-only") {
		t.Errorf("intermediate incremental apply should set --apply-log-only, got %q", steps[2].String())
	}
	if strings.Contains(steps[3].String(), "--apply-log-only") {
		t.Errorf("final incremental apply must not set --apply-log-only, got %q", steps[3].String())
	}
	for _, s := range steps {
		if strings.Contains(s.String(), "--copy-back") {
			t.Errorf("folder-target restore must not copy back into the live data directory, got %q", s.String())
		}
	}
}

func TestBuildRestoreCmds_EmptyIDListIsAnError(t *testing.T) {
	cfg := testConfig()
	detector := NewVersionDetector(Config{Engine: EngineMariaDB, AdminBin: fakeAdminBin(t, "10.6.0")})
	_, err := BuildRestoreCmds(context.Background(), cfg, detector, "/tmp/scratch", nil, RestoreTargetFolder)
	if err == nil {
		t.Fatalf("expected an error for an empty id list")
	}
}
