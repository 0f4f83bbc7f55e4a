package backupcmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

// fakeAdminBin writes an executable script that prints output on
// "--version" and returns its path, standing in for mariadb-admin/mysqladmin.
func fakeAdminBin(t *testing.T, output string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-admin")
	script := "#!/bin/sh\necho '" + output + "'\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestVersionDetector_ParsesAndCaches(t *testing.T) {
	cfg := Config{Engine: EngineMariaDB, AdminBin: fakeAdminBin(t, "mariadb-admin Ver 10.6.12-MariaDB")}
	d := NewVersionDetector(cfg)

	v, err := d.Detect(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := ServerVersion{Major: 10, Minor: 6, Patch: 12}
	if v != want {
		t.Errorf("got %+v, want %+v", v, want)
	}

	// A second call must return the cached value without re-invoking the
	// binary: point AdminBin at a path that no longer exists to prove it.
	d.cfg.AdminBin = "/no/such/binary"
	v2, err := d.Detect(context.Background())
	if err != nil || v2 != want {
		t.Errorf("expected cached result on second Detect call, got %+v, err=%v", v2, err)
	}
}

func TestVersionDetector_UnparsableOutput(t *testing.T) {
	cfg := Config{Engine: EngineMariaDB, AdminBin: fakeAdminBin(t, "no version here")}
	_, err := NewVersionDetector(cfg).Detect(context.Background())
	if err == nil {
		t.Fatalf("expected an error for unparsable version output")
	}
}

func TestBelowApplyLogOnlyThreshold(t *testing.T) {
	cases := []struct {
		name    string
		engine  Engine
		version string
		want    bool
	}{
		{"mariadb old", EngineMariaDB, "10.1.9-MariaDB", true},
		{"mariadb new", EngineMariaDB, "10.6.12-MariaDB", false},
		{"mysql old", EngineMySQL, "5.7.0", true},
		{"mysql new", EngineMySQL, "8.0.30", false},
	}

	for _, c := range cases {
		cfg := Config{Engine: c.engine, AdminBin: fakeAdminBin(t, c.version)}
		below, err := NewVersionDetector(cfg).BelowApplyLogOnlyThreshold(context.Background())
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", c.name, err)
		}
		if below != c.want {
			t.Errorf("%s: got below=%v, want %v", c.name, below, c.want)
		}
	}
}
