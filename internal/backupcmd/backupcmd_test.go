package backupcmd

import (
	"strings"
	"testing"
)

func testConfig() Config {
	return Config{
		Engine:          EngineMariaDB,
		Project:         "shop",
		BackupBin:       "mariabackup",
		AdminBin:        "mariadb-admin",
		CredentialsFile: "/etc/dbcalm/shop.cnf",
		BackupDir:       "/var/lib/dbcalm/backups",
		DataDir:         "/var/lib/mysql",
	}
}

func TestBuildFullBackupCmd_PlainIsDirect(t *testing.T) {
	cfg := testConfig()
	step := BuildFullBackupCmd(cfg, "b-1", BackupOptions{})
	if step.Shell {
		t.Fatalf("expected a plain full backup to be a direct exec, got a shell step: %s", step.String())
	}
	if step.Argv[0] != "mariabackup" {
		t.Errorf("expected argv[0] to be the backup binary, got %q", step.Argv[0])
	}
	if !contains(step.Argv, "--target-dir=/var/lib/dbcalm/backups/b-1") {
		t.Errorf("expected target-dir argv entry, got %v", step.Argv)
	}
}

func TestBuildFullBackupCmd_StreamDefaultsToGzip(t *testing.T) {
	cfg := testConfig()
	step := BuildFullBackupCmd(cfg, "b-1", BackupOptions{Stream: true})
	if !step.Shell {
		t.Fatalf("expected a streaming backup to require a shell pipeline")
	}
	if !strings.Contains(step.ShellLine, "| gzip") {
		t.Errorf("expected default compression to be gzip, got %q", step.ShellLine)
	}
	if !strings.Contains(step.ShellLine, "backup-b-1.xbstream.gz") {
		t.Errorf("expected a .gz output file, got %q", step.ShellLine)
	}
}

func TestBuildFullBackupCmd_ZstdCompressionNoStream(t *testing.T) {
	cfg := testConfig()
	step := BuildFullBackupCmd(cfg, "b-1", BackupOptions{Compression: CompressionZstd})
	if !strings.Contains(step.ShellLine, "| zstd") {
		t.Errorf("expected a zstd pipeline stage, got %q", step.ShellLine)
	}
	if !strings.Contains(step.ShellLine, ".xbstream.zst") {
		t.Errorf("expected a .zst output file, got %q", step.ShellLine)
	}
}

func TestBuildFullBackupCmd_ForwardOverridesOutputFile(t *testing.T) {
	cfg := testConfig()
	step := BuildFullBackupCmd(cfg, "b-1", BackupOptions{Stream: true, Forward: "ssh archive cat > /remote/b-1.xb"})
	if !strings.HasSuffix(step.ShellLine, "ssh archive cat > /remote/b-1.xb") {
		t.Errorf("expected the forward command to be the terminal pipeline stage, got %q", step.ShellLine)
	}
}

func TestBuildIncrementalBackupCmd_SetsIncrementalBasedir(t *testing.T) {
	cfg := testConfig()
	step := BuildIncrementalBackupCmd(cfg, "b-2", "b-1", BackupOptions{})
	if !contains(step.Argv, "--incremental-basedir=/var/lib/dbcalm/backups/b-1") {
		t.Errorf("expected incremental-basedir argv entry, got %v", step.Argv)
	}
}

func contains(argv []string, want string) bool {
	for _, a := range argv {
		if a == want {
			return true
		}
	}
	return false
}
