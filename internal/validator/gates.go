package validator

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/dbcalm/dbcalm/internal/repository"
)

// dataDirAllowlist names entries a MySQL/MariaDB data directory may
// legitimately contain even when "empty" of an actual dataset.
var dataDirAllowlist = map[string]bool{
	"ib_buffer_pool": true,
	"ibdata1":        true,
	"ib_logfile0":    true,
	"ib_logfile1":    true,
}

var dataDirAllowlistSuffixes = []string{".sock", ".pid", ".err", ".cnf", ".flag"}

// Deps bundles everything a gate needs: host binary paths, the project
// name (for the --defaults-group-suffix / credentials header), and the
// Backup repository for the unique-id check.
type Deps struct {
	Project         string
	AdminBin        string // mariadb-admin or mysqladmin, used for ping/version
	CredentialsFile string
	DataDir         string
	Backups         repository.BackupRepository
}

// PingServer runs "<admin_bin> ping" against the credentials file and the
// project's config group, reporting whether the server answered.
func (d *Deps) PingServer(ctx context.Context) bool {
	cmd := exec.CommandContext(ctx, d.AdminBin,
		"--defaults-file="+d.CredentialsFile,
		"--defaults-group-suffix=-"+d.Project,
		"ping",
	)
	return cmd.Run() == nil
}

// DataDirEmpty reports whether DataDir contains nothing beyond the
// allowlisted bootstrap artifacts. An unreadable directory is treated as
// *not* empty — a deliberate fail-safe (see DESIGN.md).
func (d *Deps) DataDirEmpty() bool {
	entries, err := os.ReadDir(d.DataDir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		name := e.Name()
		if dataDirAllowlist[name] {
			continue
		}
		allowed := false
		for _, suffix := range dataDirAllowlistSuffixes {
			if strings.HasSuffix(name, suffix) {
				allowed = true
				break
			}
		}
		if allowed {
			continue
		}
		return false
	}
	return true
}

// CredentialsFileValid reports whether CredentialsFile exists and contains
// the dbcalm client group header.
func (d *Deps) CredentialsFileValid() bool {
	path := d.CredentialsFile
	if !filepath.IsAbs(path) {
		abs, err := filepath.Abs(path)
		if err == nil {
			path = abs
		}
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return strings.Contains(string(contents), "[client-"+d.Project+"]")
}

// GateServerAlive requires the server to answer a ping.
func GateServerAlive(ctx context.Context, d *Deps, _ map[string]any) *Error {
	if !d.PingServer(ctx) {
		return &Error{Code: CodePreconditionFailed, Message: "database server is not alive"}
	}
	return nil
}

// GateServerDead requires the server to NOT answer a ping.
func GateServerDead(ctx context.Context, d *Deps, _ map[string]any) *Error {
	if d.PingServer(ctx) {
		return &Error{Code: CodePreconditionFailed, Message: "database server is not stopped"}
	}
	return nil
}

// GateDataDirEmpty requires the configured data directory to be empty.
func GateDataDirEmpty(_ context.Context, d *Deps, _ map[string]any) *Error {
	if !d.DataDirEmpty() {
		return &Error{Code: CodePreconditionFailed, Message: "data directory is not empty"}
	}
	return nil
}

// GateCredentialsFileValid requires the credentials file to exist and
// carry the expected client group header.
func GateCredentialsFileValid(_ context.Context, d *Deps, _ map[string]any) *Error {
	if !d.CredentialsFileValid() {
		return &Error{Code: CodePreconditionFailed, Message: "credentials file missing or invalid"}
	}
	return nil
}

// GateRestorePrecondition implements the database-target restore rule:
// returns 503 when either the server is alive or the data directory is
// non-empty. A folder-target restore has no server/data-dir precondition.
func GateRestorePrecondition(ctx context.Context, d *Deps, args map[string]any) *Error {
	target, _ := args["target"].(string)
	if target != "database" {
		return nil
	}
	if d.PingServer(ctx) {
		return &Error{Code: CodePreconditionFailed, Message: "database server is not stopped"}
	}
	if !d.DataDirEmpty() {
		return &Error{Code: CodePreconditionFailed, Message: "data directory is not empty"}
	}
	return nil
}
