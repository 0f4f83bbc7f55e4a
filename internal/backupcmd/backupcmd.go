// Package backupcmd builds mariabackup/xtrabackup argument vectors for full
// backup, incremental backup, and multi-stage restore. Builders are pure
// functions of their inputs — no I/O beyond the cached server-version
// lookup (see version.go).
//
// Grounded on agent/internal/restic/wrapper.go's shape (one function per
// logical operation, explicit env/argv construction) adapted to a
// system-resident binary instead of an extracted/bundled one, and on
// agent/internal/hooks.buildShellCmd for the shell-vs-direct composition
// mandated by the REDESIGN FLAGS.
package backupcmd

import (
	"fmt"
	"path/filepath"

	"github.com/dbcalm/dbcalm/internal/shellexec"
)

// Engine selects which variant (and default binaries) the builder targets.
type Engine string

const (
	EngineMariaDB Engine = "mariadb"
	EngineMySQL   Engine = "mysql"
)

// Compression selects the stream compressor, if any.
type Compression string

const (
	CompressionNone Compression = ""
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
)

// Config bundles the host paths and engine selection every builder needs.
type Config struct {
	Engine          Engine
	Project         string
	BackupBin       string // mariabackup or xtrabackup
	AdminBin        string // mariadb-admin or mysqladmin, for version detection
	CredentialsFile string
	BackupDir       string
	DataDir         string
}

// BackupOptions carries the stream/compression/forward flags that decide
// whether the resulting Step is a direct exec or a shell pipeline.
type BackupOptions struct {
	Stream      bool
	Compression Compression
	// Forward, if set, is a shell command the compressed (or raw) stream is
	// piped into instead of being redirected to a local file — e.g. an ssh
	// pipe to an off-host archive.
	Forward string
}

func (c Config) targetDir(id string) string {
	return filepath.Join(c.BackupDir, id)
}

func (c Config) baseArgv(id string) []string {
	return []string{
		c.BackupBin,
		"--defaults-file=" + c.CredentialsFile,
		"--defaults-group-suffix=-" + c.Project,
		"--backup",
		"--target-dir=" + c.targetDir(id),
		"--host=localhost",
	}
}

// effectiveCompression returns the effective compression and its file extension,
// applying the "stream with no compression chosen defaults to gzip" rule.
func effectiveCompression(opts BackupOptions) (Compression, string) {
	comp := opts.Compression
	if opts.Stream && comp == CompressionNone {
		comp = CompressionGzip
	}
	switch comp {
	case CompressionGzip:
		return CompressionGzip, ".gz"
	case CompressionZstd:
		return CompressionZstd, ".zst"
	default:
		return CompressionNone, ""
	}
}

func compressorArgv(comp Compression) []string {
	switch comp {
	case CompressionGzip:
		return []string{"gzip"}
	case CompressionZstd:
		return []string{"zstd", "-", "-c", "-T0"}
	default:
		return nil
	}
}

// BuildFullBackupCmd constructs the argv/pipeline for a full backup of id.
func BuildFullBackupCmd(cfg Config, id string, opts BackupOptions) shellexec.Step {
	argv := cfg.baseArgv(id)
	return buildBackupStep(cfg, id, argv, opts)
}

// BuildIncrementalBackupCmd constructs the argv/pipeline for an incremental
// backup of id taken against fromBackupID's basedir.
func BuildIncrementalBackupCmd(cfg Config, id, fromBackupID string, opts BackupOptions) shellexec.Step {
	argv := cfg.baseArgv(id)
	argv = append(argv, "--incremental-basedir="+filepath.Join(cfg.BackupDir, fromBackupID))
	return buildBackupStep(cfg, id, argv, opts)
}

// buildBackupStep applies the stream/compression/forward composition rule
// common to full and incremental backups: no shell needed unless
// streaming, compression or forwarding is requested.
func buildBackupStep(cfg Config, id string, argv []string, opts BackupOptions) shellexec.Step {
	comp, ext := effectiveCompression(opts)

	if opts.Stream {
		argv = append(argv, "--stream=xbstream")
	}

	if !opts.Stream && comp == CompressionNone && opts.Forward == "" {
		return shellexec.Direct(argv...)
	}

	stages := [][]string{argv}
	if cargv := compressorArgv(comp); cargv != nil {
		stages = append(stages, cargv)
	}

	line := shellexec.Quote(stages[0])
	for _, s := range stages[1:] {
		line += " | " + shellexec.Quote(s)
	}

	if opts.Forward != "" {
		line += " | " + opts.Forward
	} else {
		outFile := filepath.Join(cfg.BackupDir, fmt.Sprintf("backup-%s.xbstream%s", id, ext))
		line += " > " + shellexec.Quote([]string{outFile})
	}

	return shellexec.Step{ShellLine: line, Shell: true}
}
