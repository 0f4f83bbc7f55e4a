package backupcmd

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"sync"
)

// ServerVersion is a parsed MAJOR.MINOR.PATCH engine version.
type ServerVersion struct {
	Major, Minor, Patch int
}

// Less reports whether v is strictly older than other.
func (v ServerVersion) Less(other ServerVersion) bool {
	if v.Major != other.Major {
		return v.Major < other.Major
	}
	if v.Minor != other.Minor {
		return v.Minor < other.Minor
	}
	return v.Patch < other.Patch
}

var versionPattern = regexp.MustCompile(`(\d+)\.(\d+)\.(\d+)`)

// applyLogOnlyThreshold is the engine version below which --apply-log-only
// must be appended to intermediate prepare steps. MariaDB and MySQL
// xtrabackup/mariabackup builds changed their incremental-prepare
// semantics at different versions; both are tracked here.
var applyLogOnlyThreshold = map[Engine]ServerVersion{
	EngineMariaDB: {Major: 10, Minor: 2, Patch: 0},
	EngineMySQL:   {Major: 8, Minor: 0, Patch: 0},
}

// VersionDetector caches the server version for the lifetime of a single
// process (a restore's prepare chain may call it several times).
type VersionDetector struct {
	cfg Config

	once    sync.Once
	version ServerVersion
	err     error
}

// NewVersionDetector returns a VersionDetector for cfg.
func NewVersionDetector(cfg Config) *VersionDetector {
	return &VersionDetector{cfg: cfg}
}

// Detect shells out to "<admin_bin> --version", regex-extracts
// MAJOR.MINOR.PATCH, and caches the result.
func (d *VersionDetector) Detect(ctx context.Context) (ServerVersion, error) {
	d.once.Do(func() {
		out, runErr := exec.CommandContext(ctx, d.cfg.AdminBin, "--version").CombinedOutput()
		if runErr != nil {
			d.err = fmt.Errorf("backupcmd: detecting server version: %w", runErr)
			return
		}
		m := versionPattern.FindSubmatch(out)
		if m == nil {
			d.err = fmt.Errorf("backupcmd: could not parse version from %q", string(out))
			return
		}
		major, _ := strconv.Atoi(string(m[1]))
		minor, _ := strconv.Atoi(string(m[2]))
		patch, _ := strconv.Atoi(string(m[3]))
		d.version = ServerVersion{Major: major, Minor: minor, Patch: patch}
	})
	return d.version, d.err
}

// BelowApplyLogOnlyThreshold reports whether the detected version sits
// below the engine-specific threshold for appending --apply-log-only.
func (d *VersionDetector) BelowApplyLogOnlyThreshold(ctx context.Context) (bool, error) {
	v, err := d.Detect(ctx)
	if err != nil {
		return false, err
	}
	threshold, ok := applyLogOnlyThreshold[d.cfg.Engine]
	if !ok {
		return false, fmt.Errorf("backupcmd: no apply-log-only threshold for engine %q", d.cfg.Engine)
	}
	return v.Less(threshold), nil
}
