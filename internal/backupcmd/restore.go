package backupcmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/dbcalm/dbcalm/internal/shellexec"
)

// RestoreTarget is where a restore chain ultimately lands.
type RestoreTarget string

const (
	RestoreTargetDatabase RestoreTarget = "database"
	RestoreTargetFolder   RestoreTarget = "folder"
)

// BuildRestoreCmds returns the ordered argv chain for restoring idList
// (full id first, then incrementals in order) into tmpDir, optionally
// copying back into the live data directory when target is database.
//
// --apply-log-only is appended to every prepare step that has further
// increments to apply AND the detected server version sits below the
// engine-specific threshold.
func BuildRestoreCmds(ctx context.Context, cfg Config, detector *VersionDetector, tmpDir string, idList []string, target RestoreTarget) ([]shellexec.Step, error) {
	if len(idList) == 0 {
		return nil, fmt.Errorf("backupcmd: restore requires at least one backup id")
	}

	fullID := idList[0]
	incrementals := idList[1:]

	belowThreshold, err := detector.BelowApplyLogOnlyThreshold(ctx)
	if err != nil {
		return nil, err
	}

	var steps []shellexec.Step

	// 1. Copy the base backup into the scratch directory; the prepare
	// steps mutate a scratch copy, never the original backup folder.
	steps = append(steps, shellexec.Direct("cp", "-r", filepath.Join(cfg.BackupDir, fullID), tmpDir+"/"))

	// 2. Prepare the base.
	baseArgv := []string{
		cfg.BackupBin,
		"--prepare",
		"--target-dir", filepath.Join(tmpDir, fullID),
	}
	if len(incrementals) > 0 && belowThreshold {
		baseArgv = append(baseArgv, "--apply-log-only")
	}
	steps = append(steps, shellexec.Direct(baseArgv...))

	// 3. Apply each subsequent incremental in order.
	for i, incID := range incrementals {
		moreToCome := i < len(incrementals)-1
		argv := []string{
			cfg.BackupBin,
			"--prepare",
			"--target-dir", filepath.Join(tmpDir, fullID),
			"--incremental-dir", filepath.Join(cfg.BackupDir, incID),
		}
		if moreToCome && belowThreshold {
			argv = append(argv, "--apply-log-only")
		}
		steps = append(steps, shellexec.Direct(argv...))
	}

	// 4. Copy back into the live data directory for a database-target
	// restore. The MySQL variant always sets --datadir explicitly; the
	// MariaDB variant reads it from the server's own defaults file.
	if target == RestoreTargetDatabase {
		argv := []string{
			cfg.BackupBin,
			"--copy-back",
			"--target-dir", filepath.Join(tmpDir, fullID),
		}
		if cfg.Engine == EngineMySQL {
			argv = append(argv, "--datadir="+cfg.DataDir)
		}
		steps = append(steps, shellexec.Direct(argv...))
	}

	return steps, nil
}
