// Package queue is the post-processing worker the command bus starts for
// every accepted command. It owns one channel of terminal Process values
// and, for each one, either materializes a domain entity (Backup,
// Restore) or reconciles a cleanup, then exits — it never loops past its
// single terminal value, since the runner's channel contract guarantees
// exactly one.
//
// Grounded on agent/internal/executor.execute's sequenced post-processing
// (typed per-stage handling after the child completes), generalized here
// to the spec's dequeue-materialize-or-compensate contract.
package queue

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/dbcalm/dbcalm/internal/db"
	"github.com/dbcalm/dbcalm/internal/metrics"
	"github.com/dbcalm/dbcalm/internal/repository"
)

// Handler drains a single command's completion channel and turns its
// terminal Process into domain state.
type Handler struct {
	backups   repository.BackupRepository
	restores  repository.RestoreRepository
	logger    *zap.Logger
	metrics   *metrics.Metrics
	backupDir string
}

// New returns a Handler.
func New(backups repository.BackupRepository, restores repository.RestoreRepository, logger *zap.Logger, m *metrics.Metrics, backupDir string) *Handler {
	return &Handler{backups: backups, restores: restores, logger: logger, metrics: m, backupDir: backupDir}
}

// Run blocks until ch yields its one terminal Process (or ctx is
// cancelled), then dispatches it. Callers start this as a background
// goroutine immediately after the command bus accepts a request.
func (h *Handler) Run(ctx context.Context, ch <-chan db.Process) {
	if h.metrics != nil {
		h.metrics.QueueDepth.Inc()
		defer h.metrics.QueueDepth.Dec()
	}

	select {
	case <-ctx.Done():
		return
	case proc, ok := <-ch:
		if !ok {
			return
		}
		h.handle(ctx, proc)
	}
}

func (h *Handler) handle(ctx context.Context, proc db.Process) {
	returnCode := -1
	if proc.ReturnCode != nil {
		returnCode = *proc.ReturnCode
	}

	if returnCode != 0 {
		h.logger.Warn("process failed, running compensation",
			zap.Uint("process_id", proc.ID),
			zap.String("type", string(proc.Type)),
			zap.Int("return_code", returnCode))
		h.compensate(ctx, proc)
		return
	}

	switch proc.Type {
	case db.ProcessBackup:
		h.processToBackup(ctx, proc)
	case db.ProcessRestore:
		h.processToRestore(ctx, proc)
	case db.ProcessCleanupBackups:
		h.reconcileCleanup(ctx, proc)
	default:
		h.logger.Info("queue handler: no materialization for process type",
			zap.String("type", string(proc.Type)))
	}
}

// processToBackup materializes a successful backup Process into a Backup
// row. Refuses (logs and exits) if args.id is missing or already taken —
// the validator should have already caught a genuine conflict, so a
// collision here indicates a race and is logged rather than overwritten.
func (h *Handler) processToBackup(ctx context.Context, proc db.Process) {
	id := proc.Args.String("id")
	if id == "" {
		h.logger.Error("queue handler: backup process missing args.id", zap.Uint("process_id", proc.ID))
		return
	}

	exists, err := h.backups.Exists(ctx, id)
	if err != nil {
		h.logger.Error("queue handler: checking backup existence", zap.Error(err))
		return
	}
	if exists {
		h.logger.Error("queue handler: backup id already materialized, skipping", zap.String("id", id))
		return
	}

	b := db.Backup{
		ID:        id,
		StartTime: proc.StartTime,
		ProcessID: proc.ID,
	}
	if proc.EndTime != nil {
		b.EndTime = *proc.EndTime
	}
	if from := proc.Args.String("from_backup_id"); from != "" {
		b.FromBackupID = &from
	}
	if sched := proc.Args.String("schedule_id"); sched != "" {
		b.ScheduleID = &sched
	}

	if err := h.backups.Create(ctx, &b); err != nil {
		h.logger.Error("queue handler: persisting backup", zap.Error(err))
	}
}

// processToRestore materializes a successful restore Process into a
// Restore row. For a database-target restore, the scratch tmp folder is
// removed asynchronously once the row is persisted.
func (h *Handler) processToRestore(ctx context.Context, proc db.Process) {
	idList := proc.Args.StringSlice("id_list")
	if len(idList) == 0 {
		h.logger.Error("queue handler: restore process missing args.id_list", zap.Uint("process_id", proc.ID))
		return
	}

	target := db.RestoreTarget(proc.Args.String("target"))
	tmpDir := proc.Args.String("tmp_dir")

	mostDerivedID := idList[len(idList)-1]
	backupTimestamp := proc.StartTime
	if latest, err := h.backups.GetByID(ctx, mostDerivedID); err == nil {
		backupTimestamp = latest.StartTime
	}

	r := db.Restore{
		ID:              proc.CommandID,
		StartTime:       proc.StartTime,
		Target:          target,
		TargetPath:      tmpDir,
		BackupID:        idList[0],
		BackupTimestamp: backupTimestamp,
		ProcessID:       proc.ID,
	}
	if proc.EndTime != nil {
		r.EndTime = *proc.EndTime
	}

	if err := h.restores.Create(ctx, &r); err != nil {
		h.logger.Error("queue handler: persisting restore", zap.Error(err))
		return
	}

	if target == db.RestoreDatabase && tmpDir != "" {
		go func() {
			if err := os.RemoveAll(filepath.Clean(tmpDir)); err != nil {
				h.logger.Warn("queue handler: failed to remove restore scratch dir",
					zap.String("tmp_dir", tmpDir), zap.Error(err))
			}
		}()
	}
}
