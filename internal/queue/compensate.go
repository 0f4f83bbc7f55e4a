package queue

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/dbcalm/dbcalm/internal/db"
)

// compensate runs the best-effort cleanup for a failed process, by type.
func (h *Handler) compensate(ctx context.Context, proc db.Process) {
	switch proc.Type {
	case db.ProcessBackup:
		h.compensateBackup(proc)
	case db.ProcessCleanupBackups:
		// Even on failure, still reconcile: the reconciliation step is
		// itself the compensation for a partial cleanup_backups run.
		h.reconcileCleanup(ctx, proc)
	default:
		h.logger.Info("queue handler: no compensation for process type",
			zap.String("type", string(proc.Type)))
	}
}

// compensateBackup best-effort removes the partially-written backup folder
// for a known id, so a retried backup with the same id does not collide
// with stale artifacts.
func (h *Handler) compensateBackup(proc db.Process) {
	id := proc.Args.String("id")
	if id == "" {
		return
	}
	dir := filepath.Join(h.backupDir, id)
	if err := os.RemoveAll(dir); err != nil {
		h.logger.Warn("queue handler: compensation rmdir failed",
			zap.String("dir", dir), zap.Error(err))
	}
}
