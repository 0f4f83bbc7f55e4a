package queue

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/dbcalm/dbcalm/internal/db"
)

// reconcileCleanup implements the cleanup_backups folder-vs-record
// reconciliation: for each backup id named in the command, check whether
// its folder still exists on disk. If the folder is gone, the rm -rf
// succeeded for that id and the Backup row is deleted; if the folder
// remains, the row is kept. This converges partial cleanup_backups
// failures to eventual consistency — the filesystem is the source of
// truth (see DESIGN.md's Open Question decision).
func (h *Handler) reconcileCleanup(ctx context.Context, proc db.Process) {
	ids := proc.Args.StringSlice("backup_ids")
	folders := proc.Args.StringSlice("folders")

	deleted := 0
	for i, id := range ids {
		folder := ""
		if i < len(folders) {
			folder = folders[i]
		}

		if folder != "" {
			if _, err := os.Stat(folder); err == nil {
				// Folder still present: rm -rf did not remove it. Keep the row.
				continue
			}
		}

		if err := h.backups.Delete(ctx, id); err != nil {
			h.logger.Warn("queue handler: reconcile delete failed",
				zap.String("id", id), zap.Error(err))
			continue
		}
		deleted++
	}

	h.logger.Info(fmt.Sprintf("deleted %d backup records out of %d", deleted, len(ids)))
}
