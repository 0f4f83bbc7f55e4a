package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dbcalm/dbcalm/internal/bus"
	"github.com/dbcalm/dbcalm/internal/db"
	"github.com/dbcalm/dbcalm/internal/repository"
)

// RestoreHandler dispatches restore requests to the DB command service
// after resolving the full chain of backup ids the restore depends on.
type RestoreHandler struct {
	dbSocket  *bus.Client
	backups   repository.BackupRepository
	processes repository.ProcessRepository
	backupDir string
	logger    *zap.Logger
}

// NewRestoreHandler returns a RestoreHandler.
func NewRestoreHandler(dbSocket *bus.Client, backups repository.BackupRepository, processes repository.ProcessRepository, backupDir string, logger *zap.Logger) *RestoreHandler {
	return &RestoreHandler{dbSocket: dbSocket, backups: backups, processes: processes, backupDir: backupDir, logger: logger.Named("restore_handler")}
}

type createRestoreRequest struct {
	BackupID string `json:"backup_id"`
	Target   string `json:"target"`
}

type acceptedRestoreResponse struct {
	Status     string `json:"status"`
	Pid        int    `json:"pid"`
	Link       string `json:"link"`
	ResourceID string `json:"resource_id"`
}

// Create handles POST /api/v1/restores.
func (h *RestoreHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRestoreRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	switch db.RestoreTarget(req.Target) {
	case db.RestoreDatabase, db.RestoreFolder:
	default:
		ErrBadRequest(w, `target must be "database" or "folder"`)
		return
	}
	if req.BackupID == "" {
		ErrBadRequest(w, "backup_id is required")
		return
	}

	idList, err := h.requiredBackups(r.Context(), req.BackupID)
	if err != nil {
		var missing *missingBackupError
		if errors.As(err, &missing) {
			ErrNotFound(w, missing.Error())
			return
		}
		h.logger.Error("walking backup chain", zap.String("backup_id", req.BackupID), zap.Error(err))
		ErrInternal(w)
		return
	}

	var tmpDir string
	if db.RestoreTarget(req.Target) == db.RestoreDatabase {
		tmpDir = fmt.Sprintf("%s/tmp/%s", h.backupDir, uuid.NewString())
	} else {
		tmpDir = fmt.Sprintf("%s/restores/%s", h.backupDir, time.Now().UTC().Format(backupIDLayout))
	}

	args := map[string]any{
		"id_list": idList,
		"target":  req.Target,
		"tmp_dir": tmpDir,
		// "id" mirrors the backup-creation args shape so /status's generic
		// projection (process.args.id) also works for restores.
		"id": idList[0],
	}

	resp := h.dbSocket.Call(bus.Request{Cmd: "restore_backup", Args: args})
	if resp.Code != int(bus.CodeAccepted) {
		busErrorStatus(w, resp.Code, resp.Status)
		return
	}

	pid := 0
	if p, err := h.processes.GetByCommandID(r.Context(), resp.ID); err == nil {
		pid = p.Pid
	}

	Accepted(w, http.StatusAccepted, acceptedRestoreResponse{
		Status:     "Accepted",
		Pid:        pid,
		Link:       fmt.Sprintf("/api/v1/restores/%s", resp.ID),
		ResourceID: req.BackupID,
	})
}

// missingBackupError reports a chain walk that hit a dangling
// from_backup_id reference.
type missingBackupError struct {
	id string
}

func (e *missingBackupError) Error() string {
	return fmt.Sprintf("%s not found", e.id)
}

// requiredBackups walks from_backup_id links from id up to the root full
// backup, returning the chain ordered root-first (the order build_restore_cmds
// expects: base, then each incremental in turn).
func (h *RestoreHandler) requiredBackups(ctx context.Context, id string) ([]string, error) {
	var reversed []string
	current := id
	for {
		b, err := h.backups.GetByID(ctx, current)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, &missingBackupError{id: current}
			}
			return nil, err
		}
		reversed = append(reversed, b.ID)
		if b.FromBackupID == nil {
			break
		}
		current = *b.FromBackupID
	}

	chain := make([]string, len(reversed))
	for i, id := range reversed {
		chain[len(reversed)-1-i] = id
	}
	return chain, nil
}
