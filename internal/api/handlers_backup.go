package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dbcalm/dbcalm/internal/bus"
	"github.com/dbcalm/dbcalm/internal/db"
	"github.com/dbcalm/dbcalm/internal/repository"
)

// backupIDLayout produces resource ids matching spec.md's
// ^\d{4}-\d{2}-\d{2}-\d{2}-\d{2}-\d{2}$ pattern.
const backupIDLayout = "2006-01-02-15-04-05"

// BackupHandler groups the backup-creation and backup-lookup HTTP
// handlers. Creation dispatches to the DB command service over the
// command bus; the command bus's synchronous 202 receipt already implies
// the Process row exists, so the handler reads it back to report pid.
type BackupHandler struct {
	dbSocket  *bus.Client
	backups   repository.BackupRepository
	processes repository.ProcessRepository
	logger    *zap.Logger
}

// NewBackupHandler returns a BackupHandler.
func NewBackupHandler(dbSocket *bus.Client, backups repository.BackupRepository, processes repository.ProcessRepository, logger *zap.Logger) *BackupHandler {
	return &BackupHandler{dbSocket: dbSocket, backups: backups, processes: processes, logger: logger.Named("backup_handler")}
}

type createBackupRequest struct {
	Type         string  `json:"type"`
	ID           string  `json:"id"`
	FromBackupID *string `json:"from_backup_id"`
	ScheduleID   *string `json:"schedule_id"`
}

type acceptedBackupResponse struct {
	Status     string `json:"status"`
	Pid        int    `json:"pid"`
	Link       string `json:"link"`
	ResourceID string `json:"resource_id"`
}

// Create handles POST /api/v1/backups.
func (h *BackupHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createBackupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var cmd string
	switch req.Type {
	case "full":
		cmd = "full_backup"
	case "incremental":
		cmd = "incremental_backup"
	default:
		ErrBadRequest(w, `type must be "full" or "incremental"`)
		return
	}

	id := req.ID
	if id == "" {
		id = time.Now().UTC().Format(backupIDLayout)
	}

	args := map[string]any{"id": id}
	if req.ScheduleID != nil {
		args["schedule_id"] = *req.ScheduleID
	}

	if cmd == "incremental_backup" {
		fromID := req.FromBackupID
		if fromID == nil {
			latest, err := h.backups.Latest(r.Context())
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					ErrNotFound(w, "no existing backup to use as from_backup_id for an incremental")
					return
				}
				h.logger.Error("looking up latest backup", zap.Error(err))
				ErrInternal(w)
				return
			}
			fromID = &latest.ID
		}
		args["from_backup_id"] = *fromID
	}

	resp := h.dbSocket.Call(bus.Request{Cmd: cmd, Args: args})
	if resp.Code != int(bus.CodeAccepted) {
		busErrorStatus(w, resp.Code, resp.Status)
		return
	}

	pid := 0
	if p, err := h.processes.GetByCommandID(r.Context(), resp.ID); err == nil {
		pid = p.Pid
	}

	Accepted(w, http.StatusAccepted, acceptedBackupResponse{
		Status:     "Accepted",
		Pid:        pid,
		Link:       fmt.Sprintf("/api/v1/backups/%s", id),
		ResourceID: id,
	})
}

type backupResponse struct {
	ID           string  `json:"id"`
	FromBackupID *string `json:"from_backup_id"`
	ScheduleID   *string `json:"schedule_id"`
	StartTime    string  `json:"start_time"`
	EndTime      string  `json:"end_time"`
	ProcessID    uint    `json:"process_id"`
}

func backupToResponse(b *db.Backup) backupResponse {
	return backupResponse{
		ID:           b.ID,
		FromBackupID: b.FromBackupID,
		ScheduleID:   b.ScheduleID,
		StartTime:    b.StartTime.UTC().Format(time.RFC3339),
		EndTime:      b.EndTime.UTC().Format(time.RFC3339),
		ProcessID:    b.ProcessID,
	}
}

// GetByID handles GET /api/v1/backups/{resource_id}.
func (h *BackupHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "resource_id")
	b, err := h.backups.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			ErrNotFound(w, fmt.Sprintf("backup %q not found", id))
			return
		}
		h.logger.Error("looking up backup", zap.String("id", id), zap.Error(err))
		ErrInternal(w)
		return
	}
	Ok(w, backupToResponse(b))
}

// List handles GET /api/v1/backups.
func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	backups, err := h.backups.List(r.Context(), repository.ListOptions{})
	if err != nil {
		h.logger.Error("listing backups", zap.Error(err))
		ErrInternal(w)
		return
	}
	resp := make([]backupResponse, len(backups))
	for i := range backups {
		resp[i] = backupToResponse(&backups[i])
	}
	Ok(w, resp)
}
