package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dbcalm/dbcalm/internal/bus"
	"github.com/dbcalm/dbcalm/internal/db"
	"github.com/dbcalm/dbcalm/internal/repository"
	"github.com/dbcalm/dbcalm/internal/retention"
)

// CleanupHandler computes the expired-backup set via the retention
// policy and dispatches their removal to the system command service.
type CleanupHandler struct {
	systemSocket *bus.Client
	schedules    repository.ScheduleRepository
	backups      repository.BackupRepository
	backupDir    string
	logger       *zap.Logger
}

// NewCleanupHandler returns a CleanupHandler.
func NewCleanupHandler(systemSocket *bus.Client, schedules repository.ScheduleRepository, backups repository.BackupRepository, backupDir string, logger *zap.Logger) *CleanupHandler {
	return &CleanupHandler{systemSocket: systemSocket, schedules: schedules, backups: backups, backupDir: backupDir, logger: logger.Named("cleanup_handler")}
}

type createCleanupRequest struct {
	ScheduleID *string `json:"schedule_id"`
}

type acceptedCleanupResponse struct {
	Status string `json:"status"`
	ID     string `json:"id,omitempty"`
}

// Create handles POST /api/v1/cleanup.
func (h *CleanupHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createCleanupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var schedules []db.Schedule
	if req.ScheduleID != nil {
		scheduleID, err := uuid.Parse(*req.ScheduleID)
		if err != nil {
			ErrBadRequest(w, "schedule_id is not a valid uuid")
			return
		}
		s, err := h.schedules.GetByID(r.Context(), scheduleID)
		if err != nil {
			ErrNotFound(w, fmt.Sprintf("schedule %q not found", *req.ScheduleID))
			return
		}
		schedules = []db.Schedule{*s}
	} else {
		all, err := h.schedules.ListEnabled(r.Context())
		if err != nil {
			h.logger.Error("listing enabled schedules", zap.Error(err))
			ErrInternal(w)
			return
		}
		schedules = all
	}

	now := time.Now().UTC()
	var ids, folders []string
	for _, s := range schedules {
		cutoff, ok := retention.Cutoff(s, now)
		if !ok {
			continue
		}
		backups, err := h.backups.ListByScheduleID(r.Context(), s.ID.String())
		if err != nil {
			h.logger.Error("listing backups for schedule", zap.String("schedule_id", s.ID.String()), zap.Error(err))
			ErrInternal(w)
			return
		}
		for _, b := range retention.GetExpiredBackups(backups, cutoff) {
			ids = append(ids, b.ID)
			folders = append(folders, fmt.Sprintf("%s/%s", h.backupDir, b.ID))
		}
	}

	if len(ids) == 0 {
		Accepted(w, http.StatusOK, acceptedCleanupResponse{Status: "no work"})
		return
	}

	resp := h.systemSocket.Call(bus.Request{Cmd: "cleanup_backups", Args: map[string]any{
		"backup_ids": ids,
		"folders":    folders,
	}})
	if resp.Code != int(bus.CodeAccepted) {
		busErrorStatus(w, resp.Code, resp.Status)
		return
	}

	Accepted(w, http.StatusAccepted, acceptedCleanupResponse{Status: "Accepted", ID: resp.ID})
}
