package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dbcalm/dbcalm/internal/db"
	"github.com/dbcalm/dbcalm/internal/repository"
)

// StatusHandler projects the latest Process row sharing a command_id into
// a client-facing status view.
type StatusHandler struct {
	processes repository.ProcessRepository
	logger    *zap.Logger
}

// NewStatusHandler returns a StatusHandler.
func NewStatusHandler(processes repository.ProcessRepository, logger *zap.Logger) *StatusHandler {
	return &StatusHandler{processes: processes, logger: logger.Named("status_handler")}
}

type statusResponse struct {
	Status     db.ProcessStatus `json:"status"`
	Type       db.ProcessType   `json:"type"`
	Link       string           `json:"link"`
	ResourceID string           `json:"resource_id,omitempty"`
}

// resourceLinkFor builds the link a status response points at, keyed by
// process type — mirrors the resource paths /backups and /restores are
// served under.
func resourceLinkFor(typ db.ProcessType, resourceID string) string {
	if resourceID == "" {
		return ""
	}
	switch typ {
	case db.ProcessBackup:
		return fmt.Sprintf("/api/v1/backups/%s", resourceID)
	case db.ProcessRestore:
		return fmt.Sprintf("/api/v1/restores/%s", resourceID)
	default:
		return ""
	}
}

// projectStatus builds the /status/{command_id} view from the most
// recent Process sharing command_id: its lifecycle status and type, plus
// the business id extracted from args.id so async callers can discover
// the created resource.
func projectStatus(p *db.Process) statusResponse {
	resourceID := p.Args.String("id")
	return statusResponse{
		Status:     p.Status,
		Type:       p.Type,
		Link:       resourceLinkFor(p.Type, resourceID),
		ResourceID: resourceID,
	}
}

// Get handles GET /api/v1/status/{command_id}.
func (h *StatusHandler) Get(w http.ResponseWriter, r *http.Request) {
	commandID := chi.URLParam(r, "command_id")
	p, err := h.processes.LatestByCommandID(r.Context(), commandID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			ErrNotFound(w, fmt.Sprintf("command %q not found", commandID))
			return
		}
		h.logger.Error("looking up process by command id", zap.String("command_id", commandID), zap.Error(err))
		ErrInternal(w)
		return
	}
	Accepted(w, http.StatusOK, projectStatus(p))
}
