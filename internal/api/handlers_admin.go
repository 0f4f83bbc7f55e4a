package api

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dbcalm/dbcalm/internal/auth"
	"github.com/dbcalm/dbcalm/internal/db"
	"github.com/dbcalm/dbcalm/internal/repository"
	"github.com/dbcalm/dbcalm/internal/validator"
)

// generateClientSecret returns a random 32-byte hex-encoded secret shown
// to the caller exactly once, at client-creation time.
func generateClientSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// -----------------------------------------------------------------------
// Clients
// -----------------------------------------------------------------------

// ClientHandler groups the admin-only Client CRUD handlers. A Client is
// a machine principal authenticating via the client-credentials grant —
// the create response carries the one-time plaintext secret.
type ClientHandler struct {
	repo   repository.ClientRepository
	logger *zap.Logger
}

// NewClientHandler returns a ClientHandler.
func NewClientHandler(repo repository.ClientRepository, logger *zap.Logger) *ClientHandler {
	return &ClientHandler{repo: repo, logger: logger.Named("client_handler")}
}

type clientResponse struct {
	ID     string   `json:"id"`
	Label  string   `json:"label"`
	Scopes []string `json:"scopes"`
}

type createClientRequest struct {
	Label  string   `json:"label"`
	Scopes []string `json:"scopes"`
}

type createClientResponse struct {
	clientResponse
	Secret string `json:"secret"`
}

// Create handles POST /api/v1/clients.
func (h *ClientHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createClientRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	plaintext, err := generateClientSecret()
	if err != nil {
		h.logger.Error("generating client secret", zap.Error(err))
		ErrInternal(w)
		return
	}
	hash, err := auth.HashPassword(plaintext)
	if err != nil {
		h.logger.Error("hashing client secret", zap.Error(err))
		ErrInternal(w)
		return
	}

	c := db.Client{Secret: hash, Scopes: req.Scopes, Label: req.Label}
	if err := h.repo.Create(r.Context(), &c); err != nil {
		h.logger.Error("creating client", zap.Error(err))
		ErrInternal(w)
		return
	}

	Created(w, createClientResponse{
		clientResponse: clientResponse{ID: c.ID.String(), Label: c.Label, Scopes: c.Scopes},
		Secret:         plaintext,
	})
}

// List handles GET /api/v1/clients.
func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	clients, err := h.repo.List(r.Context())
	if err != nil {
		h.logger.Error("listing clients", zap.Error(err))
		ErrInternal(w)
		return
	}
	resp := make([]clientResponse, len(clients))
	for i, c := range clients {
		resp[i] = clientResponse{ID: c.ID.String(), Label: c.Label, Scopes: c.Scopes}
	}
	Ok(w, resp)
}

// Delete handles DELETE /api/v1/clients/{id}.
func (h *ClientHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseURLUUID(w, r, "id")
	if !ok {
		return
	}
	if err := h.repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			ErrNotFound(w, "client not found")
			return
		}
		h.logger.Error("deleting client", zap.Error(err))
		ErrInternal(w)
		return
	}
	NoContent(w)
}

// -----------------------------------------------------------------------
// Users
// -----------------------------------------------------------------------

// UserHandler groups the admin-only User CRUD handlers.
type UserHandler struct {
	repo   repository.UserRepository
	logger *zap.Logger
}

// NewUserHandler returns a UserHandler.
func NewUserHandler(repo repository.UserRepository, logger *zap.Logger) *UserHandler {
	return &UserHandler{repo: repo, logger: logger.Named("user_handler")}
}

type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type createUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Create handles POST /api/v1/users.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		ErrBadRequest(w, "username and password are required")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("hashing password", zap.Error(err))
		ErrInternal(w)
		return
	}

	u := db.User{Username: req.Username, Password: hash}
	if err := h.repo.Create(r.Context(), &u); err != nil {
		h.logger.Error("creating user", zap.Error(err))
		ErrInternal(w)
		return
	}
	Created(w, userResponse{ID: u.ID.String(), Username: u.Username})
}

// List handles GET /api/v1/users.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.repo.List(r.Context())
	if err != nil {
		h.logger.Error("listing users", zap.Error(err))
		ErrInternal(w)
		return
	}
	resp := make([]userResponse, len(users))
	for i, u := range users {
		resp[i] = userResponse{ID: u.ID.String(), Username: u.Username}
	}
	Ok(w, resp)
}

type updatePasswordRequest struct {
	Password string `json:"password"`
}

// UpdatePassword handles PATCH /api/v1/users/{id}/password.
func (h *UserHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	id, ok := parseURLUUID(w, r, "id")
	if !ok {
		return
	}
	var req updatePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Password == "" {
		ErrBadRequest(w, "password is required")
		return
	}

	u, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			ErrNotFound(w, "user not found")
			return
		}
		ErrInternal(w)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("hashing password", zap.Error(err))
		ErrInternal(w)
		return
	}
	u.Password = hash
	if err := h.repo.Update(r.Context(), u); err != nil {
		h.logger.Error("updating user", zap.Error(err))
		ErrInternal(w)
		return
	}
	NoContent(w)
}

// Delete handles DELETE /api/v1/users/{id}.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseURLUUID(w, r, "id")
	if !ok {
		return
	}
	if err := h.repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			ErrNotFound(w, "user not found")
			return
		}
		h.logger.Error("deleting user", zap.Error(err))
		ErrInternal(w)
		return
	}
	NoContent(w)
}

// -----------------------------------------------------------------------
// Schedules
// -----------------------------------------------------------------------

// ScheduleHandler groups the admin-only Schedule CRUD handlers.
type ScheduleHandler struct {
	repo   repository.ScheduleRepository
	logger *zap.Logger
}

// NewScheduleHandler returns a ScheduleHandler.
func NewScheduleHandler(repo repository.ScheduleRepository, logger *zap.Logger) *ScheduleHandler {
	return &ScheduleHandler{repo: repo, logger: logger.Named("schedule_handler")}
}

// Create handles POST /api/v1/schedules.
func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var s db.Schedule
	if !decodeJSON(w, r, &s) {
		return
	}

	if s.BackupType == db.BackupIncremental {
		hasFull, err := h.repo.HasEnabledFull(r.Context())
		if err != nil {
			ErrInternal(w)
			return
		}
		if !hasFull {
			ErrBadRequest(w, "an enabled full-backup schedule is required before creating an incremental one")
			return
		}
	}

	if verr := validator.ValidateSchedule(&s); verr != nil {
		ErrBadRequest(w, verr.Message)
		return
	}

	if err := h.repo.Create(r.Context(), &s); err != nil {
		h.logger.Error("creating schedule", zap.Error(err))
		ErrInternal(w)
		return
	}
	Created(w, s)
}

// List handles GET /api/v1/schedules.
func (h *ScheduleHandler) List(w http.ResponseWriter, r *http.Request) {
	schedules, err := h.repo.List(r.Context())
	if err != nil {
		h.logger.Error("listing schedules", zap.Error(err))
		ErrInternal(w)
		return
	}
	Ok(w, schedules)
}

// Update handles PATCH /api/v1/schedules/{id}.
func (h *ScheduleHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseURLUUID(w, r, "id")
	if !ok {
		return
	}

	existing, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			ErrNotFound(w, "schedule not found")
			return
		}
		ErrInternal(w)
		return
	}

	if !decodeJSON(w, r, existing) {
		return
	}
	existing.ID = id

	if verr := validator.ValidateSchedule(existing); verr != nil {
		ErrBadRequest(w, verr.Message)
		return
	}

	if err := h.repo.Update(r.Context(), existing); err != nil {
		h.logger.Error("updating schedule", zap.Error(err))
		ErrInternal(w)
		return
	}
	Ok(w, existing)
}

// Delete handles DELETE /api/v1/schedules/{id}.
func (h *ScheduleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseURLUUID(w, r, "id")
	if !ok {
		return
	}
	if err := h.repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			ErrNotFound(w, "schedule not found")
			return
		}
		h.logger.Error("deleting schedule", zap.Error(err))
		ErrInternal(w)
		return
	}
	NoContent(w)
}

// -----------------------------------------------------------------------
// Shared helpers
// -----------------------------------------------------------------------

func parseURLUUID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		ErrBadRequest(w, param+" is not a valid uuid")
		return uuid.UUID{}, false
	}
	return id, true
}
