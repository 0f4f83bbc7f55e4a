// Package api implements dbcalm's HTTP front door. It uses Chi as the
// router and exposes every resource under /api/v1. Authentication is
// enforced via JWT bearer tokens on all routes except the public auth
// endpoints and the ambient health/metrics surface; scope-based access
// (e.g. "admin") is applied at the route level via RequireScope.
package api

import (
	"encoding/json"
	"net/http"
)

// envelope is the JSON response wrapper used by the admin CRUD endpoints
// (clients/users/schedules), whose shape spec.md leaves unspecified.
// Success:  {"data": <payload>}
// Error:    {"error": {"message": "...", "code": "..."}}
type envelope map[string]any

// JSON writes a JSON-encoded response with the given status code.
func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// Ok writes a 200 OK response with the payload wrapped in {"data": payload}.
func Ok(w http.ResponseWriter, payload any) {
	JSON(w, http.StatusOK, envelope{"data": payload})
}

// Created writes a 201 Created response with the payload wrapped in {"data": payload}.
func Created(w http.ResponseWriter, payload any) {
	JSON(w, http.StatusCreated, envelope{"data": payload})
}

// NoContent writes a 204 No Content response with no body.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Accepted writes payload unwrapped at the given status — the literal
// shapes spec.md §6 documents for /backups, /restores, /cleanup and
// /status are not enveloped under "data", unlike the admin CRUD routes.
func Accepted(w http.ResponseWriter, status int, payload any) {
	JSON(w, status, payload)
}

// errorResponse is the shape of the "error" object in enveloped error
// responses.
type errorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func errJSON(w http.ResponseWriter, status int, message, code string) {
	JSON(w, status, envelope{
		"error": errorResponse{
			Message: message,
			Code:    code,
		},
	})
}

// ErrBadRequest writes a 400 Bad Request error response.
func ErrBadRequest(w http.ResponseWriter, message string) {
	errJSON(w, http.StatusBadRequest, message, "bad_request")
}

// ErrUnauthorized writes a 401 Unauthorized error response.
func ErrUnauthorized(w http.ResponseWriter) {
	errJSON(w, http.StatusUnauthorized, "authentication required", "unauthorized")
}

// ErrForbidden writes a 403 Forbidden error response.
func ErrForbidden(w http.ResponseWriter) {
	errJSON(w, http.StatusForbidden, "insufficient permissions", "forbidden")
}

// ErrNotFound writes a 404 Not Found error response with a custom detail
// message — spec.md's chain-walk scenario requires the message to contain
// the missing backup id, so callers pass their own text rather than a
// fixed string.
func ErrNotFound(w http.ResponseWriter, message string) {
	errJSON(w, http.StatusNotFound, message, "not_found")
}

// ErrConflict writes a 409 Conflict error response.
func ErrConflict(w http.ResponseWriter, message string) {
	errJSON(w, http.StatusConflict, message, "conflict")
}

// ErrServiceUnavailable writes a 503 Service Unavailable error response —
// used for command-bus precondition failures (server alive/dead, data
// dir occupied, credentials missing) and for synthesized socket timeouts.
func ErrServiceUnavailable(w http.ResponseWriter, message string) {
	errJSON(w, http.StatusServiceUnavailable, message, "precondition_failed")
}

// ErrInternal writes a 500 Internal Server Error response. The internal
// error detail is intentionally not exposed to the client.
func ErrInternal(w http.ResponseWriter) {
	errJSON(w, http.StatusInternalServerError, "an internal error occurred", "internal_error")
}

// decodeJSON decodes the request body into dst. Returns false and writes
// an appropriate error response if decoding fails, so callers can
// early-return.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		ErrBadRequest(w, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// busErrorStatus writes the appropriate HTTP error response for a
// command-bus rejection, mapping its code onto the corresponding Err*
// helper.
func busErrorStatus(w http.ResponseWriter, code int, message string) {
	switch code {
	case 400:
		ErrBadRequest(w, message)
	case 409:
		ErrConflict(w, message)
	case 412, 503:
		ErrServiceUnavailable(w, message)
	default:
		ErrInternal(w)
	}
}
