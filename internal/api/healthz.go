package api

import (
	"net/http"

	"gorm.io/gorm"

	"github.com/dbcalm/dbcalm/internal/db"
)

// Healthz handles GET /api/v1/healthz: a liveness probe that pings the
// persistence layer. It carries no domain semantics.
func Healthz(conn *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context(), conn); err != nil {
			JSON(w, http.StatusServiceUnavailable, envelope{"status": "unhealthy"})
			return
		}
		JSON(w, http.StatusOK, envelope{"status": "ok"})
	}
}
