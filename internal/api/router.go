package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dbcalm/dbcalm/internal/auth"
	"github.com/dbcalm/dbcalm/internal/bus"
	"github.com/dbcalm/dbcalm/internal/metrics"
	"github.com/dbcalm/dbcalm/internal/repository"
)

// RouterConfig holds every dependency the HTTP router needs. It is
// populated in cmd/dbcalm/server.go once the core (db, repositories, services, bus
// clients) is wired up and passed to NewRouter as a single struct to
// keep the constructor signature manageable.
type RouterConfig struct {
	DB          *gorm.DB
	DBSocket    *bus.Client
	SystemSocket *bus.Client
	AuthService *auth.Service
	Metrics     *metrics.Metrics
	Logger      *zap.Logger

	BackupDir string

	Processes repository.ProcessRepository
	Backups   repository.BackupRepository
	Restores  repository.RestoreRepository
	Schedules repository.ScheduleRepository
	Clients   repository.ClientRepository
	Users     repository.UserRepository
}

// NewRouter builds and returns the fully configured Chi router. All
// routes are registered under /api/v1.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)

	backupHandler := NewBackupHandler(cfg.DBSocket, cfg.Backups, cfg.Processes, cfg.Logger)
	restoreHandler := NewRestoreHandler(cfg.DBSocket, cfg.Backups, cfg.Processes, cfg.BackupDir, cfg.Logger)
	cleanupHandler := NewCleanupHandler(cfg.SystemSocket, cfg.Schedules, cfg.Backups, cfg.BackupDir, cfg.Logger)
	statusHandler := NewStatusHandler(cfg.Processes, cfg.Logger)
	authHandler := NewAuthHandler(cfg.AuthService, cfg.Logger)
	clientHandler := NewClientHandler(cfg.Clients, cfg.Logger)
	userHandler := NewUserHandler(cfg.Users, cfg.Logger)
	scheduleHandler := NewScheduleHandler(cfg.Schedules, cfg.Logger)

	jwtMgr := cfg.AuthService.JWTManager()

	r.Get("/api/v1/healthz", Healthz(cfg.DB))
	r.Handle("/api/v1/metrics", promhttp.HandlerFor(cfg.Metrics.Registry, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		// --- Public routes (no authentication required) ---
		r.Group(func(r chi.Router) {
			r.Post("/auth/token", authHandler.Token)
			r.Post("/auth/authorize", authHandler.Authorize)
		})

		// --- Authenticated routes (valid JWT required) ---
		r.Group(func(r chi.Router) {
			r.Use(Authenticate(jwtMgr))

			r.Post("/backups", backupHandler.Create)
			r.Get("/backups", backupHandler.List)
			r.Get("/backups/{resource_id}", backupHandler.GetByID)

			r.Post("/restores", restoreHandler.Create)

			r.Post("/cleanup", cleanupHandler.Create)

			r.Get("/status/{command_id}", statusHandler.Get)

			// --- Admin-only routes ---
			r.Group(func(r chi.Router) {
				r.Use(RequireScope("admin"))

				r.Post("/clients", clientHandler.Create)
				r.Get("/clients", clientHandler.List)
				r.Delete("/clients/{id}", clientHandler.Delete)

				r.Post("/users", userHandler.Create)
				r.Get("/users", userHandler.List)
				r.Patch("/users/{id}/password", userHandler.UpdatePassword)
				r.Delete("/users/{id}", userHandler.Delete)

				r.Post("/schedules", scheduleHandler.Create)
				r.Get("/schedules", scheduleHandler.List)
				r.Patch("/schedules/{id}", scheduleHandler.Update)
				r.Delete("/schedules/{id}", scheduleHandler.Delete)
			})
		})
	})

	return r
}
