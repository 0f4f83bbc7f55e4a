package main

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm"

	"github.com/dbcalm/dbcalm/internal/config"
	"github.com/dbcalm/dbcalm/internal/db"
	"github.com/dbcalm/dbcalm/internal/logging"
	"github.com/dbcalm/dbcalm/internal/metrics"
	"github.com/dbcalm/dbcalm/internal/repository"
)

// core bundles the dependencies every subcommand needs: configuration, a
// logger, the single SQLite store, its repositories and a metrics
// registry. Building it is the first step of every RunE.
type core struct {
	cfg       config.Config
	logger    *zap.Logger
	conn      *gorm.DB
	metrics   *metrics.Metrics

	processes repository.ProcessRepository
	backups   repository.BackupRepository
	restores  repository.RestoreRepository
	schedules repository.ScheduleRepository
	clients   repository.ClientRepository
	users     repository.UserRepository
	authCodes repository.AuthCodeRepository
}

// buildCore loads configuration, opens the store and constructs every
// repository. Callers are responsible for closing the underlying
// *sql.DB via conn.DB() when done.
func buildCore(configPath string) (*core, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.Build(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}

	level := gormlogger.Warn
	if cfg.LogLevel == "debug" {
		level = gormlogger.Info
	}

	dsn := filepath.Join(cfg.StateDir, "db.sqlite3")
	conn, err := db.New(db.Config{DSN: dsn, Logger: logger, LogLevel: level})
	if err != nil {
		return nil, fmt.Errorf("opening store at %s: %w", dsn, err)
	}

	return &core{
		cfg:       cfg,
		logger:    logger,
		conn:      conn,
		metrics:   metrics.New(),
		processes: repository.NewProcessRepository(conn),
		backups:   repository.NewBackupRepository(conn),
		restores:  repository.NewRestoreRepository(conn),
		schedules: repository.NewScheduleRepository(conn),
		clients:   repository.NewClientRepository(conn),
		users:     repository.NewUserRepository(conn),
		authCodes: repository.NewAuthCodeRepository(conn),
	}, nil
}

// close releases the underlying database connection and flushes the
// logger. Call via defer immediately after a successful buildCore.
func (c *core) close() {
	if sqlDB, err := c.conn.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = c.logger.Sync()
}
