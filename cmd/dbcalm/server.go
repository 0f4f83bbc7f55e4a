package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dbcalm/dbcalm/internal/api"
	"github.com/dbcalm/dbcalm/internal/auth"
	"github.com/dbcalm/dbcalm/internal/bus"
	"github.com/dbcalm/dbcalm/internal/housekeeping"
)

func newServerCmd(configPath *string) *cobra.Command {
	var httpAddr string

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the HTTP API front door",
		Long: `server terminates the authenticated HTTP API, translates each request
into a command-bus call against socket A (DB command service) or socket B
(system command service), and runs the in-process housekeeping scheduler.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, httpAddr)
		},
	}

	cmd.Flags().StringVar(&httpAddr, "http-addr", "", "override the configured HTTP listen address")

	return cmd
}

func runServer(ctx context.Context, configPath, httpAddrOverride string) error {
	c, err := buildCore(configPath)
	if err != nil {
		return err
	}
	defer c.close()

	if httpAddrOverride != "" {
		c.cfg.HTTPAddr = httpAddrOverride
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	jwtMgr, err := buildJWTManager(c.cfg.DataDir, c.logger)
	if err != nil {
		return fmt.Errorf("initializing JWT manager: %w", err)
	}
	authSvc := auth.NewService(c.users, c.clients, c.authCodes, jwtMgr)

	hk, err := housekeeping.New(c.authCodes, c.processes, c.logger, nil)
	if err != nil {
		return fmt.Errorf("building housekeeping scheduler: %w", err)
	}
	if err := hk.Start(); err != nil {
		return fmt.Errorf("starting housekeeping scheduler: %w", err)
	}
	defer func() {
		if err := hk.Stop(); err != nil {
			c.logger.Warn("housekeeping shutdown error", zap.Error(err))
		}
	}()

	timeout := c.cfg.SocketTimeout()
	router := api.NewRouter(api.RouterConfig{
		DB:           c.conn,
		DBSocket:     &bus.Client{SocketPath: c.cfg.DBCmdSocket, Timeout: timeout},
		SystemSocket: &bus.Client{SocketPath: c.cfg.SysCmdSocket, Timeout: timeout},
		AuthService:  authSvc,
		Metrics:      c.metrics,
		Logger:       c.logger,
		BackupDir:    c.cfg.BackupDir,
		Processes:    c.processes,
		Backups:      c.backups,
		Restores:     c.restores,
		Schedules:    c.schedules,
		Clients:      c.clients,
		Users:        c.users,
	})

	httpSrv := &http.Server{
		Addr:         c.cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		c.logger.Info("http server listening", zap.String("addr", c.cfg.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.logger.Error("http server error", zap.Error(err))
			cancel()
		}
	}()

	<-ctx.Done()
	c.logger.Info("shutting down dbcalm API server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		c.logger.Warn("http server graceful shutdown error", zap.Error(err))
	}
	return nil
}

// buildJWTManager loads RSA keys from the data directory if present, or
// generates ephemeral in-memory keys for local iteration.
func buildJWTManager(dataDir string, logger *zap.Logger) (*auth.JWTManager, error) {
	privPath := filepath.Join(dataDir, "jwt_private.pem")
	pubPath := filepath.Join(dataDir, "jwt_public.pem")

	if _, err := os.Stat(privPath); err == nil {
		logger.Info("loading JWT keys from disk", zap.String("private", privPath))
		return auth.NewJWTManagerFromFiles(privPath, pubPath, "dbcalm")
	}

	logger.Warn("JWT key files not found — using ephemeral in-memory keys (tokens invalidate on restart)",
		zap.String("expected_private", privPath),
	)
	return auth.NewJWTManagerGenerated("dbcalm")
}
