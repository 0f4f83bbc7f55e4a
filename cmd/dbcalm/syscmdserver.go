package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dbcalm/dbcalm/internal/bus"
	"github.com/dbcalm/dbcalm/internal/cronbridge"
	"github.com/dbcalm/dbcalm/internal/queue"
	"github.com/dbcalm/dbcalm/internal/runner"
	"github.com/dbcalm/dbcalm/internal/syscmdservice"
	"github.com/dbcalm/dbcalm/internal/validator"
)

func newSysCmdServerCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "syscmd-server",
		Short: "Run the system command service (socket B)",
		Long: `syscmd-server listens on socket B and owns cleanup_backups and
update_cron_schedules. It must run as root: it deletes backup folders
owned by the DB service's OS user and writes /etc/cron.d/<project>.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSysCmdServer(cmd.Context(), *configPath)
		},
	}
}

func runSysCmdServer(ctx context.Context, configPath string) error {
	c, err := buildCore(configPath)
	if err != nil {
		return err
	}
	defer c.close()

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	v := validator.New(&validator.Deps{
		Project:         c.cfg.Project,
		AdminBin:        c.cfg.AdminBin,
		CredentialsFile: c.cfg.CredsFile,
		DataDir:         c.cfg.DataDir,
		Backups:         c.backups,
	})

	r := runner.New(c.processes, c.logger, c.metrics)
	q := queue.New(c.backups, c.restores, c.logger, c.metrics, c.cfg.BackupDir)

	logPath := filepath.Join(c.cfg.StateDir, "cron.log")
	bridge := cronbridge.New(c.cfg.CronDir, c.cfg.Project, selfBinaryPath(), logPath)

	svc := syscmdservice.New(v, r, q, bridge, c.logger)

	srv := &bus.Server{SocketPath: c.cfg.SysCmdSocket, Handler: svc.Handle, Logger: c.logger}
	if err := srv.Listen(); err != nil {
		return fmt.Errorf("listening on %s: %w", c.cfg.SysCmdSocket, err)
	}

	go func() {
		<-ctx.Done()
		c.logger.Info("shutting down syscmd-server")
		_ = srv.Close()
	}()

	c.logger.Info("syscmd-server listening", zap.String("socket", c.cfg.SysCmdSocket))
	if err := srv.Serve(); err != nil {
		return fmt.Errorf("serving %s: %w", c.cfg.SysCmdSocket, err)
	}
	return nil
}

// selfBinaryPath resolves the path to the running executable, so the
// rendered cron fragment invokes the same binary instance that is
// currently writing it rather than a hardcoded install path.
func selfBinaryPath() string {
	p, err := os.Executable()
	if err != nil {
		return "dbcalm"
	}
	return p
}
