package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dbcalm/dbcalm/internal/backupcmd"
	"github.com/dbcalm/dbcalm/internal/bus"
	"github.com/dbcalm/dbcalm/internal/config"
	"github.com/dbcalm/dbcalm/internal/dbcmdservice"
	"github.com/dbcalm/dbcalm/internal/queue"
	"github.com/dbcalm/dbcalm/internal/runner"
	"github.com/dbcalm/dbcalm/internal/validator"
)

func newDBCmdServerCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "dbcmd-server",
		Short: "Run the DB command service (socket A)",
		Long: `dbcmd-server listens on socket A and owns full_backup, incremental_backup
and restore_backup. It must run as the OS user that owns the data
directory and backup directory — mariabackup/xtrabackup need that access.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBCmdServer(cmd.Context(), *configPath)
		},
	}
}

func runDBCmdServer(ctx context.Context, configPath string) error {
	c, err := buildCore(configPath)
	if err != nil {
		return err
	}
	defer c.close()

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmdCfg := backupcmd.Config{
		Engine:          detectEngine(c.cfg),
		Project:         c.cfg.Project,
		BackupBin:       c.cfg.BackupBin,
		AdminBin:        c.cfg.AdminBin,
		CredentialsFile: c.cfg.CredsFile,
		BackupDir:       c.cfg.BackupDir,
		DataDir:         c.cfg.DataDir,
	}
	detector := backupcmd.NewVersionDetector(cmdCfg)

	v := validator.New(&validator.Deps{
		Project:         c.cfg.Project,
		AdminBin:        c.cfg.AdminBin,
		CredentialsFile: c.cfg.CredsFile,
		DataDir:         c.cfg.DataDir,
		Backups:         c.backups,
	})

	r := runner.New(c.processes, c.logger, c.metrics)
	q := queue.New(c.backups, c.restores, c.logger, c.metrics, c.cfg.BackupDir)

	svc := dbcmdservice.New(v, r, q, cmdCfg, detector, c.logger)

	srv := &bus.Server{SocketPath: c.cfg.DBCmdSocket, Handler: svc.Handle, Logger: c.logger}
	if err := srv.Listen(); err != nil {
		return fmt.Errorf("listening on %s: %w", c.cfg.DBCmdSocket, err)
	}

	go func() {
		<-ctx.Done()
		c.logger.Info("shutting down dbcmd-server")
		_ = srv.Close()
	}()

	c.logger.Info("dbcmd-server listening", zap.String("socket", c.cfg.DBCmdSocket))
	if err := srv.Serve(); err != nil {
		return fmt.Errorf("serving %s: %w", c.cfg.DBCmdSocket, err)
	}
	return nil
}

// detectEngine picks the mariabackup/xtrabackup engine variant from the
// configured backup binary's name, since config does not carry a separate
// engine switch.
func detectEngine(cfg config.Config) backupcmd.Engine {
	if strings.Contains(strings.ToLower(cfg.BackupBin), "xtrabackup") {
		return backupcmd.EngineMySQL
	}
	return backupcmd.EngineMariaDB
}
