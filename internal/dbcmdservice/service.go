// Package dbcmdservice adapts the full_backup, incremental_backup and
// restore_backup commands (socket A in spec.md's terms) onto the
// validator, command builder, process runner and queue handler. It runs
// as the same OS user as the database server so mariabackup/xtrabackup
// can read the data directory.
package dbcmdservice

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dbcalm/dbcalm/internal/backupcmd"
	"github.com/dbcalm/dbcalm/internal/bus"
	"github.com/dbcalm/dbcalm/internal/db"
	"github.com/dbcalm/dbcalm/internal/queue"
	"github.com/dbcalm/dbcalm/internal/runner"
	"github.com/dbcalm/dbcalm/internal/shellexec"
	"github.com/dbcalm/dbcalm/internal/validator"
)

// Service binds the DB command service's three recognized commands to
// their concrete implementations.
type Service struct {
	validator *validator.Validator
	runner    *runner.Runner
	queue     *queue.Handler
	cmdCfg    backupcmd.Config
	detector  *backupcmd.VersionDetector
	logger    *zap.Logger
}

// New returns a Service.
func New(v *validator.Validator, r *runner.Runner, q *queue.Handler, cmdCfg backupcmd.Config, detector *backupcmd.VersionDetector, logger *zap.Logger) *Service {
	return &Service{validator: v, runner: r, queue: q, cmdCfg: cmdCfg, detector: detector, logger: logger.Named("dbcmdservice")}
}

// Handle is the bus.Handler the command-bus server dispatches every
// accepted request to.
func (s *Service) Handle(req bus.Request) bus.Response {
	ctx := context.Background()

	if verr := s.validator.Validate(ctx, req.Cmd, req.Args); verr != nil {
		return bus.Response{Code: int(verr.Code), Status: verr.Message}
	}

	switch req.Cmd {
	case "full_backup":
		return s.fullBackup(ctx, req.Args)
	case "incremental_backup":
		return s.incrementalBackup(ctx, req.Args)
	case "restore_backup":
		return s.restoreBackup(ctx, req.Args)
	default:
		return bus.Response{Code: int(bus.CodeBadRequest), Status: fmt.Sprintf("unrecognized command %q", req.Cmd)}
	}
}

func (s *Service) fullBackup(ctx context.Context, args map[string]any) bus.Response {
	id, _ := args["id"].(string)
	step := backupcmd.BuildFullBackupCmd(s.cmdCfg, id, backupcmd.BackupOptions{})
	return s.dispatch(ctx, step, db.ProcessBackup, args)
}

func (s *Service) incrementalBackup(ctx context.Context, args map[string]any) bus.Response {
	id, _ := args["id"].(string)
	fromID, _ := args["from_backup_id"].(string)
	step := backupcmd.BuildIncrementalBackupCmd(s.cmdCfg, id, fromID, backupcmd.BackupOptions{})
	return s.dispatch(ctx, step, db.ProcessBackup, args)
}

func (s *Service) restoreBackup(ctx context.Context, args map[string]any) bus.Response {
	idList := toStringSlice(args["id_list"])
	target, _ := args["target"].(string)
	tmpDir, _ := args["tmp_dir"].(string)

	steps, err := backupcmd.BuildRestoreCmds(ctx, s.cmdCfg, s.detector, tmpDir, idList, backupcmd.RestoreTarget(target))
	if err != nil {
		s.logger.Error("building restore command chain", zap.Error(err))
		return bus.Response{Code: int(bus.CodeInternal), Status: "error"}
	}
	return s.dispatchChain(ctx, steps, db.ProcessRestore, args)
}

// dispatch spawns a single step via the runner, starts the queue handler
// on its completion channel, and returns the command-bus acceptance
// receipt.
func (s *Service) dispatch(ctx context.Context, step shellexec.Step, typ db.ProcessType, args map[string]any) bus.Response {
	proc, ch, err := s.runner.Execute(ctx, step, typ, "", db.JSONMap(args))
	if err != nil {
		s.logger.Error("spawning process", zap.Error(err))
		return bus.Response{Code: int(bus.CodeInternal), Status: "error"}
	}

	go s.queue.Run(context.Background(), ch)

	return bus.Response{Code: int(bus.CodeAccepted), Status: "Accepted", ID: proc.CommandID}
}

// dispatchChain runs steps consecutively via the runner, starts the queue
// handler on the chain's master completion channel, and returns the
// command-bus acceptance receipt keyed by the chain's single command_id.
func (s *Service) dispatchChain(ctx context.Context, steps []shellexec.Step, typ db.ProcessType, args map[string]any) bus.Response {
	first, master, err := s.runner.ExecuteConsecutive(ctx, steps, typ, db.JSONMap(args))
	if err != nil {
		s.logger.Error("spawning process chain", zap.Error(err))
		return bus.Response{Code: int(bus.CodeInternal), Status: "error"}
	}

	go s.queue.Run(context.Background(), master)

	return bus.Response{Code: int(bus.CodeAccepted), Status: "Accepted", ID: first.CommandID}
}

func toStringSlice(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		if s, ok := v.([]string); ok {
			return s
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, e := range raw {
		if str, ok := e.(string); ok {
			out = append(out, str)
		}
	}
	return out
}
