// Package syscmdservice adapts the cleanup_backups and
// update_cron_schedules commands (socket B in spec.md's terms) onto the
// process runner, queue handler and cron bridge. It runs as root, since
// rm -rf on backup folders and writing /etc/cron.d/<project> both
// require privileges the DB service's OS user does not have.
package syscmdservice

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dbcalm/dbcalm/internal/bus"
	"github.com/dbcalm/dbcalm/internal/cronbridge"
	"github.com/dbcalm/dbcalm/internal/db"
	"github.com/dbcalm/dbcalm/internal/queue"
	"github.com/dbcalm/dbcalm/internal/runner"
	"github.com/dbcalm/dbcalm/internal/shellexec"
	"github.com/dbcalm/dbcalm/internal/validator"
)

// Service binds the system command service's two recognized commands to
// their concrete implementations.
type Service struct {
	validator *validator.Validator
	runner    *runner.Runner
	queue     *queue.Handler
	bridge    *cronbridge.Bridge
	logger    *zap.Logger
}

// New returns a Service.
func New(v *validator.Validator, r *runner.Runner, q *queue.Handler, bridge *cronbridge.Bridge, logger *zap.Logger) *Service {
	return &Service{validator: v, runner: r, queue: q, bridge: bridge, logger: logger.Named("syscmdservice")}
}

// Handle is the bus.Handler the command-bus server dispatches every
// accepted request to.
func (s *Service) Handle(req bus.Request) bus.Response {
	ctx := context.Background()

	if verr := s.validator.Validate(ctx, req.Cmd, req.Args); verr != nil {
		return bus.Response{Code: int(verr.Code), Status: verr.Message}
	}

	switch req.Cmd {
	case "cleanup_backups":
		return s.cleanupBackups(ctx, req.Args)
	case "update_cron_schedules":
		return s.updateCronSchedules(req.Args)
	default:
		return bus.Response{Code: int(bus.CodeBadRequest), Status: fmt.Sprintf("unrecognized command %q", req.Cmd)}
	}
}

func (s *Service) cleanupBackups(ctx context.Context, args map[string]any) bus.Response {
	folders := toStringSlice(args["folders"])

	argv := append([]string{"rm", "-rf"}, folders...)
	step := shellexec.Direct(argv...)

	proc, ch, err := s.runner.Execute(ctx, step, db.ProcessCleanupBackups, "", db.JSONMap(args))
	if err != nil {
		s.logger.Error("spawning cleanup process", zap.Error(err))
		return bus.Response{Code: int(bus.CodeInternal), Status: "error"}
	}

	go s.queue.Run(context.Background(), ch)

	return bus.Response{Code: int(bus.CodeAccepted), Status: "Accepted", ID: proc.CommandID}
}

// updateCronSchedules renders and atomically writes /etc/cron.d/<project>.
// Unlike the backup/restore/cleanup commands, this is synchronous — there
// is no child process to track, no Process row to create, just a file
// write the command-bus response's status reflects directly.
func (s *Service) updateCronSchedules(args map[string]any) bus.Response {
	schedules, err := decodeSchedules(args["schedules"])
	if err != nil {
		return bus.Response{Code: int(bus.CodeBadRequest), Status: err.Error()}
	}

	if err := s.bridge.Write(schedules); err != nil {
		s.logger.Error("writing cron fragment", zap.Error(err))
		return bus.Response{Code: int(bus.CodeInternal), Status: "error"}
	}

	return bus.Response{Code: int(bus.CodeAccepted), Status: "Accepted"}
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
