// Package runner is the only component that calls fork/exec equivalents.
// It guarantees every external execution produces exactly one persisted
// Process row whose lifecycle is running -> (success | failed), and
// exactly one terminal entry on its completion channel.
//
// Grounded on the teacher's agent/internal/executor (one job at a time,
// channel handoff, lifecycle reporting) and agent/internal/hooks (capture,
// context timeout, exit-code classification) — generalized here to persist
// every execution as a durable Process row instead of streaming it to a
// remote control plane.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dbcalm/dbcalm/internal/db"
	"github.com/dbcalm/dbcalm/internal/metrics"
	"github.com/dbcalm/dbcalm/internal/repository"
	"github.com/dbcalm/dbcalm/internal/shellexec"
)

// bundleLibraryPathVars lists environment variables a bundled/static
// launcher (e.g. a PyInstaller or AppImage wrapper) commonly injects to
// point the dynamic loader at its own bundled libraries. Child processes
// that expect to run against the host's system libraries (mariabackup,
// mysqladmin) must not inherit them.
var bundleLibraryPathVars = []string{"LD_LIBRARY_PATH", "LD_PRELOAD"}

// Runner supervises external-binary executions and persists their lifecycle.
type Runner struct {
	processes repository.ProcessRepository
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// New returns a Runner backed by the given Process repository.
func New(processes repository.ProcessRepository, logger *zap.Logger, m *metrics.Metrics) *Runner {
	return &Runner{processes: processes, logger: logger, metrics: m}
}

// cleanEnv returns os.Environ() with bundle-injected library-path overrides
// stripped, so children load system libraries instead of the host
// process's bundled ones.
func cleanEnv() []string {
	env := os.Environ()
	out := make([]string, 0, len(env))
	for _, kv := range env {
		strip := false
		for _, v := range bundleLibraryPathVars {
			if strings.HasPrefix(kv, v+"=") {
				strip = true
				break
			}
		}
		if !strip {
			out = append(out, kv)
		}
	}
	return out
}

// newCommandID generates a command_id guaranteed not to already exist
// among persisted Process rows, retrying on collision per spec.
func (r *Runner) newCommandID(ctx context.Context) (string, error) {
	for {
		candidate := uuid.New().String()
		_, err := r.processes.GetByCommandID(ctx, candidate)
		if errors.Is(err, repository.ErrNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
		// collision: loop and draw another candidate.
	}
}

// Execute spawns step, persisting a running Process row synchronously and
// returning immediately with that row and a channel that receives exactly
// one terminal Process once the child completes.
func (r *Runner) Execute(ctx context.Context, step shellexec.Step, typ db.ProcessType, commandID string, args db.JSONMap) (*db.Process, <-chan db.Process, error) {
	if commandID == "" {
		id, err := r.newCommandID(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("runner: generating command id: %w", err)
		}
		commandID = id
	}
	if args == nil {
		args = db.JSONMap{}
	}

	cmd := step.Cmd(ctx)
	cmd.Env = cleanEnv()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now().UTC()

	if err := cmd.Start(); err != nil {
		errText := err.Error()
		proc := db.Process{
			Command:   step.String(),
			CommandID: commandID,
			Status:    db.ProcessFailed,
			Error:     &errText,
			StartTime: start,
			EndTime:   ptrTime(time.Now().UTC()),
			Type:      typ,
			Args:      args,
		}
		if cerr := r.processes.Create(ctx, &proc); cerr != nil {
			return nil, nil, fmt.Errorf("runner: persisting failed spawn: %w", cerr)
		}
		if r.metrics != nil {
			r.metrics.ProcessesFailed.Inc()
		}
		ch := make(chan db.Process, 1)
		ch <- proc
		close(ch)
		return &proc, ch, nil
	}

	proc := db.Process{
		Command:   step.String(),
		CommandID: commandID,
		Pid:       cmd.Process.Pid,
		Status:    db.ProcessRunning,
		StartTime: start,
		Type:      typ,
		Args:      args,
	}
	if err := r.processes.Create(ctx, &proc); err != nil {
		return nil, nil, fmt.Errorf("runner: persisting running process: %w", err)
	}
	if r.metrics != nil {
		r.metrics.ProcessesStarted.Inc()
	}

	done := make(chan db.Process, 1)

	go r.wait(ctx, cmd, &proc, &stdout, &stderr, done)

	return &proc, done, nil
}

// wait blocks on the child, captures its outcome, persists the terminal
// update exactly once, and publishes it on done.
func (r *Runner) wait(ctx context.Context, cmd *exec.Cmd, proc *db.Process, stdout, stderr *bytes.Buffer, done chan<- db.Process) {
	err := cmd.Wait()
	end := time.Now().UTC()

	returnCode := 0
	status := db.ProcessSuccess
	var output, errOutput *string

	if err != nil {
		status = db.ProcessFailed
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			returnCode = exitErr.ExitCode()
		} else {
			returnCode = -1
		}
		out := stdout.String()
		errText := stderr.String()
		output = &out
		errOutput = &errText
	} else {
		merged := stdout.String()
		output = &merged
	}

	proc.Status = status
	proc.ReturnCode = &returnCode
	proc.EndTime = &end
	proc.Output = output
	proc.Error = errOutput

	if uerr := r.processes.Update(ctx, proc); uerr != nil {
		r.logger.Error("runner: failed to persist terminal process",
			zap.String("command_id", proc.CommandID), zap.Error(uerr))
	}

	if r.metrics != nil {
		if status == db.ProcessSuccess {
			r.metrics.ProcessesSucceeded.Inc()
		} else {
			r.metrics.ProcessesFailed.Inc()
		}
	}

	r.logger.Info("process terminated",
		zap.String("command_id", proc.CommandID),
		zap.String("type", string(proc.Type)),
		zap.String("status", string(status)))

	done <- *proc
	close(done)
}

func ptrTime(t time.Time) *time.Time { return &t }
