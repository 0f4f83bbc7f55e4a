package runner

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dbcalm/dbcalm/internal/db"
	"github.com/dbcalm/dbcalm/internal/shellexec"
)

// ExecuteConsecutive chains steps under one command_id, running them one at
// a time with abort-on-failure semantics.
//
// It returns the first spawned Process synchronously (so the caller — the
// command bus — can reply with a command_id immediately) and a
// receive-only channel that publishes exactly one terminal Process: the
// last step to run, whether it is the final success or the first failure.
func (r *Runner) ExecuteConsecutive(ctx context.Context, steps []shellexec.Step, typ db.ProcessType, args db.JSONMap) (*db.Process, <-chan db.Process, error) {
	if len(steps) == 0 {
		return nil, nil, fmt.Errorf("runner: execute_consecutive requires at least one step")
	}

	commandID, err := r.newCommandID(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("runner: generating chain command id: %w", err)
	}

	first, firstDone, err := r.Execute(ctx, steps[0], typ, commandID, args)
	if err != nil {
		return nil, nil, err
	}

	master := make(chan db.Process, 1)

	go r.runChain(ctx, steps[1:], typ, commandID, args, firstDone, master)

	return first, master, nil
}

// runChain waits on each step's local completion channel in turn, stopping
// at the first failure, and publishes exactly one terminal Process — the
// last step that ran — onto master.
func (r *Runner) runChain(ctx context.Context, remaining []shellexec.Step, typ db.ProcessType, commandID string, args db.JSONMap, firstDone <-chan db.Process, master chan<- db.Process) {
	defer close(master)

	terminal := <-firstDone
	if terminal.Status != db.ProcessSuccess {
		master <- terminal
		return
	}

	for _, step := range remaining {
		_, done, err := r.Execute(ctx, step, typ, commandID, args)
		if err != nil {
			r.logger.Error("runner: chain step failed to spawn", zap.Error(err))
			return
		}
		terminal = <-done
		if terminal.Status != db.ProcessSuccess {
			master <- terminal
			return
		}
	}

	master <- terminal
}
