// Package validator is dbcalm's precondition gate: a table-driven rule
// engine keyed by command name. Each command declares required args,
// unique-id args, and named gate checks, evaluated in order.
//
// The source this replaces dispatched validation via ad-hoc per-request
// checks sprinkled through request handlers (method-lookup-by-name in
// spirit). Here every command's rules live in one closed table.
package validator

import (
	"context"
	"fmt"
)

// Code is a command-bus response code.
type Code int

const (
	CodeOK                   Code = 200
	CodeBadRequest           Code = 400
	CodeConflict             Code = 409
	CodePreconditionFailed   Code = 503
)

// Error is returned by Validate when a command fails a rule. Code maps
// directly onto the command-bus response's "code" field.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string { return fmt.Sprintf("validator: %d %s", e.Code, e.Message) }

// Gate is a named precondition check evaluated against a command's args.
type Gate func(ctx context.Context, d *Deps, args map[string]any) *Error

// CommandSpec declares one command's validation rules.
type CommandSpec struct {
	Required []string
	// UniqueBackupIDArg names the arg key (if any) whose value must not
	// already exist as a Backup id.
	UniqueBackupIDArg string
	Gates             []Gate
}

// Validator evaluates CommandSpecs against incoming command args.
type Validator struct {
	deps  *Deps
	table map[string]CommandSpec
}

// New returns a Validator with the standard dbcalm command table.
func New(deps *Deps) *Validator {
	return &Validator{deps: deps, table: defaultTable()}
}

// Validate runs cmd's declared rules against args in order: required args,
// then unique-id check, then gates. The first failing rule determines the
// returned error's code.
func (v *Validator) Validate(ctx context.Context, cmd string, args map[string]any) *Error {
	spec, ok := v.table[cmd]
	if !ok {
		return &Error{Code: CodeBadRequest, Message: fmt.Sprintf("unrecognized command %q", cmd)}
	}

	for _, key := range spec.Required {
		if _, present := args[key]; !present {
			return &Error{Code: CodeBadRequest, Message: fmt.Sprintf("missing required arg %q", key)}
		}
	}

	if spec.UniqueBackupIDArg != "" {
		id, _ := args[spec.UniqueBackupIDArg].(string)
		if id == "" {
			return &Error{Code: CodeBadRequest, Message: fmt.Sprintf("arg %q must be a non-empty string", spec.UniqueBackupIDArg)}
		}
		exists, err := v.deps.Backups.Exists(ctx, id)
		if err != nil {
			return &Error{Code: CodePreconditionFailed, Message: "backup lookup failed: " + err.Error()}
		}
		if exists {
			return &Error{Code: CodeConflict, Message: fmt.Sprintf("backup %q already exists", id)}
		}
	}

	for _, gate := range spec.Gates {
		if gerr := gate(ctx, v.deps, args); gerr != nil {
			return gerr
		}
	}

	return nil
}

func defaultTable() map[string]CommandSpec {
	return map[string]CommandSpec{
		"full_backup": {
			Required:          []string{"id"},
			UniqueBackupIDArg:  "id",
			Gates:              []Gate{GateServerAlive, GateCredentialsFileValid},
		},
		"incremental_backup": {
			Required:          []string{"id", "from_backup_id"},
			UniqueBackupIDArg:  "id",
			Gates:              []Gate{GateServerAlive, GateCredentialsFileValid},
		},
		"restore_backup": {
			Required: []string{"id_list", "target"},
			Gates:    []Gate{GateRestorePrecondition, GateCredentialsFileValid},
		},
		"cleanup_backups": {
			Required: []string{"backup_ids", "folders"},
		},
		"update_cron_schedules": {
			Required: []string{"schedules"},
		},
	}
}
