// Package cronbridge renders enabled Schedules into a /etc/cron.d fragment.
// The core treats cron as the only scheduling primitive for driving
// backups; this package is the system command service's implementation of
// update_cron_schedules.
//
// Grounded on server/internal/scheduler.Scheduler for the "construct once,
// re-render on update" idiom (gocron elsewhere handles the in-process
// housekeeping scheduler, §4.9) and on github.com/robfig/cron/v3's
// expression parser — embedded transitively via gocron — used here
// directly to validate each generated fragment before it is written.
package cronbridge

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/robfig/cron/v3"

	"github.com/dbcalm/dbcalm/internal/db"
)

// Bridge writes the project's cron fragment.
type Bridge struct {
	CronDir string
	Project string
	// Binary is the path to the dbcalm binary invoked by each cron line.
	Binary string
	// LogPath is where each scheduled run's stdout/stderr is appended.
	LogPath string

	parser cron.Parser
}

// New returns a Bridge. parser validates standard 5-field cron expressions.
func New(cronDir, project, binary, logPath string) *Bridge {
	return &Bridge{
		CronDir: cronDir,
		Project: project,
		Binary:  binary,
		LogPath: logPath,
		parser:  cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
	}
}

// CronExpr renders s's frequency into a standard 5-field cron expression.
func CronExpr(s db.Schedule) (string, error) {
	switch s.Frequency {
	case db.FrequencyInterval:
		if s.IntervalValue == nil || s.IntervalUnit == nil {
			return "", fmt.Errorf("cronbridge: interval schedule missing interval_value/interval_unit")
		}
		switch *s.IntervalUnit {
		case db.IntervalMinutes:
			return fmt.Sprintf("*/%d * * * *", *s.IntervalValue), nil
		case db.IntervalHours:
			return fmt.Sprintf("0 */%d * * *", *s.IntervalValue), nil
		default:
			return "", fmt.Errorf("cronbridge: unrecognized interval_unit %q", *s.IntervalUnit)
		}
	case db.FrequencyHourly:
		if s.Minute == nil {
			return "", fmt.Errorf("cronbridge: hourly schedule missing minute")
		}
		return fmt.Sprintf("%d * * * *", *s.Minute), nil
	case db.FrequencyDaily:
		if s.Minute == nil || s.Hour == nil {
			return "", fmt.Errorf("cronbridge: daily schedule missing hour/minute")
		}
		return fmt.Sprintf("%d %d * * *", *s.Minute, *s.Hour), nil
	case db.FrequencyWeekly:
		if s.Minute == nil || s.Hour == nil || s.DayOfWeek == nil {
			return "", fmt.Errorf("cronbridge: weekly schedule missing hour/minute/day_of_week")
		}
		return fmt.Sprintf("%d %d * * %d", *s.Minute, *s.Hour, *s.DayOfWeek), nil
	case db.FrequencyMonthly:
		if s.Minute == nil || s.Hour == nil || s.DayOfMonth == nil {
			return "", fmt.Errorf("cronbridge: monthly schedule missing hour/minute/day_of_month")
		}
		return fmt.Sprintf("%d %d %d * *", *s.Minute, *s.Hour, *s.DayOfMonth), nil
	default:
		return "", fmt.Errorf("cronbridge: unrecognized frequency %q", s.Frequency)
	}
}

// line renders one cron.d line for an enabled schedule.
func (b *Bridge) line(s db.Schedule) (string, error) {
	expr, err := CronExpr(s)
	if err != nil {
		return "", err
	}
	if _, perr := b.parser.Parse(expr); perr != nil {
		return "", fmt.Errorf("cronbridge: generated expression %q is invalid: %w", expr, perr)
	}
	return fmt.Sprintf("%s root %s backup %s --schedule-id=%s >> %s 2>&1",
		expr, b.Binary, s.BackupType, s.ID, b.LogPath), nil
}

// Render filters to enabled schedules and renders their cron.d lines, in
// the order given.
func (b *Bridge) Render(schedules []db.Schedule) ([]string, error) {
	var lines []string
	for _, s := range schedules {
		if !s.Enabled {
			continue
		}
		line, err := b.line(s)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// Write renders schedules and atomically replaces
// <CronDir>/<Project> with the result: write to a temp file in the same
// directory, chmod 644, then rename — idempotent and safe against a
// reader observing a half-written fragment.
func (b *Bridge) Write(schedules []db.Schedule) error {
	lines, err := b.Render(schedules)
	if err != nil {
		return err
	}

	contents := ""
	for _, l := range lines {
		contents += l + "\n"
	}

	target := filepath.Join(b.CronDir, b.Project)
	tmp, err := os.CreateTemp(b.CronDir, "."+b.Project+".tmp-*")
	if err != nil {
		return fmt.Errorf("cronbridge: creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.WriteString(contents); err != nil {
		tmp.Close()
		return fmt.Errorf("cronbridge: writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("cronbridge: closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("cronbridge: chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		return fmt.Errorf("cronbridge: renaming into place: %w", err)
	}
	return nil
}
