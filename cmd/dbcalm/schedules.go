package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dbcalm/dbcalm/internal/bus"
	"github.com/dbcalm/dbcalm/internal/db"
	"github.com/dbcalm/dbcalm/internal/validator"
)

// syncCron re-renders the cron fragment from the current set of enabled
// schedules. It is best-effort: the system command service may not be
// running yet on a fresh install, and a failure here never rolls back the
// schedule mutation that triggered it — the next successful sync (or a
// manual `update_cron_schedules` call) reconciles the fragment.
func syncCron(ctx context.Context, c *core) {
	enabled, err := c.schedules.ListEnabled(ctx)
	if err != nil {
		c.logger.Warn("schedules: failed to list enabled schedules for cron sync")
		return
	}

	client := &bus.Client{SocketPath: c.cfg.SysCmdSocket, Timeout: c.cfg.SocketTimeout()}
	resp := client.Call(bus.Request{Cmd: "update_cron_schedules", Args: map[string]any{"schedules": enabled}})
	if resp.Code != int(bus.CodeAccepted) {
		c.logger.Warn("schedules: cron sync did not complete", zap.String("status", resp.Status))
	}
}

func newSchedulesCmd(configPath *string) *cobra.Command {
	root := &cobra.Command{
		Use:   "schedules",
		Short: "Manage recurring backup rules directly against the persistence port",
	}

	root.AddCommand(newSchedulesAddCmd(configPath))
	root.AddCommand(newSchedulesDeleteCmd(configPath))
	root.AddCommand(newSchedulesEnableCmd(configPath))
	root.AddCommand(newSchedulesListCmd(configPath))

	return root
}

func newSchedulesAddCmd(configPath *string) *cobra.Command {
	var (
		backupType     string
		frequency      string
		dayOfWeek      int
		dayOfMonth     int
		hour           int
		minute         int
		intervalValue  int
		intervalUnit   string
		retentionValue int
		retentionUnit  string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a recurring backup schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildCore(*configPath)
			if err != nil {
				return err
			}
			defer c.close()

			s := db.Schedule{
				BackupType: db.BackupType(backupType),
				Frequency:  db.ScheduleFrequency(frequency),
				Enabled:    true,
			}
			if cmd.Flags().Changed("day-of-week") {
				s.DayOfWeek = &dayOfWeek
			}
			if cmd.Flags().Changed("day-of-month") {
				s.DayOfMonth = &dayOfMonth
			}
			if cmd.Flags().Changed("hour") {
				s.Hour = &hour
			}
			if cmd.Flags().Changed("minute") {
				s.Minute = &minute
			}
			if cmd.Flags().Changed("interval-value") {
				s.IntervalValue = &intervalValue
			}
			if cmd.Flags().Changed("interval-unit") {
				u := db.IntervalUnit(intervalUnit)
				s.IntervalUnit = &u
			}
			if cmd.Flags().Changed("retention-value") {
				s.RetentionValue = &retentionValue
			}
			if cmd.Flags().Changed("retention-unit") {
				u := db.RetentionUnit(retentionUnit)
				s.RetentionUnit = &u
			}

			if s.BackupType == db.BackupIncremental {
				hasFull, err := c.schedules.HasEnabledFull(cmd.Context())
				if err != nil {
					return fmt.Errorf("schedules add: %w", err)
				}
				if !hasFull {
					return fmt.Errorf("schedules add: an enabled full-backup schedule is required before creating an incremental one")
				}
			}

			if verr := validator.ValidateSchedule(&s); verr != nil {
				return fmt.Errorf("schedules add: %s", verr.Message)
			}

			if err := c.schedules.Create(cmd.Context(), &s); err != nil {
				return fmt.Errorf("schedules add: %w", err)
			}
			syncCron(cmd.Context(), c)
			fmt.Printf("created schedule %s\n", s.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&backupType, "backup-type", "", fmt.Sprintf("%q or %q (required)", db.BackupFull, db.BackupIncremental))
	cmd.Flags().StringVar(&frequency, "frequency", "", "hourly|daily|weekly|monthly|interval (required)")
	cmd.Flags().IntVar(&dayOfWeek, "day-of-week", 0, "0-6, required for weekly")
	cmd.Flags().IntVar(&dayOfMonth, "day-of-month", 0, "1-28, required for monthly")
	cmd.Flags().IntVar(&hour, "hour", 0, "0-23")
	cmd.Flags().IntVar(&minute, "minute", 0, "0-59")
	cmd.Flags().IntVar(&intervalValue, "interval-value", 0, "required for frequency=interval")
	cmd.Flags().StringVar(&intervalUnit, "interval-unit", "", "minutes|hours, required for frequency=interval")
	cmd.Flags().IntVar(&retentionValue, "retention-value", 0, "retention window length")
	cmd.Flags().StringVar(&retentionUnit, "retention-unit", "", "days|weeks|months")
	_ = cmd.MarkFlagRequired("backup-type")
	_ = cmd.MarkFlagRequired("frequency")

	return cmd
}

func newSchedulesDeleteCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("schedules delete: invalid id %q: %w", args[0], err)
			}

			c, err := buildCore(*configPath)
			if err != nil {
				return err
			}
			defer c.close()

			if err := c.schedules.Delete(cmd.Context(), id); err != nil {
				return fmt.Errorf("schedules delete: %w", err)
			}
			syncCron(cmd.Context(), c)
			fmt.Printf("deleted schedule %s\n", id)
			return nil
		},
	}
}

func newSchedulesEnableCmd(configPath *string) *cobra.Command {
	var enabled bool

	cmd := &cobra.Command{
		Use:   "set-enabled <id>",
		Short: "Enable or disable a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("schedules set-enabled: invalid id %q: %w", args[0], err)
			}

			c, err := buildCore(*configPath)
			if err != nil {
				return err
			}
			defer c.close()

			s, err := c.schedules.GetByID(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("schedules set-enabled: %w", err)
			}
			s.Enabled = enabled

			if err := c.schedules.Update(cmd.Context(), s); err != nil {
				return fmt.Errorf("schedules set-enabled: %w", err)
			}
			syncCron(cmd.Context(), c)
			fmt.Printf("schedule %s enabled=%v\n", id, enabled)
			return nil
		},
	}

	cmd.Flags().BoolVar(&enabled, "enabled", true, "desired enabled state")

	return cmd
}

func newSchedulesListCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildCore(*configPath)
			if err != nil {
				return err
			}
			defer c.close()

			schedules, err := c.schedules.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("schedules list: %w", err)
			}
			for _, s := range schedules {
				fmt.Printf("%s\t%s\t%s\tenabled=%v\n", s.ID, s.BackupType, s.Frequency, s.Enabled)
			}
			return nil
		},
	}
}
