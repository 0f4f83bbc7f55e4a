// Package db defines dbcalm's gorm models and the sqlite connection used by
// every binary. There is exactly one physical store: a single SQLite file
// per the persisted-state layout.
package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// base is embedded by entities that use a UUIDv7 surrogate key. Process,
// Backup and Restore use their own key types instead (see below)
// because the spec assigns them their own id shapes.
type base struct {
	ID        uuid.UUID `gorm:"type:text;primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BeforeCreate assigns a time-ordered UUIDv7 if the caller left ID zero.
func (b *base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		b.ID = id
	}
	return nil
}

// ProcessStatus is the lifecycle state of a Process row.
type ProcessStatus string

const (
	ProcessRunning ProcessStatus = "running"
	ProcessSuccess ProcessStatus = "success"
	ProcessFailed  ProcessStatus = "failed"
)

// ProcessType names the kind of work a Process performed.
type ProcessType string

const (
	ProcessBackup               ProcessType = "backup"
	ProcessRestore              ProcessType = "restore"
	ProcessCleanupBackups       ProcessType = "cleanup_backups"
	ProcessUpdateCronSchedules  ProcessType = "update_cron_schedules"
	ProcessMySQLPingCheck       ProcessType = "mysql_ping_check"
	ProcessDeleteDirectory      ProcessType = "delete_directory"
)

// Process records a single external-binary execution. It is an append-only
// audit row: created at spawn with status=running, updated exactly once at
// termination, never deleted.
type Process struct {
	ID        uint          `gorm:"primaryKey;autoIncrement"`
	Command   string        `gorm:"not null"`
	CommandID string        `gorm:"index;not null"`
	Pid       int
	Status    ProcessStatus `gorm:"index;not null"`
	Output    *string
	Error     *string
	ReturnCode *int
	StartTime time.Time `gorm:"not null"`
	EndTime   *time.Time
	Type      ProcessType `gorm:"index;not null"`
	Args      JSONMap     `gorm:"type:text"`
}

// Backup is a successful backup artifact, materialized by the queue handler
// from a terminal Process.
type Backup struct {
	ID            string `gorm:"primaryKey"`
	FromBackupID  *string `gorm:"index"`
	ScheduleID    *string `gorm:"index"`
	StartTime     time.Time `gorm:"not null"`
	EndTime       time.Time `gorm:"not null"`
	ProcessID     uint      `gorm:"not null"`
}

// RestoreTarget is where a restore lands.
type RestoreTarget string

const (
	RestoreDatabase RestoreTarget = "database"
	RestoreFolder   RestoreTarget = "folder"
)

// Restore is a completed restore attempt.
type Restore struct {
	ID              string `gorm:"primaryKey"`
	StartTime       time.Time `gorm:"not null"`
	EndTime         time.Time `gorm:"not null"`
	Target          RestoreTarget `gorm:"not null"`
	TargetPath      string        `gorm:"not null"`
	BackupID        string        `gorm:"index;not null"`
	BackupTimestamp time.Time     `gorm:"not null"`
	ProcessID       uint          `gorm:"not null"`
}

// BackupType is the kind of backup a Schedule produces.
type BackupType string

const (
	BackupFull        BackupType = "full"
	BackupIncremental BackupType = "incremental"
)

// ScheduleFrequency determines which optional fields a Schedule requires.
type ScheduleFrequency string

const (
	FrequencyHourly   ScheduleFrequency = "hourly"
	FrequencyDaily    ScheduleFrequency = "daily"
	FrequencyWeekly   ScheduleFrequency = "weekly"
	FrequencyMonthly  ScheduleFrequency = "monthly"
	FrequencyInterval ScheduleFrequency = "interval"
)

// RetentionUnit is the unit retention_value is expressed in.
type RetentionUnit string

const (
	RetentionDays   RetentionUnit = "days"
	RetentionWeeks  RetentionUnit = "weeks"
	RetentionMonths RetentionUnit = "months"
)

// IntervalUnit is the unit interval_value is expressed in for
// frequency=interval schedules.
type IntervalUnit string

const (
	IntervalMinutes IntervalUnit = "minutes"
	IntervalHours   IntervalUnit = "hours"
)

// Schedule is a recurring backup rule, rendered into a cron fragment by the
// scheduler bridge.
type Schedule struct {
	base
	BackupType     BackupType        `gorm:"not null"`
	Frequency      ScheduleFrequency `gorm:"not null"`
	DayOfWeek      *int
	DayOfMonth     *int
	Hour           *int
	Minute         *int
	IntervalValue  *int
	IntervalUnit   *IntervalUnit
	RetentionValue *int
	RetentionUnit  *RetentionUnit
	Enabled        bool `gorm:"not null;default:true"`
}

// Client is an API credential: a machine principal authenticating via
// client-credentials. Secret is always a bcrypt hash; the plaintext is
// surfaced to the caller exactly once, at creation time, and never stored.
type Client struct {
	base
	Secret string   `gorm:"not null"`
	Scopes []string `gorm:"serializer:json"`
	Label  string
}

// User is an operator login.
type User struct {
	base
	Username string `gorm:"uniqueIndex;not null"`
	Password string `gorm:"not null"`
}

// AuthCode is a short-lived authorization code issued on user login.
type AuthCode struct {
	Code      string   `gorm:"primaryKey"`
	Username  string   `gorm:"not null"`
	Scopes    []string `gorm:"serializer:json"`
	ExpiresAt int64    `gorm:"not null"`
}
