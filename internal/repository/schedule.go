package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dbcalm/dbcalm/internal/db"
)

// ScheduleRepository persists recurring backup rules.
type ScheduleRepository interface {
	Create(ctx context.Context, s *db.Schedule) error
	GetByID(ctx context.Context, id uuid.UUID) (*db.Schedule, error)
	Update(ctx context.Context, s *db.Schedule) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]db.Schedule, error)
	ListEnabled(ctx context.Context) ([]db.Schedule, error)
	// HasEnabledFull reports whether at least one enabled full-backup
	// schedule exists — a prerequisite for creating an incremental one.
	HasEnabledFull(ctx context.Context) (bool, error)
}

type gormScheduleRepository struct {
	conn *gorm.DB
}

// NewScheduleRepository returns a ScheduleRepository backed by conn.
func NewScheduleRepository(conn *gorm.DB) ScheduleRepository {
	return &gormScheduleRepository{conn: conn}
}

func (r *gormScheduleRepository) Create(ctx context.Context, s *db.Schedule) error {
	return r.conn.WithContext(ctx).Create(s).Error
}

func (r *gormScheduleRepository) GetByID(ctx context.Context, id uuid.UUID) (*db.Schedule, error) {
	var s db.Schedule
	if err := r.conn.WithContext(ctx).First(&s, "id = ?", id.String()).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *gormScheduleRepository) Update(ctx context.Context, s *db.Schedule) error {
	result := r.conn.WithContext(ctx).Save(s)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormScheduleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.conn.WithContext(ctx).Delete(&db.Schedule{}, "id = ?", id.String())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormScheduleRepository) List(ctx context.Context) ([]db.Schedule, error) {
	var schedules []db.Schedule
	err := r.conn.WithContext(ctx).Order("created_at ASC").Find(&schedules).Error
	return schedules, err
}

func (r *gormScheduleRepository) ListEnabled(ctx context.Context) ([]db.Schedule, error) {
	var schedules []db.Schedule
	err := r.conn.WithContext(ctx).Where("enabled = ?", true).Find(&schedules).Error
	return schedules, err
}

func (r *gormScheduleRepository) HasEnabledFull(ctx context.Context) (bool, error) {
	var count int64
	err := r.conn.WithContext(ctx).
		Model(&db.Schedule{}).
		Where("enabled = ? AND backup_type = ?", true, db.BackupFull).
		Count(&count).Error
	return count > 0, err
}
