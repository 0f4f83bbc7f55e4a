package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/dbcalm/dbcalm/internal/db"
)

// BackupRepository persists successful backup artifacts.
type BackupRepository interface {
	Create(ctx context.Context, b *db.Backup) error
	GetByID(ctx context.Context, id string) (*db.Backup, error)
	Exists(ctx context.Context, id string) (bool, error)
	// Latest returns the most recently started backup, used by the API to
	// auto-detect from_backup_id for an incremental with none supplied.
	Latest(ctx context.Context) (*db.Backup, error)
	ListByScheduleID(ctx context.Context, scheduleID string) ([]db.Backup, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, opts ListOptions) ([]db.Backup, error)
}

type gormBackupRepository struct {
	conn *gorm.DB
}

// NewBackupRepository returns a BackupRepository backed by conn.
func NewBackupRepository(conn *gorm.DB) BackupRepository {
	return &gormBackupRepository{conn: conn}
}

func (r *gormBackupRepository) Create(ctx context.Context, b *db.Backup) error {
	exists, err := r.Exists(ctx, b.ID)
	if err != nil {
		return err
	}
	if exists {
		return ErrConflict
	}
	return r.conn.WithContext(ctx).Create(b).Error
}

func (r *gormBackupRepository) GetByID(ctx context.Context, id string) (*db.Backup, error) {
	var b db.Backup
	if err := r.conn.WithContext(ctx).First(&b, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (r *gormBackupRepository) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	err := r.conn.WithContext(ctx).Model(&db.Backup{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

func (r *gormBackupRepository) Latest(ctx context.Context) (*db.Backup, error) {
	var b db.Backup
	err := r.conn.WithContext(ctx).Order("start_time DESC").First(&b).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (r *gormBackupRepository) ListByScheduleID(ctx context.Context, scheduleID string) ([]db.Backup, error) {
	var backups []db.Backup
	err := r.conn.WithContext(ctx).
		Where("schedule_id = ?", scheduleID).
		Order("start_time ASC").
		Find(&backups).Error
	return backups, err
}

func (r *gormBackupRepository) Delete(ctx context.Context, id string) error {
	result := r.conn.WithContext(ctx).Delete(&db.Backup{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormBackupRepository) List(ctx context.Context, opts ListOptions) ([]db.Backup, error) {
	var backups []db.Backup
	err := r.conn.WithContext(ctx).
		Order("start_time DESC").
		Limit(opts.limit()).
		Offset(opts.Offset).
		Find(&backups).Error
	return backups, err
}
