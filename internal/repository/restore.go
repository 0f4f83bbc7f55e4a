package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/dbcalm/dbcalm/internal/db"
)

// RestoreRepository persists completed restore attempts.
type RestoreRepository interface {
	Create(ctx context.Context, r *db.Restore) error
	GetByID(ctx context.Context, id string) (*db.Restore, error)
	List(ctx context.Context, opts ListOptions) ([]db.Restore, error)
}

type gormRestoreRepository struct {
	conn *gorm.DB
}

// NewRestoreRepository returns a RestoreRepository backed by conn.
func NewRestoreRepository(conn *gorm.DB) RestoreRepository {
	return &gormRestoreRepository{conn: conn}
}

func (r *gormRestoreRepository) Create(ctx context.Context, rec *db.Restore) error {
	return r.conn.WithContext(ctx).Create(rec).Error
}

func (r *gormRestoreRepository) GetByID(ctx context.Context, id string) (*db.Restore, error) {
	var rec db.Restore
	if err := r.conn.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (r *gormRestoreRepository) List(ctx context.Context, opts ListOptions) ([]db.Restore, error) {
	var restores []db.Restore
	err := r.conn.WithContext(ctx).
		Order("start_time DESC").
		Limit(opts.limit()).
		Offset(opts.Offset).
		Find(&restores).Error
	return restores, err
}
