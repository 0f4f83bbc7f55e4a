package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/dbcalm/dbcalm/internal/db"
)

// ProcessRepository persists the audit stream of external-binary
// executions. Rows are created once at spawn and updated exactly once at
// termination; they are never deleted.
type ProcessRepository interface {
	Create(ctx context.Context, p *db.Process) error
	GetByID(ctx context.Context, id uint) (*db.Process, error)
	GetByCommandID(ctx context.Context, commandID string) (*db.Process, error)
	// LatestByCommandID returns the most recent Process sharing commandID,
	// ordered by id descending — used by the status-projection endpoint.
	LatestByCommandID(ctx context.Context, commandID string) (*db.Process, error)
	Update(ctx context.Context, p *db.Process) error
	ListRunningOlderThan(ctx context.Context, cutoff time.Time) ([]db.Process, error)
}

type gormProcessRepository struct {
	conn *gorm.DB
}

// NewProcessRepository returns a ProcessRepository backed by conn.
func NewProcessRepository(conn *gorm.DB) ProcessRepository {
	return &gormProcessRepository{conn: conn}
}

func (r *gormProcessRepository) Create(ctx context.Context, p *db.Process) error {
	return r.conn.WithContext(ctx).Create(p).Error
}

func (r *gormProcessRepository) GetByID(ctx context.Context, id uint) (*db.Process, error) {
	var p db.Process
	if err := r.conn.WithContext(ctx).First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *gormProcessRepository) GetByCommandID(ctx context.Context, commandID string) (*db.Process, error) {
	var p db.Process
	err := r.conn.WithContext(ctx).Where("command_id = ?", commandID).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *gormProcessRepository) LatestByCommandID(ctx context.Context, commandID string) (*db.Process, error) {
	var p db.Process
	err := r.conn.WithContext(ctx).
		Where("command_id = ?", commandID).
		Order("id DESC").
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *gormProcessRepository) Update(ctx context.Context, p *db.Process) error {
	result := r.conn.WithContext(ctx).Save(p)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormProcessRepository) ListRunningOlderThan(ctx context.Context, cutoff time.Time) ([]db.Process, error) {
	var procs []db.Process
	err := r.conn.WithContext(ctx).
		Where("status = ? AND start_time < ?", db.ProcessRunning, cutoff).
		Find(&procs).Error
	return procs, err
}
