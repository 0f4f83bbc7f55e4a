package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/dbcalm/dbcalm/internal/db"
)

// AuthCodeRepository persists short-lived authorization codes.
//
// Lazy expiration contract: a stored expiry is authoritative. GetByCode
// deletes and reports ErrNotFound for a code found past its expiry —
// callers never need to check ExpiresAt themselves.
type AuthCodeRepository interface {
	Create(ctx context.Context, ac *db.AuthCode) error
	// GetByCode looks up a code, lazily expiring it if expired.
	GetByCode(ctx context.Context, code string, now int64) (*db.AuthCode, error)
	Delete(ctx context.Context, code string) error
	// DeleteExpired purges every row whose expiry is at or before now; used
	// by the housekeeping sweep as defence in depth.
	DeleteExpired(ctx context.Context, now int64) (int64, error)
}

type gormAuthCodeRepository struct {
	conn *gorm.DB
}

// NewAuthCodeRepository returns an AuthCodeRepository backed by conn.
func NewAuthCodeRepository(conn *gorm.DB) AuthCodeRepository {
	return &gormAuthCodeRepository{conn: conn}
}

func (r *gormAuthCodeRepository) Create(ctx context.Context, ac *db.AuthCode) error {
	return r.conn.WithContext(ctx).Create(ac).Error
}

func (r *gormAuthCodeRepository) GetByCode(ctx context.Context, code string, now int64) (*db.AuthCode, error) {
	var ac db.AuthCode
	err := r.conn.WithContext(ctx).First(&ac, "code = ?", code).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if ac.ExpiresAt <= now {
		_ = r.Delete(ctx, code)
		return nil, ErrNotFound
	}

	return &ac, nil
}

func (r *gormAuthCodeRepository) Delete(ctx context.Context, code string) error {
	result := r.conn.WithContext(ctx).Delete(&db.AuthCode{}, "code = ?", code)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormAuthCodeRepository) DeleteExpired(ctx context.Context, now int64) (int64, error) {
	result := r.conn.WithContext(ctx).Where("expires_at <= ?", now).Delete(&db.AuthCode{})
	return result.RowsAffected, result.Error
}
