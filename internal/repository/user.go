package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dbcalm/dbcalm/internal/db"
)

// UserRepository persists operator logins.
type UserRepository interface {
	Create(ctx context.Context, u *db.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*db.User, error)
	GetByUsername(ctx context.Context, username string) (*db.User, error)
	Update(ctx context.Context, u *db.User) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]db.User, error)
}

type gormUserRepository struct {
	conn *gorm.DB
}

// NewUserRepository returns a UserRepository backed by conn.
func NewUserRepository(conn *gorm.DB) UserRepository {
	return &gormUserRepository{conn: conn}
}

func (r *gormUserRepository) Create(ctx context.Context, u *db.User) error {
	return r.conn.WithContext(ctx).Create(u).Error
}

func (r *gormUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*db.User, error) {
	var u db.User
	if err := r.conn.WithContext(ctx).First(&u, "id = ?", id.String()).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *gormUserRepository) GetByUsername(ctx context.Context, username string) (*db.User, error) {
	var u db.User
	err := r.conn.WithContext(ctx).Where("username = ?", username).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *gormUserRepository) Update(ctx context.Context, u *db.User) error {
	result := r.conn.WithContext(ctx).Save(u)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormUserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.conn.WithContext(ctx).Delete(&db.User{}, "id = ?", id.String())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormUserRepository) List(ctx context.Context) ([]db.User, error) {
	var users []db.User
	err := r.conn.WithContext(ctx).Order("created_at ASC").Find(&users).Error
	return users, err
}
