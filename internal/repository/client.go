package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dbcalm/dbcalm/internal/db"
)

// ClientRepository persists API client credentials.
type ClientRepository interface {
	Create(ctx context.Context, c *db.Client) error
	GetByID(ctx context.Context, id uuid.UUID) (*db.Client, error)
	Update(ctx context.Context, c *db.Client) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]db.Client, error)
}

type gormClientRepository struct {
	conn *gorm.DB
}

// NewClientRepository returns a ClientRepository backed by conn.
func NewClientRepository(conn *gorm.DB) ClientRepository {
	return &gormClientRepository{conn: conn}
}

func (r *gormClientRepository) Create(ctx context.Context, c *db.Client) error {
	return r.conn.WithContext(ctx).Create(c).Error
}

func (r *gormClientRepository) GetByID(ctx context.Context, id uuid.UUID) (*db.Client, error) {
	var c db.Client
	if err := r.conn.WithContext(ctx).First(&c, "id = ?", id.String()).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *gormClientRepository) Update(ctx context.Context, c *db.Client) error {
	result := r.conn.WithContext(ctx).Save(c)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormClientRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.conn.WithContext(ctx).Delete(&db.Client{}, "id = ?", id.String())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormClientRepository) List(ctx context.Context) ([]db.Client, error) {
	var clients []db.Client
	err := r.conn.WithContext(ctx).Order("created_at ASC").Find(&clients).Error
	return clients, err
}
