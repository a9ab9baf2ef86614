package products

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/flashmart/flashmart-backend/pkg/db/models"
)

// Repository manages product reads. Products are seeded out of band; the
// engine never mutates them.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ListLiveAt(ctx context.Context, now time.Time) ([]models.Product, error)
	ListAll(ctx context.Context) ([]models.Product, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a product repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) ListLiveAt(ctx context.Context, now time.Time) ([]models.Product, error) {
	var list []models.Product
	err := r.db.WithContext(ctx).
		Where("sale_starts_at <= ? AND sale_ends_at >= ?", now, now).
		Order("created_at ASC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (r *repository) ListAll(ctx context.Context) ([]models.Product, error) {
	var list []models.Product
	err := r.db.WithContext(ctx).
		Order("created_at ASC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}
