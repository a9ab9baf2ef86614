package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/flashmart/flashmart-backend/pkg/db/models"
	"github.com/flashmart/flashmart-backend/pkg/enums"
)

// Repository manages persistence for inventory events. Events are insert-only;
// there is deliberately no update or delete surface.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, event *models.InventoryEvent) error
	SumDelta(ctx context.Context, productID uuid.UUID) (int, error)
	SumDeltaByProduct(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]int, error)
	SumDeltaByOrder(ctx context.Context, orderID uuid.UUID) (int, error)
	CountByType(ctx context.Context, eventType enums.InventoryEventType) (int64, error)
	ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.InventoryEvent, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an inventory event repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, event *models.InventoryEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) SumDelta(ctx context.Context, productID uuid.UUID) (int, error) {
	var total struct {
		Delta *int
	}
	err := r.db.WithContext(ctx).
		Model(&models.InventoryEvent{}).
		Select("SUM(delta) AS delta").
		Where("product_id = ?", productID).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	if total.Delta == nil {
		return 0, nil
	}
	return *total.Delta, nil
}

func (r *repository) SumDeltaByProduct(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	result := make(map[uuid.UUID]int, len(productIDs))
	if len(productIDs) == 0 {
		return result, nil
	}

	var rows []struct {
		ProductID uuid.UUID
		Delta     int
	}
	err := r.db.WithContext(ctx).
		Model(&models.InventoryEvent{}).
		Select("product_id, SUM(delta) AS delta").
		Where("product_id IN ?", productIDs).
		Group("product_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		result[row.ProductID] = row.Delta
	}
	return result, nil
}

func (r *repository) SumDeltaByOrder(ctx context.Context, orderID uuid.UUID) (int, error) {
	var total struct {
		Delta *int
	}
	err := r.db.WithContext(ctx).
		Model(&models.InventoryEvent{}).
		Select("SUM(delta) AS delta").
		Where("order_id = ?", orderID).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	if total.Delta == nil {
		return 0, nil
	}
	return *total.Delta, nil
}

func (r *repository) CountByType(ctx context.Context, eventType enums.InventoryEventType) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.InventoryEvent{}).
		Where("type = ?", eventType).
		Count(&count).Error
	return count, err
}

func (r *repository) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.InventoryEvent, error) {
	var events []models.InventoryEvent
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
