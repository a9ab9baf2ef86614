package admin

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/flashmart/flashmart-backend/pkg/db/models"
	"github.com/flashmart/flashmart-backend/pkg/enums"
)

// StatusCounts aggregates order counts per lifecycle state.
type StatusCounts struct {
	Pending   int64
	Confirmed int64
	Expired   int64
}

// Outcome is a finished order projected down to what the dashboard charts.
type Outcome struct {
	CreatedAt time.Time
	Status    enums.OrderStatus
	Quantity  int
}

// Repository runs the aggregate queries behind the admin dashboard.
type Repository interface {
	OrderStatusCountsByProduct(ctx context.Context) (map[uuid.UUID]StatusCounts, error)
	RecentOutcomes(ctx context.Context, since time.Time) ([]Outcome, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an admin metrics repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) OrderStatusCountsByProduct(ctx context.Context) (map[uuid.UUID]StatusCounts, error) {
	var rows []struct {
		ProductID uuid.UUID
		Status    enums.OrderStatus
		Count     int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("product_id, status, COUNT(*) AS count").
		Group("product_id").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[uuid.UUID]StatusCounts, len(rows))
	for _, row := range rows {
		entry := counts[row.ProductID]
		switch row.Status {
		case enums.OrderStatusPending:
			entry.Pending += row.Count
		case enums.OrderStatusConfirmed:
			entry.Confirmed += row.Count
		case enums.OrderStatusExpired:
			entry.Expired += row.Count
		}
		counts[row.ProductID] = entry
	}
	return counts, nil
}

func (r *repository) RecentOutcomes(ctx context.Context, since time.Time) ([]Outcome, error) {
	var outcomes []Outcome
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("created_at, status, quantity").
		Where("created_at >= ?", since).
		Where("status IN ?", []enums.OrderStatus{enums.OrderStatusConfirmed, enums.OrderStatusExpired}).
		Scan(&outcomes).Error
	if err != nil {
		return nil, err
	}
	return outcomes, nil
}
