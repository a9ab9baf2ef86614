package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is a flash-sale listing. TotalStock is immutable after creation;
// the live figure is always derived from inventory_events, never stored here.
type Product struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name         string    `gorm:"column:name;not null"`
	Description  string    `gorm:"column:description;not null"`
	PriceCents   int       `gorm:"column:price_cents;not null"`
	TotalStock   int       `gorm:"column:total_stock;not null"`
	SaleStartsAt time.Time `gorm:"column:sale_starts_at;not null"`
	SaleEndsAt   time.Time `gorm:"column:sale_ends_at;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// SaleActiveAt reports whether the sale window covers the given instant.
func (p Product) SaleActiveAt(now time.Time) bool {
	return !p.SaleStartsAt.After(now) && !p.SaleEndsAt.Before(now)
}
