package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/flashmart/flashmart-backend/pkg/enums"
)

// Order is a stock hold and, once confirmed, the sale record. Status moves
// pending -> confirmed or pending -> expired, never backwards.
type Order struct {
	ID            uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID     uuid.UUID         `gorm:"column:product_id;type:uuid;not null"`
	Product       *Product          `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CustomerEmail string            `gorm:"column:customer_email;not null"`
	Quantity      int               `gorm:"column:quantity;not null"`
	Status        enums.OrderStatus `gorm:"column:status;type:order_status_enum;not null;default:pending"`
	HoldExpiresAt time.Time         `gorm:"column:hold_expires_at;not null"`
	CreatedAt     time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// HoldExpiredAt reports whether the hold lapsed before the given instant.
func (o Order) HoldExpiredAt(now time.Time) bool {
	return o.HoldExpiresAt.Before(now)
}
