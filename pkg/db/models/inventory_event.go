package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/flashmart/flashmart-backend/pkg/enums"
)

// InventoryEvent records an immutable stock movement for a product. Rows are
// insert-only; live stock is total_stock plus the sum of deltas.
type InventoryEvent struct {
	ID        uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID uuid.UUID                `gorm:"column:product_id;type:uuid;not null"`
	OrderID   *uuid.UUID               `gorm:"column:order_id;type:uuid"`
	Type      enums.InventoryEventType `gorm:"column:type;type:inventory_event_type_enum;not null"`
	Delta     int                      `gorm:"column:delta;not null"`
	Metadata  json.RawMessage          `gorm:"column:metadata;type:jsonb"`
	CreatedAt time.Time                `gorm:"column:created_at;autoCreateTime"`
}
