package enums

import "fmt"

// InventoryEventType maps to the inventory_event_type_enum enum in Postgres.
type InventoryEventType string

const (
	InventoryEventTypeHoldCreated    InventoryEventType = "hold_created"
	InventoryEventTypeHoldReleased   InventoryEventType = "hold_released"
	InventoryEventTypeOrderConfirmed InventoryEventType = "order_confirmed"
)

var validInventoryEventTypes = []InventoryEventType{
	InventoryEventTypeHoldCreated,
	InventoryEventTypeHoldReleased,
	InventoryEventTypeOrderConfirmed,
}

// IsValid reports whether the value matches the canonical inventory event enum.
func (t InventoryEventType) IsValid() bool {
	for _, candidate := range validInventoryEventTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseInventoryEventType converts raw input into InventoryEventType.
func ParseInventoryEventType(value string) (InventoryEventType, error) {
	for _, candidate := range validInventoryEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid inventory event type %q", value)
}
