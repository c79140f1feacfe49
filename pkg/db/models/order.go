package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mercadolocal/mercadito-backend/pkg/enums"
)

// Order belongs to a buyer. Status is buyer-facing; VendorStatus is the
// vendor fulfillment state driven by the order state machine.
type Order struct {
	ID            uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerID       uuid.UUID               `gorm:"column:buyer_id;type:uuid;not null;index"`
	Status        enums.OrderStatus       `gorm:"column:status;type:order_status;not null;default:'pending'"`
	VendorStatus  enums.VendorOrderStatus `gorm:"column:vendor_status;type:vendor_order_status;not null;default:'new'"`
	SubtotalCents int                     `gorm:"column:subtotal_cents;not null"`
	ShippingCents int                     `gorm:"column:shipping_cents;not null;default:0"`
	TotalCents    int                     `gorm:"column:total_cents;not null"`
	Items         []OrderItem             `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
