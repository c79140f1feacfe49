package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/mercadolocal/mercadito-backend/pkg/enums"
)

// OrderItemSummary is one immutable line of an order as returned to clients.
type OrderItemSummary struct {
	ID             uuid.UUID `json:"id"`
	ProductID      uuid.UUID `json:"product_id"`
	VariantID      uuid.UUID `json:"variant_id"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int       `json:"unit_price_cents"`
}

// OrderSummary exposes the aggregated fields returned in order lists.
type OrderSummary struct {
	ID            uuid.UUID               `json:"id"`
	Status        enums.OrderStatus       `json:"status"`
	VendorStatus  enums.VendorOrderStatus `json:"vendor_status"`
	SubtotalCents int                     `json:"subtotal_cents"`
	ShippingCents int                     `json:"shipping_cents"`
	TotalCents    int                     `json:"total_cents"`
	Items         []OrderItemSummary      `json:"items"`
	CreatedAt     time.Time               `json:"created_at"`
}

// OrderList wraps the paginated orders plus the next page cursor.
type OrderList struct {
	Orders     []OrderSummary `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}
