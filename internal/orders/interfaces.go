package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mercadolocal/mercadito-backend/pkg/db/models"
	"github.com/mercadolocal/mercadito-backend/pkg/enums"
	"github.com/mercadolocal/mercadito-backend/pkg/pagination"
)

// Repository defines persistence operations for orders and line items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindOrderForShop(ctx context.Context, orderID, shopID uuid.UUID) (*models.Order, error)
	ListBuyerOrders(ctx context.Context, buyerID uuid.UUID, params pagination.Params) (*OrderList, error)
	ListShopOrders(ctx context.Context, shopID uuid.UUID, params pagination.Params, filters ShopOrderFilters) (*OrderList, error)
	UpdateOrderStatuses(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
	CountOrderItemsByProduct(ctx context.Context, productID uuid.UUID) (int64, error)
}

// ShopOrderFilters describe the inputs supported by the vendor orders list.
type ShopOrderFilters struct {
	VendorStatus *enums.VendorOrderStatus
}
