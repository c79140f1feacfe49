package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mercadolocal/mercadito-backend/pkg/db/models"
	"github.com/mercadolocal/mercadito-backend/pkg/enums"
	"github.com/mercadolocal/mercadito-backend/pkg/pagination"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	products := `
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  shop_id TEXT NOT NULL,
  title TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  price_cents INTEGER NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`
	orders := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  buyer_id TEXT NOT NULL,
  status TEXT NOT NULL,
  vendor_status TEXT NOT NULL,
  subtotal_cents INTEGER NOT NULL,
  shipping_cents INTEGER NOT NULL DEFAULT 0,
  total_cents INTEGER NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	orderItems := `
CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  variant_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  unit_price_cents INTEGER NOT NULL,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(products).Error)
	require.NoError(t, db.Exec(orders).Error)
	require.NoError(t, db.Exec(orderItems).Error)
	return db
}

func createProduct(t *testing.T, db *gorm.DB, shopID uuid.UUID) *models.Product {
	t.Helper()

	product := &models.Product{
		ID:     uuid.New(),
		ShopID: shopID,
		Title:  "Tamales oaxaquenos",
	}
	require.NoError(t, db.Create(product).Error)
	return product
}

func createOrderWithItem(t *testing.T, db *gorm.DB, buyerID uuid.UUID, product *models.Product, created time.Time) *models.Order {
	t.Helper()

	order := &models.Order{
		ID:            uuid.New(),
		BuyerID:       buyerID,
		Status:        enums.OrderStatusPaid,
		VendorStatus:  enums.VendorOrderStatusNew,
		SubtotalCents: 1500,
		ShippingCents: 500,
		TotalCents:    2000,
		CreatedAt:     created,
		UpdatedAt:     created,
	}
	require.NoError(t, db.Create(order).Error)

	item := &models.OrderItem{
		ID:             uuid.New(),
		OrderID:        order.ID,
		ProductID:      product.ID,
		VariantID:      uuid.New(),
		Quantity:       1,
		UnitPriceCents: 1500,
		CreatedAt:      created,
	}
	require.NoError(t, db.Create(item).Error)
	return order
}

func TestRepositoryFindOrderForShop(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	shopA := uuid.New()
	shopB := uuid.New()
	productA := createProduct(t, db, shopA)
	order := createOrderWithItem(t, db, uuid.New(), productA, time.Now().UTC())

	found, err := repo.FindOrderForShop(ctx, order.ID, shopA)
	require.NoError(t, err)
	assert.Equal(t, order.ID, found.ID)
	require.Len(t, found.Items, 1)

	_, err = repo.FindOrderForShop(ctx, order.ID, shopB)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryListShopOrdersFiltersAndPaginates(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	shopID := uuid.New()
	otherShop := uuid.New()
	product := createProduct(t, db, shopID)
	otherProduct := createProduct(t, db, otherShop)

	base := time.Now().UTC().Add(-time.Hour)
	var newest *models.Order
	for i := 0; i < 3; i++ {
		newest = createOrderWithItem(t, db, uuid.New(), product, base.Add(time.Duration(i)*time.Minute))
	}
	createOrderWithItem(t, db, uuid.New(), otherProduct, base.Add(time.Hour))

	page, err := repo.ListShopOrders(ctx, shopID, pagination.Params{Limit: 2}, ShopOrderFilters{})
	require.NoError(t, err)
	require.Len(t, page.Orders, 2)
	assert.Equal(t, newest.ID, page.Orders[0].ID)
	require.NotEmpty(t, page.NextCursor)

	rest, err := repo.ListShopOrders(ctx, shopID, pagination.Params{Limit: 2, Cursor: page.NextCursor}, ShopOrderFilters{})
	require.NoError(t, err)
	require.Len(t, rest.Orders, 1)
	assert.Empty(t, rest.NextCursor)

	status := enums.VendorOrderStatusShipped
	filtered, err := repo.ListShopOrders(ctx, shopID, pagination.Params{}, ShopOrderFilters{VendorStatus: &status})
	require.NoError(t, err)
	assert.Empty(t, filtered.Orders)
}

func TestRepositoryListBuyerOrders(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	buyerID := uuid.New()
	product := createProduct(t, db, uuid.New())
	created := createOrderWithItem(t, db, buyerID, product, time.Now().UTC())
	createOrderWithItem(t, db, uuid.New(), product, time.Now().UTC())

	list, err := repo.ListBuyerOrders(ctx, buyerID, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, list.Orders, 1)
	assert.Equal(t, created.ID, list.Orders[0].ID)
}

func TestRepositoryUpdateOrderStatuses(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	product := createProduct(t, db, uuid.New())
	order := createOrderWithItem(t, db, uuid.New(), product, time.Now().UTC())

	err := repo.UpdateOrderStatuses(ctx, order.ID, map[string]any{
		"vendor_status": enums.VendorOrderStatusCanceled,
		"status":        enums.OrderStatusCancelled,
	})
	require.NoError(t, err)

	reloaded, err := repo.FindOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.VendorOrderStatusCanceled, reloaded.VendorStatus)
	assert.Equal(t, enums.OrderStatusCancelled, reloaded.Status)
}

func TestRepositoryCountOrderItemsByProduct(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	product := createProduct(t, db, uuid.New())
	createOrderWithItem(t, db, uuid.New(), product, time.Now().UTC())
	createOrderWithItem(t, db, uuid.New(), product, time.Now().UTC())

	count, err := repo.CountOrderItemsByProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	count, err = repo.CountOrderItemsByProduct(ctx, uuid.New())
	require.NoError(t, err)
	assert.Zero(t, count)
}
