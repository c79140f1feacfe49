package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mercadolocal/mercadito-backend/internal/cart"
	"github.com/mercadolocal/mercadito-backend/internal/orders"
	"github.com/mercadolocal/mercadito-backend/pkg/db/models"
	"github.com/mercadolocal/mercadito-backend/pkg/enums"
	pkgerrors "github.com/mercadolocal/mercadito-backend/pkg/errors"
)

type stubQuoter struct {
	quote *cart.Quote
	err   error
}

func (s *stubQuoter) BuildQuote(ctx context.Context, buyerID uuid.UUID, strict bool) (*cart.Quote, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.quote, nil
}

type stubOrderRepo struct {
	orders.Repository

	created *models.Order
	err     error
}

func (s *stubOrderRepo) WithTx(tx *gorm.DB) orders.Repository { return s }

func (s *stubOrderRepo) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	if s.err != nil {
		return nil, s.err
	}
	order.ID = uuid.New()
	order.CreatedAt = time.Now().UTC()
	s.created = order
	return order, nil
}

type stubCartRepo struct {
	cart.Repository

	cleared []uuid.UUID
}

func (s *stubCartRepo) WithTx(tx *gorm.DB) cart.Repository { return s }

func (s *stubCartRepo) Clear(ctx context.Context, buyerID uuid.UUID) error {
	s.cleared = append(s.cleared, buyerID)
	return nil
}

type stubTx struct{}

func (stubTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type checkoutFixture struct {
	svc     Service
	quoter  *stubQuoter
	orders  *stubOrderRepo
	carts   *stubCartRepo
	buyerID uuid.UUID
}

func newCheckoutFixture(t *testing.T, quote *cart.Quote) *checkoutFixture {
	t.Helper()
	quoter := &stubQuoter{quote: quote}
	orderRepo := &stubOrderRepo{}
	cartRepo := &stubCartRepo{}
	svc, err := NewService(quoter, cartRepo, orderRepo, stubTx{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &checkoutFixture{svc: svc, quoter: quoter, orders: orderRepo, carts: cartRepo, buyerID: uuid.New()}
}

func twoShopQuote() *cart.Quote {
	shopA := uuid.New()
	shopB := uuid.New()
	return &cart.Quote{
		Lines: []cart.QuoteLine{
			{VariantID: uuid.New(), ProductID: uuid.New(), ShopID: shopA, Title: "Pan dulce", VariantName: "Docena", Quantity: 2, UnitPriceCents: 300, LineTotalCents: 600},
			{VariantID: uuid.New(), ProductID: uuid.New(), ShopID: shopB, Title: "Cafe", VariantName: "500g", Quantity: 1, UnitPriceCents: 900, LineTotalCents: 900},
		},
		SubtotalCents: 1500,
		ShippingCents: 1200,
		TotalCents:    2700,
	}
}

func TestPlaceOrderRequiresIdentity(t *testing.T) {
	f := newCheckoutFixture(t, twoShopQuote())
	_, err := f.svc.PlaceOrder(context.Background(), uuid.Nil)
	if !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestPlaceOrderRejectsEmptyCart(t *testing.T) {
	f := newCheckoutFixture(t, &cart.Quote{})
	_, err := f.svc.PlaceOrder(context.Background(), f.buyerID)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if f.orders.created != nil {
		t.Fatal("no order should be created")
	}
}

func TestPlaceOrderSnapshotsQuoteAndClearsCart(t *testing.T) {
	quote := twoShopQuote()
	f := newCheckoutFixture(t, quote)

	result, err := f.svc.PlaceOrder(context.Background(), f.buyerID)
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if result.OrderID == uuid.Nil {
		t.Fatal("missing order id")
	}
	if result.Status != enums.OrderStatusPending.String() {
		t.Fatalf("status: %s", result.Status)
	}
	if result.TotalCents != 2700 || result.SubtotalCents != 1500 || result.ShippingCents != 1200 {
		t.Fatalf("totals: %+v", result)
	}

	order := f.orders.created
	if order == nil {
		t.Fatal("order not persisted")
	}
	if order.BuyerID != f.buyerID {
		t.Fatalf("buyer: %s", order.BuyerID)
	}
	if order.VendorStatus != enums.VendorOrderStatusNew {
		t.Fatalf("vendor status: %s", order.VendorStatus)
	}
	if len(order.Items) != 2 {
		t.Fatalf("items: %d", len(order.Items))
	}
	for i, line := range quote.Lines {
		item := order.Items[i]
		if item.VariantID != line.VariantID || item.Quantity != line.Quantity || item.UnitPriceCents != line.UnitPriceCents {
			t.Fatalf("item %d does not match quote line: %+v vs %+v", i, item, line)
		}
	}

	if len(f.carts.cleared) != 1 || f.carts.cleared[0] != f.buyerID {
		t.Fatalf("cart not cleared: %v", f.carts.cleared)
	}
}

func TestPlaceOrderPropagatesStrictQuoteFailure(t *testing.T) {
	f := newCheckoutFixture(t, nil)
	f.quoter.err = pkgerrors.New(pkgerrors.CodeNotFound, "variant not available")

	_, err := f.svc.PlaceOrder(context.Background(), f.buyerID)
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if f.orders.created != nil {
		t.Fatal("no order should be created")
	}
}

func TestPlaceOrderWrapsPersistenceFailure(t *testing.T) {
	f := newCheckoutFixture(t, twoShopQuote())
	f.orders.err = errors.New("connection reset")

	_, err := f.svc.PlaceOrder(context.Background(), f.buyerID)
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if len(f.carts.cleared) != 0 {
		t.Fatal("cart must not be cleared when the order fails")
	}
}
