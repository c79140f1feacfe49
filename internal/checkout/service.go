package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mercadolocal/mercadito-backend/internal/cart"
	"github.com/mercadolocal/mercadito-backend/internal/orders"
	"github.com/mercadolocal/mercadito-backend/pkg/db/models"
	"github.com/mercadolocal/mercadito-backend/pkg/enums"
	pkgerrors "github.com/mercadolocal/mercadito-backend/pkg/errors"
)

type quoter interface {
	BuildQuote(ctx context.Context, buyerID uuid.UUID, strict bool) (*cart.Quote, error)
}

type cartStore interface {
	WithTx(tx *gorm.DB) cart.Repository
}

type orderStore interface {
	WithTx(tx *gorm.DB) orders.Repository
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Result is the receipt returned after a successful checkout.
type Result struct {
	OrderID       uuid.UUID        `json:"orderId"`
	Status        string           `json:"status"`
	SubtotalCents int              `json:"subtotalCents"`
	ShippingCents int              `json:"shippingCents"`
	TotalCents    int              `json:"totalCents"`
	Lines         []cart.QuoteLine `json:"lines"`
	CreatedAt     time.Time        `json:"createdAt"`
}

// Service turns a priced cart into an order with immutable line snapshots.
type Service interface {
	PlaceOrder(ctx context.Context, buyerID uuid.UUID) (*Result, error)
}

type service struct {
	quotes quoter
	carts  cartStore
	orders orderStore
	tx     txRunner
}

// NewService builds the checkout service.
func NewService(quotes quoter, carts cartStore, orderRepo orderStore, tx txRunner) (Service, error) {
	if quotes == nil {
		return nil, fmt.Errorf("quoter required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if orderRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{quotes: quotes, carts: carts, orders: orderRepo, tx: tx}, nil
}

func (s *service) PlaceOrder(ctx context.Context, buyerID uuid.UUID) (*Result, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	// Strict pricing: a cart line that went off sale fails the checkout
	// instead of being silently dropped from the charge.
	quote, err := s.quotes.BuildQuote(ctx, buyerID, true)
	if err != nil {
		return nil, err
	}
	if len(quote.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	order := &models.Order{
		BuyerID:       buyerID,
		Status:        enums.OrderStatusPending,
		VendorStatus:  enums.VendorOrderStatusNew,
		SubtotalCents: quote.SubtotalCents,
		ShippingCents: quote.ShippingCents,
		TotalCents:    quote.TotalCents,
	}
	for _, line := range quote.Lines {
		order.Items = append(order.Items, models.OrderItem{
			ProductID:      line.ProductID,
			VariantID:      line.VariantID,
			Quantity:       line.Quantity,
			UnitPriceCents: line.UnitPriceCents,
		})
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		created, createErr := s.orders.WithTx(tx).CreateOrder(ctx, order)
		if createErr != nil {
			return createErr
		}
		order = created
		return s.carts.WithTx(tx).Clear(ctx, buyerID)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "place order")
	}

	return &Result{
		OrderID:       order.ID,
		Status:        order.Status.String(),
		SubtotalCents: order.SubtotalCents,
		ShippingCents: order.ShippingCents,
		TotalCents:    order.TotalCents,
		Lines:         quote.Lines,
		CreatedAt:     order.CreatedAt,
	}, nil
}
