package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mercadolocal/mercadito-backend/pkg/enums"
	pkgerrors "github.com/mercadolocal/mercadito-backend/pkg/errors"
	"github.com/mercadolocal/mercadito-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service defines order operations beyond repository reads.
type Service interface {
	UpdateVendorStatus(ctx context.Context, input UpdateVendorStatusInput) (*StatusChange, error)
	ListShopOrders(ctx context.Context, shopID uuid.UUID, params pagination.Params, filters ShopOrderFilters) (*OrderList, error)
	ListBuyerOrders(ctx context.Context, buyerID uuid.UUID, params pagination.Params) (*OrderList, error)
	GetBuyerOrder(ctx context.Context, buyerID, orderID uuid.UUID) (*OrderSummary, error)
	CancelBuyerOrder(ctx context.Context, buyerID, orderID uuid.UUID) (*OrderSummary, error)
}

type service struct {
	repo Repository
	tx   txRunner
}

// UpdateVendorStatusInput captures a vendor's fulfillment state change.
type UpdateVendorStatusInput struct {
	OrderID uuid.UUID
	ShopID  uuid.UUID
	Status  enums.VendorOrderStatus
}

// NewService builds an order service with the required dependencies.
func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

// StatusChange reports an applied (or no-op) vendor status move.
type StatusChange struct {
	OK             bool                    `json:"ok"`
	OrderID        uuid.UUID               `json:"orderId"`
	PreviousStatus enums.VendorOrderStatus `json:"previousStatus"`
	Status         enums.VendorOrderStatus `json:"status"`
	Order          OrderSummary            `json:"order"`
}

func (s *service) UpdateVendorStatus(ctx context.Context, input UpdateVendorStatusInput) (*StatusChange, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.ShopID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "shop context missing")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid vendor order status")
	}

	var change StatusChange
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindOrderForShop(ctx, input.OrderID, input.ShopID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		previous := order.VendorStatus

		// Same-state request is accepted without a write.
		if previous == input.Status {
			change = StatusChange{
				OK:             true,
				OrderID:        order.ID,
				PreviousStatus: previous,
				Status:         previous,
				Order:          toOrderSummary(*order),
			}
			return nil
		}
		if !CanTransition(previous, input.Status) {
			return InvalidTransitionError(previous, input.Status)
		}

		updates := map[string]any{"vendor_status": input.Status}
		if buyerStatus, ok := buyerStatusFor(input.Status); ok {
			updates["status"] = buyerStatus
			order.Status = buyerStatus
		}
		if err := repo.UpdateOrderStatuses(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}

		order.VendorStatus = input.Status
		change = StatusChange{
			OK:             true,
			OrderID:        order.ID,
			PreviousStatus: previous,
			Status:         input.Status,
			Order:          toOrderSummary(*order),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &change, nil
}

func (s *service) ListShopOrders(ctx context.Context, shopID uuid.UUID, params pagination.Params, filters ShopOrderFilters) (*OrderList, error) {
	if shopID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "shop context missing")
	}
	list, err := s.repo.ListShopOrders(ctx, shopID, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list shop orders")
	}
	return list, nil
}

func (s *service) ListBuyerOrders(ctx context.Context, buyerID uuid.UUID, params pagination.Params) (*OrderList, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	list, err := s.repo.ListBuyerOrders(ctx, buyerID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list buyer orders")
	}
	return list, nil
}

func (s *service) GetBuyerOrder(ctx context.Context, buyerID, orderID uuid.UUID) (*OrderSummary, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	// Cross-buyer access is indistinguishable from a missing order.
	if order.BuyerID != buyerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	summary := toOrderSummary(*order)
	return &summary, nil
}

// CancelBuyerOrder lets the buyer back out before the vendor starts work.
// Once the order leaves the new state, cancellation goes through the vendor.
func (s *service) CancelBuyerOrder(ctx context.Context, buyerID, orderID uuid.UUID) (*OrderSummary, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var summary OrderSummary
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindOrder(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.BuyerID != buyerID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}

		if order.VendorStatus == enums.VendorOrderStatusCanceled {
			summary = toOrderSummary(*order)
			return nil
		}
		if order.VendorStatus != enums.VendorOrderStatusNew {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition,
				"order is already being prepared and can no longer be canceled")
		}

		updates := map[string]any{
			"vendor_status": enums.VendorOrderStatusCanceled,
			"status":        enums.OrderStatusCancelled,
		}
		if err := repo.UpdateOrderStatuses(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}

		order.VendorStatus = enums.VendorOrderStatusCanceled
		order.Status = enums.OrderStatusCancelled
		summary = toOrderSummary(*order)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &summary, nil
}
