package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mercadolocal/mercadito-backend/pkg/db/models"
	pkgerrors "github.com/mercadolocal/mercadito-backend/pkg/errors"
)

type catalog interface {
	FindVariant(ctx context.Context, id uuid.UUID) (*models.ProductVariant, error)
	FindPublic(ctx context.Context, productID uuid.UUID) (*models.Product, error)
}

type shopFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Shop, error)
}

// QuoteLine is one priced cart line. Prices are resolved at quote time, never
// stored in the cart.
type QuoteLine struct {
	VariantID      uuid.UUID `json:"variantId"`
	ProductID      uuid.UUID `json:"productId"`
	ShopID         uuid.UUID `json:"shopId"`
	Title          string    `json:"title"`
	VariantName    string    `json:"variantName"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int       `json:"unitPriceCents"`
	LineTotalCents int       `json:"lineTotalCents"`
}

// Quote is the priced view of a buyer's cart. Shipping is the sum of each
// involved shop's flat fee, charged once per shop.
type Quote struct {
	Lines         []QuoteLine `json:"lines"`
	SubtotalCents int         `json:"subtotalCents"`
	ShippingCents int         `json:"shippingCents"`
	TotalCents    int         `json:"totalCents"`
}

// Service manages a buyer's cart and prices it on demand.
type Service interface {
	Get(ctx context.Context, buyerID uuid.UUID) (*Quote, error)
	SetItem(ctx context.Context, buyerID, variantID uuid.UUID, quantity int) (*Quote, error)
	RemoveItem(ctx context.Context, buyerID, variantID uuid.UUID) (*Quote, error)
	// BuildQuote prices the cart strictly: any line whose variant or product
	// is no longer purchasable is an error instead of being skipped.
	BuildQuote(ctx context.Context, buyerID uuid.UUID, strict bool) (*Quote, error)
}

type service struct {
	repo    Repository
	catalog catalog
	shops   shopFinder
}

// NewService builds the cart service.
func NewService(repo Repository, cat catalog, shops shopFinder) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if cat == nil {
		return nil, fmt.Errorf("catalog required")
	}
	if shops == nil {
		return nil, fmt.Errorf("shop finder required")
	}
	return &service{repo: repo, catalog: cat, shops: shops}, nil
}

func (s *service) Get(ctx context.Context, buyerID uuid.UUID) (*Quote, error) {
	return s.BuildQuote(ctx, buyerID, false)
}

func (s *service) SetItem(ctx context.Context, buyerID, variantID uuid.UUID, quantity int) (*Quote, error) {
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	if _, _, err := s.resolveLine(ctx, variantID); err != nil {
		return nil, err
	}

	item := &models.CartItem{BuyerID: buyerID, VariantID: variantID, Quantity: quantity}
	if err := s.repo.Upsert(ctx, item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart item")
	}
	return s.BuildQuote(ctx, buyerID, false)
}

func (s *service) RemoveItem(ctx context.Context, buyerID, variantID uuid.UUID) (*Quote, error) {
	if err := s.repo.Delete(ctx, buyerID, variantID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart item")
	}
	return s.BuildQuote(ctx, buyerID, false)
}

func (s *service) BuildQuote(ctx context.Context, buyerID uuid.UUID, strict bool) (*Quote, error) {
	items, err := s.repo.ListByBuyer(ctx, buyerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	quote := &Quote{Lines: make([]QuoteLine, 0, len(items))}
	subtotal := decimal.Zero
	seenShops := map[uuid.UUID]bool{}

	for _, item := range items {
		variant, product, lineErr := s.resolveLine(ctx, item.VariantID)
		if lineErr != nil {
			if strict || !pkgerrors.IsCode(lineErr, pkgerrors.CodeNotFound) {
				return nil, lineErr
			}
			// Quotes tolerate lines that went off sale since they were added.
			continue
		}

		lineTotal := decimal.NewFromInt(int64(variant.PriceCents)).
			Mul(decimal.NewFromInt(int64(item.Quantity)))
		subtotal = subtotal.Add(lineTotal)

		quote.Lines = append(quote.Lines, QuoteLine{
			VariantID:      variant.ID,
			ProductID:      product.ID,
			ShopID:         product.ShopID,
			Title:          product.Title,
			VariantName:    variant.Name,
			Quantity:       item.Quantity,
			UnitPriceCents: variant.PriceCents,
			LineTotalCents: int(lineTotal.IntPart()),
		})

		if !seenShops[product.ShopID] {
			seenShops[product.ShopID] = true
			shop, shopErr := s.shops.FindByID(ctx, product.ShopID)
			if shopErr != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, shopErr, "load shop")
			}
			quote.ShippingCents += shop.ShippingFlatFeeCents
		}
	}

	quote.SubtotalCents = int(subtotal.IntPart())
	quote.TotalCents = quote.SubtotalCents + quote.ShippingCents
	return quote, nil
}

// resolveLine maps variants that are gone, inactive, or attached to a hidden
// product to NotFound.
func (s *service) resolveLine(ctx context.Context, variantID uuid.UUID) (*models.ProductVariant, *models.Product, error) {
	variant, err := s.catalog.FindVariant(ctx, variantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "variant not available")
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant")
	}
	if !variant.IsActive {
		return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "variant not available")
	}

	product, err := s.catalog.FindPublic(ctx, variant.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not available")
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return variant, product, nil
}
