package eligibility

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mercadolocal/mercadito-backend/pkg/db/models"
	pkgerrors "github.com/mercadolocal/mercadito-backend/pkg/errors"
)

type shopFinder interface {
	FindShopByOwner(ctx context.Context, ownerID uuid.UUID) (*models.Shop, error)
}

type subscriptionFinder interface {
	FindByShop(ctx context.Context, shopID uuid.UUID) (*models.VendorSubscription, error)
}

type variantCounter interface {
	CountActiveVariantsByShop(ctx context.Context, shopID uuid.UUID) (int64, error)
}

// Service loads the state behind the publish gate and evaluates it.
type Service interface {
	ChecksForOwner(ctx context.Context, ownerID uuid.UUID) (*Result, error)
	ChecksForShop(ctx context.Context, shop *models.Shop) (*Result, error)
}

type service struct {
	shops         shopFinder
	subscriptions subscriptionFinder
	variants      variantCounter
}

// NewService builds the eligibility service.
func NewService(shops shopFinder, subscriptions subscriptionFinder, variants variantCounter) (Service, error) {
	if shops == nil {
		return nil, fmt.Errorf("shop finder required")
	}
	if subscriptions == nil {
		return nil, fmt.Errorf("subscription finder required")
	}
	if variants == nil {
		return nil, fmt.Errorf("variant counter required")
	}
	return &service{shops: shops, subscriptions: subscriptions, variants: variants}, nil
}

func (s *service) ChecksForOwner(ctx context.Context, ownerID uuid.UUID) (*Result, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	shop, err := s.shops.FindShopByOwner(ctx, ownerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			result := Evaluate(Input{})
			return &result, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shop")
	}
	return s.ChecksForShop(ctx, shop)
}

func (s *service) ChecksForShop(ctx context.Context, shop *models.Shop) (*Result, error) {
	if shop == nil {
		result := Evaluate(Input{})
		return &result, nil
	}

	var subscription *models.VendorSubscription
	sub, err := s.subscriptions.FindByShop(ctx, shop.ID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
		}
	} else {
		subscription = sub
	}

	count, err := s.variants.CountActiveVariantsByShop(ctx, shop.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count active variants")
	}

	result := Evaluate(Input{
		Shop:               shop,
		Subscription:       subscription,
		ActiveVariantCount: count,
	})
	return &result, nil
}
