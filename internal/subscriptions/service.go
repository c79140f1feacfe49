package subscriptions

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/mercadolocal/mercadito-backend/pkg/config"
	"github.com/mercadolocal/mercadito-backend/pkg/db"
	"github.com/mercadolocal/mercadito-backend/pkg/db/models"
	"github.com/mercadolocal/mercadito-backend/pkg/enums"
	pkgerrors "github.com/mercadolocal/mercadito-backend/pkg/errors"
)

type shopSaver interface {
	Update(ctx context.Context, shop *models.Shop) error
}

// Service exposes subscription billing operations for vendors.
type Service interface {
	GetForShop(ctx context.Context, shop *models.Shop) (*SubscriptionDTO, error)
	StartCheckout(ctx context.Context, shop *models.Shop) (*CheckoutSessionDTO, error)
	StartConnect(ctx context.Context, shop *models.Shop) (*ConnectLinkDTO, error)
}

type service struct {
	repo   Repository
	shops  shopSaver
	stripe StripeBillingClient
	cfg    config.StripeConfig
}

// SubscriptionDTO is the vendor-facing subscription state.
type SubscriptionDTO struct {
	Status            enums.SubscriptionStatus `json:"status"`
	CancelAtPeriodEnd bool                     `json:"cancel_at_period_end"`
	CurrentPeriodEnd  *string                  `json:"current_period_end,omitempty"`
}

// CheckoutSessionDTO carries the hosted checkout redirect.
type CheckoutSessionDTO struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// ConnectLinkDTO carries the Stripe Express onboarding redirect.
type ConnectLinkDTO struct {
	AccountID string `json:"account_id"`
	URL       string `json:"url"`
}

// NewService builds the billing service.
func NewService(repo Repository, shops shopSaver, client StripeBillingClient, cfg config.StripeConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("subscriptions repository required")
	}
	if shops == nil {
		return nil, fmt.Errorf("shop saver required")
	}
	if client == nil {
		return nil, fmt.Errorf("stripe client required")
	}
	return &service{repo: repo, shops: shops, stripe: client, cfg: cfg}, nil
}

func (s *service) GetForShop(ctx context.Context, shop *models.Shop) (*SubscriptionDTO, error) {
	if shop == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shop not found")
	}
	sub, err := s.repo.FindByShop(ctx, shop.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &SubscriptionDTO{Status: enums.SubscriptionStatusInactive}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
	}

	dto := &SubscriptionDTO{
		Status:            sub.Status,
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if sub.CurrentPeriodEnd != nil {
		end := sub.CurrentPeriodEnd.UTC().Format("2006-01-02T15:04:05Z07:00")
		dto.CurrentPeriodEnd = &end
	}
	return dto, nil
}

// StartCheckout opens a hosted subscription checkout for the shop. The shop
// id rides along in session metadata; the webhook processor turns the
// completed session into the active subscription row.
func (s *service) StartCheckout(ctx context.Context, shop *models.Shop) (*CheckoutSessionDTO, error) {
	if shop == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shop not found")
	}
	if s.cfg.SubscriptionPriceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "subscription price not configured")
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(s.cfg.CheckoutSuccessURL),
		CancelURL:  stripe.String(s.cfg.CheckoutCancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(s.cfg.SubscriptionPriceID),
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.AddMetadata("shop_id", shop.ID.String())

	sub, err := s.repo.FindByShop(ctx, shop.ID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
		}
		// Seed the intent row before redirecting, so billing state reads as
		// incomplete instead of absent while checkout is in flight.
		seeded := &models.VendorSubscription{
			ShopID:   shop.ID,
			Provider: "stripe",
			Status:   enums.SubscriptionStatusIncomplete,
		}
		if createErr := s.repo.Create(ctx, seeded); createErr != nil {
			// A concurrent checkout already seeded the row.
			if !db.IsUniqueViolation(createErr, "ux_vendor_subscriptions_shop") {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, createErr, "seed subscription intent")
			}
		}
		sub = seeded
	}
	if sub.StripeCustomerID != nil {
		params.Customer = stripe.String(*sub.StripeCustomerID)
	}

	created, err := s.stripe.CreateCheckoutSession(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}
	return &CheckoutSessionDTO{SessionID: created.ID, URL: created.URL}, nil
}

// StartConnect provisions the shop's Stripe Express account if missing and
// returns a fresh onboarding link.
func (s *service) StartConnect(ctx context.Context, shop *models.Shop) (*ConnectLinkDTO, error) {
	if shop == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shop not found")
	}

	accountID := ""
	if shop.StripeAccountID != nil {
		accountID = *shop.StripeAccountID
	}
	if accountID == "" {
		created, err := s.stripe.CreateConnectAccount(ctx, &stripe.AccountParams{
			Type: stripe.String(string(stripe.AccountTypeExpress)),
		})
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create connect account")
		}
		accountID = created.ID
		shop.StripeAccountID = &accountID
		if err := s.shops.Update(ctx, shop); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store connect account")
		}
	}

	link, err := s.stripe.CreateAccountLink(ctx, &stripe.AccountLinkParams{
		Account:    stripe.String(accountID),
		RefreshURL: stripe.String(s.cfg.ConnectRefreshURL),
		ReturnURL:  stripe.String(s.cfg.ConnectReturnURL),
		Type:       stripe.String("account_onboarding"),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create account link")
	}
	return &ConnectLinkDTO{AccountID: accountID, URL: link.URL}, nil
}
