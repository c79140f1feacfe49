package shops

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/mercadolocal/mercadito-backend/internal/eligibility"
	"github.com/mercadolocal/mercadito-backend/pkg/db"
	"github.com/mercadolocal/mercadito-backend/pkg/db/models"
	"github.com/mercadolocal/mercadito-backend/pkg/enums"
	pkgerrors "github.com/mercadolocal/mercadito-backend/pkg/errors"
	"github.com/mercadolocal/mercadito-backend/pkg/pagination"
	"github.com/mercadolocal/mercadito-backend/pkg/slug"
)

type eligibilityChecker interface {
	ChecksForShop(ctx context.Context, shop *models.Shop) (*eligibility.Result, error)
}

// Service exposes vendor shop settings plus the buyer-facing storefront reads.
type Service interface {
	UpdateSettings(ctx context.Context, shop *models.Shop, input UpdateSettingsInput) (*ShopDTO, *eligibility.Result, error)
	Publish(ctx context.Context, shop *models.Shop) (*PublishResult, error)
	Pause(ctx context.Context, shop *models.Shop) (*ShopDTO, error)
	GetPublicBySlug(ctx context.Context, slugValue string) (*PublicShopDTO, error)
	ListActive(ctx context.Context, params pagination.Params) (*ShopList, error)
}

type service struct {
	repo        Repository
	eligibility eligibilityChecker
}

// NewService builds a shop service with the provided dependencies.
func NewService(repo Repository, checker eligibilityChecker) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("shops repository required")
	}
	if checker == nil {
		return nil, fmt.Errorf("eligibility checker required")
	}
	return &service{repo: repo, eligibility: checker}, nil
}

// UpdateSettingsInput captures the shop fields vendors may change. Status
// accepts only active and paused; the other statuses are system-owned.
type UpdateSettingsInput struct {
	VendorName           *string
	Description          *string
	LogoURL              *string
	Slug                 *string
	ShippingFlatFeeCents *int
	OffersPickup         *bool
	Status               *string
	Policies             *PolicyInput
}

// PolicyInput carries partial policy text updates. Nil fields keep the
// stored text.
type PolicyInput struct {
	Refund   *string
	Shipping *string
	Privacy  *string
	Terms    *string
}

func (s *service) UpdateSettings(ctx context.Context, shop *models.Shop, input UpdateSettingsInput) (*ShopDTO, *eligibility.Result, error) {
	if shop == nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "shop not found")
	}

	if input.VendorName != nil {
		shop.VendorName = *input.VendorName
	}
	if input.Description != nil {
		shop.Description = *input.Description
	}
	if input.LogoURL != nil {
		logo := *input.LogoURL
		shop.LogoURL = &logo
	}
	if input.Slug != nil {
		derived := slug.Make(*input.Slug)
		if derived == "" {
			return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "name required")
		}
		shop.Slug = derived
	}
	if input.ShippingFlatFeeCents != nil {
		fee := *input.ShippingFlatFeeCents
		if fee < 0 {
			fee = 0
		}
		shop.ShippingFlatFeeCents = fee
	}
	if input.OffersPickup != nil {
		shop.OffersPickup = *input.OffersPickup
	}

	var checks *eligibility.Result
	if input.Status != nil {
		switch *input.Status {
		case enums.ShopStatusActive.String():
			result, err := s.gatePublish(ctx, shop)
			if err != nil {
				return nil, nil, err
			}
			checks = result
			ApplyRestore(shop, time.Now().UTC())
		case enums.ShopStatusPaused.String():
			ApplyUnpublish(shop, ReasonVendorPaused, time.Now().UTC())
		default:
			return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "status must be active or paused")
		}
	}

	if err := s.repo.Update(ctx, shop); err != nil {
		if db.IsUniqueViolation(err, "ux_shops_slug") {
			return nil, nil, pkgerrors.New(pkgerrors.CodeConflict, "slug already in use")
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update shop")
	}

	if input.Policies != nil {
		if err := s.mergePolicies(ctx, shop, input.Policies); err != nil {
			return nil, nil, err
		}
	}

	if checks == nil {
		result, err := s.eligibility.ChecksForShop(ctx, shop)
		if err != nil {
			return nil, nil, err
		}
		checks = result
	}
	return FromModel(shop), checks, nil
}

func (s *service) mergePolicies(ctx context.Context, shop *models.Shop, input *PolicyInput) error {
	policies, err := s.repo.FindPoliciesByShop(ctx, shop.ID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load policies")
		}
		policies = &models.ShopPolicies{ShopID: shop.ID}
	}

	// Omitted fields keep the stored text, so partial submissions never
	// blank out a policy.
	if input.Refund != nil {
		policies.Refund = *input.Refund
	}
	if input.Shipping != nil {
		policies.Shipping = *input.Shipping
	}
	if input.Privacy != nil {
		policies.Privacy = *input.Privacy
	}
	if input.Terms != nil {
		policies.Terms = *input.Terms
	}

	if err := s.repo.SavePolicies(ctx, policies); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save policies")
	}
	return nil
}

// PublishResult reports a publish attempt. A blocked attempt is a normal
// outcome, not an error; BlockingReasons carries the unmet checklist.
type PublishResult struct {
	Published       bool     `json:"published"`
	BlockingReasons []string `json:"blockingReasons"`
	Shop            *ShopDTO `json:"shop,omitempty"`
}

func (s *service) Publish(ctx context.Context, shop *models.Shop) (*PublishResult, error) {
	if shop == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shop not found")
	}

	checks, err := s.eligibility.ChecksForShop(ctx, shop)
	if err != nil {
		return nil, err
	}
	if !checks.CanPublish {
		return &PublishResult{
			Published:       false,
			BlockingReasons: checks.Reasons,
			Shop:            FromModel(shop),
		}, nil
	}

	ApplyRestore(shop, time.Now().UTC())
	if err := s.repo.Update(ctx, shop); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "publish shop")
	}
	return &PublishResult{
		Published:       true,
		BlockingReasons: []string{},
		Shop:            FromModel(shop),
	}, nil
}

func (s *service) Pause(ctx context.Context, shop *models.Shop) (*ShopDTO, error) {
	if shop == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shop not found")
	}

	ApplyUnpublish(shop, ReasonVendorPaused, time.Now().UTC())
	if err := s.repo.Update(ctx, shop); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "pause shop")
	}
	return FromModel(shop), nil
}

func (s *service) gatePublish(ctx context.Context, shop *models.Shop) (*eligibility.Result, error) {
	checks, err := s.eligibility.ChecksForShop(ctx, shop)
	if err != nil {
		return nil, err
	}
	if !checks.CanPublish {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "shop is not eligible to publish").
			WithDetails(checks.Reasons)
	}
	return checks, nil
}

func (s *service) GetPublicBySlug(ctx context.Context, slugValue string) (*PublicShopDTO, error) {
	shop, err := s.repo.FindActiveBySlug(ctx, slugValue)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shop not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shop")
	}

	var policies *models.ShopPolicies
	found, err := s.repo.FindPoliciesByShop(ctx, shop.ID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load policies")
		}
	} else {
		policies = found
	}

	dto := toPublicDTO(shop, policies)
	return &dto, nil
}

func (s *service) ListActive(ctx context.Context, params pagination.Params) (*ShopList, error) {
	rows, next, err := s.repo.ListActive(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list shops")
	}

	list := &ShopList{Shops: make([]PublicShopDTO, 0, len(rows)), NextCursor: next}
	for i := range rows {
		list.Shops = append(list.Shops, toPublicDTO(&rows[i], nil))
	}
	return list, nil
}
