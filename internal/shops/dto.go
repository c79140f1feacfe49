package shops

import (
	"time"

	"github.com/google/uuid"

	"github.com/mercadolocal/mercadito-backend/pkg/db/models"
	"github.com/mercadolocal/mercadito-backend/pkg/enums"
)

// ShopDTO is the shop representation returned to vendors.
type ShopDTO struct {
	ID                   uuid.UUID        `json:"id"`
	Slug                 string           `json:"slug"`
	VendorName           string           `json:"vendor_name"`
	Description          string           `json:"description"`
	LogoURL              *string          `json:"logo_url,omitempty"`
	Status               enums.ShopStatus `json:"status"`
	IsActive             bool             `json:"is_active"`
	ShippingFlatFeeCents int              `json:"shipping_flat_fee_cents"`
	OffersPickup         bool             `json:"offers_pickup"`
	StripeAccountID      *string          `json:"stripe_account_id,omitempty"`
	PublishedAt          *time.Time       `json:"published_at,omitempty"`
	UnpublishedAt        *time.Time       `json:"unpublished_at,omitempty"`
	UnpublishedReason    *string          `json:"unpublished_reason,omitempty"`
	CreatedAt            time.Time        `json:"created_at"`
}

// PoliciesDTO carries the four shop policy documents.
type PoliciesDTO struct {
	Refund   string `json:"refund"`
	Shipping string `json:"shipping"`
	Privacy  string `json:"privacy"`
	Terms    string `json:"terms"`
}

// PublicShopDTO is the buyer-facing shop page payload.
type PublicShopDTO struct {
	ID           uuid.UUID    `json:"id"`
	Slug         string       `json:"slug"`
	VendorName   string       `json:"vendor_name"`
	Description  string       `json:"description"`
	LogoURL      *string      `json:"logo_url,omitempty"`
	OffersPickup bool         `json:"offers_pickup"`
	Policies     *PoliciesDTO `json:"policies,omitempty"`
}

// ShopList wraps paginated public shops plus the next cursor.
type ShopList struct {
	Shops      []PublicShopDTO `json:"shops"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

// FromModel maps a shop row to its vendor-facing DTO.
func FromModel(shop *models.Shop) *ShopDTO {
	if shop == nil {
		return nil
	}
	return &ShopDTO{
		ID:                   shop.ID,
		Slug:                 shop.Slug,
		VendorName:           shop.VendorName,
		Description:          shop.Description,
		LogoURL:              shop.LogoURL,
		Status:               shop.Status,
		IsActive:             shop.IsActive,
		ShippingFlatFeeCents: shop.ShippingFlatFeeCents,
		OffersPickup:         shop.OffersPickup,
		StripeAccountID:      shop.StripeAccountID,
		PublishedAt:          shop.PublishedAt,
		UnpublishedAt:        shop.UnpublishedAt,
		UnpublishedReason:    shop.UnpublishedReason,
		CreatedAt:            shop.CreatedAt,
	}
}

func toPublicDTO(shop *models.Shop, policies *models.ShopPolicies) PublicShopDTO {
	dto := PublicShopDTO{
		ID:           shop.ID,
		Slug:         shop.Slug,
		VendorName:   shop.VendorName,
		Description:  shop.Description,
		LogoURL:      shop.LogoURL,
		OffersPickup: shop.OffersPickup,
	}
	if policies != nil {
		dto.Policies = &PoliciesDTO{
			Refund:   policies.Refund,
			Shipping: policies.Shipping,
			Privacy:  policies.Privacy,
			Terms:    policies.Terms,
		}
	}
	return dto
}
