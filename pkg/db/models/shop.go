package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mercadolocal/mercadito-backend/pkg/enums"
)

// Shop is a single vendor's storefront and the unit of publish/unpublish.
// IsActive is a redundant cache of Status == active kept for cheap filtering
// on buyer-facing queries; every writer must keep the two in sync.
type Shop struct {
	ID                   uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID              uuid.UUID        `gorm:"column:owner_id;type:uuid;not null;uniqueIndex:ux_shops_owner"`
	Slug                 string           `gorm:"column:slug;not null;uniqueIndex:ux_shops_slug"`
	VendorName           string           `gorm:"column:vendor_name;not null"`
	Description          string           `gorm:"column:description;not null;default:''"`
	LogoURL              *string          `gorm:"column:logo_url"`
	Status               enums.ShopStatus `gorm:"column:status;type:shop_status;not null;default:'draft'"`
	IsActive             bool             `gorm:"column:is_active;not null;default:false"`
	ShippingFlatFeeCents int              `gorm:"column:shipping_flat_fee_cents;not null;default:0"`
	OffersPickup         bool             `gorm:"column:offers_pickup;not null;default:false"`
	StripeAccountID      *string          `gorm:"column:stripe_account_id"`
	PublishedAt          *time.Time       `gorm:"column:published_at"`
	UnpublishedAt        *time.Time       `gorm:"column:unpublished_at"`
	UnpublishedReason    *string          `gorm:"column:unpublished_reason"`
	CreatedAt            time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// SetStatus writes Status and keeps the IsActive cache consistent.
func (s *Shop) SetStatus(status enums.ShopStatus) {
	s.Status = status
	s.IsActive = status == enums.ShopStatusActive
}
