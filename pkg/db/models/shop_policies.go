package models

import (
	"time"

	"github.com/google/uuid"
)

// ShopPolicies holds the four free-text policy documents shown on a shop page.
// Seeded with boilerplate defaults when onboarding starts.
type ShopPolicies struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ShopID    uuid.UUID `gorm:"column:shop_id;type:uuid;not null;uniqueIndex:ux_shop_policies_shop"`
	Refund    string    `gorm:"column:refund;not null;default:''"`
	Shipping  string    `gorm:"column:shipping;not null;default:''"`
	Privacy   string    `gorm:"column:privacy;not null;default:''"`
	Terms     string    `gorm:"column:terms;not null;default:''"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
