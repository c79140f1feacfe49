package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is a vendor listing. PriceCents mirrors the cheapest active
// variant's price and is recomputed by the products service after any variant
// mutation that touches price or the active flag.
type Product struct {
	ID          uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ShopID      uuid.UUID        `gorm:"column:shop_id;type:uuid;not null;index"`
	Title       string           `gorm:"column:title;not null"`
	Description string           `gorm:"column:description;not null;default:''"`
	PriceCents  int              `gorm:"column:price_cents;not null;default:0"`
	IsActive    bool             `gorm:"column:is_active;not null;default:true"`
	Variants    []ProductVariant `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	Images      []ProductImage   `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
