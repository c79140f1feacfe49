package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mercadolocal/mercadito-backend/pkg/enums"
)

// VendorSubscription persists Stripe subscription state per shop. It is only
// written by checkout initiation and the webhook processor, never by vendors.
type VendorSubscription struct {
	ID                   uuid.UUID                `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ShopID               uuid.UUID                `gorm:"column:shop_id;type:uuid;not null;uniqueIndex:ux_vendor_subscriptions_shop"`
	Provider             string                   `gorm:"column:provider;not null;default:'stripe'"`
	Status               enums.SubscriptionStatus `gorm:"column:status;type:subscription_status;not null;default:'inactive'"`
	StripeCustomerID     *string                  `gorm:"column:stripe_customer_id"`
	StripeSubscriptionID *string                  `gorm:"column:stripe_subscription_id;index"`
	StripePriceID        *string                  `gorm:"column:stripe_price_id"`
	CurrentPeriodEnd     *time.Time               `gorm:"column:current_period_end"`
	LastInvoiceStatus    *string                  `gorm:"column:last_invoice_status"`
	CancelAtPeriodEnd    bool                     `gorm:"column:cancel_at_period_end;not null;default:false"`
	CreatedAt            time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
