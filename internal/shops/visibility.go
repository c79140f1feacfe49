package shops

import (
	"time"

	"github.com/mercadolocal/mercadito-backend/pkg/db/models"
	"github.com/mercadolocal/mercadito-backend/pkg/enums"
)

// Unpublish reasons recorded on the shop's audit trail.
const (
	ReasonSubscriptionUnpaid   = "subscription_unpaid"
	ReasonSubscriptionCanceled = "subscription_canceled"
	ReasonSubscriptionInactive = "subscription_inactive"
	ReasonVendorPaused         = "vendor_paused"
)

// ApplyUnpublish takes a shop off the storefront. Billing-driven unpublish
// lands on the unpaid status; a vendor-initiated pause keeps the paused
// status so the vendor can re-activate without passing the billing gate.
func ApplyUnpublish(shop *models.Shop, reason string, now time.Time) {
	if reason == ReasonVendorPaused {
		shop.SetStatus(enums.ShopStatusPaused)
	} else {
		shop.SetStatus(enums.ShopStatusUnpaid)
	}
	at := now
	shop.UnpublishedAt = &at
	r := reason
	shop.UnpublishedReason = &r
}

// ApplyRestore puts the shop back on the storefront. The original
// published_at survives an unpublish/republish cycle; only a shop that was
// never published gets stamped now.
func ApplyRestore(shop *models.Shop, now time.Time) {
	shop.SetStatus(enums.ShopStatusActive)
	if shop.PublishedAt == nil {
		at := now
		shop.PublishedAt = &at
	}
	shop.UnpublishedAt = nil
	shop.UnpublishedReason = nil
}
