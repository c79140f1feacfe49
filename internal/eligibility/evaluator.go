package eligibility

import (
	"strings"

	"github.com/mercadolocal/mercadito-backend/pkg/db/models"
)

// Reason strings are vendor-facing checklist entries. Order is the display
// order of the setup checklist.
const (
	ReasonMissingShop         = "must create shop"
	ReasonIncompleteIdentity  = "complete shop name, slug, and description"
	ReasonMissingConnect      = "connect a Stripe account"
	ReasonInactiveSub         = "activate your subscription"
	ReasonNoPublishedVariants = "add at least one active product variant"
)

// Result is the aggregate publish gate decision.
type Result struct {
	CanPublish bool     `json:"can_publish"`
	Reasons    []string `json:"reasons"`
}

// Input carries the state the evaluator inspects. Shop and Subscription may
// be nil when the corresponding row does not exist yet.
type Input struct {
	Shop               *models.Shop
	Subscription       *models.VendorSubscription
	ActiveVariantCount int64
}

// Evaluate computes whether the shop may go live. A missing shop short-circuits;
// every other check accumulates so the caller can render the full checklist.
func Evaluate(input Input) Result {
	if input.Shop == nil {
		return Result{CanPublish: false, Reasons: []string{ReasonMissingShop}}
	}

	reasons := make([]string, 0, 4)
	if isBlank(input.Shop.VendorName) || isBlank(input.Shop.Slug) || isBlank(input.Shop.Description) {
		reasons = append(reasons, ReasonIncompleteIdentity)
	}
	if input.Shop.StripeAccountID == nil || isBlank(*input.Shop.StripeAccountID) {
		reasons = append(reasons, ReasonMissingConnect)
	}
	if input.Subscription == nil || !input.Subscription.Status.KeepsShopPublished() {
		reasons = append(reasons, ReasonInactiveSub)
	}
	if input.ActiveVariantCount < 1 {
		reasons = append(reasons, ReasonNoPublishedVariants)
	}

	return Result{CanPublish: len(reasons) == 0, Reasons: reasons}
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
