package orders

import (
	"fmt"

	"github.com/mercadolocal/mercadito-backend/pkg/enums"
	pkgerrors "github.com/mercadolocal/mercadito-backend/pkg/errors"
)

// allowedTransitions encodes the vendor fulfillment state machine. Delivered
// and canceled are terminal.
var allowedTransitions = map[enums.VendorOrderStatus][]enums.VendorOrderStatus{
	enums.VendorOrderStatusNew:        {enums.VendorOrderStatusProcessing, enums.VendorOrderStatusCanceled},
	enums.VendorOrderStatusProcessing: {enums.VendorOrderStatusShipped, enums.VendorOrderStatusCanceled},
	enums.VendorOrderStatusShipped:    {enums.VendorOrderStatusDelivered},
	enums.VendorOrderStatusDelivered:  {},
	enums.VendorOrderStatusCanceled:   {},
}

// CanTransition reports whether from may move to target in one step.
func CanTransition(from, target enums.VendorOrderStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == target {
			return true
		}
	}
	return false
}

// InvalidTransitionError builds the rejection error for a disallowed move.
// The message is buyer-country Spanish and is part of the API contract.
func InvalidTransitionError(from, target enums.VendorOrderStatus) error {
	return pkgerrors.New(pkgerrors.CodeInvalidTransition,
		fmt.Sprintf("Transicion invalida: %s -> %s.", from, target))
}

// buyerStatusFor maps a vendor fulfillment state to the buyer-facing order
// status it implies, if any.
func buyerStatusFor(vendorStatus enums.VendorOrderStatus) (enums.OrderStatus, bool) {
	switch vendorStatus {
	case enums.VendorOrderStatusCanceled:
		return enums.OrderStatusCancelled, true
	case enums.VendorOrderStatusDelivered:
		return enums.OrderStatusFulfilled, true
	default:
		return "", false
	}
}
