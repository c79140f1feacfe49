package enums

import "fmt"

// VendorOrderStatus is the vendor-facing fulfillment state of an order,
// distinct from the buyer-facing OrderStatus.
type VendorOrderStatus string

const (
	VendorOrderStatusNew        VendorOrderStatus = "new"
	VendorOrderStatusProcessing VendorOrderStatus = "processing"
	VendorOrderStatusShipped    VendorOrderStatus = "shipped"
	VendorOrderStatusDelivered  VendorOrderStatus = "delivered"
	VendorOrderStatusCanceled   VendorOrderStatus = "canceled"
)

var validVendorOrderStatuses = []VendorOrderStatus{
	VendorOrderStatusNew,
	VendorOrderStatusProcessing,
	VendorOrderStatusShipped,
	VendorOrderStatusDelivered,
	VendorOrderStatusCanceled,
}

// String implements fmt.Stringer.
func (s VendorOrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s VendorOrderStatus) IsValid() bool {
	for _, candidate := range validVendorOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseVendorOrderStatus converts raw input into a VendorOrderStatus.
func ParseVendorOrderStatus(value string) (VendorOrderStatus, error) {
	for _, candidate := range validVendorOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid vendor order status %q", value)
}
