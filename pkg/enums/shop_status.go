package enums

import "fmt"

// ShopStatus tracks shop visibility on the marketplace.
type ShopStatus string

const (
	ShopStatusDraft  ShopStatus = "draft"
	ShopStatusActive ShopStatus = "active"
	ShopStatusPaused ShopStatus = "paused"
	ShopStatusUnpaid ShopStatus = "unpaid"
)

var validShopStatuses = []ShopStatus{
	ShopStatusDraft,
	ShopStatusActive,
	ShopStatusPaused,
	ShopStatusUnpaid,
}

// String implements fmt.Stringer.
func (s ShopStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s ShopStatus) IsValid() bool {
	for _, candidate := range validShopStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseShopStatus converts raw input into a ShopStatus.
func ParseShopStatus(value string) (ShopStatus, error) {
	for _, candidate := range validShopStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid shop status %q", value)
}
