package subscriptions

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mercadolocal/mercadito-backend/pkg/db/models"
)

// Repository defines persistence operations for vendor subscriptions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, sub *models.VendorSubscription) error
	Save(ctx context.Context, sub *models.VendorSubscription) error
	FindByShop(ctx context.Context, shopID uuid.UUID) (*models.VendorSubscription, error)
	FindByStripeIDs(ctx context.Context, subscriptionID, customerID string) (*models.VendorSubscription, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a subscriptions repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, sub *models.VendorSubscription) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *repository) Save(ctx context.Context, sub *models.VendorSubscription) error {
	return r.db.WithContext(ctx).Save(sub).Error
}

func (r *repository) FindByShop(ctx context.Context, shopID uuid.UUID) (*models.VendorSubscription, error) {
	var sub models.VendorSubscription
	err := r.db.WithContext(ctx).Where("shop_id = ?", shopID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// FindByStripeIDs resolves a subscription row by the provider's subscription
// id and falls back to the customer id. Events carry one or both depending on
// the event type.
func (r *repository) FindByStripeIDs(ctx context.Context, subscriptionID, customerID string) (*models.VendorSubscription, error) {
	if subscriptionID != "" {
		var sub models.VendorSubscription
		err := r.db.WithContext(ctx).
			Where("stripe_subscription_id = ?", subscriptionID).
			First(&sub).Error
		if err == nil {
			return &sub, nil
		}
		if err != gorm.ErrRecordNotFound {
			return nil, err
		}
	}
	if customerID != "" {
		var sub models.VendorSubscription
		err := r.db.WithContext(ctx).
			Where("stripe_customer_id = ?", customerID).
			First(&sub).Error
		if err != nil {
			return nil, err
		}
		return &sub, nil
	}
	return nil, gorm.ErrRecordNotFound
}
