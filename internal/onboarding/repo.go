package onboarding

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mercadolocal/mercadito-backend/pkg/db/models"
)

// Repository defines persistence operations for vendor onboarding records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByUser(ctx context.Context, userID uuid.UUID) (*models.VendorOnboarding, error)
	Create(ctx context.Context, record *models.VendorOnboarding) error
	Save(ctx context.Context, record *models.VendorOnboarding) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an onboarding repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByUser(ctx context.Context, userID uuid.UUID) (*models.VendorOnboarding, error) {
	var record models.VendorOnboarding
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) Create(ctx context.Context, record *models.VendorOnboarding) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *repository) Save(ctx context.Context, record *models.VendorOnboarding) error {
	return r.db.WithContext(ctx).Save(record).Error
}
