package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/mercadolocal/mercadito-backend/pkg/enums"
)

// OnboardingStepCount is the fixed number of screens in the vendor wizard.
const OnboardingStepCount = 8

// VendorOnboarding tracks one user's progress through the setup wizard.
// Data accumulates per-step payloads under "step_<n>" keys; CurrentStep only
// ever moves forward.
type VendorOnboarding struct {
	ID          uuid.UUID                  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID                  `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_vendor_onboardings_user"`
	Status      enums.OnboardingStatus     `gorm:"column:status;type:onboarding_status;not null;default:'not_started'"`
	CurrentStep int                        `gorm:"column:current_step;not null;default:1"`
	Data        map[string]json.RawMessage `gorm:"column:data;type:jsonb;serializer:json"`
	CompletedAt *time.Time                 `gorm:"column:completed_at"`
	CreatedAt   time.Time                  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time                  `gorm:"column:updated_at;autoUpdateTime"`
}
