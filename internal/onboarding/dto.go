package onboarding

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/mercadolocal/mercadito-backend/internal/eligibility"
	"github.com/mercadolocal/mercadito-backend/pkg/db/models"
	"github.com/mercadolocal/mercadito-backend/pkg/enums"
)

// OnboardingDTO is the wizard state returned to the client.
type OnboardingDTO struct {
	ID          uuid.UUID                  `json:"id"`
	Status      enums.OnboardingStatus     `json:"status"`
	CurrentStep int                        `json:"currentStep"`
	Data        map[string]json.RawMessage `json:"data"`
	CompletedAt *time.Time                 `json:"completedAt,omitempty"`
}

// StepResult bundles the wizard state with a fresh eligibility evaluation so
// the client learns in one round trip whether publishing is now possible.
type StepResult struct {
	Onboarding *OnboardingDTO      `json:"onboarding"`
	Checks     *eligibility.Result `json:"checks"`
	NextStep   int                 `json:"nextStep"`
	Completed  bool                `json:"completed"`
}

// FromModel maps the persisted record to its transport shape.
func FromModel(record *models.VendorOnboarding) *OnboardingDTO {
	if record == nil {
		return nil
	}
	data := record.Data
	if data == nil {
		data = map[string]json.RawMessage{}
	}
	return &OnboardingDTO{
		ID:          record.ID,
		Status:      record.Status,
		CurrentStep: record.CurrentStep,
		Data:        data,
		CompletedAt: record.CompletedAt,
	}
}
