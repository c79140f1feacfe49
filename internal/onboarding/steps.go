package onboarding

import (
	"fmt"

	"github.com/mercadolocal/mercadito-backend/pkg/db/models"
)

// The fixed wizard order. Step numbers are part of the API contract and the
// stored data_json keys, so they never get renumbered.
const (
	StepIntro            = 1
	StepBusinessProfile  = 2
	StepShopIdentity     = 3
	StepShippingPolicies = 4
	StepConnectPayments  = 5
	StepSubscription     = 6
	StepFirstProduct     = 7
	StepPublish          = 8
)

// NextStep computes where the pointer lands after a submission of incoming.
// The pointer only ever moves forward: re-submitting an earlier step re-runs
// its side effects without rewinding progress.
func NextStep(current, incoming int) int {
	next := incoming + 1
	if next > models.OnboardingStepCount {
		next = models.OnboardingStepCount
	}
	if next < current {
		return current
	}
	return next
}

// StepKey is the data_json key a step's payload is stored under.
func StepKey(step int) string {
	return fmt.Sprintf("step_%d", step)
}
