package onboarding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mercadolocal/mercadito-backend/internal/eligibility"
	"github.com/mercadolocal/mercadito-backend/pkg/db"
	"github.com/mercadolocal/mercadito-backend/pkg/db/models"
	"github.com/mercadolocal/mercadito-backend/pkg/enums"
	pkgerrors "github.com/mercadolocal/mercadito-backend/pkg/errors"
	"github.com/mercadolocal/mercadito-backend/pkg/slug"
)

type userProfileStore interface {
	UpdateDisplayName(ctx context.Context, id uuid.UUID, name string) error
}

type shopStore interface {
	Update(ctx context.Context, shop *models.Shop) error
	FindPoliciesByShop(ctx context.Context, shopID uuid.UUID) (*models.ShopPolicies, error)
	SavePolicies(ctx context.Context, policies *models.ShopPolicies) error
}

type subscriptionStore interface {
	FindByShop(ctx context.Context, shopID uuid.UUID) (*models.VendorSubscription, error)
	Create(ctx context.Context, sub *models.VendorSubscription) error
}

type eligibilityChecker interface {
	ChecksForShop(ctx context.Context, shop *models.Shop) (*eligibility.Result, error)
}

// Service walks vendors through the setup wizard, translating each step's
// free-form payload into writes against the normalized tables.
type Service interface {
	Get(ctx context.Context, user *models.User, shop *models.Shop) (*StepResult, error)
	ApplyStep(ctx context.Context, user *models.User, shop *models.Shop, input ApplyStepInput) (*StepResult, error)
}

type service struct {
	repo          Repository
	users         userProfileStore
	shops         shopStore
	subscriptions subscriptionStore
	eligibility   eligibilityChecker
}

// NewService builds the onboarding service.
func NewService(
	repo Repository,
	users userProfileStore,
	shops shopStore,
	subscriptions subscriptionStore,
	checker eligibilityChecker,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("onboarding repository required")
	}
	if users == nil {
		return nil, fmt.Errorf("users store required")
	}
	if shops == nil {
		return nil, fmt.Errorf("shops store required")
	}
	if subscriptions == nil {
		return nil, fmt.Errorf("subscriptions store required")
	}
	if checker == nil {
		return nil, fmt.Errorf("eligibility checker required")
	}
	return &service{
		repo:          repo,
		users:         users,
		shops:         shops,
		subscriptions: subscriptions,
		eligibility:   checker,
	}, nil
}

// ApplyStepInput is one wizard submission. Payload is stored verbatim under
// the step's data_json key; step-specific fields are picked out of it for
// side effects.
type ApplyStepInput struct {
	Step    int
	Payload json.RawMessage
}

type businessProfilePayload struct {
	DisplayName *string `json:"displayName"`
}

type shopIdentityPayload struct {
	Name        *string `json:"name"`
	Slug        *string `json:"slug"`
	Description *string `json:"description"`
	LogoURL     *string `json:"logoUrl"`
}

type policiesPayload struct {
	Refund   *string `json:"refund"`
	Shipping *string `json:"shipping"`
	Privacy  *string `json:"privacy"`
	Terms    *string `json:"terms"`
}

type shippingPoliciesPayload struct {
	ShippingFlatFeeCents *int             `json:"shippingFlatFeeCents"`
	OffersPickup         *bool            `json:"offersPickup"`
	Policies             *policiesPayload `json:"policies"`
}

type connectPayload struct {
	StripeAccountID *string `json:"stripeAccountId"`
}

// Get returns the wizard state without creating anything. A vendor who never
// started sees a synthetic not_started record.
func (s *service) Get(ctx context.Context, user *models.User, shop *models.Shop) (*StepResult, error) {
	if user == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	record, err := s.repo.FindByUser(ctx, user.ID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load onboarding")
		}
		record = &models.VendorOnboarding{
			UserID:      user.ID,
			Status:      enums.OnboardingStatusNotStarted,
			CurrentStep: 1,
		}
	}

	checks, err := s.eligibility.ChecksForShop(ctx, shop)
	if err != nil {
		return nil, err
	}
	return &StepResult{
		Onboarding: FromModel(record),
		Checks:     checks,
		NextStep:   record.CurrentStep,
		Completed:  record.Status == enums.OnboardingStatusCompleted,
	}, nil
}

func (s *service) ApplyStep(ctx context.Context, user *models.User, shop *models.Shop, input ApplyStepInput) (*StepResult, error) {
	if user == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if shop == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shop not found")
	}
	if input.Step < 1 || input.Step > models.OnboardingStepCount {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("step must be between 1 and %d", models.OnboardingStepCount))
	}

	record, err := s.ensureRecord(ctx, user, shop)
	if err != nil {
		return nil, err
	}

	if err := s.applySideEffects(ctx, user, shop, input); err != nil {
		return nil, err
	}

	payload := input.Payload
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	if record.Data == nil {
		record.Data = map[string]json.RawMessage{}
	}
	record.Data[StepKey(input.Step)] = payload

	record.CurrentStep = NextStep(record.CurrentStep, input.Step)
	if record.CurrentStep >= models.OnboardingStepCount {
		record.Status = enums.OnboardingStatusCompleted
		if record.CompletedAt == nil {
			now := time.Now().UTC()
			record.CompletedAt = &now
		}
	} else {
		record.Status = enums.OnboardingStatusInProgress
	}

	if err := s.repo.Save(ctx, record); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save onboarding")
	}

	checks, err := s.eligibility.ChecksForShop(ctx, shop)
	if err != nil {
		return nil, err
	}
	return &StepResult{
		Onboarding: FromModel(record),
		Checks:     checks,
		NextStep:   record.CurrentStep,
		Completed:  record.Status == enums.OnboardingStatusCompleted,
	}, nil
}

// ensureRecord loads the vendor's wizard row, creating it plus its sibling
// seeds (inactive subscription, boilerplate policies) on first interaction.
func (s *service) ensureRecord(ctx context.Context, user *models.User, shop *models.Shop) (*models.VendorOnboarding, error) {
	record, err := s.repo.FindByUser(ctx, user.ID)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load onboarding")
	}

	record = &models.VendorOnboarding{
		UserID:      user.ID,
		Status:      enums.OnboardingStatusInProgress,
		CurrentStep: 1,
		Data:        map[string]json.RawMessage{},
	}
	if createErr := s.repo.Create(ctx, record); createErr != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, createErr, "create onboarding")
	}

	if seedErr := s.seedSubscription(ctx, shop); seedErr != nil {
		return nil, seedErr
	}
	if seedErr := s.seedPolicies(ctx, shop); seedErr != nil {
		return nil, seedErr
	}
	return record, nil
}

func (s *service) seedSubscription(ctx context.Context, shop *models.Shop) error {
	_, err := s.subscriptions.FindByShop(ctx, shop.ID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
	}
	sub := &models.VendorSubscription{
		ShopID:   shop.ID,
		Provider: "stripe",
		Status:   enums.SubscriptionStatusInactive,
	}
	if createErr := s.subscriptions.Create(ctx, sub); createErr != nil {
		if db.IsUniqueViolation(createErr, "") {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, createErr, "seed subscription")
	}
	return nil
}

func (s *service) seedPolicies(ctx context.Context, shop *models.Shop) error {
	_, err := s.shops.FindPoliciesByShop(ctx, shop.ID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load policies")
	}
	defaults := defaultPolicies(shop.ID)
	if saveErr := s.shops.SavePolicies(ctx, defaults); saveErr != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, saveErr, "seed policies")
	}
	return nil
}

func (s *service) applySideEffects(ctx context.Context, user *models.User, shop *models.Shop, input ApplyStepInput) error {
	switch input.Step {
	case StepBusinessProfile:
		return s.applyBusinessProfile(ctx, user, shop, input.Payload)
	case StepShopIdentity:
		return s.applyShopIdentity(ctx, shop, input.Payload)
	case StepShippingPolicies:
		return s.applyShippingPolicies(ctx, shop, input.Payload)
	case StepConnectPayments:
		return s.applyConnectPayments(ctx, shop, input.Payload)
	default:
		// Intro, subscription checkout, first product, and publish run
		// through their own endpoints; the wizard only records the visit.
		return nil
	}
}

func (s *service) applyBusinessProfile(ctx context.Context, user *models.User, shop *models.Shop, payload json.RawMessage) error {
	parsed, err := decodePayload[businessProfilePayload](payload)
	if err != nil {
		return err
	}
	if parsed.DisplayName == nil {
		return nil
	}
	name := strings.TrimSpace(*parsed.DisplayName)
	if name == "" {
		return nil
	}

	if err := s.users.UpdateDisplayName(ctx, user.ID, name); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update display name")
	}
	user.DisplayName = name

	shop.VendorName = name
	if err := s.shops.Update(ctx, shop); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update shop")
	}
	return nil
}

func (s *service) applyShopIdentity(ctx context.Context, shop *models.Shop, payload json.RawMessage) error {
	parsed, err := decodePayload[shopIdentityPayload](payload)
	if err != nil {
		return err
	}

	if parsed.Name != nil {
		shop.VendorName = strings.TrimSpace(*parsed.Name)
	}
	if parsed.Description != nil {
		shop.Description = strings.TrimSpace(*parsed.Description)
	}
	if parsed.LogoURL != nil {
		logo := strings.TrimSpace(*parsed.LogoURL)
		shop.LogoURL = &logo
	}

	source := shop.VendorName
	if parsed.Slug != nil && strings.TrimSpace(*parsed.Slug) != "" {
		source = *parsed.Slug
	}
	derived := slug.Make(source)
	if derived == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name required")
	}
	shop.Slug = derived

	if err := s.shops.Update(ctx, shop); err != nil {
		if db.IsUniqueViolation(err, "ux_shops_slug") {
			return pkgerrors.New(pkgerrors.CodeConflict, "slug already in use")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update shop")
	}
	return nil
}

func (s *service) applyShippingPolicies(ctx context.Context, shop *models.Shop, payload json.RawMessage) error {
	parsed, err := decodePayload[shippingPoliciesPayload](payload)
	if err != nil {
		return err
	}

	if parsed.ShippingFlatFeeCents != nil || parsed.OffersPickup != nil {
		if parsed.ShippingFlatFeeCents != nil {
			fee := *parsed.ShippingFlatFeeCents
			if fee < 0 {
				fee = 0
			}
			shop.ShippingFlatFeeCents = fee
		}
		if parsed.OffersPickup != nil {
			shop.OffersPickup = *parsed.OffersPickup
		}
		if err := s.shops.Update(ctx, shop); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update shop")
		}
	}

	if parsed.Policies == nil {
		return nil
	}

	policies, err := s.shops.FindPoliciesByShop(ctx, shop.ID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load policies")
		}
		policies = defaultPolicies(shop.ID)
	}

	// Omitted fields keep the stored text, so partial submissions never
	// blank out a policy.
	if parsed.Policies.Refund != nil {
		policies.Refund = *parsed.Policies.Refund
	}
	if parsed.Policies.Shipping != nil {
		policies.Shipping = *parsed.Policies.Shipping
	}
	if parsed.Policies.Privacy != nil {
		policies.Privacy = *parsed.Policies.Privacy
	}
	if parsed.Policies.Terms != nil {
		policies.Terms = *parsed.Policies.Terms
	}

	if err := s.shops.SavePolicies(ctx, policies); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save policies")
	}
	return nil
}

func (s *service) applyConnectPayments(ctx context.Context, shop *models.Shop, payload json.RawMessage) error {
	parsed, err := decodePayload[connectPayload](payload)
	if err != nil {
		return err
	}
	if parsed.StripeAccountID == nil || strings.TrimSpace(*parsed.StripeAccountID) == "" {
		// The Connect flow completes out of band; an empty submission just
		// records the visit.
		return nil
	}
	accountID := strings.TrimSpace(*parsed.StripeAccountID)
	shop.StripeAccountID = &accountID
	if err := s.shops.Update(ctx, shop); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update shop")
	}
	return nil
}

func decodePayload[T any](payload json.RawMessage) (*T, error) {
	var parsed T
	if len(payload) == 0 {
		return &parsed, nil
	}
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid step payload")
	}
	return &parsed, nil
}

func defaultPolicies(shopID uuid.UUID) *models.ShopPolicies {
	return &models.ShopPolicies{
		ShopID:   shopID,
		Refund:   "Aceptamos devoluciones dentro de los 7 dias posteriores a la entrega.",
		Shipping: "Los pedidos se envian en un plazo de 2 a 5 dias habiles.",
		Privacy:  "Tus datos solo se usan para procesar y entregar tu pedido.",
		Terms:    "Al comprar en esta tienda aceptas los terminos generales del mercado.",
	}
}
