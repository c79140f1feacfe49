package onboarding

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mercadolocal/mercadito-backend/internal/eligibility"
	"github.com/mercadolocal/mercadito-backend/pkg/db/models"
	"github.com/mercadolocal/mercadito-backend/pkg/enums"
	pkgerrors "github.com/mercadolocal/mercadito-backend/pkg/errors"
)

type stubRepo struct {
	records map[uuid.UUID]*models.VendorOnboarding
	creates int
	saves   int
}

func newStubRepo() *stubRepo {
	return &stubRepo{records: map[uuid.UUID]*models.VendorOnboarding{}}
}

func (s *stubRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubRepo) FindByUser(ctx context.Context, userID uuid.UUID) (*models.VendorOnboarding, error) {
	if record, ok := s.records[userID]; ok {
		return record, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubRepo) Create(ctx context.Context, record *models.VendorOnboarding) error {
	s.creates++
	record.ID = uuid.New()
	s.records[record.UserID] = record
	return nil
}

func (s *stubRepo) Save(ctx context.Context, record *models.VendorOnboarding) error {
	s.saves++
	s.records[record.UserID] = record
	return nil
}

type stubProfiles struct {
	names map[uuid.UUID]string
}

func (s *stubProfiles) UpdateDisplayName(ctx context.Context, id uuid.UUID, name string) error {
	if s.names == nil {
		s.names = map[uuid.UUID]string{}
	}
	s.names[id] = name
	return nil
}

type stubShops struct {
	updated   []*models.Shop
	updateErr error
	policies  map[uuid.UUID]*models.ShopPolicies
	saves     int
}

func newStubShops() *stubShops {
	return &stubShops{policies: map[uuid.UUID]*models.ShopPolicies{}}
}

func (s *stubShops) Update(ctx context.Context, shop *models.Shop) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	copied := *shop
	s.updated = append(s.updated, &copied)
	return nil
}

func (s *stubShops) FindPoliciesByShop(ctx context.Context, shopID uuid.UUID) (*models.ShopPolicies, error) {
	if policies, ok := s.policies[shopID]; ok {
		return policies, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubShops) SavePolicies(ctx context.Context, policies *models.ShopPolicies) error {
	s.saves++
	s.policies[policies.ShopID] = policies
	return nil
}

type stubSubs struct {
	subs    map[uuid.UUID]*models.VendorSubscription
	creates int
}

func newStubSubs() *stubSubs {
	return &stubSubs{subs: map[uuid.UUID]*models.VendorSubscription{}}
}

func (s *stubSubs) FindByShop(ctx context.Context, shopID uuid.UUID) (*models.VendorSubscription, error) {
	if sub, ok := s.subs[shopID]; ok {
		return sub, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubSubs) Create(ctx context.Context, sub *models.VendorSubscription) error {
	s.creates++
	sub.ID = uuid.New()
	s.subs[sub.ShopID] = sub
	return nil
}

type stubEligibility struct {
	result eligibility.Result
}

func (s *stubEligibility) ChecksForShop(ctx context.Context, shop *models.Shop) (*eligibility.Result, error) {
	result := s.result
	return &result, nil
}

type fixture struct {
	svc      Service
	repo     *stubRepo
	profiles *stubProfiles
	shops    *stubShops
	subs     *stubSubs
	user     *models.User
	shop     *models.Shop
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newStubRepo()
	profiles := &stubProfiles{}
	shopStore := newStubShops()
	subs := newStubSubs()
	svc, err := NewService(repo, profiles, shopStore, subs, &stubEligibility{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	user := &models.User{ID: uuid.New(), DisplayName: "Rosa Martinez", Role: enums.UserRoleVendor}
	shop := &models.Shop{ID: uuid.New(), OwnerID: user.ID, Slug: "rosa-martinez", VendorName: "Rosa Martinez"}
	shop.SetStatus(enums.ShopStatusDraft)
	return &fixture{svc: svc, repo: repo, profiles: profiles, shops: shopStore, subs: subs, user: user, shop: shop}
}

func (f *fixture) apply(t *testing.T, step int, payload string) *StepResult {
	t.Helper()
	result, err := f.svc.ApplyStep(context.Background(), f.user, f.shop, ApplyStepInput{
		Step:    step,
		Payload: json.RawMessage(payload),
	})
	if err != nil {
		t.Fatalf("apply step %d: %v", step, err)
	}
	return result
}

func TestApplyStepRejectsOutOfRangeSteps(t *testing.T) {
	f := newFixture(t)
	for _, step := range []int{0, -1, 9, 100} {
		_, err := f.svc.ApplyStep(context.Background(), f.user, f.shop, ApplyStepInput{Step: step})
		if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("step %d: expected validation error, got %v", step, err)
		}
	}
	if f.repo.creates != 0 {
		t.Fatal("out-of-range step must not create a record")
	}
}

func TestNextStepRule(t *testing.T) {
	cases := []struct {
		current, incoming, want int
	}{
		{1, 1, 2},
		{1, 3, 4},
		{4, 2, 4},
		{4, 4, 5},
		{7, 7, 8},
		{8, 1, 8},
		{1, 8, 8},
		{5, 8, 8},
	}
	for _, tc := range cases {
		if got := NextStep(tc.current, tc.incoming); got != tc.want {
			t.Errorf("NextStep(%d, %d) = %d, want %d", tc.current, tc.incoming, got, tc.want)
		}
	}
}

func TestStepPointerNeverRewinds(t *testing.T) {
	f := newFixture(t)
	previous := 1
	for _, step := range []int{3, 1, 5, 2, 1, 7, 4, 8} {
		result := f.apply(t, step, `{}`)
		if result.NextStep < previous {
			t.Fatalf("pointer rewound from %d to %d after step %d", previous, result.NextStep, step)
		}
		if result.NextStep > models.OnboardingStepCount {
			t.Fatalf("pointer %d exceeds step count", result.NextStep)
		}
		previous = result.NextStep
	}
}

func TestFirstInteractionSeedsSubscriptionAndPolicies(t *testing.T) {
	f := newFixture(t)
	f.apply(t, StepIntro, `{"seen":true}`)

	sub, ok := f.subs.subs[f.shop.ID]
	if !ok {
		t.Fatal("expected seeded subscription")
	}
	if sub.Status != enums.SubscriptionStatusInactive || sub.Provider != "stripe" {
		t.Fatalf("unexpected seed: %s/%s", sub.Provider, sub.Status)
	}
	policies, ok := f.shops.policies[f.shop.ID]
	if !ok {
		t.Fatal("expected seeded policies")
	}
	if policies.Refund == "" || policies.Terms == "" {
		t.Fatal("seeded policies must carry boilerplate text")
	}

	f.apply(t, StepBusinessProfile, `{}`)
	if f.subs.creates != 1 {
		t.Fatalf("subscription seeded %d times", f.subs.creates)
	}
	if f.repo.creates != 1 {
		t.Fatalf("record created %d times", f.repo.creates)
	}
}

func TestBusinessProfileSyncsDisplayName(t *testing.T) {
	f := newFixture(t)
	f.apply(t, StepBusinessProfile, `{"displayName":"  Panaderia Rosa  "}`)

	if f.profiles.names[f.user.ID] != "Panaderia Rosa" {
		t.Fatalf("display name not synced: %q", f.profiles.names[f.user.ID])
	}
	if f.shop.VendorName != "Panaderia Rosa" {
		t.Fatalf("shop vendor name not synced: %q", f.shop.VendorName)
	}
	if f.user.DisplayName != "Panaderia Rosa" {
		t.Fatalf("in-memory user not synced: %q", f.user.DisplayName)
	}
}

func TestShopIdentityDerivesSlug(t *testing.T) {
	f := newFixture(t)
	f.apply(t, StepShopIdentity, `{"name":"Café El Jardín","description":"Pan dulce"}`)

	if f.shop.Slug != "cafe-el-jardin" {
		t.Fatalf("slug: %q", f.shop.Slug)
	}
	if f.shop.VendorName != "Café El Jardín" || f.shop.Description != "Pan dulce" {
		t.Fatalf("identity not applied: %q / %q", f.shop.VendorName, f.shop.Description)
	}
}

func TestShopIdentityPrefersRequestedSlug(t *testing.T) {
	f := newFixture(t)
	f.apply(t, StepShopIdentity, `{"name":"Café El Jardín","slug":"El Jardincito"}`)

	if f.shop.Slug != "el-jardincito" {
		t.Fatalf("slug: %q", f.shop.Slug)
	}
}

func TestShopIdentityRequiresAName(t *testing.T) {
	f := newFixture(t)
	f.shop.VendorName = ""
	_, err := f.svc.ApplyStep(context.Background(), f.user, f.shop, ApplyStepInput{
		Step:    StepShopIdentity,
		Payload: json.RawMessage(`{"name":"!!!"}`),
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Message() != "name required" {
		t.Fatalf("unexpected message: %v", err)
	}
}

func TestShopIdentitySlugCollisionIsConflict(t *testing.T) {
	f := newFixture(t)
	f.shops.updateErr = errors.New(`duplicate key value violates unique constraint "ux_shops_slug"`)

	_, err := f.svc.ApplyStep(context.Background(), f.user, f.shop, ApplyStepInput{
		Step:    StepShopIdentity,
		Payload: json.RawMessage(`{"name":"Tienda Tomada"}`),
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Message() != "slug already in use" {
		t.Fatalf("unexpected message: %v", err)
	}
}

func TestShippingPoliciesFloorsFeeAndMergesPolicies(t *testing.T) {
	f := newFixture(t)
	f.apply(t, StepShippingPolicies, `{"shippingFlatFeeCents":-500,"offersPickup":true,"policies":{"refund":"Sin devoluciones en perecederos."}}`)

	if f.shop.ShippingFlatFeeCents != 0 {
		t.Fatalf("fee not floored: %d", f.shop.ShippingFlatFeeCents)
	}
	if !f.shop.OffersPickup {
		t.Fatal("pickup flag not applied")
	}

	policies := f.shops.policies[f.shop.ID]
	if policies.Refund != "Sin devoluciones en perecederos." {
		t.Fatalf("refund not updated: %q", policies.Refund)
	}
	if policies.Shipping == "" || policies.Terms == "" {
		t.Fatal("omitted policy fields must keep prior text")
	}

	// A later partial submission keeps the custom refund text.
	f.apply(t, StepShippingPolicies, `{"policies":{"terms":"Terminos propios."}}`)
	policies = f.shops.policies[f.shop.ID]
	if policies.Refund != "Sin devoluciones en perecederos." {
		t.Fatalf("refund blanked by partial update: %q", policies.Refund)
	}
	if policies.Terms != "Terminos propios." {
		t.Fatalf("terms not updated: %q", policies.Terms)
	}
}

func TestConnectStepIgnoresEmptyPayload(t *testing.T) {
	f := newFixture(t)
	f.apply(t, StepConnectPayments, `{}`)
	if f.shop.StripeAccountID != nil {
		t.Fatal("empty connect payload must not touch the account id")
	}

	f.apply(t, StepConnectPayments, `{"stripeAccountId":"acct_123"}`)
	if f.shop.StripeAccountID == nil || *f.shop.StripeAccountID != "acct_123" {
		t.Fatalf("account id not recorded: %v", f.shop.StripeAccountID)
	}
}

func TestCompletionAtFinalStep(t *testing.T) {
	f := newFixture(t)
	result := f.apply(t, StepPublish, `{}`)

	if !result.Completed {
		t.Fatal("expected completed")
	}
	record := f.repo.records[f.user.ID]
	if record.Status != enums.OnboardingStatusCompleted {
		t.Fatalf("status: %s", record.Status)
	}
	if record.CompletedAt == nil {
		t.Fatal("completed_at not stamped")
	}
	firstCompleted := *record.CompletedAt

	// Re-submitting keeps the original completion timestamp.
	f.apply(t, StepPublish, `{}`)
	if !record.CompletedAt.Equal(firstCompleted) {
		t.Fatal("completed_at must not move on re-submission")
	}
}

func TestPayloadReplacesStepKey(t *testing.T) {
	f := newFixture(t)
	f.apply(t, StepIntro, `{"seen":true,"extra":1}`)
	f.apply(t, StepIntro, `{"seen":false}`)

	record := f.repo.records[f.user.ID]
	var stored map[string]any
	if err := json.Unmarshal(record.Data[StepKey(StepIntro)], &stored); err != nil {
		t.Fatalf("unmarshal stored payload: %v", err)
	}
	if _, ok := stored["extra"]; ok {
		t.Fatal("old payload keys must not survive a re-submission")
	}
	if stored["seen"] != false {
		t.Fatalf("stored payload: %v", stored)
	}
}

func TestGetDoesNotProvision(t *testing.T) {
	f := newFixture(t)
	result, err := f.svc.Get(context.Background(), f.user, f.shop)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if result.Onboarding.Status != enums.OnboardingStatusNotStarted {
		t.Fatalf("status: %s", result.Onboarding.Status)
	}
	if result.NextStep != 1 {
		t.Fatalf("next step: %d", result.NextStep)
	}
	if f.repo.creates != 0 || f.subs.creates != 0 {
		t.Fatal("read must not provision anything")
	}
}
