package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	stripe "github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/mercadolocal/mercadito-backend/internal/shops"
	"github.com/mercadolocal/mercadito-backend/pkg/db/models"
	"github.com/mercadolocal/mercadito-backend/pkg/enums"
	pkgerrors "github.com/mercadolocal/mercadito-backend/pkg/errors"
	"github.com/mercadolocal/mercadito-backend/pkg/logger"
)

const testSecret = "whsec_test_secret"

func signPayload(payload []byte, secret string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

type stubLedger struct {
	events    map[string]*models.StripeWebhookEvent
	insertErr error
	inserts   int
}

func newStubLedger() *stubLedger {
	return &stubLedger{events: map[string]*models.StripeWebhookEvent{}}
}

func (s *stubLedger) WithTx(tx *gorm.DB) Ledger { return s }

func (s *stubLedger) FindByEventID(ctx context.Context, eventID string) (*models.StripeWebhookEvent, error) {
	if event, ok := s.events[eventID]; ok {
		return event, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubLedger) Insert(ctx context.Context, event *models.StripeWebhookEvent) error {
	s.inserts++
	if s.insertErr != nil {
		return s.insertErr
	}
	s.events[event.EventID] = event
	return nil
}

type stubSubStore struct {
	byShop map[uuid.UUID]*models.VendorSubscription
	saves  int
}

func newStubSubStore() *stubSubStore {
	return &stubSubStore{byShop: map[uuid.UUID]*models.VendorSubscription{}}
}

func (s *stubSubStore) FindByShop(ctx context.Context, shopID uuid.UUID) (*models.VendorSubscription, error) {
	if sub, ok := s.byShop[shopID]; ok {
		return sub, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubSubStore) FindByStripeIDs(ctx context.Context, subscriptionID, customerID string) (*models.VendorSubscription, error) {
	for _, sub := range s.byShop {
		if subscriptionID != "" && sub.StripeSubscriptionID != nil && *sub.StripeSubscriptionID == subscriptionID {
			return sub, nil
		}
	}
	for _, sub := range s.byShop {
		if customerID != "" && sub.StripeCustomerID != nil && *sub.StripeCustomerID == customerID {
			return sub, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubSubStore) Create(ctx context.Context, sub *models.VendorSubscription) error {
	sub.ID = uuid.New()
	s.byShop[sub.ShopID] = sub
	return nil
}

func (s *stubSubStore) Save(ctx context.Context, sub *models.VendorSubscription) error {
	s.saves++
	s.byShop[sub.ShopID] = sub
	return nil
}

type stubShopStore struct {
	shops map[uuid.UUID]*models.Shop
}

func newStubShopStore() *stubShopStore {
	return &stubShopStore{shops: map[uuid.UUID]*models.Shop{}}
}

func (s *stubShopStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Shop, error) {
	if shop, ok := s.shops[id]; ok {
		return shop, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubShopStore) Update(ctx context.Context, shop *models.Shop) error {
	s.shops[shop.ID] = shop
	return nil
}

type webhookFixture struct {
	processor Processor
	ledger    *stubLedger
	subs      *stubSubStore
	shops     *stubShopStore
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()
	ledger := newStubLedger()
	subs := newStubSubStore()
	shopStore := newStubShopStore()
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled, Output: io.Discard})
	p, err := NewProcessor(ledger, subs, shopStore, testSecret, logg, nil)
	if err != nil {
		t.Fatalf("new processor: %v", err)
	}
	return &webhookFixture{processor: p, ledger: ledger, subs: subs, shops: shopStore}
}

// seedActiveVendor stores a live shop with an active subscription and returns
// the shop id.
func (f *webhookFixture) seedActiveVendor(publishedAt time.Time) uuid.UUID {
	shopID := uuid.New()
	shop := &models.Shop{ID: shopID, Slug: "tienda-viva", VendorName: "Tienda Viva"}
	shop.SetStatus(enums.ShopStatusActive)
	shop.PublishedAt = &publishedAt
	f.shops.shops[shopID] = shop

	customer := "cus_123"
	subscription := "sub_123"
	f.subs.byShop[shopID] = &models.VendorSubscription{
		ID:                   uuid.New(),
		ShopID:               shopID,
		Provider:             "stripe",
		Status:               enums.SubscriptionStatusActive,
		StripeCustomerID:     &customer,
		StripeSubscriptionID: &subscription,
	}
	return shopID
}

func (f *webhookFixture) deliver(t *testing.T, payload string) *Result {
	t.Helper()
	body := []byte(payload)
	result, err := f.processor.Process(context.Background(), body, signPayload(body, testSecret))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	return result
}

func eventJSON(id, eventType, object string) string {
	return fmt.Sprintf(`{"id":%q,"object":"event","type":%q,"api_version":%q,"data":{"object":%s}}`,
		id, eventType, stripe.APIVersion, object)
}

func TestProcessRejectsBadSignature(t *testing.T) {
	f := newWebhookFixture(t)
	body := []byte(eventJSON("evt_1", "invoice.paid", `{}`))

	_, err := f.processor.Process(context.Background(), body, signPayload(body, "whsec_wrong"))
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if f.ledger.inserts != 0 {
		t.Fatal("rejected delivery must not touch the ledger")
	}

	_, err = f.processor.Process(context.Background(), body, "")
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error on missing header, got %v", err)
	}
}

func TestPaymentFailedUnpublishesShop(t *testing.T) {
	f := newWebhookFixture(t)
	shopID := f.seedActiveVendor(time.Now().Add(-48 * time.Hour))

	f.deliver(t, eventJSON("evt_fail", "invoice.payment_failed",
		`{"status":"open","customer":"cus_123","subscription":"sub_123"}`))

	sub := f.subs.byShop[shopID]
	if sub.Status != enums.SubscriptionStatusPastDue {
		t.Fatalf("subscription status: %s", sub.Status)
	}
	if sub.LastInvoiceStatus == nil || *sub.LastInvoiceStatus != "open" {
		t.Fatalf("invoice status: %v", sub.LastInvoiceStatus)
	}

	shop := f.shops.shops[shopID]
	if shop.IsActive || shop.Status != enums.ShopStatusUnpaid {
		t.Fatalf("shop not taken down: %s active=%v", shop.Status, shop.IsActive)
	}
	if shop.UnpublishedReason == nil || *shop.UnpublishedReason != shops.ReasonSubscriptionUnpaid {
		t.Fatalf("reason: %v", shop.UnpublishedReason)
	}
}

func TestInvoicePaidRestoresWithoutResettingPublishedAt(t *testing.T) {
	f := newWebhookFixture(t)
	originallyPublished := time.Now().Add(-72 * time.Hour).Truncate(time.Second)
	shopID := f.seedActiveVendor(originallyPublished)

	f.deliver(t, eventJSON("evt_fail", "invoice.payment_failed",
		`{"status":"open","customer":"cus_123","subscription":"sub_123"}`))
	f.deliver(t, eventJSON("evt_paid", "invoice.paid",
		`{"status":"paid","customer":"cus_123","subscription":"sub_123"}`))

	sub := f.subs.byShop[shopID]
	if sub.Status != enums.SubscriptionStatusActive {
		t.Fatalf("subscription status: %s", sub.Status)
	}

	shop := f.shops.shops[shopID]
	if !shop.IsActive || shop.Status != enums.ShopStatusActive {
		t.Fatalf("shop not restored: %s active=%v", shop.Status, shop.IsActive)
	}
	if shop.UnpublishedAt != nil || shop.UnpublishedReason != nil {
		t.Fatal("unpublish audit fields not cleared")
	}
	if shop.PublishedAt == nil || !shop.PublishedAt.Equal(originallyPublished) {
		t.Fatalf("published_at moved: %v", shop.PublishedAt)
	}
}

func TestDuplicateDeliveryIsNoOp(t *testing.T) {
	f := newWebhookFixture(t)
	shopID := f.seedActiveVendor(time.Now())
	payload := eventJSON("evt_once", "invoice.payment_failed",
		`{"status":"open","customer":"cus_123","subscription":"sub_123"}`)

	first := f.deliver(t, payload)
	if first.Duplicate {
		t.Fatal("first delivery flagged duplicate")
	}
	savesAfterFirst := f.subs.saves
	shopAfterFirst := *f.shops.shops[shopID]

	second := f.deliver(t, payload)
	if !second.Duplicate || !second.Received {
		t.Fatalf("second delivery: %+v", second)
	}
	if f.subs.saves != savesAfterFirst {
		t.Fatal("duplicate delivery touched the subscription")
	}
	if *f.shops.shops[shopID] != shopAfterFirst {
		t.Fatal("duplicate delivery changed shop state")
	}
}

func TestConcurrentDuplicateLosesInsertRace(t *testing.T) {
	f := newWebhookFixture(t)
	f.ledger.insertErr = errors.New(`duplicate key value violates unique constraint "ux_stripe_webhook_events_event"`)

	result := f.deliver(t, eventJSON("evt_race", "invoice.paid", `{}`))
	if !result.Duplicate {
		t.Fatal("insert race loser must report duplicate")
	}
}

func TestCheckoutCompletedCreatesSubscription(t *testing.T) {
	f := newWebhookFixture(t)
	shopID := uuid.New()
	shop := &models.Shop{ID: shopID, Slug: "nueva"}
	shop.SetStatus(enums.ShopStatusDraft)
	f.shops.shops[shopID] = shop

	f.deliver(t, eventJSON("evt_checkout", "checkout.session.completed", fmt.Sprintf(
		`{"customer":"cus_new","subscription":"sub_new","metadata":{"shop_id":%q}}`, shopID)))

	sub, ok := f.subs.byShop[shopID]
	if !ok {
		t.Fatal("subscription row not created")
	}
	if sub.Status != enums.SubscriptionStatusActive {
		t.Fatalf("status: %s", sub.Status)
	}
	if sub.StripeCustomerID == nil || *sub.StripeCustomerID != "cus_new" {
		t.Fatalf("customer id: %v", sub.StripeCustomerID)
	}
	if sub.StripeSubscriptionID == nil || *sub.StripeSubscriptionID != "sub_new" {
		t.Fatalf("subscription id: %v", sub.StripeSubscriptionID)
	}
	// Activation alone never publishes the shop.
	if f.shops.shops[shopID].IsActive {
		t.Fatal("checkout completion must not publish the shop")
	}
}

func TestSubscriptionDeletedTakesShopDown(t *testing.T) {
	f := newWebhookFixture(t)
	shopID := f.seedActiveVendor(time.Now())

	f.deliver(t, eventJSON("evt_del", "customer.subscription.deleted",
		`{"id":"sub_123","customer":"cus_123","status":"canceled"}`))

	sub := f.subs.byShop[shopID]
	if sub.Status != enums.SubscriptionStatusCanceled {
		t.Fatalf("status: %s", sub.Status)
	}
	shop := f.shops.shops[shopID]
	if shop.IsActive {
		t.Fatal("shop still live after cancellation")
	}
	if shop.UnpublishedReason == nil || *shop.UnpublishedReason != shops.ReasonSubscriptionCanceled {
		t.Fatalf("reason: %v", shop.UnpublishedReason)
	}
}

func TestSubscriptionUpdateRecordsPeriodAndPrice(t *testing.T) {
	f := newWebhookFixture(t)
	shopID := f.seedActiveVendor(time.Now())
	periodEnd := time.Now().Add(30 * 24 * time.Hour).Unix()

	f.deliver(t, eventJSON("evt_upd", "customer.subscription.updated", fmt.Sprintf(
		`{"id":"sub_123","customer":"cus_123","status":"trialing","cancel_at_period_end":true,"current_period_end":%d,"items":{"data":[{"price":{"id":"price_9"}}]}}`,
		periodEnd)))

	sub := f.subs.byShop[shopID]
	if sub.Status != enums.SubscriptionStatusTrialing {
		t.Fatalf("status: %s", sub.Status)
	}
	if !sub.CancelAtPeriodEnd {
		t.Fatal("cancel_at_period_end not recorded")
	}
	if sub.CurrentPeriodEnd == nil || sub.CurrentPeriodEnd.Unix() != periodEnd {
		t.Fatalf("period end: %v", sub.CurrentPeriodEnd)
	}
	if sub.StripePriceID == nil || *sub.StripePriceID != "price_9" {
		t.Fatalf("price id: %v", sub.StripePriceID)
	}
	// Trialing keeps the shop live.
	if !f.shops.shops[shopID].IsActive {
		t.Fatal("trialing must keep the shop published")
	}
}

func TestUnknownStatusNormalizesToInactive(t *testing.T) {
	f := newWebhookFixture(t)
	shopID := f.seedActiveVendor(time.Now())

	f.deliver(t, eventJSON("evt_odd", "customer.subscription.updated",
		`{"id":"sub_123","customer":"cus_123","status":"some_future_status"}`))

	sub := f.subs.byShop[shopID]
	if sub.Status != enums.SubscriptionStatusInactive {
		t.Fatalf("status: %s", sub.Status)
	}
	shop := f.shops.shops[shopID]
	if shop.UnpublishedReason == nil || *shop.UnpublishedReason != shops.ReasonSubscriptionInactive {
		t.Fatalf("reason: %v", shop.UnpublishedReason)
	}
}

func TestRecoveryNeverPublishesDraftOrPausedShops(t *testing.T) {
	f := newWebhookFixture(t)

	draftID := uuid.New()
	draft := &models.Shop{ID: draftID, Slug: "borrador"}
	draft.SetStatus(enums.ShopStatusDraft)
	f.shops.shops[draftID] = draft
	customer := "cus_d"
	subscription := "sub_d"
	f.subs.byShop[draftID] = &models.VendorSubscription{
		ID: uuid.New(), ShopID: draftID, Provider: "stripe",
		Status: enums.SubscriptionStatusInactive, StripeCustomerID: &customer, StripeSubscriptionID: &subscription,
	}

	f.deliver(t, eventJSON("evt_d", "invoice.paid",
		`{"status":"paid","customer":"cus_d","subscription":"sub_d"}`))
	if f.shops.shops[draftID].Status != enums.ShopStatusDraft {
		t.Fatalf("draft shop changed to %s", f.shops.shops[draftID].Status)
	}

	pausedID := uuid.New()
	paused := &models.Shop{ID: pausedID, Slug: "pausada"}
	paused.SetStatus(enums.ShopStatusPaused)
	f.shops.shops[pausedID] = paused
	customerP := "cus_p"
	subscriptionP := "sub_p"
	f.subs.byShop[pausedID] = &models.VendorSubscription{
		ID: uuid.New(), ShopID: pausedID, Provider: "stripe",
		Status: enums.SubscriptionStatusActive, StripeCustomerID: &customerP, StripeSubscriptionID: &subscriptionP,
	}

	f.deliver(t, eventJSON("evt_p", "invoice.paid",
		`{"status":"paid","customer":"cus_p","subscription":"sub_p"}`))
	if f.shops.shops[pausedID].Status != enums.ShopStatusPaused {
		t.Fatalf("vendor pause overridden: %s", f.shops.shops[pausedID].Status)
	}
}

func TestUnknownEventTypesAreAccepted(t *testing.T) {
	f := newWebhookFixture(t)

	result := f.deliver(t, eventJSON("evt_future", "product.created", `{"id":"prod_1"}`))
	if !result.Received || result.Duplicate {
		t.Fatalf("unexpected result: %+v", result)
	}
	if _, ok := f.ledger.events["evt_future"]; !ok {
		t.Fatal("unhandled event types still go through the ledger")
	}
}

func TestUnknownSubscriptionIsTolerated(t *testing.T) {
	f := newWebhookFixture(t)

	result := f.deliver(t, eventJSON("evt_orphan", "invoice.payment_failed",
		`{"status":"open","customer":"cus_ghost","subscription":"sub_ghost"}`))
	if !result.Received {
		t.Fatal("orphan event must still be accepted")
	}
}
