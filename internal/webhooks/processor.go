package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	stripe "github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"
	"gorm.io/gorm"

	"github.com/mercadolocal/mercadito-backend/internal/shops"
	"github.com/mercadolocal/mercadito-backend/pkg/db"
	"github.com/mercadolocal/mercadito-backend/pkg/db/models"
	"github.com/mercadolocal/mercadito-backend/pkg/enums"
	pkgerrors "github.com/mercadolocal/mercadito-backend/pkg/errors"
	"github.com/mercadolocal/mercadito-backend/pkg/logger"
	"github.com/mercadolocal/mercadito-backend/pkg/metrics"
)

type subscriptionStore interface {
	FindByShop(ctx context.Context, shopID uuid.UUID) (*models.VendorSubscription, error)
	FindByStripeIDs(ctx context.Context, subscriptionID, customerID string) (*models.VendorSubscription, error)
	Create(ctx context.Context, sub *models.VendorSubscription) error
	Save(ctx context.Context, sub *models.VendorSubscription) error
}

type shopStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Shop, error)
	Update(ctx context.Context, shop *models.Shop) error
}

// Result reports the outcome of one webhook delivery.
type Result struct {
	Received  bool   `json:"received"`
	Duplicate bool   `json:"duplicate,omitempty"`
	EventType string `json:"-"`
}

// Processor verifies, deduplicates, and applies billing events.
type Processor interface {
	Process(ctx context.Context, payload []byte, signatureHeader string) (*Result, error)
}

type processor struct {
	ledger        Ledger
	subscriptions subscriptionStore
	shops         shopStore
	secret        string
	logg          *logger.Logger
	metrics       *metrics.WebhookMetrics
	now           func() time.Time
	construct     func(payload []byte, header, secret string) (stripe.Event, error)
}

// NewProcessor builds the webhook processor. Metrics may be nil.
func NewProcessor(
	ledger Ledger,
	subscriptions subscriptionStore,
	shopStore shopStore,
	signingSecret string,
	logg *logger.Logger,
	webhookMetrics *metrics.WebhookMetrics,
) (Processor, error) {
	if ledger == nil {
		return nil, fmt.Errorf("event ledger required")
	}
	if subscriptions == nil {
		return nil, fmt.Errorf("subscriptions store required")
	}
	if shopStore == nil {
		return nil, fmt.Errorf("shops store required")
	}
	if signingSecret == "" {
		return nil, fmt.Errorf("signing secret required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &processor{
		ledger:        ledger,
		subscriptions: subscriptions,
		shops:         shopStore,
		secret:        signingSecret,
		logg:          logg,
		metrics:       webhookMetrics,
		now:           func() time.Time { return time.Now().UTC() },
		construct:     webhook.ConstructEvent,
	}, nil
}

func (p *processor) Process(ctx context.Context, payload []byte, signatureHeader string) (*Result, error) {
	start := p.now()

	event, err := p.construct(payload, signatureHeader, p.secret)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid webhook signature")
	}
	if event.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event id missing")
	}

	eventType := string(event.Type)
	ctx = p.logg.WithEventID(ctx, event.ID)

	if _, findErr := p.ledger.FindByEventID(ctx, event.ID); findErr == nil {
		p.logg.Info(ctx, "duplicate webhook delivery skipped")
		p.metrics.IncDuplicate(eventType)
		return &Result{Received: true, Duplicate: true, EventType: eventType}, nil
	} else if !errors.Is(findErr, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "look up webhook event")
	}

	// Recorded before dispatch so a crash mid-handler can never double-apply
	// the same event on redelivery. A failed handler run leaves the event
	// recorded-but-unapplied; the tradeoff is deliberate.
	record := &models.StripeWebhookEvent{
		EventID:     event.ID,
		EventType:   eventType,
		ProcessedAt: p.now(),
	}
	if insertErr := p.ledger.Insert(ctx, record); insertErr != nil {
		if db.IsUniqueViolation(insertErr, "ux_stripe_webhook_events_event") {
			p.metrics.IncDuplicate(eventType)
			return &Result{Received: true, Duplicate: true, EventType: eventType}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, insertErr, "record webhook event")
	}

	if dispatchErr := p.dispatch(ctx, event); dispatchErr != nil {
		p.logg.Error(ctx, "webhook handler failed", dispatchErr)
		p.metrics.IncFailure(eventType)
		return nil, dispatchErr
	}

	p.metrics.IncProcessed(eventType)
	p.metrics.ObserveDuration(eventType, p.now().Sub(start))
	return &Result{Received: true, EventType: eventType}, nil
}

func (p *processor) dispatch(ctx context.Context, event stripe.Event) error {
	switch event.Type {
	case "invoice.payment_failed":
		return p.handleInvoicePaymentFailed(ctx, event)
	case "invoice.paid":
		return p.handleInvoicePaid(ctx, event)
	case "checkout.session.completed":
		return p.handleCheckoutCompleted(ctx, event)
	case "customer.subscription.created",
		"customer.subscription.updated",
		"customer.subscription.deleted":
		return p.handleSubscriptionChanged(ctx, event)
	default:
		// Unrecognized types are accepted and ignored.
		p.logg.Info(ctx, "unhandled webhook event type")
		return nil
	}
}

type invoiceEvent struct {
	Status       string `json:"status"`
	Customer     string `json:"customer"`
	Subscription string `json:"subscription"`
}

func (p *processor) handleInvoicePaymentFailed(ctx context.Context, event stripe.Event) error {
	var invoice invoiceEvent
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse invoice event")
	}

	sub, err := p.findSubscription(ctx, invoice.Subscription, invoice.Customer)
	if err != nil {
		return err
	}
	if sub == nil {
		p.logg.Warn(ctx, "payment failure for unknown subscription")
		return nil
	}

	sub.Status = enums.SubscriptionStatusPastDue
	sub.LastInvoiceStatus = invoiceStatusPtr(invoice.Status)
	if err := p.subscriptions.Save(ctx, sub); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update subscription")
	}
	return p.reconcileVisibility(ctx, sub.ShopID, enums.SubscriptionStatusPastDue)
}

func (p *processor) handleInvoicePaid(ctx context.Context, event stripe.Event) error {
	var invoice invoiceEvent
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse invoice event")
	}

	sub, err := p.findSubscription(ctx, invoice.Subscription, invoice.Customer)
	if err != nil {
		return err
	}
	if sub == nil {
		p.logg.Warn(ctx, "paid invoice for unknown subscription")
		return nil
	}

	sub.Status = enums.SubscriptionStatusActive
	sub.LastInvoiceStatus = invoiceStatusPtr(invoice.Status)
	if err := p.subscriptions.Save(ctx, sub); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update subscription")
	}
	return p.reconcileVisibility(ctx, sub.ShopID, enums.SubscriptionStatusActive)
}

type checkoutSessionEvent struct {
	Customer     string            `json:"customer"`
	Subscription string            `json:"subscription"`
	Metadata     map[string]string `json:"metadata"`
}

// handleCheckoutCompleted is the initial activation path: it may create the
// subscription row, unlike the invoice handlers which only update one.
func (p *processor) handleCheckoutCompleted(ctx context.Context, event stripe.Event) error {
	var session checkoutSessionEvent
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse checkout session event")
	}

	shopID, err := uuid.Parse(session.Metadata["shop_id"])
	if err != nil {
		p.logg.Warn(ctx, "checkout session without shop_id metadata")
		return nil
	}
	ctx = p.logg.WithShopID(ctx, shopID.String())

	sub, findErr := p.subscriptions.FindByShop(ctx, shopID)
	if findErr != nil {
		if !errors.Is(findErr, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "load subscription")
		}
		sub = &models.VendorSubscription{ShopID: shopID, Provider: "stripe"}
	}

	sub.Status = enums.SubscriptionStatusActive
	if session.Customer != "" {
		customer := session.Customer
		sub.StripeCustomerID = &customer
	}
	if session.Subscription != "" {
		subscription := session.Subscription
		sub.StripeSubscriptionID = &subscription
	}

	if sub.ID == uuid.Nil {
		if createErr := p.subscriptions.Create(ctx, sub); createErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, createErr, "create subscription")
		}
		return nil
	}
	if saveErr := p.subscriptions.Save(ctx, sub); saveErr != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, saveErr, "update subscription")
	}
	return nil
}

type subscriptionEvent struct {
	ID                string `json:"id"`
	Customer          string `json:"customer"`
	Status            string `json:"status"`
	CancelAtPeriodEnd bool   `json:"cancel_at_period_end"`
	CurrentPeriodEnd  int64  `json:"current_period_end"`
	Items             struct {
		Data []struct {
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

func (p *processor) handleSubscriptionChanged(ctx context.Context, event stripe.Event) error {
	var payload subscriptionEvent
	if err := json.Unmarshal(event.Data.Raw, &payload); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse subscription event")
	}

	sub, err := p.findSubscription(ctx, payload.ID, payload.Customer)
	if err != nil {
		return err
	}
	if sub == nil {
		p.logg.Warn(ctx, "subscription event for unknown subscription")
		return nil
	}

	status := enums.NormalizeSubscriptionStatus(payload.Status)
	sub.Status = status
	sub.CancelAtPeriodEnd = payload.CancelAtPeriodEnd
	if payload.ID != "" {
		id := payload.ID
		sub.StripeSubscriptionID = &id
	}
	if payload.CurrentPeriodEnd > 0 {
		periodEnd := time.Unix(payload.CurrentPeriodEnd, 0).UTC()
		sub.CurrentPeriodEnd = &periodEnd
	}
	if len(payload.Items.Data) > 0 && payload.Items.Data[0].Price.ID != "" {
		price := payload.Items.Data[0].Price.ID
		sub.StripePriceID = &price
	}

	if err := p.subscriptions.Save(ctx, sub); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update subscription")
	}
	return p.reconcileVisibility(ctx, sub.ShopID, status)
}

// findSubscription resolves by subscription id first, then customer id. A
// miss returns (nil, nil): billing events can arrive for rows this system
// never created.
func (p *processor) findSubscription(ctx context.Context, subscriptionID, customerID string) (*models.VendorSubscription, error) {
	if subscriptionID == "" && customerID == "" {
		return nil, nil
	}
	sub, err := p.subscriptions.FindByStripeIDs(ctx, subscriptionID, customerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
	}
	return sub, nil
}

// reconcileVisibility is the only billing-driven writer of shop visibility.
// A paying subscription lifts a billing suspension but never force-publishes
// a draft or overrides a vendor's own pause; a lapsed one only takes down a
// shop that is actually live.
func (p *processor) reconcileVisibility(ctx context.Context, shopID uuid.UUID, status enums.SubscriptionStatus) error {
	shop, err := p.shops.FindByID(ctx, shopID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			p.logg.Warn(ctx, "subscription without a shop")
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shop")
	}
	ctx = p.logg.WithShopID(ctx, shop.ID.String())

	switch {
	case status.KeepsShopPublished():
		if shop.Status != enums.ShopStatusUnpaid {
			return nil
		}
		shops.ApplyRestore(shop, p.now())
		p.logg.Info(ctx, "shop restored after billing recovery")
	default:
		if !shop.IsActive {
			return nil
		}
		shops.ApplyUnpublish(shop, unpublishReasonFor(status), p.now())
		p.logg.Info(ctx, "shop unpublished for billing state")
	}

	if err := p.shops.Update(ctx, shop); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update shop")
	}
	return nil
}

func unpublishReasonFor(status enums.SubscriptionStatus) string {
	switch status {
	case enums.SubscriptionStatusPastDue, enums.SubscriptionStatusUnpaid:
		return shops.ReasonSubscriptionUnpaid
	case enums.SubscriptionStatusCanceled:
		return shops.ReasonSubscriptionCanceled
	default:
		return shops.ReasonSubscriptionInactive
	}
}

func invoiceStatusPtr(status string) *string {
	if status == "" {
		return nil
	}
	return &status
}
