package webhooks

import (
	"context"

	"gorm.io/gorm"

	"github.com/mercadolocal/mercadito-backend/pkg/db/models"
)

// Ledger is the append-only idempotency record for inbound webhook events.
type Ledger interface {
	WithTx(tx *gorm.DB) Ledger
	FindByEventID(ctx context.Context, eventID string) (*models.StripeWebhookEvent, error)
	Insert(ctx context.Context, event *models.StripeWebhookEvent) error
}

type ledger struct {
	db *gorm.DB
}

// NewLedger builds a ledger bound to the provided DB.
func NewLedger(db *gorm.DB) Ledger {
	return &ledger{db: db}
}

func (l *ledger) WithTx(tx *gorm.DB) Ledger {
	if tx == nil {
		return l
	}
	return &ledger{db: tx}
}

func (l *ledger) FindByEventID(ctx context.Context, eventID string) (*models.StripeWebhookEvent, error) {
	var event models.StripeWebhookEvent
	err := l.db.WithContext(ctx).Where("event_id = ?", eventID).First(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (l *ledger) Insert(ctx context.Context, event *models.StripeWebhookEvent) error {
	return l.db.WithContext(ctx).Create(event).Error
}
