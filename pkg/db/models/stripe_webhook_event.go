package models

import (
	"time"

	"github.com/google/uuid"
)

// StripeWebhookEvent is the append-only idempotency ledger. A row existing
// for an EventID means the delivery was accepted; replays become no-ops. The
// unique index turns a concurrent duplicate delivery into one winner plus one
// duplicate-key rejection.
type StripeWebhookEvent struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	EventID     string    `gorm:"column:event_id;not null;uniqueIndex:ux_stripe_webhook_events_event"`
	EventType   string    `gorm:"column:event_type;not null"`
	ProcessedAt time.Time `gorm:"column:processed_at;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}
