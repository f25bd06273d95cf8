// Package domain defines normalized billing-provider events and the
// append-only audit log they leave behind.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// EventType is a normalized billing-provider event kind.
type EventType string

const (
	EventSubscriptionActivated EventType = "subscription_activated"
	EventSubscriptionUpdated   EventType = "subscription_updated"
	EventSubscriptionCanceled  EventType = "subscription_canceled"
	EventPaymentFailed         EventType = "payment_failed"
	EventPaymentSucceeded      EventType = "payment_succeeded"
	EventOveragePurchased      EventType = "overage_purchased"
)

func (t EventType) Valid() bool {
	switch t {
	case EventSubscriptionActivated,
		EventSubscriptionUpdated,
		EventSubscriptionCanceled,
		EventPaymentFailed,
		EventPaymentSucceeded,
		EventOveragePurchased:
		return true
	default:
		return false
	}
}

// Event is the normalized payload crossing the webhook boundary. Period
// bounds are epoch seconds as delivered by the provider.
type Event struct {
	ProviderEventID string       `json:"provider_event_id"`
	Type            EventType    `json:"type"`
	OrgID           snowflake.ID `json:"org_id"`
	UserID          string       `json:"user_id,omitempty"`
	PriceID         string       `json:"price_id,omitempty"`
	Status          string       `json:"status,omitempty"`
	PeriodStart     int64        `json:"period_start,omitempty"`
	PeriodEnd       int64        `json:"period_end,omitempty"`
}

// Audit outcomes recorded per delivery.
const (
	OutcomeSuccess   = "success"
	OutcomeError     = "error"
	OutcomeDuplicate = "duplicate"
)

// EventLog is one append-only audit row per delivered event, written
// whether or not the state transition succeeded.
type EventLog struct {
	ID              snowflake.ID      `gorm:"primaryKey" json:"id"`
	ProviderEventID string            `gorm:"type:text;index" json:"provider_event_id"`
	OrgID           snowflake.ID      `gorm:"column:organization_id;index" json:"organization_id"`
	EventType       EventType         `gorm:"type:text;not null" json:"event_type"`
	Payload         datatypes.JSONMap `gorm:"type:jsonb" json:"payload"`
	Outcome         string            `gorm:"type:text;not null" json:"outcome"`
	ErrorText       string            `gorm:"type:text" json:"error_text,omitempty"`
	CreatedAt       time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (EventLog) TableName() string { return "billing_event_log" }
