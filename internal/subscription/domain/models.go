// Package domain contains persistence models for organization subscriptions.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/rzbeall84/ask-rita/internal/plan"
)

// Status represents lifecycle states for a subscription.
type Status string

const (
	StatusInactive Status = "inactive"
	StatusTrialing Status = "trialing"
	StatusActive   Status = "active"
	StatusPastDue  Status = "past_due"
	StatusCanceled Status = "canceled"
)

// InGraceEligibleState reports whether the status may carry a grace window.
// grace_period_end is non-null only in these states.
func (s Status) InGraceEligibleState() bool {
	return s == StatusPastDue || s == StatusCanceled
}

// Valid reports whether the status is one of the known lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusInactive, StatusTrialing, StatusActive, StatusPastDue, StatusCanceled:
		return true
	default:
		return false
	}
}

// Subscription captures an organization's billing agreement. At most one row
// exists per organization, enforced by the unique index on organization_id.
type Subscription struct {
	ID                 snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID              snowflake.ID `gorm:"column:organization_id;not null;uniqueIndex:ux_subscriptions_org" json:"organization_id"`
	Status             Status       `gorm:"type:text;not null" json:"status"`
	PlanID             plan.ID      `gorm:"column:plan_type;type:text;not null" json:"plan_type"`
	CurrentPeriodStart *time.Time   `gorm:"" json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time   `gorm:"" json:"current_period_end,omitempty"`
	GracePeriodEnd     *time.Time   `gorm:"" json:"grace_period_end,omitempty"`
	UnlimitedUsage     bool         `gorm:"not null;default:false" json:"unlimited_usage"`
	ProviderCustomerID *string      `gorm:"type:text" json:"provider_customer_id,omitempty"`
	CreatedAt          time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt          time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }

// PeriodSet reports whether both billing period bounds are present.
func (s *Subscription) PeriodSet() bool {
	return s != nil && s.CurrentPeriodStart != nil && s.CurrentPeriodEnd != nil
}
