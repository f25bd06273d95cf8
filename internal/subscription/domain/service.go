package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/rzbeall84/ask-rita/internal/plan"
)

// ActivateRequest carries a confirmed plan and billing window from the
// billing provider. Applying it clears any grace window.
type ActivateRequest struct {
	OrgID       snowflake.ID
	Status      Status
	Plan        plan.ID
	PeriodStart time.Time
	PeriodEnd   time.Time
}

//go:generate mockgen -source=service.go -destination=./mocks/mock_service.go -package=mocks
type Service interface {
	// GetByOrgID returns the organization's subscription, nil when absent.
	GetByOrgID(ctx context.Context, orgID snowflake.ID) (*Subscription, error)
	// EnsureDefault creates the signup-time inactive/free row when missing.
	EnsureDefault(ctx context.Context, orgID snowflake.ID) (*Subscription, error)
	// Activate upserts an active (or trialing) subscription and clears grace.
	Activate(ctx context.Context, req ActivateRequest) error
	// MarkCanceled sets status canceled with the given grace window end.
	// Re-applying recomputes the window, it never stacks.
	MarkCanceled(ctx context.Context, orgID snowflake.ID, graceEnd time.Time) error
	// MarkPastDue sets status past_due with the given grace window end.
	MarkPastDue(ctx context.Context, orgID snowflake.ID, graceEnd time.Time) error
	// SetUnlimitedUsage toggles the promotional quota override.
	SetUnlimitedUsage(ctx context.Context, orgID snowflake.ID, unlimited bool) error
	// CountInGrace counts organizations currently inside a grace window.
	CountInGrace(ctx context.Context, now time.Time) (int64, error)
}

var (
	ErrInvalidOrganization  = errors.New("invalid_organization")
	ErrInvalidStatus        = errors.New("invalid_status")
	ErrInvalidPeriod        = errors.New("invalid_period")
	ErrSubscriptionNotFound = errors.New("subscription_not_found")
)
