// Package domain defines the checkout boundary: session validation lives
// here, URL creation belongs to the billing provider.
package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/rzbeall84/ask-rita/internal/plan"
)

// SessionRequest asks for a hosted checkout page. Exactly one of PlanID or
// PackID is set: plans change the subscription, packs add query credits.
type SessionRequest struct {
	OrgID  snowflake.ID `json:"org_id"`
	PlanID plan.ID      `json:"plan_id,omitempty"`
	PackID string       `json:"pack_id,omitempty"`
}

// Session is the hosted page handed back to the caller.
type Session struct {
	URL     string `json:"url"`
	PriceID string `json:"price_id"`
}

// ProviderParams carries the validated inputs to the billing provider.
type ProviderParams struct {
	OrgID      snowflake.ID
	PriceID    string
	SuccessURL string
	CancelURL  string
}

// Provider creates hosted billing pages. Implementations wrap the external
// billing collaborator; the core never builds provider URLs itself beyond
// configured bases.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, params ProviderParams) (string, error)
	CreatePortalSession(ctx context.Context, orgID snowflake.ID) (string, error)
}

type Service interface {
	// CreateCheckoutSession validates the organization and the purchase
	// target, then delegates URL creation to the provider.
	CreateCheckoutSession(ctx context.Context, req SessionRequest) (*Session, error)
	// CreatePortalSession opens the provider's self-service portal for an
	// existing organization.
	CreatePortalSession(ctx context.Context, orgID snowflake.ID) (*Session, error)
}

var (
	ErrPlanNotPurchasable = errors.New("plan_not_purchasable")
	ErrNothingToPurchase  = errors.New("nothing_to_purchase")
	ErrProviderFailure    = errors.New("provider_failure")
)
