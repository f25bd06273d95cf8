// Package domain defines the limit gate contract: a single call-time check
// invoked before any metered action.
package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// LimitType selects which quota the gate checks.
type LimitType string

const (
	LimitQueries LimitType = "queries"
	LimitUsers   LimitType = "users"
)

func (t LimitType) Valid() bool {
	return t == LimitQueries || t == LimitUsers
}

// Denial and failure messages surfaced to callers. Distinguishable so the
// caller can render the right prompt (upgrade vs. purchase vs. retry).
const (
	MsgSubscriptionRequired = "subscription_required"
	MsgQueryLimitReached    = "query_limit_reached"
	MsgSeatLimitReached     = "seat_limit_reached"
	MsgOrganizationNotFound = "organization_not_found"
	MsgUnknownLimitType     = "unknown_limit_type"
	MsgStoreUnavailable     = "store_unavailable"
)

// Result is the gate's only output. The gate never fails past its boundary:
// internal errors surface as a denied Result with MsgStoreUnavailable.
type Result struct {
	Allowed      bool   `json:"allowed"`
	Message      string `json:"message,omitempty"`
	Usage        int    `json:"usage"`
	Limit        int    `json:"limit"`
	Remaining    int    `json:"remaining"`
	Percentage   int    `json:"percentage"`
	Unlimited    bool   `json:"unlimited,omitempty"`
	NeedsUpgrade bool   `json:"needs_upgrade,omitempty"`
}

type Service interface {
	// CheckAndConsume decides whether the caller may perform one metered
	// action. For queries an allowed decision charges exactly one unit;
	// denied attempts are never charged. For users it is a pure seat
	// comparison with no ledger mutation. Role is the caller's role in the
	// organization; only the billing-responsible role is gated.
	CheckAndConsume(ctx context.Context, orgID snowflake.ID, role string, limitType LimitType) Result
}
