package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/rzbeall84/ask-rita/internal/billingperiod"
)

// IncrementResult reports the ledger state after a consume attempt.
type IncrementResult struct {
	NewUsage   int `json:"new_usage"`
	TotalLimit int `json:"total_limit"`
	Remaining  int `json:"remaining"`
	Percentage int `json:"percentage"`
}

// Notification thresholds, in percent.
const (
	Threshold80  = 80
	Threshold100 = 100
)

type Service interface {
	// GetOrCreate returns the ledger row for (org, period), creating a zeroed
	// one on first access. Safe under concurrent first access.
	GetOrCreate(ctx context.Context, orgID snowflake.ID, period billingperiod.Period) (*QueryUsage, error)
	// Consume bumps queries_used by one if and only if the total allowance
	// (planLimit + extra_queries_purchased) has headroom. The check and the
	// bump are one atomic statement, so denied attempts are never charged
	// and concurrent consumers cannot overshoot. Returns whether the bump
	// was applied plus the resulting ledger state.
	Consume(ctx context.Context, orgID snowflake.ID, period billingperiod.Period, planLimit int) (IncrementResult, bool, error)
	// RecordUnmetered bumps queries_used without a limit check, for
	// unlimited-usage organizations whose traffic is still tracked.
	RecordUnmetered(ctx context.Context, orgID snowflake.ID, period billingperiod.Period) error
	// AddExtraCredits adds purchased overage credits to the period. Credits
	// only ever increase.
	AddExtraCredits(ctx context.Context, orgID snowflake.ID, period billingperiod.Period, credits int) error
	// MarkNotified claims the at-most-once notification watermark for the
	// given threshold. Returns true when this call won the claim.
	MarkNotified(ctx context.Context, orgID snowflake.ID, period billingperiod.Period, threshold int) (bool, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidPeriod       = errors.New("invalid_period")
	ErrInvalidCredits      = errors.New("invalid_credits")
	ErrInvalidThreshold    = errors.New("invalid_threshold")
	ErrLedgerRowMissing    = errors.New("ledger_row_missing")
)
