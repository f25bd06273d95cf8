// Package plan holds the static plan catalog: per-tier limits, overage
// packs, and the strict price-ID to plan mapping.
package plan

import (
	"errors"
	"strings"
	"time"

	"github.com/rzbeall84/ask-rita/internal/config"
)

// ID identifies a subscription tier.
type ID string

const (
	Free       ID = "free"
	Starter    ID = "starter"
	Pro        ID = "pro"
	Enterprise ID = "enterprise"
)

// Limits are the metering caps attached to a plan. SeatLimit of
// config.SeatLimitUnbounded means no cap.
type Limits struct {
	Plan           ID
	SeatLimit      int
	QueryLimit     int
	StorageLimitGB int
}

// Unbounded reports whether the plan has no seat cap.
func (l Limits) UnboundedSeats() bool {
	return l.SeatLimit == config.SeatLimitUnbounded
}

// OveragePack is a one-time purchase adding query credits to the current
// billing period.
type OveragePack struct {
	ID           string
	PriceID      string
	QueryCredits int
	PriceAmount  int64
}

var (
	ErrUnknownPriceID = errors.New("unknown_price_id")
	ErrUnknownPack    = errors.New("unknown_pack")
)

// Catalog answers plan and pack lookups from the live config snapshot.
type Catalog struct {
	holder *config.PlanCatalogHolder
}

func NewCatalog(holder *config.PlanCatalogHolder) *Catalog {
	return &Catalog{holder: holder}
}

// LimitsFor is total: unknown or empty plan IDs fall back to the free tier.
func (c *Catalog) LimitsFor(id ID) Limits {
	cfg := c.holder.Get()
	normalized := ID(strings.ToLower(strings.TrimSpace(string(id))))
	var free Limits
	for _, p := range cfg.Plans {
		limits := Limits{
			Plan:           ID(p.ID),
			SeatLimit:      p.SeatLimit,
			QueryLimit:     p.QueryLimit,
			StorageLimitGB: p.StorageLimitGB,
		}
		if ID(p.ID) == normalized {
			return limits
		}
		if ID(p.ID) == Free {
			free = limits
		}
	}
	return free
}

// PlanForPriceID maps a billing-provider price identifier to a plan. The
// mapping is strict: amounts are never consulted.
func (c *Catalog) PlanForPriceID(priceID string) (ID, error) {
	priceID = strings.TrimSpace(priceID)
	if priceID == "" {
		return "", ErrUnknownPriceID
	}
	for _, p := range c.holder.Get().Plans {
		if p.PriceID != "" && p.PriceID == priceID {
			return ID(p.ID), nil
		}
	}
	return "", ErrUnknownPriceID
}

// PackForPriceID maps a provider price identifier to an overage pack.
func (c *Catalog) PackForPriceID(priceID string) (OveragePack, error) {
	priceID = strings.TrimSpace(priceID)
	if priceID == "" {
		return OveragePack{}, ErrUnknownPack
	}
	for _, p := range c.holder.Get().Packs {
		if p.PriceID == priceID {
			return OveragePack{
				ID:           p.ID,
				PriceID:      p.PriceID,
				QueryCredits: p.QueryCredits,
				PriceAmount:  p.PriceAmount,
			}, nil
		}
	}
	return OveragePack{}, ErrUnknownPack
}

// PackByID looks a pack up by its catalog identifier.
func (c *Catalog) PackByID(id string) (OveragePack, error) {
	id = strings.TrimSpace(id)
	for _, p := range c.holder.Get().Packs {
		if p.ID == id {
			return OveragePack{
				ID:           p.ID,
				PriceID:      p.PriceID,
				QueryCredits: p.QueryCredits,
				PriceAmount:  p.PriceAmount,
			}, nil
		}
	}
	return OveragePack{}, ErrUnknownPack
}

// Packs returns the purchasable overage packs.
func (c *Catalog) Packs() []OveragePack {
	specs := c.holder.Get().Packs
	packs := make([]OveragePack, 0, len(specs))
	for _, p := range specs {
		packs = append(packs, OveragePack{
			ID:           p.ID,
			PriceID:      p.PriceID,
			QueryCredits: p.QueryCredits,
			PriceAmount:  p.PriceAmount,
		})
	}
	return packs
}

// Purchasable reports whether a plan can be bought through checkout. The free
// tier has no price and is never purchasable.
func (c *Catalog) Purchasable(id ID) bool {
	for _, p := range c.holder.Get().Plans {
		if ID(p.ID) == id {
			return strings.TrimSpace(p.PriceID) != ""
		}
	}
	return false
}

// PriceIDFor returns the provider price identifier for a purchasable plan.
func (c *Catalog) PriceIDFor(id ID) (string, error) {
	for _, p := range c.holder.Get().Plans {
		if ID(p.ID) == id && strings.TrimSpace(p.PriceID) != "" {
			return p.PriceID, nil
		}
	}
	return "", ErrUnknownPriceID
}

// GracePeriod returns the configured post-failure access window.
func (c *Catalog) GracePeriod() time.Duration {
	days := c.holder.Get().GracePeriodDays
	return time.Duration(days) * 24 * time.Hour
}
