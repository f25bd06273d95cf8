package cache

import (
	"time"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/rzbeall84/ask-rita/internal/subscription/domain"
)

// The subscription TTL is short on purpose: a slightly stale access check
// during a billing transition is acceptable, and the billing event ingestor
// invalidates eagerly anyway.
const defaultSubscriptionTTL = 45 * time.Second

// SubscriptionCache stores hot-path subscription lookups for the limit gate.
// The billing event ingestor invalidates entries when provider events land,
// replacing the UI-driven polling refresh the product used to do.
type SubscriptionCache interface {
	Get(orgID snowflake.ID) (*subscriptiondomain.Subscription, bool)
	Set(orgID snowflake.ID, sub *subscriptiondomain.Subscription)
	Invalidate(orgID snowflake.ID)
}

type subscriptionCache struct {
	entries Cache[snowflake.ID, *subscriptiondomain.Subscription]
	ttl     time.Duration
}

// NewSubscriptionCache returns an in-memory cache tuned for access checks.
func NewSubscriptionCache() SubscriptionCache {
	return &subscriptionCache{
		entries: NewTTLCache[snowflake.ID, *subscriptiondomain.Subscription](),
		ttl:     defaultSubscriptionTTL,
	}
}

func (c *subscriptionCache) Get(orgID snowflake.ID) (*subscriptiondomain.Subscription, bool) {
	return c.entries.Get(orgID)
}

func (c *subscriptionCache) Set(orgID snowflake.ID, sub *subscriptiondomain.Subscription) {
	if sub == nil {
		return
	}
	c.entries.Set(orgID, sub, c.ttl)
}

func (c *subscriptionCache) Invalidate(orgID snowflake.ID) {
	c.entries.Delete(orgID)
}
