// Package billingperiod resolves the metering window that keys usage ledger
// rows.
package billingperiod

import (
	"time"

	subscriptiondomain "github.com/rzbeall84/ask-rita/internal/subscription/domain"
)

// KeyLayout is the date layout used for ledger keys.
const KeyLayout = "2006-01-02"

// Period is a metering window. Key is the date of Start and is what the
// ledger's composite unique index is built on.
type Period struct {
	Start time.Time
	End   time.Time
	Key   string
}

// Resolve returns the current metering window for a subscription.
//
// An active subscription with period bounds uses them verbatim. Everything
// else falls back to the calendar month containing now, so repeated calls
// within a month land on the same key and ledger rows never fragment.
func Resolve(sub *subscriptiondomain.Subscription, now time.Time) Period {
	if sub != nil && sub.Status == subscriptiondomain.StatusActive && sub.PeriodSet() {
		start := sub.CurrentPeriodStart.UTC()
		return Period{
			Start: start,
			End:   sub.CurrentPeriodEnd.UTC(),
			Key:   start.Format(KeyLayout),
		}
	}

	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0).Add(-time.Second)
	return Period{
		Start: start,
		End:   end,
		Key:   start.Format(KeyLayout),
	}
}
