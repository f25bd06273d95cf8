package domain

import "time"

// Billing-responsible role. Access gating applies only to owners; other
// members of an organization ride on the owner's subscription.
const RoleOwner = "owner"

// AccessDecision is the single access answer the rest of the system consumes.
type AccessDecision struct {
	Allowed        bool       `json:"allowed"`
	NeedsUpgrade   bool       `json:"needs_upgrade"`
	GracePeriodEnd *time.Time `json:"grace_period_end,omitempty"`
}

// Evaluate derives the access decision from a subscription snapshot. It is
// pure: all inputs are explicit, including the clock reading.
//
// Order matters: role exemption and the unlimited override win over any
// status; a missing subscription denies; active/trialing allow; past_due and
// canceled allow only inside the grace window, flagged for upgrade.
func Evaluate(sub *Subscription, role string, now time.Time) AccessDecision {
	if role != RoleOwner {
		return AccessDecision{Allowed: true}
	}
	if sub == nil {
		return AccessDecision{Allowed: false, NeedsUpgrade: true}
	}
	if sub.UnlimitedUsage {
		return AccessDecision{Allowed: true}
	}

	switch sub.Status {
	case StatusActive, StatusTrialing:
		return AccessDecision{Allowed: true}
	case StatusPastDue, StatusCanceled:
		if sub.GracePeriodEnd != nil && sub.GracePeriodEnd.After(now) {
			end := *sub.GracePeriodEnd
			return AccessDecision{Allowed: true, NeedsUpgrade: true, GracePeriodEnd: &end}
		}
	}
	return AccessDecision{Allowed: false, NeedsUpgrade: true}
}
