package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rzbeall84/ask-rita/internal/billingperiod"
	"github.com/rzbeall84/ask-rita/internal/plan"
	subscriptiondomain "github.com/rzbeall84/ask-rita/internal/subscription/domain"
)

type usageSummaryResponse struct {
	OrgID          string `json:"org_id"`
	BillingPeriod  string `json:"billing_period"`
	PlanType       string `json:"plan_type"`
	QueriesUsed    int    `json:"queries_used"`
	ExtraPurchased int    `json:"extra_queries_purchased"`
	TotalLimit     int    `json:"total_limit"`
	Remaining      int    `json:"remaining"`
	Percentage     int    `json:"percentage"`
	Unlimited      bool   `json:"unlimited"`
}

// GetUsageSummary reports the current period's ledger state without
// consuming anything.
func (s *Server) GetUsageSummary(c *gin.Context) {
	orgID, ok := s.orgIDFromContext(c)
	if !ok {
		AbortWithError(c, invalidRequestError())
		return
	}
	ctx := c.Request.Context()

	sub, err := s.subscriptionSvc.GetByOrgID(ctx, orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	now := s.clock.Now()
	planID := plan.Free
	unlimited := false
	if sub != nil {
		unlimited = sub.UnlimitedUsage
		// The paid plan's limits hold until the grace window closes, so the
		// summary resolves the plan the same way the gate does.
		if subscriptiondomain.Evaluate(sub, subscriptiondomain.RoleOwner, now).Allowed {
			planID = sub.PlanID
		}
	}
	limits := s.catalog.LimitsFor(planID)

	period := billingperiod.Resolve(sub, now)
	row, err := s.usageSvc.GetOrCreate(ctx, orgID, period)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	total := limits.QueryLimit + row.ExtraQueriesPurchased
	remaining := total - row.QueriesUsed
	if remaining < 0 {
		remaining = 0
	}
	percentage := 0
	if total > 0 {
		percentage = row.QueriesUsed * 100 / total
	}

	c.JSON(http.StatusOK, usageSummaryResponse{
		OrgID:          orgID.String(),
		BillingPeriod:  period.Key,
		PlanType:       string(planID),
		QueriesUsed:    row.QueriesUsed,
		ExtraPurchased: row.ExtraQueriesPurchased,
		TotalLimit:     total,
		Remaining:      remaining,
		Percentage:     percentage,
		Unlimited:      unlimited,
	})
}
