package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	subscriptiondomain "github.com/rzbeall84/ask-rita/internal/subscription/domain"
)

type subscriptionResponse struct {
	Subscription *subscriptiondomain.Subscription  `json:"subscription"`
	Access       subscriptiondomain.AccessDecision `json:"access"`
	Limits       subscriptionLimits                `json:"limits"`
}

type subscriptionLimits struct {
	PlanType   string `json:"plan_type"`
	SeatLimit  int    `json:"seat_limit"`
	QueryLimit int    `json:"query_limit"`
}

// GetSubscription returns the organization's subscription together with the
// access decision an owner would get right now.
func (s *Server) GetSubscription(c *gin.Context) {
	orgID, ok := s.orgIDFromContext(c)
	if !ok {
		AbortWithError(c, invalidRequestError())
		return
	}

	sub, err := s.subscriptionSvc.GetByOrgID(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if sub == nil {
		AbortWithError(c, subscriptiondomain.ErrSubscriptionNotFound)
		return
	}

	limits := s.catalog.LimitsFor(sub.PlanID)
	c.JSON(http.StatusOK, subscriptionResponse{
		Subscription: sub,
		Access:       subscriptiondomain.Evaluate(sub, subscriptiondomain.RoleOwner, s.clock.Now()),
		Limits: subscriptionLimits{
			PlanType:   string(limits.Plan),
			SeatLimit:  limits.SeatLimit,
			QueryLimit: limits.QueryLimit,
		},
	})
}
