package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	checkoutdomain "github.com/rzbeall84/ask-rita/internal/checkout/domain"
	"github.com/rzbeall84/ask-rita/internal/plan"
)

type createCheckoutSessionRequest struct {
	PlanID string `json:"plan_id"`
	PackID string `json:"pack_id"`
}

// CreateCheckoutSession opens a hosted checkout page for a plan change or an
// overage pack purchase.
func (s *Server) CreateCheckoutSession(c *gin.Context) {
	orgID, ok := s.orgIDFromContext(c)
	if !ok {
		AbortWithError(c, invalidRequestError())
		return
	}

	var req createCheckoutSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	session, err := s.checkoutSvc.CreateCheckoutSession(c.Request.Context(), checkoutdomain.SessionRequest{
		OrgID:  orgID,
		PlanID: plan.ID(strings.TrimSpace(req.PlanID)),
		PackID: strings.TrimSpace(req.PackID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// CreatePortalSession opens the billing provider's self-service portal.
func (s *Server) CreatePortalSession(c *gin.Context) {
	orgID, ok := s.orgIDFromContext(c)
	if !ok {
		AbortWithError(c, invalidRequestError())
		return
	}

	session, err := s.checkoutSvc.CreatePortalSession(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}
