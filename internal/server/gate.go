package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	gatedomain "github.com/rzbeall84/ask-rita/internal/gate/domain"
	organizationdomain "github.com/rzbeall84/ask-rita/internal/organization/domain"
	subscriptiondomain "github.com/rzbeall84/ask-rita/internal/subscription/domain"
)

type checkGateRequest struct {
	LimitType string `json:"limit_type"`
}

// CheckGate answers one access question and, for query checks that pass,
// charges one unit. Denials are HTTP 200 with allowed=false: the caller
// always gets a decision document, never an error page.
func (s *Server) CheckGate(c *gin.Context) {
	orgID, ok := s.orgIDFromContext(c)
	if !ok {
		AbortWithError(c, invalidRequestError())
		return
	}

	var req checkGateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	role := s.callerRole(c, orgID)
	limitType := gatedomain.LimitType(strings.TrimSpace(req.LimitType))

	result := s.gateSvc.CheckAndConsume(c.Request.Context(), orgID, role, limitType)
	c.JSON(http.StatusOK, result)
}

// callerRole resolves the caller's role in the organization from the
// X-User-ID header. Without a user header, or with a user who is not a
// member, the call is treated as the billing-responsible owner so that
// anonymous traffic is always gated.
func (s *Server) callerRole(c *gin.Context, orgID snowflake.ID) string {
	raw, ok := c.Get(contextUserIDKey)
	if !ok {
		return subscriptiondomain.RoleOwner
	}
	value, ok := raw.(string)
	if !ok {
		return subscriptiondomain.RoleOwner
	}
	userID, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil {
		return subscriptiondomain.RoleOwner
	}

	role, err := s.organizationSvc.MemberRole(c.Request.Context(), orgID, userID)
	if err != nil {
		if !errors.Is(err, organizationdomain.ErrMemberNotFound) {
			s.log.Warn("member role lookup failed")
		}
		return subscriptiondomain.RoleOwner
	}
	return role
}
