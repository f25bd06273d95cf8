package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	gatedomain "github.com/rzbeall84/ask-rita/internal/gate/domain"
	organizationdomain "github.com/rzbeall84/ask-rita/internal/organization/domain"
)

type createOrganizationRequest struct {
	Name        string `json:"name"`
	OwnerUserID string `json:"owner_user_id"`
}

func (s *Server) CreateOrganization(c *gin.Context) {
	var req createOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	org, err := s.organizationSvc.Create(c.Request.Context(), organizationdomain.CreateOrganizationRequest{
		Name:        strings.TrimSpace(req.Name),
		OwnerUserID: strings.TrimSpace(req.OwnerUserID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, org)
}

type createInviteRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// CreateOrganizationInvite adds a pending invite. The seat gate runs first:
// pending invites occupy seats, so an org at its seat cap cannot stack
// invites past the plan limit.
func (s *Server) CreateOrganizationInvite(c *gin.Context) {
	orgID, ok := s.orgIDFromContext(c)
	if !ok {
		AbortWithError(c, invalidRequestError())
		return
	}

	var req createInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	role := s.callerRole(c, orgID)
	decision := s.gateSvc.CheckAndConsume(c.Request.Context(), orgID, role, gatedomain.LimitUsers)
	if !decision.Allowed {
		c.JSON(http.StatusForbidden, gin.H{"error": gin.H{
			"type":    "seat_limit",
			"message": decision.Message,
		}, "gate": decision})
		return
	}

	invitedBy := snowflake.ID(0)
	if raw, ok := c.Get(contextUserIDKey); ok {
		if value, ok := raw.(string); ok {
			if parsed, err := snowflake.ParseString(strings.TrimSpace(value)); err == nil {
				invitedBy = parsed
			}
		}
	}

	invite, err := s.organizationSvc.CreateInvite(c.Request.Context(), organizationdomain.CreateInviteRequest{
		OrgID:     orgID,
		Email:     strings.TrimSpace(req.Email),
		Role:      strings.TrimSpace(req.Role),
		InvitedBy: invitedBy,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, invite)
}
