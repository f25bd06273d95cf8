package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rzbeall84/ask-rita/pkg/db/pagination"
)

// ListBillingEvents pages through the organization's billing event audit
// log, newest first.
func (s *Server) ListBillingEvents(c *gin.Context) {
	orgID, ok := s.orgIDFromContext(c)
	if !ok {
		AbortWithError(c, invalidRequestError())
		return
	}

	var p pagination.Pagination
	if err := c.ShouldBindQuery(&p); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	page, err := s.billingEventSvc.ListLog(c.Request.Context(), orgID, p)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      page.Events,
		"page_info": page.PageInfo,
	})
}
