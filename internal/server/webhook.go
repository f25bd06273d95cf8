package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	billingeventdomain "github.com/rzbeall84/ask-rita/internal/billingevent/domain"
)

// HandleBillingWebhook receives provider event deliveries. The response is
// 200 whenever the delivery was received, including malformed or failed
// events: the ingestor records the outcome in the audit log and the provider
// must not keep retrying what we already saw. Only rate limiting answers
// non-200.
func (s *Server) HandleBillingWebhook(c *gin.Context) {
	var ev billingeventdomain.Event
	if err := c.ShouldBindJSON(&ev); err != nil {
		s.log.Warn("webhook payload did not parse", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	// Concurrent deliveries of the same provider event serialize on a short
	// redis lock. The loser backs off and lets the provider redeliver.
	eventID := strings.TrimSpace(ev.ProviderEventID)
	token, acquired, err := s.limiter.LockEvent(c.Request.Context(), eventID)
	if err == nil && !acquired {
		c.JSON(http.StatusOK, gin.H{"received": true, "status": "in_flight"})
		return
	}
	if token != "" {
		defer s.limiter.ReleaseEvent(c.Request.Context(), eventID, token)
	}

	if err := s.billingEventSvc.Ingest(c.Request.Context(), ev); err != nil {
		s.log.Warn("billing event not applied",
			zap.String("provider_event_id", eventID),
			zap.String("event_type", string(ev.Type)),
			zap.Error(err),
		)
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
