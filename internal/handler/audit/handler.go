package audit

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/exchange-api/internal/service/audit"
	"github.com/jwalitptl/exchange-api/pkg/httputil"
)

// Handler exposes the audit trail for compliance review.
type Handler struct {
	service *audit.Service
}

func NewHandler(service *audit.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/audit/events", h.ListEvents)
}

func (h *Handler) ListEvents(c *gin.Context) {
	filters := make(map[string]interface{})
	for _, key := range []string{"event_type", "actor_id", "actor_type", "resource_type", "resource_id", "outcome"} {
		if v := c.Query(key); v != "" {
			filters[key] = v
		}
	}

	events, err := h.service.List(c.Request.Context(), filters)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, events)
}
