package request

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/exchange-api/internal/middleware"
	"github.com/jwalitptl/exchange-api/internal/model"
	"github.com/jwalitptl/exchange-api/internal/service/accessrequest"
	"github.com/jwalitptl/exchange-api/pkg/errors"
	"github.com/jwalitptl/exchange-api/pkg/httputil"
)

// Handler lets patients see and answer the access requests addressed to
// them. Responses are terminal; an expired request can no longer be
// answered.
type Handler struct {
	service *accessrequest.Service
}

func NewHandler(service *accessrequest.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/requests", h.ListRequests)
	r.GET("/requests/:id", h.GetRequest)
	r.POST("/requests/:id/approve", h.ApproveRequest)
	r.POST("/requests/:id/deny", h.DenyRequest)
}

func (h *Handler) ListRequests(c *gin.Context) {
	patientID := c.GetString(middleware.ContextActorID)

	requests, err := h.service.ListByPatient(c.Request.Context(), patientID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, requests)
}

func (h *Handler) GetRequest(c *gin.Context) {
	req, err := h.ownRequest(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, req)
}

type respondRequest struct {
	Comment string `json:"comment"`
}

func (h *Handler) ApproveRequest(c *gin.Context) {
	req, err := h.ownRequest(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var body respondRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			httputil.RespondWithError(c, errors.Validation("invalid request body", err))
			return
		}
	}

	approved, err := h.service.Approve(c.Request.Context(), req.ID, body.Comment)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, approved)
}

func (h *Handler) DenyRequest(c *gin.Context) {
	req, err := h.ownRequest(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var body respondRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			httputil.RespondWithError(c, errors.Validation("invalid request body", err))
			return
		}
	}

	denied, err := h.service.Deny(c.Request.Context(), req.ID, body.Comment)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, denied)
}

// ownRequest loads the addressed request and hides requests that belong to
// another patient behind NotFound.
func (h *Handler) ownRequest(c *gin.Context) (req *model.AccessRequest, err error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, errors.Validation("invalid request id", err)
	}

	req, err = h.service.Get(c.Request.Context(), id)
	if err != nil {
		return nil, err
	}
	if req.PatientID != c.GetString(middleware.ContextActorID) {
		return nil, errors.NotFound("access request", nil)
	}
	return req, nil
}
