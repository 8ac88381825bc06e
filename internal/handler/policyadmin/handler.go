package policyadmin

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/exchange-api/internal/middleware"
	"github.com/jwalitptl/exchange-api/internal/model"
	"github.com/jwalitptl/exchange-api/internal/service/policy"
	"github.com/jwalitptl/exchange-api/pkg/errors"
	"github.com/jwalitptl/exchange-api/pkg/httputil"
)

// Handler manages patient-authored consent policies. The authenticated
// patient is always the policy owner; ownership cannot be asserted in the
// request body.
type Handler struct {
	service *policy.Service
}

func NewHandler(service *policy.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/policies", h.CreatePolicy)
	r.GET("/policies", h.ListPolicies)
	r.POST("/policies/:id/revoke", h.RevokePolicy)
	r.PATCH("/policies/:id/validity", h.UpdateValidity)
}

type createPolicyRequest struct {
	ClinicID   string     `json:"clinic_id" binding:"required"`
	Specialty  string     `json:"specialty" binding:"required,specialty"`
	DocumentID *string    `json:"document_id"`
	Status     string     `json:"status"`
	ValidFrom  *time.Time `json:"valid_from"`
	ValidUntil *time.Time `json:"valid_until"`
	Priority   int        `json:"priority"`
}

func (h *Handler) CreatePolicy(c *gin.Context) {
	var req createPolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.Validation("invalid request body", err))
		return
	}

	var documentID *uuid.UUID
	if req.DocumentID != nil && *req.DocumentID != "" {
		id, err := uuid.Parse(*req.DocumentID)
		if err != nil {
			httputil.RespondWithError(c, errors.Validation("invalid document id", err))
			return
		}
		documentID = &id
	}

	p := &model.Policy{
		PatientID:  c.GetString(middleware.ContextActorID),
		ClinicID:   req.ClinicID,
		Specialty:  model.Specialty(req.Specialty),
		DocumentID: documentID,
		Status:     model.PolicyStatus(req.Status),
		ValidFrom:  req.ValidFrom,
		ValidUntil: req.ValidUntil,
		Priority:   req.Priority,
	}

	if err := h.service.CreatePolicy(c.Request.Context(), p); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, p)
}

func (h *Handler) ListPolicies(c *gin.Context) {
	policies, err := h.service.ListByPatient(c.Request.Context(), c.GetString(middleware.ContextActorID))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, policies)
}

func (h *Handler) RevokePolicy(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.Validation("invalid policy id", err))
		return
	}

	if err := h.service.RevokePolicy(c.Request.Context(), id, c.GetString(middleware.ContextActorID)); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"status": string(model.PolicyStatusRevoked)})
}

type updateValidityRequest struct {
	ValidFrom  *time.Time `json:"valid_from"`
	ValidUntil *time.Time `json:"valid_until"`
}

func (h *Handler) UpdateValidity(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.Validation("invalid policy id", err))
		return
	}

	var req updateValidityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.Validation("invalid request body", err))
		return
	}

	if err := h.service.UpdateValidity(c.Request.Context(), id,
		c.GetString(middleware.ContextActorID), req.ValidFrom, req.ValidUntil); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"id": id})
}
