package access

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/exchange-api/internal/middleware"
	"github.com/jwalitptl/exchange-api/internal/model"
	"github.com/jwalitptl/exchange-api/internal/service/accessrequest"
	"github.com/jwalitptl/exchange-api/internal/service/policy"
	"github.com/jwalitptl/exchange-api/pkg/errors"
	"github.com/jwalitptl/exchange-api/pkg/httputil"
)

// Handler exposes the access decision endpoint. A PENDING outcome
// automatically opens (or re-returns) an approval request so the patient
// sees exactly one pending ask per professional and scope.
type Handler struct {
	engine   *policy.Engine
	requests *accessrequest.Service
}

func NewHandler(engine *policy.Engine, requests *accessrequest.Service) *Handler {
	return &Handler{engine: engine, requests: requests}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/access/evaluate", h.Evaluate)
}

type evaluateRequest struct {
	PatientID  string  `json:"patient_id" binding:"required"`
	DocumentID *string `json:"document_id"`
	Reason     string  `json:"reason"`
}

func (h *Handler) Evaluate(c *gin.Context) {
	var req evaluateRequest
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

	evalReq := &policy.EvaluateRequest{
		ProfessionalID: c.GetString(middleware.ContextActorID),
		PatientID:      req.PatientID,
		ClinicID:       c.GetString(middleware.ContextClinicID),
		Specialty:      model.Specialty(c.GetString(middleware.ContextSpecialty)),
		DocumentID:     documentID,
		Reason:         req.Reason,
	}

	decision, err := h.engine.Evaluate(c.Request.Context(), evalReq)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	if decision.Outcome == model.DecisionPending {
		ar, err := h.requests.Create(c.Request.Context(),
			evalReq.ProfessionalID, evalReq.PatientID, documentID, req.Reason)
		if err != nil {
			httputil.RespondWithError(c, err)
			return
		}
		decision.AccessRequestID = &ar.ID
	}

	httputil.RespondWithSuccess(c, decision)
}
