package document

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/exchange-api/internal/middleware"
	"github.com/jwalitptl/exchange-api/internal/model"
	"github.com/jwalitptl/exchange-api/internal/repository"
	"github.com/jwalitptl/exchange-api/internal/service/policy"
	"github.com/jwalitptl/exchange-api/internal/service/retrieval"
	"github.com/jwalitptl/exchange-api/pkg/errors"
	"github.com/jwalitptl/exchange-api/pkg/httputil"
)

// Handler covers the document registry and the content path. Content is
// only released after a fresh PERMIT decision for the requesting
// professional.
type Handler struct {
	documents repository.DocumentRepository
	engine    *policy.Engine
	retriever *retrieval.Service
}

func NewHandler(documents repository.DocumentRepository, engine *policy.Engine, retriever *retrieval.Service) *Handler {
	return &Handler{
		documents: documents,
		engine:    engine,
		retriever: retriever,
	}
}

func (h *Handler) RegisterProfessionalRoutes(r *gin.RouterGroup) {
	r.POST("/documents", h.RegisterDocument)
	r.GET("/documents/:id/content", h.GetContent)
}

func (h *Handler) RegisterPatientRoutes(r *gin.RouterGroup) {
	r.GET("/documents", h.ListOwnDocuments)
}

type registerDocumentRequest struct {
	PatientID   string `json:"patient_id" binding:"required"`
	Title       string `json:"title" binding:"required"`
	ContentType string `json:"content_type"`
	Locator     string `json:"locator" binding:"required"`
	SHA256      string `json:"sha256"`
	SizeBytes   int64  `json:"size_bytes"`
}

// RegisterDocument records a document held on the caller's clinic storage
// node. The bytes never pass through the hub at registration time.
func (h *Handler) RegisterDocument(c *gin.Context) {
	var req registerDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.Validation("invalid request body", err))
		return
	}

	doc := &model.Document{
		PatientID:   req.PatientID,
		ClinicID:    c.GetString(middleware.ContextClinicID),
		Title:       req.Title,
		ContentType: req.ContentType,
		Locator:     req.Locator,
		SHA256:      req.SHA256,
		SizeBytes:   req.SizeBytes,
	}
	if doc.ClinicID == "" {
		httputil.RespondWithError(c, errors.Validation("caller has no clinic affiliation", nil))
		return
	}

	if err := h.documents.Create(c.Request.Context(), doc); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, doc)
}

// GetContent evaluates the caller's access and, on PERMIT, fetches and
// returns the verified document bytes. Any other outcome withholds the
// content and returns the decision instead.
func (h *Handler) GetContent(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.Validation("invalid document id", err))
		return
	}

	doc, err := h.documents.Get(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	decision, err := h.engine.Evaluate(c.Request.Context(), &policy.EvaluateRequest{
		ProfessionalID: c.GetString(middleware.ContextActorID),
		PatientID:      doc.PatientID,
		ClinicID:       c.GetString(middleware.ContextClinicID),
		Specialty:      model.Specialty(c.GetString(middleware.ContextSpecialty)),
		DocumentID:     &id,
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if !decision.Permitted() {
		c.JSON(http.StatusForbidden, httputil.Response{
			Success: false,
			Data:    decision,
			Error: &httputil.Error{
				Code:    http.StatusForbidden,
				Message: decision.Reason,
			},
		})
		return
	}

	body, doc, err := h.retriever.FetchDocument(c.Request.Context(), c.GetString(middleware.ContextActorID), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	contentType := doc.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Data(http.StatusOK, contentType, body)
}

func (h *Handler) ListOwnDocuments(c *gin.Context) {
	docs, err := h.documents.ListByPatient(c.Request.Context(), c.GetString(middleware.ContextActorID))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, docs)
}
