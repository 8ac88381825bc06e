package clinic

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/exchange-api/internal/model"
	"github.com/jwalitptl/exchange-api/internal/repository"
	"github.com/jwalitptl/exchange-api/internal/service/directory"
	"github.com/jwalitptl/exchange-api/pkg/errors"
	"github.com/jwalitptl/exchange-api/pkg/httputil"
)

// Handler manages clinic registrations. Updating a clinic drops its cached
// storage credential so the next retrieval picks up the new key.
type Handler struct {
	clinics   repository.ClinicRepository
	directory *directory.Service
}

func NewHandler(clinics repository.ClinicRepository, dir *directory.Service) *Handler {
	return &Handler{clinics: clinics, directory: dir}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/clinics", h.RegisterClinic)
	r.GET("/clinics", h.ListClinics)
	r.GET("/clinics/:id", h.GetClinic)
	r.PUT("/clinics/:id", h.UpdateClinic)
}

type clinicRequest struct {
	ClinicID string `json:"clinic_id" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Location string `json:"location"`
	Endpoint string `json:"endpoint"`
	APIKey   string `json:"api_key"`
}

func (h *Handler) RegisterClinic(c *gin.Context) {
	var req clinicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.Validation("invalid request body", err))
		return
	}

	clinic := &model.Clinic{
		ClinicID: req.ClinicID,
		Name:     req.Name,
		Location: req.Location,
		Status:   "active",
		Endpoint: req.Endpoint,
		APIKey:   req.APIKey,
	}
	if err := h.clinics.Create(c.Request.Context(), clinic); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, clinic)
}

func (h *Handler) ListClinics(c *gin.Context) {
	clinics, err := h.clinics.List(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, clinics)
}

func (h *Handler) GetClinic(c *gin.Context) {
	clinic, err := h.clinics.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, clinic)
}

func (h *Handler) UpdateClinic(c *gin.Context) {
	clinicID := c.Param("id")
	existing, err := h.clinics.Get(c.Request.Context(), clinicID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var req clinicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.Validation("invalid request body", err))
		return
	}

	existing.Name = req.Name
	existing.Location = req.Location
	existing.Endpoint = req.Endpoint
	if req.APIKey != "" {
		existing.APIKey = req.APIKey
	}

	if err := h.clinics.Update(c.Request.Context(), existing); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	h.directory.InvalidateAPIKey(clinicID)
	httputil.RespondWithSuccess(c, existing)
}
