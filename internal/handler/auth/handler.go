package auth

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/exchange-api/internal/middleware"
	"github.com/jwalitptl/exchange-api/internal/service/directory"
	"github.com/jwalitptl/exchange-api/pkg/auth"
	"github.com/jwalitptl/exchange-api/pkg/errors"
	"github.com/jwalitptl/exchange-api/pkg/httputil"
)

// Handler issues exchange tokens. Professionals are verified against the
// national identity registry before a token is minted; their clinic and
// specialty come from the registry record, never from the request.
type Handler struct {
	jwtService *auth.JWTService
	directory  *directory.Service
}

func NewHandler(jwtService *auth.JWTService, dir *directory.Service) *Handler {
	return &Handler{jwtService: jwtService, directory: dir}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/auth/professional/token", h.ProfessionalToken)
}

type tokenRequest struct {
	ProfessionalID string `json:"professional_id" binding:"required"`
}

func (h *Handler) ProfessionalToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.Validation("invalid request body", err))
		return
	}

	prof, err := h.directory.VerifyProfessional(c.Request.Context(), req.ProfessionalID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	token, err := h.jwtService.GenerateToken(prof.ID, middleware.ActorProfessional, prof.ClinicID, prof.Specialty)
	if err != nil {
		httputil.RespondWithError(c, errors.Internal("failed to issue token", err))
		return
	}

	httputil.RespondWithSuccess(c, gin.H{
		"token":     token,
		"clinic_id": prof.ClinicID,
		"specialty": prof.Specialty,
	})
}
