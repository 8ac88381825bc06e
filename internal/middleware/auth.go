package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/exchange-api/pkg/auth"
	"github.com/jwalitptl/exchange-api/pkg/httputil"
)

const (
	ContextActorID   = "actorID"
	ContextActorType = "actorType"
	ContextClinicID  = "clinicID"
	ContextSpecialty = "specialty"

	ActorProfessional = "professional"
	ActorPatient      = "patient"
)

type AuthMiddleware struct {
	jwtService *auth.JWTService
}

func NewAuthMiddleware(jwtService *auth.JWTService) *AuthMiddleware {
	return &AuthMiddleware{jwtService: jwtService}
}

// Authenticate verifies the bearer token and sets the actor's identity in
// the request context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "missing authorization header")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortUnauthorized(c, "invalid authorization format")
			return
		}

		claims, err := m.jwtService.ValidateToken(parts[1])
		if err != nil {
			abortUnauthorized(c, "invalid token")
			return
		}

		c.Set(ContextActorID, claims.SubjectID)
		c.Set(ContextActorType, claims.ActorType)
		c.Set(ContextClinicID, claims.ClinicID)
		c.Set(ContextSpecialty, claims.Specialty)
		c.Next()
	}
}

// RequireActor restricts a route to one actor type. Patients respond to
// requests about their own records; professionals ask for access.
func (m *AuthMiddleware) RequireActor(actorType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ContextActorType) != actorType {
			c.AbortWithStatusJSON(http.StatusForbidden, httputil.Response{
				Success: false,
				Error: &httputil.Error{
					Code:    http.StatusForbidden,
					Message: "operation not permitted for this actor",
				},
			})
			return
		}
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, httputil.Response{
		Success: false,
		Error: &httputil.Error{
			Code:    http.StatusUnauthorized,
			Message: message,
		},
	})
}
