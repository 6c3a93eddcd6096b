package middleware

import (
	"strings"

	"reelhub/internal/core/domain"
	"reelhub/internal/core/services"
	"reelhub/pkg/errors"
	"reelhub/pkg/logger"

	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

// AuthMiddleware resolves the bearer token into a domain.Identity. Requests
// without a valid token are rejected before any handler runs.
func AuthMiddleware(authService services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			_ = c.Error(errors.NewUnauthorizedError("authorization header required"))
			c.Abort()
			return
		}

		id, err := authService.IdentityFromToken(token)
		if err != nil {
			_ = c.Error(errors.NewUnauthorizedError(err.Error()).WithCause(err))
			c.Abort()
			return
		}

		c.Set(identityKey, id)
		c.Request = c.Request.WithContext(logger.WithUserID(c.Request.Context(), string(id.UserID)))
		c.Next()
	}
}

// IdentityFrom returns the identity stored by AuthMiddleware, or the zero
// identity when the request was not authenticated.
func IdentityFrom(c *gin.Context) domain.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return domain.Identity{}
	}
	id, _ := v.(domain.Identity)
	return id
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
