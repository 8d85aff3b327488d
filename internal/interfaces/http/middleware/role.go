package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wms/stocktaking/internal/interfaces/http/dto"
)

// RequireAnyRole lets the request through when the token carries at least one
// of roles. It must run after the JWT middleware.
func RequireAnyRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetJWTClaims(c)
		if claims == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				dto.NewErrorResponseWithRequestID(dto.ErrCodeUnauthorized, "Authentication required", GetRequestID(c)))
			return
		}
		for _, role := range roles {
			if claims.HasRole(role) {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden,
			dto.NewErrorResponseWithRequestID(dto.ErrCodeForbidden, "Stocktaking role required", GetRequestID(c)))
	}
}
