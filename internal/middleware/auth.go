package middleware

import (
	"errors"
	"net/http"
	"strings"

	"pdfqa/internal/catalog"
	"pdfqa/internal/models"
	"pdfqa/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Context keys set by AuthMiddleware.
const (
	UsernameKey = "username"
	RoleKey     = "role"
	ClaimsKey   = "claims"
)

// TokenVerifier checks an access token.
type TokenVerifier interface {
	VerifyToken(token string) (*models.Claims, error)
}

// AuthMiddleware creates a Gin middleware for JWT authentication.
func AuthMiddleware(verifier TokenVerifier, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abort(c, logger, http.StatusUnauthorized, catalog.AuthRequired, nil)
			return
		}

		claims, err := verifier.VerifyToken(tokenString)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrTokenExpired):
				abort(c, logger, http.StatusUnauthorized, catalog.TokenExpired, err)
			case errors.Is(err, service.ErrTokenMissing):
				abort(c, logger, http.StatusUnauthorized, catalog.AuthRequired, err)
			default:
				abort(c, logger, http.StatusUnauthorized, catalog.InvalidToken, err)
			}
			return
		}

		logger.Debug("User authenticated", zap.String("username", claims.Subject))

		// Set user claims in context
		c.Set(UsernameKey, claims.Subject)
		c.Set(RoleKey, claims.Role)
		c.Set(ClaimsKey, claims)

		c.Next()
	}
}

// RequireRole rejects requests whose role claim differs from role. It must
// run after AuthMiddleware.
func RequireRole(role string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(RoleKey) != role {
			abort(c, logger, http.StatusForbidden, catalog.AuthRequired, nil)
			return
		}
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

func abort(c *gin.Context, logger *zap.Logger, status int, key catalog.Key, cause error) {
	e := catalog.Report(logger, key, cause)
	c.AbortWithStatusJSON(status, e.Body())
}
