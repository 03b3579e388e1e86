package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/zafarze/gat-sub000/internal/models"
	appErrors "github.com/zafarze/gat-sub000/pkg/errors"
	"github.com/zafarze/gat-sub000/pkg/response"
)

const (
	// ContextUserKey is the gin context key storing JWT claims.
	ContextUserKey = "currentUser"
	// ContextScopeKey stores the models.AccessScope derived from the claims.
	ContextScopeKey = "accessScope"
)

// TokenValidator verifies bearer tokens.
type TokenValidator interface {
	ValidateToken(token string) (*models.JWTClaims, error)
}

// JWT protects routes by requiring a valid access token. It stores the claims and the
// caller's access scope on the context.
func JWT(auth TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			return
		}

		claims, err := auth.ValidateToken(strings.TrimSpace(parts[1]))
		if err != nil {
			response.Error(c, err)
			return
		}

		c.Set(ContextUserKey, claims)
		c.Set(ContextScopeKey, models.ScopeForClaims(claims))
		c.Next()
	}
}

// Scope returns the access scope of the request; an unauthenticated request sees nothing.
func Scope(c *gin.Context) models.AccessScope {
	if v, ok := c.Get(ContextScopeKey); ok {
		if scope, ok := v.(models.AccessScope); ok {
			return scope
		}
	}
	return models.AccessScope{}
}

// Claims returns the JWT claims of the request or nil.
func Claims(c *gin.Context) *models.JWTClaims {
	v, ok := c.Get(ContextUserKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*models.JWTClaims)
	return claims
}
