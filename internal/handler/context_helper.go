package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zafarze/gat-sub000/internal/middleware"
	"github.com/zafarze/gat-sub000/internal/models"
	appErrors "github.com/zafarze/gat-sub000/pkg/errors"
	"github.com/zafarze/gat-sub000/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.Claims(c)
}

// scopeFromContext returns the caller's scope, aborting with 401 when the request carries none.
func scopeFromContext(c *gin.Context) (models.AccessScope, bool) {
	if claimsFromContext(c) == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.AccessScope{}, false
	}
	return middleware.Scope(c), true
}

func bindError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}

func timingMeta(start time.Time) map[string]interface{} {
	return map[string]interface{}{"processing_time_ms": time.Since(start).Milliseconds()}
}
