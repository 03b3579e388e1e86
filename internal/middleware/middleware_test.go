package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/zafarze/gat-sub000/internal/models"
	appErrors "github.com/zafarze/gat-sub000/pkg/errors"
)

type stubValidator map[string]*models.JWTClaims

func (s stubValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	claims, ok := s[token]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return claims, nil
}

func newRouter(handlers ...gin.HandlerFunc) (*gin.Engine, *models.AccessScope) {
	gin.SetMode(gin.TestMode)
	var seen models.AccessScope
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) {
		seen = Scope(c)
		c.Status(http.StatusOK)
	})
	r.GET("/", handlers...)
	return r, &seen
}

func call(r *gin.Engine, auth string) int {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	r.ServeHTTP(w, req)
	return w.Code
}

func TestJWTSetsScope(t *testing.T) {
	tokens := stubValidator{
		"teacher": {UserID: "u1", Role: models.RoleTeacher, SchoolIDs: []string{"s1"}},
		"student": {UserID: "u2", Role: models.RoleStudent, SchoolIDs: []string{"s1"}, StudentID: "st1"},
		"admin":   {UserID: "u3", Role: models.RoleAdmin},
	}
	r, seen := newRouter(JWT(tokens))

	assert.Equal(t, http.StatusUnauthorized, call(r, ""))
	assert.Equal(t, http.StatusUnauthorized, call(r, "Token teacher"))
	assert.Equal(t, http.StatusUnauthorized, call(r, "Bearer nope"))

	assert.Equal(t, http.StatusOK, call(r, "Bearer teacher"))
	assert.Equal(t, models.AccessScope{SchoolIDs: []string{"s1"}}, *seen)

	assert.Equal(t, http.StatusOK, call(r, "bearer student"))
	assert.Equal(t, "st1", seen.StudentID)

	assert.Equal(t, http.StatusOK, call(r, "Bearer admin"))
	assert.True(t, seen.All)
}

func TestRequireRoles(t *testing.T) {
	tokens := stubValidator{
		"teacher": {Role: models.RoleTeacher},
		"student": {Role: models.RoleStudent},
		"admin":   {Role: models.RoleAdmin},
	}
	r, _ := newRouter(JWT(tokens), RequireRoles(Staff...))

	assert.Equal(t, http.StatusOK, call(r, "Bearer teacher"))
	assert.Equal(t, http.StatusOK, call(r, "Bearer admin"))
	assert.Equal(t, http.StatusForbidden, call(r, "Bearer student"))

	bare, _ := newRouter(RequireRoles())
	assert.Equal(t, http.StatusUnauthorized, call(bare, ""))
}

func TestScopeWithoutAuth(t *testing.T) {
	r, seen := newRouter()
	assert.Equal(t, http.StatusOK, call(r, ""))
	assert.True(t, seen.Empty())
}

type recordedRequest struct {
	method, path string
	status       int
}

type recorder struct{ seen []recordedRequest }

func (r *recorder) ObserveHTTPRequest(method, path string, status int, _ time.Duration) {
	r.seen = append(r.seen, recordedRequest{method, path, status})
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := &recorder{}
	r := gin.New()
	r.Use(Metrics(rec))
	r.GET("/tests/:id", func(c *gin.Context) { c.Status(http.StatusAccepted) })

	for _, path := range []string{"/tests/42", "/missing"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}
	assert.Equal(t, []recordedRequest{
		{http.MethodGet, "/tests/:id", http.StatusAccepted},
		{http.MethodGet, "unmatched", http.StatusNotFound},
	}, rec.seen)
}
