package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "admin-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func newAdminRouter(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin", AuthMiddleware(secret), RequireRole("admin"), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("subject"))
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	exp := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name     string
		secret   string
		header   string
		wantCode int
	}{
		{name: "admin", secret: testSecret, header: "Bearer " + signToken(t, testSecret, jwt.MapClaims{"sub": "ops", "role": "admin", "exp": exp}), wantCode: http.StatusOK},
		{name: "no header", secret: testSecret, header: "", wantCode: http.StatusUnauthorized},
		{name: "no bearer prefix", secret: testSecret, header: signToken(t, testSecret, jwt.MapClaims{"role": "admin", "exp": exp}), wantCode: http.StatusUnauthorized},
		{name: "wrong secret", secret: testSecret, header: "Bearer " + signToken(t, "other", jwt.MapClaims{"role": "admin", "exp": exp}), wantCode: http.StatusUnauthorized},
		{name: "expired", secret: testSecret, header: "Bearer " + signToken(t, testSecret, jwt.MapClaims{"role": "admin", "exp": time.Now().Add(-time.Hour).Unix()}), wantCode: http.StatusUnauthorized},
		{name: "no role", secret: testSecret, header: "Bearer " + signToken(t, testSecret, jwt.MapClaims{"sub": "ops", "exp": exp}), wantCode: http.StatusUnauthorized},
		{name: "wrong role", secret: testSecret, header: "Bearer " + signToken(t, testSecret, jwt.MapClaims{"role": "viewer", "exp": exp}), wantCode: http.StatusForbidden},
		{name: "secret unset", secret: "", header: "Bearer x", wantCode: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			newAdminRouter(tt.secret).ServeHTTP(w, req)
			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}

func TestAuthMiddleware_ExposesSubject(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, jwt.MapClaims{"sub": "ops", "role": "admin"}))
	w := httptest.NewRecorder()

	newAdminRouter(testSecret).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ops", w.Body.String())
}
