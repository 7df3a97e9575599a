package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staffattendance/internal/users"
)

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	g := r.Group("/", Authenticate(testKey, testIssuer))
	g.GET("/me", func(c *gin.Context) {
		p, _ := CurrentPrincipal(c)
		c.JSON(http.StatusOK, p)
	})
	g.GET("/admin", RequireRole(users.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	g.GET("/reports", RequireRole(users.RoleAdmin, users.RolePrincipal), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func bearer(t *testing.T, role string) string {
	t.Helper()
	pair, err := Issue("u-1", role, "Siti", testIssuer, testKey, time.Minute, time.Hour)
	require.NoError(t, err)
	return "Bearer " + pair.AccessToken
}

func serve(r http.Handler, path, authz string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthenticate(t *testing.T) {
	r := newRouter()

	w := serve(r, "/me", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"kind":"unauthorized"`)

	w = serve(r, "/me", "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	pair, err := Issue("u-1", "teacher", "Siti", testIssuer, testKey, time.Minute, time.Hour)
	require.NoError(t, err)
	w = serve(r, "/me", "Bearer "+pair.RefreshToken)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(r, "/me", bearer(t, "teacher"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":"u-1","role":"teacher","name":"Siti"}`, w.Body.String())
}

func TestRequireRole(t *testing.T) {
	r := newRouter()
	tests := []struct {
		path string
		role string
		want int
	}{
		{"/admin", "admin", http.StatusNoContent},
		{"/admin", "teacher", http.StatusForbidden},
		{"/admin", "principal", http.StatusForbidden},
		{"/reports", "principal", http.StatusNoContent},
		{"/reports", "admin", http.StatusNoContent},
		{"/reports", "teacher", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.path+"/"+tt.role, func(t *testing.T) {
			w := serve(r, tt.path, bearer(t, tt.role))
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
