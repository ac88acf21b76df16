package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/internal/model"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSigner() *util.TokenSigner {
	return util.NewTokenSigner(util.TokenSignerOptions{
		AccessSecret:  "middleware-access-secret",
		RefreshSecret: "middleware-refresh-secret",
		Issuer:        "cadd-attendance",
		Audience:      "cadd-attendance-users",
		AccessTTL:     time.Hour,
		RefreshTTL:    24 * time.Hour,
	})
}

// revokedSessions rejects the listed user ids.
type revokedSessions map[string]bool

func (r revokedSessions) ValidateSession(_ context.Context, claims *util.Claims) error {
	if r[claims.UserID] {
		return util.ErrAccountInactive
	}
	return nil
}

func newRouter(signer *util.TokenSigner) *gin.Engine {
	return newRouterWithSessions(signer, nil)
}

func newRouterWithSessions(signer *util.TokenSigner, sessions SessionValidator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	whoami := func(c *gin.Context) {
		if claims := util.GetUserFromContext(c); claims != nil {
			c.String(http.StatusOK, claims.UserID)
			return
		}
		c.String(http.StatusOK, "anonymous")
	}
	r.GET("/auth", AuthMiddleware(signer, sessions), whoami)
	r.GET("/try", TryAuthMiddleware(signer, sessions), whoami)
	r.GET("/admin", AuthMiddleware(signer, sessions), RoleMiddleware(model.Admin), whoami)
	return r
}

func get(r *gin.Engine, path string, setup func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if setup != nil {
		setup(req)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func bearer(token string) func(*http.Request) {
	return func(req *http.Request) { req.Header.Set("Authorization", "Bearer "+token) }
}

func TestAuthMiddleware(t *testing.T) {
	signer := testSigner()
	r := newRouter(signer)

	access, err := signer.Issue(util.AccessToken, "u1", model.Teacher, "fp")
	require.NoError(t, err)
	refresh, err := signer.Issue(util.RefreshToken, "u1", model.Teacher, "fp")
	require.NoError(t, err)

	w := get(r, "/auth", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Not authorized, no token")

	w = get(r, "/auth", bearer(access))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", w.Body.String())

	w = get(r, "/auth", func(req *http.Request) {
		req.AddCookie(&http.Cookie{Name: util.AccessCookie, Value: access})
	})
	assert.Equal(t, http.StatusOK, w.Code)

	w = get(r, "/auth", bearer(refresh))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Not authorized, token failed")
}

func TestTryAuthMiddleware(t *testing.T) {
	signer := testSigner()
	r := newRouter(signer)

	access, err := signer.Issue(util.AccessToken, "u1", model.Admin, "fp")
	require.NoError(t, err)

	assert.Equal(t, "anonymous", get(r, "/try", nil).Body.String())
	assert.Equal(t, "anonymous", get(r, "/try", bearer("garbage")).Body.String())
	assert.Equal(t, "u1", get(r, "/try", bearer(access)).Body.String())
}

func TestRoleMiddleware(t *testing.T) {
	signer := testSigner()
	r := newRouter(signer)

	teacher, err := signer.Issue(util.AccessToken, "t1", model.Teacher, "fp")
	require.NoError(t, err)
	admin, err := signer.Issue(util.AccessToken, "a1", model.Admin, "fp")
	require.NoError(t, err)

	w := get(r, "/admin", bearer(teacher))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "Not authorized for this action")

	w = get(r, "/admin", bearer(admin))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "a1", w.Body.String())
}

func TestMiddlewareRejectsRevokedSessions(t *testing.T) {
	signer := testSigner()
	r := newRouterWithSessions(signer, revokedSessions{"gone": true})

	revoked, err := signer.Issue(util.AccessToken, "gone", model.Admin, "fp")
	require.NoError(t, err)
	live, err := signer.Issue(util.AccessToken, "u1", model.Admin, "fp")
	require.NoError(t, err)

	w := get(r, "/auth", bearer(revoked))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Not authorized, token failed")
	assert.Equal(t, "anonymous", get(r, "/try", bearer(revoked)).Body.String())
	assert.Equal(t, http.StatusUnauthorized, get(r, "/admin", bearer(revoked)).Code)

	assert.Equal(t, "u1", get(r, "/auth", bearer(live)).Body.String())
}
