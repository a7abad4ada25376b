package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-portal/internal/gate"
	"github.com/stemsi/exstem-portal/internal/identity"
	"github.com/stemsi/exstem-portal/internal/model"
	"github.com/stemsi/exstem-portal/internal/response"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newGatedEngine(t *testing.T) (*gin.Engine, *identity.Context) {
	t.Helper()
	idc := identity.NewContext(identity.NewMemoryStore())
	k := NewGatekeeper(gate.New(nil), idc, zerolog.Nop())

	r := gin.New()
	ok := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": GetIdentity(c).UserID})
	}
	r.GET("/student", k.RequireStudent(), ok)
	r.GET("/admin/:resource", k.RequireAdmin(), k.RequireResourcePermission(), ok)
	r.POST("/admin/:resource", k.RequireAdmin(), k.RequireResourcePermission(), ok)
	return r, idc
}

func establish(t *testing.T, idc *identity.Context, id model.Identity) {
	t.Helper()
	require.NoError(t, idc.Establish(context.Background(), id))
}

func serve(r http.Handler, method, path string) (*httptest.ResponseRecorder, response.Response) {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	var body response.Response
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func tokenExpiring(t *testing.T, at time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "s-1",
		"exp": at.Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

func TestGateRedirectsAnonymousToLogin(t *testing.T) {
	r, _ := newGatedEngine(t)

	w, body := serve(r, http.MethodGet, "/student")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, gate.LoginPath, w.Header().Get("X-Redirect-To"))
	require.NotNil(t, body.Error)
	require.Equal(t, response.ErrTokenRequired, body.Error.Code)
	require.Equal(t, gate.LoginPath, body.Error.Redirect)
}

func TestGateExpiredTokenIsSessionExpired(t *testing.T) {
	r, idc := newGatedEngine(t)
	establish(t, idc, model.Identity{
		User: "Asha", UserID: "s-1", UserType: model.UserTypeStudent,
		Token: tokenExpiring(t, time.Now().Add(-time.Hour)),
	})

	w, body := serve(r, http.MethodGet, "/student")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, response.ErrSessionExpired, body.Error.Code)
}

func TestGateSendsOtherUserTypeHome(t *testing.T) {
	r, idc := newGatedEngine(t)
	establish(t, idc, model.Identity{User: "Root", UserID: "a-1", UserType: model.UserTypeAdmin, Roles: []string{"super_admin"}})

	w, body := serve(r, http.MethodGet, "/student")
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, response.ErrStudentAccessOnly, body.Error.Code)
	require.Equal(t, "/admin/dashboard", body.Error.Redirect)
}

func TestGateRendersAndStoresIdentity(t *testing.T) {
	r, idc := newGatedEngine(t)
	establish(t, idc, model.Identity{
		User: "Asha", UserID: "s-1", UserType: model.UserTypeStudent,
		Token: tokenExpiring(t, time.Now().Add(time.Hour)),
	})

	w, _ := serve(r, http.MethodGet, "/student")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"user_id":"s-1"}`, w.Body.String())
}

func TestResourcePermissionByMethod(t *testing.T) {
	r, idc := newGatedEngine(t)
	establish(t, idc, model.Identity{User: "Vee", UserID: "a-2", UserType: model.UserTypeAdmin, Roles: []string{"viewer"}})

	w, _ := serve(r, http.MethodGet, "/admin/users")
	require.Equal(t, http.StatusOK, w.Code)

	w, body := serve(r, http.MethodPost, "/admin/users")
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, response.ErrPermissionDenied, body.Error.Code)
	require.Equal(t, gate.UnauthorizedPath, body.Error.Redirect)

	w, body = serve(r, http.MethodGet, "/admin/payments")
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, response.ErrNotFound, body.Error.Code)
}

func TestRateLimiterPerIP(t *testing.T) {
	rl := NewRateLimiter(2)
	now := time.Unix(1_700_000_000, 0)
	rl.now = func() time.Time { return now }

	r := gin.New()
	r.POST("/login", rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	post := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	require.Equal(t, http.StatusOK, post("10.0.0.1"))
	require.Equal(t, http.StatusOK, post("10.0.0.1"))
	require.Equal(t, http.StatusTooManyRequests, post("10.0.0.1"))
	require.Equal(t, http.StatusOK, post("10.0.0.2"))

	now = now.Add(30 * time.Second)
	require.Equal(t, http.StatusOK, post("10.0.0.1"))

	now = now.Add(5 * time.Minute)
	rl.cleanup()
	rl.mu.Lock()
	require.Empty(t, rl.visitors)
	rl.mu.Unlock()
}
