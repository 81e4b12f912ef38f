package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medflow-web/internal/apiclient"
	"medflow-web/internal/apiclient/apitest"
	"medflow-web/internal/config"
	"medflow-web/internal/logger"
	"medflow-web/internal/models"
	"medflow-web/internal/session"
)

func testConfig() *config.Config {
	return &config.Config{
		Environment: "development",
		Session:     config.SessionConfig{CookieName: "medflow_auth", Store: config.SessionStoreMemory},
	}
}

func setupRouter(t *testing.T) (*gin.Engine, *session.Manager, *apitest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	srv := apitest.NewServer(t)
	api := apiclient.New(srv.URL, 5*time.Second, logger.Nop())
	sessions := session.NewManager(session.NewMemoryStore(), api, logger.Nop())
	cfg := testConfig()

	r := gin.New()
	r.Use(RequestID(), Recovery(logger.Nop()), SessionMiddleware(sessions, cfg))
	ok := func(c *gin.Context) { c.String(http.StatusOK, "ok") }
	r.GET("/nurse", RouteGuard(models.RoleNurse), ok)
	r.GET("/doctor", RouteGuard(models.RoleDoctor), ok)
	r.GET("/admin", RouteGuard(), ok)
	r.GET("/panic", func(*gin.Context) { panic("boom") })
	return r, sessions, srv
}

func login(t *testing.T, sessions *session.Manager, srv *apitest.Server, role models.Role) *session.Context {
	t.Helper()
	srv.AddUser(string(role), "pw", role)
	sc, err := sessions.Login(context.Background(), models.Credentials{Username: string(role), Password: "pw"})
	require.NoError(t, err)
	return sc
}

func get(r *gin.Engine, path, sessionID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if sessionID != "" {
		req.AddCookie(&http.Cookie{Name: "medflow_auth", Value: sessionID})
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouteGuard_Unauthenticated(t *testing.T) {
	r, _, _ := setupRouter(t)

	w := get(r, "/nurse", "")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login?from=%2Fnurse", w.Header().Get("Location"))
}

func TestRouteGuard_RoleMismatch(t *testing.T) {
	r, sessions, srv := setupRouter(t)
	sc := login(t, sessions, srv, models.RoleNurse)

	w := get(r, "/nurse", sc.ID)
	assert.Equal(t, http.StatusOK, w.Code)

	w = get(r, "/doctor", sc.ID)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
}

func TestRouteGuard_AdminOpenToAnyRole(t *testing.T) {
	r, sessions, srv := setupRouter(t)
	sc := login(t, sessions, srv, models.RolePharmacist)

	w := get(r, "/admin", sc.ID)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSessionMiddleware_StaleCookieIsCleared(t *testing.T) {
	r, sessions, srv := setupRouter(t)
	sc := login(t, sessions, srv, models.RoleNurse)
	require.NoError(t, sessions.Logout(context.Background(), sc.ID))

	w := get(r, "/nurse", sc.ID)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Contains(t, w.Header().Get("Set-Cookie"), "medflow_auth=;")
}

func TestRequestIDAndRecovery(t *testing.T) {
	r, _, _ := setupRouter(t)

	w := get(r, "/panic", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set(RequestIDHeader, "abc")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc", w.Header().Get(RequestIDHeader))
}

func TestSafeRedirect(t *testing.T) {
	tests := []struct {
		from string
		role models.Role
		want string
	}{
		{"", models.RoleNurse, "/nurse"},
		{"/pharmacist?q=ada", models.RolePharmacist, "/pharmacist?q=ada"},
		{"/login", models.RoleDoctor, "/doctor"},
		{"https://evil.example/", models.RoleAdmin, "/admin"},
		{"//evil.example/x", models.RoleRegistrar, "/registrar"},
		{"relative", models.RoleRegistrar, "/registrar"},
		{"/\\evil.example", models.RoleNurse, "/nurse"},
		{"/\\/evil.example/x", models.RoleNurse, "/nurse"},
		{"/%5Cevil.example", models.RoleDoctor, "/doctor"},
		{"/%2F/evil.example", models.RoleDoctor, "/doctor"},
		{"/\t/evil.example", models.RoleAdmin, "/admin"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SafeRedirect(tt.from, tt.role), "from %q", tt.from)
	}
	assert.Equal(t, LoginPath, PrimaryRoute(models.Role("janitor")))
}
