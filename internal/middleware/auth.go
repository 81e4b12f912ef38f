package middleware

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"medflow-web/internal/config"
	"medflow-web/internal/models"
	"medflow-web/internal/session"
	"medflow-web/internal/utils"
)

const sessionKey = "session"

// LoginPath is where unauthenticated and mismatched requests are sent.
const LoginPath = "/login"

// SessionMiddleware resumes the session named by the session cookie and
// stores it in the request context. Requests without a live session pass
// through untouched; RouteGuard decides what they may see.
func SessionMiddleware(sessions *session.Manager, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(cfg.Session.CookieName)
		if err != nil || id == "" {
			c.Next()
			return
		}

		sc, err := sessions.Resume(c.Request.Context(), id)
		switch {
		case errors.Is(err, session.ErrNotFound):
			// Stale cookie from a session that no longer exists.
			ClearSessionCookie(c, cfg)
		case err != nil:
			utils.InternalServerError(c, "Failed to load session")
			c.Abort()
			return
		case !sc.Closed():
			c.Set(sessionKey, sc)
		}

		c.Next()
	}
}

// RouteGuard admits requests whose session role is one of allowed. An empty
// allowed list admits any authenticated session. Unauthenticated requests
// are redirected to the login screen with the requested path in "from";
// role mismatches go to the login screen without it.
func RouteGuard(allowed ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		sc, ok := GetSessionFromContext(c)
		if !ok {
			c.Redirect(http.StatusFound, LoginPath+"?from="+url.QueryEscape(c.Request.URL.Path))
			c.Abort()
			return
		}

		if len(allowed) > 0 && !roleAllowed(sc.Role(), allowed) {
			c.Redirect(http.StatusFound, LoginPath)
			c.Abort()
			return
		}

		c.Next()
	}
}

var primaryRoutes = map[models.Role]string{
	models.RoleRegistrar:  "/registrar",
	models.RoleNurse:      "/nurse",
	models.RoleDoctor:     "/doctor",
	models.RolePharmacist: "/pharmacist",
	models.RoleAdmin:      "/admin",
}

// PrimaryRoute returns the screen a role lands on after login.
func PrimaryRoute(role models.Role) string {
	if path, ok := primaryRoutes[role]; ok {
		return path
	}
	return LoginPath
}

// SafeRedirect returns from when it is a local path other than the login
// screen, and the role's primary route otherwise.
func SafeRedirect(from string, role models.Role) string {
	// Browsers read a backslash as a slash, so "/\host" is protocol-relative.
	if from == "" || strings.ContainsRune(from, '\\') || strings.HasPrefix(from, "//") {
		return PrimaryRoute(role)
	}
	u, err := url.Parse(from)
	if err != nil || u.IsAbs() || u.Host != "" || len(u.Path) == 0 || u.Path[0] != '/' ||
		strings.HasPrefix(u.Path, "//") || strings.ContainsRune(u.Path, '\\') || u.Path == LoginPath {
		return PrimaryRoute(role)
	}
	return from
}

func roleAllowed(role models.Role, allowed []models.Role) bool {
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}

// GetSessionFromContext returns the live session attached by SessionMiddleware.
func GetSessionFromContext(c *gin.Context) (*session.Context, bool) {
	v, exists := c.Get(sessionKey)
	if !exists {
		return nil, false
	}
	sc, ok := v.(*session.Context)
	if !ok || sc.Closed() {
		return nil, false
	}
	return sc, true
}

// SetSessionCookie stores the session id in an HTTP-only cookie.
func SetSessionCookie(c *gin.Context, cfg *config.Config, id string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(
		cfg.Session.CookieName,
		id,
		cfg.Session.CookieMaxAge,
		"/",
		"",
		!cfg.IsDevelopment(),
		true,
	)
}

// ClearSessionCookie expires the session cookie.
func ClearSessionCookie(c *gin.Context, cfg *config.Config) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cfg.Session.CookieName, "", -1, "/", "", !cfg.IsDevelopment(), true)
}
