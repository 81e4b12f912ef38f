package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"medflow-web/internal/config"
	"medflow-web/internal/middleware"
	"medflow-web/internal/models"
	"medflow-web/internal/session"
	"medflow-web/internal/utils"
)

// AuthHandler handles login, logout and landing redirects.
type AuthHandler struct {
	Sessions *session.Manager
	Cfg      *config.Config
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(sessions *session.Manager, cfg *config.Config) *AuthHandler {
	return &AuthHandler{Sessions: sessions, Cfg: cfg}
}

// LoginScreen is the view model of the login screen.
type LoginScreen struct {
	From          string      `json:"from,omitempty"`
	Authenticated bool        `json:"authenticated"`
	Role          models.Role `json:"role,omitempty"`
	Username      string      `json:"username,omitempty"`
	Home          string      `json:"home,omitempty"`
}

// LoginForm is the login request: credentials plus the screen to return to.
type LoginForm struct {
	models.Credentials
	From string `json:"from" form:"from"`
}

// LoginScreen renders the login screen model.
func (h *AuthHandler) LoginScreen(c *gin.Context) {
	screen := LoginScreen{From: c.Query("from")}
	if sc, ok := middleware.GetSessionFromContext(c); ok {
		screen.Authenticated = true
		screen.Role = sc.Role()
		screen.Username = sc.Username()
		screen.Home = middleware.PrimaryRoute(sc.Role())
	}
	utils.Success(c, "Login", screen)
}

// Login signs the user in and redirects to the requested screen or the
// role's primary screen.
func (h *AuthHandler) Login(c *gin.Context) {
	var form LoginForm
	if !utils.BindAndValidate(c, &form) {
		return
	}
	if form.From == "" {
		form.From = c.Query("from")
	}

	sc, err := h.Sessions.Login(c.Request.Context(), form.Credentials)
	if err != nil {
		h.loginFailed(c, err)
		return
	}

	// A previous session on this browser is replaced.
	if prev, cerr := c.Cookie(h.Cfg.Session.CookieName); cerr == nil && prev != "" && prev != sc.ID {
		if lerr := h.Sessions.Logout(c.Request.Context(), prev); lerr != nil {
			_ = c.Error(lerr)
		}
	}

	middleware.SetSessionCookie(c, h.Cfg, sc.ID)
	c.Redirect(http.StatusSeeOther, middleware.SafeRedirect(form.From, sc.Role()))
}

// loginFailed reports a failed login on the login screen itself rather than
// redirecting back to it.
func (h *AuthHandler) loginFailed(c *gin.Context, err error) {
	var authErr *utils.AuthError
	if !errors.As(err, &authErr) {
		RespondError(c, h.Cfg, err)
		return
	}
	_ = c.Error(err)
	if authErr.StatusCode == http.StatusForbidden {
		utils.Forbidden(c, "This account's role cannot use this application")
		return
	}
	utils.Unauthorized(c, "Invalid username or password")
}

// Logout ends the session and returns to the login screen.
func (h *AuthHandler) Logout(c *gin.Context) {
	if id, err := c.Cookie(h.Cfg.Session.CookieName); err == nil && id != "" {
		if err := h.Sessions.Logout(c.Request.Context(), id); err != nil {
			_ = c.Error(err)
		}
	}
	middleware.ClearSessionCookie(c, h.Cfg)
	c.Redirect(http.StatusSeeOther, middleware.LoginPath)
}

// Dashboard sends the session to its role's primary screen.
func (h *AuthHandler) Dashboard(c *gin.Context) {
	sc, ok := middleware.GetSessionFromContext(c)
	if !ok {
		c.Redirect(http.StatusFound, middleware.LoginPath)
		return
	}
	c.Redirect(http.StatusFound, middleware.PrimaryRoute(sc.Role()))
}
