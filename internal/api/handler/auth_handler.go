package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/homelist/auth-service/internal/core/domain"
	"github.com/homelist/auth-service/internal/core/ports"
)

const (
	msgRegistered = "user registered successfully"
	msgLoggedIn   = "login successful"
	msgLoggedOut  = "logged out"
)

// CookieConfig describes the session cookie set on login.
type CookieConfig struct {
	Name   string
	Secure bool
	TTL    time.Duration
}

type AuthHandler struct {
	authService ports.AuthService
	cookie      CookieConfig
}

func NewAuthHandler(authService ports.AuthService, cookie CookieConfig) *AuthHandler {
	if cookie.Name == "" {
		cookie.Name = "token"
	}
	return &AuthHandler{authService: authService, cookie: cookie}
}

type registerRequest struct {
	Name     string `json:"name" validate:"max=100"`
	Email    string `json:"email" validate:"omitempty,email,max=254"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"max=254"`
	Password string `json:"password"`
}

type authResponse struct {
	Message string            `json:"message"`
	Token   string            `json:"token"`
	User    domain.PublicUser `json:"user"`
}

type logoutAllResponse struct {
	Message string `json:"message"`
	Revoked int64  `json:"revoked"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// Register creates a new user account and opens its first session.
//
// @Summary      Register a new user
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "User registration details"
// @Success      201   {object}  authResponse
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	res, err := h.authService.Register(c.Request().Context(), ports.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
		RemoteIP: c.RealIP(),
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, authResponse{Message: msgRegistered, Token: res.Token, User: res.User})
}

// Login authenticates a user, returns a bearer token and sets the session cookie.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  authResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	res, err := h.authService.Login(c.Request().Context(), ports.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		RemoteIP: c.RealIP(),
	})
	if err != nil {
		return err
	}

	c.SetCookie(h.sessionCookie(res.Token, int(h.cookie.TTL.Seconds())))
	return c.JSON(http.StatusOK, authResponse{Message: msgLoggedIn, Token: res.Token, User: res.User})
}

// Logout revokes the session the request was authenticated with.
//
// @Summary      Logout
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  messageResponse
// @Failure      401  {object}  map[string]string
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	p, err := ctxPrincipal(c)
	if err != nil {
		return err
	}
	if err := h.authService.Logout(c.Request().Context(), p); err != nil {
		return err
	}
	c.SetCookie(h.sessionCookie("", -1))
	return c.JSON(http.StatusOK, messageResponse{Message: msgLoggedOut})
}

// LogoutAll revokes every session of the caller.
//
// @Summary      Logout everywhere
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  logoutAllResponse
// @Failure      401  {object}  map[string]string
// @Router       /auth/logout-all [post]
func (h *AuthHandler) LogoutAll(c echo.Context) error {
	p, err := ctxPrincipal(c)
	if err != nil {
		return err
	}
	n, err := h.authService.LogoutAll(c.Request().Context(), p)
	if err != nil {
		return err
	}
	c.SetCookie(h.sessionCookie("", -1))
	return c.JSON(http.StatusOK, logoutAllResponse{Message: msgLoggedOut, Revoked: n})
}

// Me returns the resolved principal.
//
// @Summary      Current principal
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domain.Principal
// @Failure      401  {object}  map[string]string
// @Router       /auth/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	p, err := ctxPrincipal(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *AuthHandler) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     h.cookie.Name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteStrictMode,
	}
}
