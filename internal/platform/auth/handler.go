package auth

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handler exposes the mock OAuth endpoints and user lookups.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/oauth/token", h.Token)
	api.POST("/oauth/check_token", h.CheckToken)
	api.GET("/users", h.ListUsers)
	api.GET("/users/:id", h.GetUser)
}

type credentials struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// Token implements POST /api/oauth/token. Credentials arrive as form fields
// or a JSON body, matching the tolerant parsing of the real endpoint.
func (h *Handler) Token(c echo.Context) error {
	var creds credentials
	if err := c.Bind(&creds); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error":             "invalid_request",
			"error_description": err.Error(),
		})
	}

	resp, err := h.svc.Issue(creds.Username, creds.Password)
	if err != nil {
		if errors.Is(err, ErrBadCredentials) {
			return c.JSON(http.StatusUnauthorized, map[string]string{
				"error":             "invalid_grant",
				"error_description": "Bad credentials",
			})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, resp)
}

// CheckToken implements POST /api/oauth/check_token.
func (h *Handler) CheckToken(c echo.Context) error {
	var body struct {
		Token string `json:"token" form:"token"`
	}
	if err := c.Bind(&body); err != nil || body.Token == "" {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid_token"})
	}

	resp, ok := h.svc.Check(body.Token)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid_token"})
	}
	return c.JSON(http.StatusOK, resp)
}

// ListUsers implements GET /api/users. Passwords are never serialized.
func (h *Handler) ListUsers(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Users())
}

// GetUser implements GET /api/users/:id.
func (h *Handler) GetUser(c echo.Context) error {
	u, ok := h.svc.User(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "User not found"})
	}
	return c.JSON(http.StatusOK, u)
}
