package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"focusbeat/backend/internal/service"
)

type AuthHandler struct {
	authService *service.AuthService
}

type authRequest struct {
	Name       string `json:"name"`
	Passphrase string `json:"passphrase"`
}

func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req authRequest
	if !bindJSON(c, &req) {
		return
	}

	result, apiErr := h.authService.Register(c.Request.Context(), req.Name, req.Passphrase)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req authRequest
	if !bindJSON(c, &req) {
		return
	}

	result, apiErr := h.authService.Login(c.Request.Context(), req.Name, req.Passphrase)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	id, ok := profileID(c)
	if !ok {
		return
	}
	h.authService.Logout(id)
	c.Status(http.StatusNoContent)
}

// List returns profile names for the picker; it needs no token.
func (h *AuthHandler) List(c *gin.Context) {
	profiles, apiErr := h.authService.Profiles(c.Request.Context())
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profiles": profiles})
}
