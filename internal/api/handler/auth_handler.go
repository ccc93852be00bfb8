package handler

import (
	"errors"
	"net/http"
	"parking_control/internal/domain"
	"parking_control/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

var authErrorStatus = []struct {
	err    error
	status int
}{
	{service.ErrUserAlreadyExists, http.StatusConflict},
	{service.ErrInvalidCredentials, http.StatusUnauthorized},
}

type AuthHandler struct {
	authService *service.AuthService
}

func NewAuthHandler(as *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: as}
}

// POST /auth/register
// Creates an operator and signs it in, so the response matches /auth/login.
func (h *AuthHandler) Register(c *gin.Context) {
	var dto domain.RegisterUserDTO
	if !bindJSON(c, &dto) {
		return
	}

	ctx := c.Request.Context()
	user, err := h.authService.Register(ctx, dto)
	if err != nil {
		writeAuthError(c, err, "Could not register user")
		return
	}
	log.Info().Int("userId", user.ID).Str("username", user.Username).Msg("operator registered")

	session, err := h.authService.Login(ctx, domain.LoginUserDTO{Username: dto.Username, Password: dto.Password})
	if err != nil {
		writeAuthError(c, err, "Could not sign in new user")
		return
	}
	c.JSON(http.StatusCreated, session)
}

// POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var dto domain.LoginUserDTO
	if !bindJSON(c, &dto) {
		return
	}

	session, err := h.authService.Login(c.Request.Context(), dto)
	if err != nil {
		writeAuthError(c, err, "Could not log in")
		return
	}
	c.JSON(http.StatusOK, session)
}

func writeAuthError(c *gin.Context, err error, fallback string) {
	for _, es := range authErrorStatus {
		if errors.Is(err, es.err) {
			c.JSON(es.status, gin.H{"error": err.Error()})
			return
		}
	}
	log.Error().Err(err).Str("path", c.FullPath()).Msg(fallback)
	c.JSON(http.StatusInternalServerError, gin.H{"error": fallback, "details": err.Error()})
}
