package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bueiro-auth/internal/queue"
	"bueiro-auth/internal/service"
)

// AuthHandler mantiene dependencias para los endpoints de autenticación.
type AuthHandler struct {
	logger   *zap.Logger
	authServ *service.AuthService
	tasks    queue.Enqueuer
}

// NewAuthHandler crea una instancia de AuthHandler con dependencias necesarias.
func NewAuthHandler(logger *zap.Logger, authServ *service.AuthService, tasks queue.Enqueuer) *AuthHandler {
	if tasks == nil {
		tasks = queue.NewDisabledEnqueuer()
	}
	return &AuthHandler{
		logger:   logger,
		authServ: authServ,
		tasks:    tasks,
	}
}

// Login maneja POST /login. El body es form-encoded (username, password),
// el mismo contrato que un password grant de OAuth2.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Username string `form:"username" binding:"required"`
		Password string `form:"password" binding:"required"`
	}
	if err := c.ShouldBind(&req); err != nil {
		h.logger.Warn("invalid login request", zap.Error(err))
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "username and password are required"})
		return
	}

	result, err := h.authServ.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrCorruptCredential):
			// El hash corrupto ya quedó logueado por el servicio; hacia el
			// cliente es indistinguible de una credencial incorrecta.
			c.Header("WWW-Authenticate", "Bearer")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "incorrect email or password"})
			return
		case errors.Is(err, service.ErrInactiveAccount):
			c.JSON(http.StatusBadRequest, gin.H{"error": "inactive user"})
			return
		default:
			h.logger.Error("login failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not login"})
			return
		}
	}

	c.JSON(http.StatusOK, result)
}

// VerifyTwoFactor maneja POST /verify-2fa. Requiere bearer auth (el token
// temporal del login sirve); el código puede venir en el body JSON o como
// query param two_factor_token.
func (h *AuthHandler) VerifyTwoFactor(c *gin.Context) {
	user, ok := GetCurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "could not validate credentials"})
		return
	}

	var req struct {
		Token          string `json:"token" form:"token"`
		TwoFactorToken string `json:"two_factor_token" form:"two_factor_token"`
	}
	_ = c.ShouldBind(&req)
	code := req.TwoFactorToken
	if code == "" {
		code = c.Query("two_factor_token")
	}

	result, err := h.authServ.VerifyTwoFactor(c.Request.Context(), user, code)
	if err != nil {
		if errors.Is(err, service.ErrInvalidTwoFactorCode) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid 2FA token"})
			return
		}
		h.logger.Error("verify 2fa failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not verify 2fa"})
		return
	}

	c.JSON(http.StatusOK, result)
}

// SetupTwoFactor maneja POST /setup-2fa. Requiere bearer auth. Genera y
// persiste el secreto y devuelve secreto + URI de enrolamiento.
func (h *AuthHandler) SetupTwoFactor(c *gin.Context) {
	user, ok := GetCurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "could not validate credentials"})
		return
	}

	setup, err := h.authServ.SetupTwoFactor(c.Request.Context(), user)
	if err != nil {
		if errors.Is(err, service.ErrTwoFactorAlreadyConfigured) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "2FA is already set up"})
			return
		}
		h.logger.Error("setup 2fa failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not set up 2fa"})
		return
	}

	// Aviso de enrolamiento para el worker; best effort, no bloquea la respuesta.
	if err := h.tasks.Enqueue(c.Request.Context(), queue.NotificationQueue, "process_notification", gin.H{
		"type":  "2fa_enabled",
		"email": user.Email,
	}); err != nil {
		h.logger.Warn("enqueue 2fa notification failed", zap.Error(err))
	}

	c.JSON(http.StatusOK, setup)
}
