package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bueiro-auth/internal/domain"
	"bueiro-auth/internal/repository"
	"bueiro-auth/internal/service"
)

const currentUserKey = "current_user"

// BearerAuthMiddleware resuelve el token bearer a una identidad de cuenta:
// decodifica el token, busca la cuenta por el claim sub y la deja en el
// contexto. Cualquier fallo de decodificación o lookup responde 401.
func BearerAuthMiddleware(logger *zap.Logger, tokens *service.TokenService, users repository.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokens == nil || users == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
			c.Abort()
			return
		}

		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			c.Header("WWW-Authenticate", "Bearer")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			c.Abort()
			return
		}

		tokenString := strings.TrimSpace(header[len("Bearer "):])
		claims, err := tokens.Decode(tokenString)
		if err != nil {
			if logger != nil {
				logger.Warn("bearer token rejected", zap.Error(err))
			}
			c.Header("WWW-Authenticate", "Bearer")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "could not validate credentials"})
			c.Abort()
			return
		}

		user, err := users.GetByEmail(c.Request.Context(), service.Subject(claims))
		if err != nil {
			c.Header("WWW-Authenticate", "Bearer")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "could not validate credentials"})
			c.Abort()
			return
		}

		c.Set(currentUserKey, user)
		c.Next()
	}
}

// GetCurrentUser obtiene la cuenta autenticada desde el contexto.
func GetCurrentUser(c *gin.Context) (domain.User, bool) {
	val, ok := c.Get(currentUserKey)
	if !ok {
		return domain.User{}, false
	}
	user, ok := val.(domain.User)
	return user, ok
}
