package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/workchain-backend/internal/models"
	"github.com/ignatzorin/workchain-backend/internal/service"
)

// Context ключи для gin.Context.
const (
	ContextUserIDKey = "userID"
	ContextWalletKey = "wallet"
)

// AuthMiddleware проверяет JWT access токен и кладёт в контекст
// идентичность участника: id аккаунта и адрес кошелька.
func AuthMiddleware(tokens *service.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "требуется авторизация"})
			return
		}

		raw := strings.TrimPrefix(auth, "Bearer ")
		userID, wallet, err := tokens.ParseAccess(raw)
		if err != nil || userID == uuid.Nil || wallet == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "токен невалиден"})
			return
		}

		c.Set(ContextUserIDKey, userID)
		c.Set(ContextWalletKey, models.NormalizeAddress(wallet))
		c.Next()
	}
}
