package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/workchain-backend/internal/logger"
	"github.com/ignatzorin/workchain-backend/internal/pkg/apperror"
	"github.com/ignatzorin/workchain-backend/internal/repository"
)

// ErrorHandler обрабатывает ошибки централизованно: известные ошибки
// приложения переводятся в свой HTTP-статус, внутренние маскируются.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err

		if logger.Log != nil {
			logger.Log.WithFields(logrus.Fields{
				"error":  err.Error(),
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
			}).Error("Request error")
		}

		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			c.JSON(appErr.HTTPStatus, gin.H{
				"error": appErr.Message,
				"code":  appErr.Code,
			})
			return
		}

		switch {
		case errors.Is(err, repository.ErrJobNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "заказ не найден"})
		case errors.Is(err, repository.ErrDisputeNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "спор не найден"})
		case errors.Is(err, repository.ErrProfileNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "профиль не найден"})
		case errors.Is(err, repository.ErrEscrowNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "по заказу нет записи escrow"})
		case errors.Is(err, repository.ErrRatingNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "отзыв не найден"})
		case errors.Is(err, repository.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "пользователь не найден"})
		case errors.Is(err, repository.ErrApplicationNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "отклик не найден"})
		case errors.Is(err, repository.ErrInsufficientFunds):
			c.JSON(http.StatusBadRequest, gin.H{"error": "недостаточно средств на балансе"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "внутренняя ошибка сервера"})
		}
	}
}
