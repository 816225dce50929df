package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/workchain-backend/internal/goroutine"
	"github.com/ignatzorin/workchain-backend/internal/logger"
	"github.com/ignatzorin/workchain-backend/internal/models"
)

type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	ListByAddress(ctx context.Context, address string, limit, offset int) ([]models.Notification, error)
	CountUnread(ctx context.Context, address string) (int, error)
	MarkRead(ctx context.Context, address string, id uuid.UUID) error
	MarkAllRead(ctx context.Context, address string) error
}

// Broadcaster доставляет событие подключённым клиентам участника.
type Broadcaster interface {
	SendToAddress(address string, message []byte)
}

// NotificationService сохраняет события и рассылает их по websocket.
// Доставка — best effort: отказ хранилища уведомлений никогда не
// роняет вызвавшую операцию.
type NotificationService struct {
	repo NotificationRepository
	hub  Broadcaster
	log  *logrus.Entry
}

func NewNotificationService(repo NotificationRepository, hub Broadcaster) *NotificationService {
	return &NotificationService{
		repo: repo,
		hub:  hub,
		log:  logger.WithModule("notification"),
	}
}

// Notify сохраняет событие и отправляет его в фоне.
func (s *NotificationService) Notify(address, event string, payload map[string]interface{}) {
	address = models.NormalizeAddress(address)
	if address == "" {
		return
	}

	body, err := json.Marshal(map[string]interface{}{
		"event": event,
		"data":  payload,
	})
	if err != nil {
		s.log.WithError(err).WithField("event", event).Error("не удалось сериализовать уведомление")
		return
	}

	goroutine.SafeGo(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		notification := &models.Notification{Address: address, Payload: body}
		if err := s.repo.Create(ctx, notification); err != nil {
			s.log.WithError(err).WithField("address", address).Error("не удалось сохранить уведомление")
		}
		if s.hub != nil {
			s.hub.SendToAddress(address, body)
		}
	})
}

// List возвращает уведомления участника.
func (s *NotificationService) List(ctx context.Context, address string, limit, offset int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ListByAddress(ctx, models.NormalizeAddress(address), limit, offset)
}

// CountUnread возвращает число непрочитанных уведомлений.
func (s *NotificationService) CountUnread(ctx context.Context, address string) (int, error) {
	return s.repo.CountUnread(ctx, models.NormalizeAddress(address))
}

// MarkRead помечает уведомление прочитанным.
func (s *NotificationService) MarkRead(ctx context.Context, address string, id uuid.UUID) error {
	return s.repo.MarkRead(ctx, models.NormalizeAddress(address), id)
}

// MarkAllRead помечает все уведомления участника прочитанными.
func (s *NotificationService) MarkAllRead(ctx context.Context, address string) error {
	return s.repo.MarkAllRead(ctx, models.NormalizeAddress(address))
}
