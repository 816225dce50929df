package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/workchain-backend/internal/models"
)

// NotificationRepository хранит события для участников. Ключ — адрес
// кошелька, а не id пользователя: уведомления получают и стороны сделки
// без аккаунта на площадке.
type NotificationRepository struct {
	db *sqlx.DB
}

func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create сохраняет уведомление.
func (r *NotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	err := r.db.GetContext(ctx, notification, `
		INSERT INTO notifications (address, payload)
		VALUES ($1, $2)
		RETURNING *
	`, notification.Address, notification.Payload)
	if err != nil {
		return fmt.Errorf("notification repository: create %w", err)
	}
	return nil
}

// ListByAddress возвращает уведомления участника, новые первыми.
func (r *NotificationRepository) ListByAddress(ctx context.Context, address string, limit, offset int) ([]models.Notification, error) {
	var notifications []models.Notification
	err := r.db.SelectContext(ctx, &notifications, `
		SELECT * FROM notifications WHERE address = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, address, limit, offset)
	return notifications, err
}

// CountUnread возвращает число непрочитанных уведомлений.
func (r *NotificationRepository) CountUnread(ctx context.Context, address string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM notifications WHERE address = $1 AND NOT is_read
	`, address)
	return count, err
}

// MarkRead помечает уведомление прочитанным.
func (r *NotificationRepository) MarkRead(ctx context.Context, address string, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET is_read = TRUE WHERE id = $1 AND address = $2
	`, id, address)
	return err
}

// MarkAllRead помечает все уведомления участника прочитанными.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, address string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET is_read = TRUE WHERE address = $1 AND NOT is_read
	`, address)
	return err
}
