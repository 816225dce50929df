package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/workchain-backend/internal/models"
)

// addJobHistory пишет снимок до/после в журнал переходов заказа.
// Вызывается внутри транзакций репозиториев, чтобы запись истории
// фиксировалась вместе с самим переходом.
func addJobHistory(ctx context.Context, tx sqlx.ExtContext, jobID uuid.UUID, actor *string, action string, oldValue, newValue interface{}) error {
	oldJSON, _ := json.Marshal(oldValue)
	newJSON, _ := json.Marshal(newValue)
	_, err := tx.ExecContext(ctx, `
		INSERT INTO job_history (job_id, actor, action, old_value, new_value)
		VALUES ($1, $2, $3, $4, $5)
	`, jobID, actor, action, oldJSON, newJSON)
	if err != nil {
		return fmt.Errorf("job history: add %w", err)
	}
	return nil
}

type JobHistoryRepository struct {
	db *sqlx.DB
}

func NewJobHistoryRepository(db *sqlx.DB) *JobHistoryRepository {
	return &JobHistoryRepository{db: db}
}

// ListByJob возвращает историю переходов заказа в порядке их фиксации.
func (r *JobHistoryRepository) ListByJob(ctx context.Context, jobID uuid.UUID) ([]models.JobHistory, error) {
	var history []models.JobHistory
	err := r.db.SelectContext(ctx, &history, `
		SELECT * FROM job_history WHERE job_id = $1 ORDER BY created_at ASC
	`, jobID)
	return history, err
}
