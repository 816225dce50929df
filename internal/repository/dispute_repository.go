package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/workchain-backend/internal/models"
	"github.com/ignatzorin/workchain-backend/internal/pkg/apperror"
)

var ErrDisputeNotFound = errors.New("dispute not found")

type DisputeRepository struct {
	db *sqlx.DB
}

func NewDisputeRepository(db *sqlx.DB) *DisputeRepository {
	return &DisputeRepository{db: db}
}

// GetByID возвращает спор по идентификатору.
func (r *DisputeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	err := r.db.GetContext(ctx, &dispute, `SELECT * FROM disputes WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDisputeNotFound
		}
		return nil, fmt.Errorf("dispute repository: get by id %w", err)
	}
	return &dispute, nil
}

// GetOpenByJobID возвращает незавершённый спор по заказу.
func (r *DisputeRepository) GetOpenByJobID(ctx context.Context, jobID uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	err := r.db.GetContext(ctx, &dispute, `
		SELECT * FROM disputes WHERE job_id = $1 AND status != 'resolved'
	`, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDisputeNotFound
		}
		return nil, err
	}
	return &dispute, nil
}

// ListByStatus возвращает споры в заданном статусе (для арбитров и фоновой обработки).
func (r *DisputeRepository) ListByStatus(ctx context.Context, status models.DisputeStatus, limit, offset int) ([]models.Dispute, error) {
	var disputes []models.Dispute
	err := r.db.SelectContext(ctx, &disputes, `
		SELECT * FROM disputes WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, status, limit, offset)
	return disputes, err
}

// ListExpired возвращает споры, чей дедлайн голосования прошёл.
func (r *DisputeRepository) ListExpired(ctx context.Context, now time.Time) ([]models.Dispute, error) {
	var disputes []models.Dispute
	err := r.db.SelectContext(ctx, &disputes, `
		SELECT * FROM disputes WHERE status IN ('open', 'voting') AND voting_deadline <= $1
		ORDER BY voting_deadline
	`, now)
	return disputes, err
}

// RaiseLocked открывает спор: блокирует строку заказа, проверяет его
// статус через validate, фиксирует прежний статус и переводит заказ в
// disputed. validate получает транзакцию, чтобы списание ставки
// фиксировалось тем же коммитом. Повторное открытие спора по тому же
// заказу блокируется частичным уникальным индексом.
func (r *DisputeRepository) RaiseLocked(ctx context.Context, jobID uuid.UUID, raiser, reason string, disputeType models.DisputeType, stake decimal.Decimal, deadline time.Time, validate func(tx *sqlx.Tx, job *models.Job) error) (*models.Dispute, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var job models.Job
	err = tx.GetContext(ctx, &job, `SELECT * FROM jobs WHERE id = $1 FOR UPDATE`, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	if err := validate(tx, &job); err != nil {
		return nil, err
	}

	var dispute models.Dispute
	err = tx.GetContext(ctx, &dispute, `
		INSERT INTO disputes (job_id, raiser_address, reason, type, status, stake, prior_job_status, voting_deadline)
		VALUES ($1, $2, $3, $4, 'open', $5, $6, $7)
		RETURNING *
	`, jobID, raiser, reason, disputeType, stake, job.Status, deadline)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperror.ErrDuplicateDispute
		}
		return nil, err
	}

	oldStatus := job.Status
	_, err = tx.ExecContext(ctx, `
		UPDATE jobs SET status = 'disputed', disputed = TRUE, updated_at = NOW() WHERE id = $1
	`, jobID)
	if err != nil {
		return nil, err
	}

	if err := addJobHistory(ctx, tx, jobID, &raiser, "dispute_raised",
		map[string]any{"status": oldStatus},
		map[string]any{"status": models.JobStatusDisputed, "dispute_id": dispute.ID}); err != nil {
		return nil, err
	}

	return &dispute, tx.Commit()
}

// CreateVote записывает голос арбитра. Конкурентные голоса разных
// арбитров проходят параллельно; повтор того же арбитра отсекает
// уникальный индекс (dispute_id, voter_address).
func (r *DisputeRepository) CreateVote(ctx context.Context, vote *models.DisputeVote) error {
	err := r.db.GetContext(ctx, vote, `
		INSERT INTO dispute_votes (dispute_id, voter_address, favor_plaintiff, voting_power, reasoning)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *
	`, vote.DisputeID, vote.VoterAddress, vote.FavorPlaintiff, vote.VotingPower, vote.Reasoning)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.ErrDuplicateVote
		}
		return fmt.Errorf("dispute repository: create vote %w", err)
	}
	return nil
}

// MarkVoting переводит спор из open в voting при первом голосе.
func (r *DisputeRepository) MarkVoting(ctx context.Context, disputeID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE disputes SET status = 'voting', updated_at = NOW()
		WHERE id = $1 AND status = 'open'
	`, disputeID)
	return err
}

// ListVotes возвращает все голоса по спору.
func (r *DisputeRepository) ListVotes(ctx context.Context, disputeID uuid.UUID) ([]models.DisputeVote, error) {
	var votes []models.DisputeVote
	err := r.db.SelectContext(ctx, &votes, `
		SELECT * FROM dispute_votes WHERE dispute_id = $1 ORDER BY created_at
	`, disputeID)
	return votes, err
}

// Tally агрегирует взвешенные голоса по спору.
func (r *DisputeRepository) Tally(ctx context.Context, disputeID uuid.UUID) (*models.DisputeTally, error) {
	var tally models.DisputeTally
	err := r.db.GetContext(ctx, &tally, `
		SELECT
			COALESCE(SUM(voting_power) FILTER (WHERE favor_plaintiff), 0)     AS favor_plaintiff,
			COALESCE(SUM(voting_power) FILTER (WHERE NOT favor_plaintiff), 0) AS favor_defendant,
			COUNT(*)                                                          AS vote_count
		FROM dispute_votes WHERE dispute_id = $1
	`, disputeID)
	if err != nil {
		return nil, fmt.Errorf("dispute repository: tally %w", err)
	}
	return &tally, nil
}

// ExtendDeadline однократно продлевает голосование. Возвращает false,
// если продление уже использовано.
func (r *DisputeRepository) ExtendDeadline(ctx context.Context, disputeID uuid.UUID, newDeadline time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE disputes SET voting_deadline = $2, extended = TRUE, updated_at = NOW()
		WHERE id = $1 AND NOT extended AND status != 'resolved'
	`, disputeID, newDeadline)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ResolveLocked завершает спор: блокирует сперва строку заказа, затем
// строку спора (порядок фиксированный, чтобы не ловить дедлоки с
// RaiseLocked), проверяет, что спор ещё не решён, и отдаёт управление
// callback'у, который двигает средства и обновляет заказ в той же
// транзакции.
func (r *DisputeRepository) ResolveLocked(ctx context.Context, disputeID uuid.UUID, outcome models.DisputeOutcome, apply func(tx *sqlx.Tx, dispute *models.Dispute, job *models.Job) error) (*models.Dispute, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var dispute models.Dispute
	err = tx.GetContext(ctx, &dispute, `SELECT * FROM disputes WHERE id = $1`, disputeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDisputeNotFound
		}
		return nil, err
	}

	var job models.Job
	err = tx.GetContext(ctx, &job, `SELECT * FROM jobs WHERE id = $1 FOR UPDATE`, dispute.JobID)
	if err != nil {
		return nil, err
	}

	// Перечитываем спор уже под блокировкой: между чтениями его мог
	// решить конкурентный вызов.
	err = tx.GetContext(ctx, &dispute, `SELECT * FROM disputes WHERE id = $1 FOR UPDATE`, disputeID)
	if err != nil {
		return nil, err
	}
	if dispute.Status == models.DisputeStatusResolved {
		return nil, apperror.ErrAlreadyResolved
	}

	if err := apply(tx, &dispute, &job); err != nil {
		return nil, err
	}

	now := time.Now()
	err = tx.GetContext(ctx, &dispute, `
		UPDATE disputes SET status = 'resolved', outcome = $2, resolved_at = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING *
	`, disputeID, outcome, now)
	if err != nil {
		return nil, err
	}

	return &dispute, tx.Commit()
}

// UpdateJobTx обновляет заказ внутри транзакции разрешения спора.
func (r *DisputeRepository) UpdateJobTx(ctx context.Context, tx *sqlx.Tx, job *models.Job, actor *string, action string, oldStatus, newStatus models.JobStatus) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE jobs SET status = $2, disputed = FALSE, escrow_ref = $3, completed_at = $4, updated_at = NOW()
		WHERE id = $1
	`, job.ID, newStatus, job.EscrowRef, job.CompletedAt)
	if err != nil {
		return err
	}
	return addJobHistory(ctx, tx, job.ID, actor, action,
		map[string]any{"status": oldStatus},
		map[string]any{"status": newStatus})
}
