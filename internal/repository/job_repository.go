package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ignatzorin/workchain-backend/internal/models"
	"github.com/ignatzorin/workchain-backend/internal/pkg/apperror"
)

var (
	ErrJobNotFound         = errors.New("job not found")
	ErrApplicationNotFound = errors.New("application not found")
)

// isUniqueViolation проверяет нарушение уникального индекса PostgreSQL.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

type JobRepository struct {
	db *sqlx.DB
}

func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create создаёт заказ в статусе open.
func (r *JobRepository) Create(ctx context.Context, job *models.Job) error {
	query := `
		INSERT INTO jobs (title, category, description, content_ref, amount, employer_address, status, deadline_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		job.Title, job.Category, job.Description, job.ContentRef,
		job.Amount, job.EmployerAddress, job.Status, job.DeadlineAt,
	).Scan(&job.ID, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("job repository: create %w", err)
	}
	return nil
}

// GetByID возвращает заказ по идентификатору.
func (r *JobRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	var job models.Job
	err := r.db.GetContext(ctx, &job, `SELECT * FROM jobs WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("job repository: get by id %w", err)
	}
	return &job, nil
}

// List возвращает заказы с фильтрами и пагинацией.
func (r *JobRepository) List(ctx context.Context, status *models.JobStatus, category, participant *string, limit, offset int) ([]models.Job, error) {
	query := `SELECT * FROM jobs WHERE 1=1`
	args := []interface{}{}
	argIndex := 1

	if status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIndex)
		args = append(args, *status)
		argIndex++
	}
	if category != nil {
		query += fmt.Sprintf(" AND category = $%d", argIndex)
		args = append(args, *category)
		argIndex++
	}
	if participant != nil {
		addr := models.NormalizeAddress(*participant)
		query += fmt.Sprintf(" AND (employer_address = $%d OR worker_address = $%d)", argIndex, argIndex)
		args = append(args, addr)
		argIndex++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, limit, offset)

	var jobs []models.Job
	if err := r.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("job repository: list %w", err)
	}
	return jobs, nil
}

// CreateApplication создаёт отклик на открытый заказ.
func (r *JobRepository) CreateApplication(ctx context.Context, app *models.Application) error {
	query := `
		INSERT INTO applications (job_id, worker_address, cover_letter, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		app.JobID, app.WorkerAddress, app.CoverLetter, app.Status,
	).Scan(&app.ID, &app.CreatedAt, &app.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.New(apperror.ErrCodeDuplicate, "отклик на этот заказ уже подан")
		}
		return fmt.Errorf("job repository: create application %w", err)
	}
	return nil
}

// GetApplication возвращает отклик по идентификатору.
func (r *JobRepository) GetApplication(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	var app models.Application
	err := r.db.GetContext(ctx, &app, `SELECT * FROM applications WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrApplicationNotFound
		}
		return nil, fmt.Errorf("job repository: get application %w", err)
	}
	return &app, nil
}

// ListApplications возвращает отклики по заказу.
func (r *JobRepository) ListApplications(ctx context.Context, jobID uuid.UUID) ([]models.Application, error) {
	var apps []models.Application
	err := r.db.SelectContext(ctx, &apps, `
		SELECT * FROM applications WHERE job_id = $1 ORDER BY created_at ASC
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("job repository: list applications %w", err)
	}
	return apps, nil
}

// AcceptApplication атомарно переводит заказ open → filled: принимает один
// отклик, закрывает остальные и выставляет исполнителя. Строка заказа
// блокируется на всю операцию, поэтому из двух конкурентных вызовов
// второй увидит уже не-open статус. Callback confirm получает эту же
// транзакцию и выполняется после всех проверок и до записи: блокировка
// средств escrow и переход в filled фиксируются одним коммитом.
func (r *JobRepository) AcceptApplication(ctx context.Context, jobID uuid.UUID, workerAddress string, confirm func(tx *sqlx.Tx, job *models.Job) (escrowRef string, err error)) (*models.Job, error) {
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
	if job.Status != models.JobStatusOpen {
		return nil, apperror.ErrJobNotOpen
	}

	workerAddress = models.NormalizeAddress(workerAddress)

	var app models.Application
	err = tx.GetContext(ctx, &app, `
		SELECT * FROM applications
		WHERE job_id = $1 AND worker_address = $2 AND status = 'pending'
	`, jobID, workerAddress)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrApplicationNotFound
		}
		return nil, err
	}

	before := job

	escrowRef, err := confirm(tx, &job)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE applications SET status = 'rejected', updated_at = NOW()
		WHERE job_id = $1 AND id <> $2 AND status = 'pending'
	`, jobID, app.ID)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE applications SET status = 'accepted', updated_at = NOW() WHERE id = $1
	`, app.ID)
	if err != nil {
		return nil, err
	}

	err = tx.GetContext(ctx, &job, `
		UPDATE jobs SET status = 'filled', worker_address = $2, escrow_ref = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING *
	`, jobID, workerAddress, escrowRef)
	if err != nil {
		return nil, err
	}

	if err := addJobHistory(ctx, tx, jobID, &workerAddress, "application_accepted", before, job); err != nil {
		return nil, err
	}

	return &job, tx.Commit()
}

// UpdateStatusLocked выполняет переход статуса под блокировкой строки
// заказа. mutate валидирует текущее состояние и меняет поля; при ошибке
// заказ остаётся нетронутым. Снимки до/после пишутся в журнал истории.
func (r *JobRepository) UpdateStatusLocked(ctx context.Context, jobID uuid.UUID, actor *string, action string, mutate func(job *models.Job) error) (*models.Job, error) {
	return r.UpdateStatusLockedTx(ctx, jobID, actor, action, func(_ *sqlx.Tx, job *models.Job) error {
		return mutate(job)
	})
}

// UpdateStatusLockedTx — вариант с доступом к транзакции: выплата по
// заказу двигает escrow и статус одним коммитом.
func (r *JobRepository) UpdateStatusLockedTx(ctx context.Context, jobID uuid.UUID, actor *string, action string, mutate func(tx *sqlx.Tx, job *models.Job) error) (*models.Job, error) {
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

	before := job

	if err := mutate(tx, &job); err != nil {
		return nil, err
	}

	err = tx.GetContext(ctx, &job, `
		UPDATE jobs SET status = $2, disputed = $3, worker_address = $4, escrow_ref = $5,
			rating = $6, completed_at = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING *
	`, jobID, job.Status, job.Disputed, job.WorkerAddress, job.EscrowRef, job.Rating, job.CompletedAt)
	if err != nil {
		return nil, err
	}

	if err := addJobHistory(ctx, tx, jobID, actor, action, before, job); err != nil {
		return nil, err
	}

	return &job, tx.Commit()
}

// SetRating записывает итоговую оценку 1–5 на карточку заказа.
func (r *JobRepository) SetRating(ctx context.Context, jobID uuid.UUID, rating int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE jobs SET rating = $2, updated_at = NOW() WHERE id = $1`, jobID, rating)
	if err != nil {
		return fmt.Errorf("job repository: set rating %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrJobNotFound
	}
	return nil
}
