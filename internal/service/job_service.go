package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/workchain-backend/internal/chain"
	"github.com/ignatzorin/workchain-backend/internal/logger"
	"github.com/ignatzorin/workchain-backend/internal/models"
	"github.com/ignatzorin/workchain-backend/internal/pkg/apperror"
	"github.com/ignatzorin/workchain-backend/internal/repository"
)

type JobRepository interface {
	Create(ctx context.Context, job *models.Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
	List(ctx context.Context, status *models.JobStatus, category, participant *string, limit, offset int) ([]models.Job, error)
	CreateApplication(ctx context.Context, app *models.Application) error
	ListApplications(ctx context.Context, jobID uuid.UUID) ([]models.Application, error)
	AcceptApplication(ctx context.Context, jobID uuid.UUID, workerAddress string, confirm func(tx *sqlx.Tx, job *models.Job) (string, error)) (*models.Job, error)
	UpdateStatusLocked(ctx context.Context, jobID uuid.UUID, actor *string, action string, mutate func(job *models.Job) error) (*models.Job, error)
	UpdateStatusLockedTx(ctx context.Context, jobID uuid.UUID, actor *string, action string, mutate func(tx *sqlx.Tx, job *models.Job) error) (*models.Job, error)
}

// EscrowTxStore двигает средства внутри транзакции перехода заказа,
// чтобы блокировка или выплата и смена статуса фиксировались одним
// коммитом.
type EscrowTxStore interface {
	LockTx(ctx context.Context, tx *sqlx.Tx, jobID uuid.UUID, employer, worker string, amount decimal.Decimal, confirm repository.ConfirmFunc) (*models.Escrow, error)
	SettleTx(ctx context.Context, tx *sqlx.Tx, jobID uuid.UUID, status models.EscrowStatus, confirm repository.ConfirmFunc, apply func(escrow *models.Escrow, txRef string) error) (*models.Escrow, error)
	CreditTx(ctx context.Context, tx *sqlx.Tx, address string, amount decimal.Decimal, txType string, jobID *uuid.UUID, txRef *string, description string) error
}

// ReputationRecorder принимает события жизненного цикла, влияющие на
// репутацию исполнителя.
type ReputationRecorder interface {
	OnJobCompleted(ctx context.Context, jobID uuid.UUID, worker string, earned decimal.Decimal, onTime bool) error
}

// Notifier доставляет события участникам (хранилище + websocket).
type Notifier interface {
	Notify(address string, event string, payload map[string]interface{})
}

type PostJobInput struct {
	Title       string
	Category    string
	Description *string
	ContentRef  *string
	Amount      decimal.Decimal
	DeadlineAt  *time.Time
}

// JobService — конечный автомат жизненного цикла заказа. Все переходы
// выполняются под блокировкой строки заказа; деньги двигает только
// escrow-слой, и переход фиксируется вместе с подтверждённым движением.
type JobService struct {
	repo       JobRepository
	escrowTx   EscrowTxStore
	ledger     chain.Ledger
	reputation ReputationRecorder
	notifier   Notifier
	log        *logrus.Entry
}

func NewJobService(repo JobRepository, escrowTx EscrowTxStore, ledger chain.Ledger, reputation ReputationRecorder, notifier Notifier) *JobService {
	return &JobService{
		repo:       repo,
		escrowTx:   escrowTx,
		ledger:     ledger,
		reputation: reputation,
		notifier:   notifier,
		log:        logger.WithModule("job"),
	}
}

// PostJob создаёт заказ в статусе open. Escrow на этом шаге не
// блокируется: средства удерживаются в момент принятия отклика.
func (s *JobService) PostJob(ctx context.Context, employer string, input PostJobInput) (*models.Job, error) {
	if strings.TrimSpace(input.Title) == "" || strings.TrimSpace(input.Category) == "" {
		return nil, apperror.ErrInvalidJobSpec
	}
	if !input.Amount.IsPositive() {
		return nil, apperror.ErrInvalidJobSpec
	}
	if input.DeadlineAt != nil && input.DeadlineAt.Before(time.Now()) {
		return nil, apperror.ErrInvalidJobSpec
	}

	job := &models.Job{
		Title:           strings.TrimSpace(input.Title),
		Category:        strings.TrimSpace(input.Category),
		Description:     input.Description,
		ContentRef:      input.ContentRef,
		Amount:          input.Amount,
		EmployerAddress: models.NormalizeAddress(employer),
		Status:          models.JobStatusOpen,
		DeadlineAt:      input.DeadlineAt,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"job_id": job.ID, "amount": job.Amount}).Info("заказ создан")
	return job, nil
}

// GetJob возвращает заказ по идентификатору.
func (s *JobService) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrJobNotFound {
			return nil, apperror.ErrJobNotFound
		}
		return nil, err
	}
	return job, nil
}

// ListJobs возвращает заказы с фильтрами.
func (s *JobService) ListJobs(ctx context.Context, status *models.JobStatus, category, participant *string, limit, offset int) ([]models.Job, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.List(ctx, status, category, participant, limit, offset)
}

// Apply подаёт отклик исполнителя на открытый заказ.
func (s *JobService) Apply(ctx context.Context, jobID uuid.UUID, worker string, coverLetter *string) (*models.Application, error) {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != models.JobStatusOpen {
		return nil, apperror.ErrJobNotOpen
	}
	worker = models.NormalizeAddress(worker)
	if models.SameAddress(job.EmployerAddress, worker) {
		return nil, apperror.New(apperror.ErrCodeValidation, "нельзя откликнуться на собственный заказ")
	}

	app := &models.Application{
		JobID:         jobID,
		WorkerAddress: worker,
		CoverLetter:   coverLetter,
		Status:        models.ApplicationStatusPending,
	}
	if err := s.repo.CreateApplication(ctx, app); err != nil {
		return nil, err
	}
	s.notify(job.EmployerAddress, "job.application", map[string]interface{}{
		"job_id": jobID, "worker": worker,
	})
	return app, nil
}

// ListApplications возвращает отклики по заказу. Список доступен только заказчику.
func (s *JobService) ListApplications(ctx context.Context, jobID uuid.UUID, actor string) ([]models.Application, error) {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !models.SameAddress(job.EmployerAddress, actor) {
		return nil, apperror.ErrNotAuthorized
	}
	return s.repo.ListApplications(ctx, jobID)
}

// AcceptApplication принимает отклик: заказ переходит open → filled, и
// той же транзакцией блокируются средства заказчика — escrow и статус
// заказа фиксируются одним коммитом. Из двух конкурентных вызовов ровно
// один успешен, второй получает ErrJobNotOpen.
func (s *JobService) AcceptApplication(ctx context.Context, jobID uuid.UUID, actor, worker string) (*models.Job, error) {
	worker = models.NormalizeAddress(worker)
	job, err := s.repo.AcceptApplication(ctx, jobID, worker, func(tx *sqlx.Tx, job *models.Job) (string, error) {
		if !models.SameAddress(job.EmployerAddress, actor) {
			return "", apperror.ErrNotAuthorized
		}
		escrow, err := s.escrowTx.LockTx(ctx, tx, jobID, job.EmployerAddress, worker, job.Amount,
			func(e *models.Escrow) (string, error) {
				txRef, err := s.ledger.Lock(ctx, jobID, e.EmployerAddress, e.Amount)
				if err != nil {
					return "", apperror.Wrap(err, apperror.ErrCodeEscrow, "блокировка средств не подтверждена внешним леджером")
				}
				return txRef, nil
			})
		if err != nil {
			if err == repository.ErrInsufficientFunds {
				return "", apperror.New(apperror.ErrCodeValidation, "недостаточно средств для блокировки по заказу")
			}
			return "", err
		}
		return escrow.LockTxRef, nil
	})
	if err != nil {
		if err == repository.ErrJobNotFound {
			return nil, apperror.ErrJobNotFound
		}
		if err == repository.ErrApplicationNotFound {
			return nil, apperror.New(apperror.ErrCodeNotFound, "отклик не найден")
		}
		return nil, err
	}

	if job.WorkerAddress != nil {
		s.notify(*job.WorkerAddress, "job.accepted", map[string]interface{}{"job_id": jobID})
	}
	s.log.WithFields(logrus.Fields{"job_id": jobID, "worker": worker}).Info("отклик принят, средства удержаны")
	return job, nil
}

// MarkComplete — исполнитель сдаёт работу: filled → completed.
func (s *JobService) MarkComplete(ctx context.Context, jobID uuid.UUID, actor string) (*models.Job, error) {
	actor = models.NormalizeAddress(actor)
	job, err := s.repo.UpdateStatusLocked(ctx, jobID, &actor, "work_completed", func(job *models.Job) error {
		if job.WorkerAddress == nil || !models.SameAddress(*job.WorkerAddress, actor) {
			return apperror.ErrNotAuthorized
		}
		if job.Status == models.JobStatusDisputed {
			return apperror.ErrJobDisputed
		}
		if job.Status != models.JobStatusFilled {
			return apperror.ErrInvalidTransition
		}
		now := time.Now()
		job.Status = models.JobStatusCompleted
		job.CompletedAt = &now
		return nil
	})
	if err != nil {
		return nil, mapJobRepoError(err)
	}
	s.notify(job.EmployerAddress, "job.completed", map[string]interface{}{"job_id": jobID})
	return job, nil
}

// ApproveAndPay — заказчик принимает работу: completed → paid, escrow
// выплачивается исполнителю тем же коммитом. По спорному заказу путь
// закрыт до разрешения спора.
func (s *JobService) ApproveAndPay(ctx context.Context, jobID uuid.UUID, actor string) (*models.Job, error) {
	actor = models.NormalizeAddress(actor)
	var (
		worker string
		earned decimal.Decimal
		onTime bool
	)
	job, err := s.repo.UpdateStatusLockedTx(ctx, jobID, &actor, "job_paid", func(tx *sqlx.Tx, job *models.Job) error {
		if !models.SameAddress(job.EmployerAddress, actor) {
			return apperror.ErrNotAuthorized
		}
		if job.Disputed || job.Status == models.JobStatusDisputed {
			return apperror.ErrJobDisputed
		}
		if job.Status != models.JobStatusCompleted {
			return apperror.ErrInvalidTransition
		}

		worker = *job.WorkerAddress
		earned = job.Amount
		onTime = job.DeadlineAt == nil || (job.CompletedAt != nil && !job.CompletedAt.After(*job.DeadlineAt))

		escrow, err := s.escrowTx.SettleTx(ctx, tx, jobID, models.EscrowStatusReleased,
			func(e *models.Escrow) (string, error) {
				txRef, err := s.ledger.Release(ctx, jobID, e.WorkerAddress, e.Amount)
				if err != nil {
					return "", apperror.Wrap(err, apperror.ErrCodeEscrow, "выплата не подтверждена внешним леджером")
				}
				return txRef, nil
			},
			func(e *models.Escrow, txRef string) error {
				return s.escrowTx.CreditTx(ctx, tx, e.WorkerAddress, e.Amount,
					models.TransactionTypeEscrowRelease, &jobID, &txRef, "Оплата за выполненный заказ")
			})
		if err != nil {
			return err
		}

		job.Status = models.JobStatusPaid
		job.EscrowRef = escrow.SettleTxRef
		return nil
	})
	if err != nil {
		return nil, mapJobRepoError(err)
	}

	if err := s.reputation.OnJobCompleted(ctx, jobID, worker, earned, onTime); err != nil {
		s.log.WithError(err).WithField("job_id", jobID).Error("не удалось применить репутацию за завершённый заказ")
	}
	s.notify(worker, "job.paid", map[string]interface{}{"job_id": jobID})
	s.log.WithFields(logrus.Fields{"job_id": jobID, "worker": worker}).Info("заказ оплачен")
	return job, nil
}

// ExpireJob — заказчик возвращает средства по просроченному заказу:
// filled → refunded, если дедлайн прошёл, а работа не сдана. Ядро само
// не опрашивает часы: вызов делает внешний планировщик или заказчик.
func (s *JobService) ExpireJob(ctx context.Context, jobID uuid.UUID, actor string) (*models.Job, error) {
	actor = models.NormalizeAddress(actor)
	job, err := s.repo.UpdateStatusLockedTx(ctx, jobID, &actor, "job_expired", func(tx *sqlx.Tx, job *models.Job) error {
		if !models.SameAddress(job.EmployerAddress, actor) {
			return apperror.ErrNotAuthorized
		}
		if job.Disputed || job.Status == models.JobStatusDisputed {
			return apperror.ErrJobDisputed
		}
		if job.Status != models.JobStatusFilled {
			return apperror.ErrInvalidTransition
		}
		if job.DeadlineAt == nil || job.DeadlineAt.After(time.Now()) {
			return apperror.New(apperror.ErrCodeStateConflict, "срок заказа ещё не истёк")
		}

		escrow, err := s.escrowTx.SettleTx(ctx, tx, jobID, models.EscrowStatusRefunded,
			func(e *models.Escrow) (string, error) {
				txRef, err := s.ledger.Refund(ctx, jobID, e.EmployerAddress, e.Amount)
				if err != nil {
					return "", apperror.Wrap(err, apperror.ErrCodeEscrow, "возврат не подтверждён внешним леджером")
				}
				return txRef, nil
			},
			func(e *models.Escrow, txRef string) error {
				return s.escrowTx.CreditTx(ctx, tx, e.EmployerAddress, e.Amount,
					models.TransactionTypeEscrowRefund, &jobID, &txRef, "Возврат средств по просроченному заказу")
			})
		if err != nil {
			return err
		}

		job.Status = models.JobStatusRefunded
		job.EscrowRef = escrow.SettleTxRef
		return nil
	})
	if err != nil {
		return nil, mapJobRepoError(err)
	}

	if job.WorkerAddress != nil {
		s.notify(*job.WorkerAddress, "job.expired", map[string]interface{}{"job_id": jobID})
	}
	return job, nil
}

func (s *JobService) notify(address, event string, payload map[string]interface{}) {
	if s.notifier != nil {
		s.notifier.Notify(address, event, payload)
	}
}

func mapJobRepoError(err error) error {
	if err == repository.ErrJobNotFound {
		return apperror.ErrJobNotFound
	}
	return err
}
