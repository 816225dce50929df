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

type DisputeRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	GetOpenByJobID(ctx context.Context, jobID uuid.UUID) (*models.Dispute, error)
	ListByStatus(ctx context.Context, status models.DisputeStatus, limit, offset int) ([]models.Dispute, error)
	ListExpired(ctx context.Context, now time.Time) ([]models.Dispute, error)
	RaiseLocked(ctx context.Context, jobID uuid.UUID, raiser, reason string, disputeType models.DisputeType, stake decimal.Decimal, deadline time.Time, validate func(tx *sqlx.Tx, job *models.Job) error) (*models.Dispute, error)
	CreateVote(ctx context.Context, vote *models.DisputeVote) error
	MarkVoting(ctx context.Context, disputeID uuid.UUID) error
	ListVotes(ctx context.Context, disputeID uuid.UUID) ([]models.DisputeVote, error)
	Tally(ctx context.Context, disputeID uuid.UUID) (*models.DisputeTally, error)
	ExtendDeadline(ctx context.Context, disputeID uuid.UUID, newDeadline time.Time) (bool, error)
	ResolveLocked(ctx context.Context, disputeID uuid.UUID, outcome models.DisputeOutcome, apply func(tx *sqlx.Tx, dispute *models.Dispute, job *models.Job) error) (*models.Dispute, error)
	UpdateJobTx(ctx context.Context, tx *sqlx.Tx, job *models.Job, actor *string, action string, oldStatus, newStatus models.JobStatus) error
}

// JobReader читает заказы для проверок участия в споре.
type JobReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
}

// DisputeEscrowStore перемещает средства внутри транзакции спора.
type DisputeEscrowStore interface {
	SettleTx(ctx context.Context, tx *sqlx.Tx, jobID uuid.UUID, status models.EscrowStatus, confirm repository.ConfirmFunc, apply func(escrow *models.Escrow, txRef string) error) (*models.Escrow, error)
	CreditTx(ctx context.Context, tx *sqlx.Tx, address string, amount decimal.Decimal, txType string, jobID *uuid.UUID, txRef *string, description string) error
	DebitTx(ctx context.Context, tx *sqlx.Tx, address string, amount decimal.Decimal, txType string, jobID *uuid.UUID, txRef *string, description string) error
}

// DisputeReputation применяет репутационные последствия решения.
type DisputeReputation interface {
	OnDisputeResolved(ctx context.Context, jobID uuid.UUID, worker, employer string, outcome models.DisputeOutcome, workerRatio decimal.Decimal) error
}

// DisputeService — арбитраж со взвешенным голосованием. Спор живёт по
// схеме open → voting → resolved; open существует только до вычисления
// дедлайна. Решение необратимо и выполняется ровно один раз.
type DisputeService struct {
	repo       DisputeRepository
	jobs       JobReader
	escrow     DisputeEscrowStore
	ledger     chain.Ledger
	reputation DisputeReputation
	notifier   Notifier

	votingPeriod time.Duration
	quorum       decimal.Decimal
	minStake     decimal.Decimal

	log *logrus.Entry
}

func NewDisputeService(repo DisputeRepository, jobs JobReader, escrow DisputeEscrowStore, ledger chain.Ledger, reputation DisputeReputation, notifier Notifier, votingPeriod time.Duration, quorum, minStake decimal.Decimal) *DisputeService {
	return &DisputeService{
		repo:         repo,
		jobs:         jobs,
		escrow:       escrow,
		ledger:       ledger,
		reputation:   reputation,
		notifier:     notifier,
		votingPeriod: votingPeriod,
		quorum:       quorum,
		minStake:     minStake,
		log:          logger.WithModule("dispute"),
	}
}

// RaiseDispute открывает спор по заказу в статусе filled или completed.
// Ставка списывается с инициатора тем же коммитом; заказ замораживается
// в disputed, и обычный путь оплаты закрыт до разрешения.
func (s *DisputeService) RaiseDispute(ctx context.Context, jobID uuid.UUID, raiser, reason string, disputeType models.DisputeType, stake decimal.Decimal) (*models.Dispute, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "необходимо указать причину спора")
	}
	if !disputeType.IsValid() {
		return nil, apperror.New(apperror.ErrCodeValidation, "неизвестный тип спора")
	}
	if stake.IsZero() {
		stake = s.minStake
	}
	if stake.LessThan(s.minStake) {
		return nil, apperror.New(apperror.ErrCodeValidation, "ставка меньше минимальной")
	}

	raiser = models.NormalizeAddress(raiser)
	deadline := time.Now().Add(s.votingPeriod)

	dispute, err := s.repo.RaiseLocked(ctx, jobID, raiser, strings.TrimSpace(reason), disputeType, stake, deadline, func(tx *sqlx.Tx, job *models.Job) error {
		if !job.IsParticipant(raiser) {
			return apperror.ErrNotAuthorized
		}
		if job.Status == models.JobStatusDisputed {
			return apperror.ErrDuplicateDispute
		}
		if job.Status != models.JobStatusFilled && job.Status != models.JobStatusCompleted {
			return apperror.ErrJobNotDisputable
		}

		txRef, err := s.ledger.Lock(ctx, jobID, raiser, stake)
		if err != nil {
			return apperror.Wrap(err, apperror.ErrCodeEscrow, "ставка не подтверждена внешним леджером")
		}
		if err := s.escrow.DebitTx(ctx, tx, raiser, stake, models.TransactionTypeDisputeStake, &jobID, &txRef, "Ставка по спору"); err != nil {
			if err == repository.ErrInsufficientFunds {
				return apperror.New(apperror.ErrCodeValidation, "недостаточно средств для ставки")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, mapJobRepoError(err)
	}

	// open — переходное состояние: дедлайн уже вычислен, голосование открыто.
	if err := s.repo.MarkVoting(ctx, dispute.ID); err != nil {
		s.log.WithError(err).WithField("dispute_id", dispute.ID).Error("не удалось открыть голосование")
	} else {
		dispute.Status = models.DisputeStatusVoting
	}

	s.log.WithFields(logrus.Fields{"dispute_id": dispute.ID, "job_id": jobID, "raiser": raiser}).Info("спор открыт")
	return dispute, nil
}

// CastVote записывает голос арбитра. Вес фиксируется в момент подачи.
// Стороны сделки по собственному спору не голосуют; конкурентные голоса
// разных арбитров проходят параллельно.
func (s *DisputeService) CastVote(ctx context.Context, disputeID uuid.UUID, voter string, favorPlaintiff bool, votingPower decimal.Decimal, reasoning *string) (*models.DisputeVote, error) {
	if !votingPower.IsPositive() {
		return nil, apperror.New(apperror.ErrCodeValidation, "вес голоса должен быть положительным")
	}

	dispute, err := s.getDispute(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	// open допустим наравне с voting: дедлайн выставлен при открытии
	// спора, спор мог не успеть перейти в voting.
	if dispute.Status != models.DisputeStatusVoting && dispute.Status != models.DisputeStatusOpen {
		return nil, apperror.ErrVotingClosed
	}
	if !time.Now().Before(dispute.VotingDeadline) {
		return nil, apperror.ErrVotingClosed
	}

	job, err := s.jobs.GetByID(ctx, dispute.JobID)
	if err != nil {
		return nil, mapJobRepoError(err)
	}
	voter = models.NormalizeAddress(voter)
	if job.IsParticipant(voter) {
		return nil, apperror.ErrConflictOfInterest
	}

	vote := &models.DisputeVote{
		DisputeID:      disputeID,
		VoterAddress:   voter,
		FavorPlaintiff: favorPlaintiff,
		VotingPower:    votingPower,
		Reasoning:      reasoning,
	}
	if err := s.repo.CreateVote(ctx, vote); err != nil {
		return nil, err
	}
	return vote, nil
}

// Tally возвращает текущие взвешенные итоги голосования.
func (s *DisputeService) Tally(ctx context.Context, disputeID uuid.UUID) (*models.DisputeTally, error) {
	if _, err := s.getDispute(ctx, disputeID); err != nil {
		return nil, err
	}
	return s.repo.Tally(ctx, disputeID)
}

// Resolve подводит итоги и разрешает спор. Требуются кворум по сумме
// весов и строгое большинство; равенство при кворуме даёт partial.
// Повторный вызов по решённому спору возвращает ErrAlreadyResolved.
func (s *DisputeService) Resolve(ctx context.Context, disputeID uuid.UUID) (*models.Dispute, error) {
	dispute, err := s.getDispute(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if dispute.Status == models.DisputeStatusResolved {
		return nil, apperror.ErrAlreadyResolved
	}

	tally, err := s.repo.Tally(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if tally.Total().LessThan(s.quorum) {
		return nil, apperror.ErrBelowQuorum
	}

	job, err := s.jobs.GetByID(ctx, dispute.JobID)
	if err != nil {
		return nil, mapJobRepoError(err)
	}

	return s.resolveWithOutcome(ctx, dispute, s.outcomeFromTally(dispute, job, tally))
}

// outcomeFromTally переводит победу истца/ответчика в исход для сторон
// сделки: favor_plaintiff считается относительно инициатора спора.
func (s *DisputeService) outcomeFromTally(dispute *models.Dispute, job *models.Job, tally *models.DisputeTally) models.DisputeOutcome {
	switch {
	case tally.FavorPlaintiff.Equal(tally.FavorDefendant):
		return models.OutcomePartial
	case tally.FavorPlaintiff.GreaterThan(tally.FavorDefendant):
		if s.raiserIsWorker(dispute, job) {
			return models.OutcomeFavorWorker
		}
		return models.OutcomeFavorEmployer
	default:
		if s.raiserIsWorker(dispute, job) {
			return models.OutcomeFavorEmployer
		}
		return models.OutcomeFavorWorker
	}
}

func (s *DisputeService) raiserIsWorker(dispute *models.Dispute, job *models.Job) bool {
	return job.WorkerAddress != nil && models.SameAddress(*job.WorkerAddress, dispute.RaiserAddress)
}

// ResolveExpired обрабатывает споры с истёкшим дедлайном: при кворуме
// подводит итоги; без кворума однократно продлевает голосование на тот
// же период, а после продления применяет возврат к статус-кво —
// возврат заказчику, если спор открыт по несданной работе, и выплату
// исполнителю, если работа была сдана. Вызывается внешним
// планировщиком; сам сервис часы не опрашивает.
func (s *DisputeService) ResolveExpired(ctx context.Context) (int, error) {
	expired, err := s.repo.ListExpired(ctx, time.Now())
	if err != nil {
		return 0, err
	}

	resolved := 0
	for i := range expired {
		dispute := &expired[i]

		tally, err := s.repo.Tally(ctx, dispute.ID)
		if err != nil {
			s.log.WithError(err).WithField("dispute_id", dispute.ID).Error("не удалось подсчитать голоса")
			continue
		}

		if tally.Total().LessThan(s.quorum) {
			if !dispute.Extended {
				if ok, err := s.repo.ExtendDeadline(ctx, dispute.ID, time.Now().Add(s.votingPeriod)); err == nil && ok {
					s.log.WithField("dispute_id", dispute.ID).Info("голосование продлено: кворум не набран")
					continue
				}
			}
			// Продление исчерпано: статус-кво по состоянию заказа на
			// момент открытия спора.
			outcome := models.OutcomeFavorEmployer
			if dispute.PriorJobStatus == models.JobStatusCompleted {
				outcome = models.OutcomeFavorWorker
			}
			if _, err := s.resolveWithOutcome(ctx, dispute, outcome); err != nil {
				s.log.WithError(err).WithField("dispute_id", dispute.ID).Error("не удалось применить статус-кво")
				continue
			}
			resolved++
			continue
		}

		job, err := s.jobs.GetByID(ctx, dispute.JobID)
		if err != nil {
			s.log.WithError(err).WithField("dispute_id", dispute.ID).Error("не удалось прочитать заказ спора")
			continue
		}
		if _, err := s.resolveWithOutcome(ctx, dispute, s.outcomeFromTally(dispute, job, tally)); err != nil {
			s.log.WithError(err).WithField("dispute_id", dispute.ID).Error("не удалось разрешить спор")
			continue
		}
		resolved++
	}
	return resolved, nil
}

// resolveWithOutcome выполняет необратимое разрешение: движение средств,
// возврат ставки, статус заказа и запись исхода фиксируются одним
// коммитом; репутация применяется после него.
func (s *DisputeService) resolveWithOutcome(ctx context.Context, dispute *models.Dispute, outcome models.DisputeOutcome) (*models.Dispute, error) {
	var (
		worker, employer string
		workerRatio      decimal.Decimal
	)

	resolved, err := s.repo.ResolveLocked(ctx, dispute.ID, outcome, func(tx *sqlx.Tx, d *models.Dispute, job *models.Job) error {
		employer = job.EmployerAddress
		if job.WorkerAddress != nil {
			worker = *job.WorkerAddress
		}
		jobID := job.ID

		var (
			escrow    *models.Escrow
			newStatus models.JobStatus
			err       error
		)
		switch outcome {
		case models.OutcomeFavorWorker:
			workerRatio = decimal.NewFromInt(1)
			newStatus = models.JobStatusPaid
			escrow, err = s.escrow.SettleTx(ctx, tx, jobID, models.EscrowStatusReleased,
				func(e *models.Escrow) (string, error) {
					ref, err := s.ledger.Release(ctx, jobID, e.WorkerAddress, e.Amount)
					if err != nil {
						return "", apperror.Wrap(err, apperror.ErrCodeEscrow, "выплата не подтверждена внешним леджером")
					}
					return ref, nil
				},
				func(e *models.Escrow, txRef string) error {
					return s.escrow.CreditTx(ctx, tx, e.WorkerAddress, e.Amount,
						models.TransactionTypeEscrowRelease, &jobID, &txRef, "Выплата по решению арбитража")
				})
		case models.OutcomeFavorEmployer:
			workerRatio = decimal.Zero
			newStatus = models.JobStatusRefunded
			escrow, err = s.escrow.SettleTx(ctx, tx, jobID, models.EscrowStatusRefunded,
				func(e *models.Escrow) (string, error) {
					ref, err := s.ledger.Refund(ctx, jobID, e.EmployerAddress, e.Amount)
					if err != nil {
						return "", apperror.Wrap(err, apperror.ErrCodeEscrow, "возврат не подтверждён внешним леджером")
					}
					return ref, nil
				},
				func(e *models.Escrow, txRef string) error {
					return s.escrow.CreditTx(ctx, tx, e.EmployerAddress, e.Amount,
						models.TransactionTypeEscrowRefund, &jobID, &txRef, "Возврат по решению арбитража")
				})
		case models.OutcomePartial:
			newStatus = models.JobStatusPaid
			escrow, err = s.escrow.SettleTx(ctx, tx, jobID, models.EscrowStatusSplit,
				func(e *models.Escrow) (string, error) {
					workerShare := e.Amount.Div(decimal.NewFromInt(2))
					employerShare := e.Amount.Sub(workerShare)
					ref, err := s.ledger.SplitRelease(ctx, jobID, e.WorkerAddress, e.EmployerAddress, workerShare, employerShare)
					if err != nil {
						return "", apperror.Wrap(err, apperror.ErrCodeEscrow, "раздел средств не подтверждён внешним леджером")
					}
					return ref, nil
				},
				func(e *models.Escrow, txRef string) error {
					workerShare := e.Amount.Div(decimal.NewFromInt(2))
					employerShare := e.Amount.Sub(workerShare)
					if e.Amount.IsPositive() {
						workerRatio = workerShare.Div(e.Amount)
					}
					if _, err := tx.ExecContext(ctx, `
						UPDATE escrow SET worker_share = $2, employer_share = $3 WHERE id = $1
					`, e.ID, workerShare, employerShare); err != nil {
						return err
					}
					if err := s.escrow.CreditTx(ctx, tx, e.WorkerAddress, workerShare,
						models.TransactionTypeEscrowSplit, &jobID, &txRef, "Частичная выплата по решению арбитража"); err != nil {
						return err
					}
					return s.escrow.CreditTx(ctx, tx, e.EmployerAddress, employerShare,
						models.TransactionTypeEscrowSplit, &jobID, &txRef, "Частичный возврат по решению арбитража")
				})
		default:
			return apperror.New(apperror.ErrCodeValidation, "неизвестный исход спора")
		}
		if err != nil {
			return err
		}

		// Ставка возвращается инициатору, если решение не против него.
		raiserLost := (outcome == models.OutcomeFavorWorker && !models.SameAddress(d.RaiserAddress, worker)) ||
			(outcome == models.OutcomeFavorEmployer && !models.SameAddress(d.RaiserAddress, employer))
		if !raiserLost {
			if err := s.escrow.CreditTx(ctx, tx, d.RaiserAddress, d.Stake,
				models.TransactionTypeDisputeStake, &jobID, nil, "Возврат ставки по спору"); err != nil {
				return err
			}
		}

		oldStatus := job.Status
		job.EscrowRef = escrow.SettleTxRef
		return s.repo.UpdateJobTx(ctx, tx, job, nil, "dispute_resolved", oldStatus, newStatus)
	})
	if err != nil {
		return nil, err
	}

	if err := s.reputation.OnDisputeResolved(ctx, resolved.JobID, worker, employer, outcome, workerRatio); err != nil {
		s.log.WithError(err).WithField("dispute_id", resolved.ID).Error("не удалось применить репутацию по решению спора")
	}

	if s.notifier != nil {
		payload := map[string]interface{}{"dispute_id": resolved.ID, "job_id": resolved.JobID, "outcome": outcome}
		s.notifier.Notify(worker, "dispute.resolved", payload)
		s.notifier.Notify(employer, "dispute.resolved", payload)
	}
	s.log.WithFields(logrus.Fields{"dispute_id": resolved.ID, "outcome": outcome}).Info("спор разрешён")
	return resolved, nil
}

// GetDispute возвращает спор по идентификатору.
func (s *DisputeService) GetDispute(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	return s.getDispute(ctx, id)
}

// GetJobDispute возвращает незавершённый спор по заказу.
func (s *DisputeService) GetJobDispute(ctx context.Context, jobID uuid.UUID) (*models.Dispute, error) {
	dispute, err := s.repo.GetOpenByJobID(ctx, jobID)
	if err != nil {
		if err == repository.ErrDisputeNotFound {
			return nil, apperror.ErrDisputeNotFound
		}
		return nil, err
	}
	return dispute, nil
}

// ListDisputes возвращает споры в заданном статусе.
func (s *DisputeService) ListDisputes(ctx context.Context, status models.DisputeStatus, limit, offset int) ([]models.Dispute, error) {
	if !status.IsValid() {
		return nil, apperror.New(apperror.ErrCodeValidation, "неизвестный статус спора")
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ListByStatus(ctx, status, limit, offset)
}

// ListVotes возвращает голоса по спору.
func (s *DisputeService) ListVotes(ctx context.Context, disputeID uuid.UUID) ([]models.DisputeVote, error) {
	if _, err := s.getDispute(ctx, disputeID); err != nil {
		return nil, err
	}
	return s.repo.ListVotes(ctx, disputeID)
}

func (s *DisputeService) getDispute(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	dispute, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrDisputeNotFound {
			return nil, apperror.ErrDisputeNotFound
		}
		return nil, err
	}
	return dispute, nil
}
