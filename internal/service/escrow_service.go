package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/workchain-backend/internal/chain"
	"github.com/ignatzorin/workchain-backend/internal/logger"
	"github.com/ignatzorin/workchain-backend/internal/models"
	"github.com/ignatzorin/workchain-backend/internal/pkg/apperror"
	"github.com/ignatzorin/workchain-backend/internal/repository"
)

type EscrowRepository interface {
	GetByJobID(ctx context.Context, jobID uuid.UUID) (*models.Escrow, error)
	Lock(ctx context.Context, jobID uuid.UUID, employer, worker string, amount decimal.Decimal, confirm repository.ConfirmFunc) (*models.Escrow, error)
	Release(ctx context.Context, jobID uuid.UUID, recipient string, confirm repository.ConfirmFunc) (*models.Escrow, error)
	Refund(ctx context.Context, jobID uuid.UUID, recipient string, confirm repository.ConfirmFunc) (*models.Escrow, error)
	SplitRelease(ctx context.Context, jobID uuid.UUID, workerShare, employerShare decimal.Decimal, confirm repository.ConfirmFunc) (*models.Escrow, error)
	GetBalance(ctx context.Context, address string) (*models.Balance, error)
	Deposit(ctx context.Context, address string, amount decimal.Decimal, txRef string) (*models.Transaction, error)
	ListTransactions(ctx context.Context, address string, limit, offset int) ([]models.Transaction, error)
}

// EscrowService — единственная точка движения денег по заказам. Каждая
// операция ключуется jobID; внешний леджер вызывается внутри
// транзакции репозитория, и состояние фиксируется только после
// подтверждённой ссылки.
type EscrowService struct {
	repo   EscrowRepository
	ledger chain.Ledger
	log    *logrus.Entry
}

func NewEscrowService(repo EscrowRepository, ledger chain.Ledger) *EscrowService {
	return &EscrowService{
		repo:   repo,
		ledger: ledger,
		log:    logger.WithModule("escrow"),
	}
}

// Lock удерживает сумму заказа. Повтор с той же суммой возвращает
// прежний результат, с другой — ErrAlreadyLocked.
func (s *EscrowService) Lock(ctx context.Context, jobID uuid.UUID, employer, worker string, amount decimal.Decimal) (*models.Escrow, error) {
	if !amount.IsPositive() {
		return nil, apperror.New(apperror.ErrCodeValidation, "сумма должна быть положительной")
	}
	employer = models.NormalizeAddress(employer)
	worker = models.NormalizeAddress(worker)

	escrow, err := s.repo.Lock(ctx, jobID, employer, worker, amount, func(e *models.Escrow) (string, error) {
		return s.callLedger(ctx, "lock", func() (string, error) {
			return s.ledger.Lock(ctx, jobID, employer, amount)
		})
	})
	if err != nil {
		if err == repository.ErrInsufficientFunds {
			return nil, apperror.New(apperror.ErrCodeValidation, "недостаточно средств на балансе")
		}
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"job_id": jobID, "amount": amount}).Info("средства заблокированы")
	return escrow, nil
}

// Release выплачивает всю удержанную сумму получателю, не более одного раза.
func (s *EscrowService) Release(ctx context.Context, jobID uuid.UUID, recipient string) (*models.Escrow, error) {
	recipient = models.NormalizeAddress(recipient)
	escrow, err := s.repo.Release(ctx, jobID, recipient, func(e *models.Escrow) (string, error) {
		return s.callLedger(ctx, "release", func() (string, error) {
			return s.ledger.Release(ctx, jobID, recipient, e.Amount)
		})
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"job_id": jobID, "recipient": recipient}).Info("средства выплачены")
	return escrow, nil
}

// Refund возвращает всю удержанную сумму получателю, не более одного раза.
func (s *EscrowService) Refund(ctx context.Context, jobID uuid.UUID, recipient string) (*models.Escrow, error) {
	recipient = models.NormalizeAddress(recipient)
	escrow, err := s.repo.Refund(ctx, jobID, recipient, func(e *models.Escrow) (string, error) {
		return s.callLedger(ctx, "refund", func() (string, error) {
			return s.ledger.Refund(ctx, jobID, recipient, e.Amount)
		})
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"job_id": jobID, "recipient": recipient}).Info("средства возвращены")
	return escrow, nil
}

// SplitRelease делит удержанную сумму между сторонами; доли обязаны
// сходиться с заблокированной суммой точно.
func (s *EscrowService) SplitRelease(ctx context.Context, jobID uuid.UUID, workerShare, employerShare decimal.Decimal) (*models.Escrow, error) {
	escrow, err := s.repo.SplitRelease(ctx, jobID, workerShare, employerShare, func(e *models.Escrow) (string, error) {
		return s.callLedger(ctx, "split_release", func() (string, error) {
			return s.ledger.SplitRelease(ctx, jobID, e.WorkerAddress, e.EmployerAddress, workerShare, employerShare)
		})
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"job_id": jobID, "worker_share": workerShare, "employer_share": employerShare,
	}).Info("средства разделены по решению арбитража")
	return escrow, nil
}

// GetEscrow возвращает запись escrow по заказу.
func (s *EscrowService) GetEscrow(ctx context.Context, jobID uuid.UUID) (*models.Escrow, error) {
	escrow, err := s.repo.GetByJobID(ctx, jobID)
	if err != nil {
		if err == repository.ErrEscrowNotFound {
			return nil, apperror.ErrNothingLocked
		}
		return nil, err
	}
	return escrow, nil
}

// GetBalance возвращает баланс участника.
func (s *EscrowService) GetBalance(ctx context.Context, address string) (*models.Balance, error) {
	return s.repo.GetBalance(ctx, models.NormalizeAddress(address))
}

// Deposit пополняет доступный баланс через внешний леджер.
func (s *EscrowService) Deposit(ctx context.Context, address string, amount decimal.Decimal) (*models.Transaction, error) {
	if !amount.IsPositive() {
		return nil, apperror.New(apperror.ErrCodeValidation, "сумма должна быть положительной")
	}
	address = models.NormalizeAddress(address)
	txRef, err := s.callLedger(ctx, "deposit", func() (string, error) {
		return s.ledger.Deposit(ctx, address, amount)
	})
	if err != nil {
		return nil, err
	}
	return s.repo.Deposit(ctx, address, amount, txRef)
}

// ListTransactions возвращает финансовый журнал участника.
func (s *EscrowService) ListTransactions(ctx context.Context, address string, limit, offset int) ([]models.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ListTransactions(ctx, models.NormalizeAddress(address), limit, offset)
}

// callLedger оборачивает вызов внешнего леджера в ошибку escrow-класса.
// Неподтверждённый результат никогда не продвигает состояние.
func (s *EscrowService) callLedger(ctx context.Context, op string, call func() (string, error)) (string, error) {
	txRef, err := call()
	if err != nil {
		s.log.WithError(err).WithField("op", op).Warn("вызов леджера не подтверждён")
		return "", apperror.Wrap(err, apperror.ErrCodeEscrow, fmt.Sprintf("операция %s не подтверждена внешним леджером", op))
	}
	return txRef, nil
}
