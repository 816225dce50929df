package service

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/workchain-backend/internal/chain"
	"github.com/ignatzorin/workchain-backend/internal/logger"
	"github.com/ignatzorin/workchain-backend/internal/models"
	"github.com/ignatzorin/workchain-backend/internal/pkg/apperror"
	"github.com/ignatzorin/workchain-backend/internal/repository"
)

type WithdrawalRepository interface {
	Create(ctx context.Context, address string, amount decimal.Decimal, confirm func() (string, error)) (*models.Withdrawal, error)
	ListByAddress(ctx context.Context, address string, limit, offset int) ([]models.Withdrawal, error)
}

// WithdrawalService выводит доступный баланс через внешний леджер.
// Списание фиксируется только после подтверждённого внешнего перевода.
type WithdrawalService struct {
	repo   WithdrawalRepository
	ledger chain.Ledger
	log    *logrus.Entry
}

func NewWithdrawalService(repo WithdrawalRepository, ledger chain.Ledger) *WithdrawalService {
	return &WithdrawalService{
		repo:   repo,
		ledger: ledger,
		log:    logger.WithModule("withdrawal"),
	}
}

// Create создаёт заявку на вывод средств.
func (s *WithdrawalService) Create(ctx context.Context, address string, amount decimal.Decimal) (*models.Withdrawal, error) {
	if !amount.IsPositive() {
		return nil, apperror.New(apperror.ErrCodeValidation, "сумма должна быть положительной")
	}
	address = models.NormalizeAddress(address)

	withdrawal, err := s.repo.Create(ctx, address, amount, func() (string, error) {
		txRef, err := s.ledger.Withdraw(ctx, address, amount)
		if err != nil {
			return "", apperror.Wrap(err, apperror.ErrCodeEscrow, "вывод не подтверждён внешним леджером")
		}
		return txRef, nil
	})
	if err != nil {
		if err == repository.ErrInsufficientFunds {
			return nil, apperror.New(apperror.ErrCodeValidation, "недостаточно средств на балансе")
		}
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"address": address, "amount": amount}).Info("средства выведены")
	return withdrawal, nil
}

// List возвращает историю выводов участника.
func (s *WithdrawalService) List(ctx context.Context, address string, limit, offset int) ([]models.Withdrawal, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ListByAddress(ctx, models.NormalizeAddress(address), limit, offset)
}
