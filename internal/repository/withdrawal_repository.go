package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/workchain-backend/internal/models"
)

type WithdrawalRepository struct {
	db *sqlx.DB
}

func NewWithdrawalRepository(db *sqlx.DB) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

// Create списывает сумму с доступного баланса и сохраняет заявку одним
// коммитом. confirm выполняет внешний вывод средств под блокировкой
// строки баланса: при ошибке леджера списание откатывается.
func (r *WithdrawalRepository) Create(ctx context.Context, address string, amount decimal.Decimal, confirm func() (string, error)) (*models.Withdrawal, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var balance models.Balance
	err = tx.GetContext(ctx, &balance, `SELECT * FROM balances WHERE address = $1 FOR UPDATE`, address)
	if err != nil {
		return nil, ErrInsufficientFunds
	}
	if balance.Available.LessThan(amount) {
		return nil, ErrInsufficientFunds
	}

	txRef, err := confirm()
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE balances SET available = available - $2, updated_at = NOW() WHERE address = $1
	`, address, amount)
	if err != nil {
		return nil, err
	}

	var withdrawal models.Withdrawal
	err = tx.GetContext(ctx, &withdrawal, `
		INSERT INTO withdrawals (address, amount, tx_ref)
		VALUES ($1, $2, $3)
		RETURNING *
	`, address, amount, txRef)
	if err != nil {
		return nil, err
	}

	if err := addTransaction(ctx, tx, address, nil, models.TransactionTypeWithdrawal, amount, &txRef, "Вывод средств"); err != nil {
		return nil, fmt.Errorf("withdrawal repository: journal %w", err)
	}

	return &withdrawal, tx.Commit()
}

// ListByAddress возвращает историю выводов участника.
func (r *WithdrawalRepository) ListByAddress(ctx context.Context, address string, limit, offset int) ([]models.Withdrawal, error) {
	var withdrawals []models.Withdrawal
	err := r.db.SelectContext(ctx, &withdrawals, `
		SELECT * FROM withdrawals WHERE address = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, address, limit, offset)
	return withdrawals, err
}
