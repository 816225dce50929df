package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/workchain-backend/internal/models"
	"github.com/ignatzorin/workchain-backend/internal/pkg/apperror"
)

var (
	ErrEscrowNotFound    = errors.New("escrow not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// ConfirmFunc выполняет внешний вызов леджера внутри транзакции
// репозитория: строка escrow уже заблокирована, проверки пройдены, но
// ничего ещё не записано. Транзакция фиксируется только после того, как
// callback вернул подтверждённую ссылку.
type ConfirmFunc func(escrow *models.Escrow) (txRef string, err error)

type EscrowRepository struct {
	db *sqlx.DB
}

func NewEscrowRepository(db *sqlx.DB) *EscrowRepository {
	return &EscrowRepository{db: db}
}

// GetByJobID возвращает escrow по заказу.
func (r *EscrowRepository) GetByJobID(ctx context.Context, jobID uuid.UUID) (*models.Escrow, error) {
	var escrow models.Escrow
	err := r.db.GetContext(ctx, &escrow, `SELECT * FROM escrow WHERE job_id = $1`, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEscrowNotFound
		}
		return nil, fmt.Errorf("escrow repository: get by job id %w", err)
	}
	return &escrow, nil
}

// Lock удерживает сумму заказа в собственной транзакции: замораживает
// средства заказчика и создаёт запись escrow.
func (r *EscrowRepository) Lock(ctx context.Context, jobID uuid.UUID, employer, worker string, amount decimal.Decimal, confirm ConfirmFunc) (*models.Escrow, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	escrow, err := r.LockTx(ctx, tx, jobID, employer, worker, amount, confirm)
	if err != nil {
		return nil, err
	}

	return escrow, tx.Commit()
}

// LockTx — вариант Lock для уже открытой транзакции: принятие отклика
// фиксирует блокировку средств и переход заказа в filled одним
// коммитом, частичное состояние невозможно. Повторный вызов с теми же
// участниками и суммой идемпотентен и возвращает существующую запись;
// расхождение по любому из трёх — ErrAlreadyLocked.
func (r *EscrowRepository) LockTx(ctx context.Context, tx *sqlx.Tx, jobID uuid.UUID, employer, worker string, amount decimal.Decimal, confirm ConfirmFunc) (*models.Escrow, error) {
	var existing models.Escrow
	err := tx.GetContext(ctx, &existing, `SELECT * FROM escrow WHERE job_id = $1 FOR UPDATE`, jobID)
	switch {
	case err == nil:
		if existing.Settled() {
			return nil, apperror.ErrAlreadyReleased
		}
		if !existing.Amount.Equal(amount) ||
			!models.SameAddress(existing.EmployerAddress, employer) ||
			!models.SameAddress(existing.WorkerAddress, worker) {
			return nil, apperror.ErrAlreadyLocked
		}
		return &existing, nil
	case errors.Is(err, sql.ErrNoRows):
		// Новая блокировка.
	default:
		return nil, err
	}

	var balance models.Balance
	err = tx.GetContext(ctx, &balance, `SELECT * FROM balances WHERE address = $1 FOR UPDATE`, employer)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInsufficientFunds
		}
		return nil, err
	}
	if balance.Available.LessThan(amount) {
		return nil, ErrInsufficientFunds
	}

	escrow := models.Escrow{
		JobID:           jobID,
		EmployerAddress: employer,
		WorkerAddress:   worker,
		Amount:          amount,
		Status:          models.EscrowStatusLocked,
	}
	txRef, err := confirm(&escrow)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE balances SET available = available - $2, frozen = frozen + $2, updated_at = NOW()
		WHERE address = $1
	`, employer, amount)
	if err != nil {
		return nil, err
	}

	err = tx.GetContext(ctx, &escrow, `
		INSERT INTO escrow (job_id, employer_address, worker_address, amount, status, lock_tx_ref)
		VALUES ($1, $2, $3, $4, 'locked', $5)
		RETURNING *
	`, jobID, employer, worker, amount, txRef)
	if err != nil {
		return nil, err
	}

	if err := addTransaction(ctx, tx, employer, &jobID, models.TransactionTypeEscrowLock, amount, &txRef, "Заморозка средств по заказу"); err != nil {
		return nil, err
	}

	return &escrow, nil
}

// Release выплачивает всю удержанную сумму получателю. Повторный вызов
// для того же заказа возвращает ErrAlreadyReleased: деньги двигаются не
// более одного раза.
func (r *EscrowRepository) Release(ctx context.Context, jobID uuid.UUID, recipient string, confirm ConfirmFunc) (*models.Escrow, error) {
	return r.settle(ctx, jobID, models.EscrowStatusReleased, func(tx *sqlx.Tx, escrow *models.Escrow, txRef string) error {
		if err := creditBalance(ctx, tx, recipient, escrow.Amount); err != nil {
			return err
		}
		return addTransaction(ctx, tx, recipient, &jobID, models.TransactionTypeEscrowRelease, escrow.Amount, &txRef, "Оплата за выполненный заказ")
	}, confirm)
}

// Refund возвращает всю удержанную сумму получателю (заказчику).
func (r *EscrowRepository) Refund(ctx context.Context, jobID uuid.UUID, recipient string, confirm ConfirmFunc) (*models.Escrow, error) {
	return r.settle(ctx, jobID, models.EscrowStatusRefunded, func(tx *sqlx.Tx, escrow *models.Escrow, txRef string) error {
		if err := creditBalance(ctx, tx, recipient, escrow.Amount); err != nil {
			return err
		}
		return addTransaction(ctx, tx, recipient, &jobID, models.TransactionTypeEscrowRefund, escrow.Amount, &txRef, "Возврат средств по заказу")
	}, confirm)
}

// SplitRelease делит удержанную сумму между исполнителем и заказчиком.
// Доли обязаны сходиться с заблокированной суммой точно, иначе
// ErrAmountMismatch.
func (r *EscrowRepository) SplitRelease(ctx context.Context, jobID uuid.UUID, workerShare, employerShare decimal.Decimal, confirm ConfirmFunc) (*models.Escrow, error) {
	return r.settle(ctx, jobID, models.EscrowStatusSplit, func(tx *sqlx.Tx, escrow *models.Escrow, txRef string) error {
		if err := creditBalance(ctx, tx, escrow.WorkerAddress, workerShare); err != nil {
			return err
		}
		if err := creditBalance(ctx, tx, escrow.EmployerAddress, employerShare); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE escrow SET worker_share = $2, employer_share = $3 WHERE id = $1
		`, escrow.ID, workerShare, employerShare); err != nil {
			return err
		}
		if err := addTransaction(ctx, tx, escrow.WorkerAddress, &jobID, models.TransactionTypeEscrowSplit, workerShare, &txRef, "Частичная оплата по решению арбитража"); err != nil {
			return err
		}
		return addTransaction(ctx, tx, escrow.EmployerAddress, &jobID, models.TransactionTypeEscrowSplit, employerShare, &txRef, "Частичный возврат по решению арбитража")
	}, func(escrow *models.Escrow) (string, error) {
		if !workerShare.Add(employerShare).Equal(escrow.Amount) {
			return "", apperror.ErrAmountMismatch
		}
		if workerShare.IsNegative() || employerShare.IsNegative() {
			return "", apperror.ErrAmountMismatch
		}
		return confirm(escrow)
	})
}

// settle — общий каркас release/refund/split в собственной транзакции.
func (r *EscrowRepository) settle(ctx context.Context, jobID uuid.UUID, status models.EscrowStatus, apply func(tx *sqlx.Tx, escrow *models.Escrow, txRef string) error, confirm ConfirmFunc) (*models.Escrow, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	escrow, err := r.SettleTx(ctx, tx, jobID, status, confirm, func(escrow *models.Escrow, txRef string) error {
		return apply(tx, escrow, txRef)
	})
	if err != nil {
		return nil, err
	}

	return escrow, tx.Commit()
}

// SettleTx — вариант settle для уже открытой транзакции (разрешение
// спора держит заказ, спор и escrow в одном коммите). Блокирует строку
// escrow, проверяет, что средства ещё не двигались, подтверждает
// внешний вызов и применяет движение.
func (r *EscrowRepository) SettleTx(ctx context.Context, tx *sqlx.Tx, jobID uuid.UUID, status models.EscrowStatus, confirm ConfirmFunc, apply func(escrow *models.Escrow, txRef string) error) (*models.Escrow, error) {
	var escrow models.Escrow
	err := tx.GetContext(ctx, &escrow, `SELECT * FROM escrow WHERE job_id = $1 FOR UPDATE`, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrNothingLocked
		}
		return nil, err
	}
	if escrow.Settled() {
		return nil, apperror.ErrAlreadyReleased
	}

	txRef, err := confirm(&escrow)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE balances SET frozen = frozen - $2, updated_at = NOW() WHERE address = $1
	`, escrow.EmployerAddress, escrow.Amount); err != nil {
		return nil, err
	}

	if err := apply(&escrow, txRef); err != nil {
		return nil, err
	}

	err = tx.GetContext(ctx, &escrow, `
		UPDATE escrow SET status = $2, settle_tx_ref = $3, settled_at = NOW() WHERE id = $1
		RETURNING *
	`, escrow.ID, status, txRef)
	if err != nil {
		return nil, err
	}
	return &escrow, nil
}

// DebitTx списывает с доступного баланса внутри чужой транзакции
// (ставка спора списывается тем же коммитом, что и открытие спора).
func (r *EscrowRepository) DebitTx(ctx context.Context, tx *sqlx.Tx, address string, amount decimal.Decimal, txType string, jobID *uuid.UUID, txRef *string, description string) error {
	var balance models.Balance
	err := tx.GetContext(ctx, &balance, `SELECT * FROM balances WHERE address = $1 FOR UPDATE`, address)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrInsufficientFunds
		}
		return err
	}
	if balance.Available.LessThan(amount) {
		return ErrInsufficientFunds
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE balances SET available = available - $2, updated_at = NOW() WHERE address = $1
	`, address, amount); err != nil {
		return err
	}
	return addTransaction(ctx, tx, address, jobID, txType, amount, txRef, description)
}

// CreditTx начисляет на доступный баланс и пишет журнал внутри чужой транзакции.
func (r *EscrowRepository) CreditTx(ctx context.Context, tx *sqlx.Tx, address string, amount decimal.Decimal, txType string, jobID *uuid.UUID, txRef *string, description string) error {
	if err := creditBalance(ctx, tx, address, amount); err != nil {
		return err
	}
	return addTransaction(ctx, tx, address, jobID, txType, amount, txRef, description)
}

// GetBalance возвращает баланс участника, создавая запись при первом обращении.
func (r *EscrowRepository) GetBalance(ctx context.Context, address string) (*models.Balance, error) {
	var balance models.Balance
	query := `
		INSERT INTO balances (address, available, frozen)
		VALUES ($1, 0, 0)
		ON CONFLICT (address) DO UPDATE SET updated_at = NOW()
		RETURNING *
	`
	if err := r.db.GetContext(ctx, &balance, query, address); err != nil {
		return nil, fmt.Errorf("escrow repository: get balance %w", err)
	}
	return &balance, nil
}

// Deposit зачисляет подтверждённое пополнение на доступный баланс.
func (r *EscrowRepository) Deposit(ctx context.Context, address string, amount decimal.Decimal, txRef string) (*models.Transaction, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := creditBalance(ctx, tx, address, amount); err != nil {
		return nil, fmt.Errorf("escrow repository: deposit %w", err)
	}

	var transaction models.Transaction
	err = tx.GetContext(ctx, &transaction, `
		INSERT INTO transactions (address, type, amount, tx_ref, description)
		VALUES ($1, 'deposit', $2, $3, 'Пополнение баланса')
		RETURNING *
	`, address, amount, txRef)
	if err != nil {
		return nil, fmt.Errorf("escrow repository: deposit transaction %w", err)
	}

	return &transaction, tx.Commit()
}

// DebitAvailable списывает с доступного баланса под блокировкой строки
// (ставка спора, вывод средств). Callback подтверждает внешнюю операцию
// до фиксации списания.
func (r *EscrowRepository) DebitAvailable(ctx context.Context, address string, amount decimal.Decimal, txType, description string, jobID *uuid.UUID, confirm func() (string, error)) (*models.Transaction, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var balance models.Balance
	err = tx.GetContext(ctx, &balance, `SELECT * FROM balances WHERE address = $1 FOR UPDATE`, address)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInsufficientFunds
		}
		return nil, err
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

	var transaction models.Transaction
	err = tx.GetContext(ctx, &transaction, `
		INSERT INTO transactions (address, job_id, type, amount, tx_ref, description)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING *
	`, address, jobID, txType, amount, txRef, description)
	if err != nil {
		return nil, err
	}

	return &transaction, tx.Commit()
}

// CreditAvailable зачисляет на доступный баланс (возврат ставки спора).
func (r *EscrowRepository) CreditAvailable(ctx context.Context, address string, amount decimal.Decimal, txType, description string, jobID *uuid.UUID) (*models.Transaction, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := creditBalance(ctx, tx, address, amount); err != nil {
		return nil, err
	}

	var transaction models.Transaction
	err = tx.GetContext(ctx, &transaction, `
		INSERT INTO transactions (address, job_id, type, amount, description)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *
	`, address, jobID, txType, amount, description)
	if err != nil {
		return nil, err
	}

	return &transaction, tx.Commit()
}

// ListTransactions возвращает финансовый журнал участника.
func (r *EscrowRepository) ListTransactions(ctx context.Context, address string, limit, offset int) ([]models.Transaction, error) {
	var transactions []models.Transaction
	err := r.db.SelectContext(ctx, &transactions, `
		SELECT * FROM transactions WHERE address = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, address, limit, offset)
	return transactions, err
}

// creditBalance начисляет на доступный баланс, создавая запись при необходимости.
func creditBalance(ctx context.Context, tx sqlx.ExtContext, address string, amount decimal.Decimal) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO balances (address, available, frozen)
		VALUES ($1, $2, 0)
		ON CONFLICT (address) DO UPDATE SET available = balances.available + $2, updated_at = NOW()
	`, address, amount)
	return err
}

// addTransaction пишет строку финансового журнала внутри транзакции.
func addTransaction(ctx context.Context, tx sqlx.ExtContext, address string, jobID *uuid.UUID, txType string, amount decimal.Decimal, txRef *string, description string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (address, job_id, type, amount, tx_ref, description)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, address, jobID, txType, amount, txRef, description)
	return err
}
