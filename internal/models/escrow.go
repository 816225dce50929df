package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Escrow — запись об удержанных по заказу средствах. Единственный
// источник истины о том, двигались ли деньги по заказу.
type Escrow struct {
	ID              uuid.UUID        `db:"id" json:"id"`
	JobID           uuid.UUID        `db:"job_id" json:"job_id"`
	EmployerAddress string           `db:"employer_address" json:"employer_address"`
	WorkerAddress   string           `db:"worker_address" json:"worker_address"`
	Amount          decimal.Decimal  `db:"amount" json:"amount"`
	Status          EscrowStatus     `db:"status" json:"status"`
	WorkerShare     *decimal.Decimal `db:"worker_share" json:"worker_share,omitempty"`
	EmployerShare   *decimal.Decimal `db:"employer_share" json:"employer_share,omitempty"`
	LockTxRef       string           `db:"lock_tx_ref" json:"lock_tx_ref"`
	SettleTxRef     *string          `db:"settle_tx_ref" json:"settle_tx_ref,omitempty"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
	SettledAt       *time.Time       `db:"settled_at" json:"settled_at,omitempty"`
}

// Settled сообщает, что средства по escrow уже двигались.
func (e *Escrow) Settled() bool {
	return e.Status != EscrowStatusLocked
}

// Balance — баланс участника в журнале площадки.
type Balance struct {
	Address   string          `db:"address" json:"address"`
	Available decimal.Decimal `db:"available" json:"available"`
	Frozen    decimal.Decimal `db:"frozen" json:"frozen"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// Transaction — строка финансового журнала. Записи не изменяются.
type Transaction struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	Address     string          `db:"address" json:"address"`
	JobID       *uuid.UUID      `db:"job_id" json:"job_id,omitempty"`
	Type        string          `db:"type" json:"type"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	TxRef       *string         `db:"tx_ref" json:"tx_ref,omitempty"`
	Description *string         `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// Withdrawal — заявка на вывод доступного баланса через внешний леджер.
type Withdrawal struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	Address     string          `db:"address" json:"address"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	TxRef       string          `db:"tx_ref" json:"tx_ref"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}
