package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Job описывает заказ на площадке. Запись никогда не удаляется физически:
// после создания меняются только статус и связанные с переходами поля.
type Job struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	Title           string          `db:"title" json:"title"`
	Category        string          `db:"category" json:"category"`
	Description     *string         `db:"description" json:"description,omitempty"`
	ContentRef      *string         `db:"content_ref" json:"content_ref,omitempty"`
	Amount          decimal.Decimal `db:"amount" json:"amount"`
	EmployerAddress string          `db:"employer_address" json:"employer_address"`
	WorkerAddress   *string         `db:"worker_address" json:"worker_address,omitempty"`
	EscrowRef       *string         `db:"escrow_ref" json:"escrow_ref,omitempty"`
	Status          JobStatus       `db:"status" json:"status"`
	Disputed        bool            `db:"disputed" json:"disputed"`
	DeadlineAt      *time.Time      `db:"deadline_at" json:"deadline_at,omitempty"`
	Rating          *int            `db:"rating" json:"rating,omitempty"`
	CompletedAt     *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// IsParticipant проверяет, является ли адрес стороной сделки.
func (j *Job) IsParticipant(addr string) bool {
	if SameAddress(j.EmployerAddress, addr) {
		return true
	}
	return j.WorkerAddress != nil && SameAddress(*j.WorkerAddress, addr)
}

// Application представляет отклик исполнителя на заказ.
// Ровно один отклик на заказ может стать accepted; остальные при этом
// закрываются как rejected.
type Application struct {
	ID            uuid.UUID         `db:"id" json:"id"`
	JobID         uuid.UUID         `db:"job_id" json:"job_id"`
	WorkerAddress string            `db:"worker_address" json:"worker_address"`
	CoverLetter   *string           `db:"cover_letter" json:"cover_letter,omitempty"`
	Status        ApplicationStatus `db:"status" json:"status"`
	CreatedAt     time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time         `db:"updated_at" json:"updated_at"`
}

// JobHistory хранит снимок до/после для каждого перехода заказа.
type JobHistory struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	JobID     uuid.UUID  `db:"job_id" json:"job_id"`
	Actor     *string    `db:"actor" json:"actor,omitempty"`
	Action    string     `db:"action" json:"action"`
	OldValue  []byte     `db:"old_value" json:"old_value,omitempty"`
	NewValue  []byte     `db:"new_value" json:"new_value,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}
