package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Dispute представляет спор по заказу. На заказ одновременно может
// существовать не более одного неразрешённого спора; разрешение
// необратимо и выполняется ровно один раз.
type Dispute struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	JobID          uuid.UUID       `db:"job_id" json:"job_id"`
	RaiserAddress  string          `db:"raiser_address" json:"raiser_address"`
	Reason         string          `db:"reason" json:"reason"`
	Type           DisputeType     `db:"type" json:"type"`
	Status         DisputeStatus   `db:"status" json:"status"`
	Outcome        *DisputeOutcome `db:"outcome" json:"outcome,omitempty"`
	Stake          decimal.Decimal `db:"stake" json:"stake"`
	PriorJobStatus JobStatus       `db:"prior_job_status" json:"prior_job_status"`
	VotingDeadline time.Time       `db:"voting_deadline" json:"voting_deadline"`
	Extended       bool            `db:"extended" json:"extended"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	ResolvedAt     *time.Time      `db:"resolved_at" json:"resolved_at,omitempty"`
}

// DisputeVote — голос арбитра. Вес фиксируется в момент подачи и задним
// числом не пересчитывается; на пару (спор, арбитр) допускается один голос.
type DisputeVote struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	DisputeID      uuid.UUID       `db:"dispute_id" json:"dispute_id"`
	VoterAddress   string          `db:"voter_address" json:"voter_address"`
	FavorPlaintiff bool            `db:"favor_plaintiff" json:"favor_plaintiff"`
	VotingPower    decimal.Decimal `db:"voting_power" json:"voting_power"`
	Reasoning      *string         `db:"reasoning" json:"reasoning,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// DisputeTally — взвешенные итоги голосования.
type DisputeTally struct {
	FavorPlaintiff decimal.Decimal `db:"favor_plaintiff" json:"favor_plaintiff"`
	FavorDefendant decimal.Decimal `db:"favor_defendant" json:"favor_defendant"`
	VoteCount      int             `db:"vote_count" json:"vote_count"`
}

// Total возвращает суммарную поданную силу голосов.
func (t DisputeTally) Total() decimal.Decimal {
	return t.FavorPlaintiff.Add(t.FavorDefendant)
}
