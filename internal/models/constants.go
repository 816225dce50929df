package models

// JobStatus — закрытый набор статусов заказа.
type JobStatus string

const (
	JobStatusOpen      JobStatus = "open"
	JobStatusFilled    JobStatus = "filled"
	JobStatusCompleted JobStatus = "completed"
	JobStatusDisputed  JobStatus = "disputed"
	JobStatusPaid      JobStatus = "paid"
	JobStatusRefunded  JobStatus = "refunded"
)

func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusOpen, JobStatusFilled, JobStatusCompleted, JobStatusDisputed, JobStatusPaid, JobStatusRefunded:
		return true
	}
	return false
}

// IsTerminal сообщает, что по заказу не осталось обязательств escrow.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusPaid || s == JobStatusRefunded
}

// CanTransitionTo описывает допустимые переходы машины состояний заказа.
// Статус disputed достижим из filled и completed; из него заказ выходит
// только решением арбитража.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	transitions := map[JobStatus][]JobStatus{
		JobStatusOpen:      {JobStatusFilled},
		JobStatusFilled:    {JobStatusCompleted, JobStatusDisputed, JobStatusRefunded},
		JobStatusCompleted: {JobStatusPaid, JobStatusDisputed},
		JobStatusDisputed:  {JobStatusPaid, JobStatusRefunded},
		JobStatusPaid:      {},
		JobStatusRefunded:  {},
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ApplicationStatus — статусы отклика на заказ.
type ApplicationStatus string

const (
	ApplicationStatusPending  ApplicationStatus = "pending"
	ApplicationStatusAccepted ApplicationStatus = "accepted"
	ApplicationStatusRejected ApplicationStatus = "rejected"
)

func (s ApplicationStatus) IsValid() bool {
	switch s {
	case ApplicationStatusPending, ApplicationStatusAccepted, ApplicationStatusRejected:
		return true
	}
	return false
}

// DisputeStatus — статусы спора. Open существует только до вычисления
// дедлайна голосования и сразу переводится в Voting.
type DisputeStatus string

const (
	DisputeStatusOpen     DisputeStatus = "open"
	DisputeStatusVoting   DisputeStatus = "voting"
	DisputeStatusResolved DisputeStatus = "resolved"
)

func (s DisputeStatus) IsValid() bool {
	switch s {
	case DisputeStatusOpen, DisputeStatusVoting, DisputeStatusResolved:
		return true
	}
	return false
}

// DisputeType — причина спора.
type DisputeType string

const (
	DisputeTypeQuality  DisputeType = "quality"
	DisputeTypePayment  DisputeType = "payment"
	DisputeTypeScope    DisputeType = "scope"
	DisputeTypeBehavior DisputeType = "behavior"
)

func (t DisputeType) IsValid() bool {
	switch t {
	case DisputeTypeQuality, DisputeTypePayment, DisputeTypeScope, DisputeTypeBehavior:
		return true
	}
	return false
}

// DisputeOutcome — исход разрешённого спора.
type DisputeOutcome string

const (
	OutcomeFavorWorker   DisputeOutcome = "favor_worker"
	OutcomeFavorEmployer DisputeOutcome = "favor_employer"
	OutcomePartial       DisputeOutcome = "partial"
)

func (o DisputeOutcome) IsValid() bool {
	switch o {
	case OutcomeFavorWorker, OutcomeFavorEmployer, OutcomePartial:
		return true
	}
	return false
}

// EscrowStatus — статусы записи escrow.
type EscrowStatus string

const (
	EscrowStatusLocked   EscrowStatus = "locked"
	EscrowStatusReleased EscrowStatus = "released"
	EscrowStatusRefunded EscrowStatus = "refunded"
	EscrowStatusSplit    EscrowStatus = "split"
)

// Типы транзакций финансового журнала.
const (
	TransactionTypeDeposit       = "deposit"
	TransactionTypeWithdrawal    = "withdrawal"
	TransactionTypeEscrowLock    = "escrow_lock"
	TransactionTypeEscrowRelease = "escrow_release"
	TransactionTypeEscrowRefund  = "escrow_refund"
	TransactionTypeEscrowSplit   = "escrow_split"
	TransactionTypeDisputeStake  = "dispute_stake"
)

// Причины изменения репутации в reputation_history.
const (
	ReputationReasonJobCompleted    = "job_completed"
	ReputationReasonOnTimeBonus     = "on_time_bonus"
	ReputationReasonRatingReceived  = "rating_received"
	ReputationReasonSkillVerified   = "skill_verified"
	ReputationReasonDisputeResolved = "dispute_resolved"
)
