package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// WorkerProfile — долговременная запись репутации участника, ключ —
// нормализованный адрес кошелька. Создаётся лениво при первом событии,
// мутируется только движком репутации, никогда не удаляется.
type WorkerProfile struct {
	Address          string          `db:"address" json:"address"`
	ReputationScore  int             `db:"reputation_score" json:"reputation_score"`
	CompletedJobs    int             `db:"completed_jobs" json:"completed_jobs"`
	TotalEarned      decimal.Decimal `db:"total_earned" json:"total_earned"`
	Skills           pq.StringArray  `db:"skills" json:"skills"`
	VerifiedSkills   pq.StringArray  `db:"verified_skills" json:"verified_skills"`
	Badges           pq.StringArray  `db:"badges" json:"badges"`
	OnTimeRate       float64         `db:"on_time_rate" json:"on_time_rate"`
	AvgQuality       float64         `db:"avg_quality" json:"avg_quality"`
	AvgCommunication float64         `db:"avg_communication" json:"avg_communication"`
	AvgResponseHours float64         `db:"avg_response_hours" json:"avg_response_hours"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// ReputationHistory — журнал изменений репутации, только добавление.
// Текущий reputation_score профиля — производное кэшированное значение:
// сумма записанных дельт всегда равна ему.
type ReputationHistory struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	Address     string     `db:"address" json:"address"`
	Delta       int        `db:"delta" json:"delta"`
	ScoreBefore int        `db:"score_before" json:"score_before"`
	ScoreAfter  int        `db:"score_after" json:"score_after"`
	Reason      string     `db:"reason" json:"reason"`
	JobID       *uuid.UUID `db:"job_id" json:"job_id,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// SkillVerification — событие подтверждения навыка, только добавление.
// Повторное подтверждение уже проверенного навыка фиксируется в журнале
// с нулевой дельтой.
type SkillVerification struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	Address         string     `db:"address" json:"address"`
	Skill           string     `db:"skill" json:"skill"`
	VerifierAddress string     `db:"verifier_address" json:"verifier_address"`
	JobID           *uuid.UUID `db:"job_id" json:"job_id,omitempty"`
	Applied         bool       `db:"applied" json:"applied"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}
