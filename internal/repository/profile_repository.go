package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ignatzorin/workchain-backend/internal/models"
)

var ErrProfileNotFound = errors.New("worker profile not found")

type ProfileRepository struct {
	db *sqlx.DB
}

func NewProfileRepository(db *sqlx.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// GetByAddress возвращает профиль исполнителя.
func (r *ProfileRepository) GetByAddress(ctx context.Context, address string) (*models.WorkerProfile, error) {
	var profile models.WorkerProfile
	err := r.db.GetContext(ctx, &profile, `SELECT * FROM worker_profiles WHERE address = $1`, address)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("profile repository: get by address %w", err)
	}
	return &profile, nil
}

// GetOrCreate возвращает профиль, создавая пустой при первом обращении.
func (r *ProfileRepository) GetOrCreate(ctx context.Context, address string) (*models.WorkerProfile, error) {
	var profile models.WorkerProfile
	err := r.db.GetContext(ctx, &profile, `
		INSERT INTO worker_profiles (address)
		VALUES ($1)
		ON CONFLICT (address) DO UPDATE SET updated_at = NOW()
		RETURNING *
	`, address)
	if err != nil {
		return nil, fmt.Errorf("profile repository: get or create %w", err)
	}
	return &profile, nil
}

// UpdateSkills заменяет заявленные навыки профиля.
func (r *ProfileRepository) UpdateSkills(ctx context.Context, address string, skills []string) (*models.WorkerProfile, error) {
	var profile models.WorkerProfile
	err := r.db.GetContext(ctx, &profile, `
		UPDATE worker_profiles SET skills = $2, updated_at = NOW()
		WHERE address = $1
		RETURNING *
	`, address, pq.StringArray(skills))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return &profile, nil
}

// ApplyDelta изменяет рейтинг под блокировкой строки профиля. Итог
// обрезается снизу нулём, а в историю пишется фактически применённая
// дельта, так что сумма истории всегда сходится с текущим рейтингом.
// mutate может дополнительно изменить счётчики профиля в той же
// транзакции (выполненные заказы, заработок, навыки, бейджи).
func (r *ProfileRepository) ApplyDelta(ctx context.Context, address string, delta int, reason string, jobID *uuid.UUID, mutate func(profile *models.WorkerProfile) error) (*models.WorkerProfile, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var profile models.WorkerProfile
	err = tx.GetContext(ctx, &profile, `
		INSERT INTO worker_profiles (address)
		VALUES ($1)
		ON CONFLICT (address) DO UPDATE SET updated_at = NOW()
		RETURNING *
	`, address)
	if err != nil {
		return nil, err
	}
	// Повторный SELECT FOR UPDATE: upsert с DO UPDATE уже держит
	// блокировку строки, но явная форма не зависит от этой детали.
	err = tx.GetContext(ctx, &profile, `SELECT * FROM worker_profiles WHERE address = $1 FOR UPDATE`, address)
	if err != nil {
		return nil, err
	}

	before := profile.ReputationScore
	after := before + delta
	if after < 0 {
		after = 0
	}
	applied := after - before

	if mutate != nil {
		if err := mutate(&profile); err != nil {
			return nil, err
		}
	}

	err = tx.GetContext(ctx, &profile, `
		UPDATE worker_profiles
		SET reputation_score = $2,
		    completed_jobs = $3,
		    total_earned = $4,
		    skills = $5,
		    verified_skills = $6,
		    badges = $7,
		    on_time_rate = $8,
		    avg_quality = $9,
		    avg_communication = $10,
		    avg_response_hours = $11,
		    updated_at = NOW()
		WHERE address = $1
		RETURNING *
	`, address, after, profile.CompletedJobs, profile.TotalEarned,
		profile.Skills, profile.VerifiedSkills, profile.Badges,
		profile.OnTimeRate, profile.AvgQuality, profile.AvgCommunication, profile.AvgResponseHours)
	if err != nil {
		return nil, err
	}

	if applied != 0 || delta != 0 {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO reputation_history (address, delta, score_before, score_after, reason, job_id)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, address, applied, before, after, reason, jobID)
		if err != nil {
			return nil, err
		}
	}

	return &profile, tx.Commit()
}

// ListHistory возвращает историю изменений рейтинга, новые записи первыми.
func (r *ProfileRepository) ListHistory(ctx context.Context, address string, limit, offset int) ([]models.ReputationHistory, error) {
	var history []models.ReputationHistory
	err := r.db.SelectContext(ctx, &history, `
		SELECT * FROM reputation_history WHERE address = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, address, limit, offset)
	return history, err
}

// CreateSkillVerification фиксирует событие подтверждения навыка.
// Повторы по уже подтверждённому навыку тоже записываются: журнал
// только добавляется, баллы за них не начисляются (applied = false).
func (r *ProfileRepository) CreateSkillVerification(ctx context.Context, verification *models.SkillVerification) error {
	err := r.db.GetContext(ctx, verification, `
		INSERT INTO skill_verifications (address, skill, verifier_address, job_id, applied)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *
	`, verification.Address, verification.Skill, verification.VerifierAddress, verification.JobID, verification.Applied)
	if err != nil {
		return fmt.Errorf("profile repository: create skill verification %w", err)
	}
	return nil
}

// ListSkillVerifications возвращает подтверждения навыков исполнителя.
func (r *ProfileRepository) ListSkillVerifications(ctx context.Context, address string) ([]models.SkillVerification, error) {
	var verifications []models.SkillVerification
	err := r.db.SelectContext(ctx, &verifications, `
		SELECT * FROM skill_verifications WHERE address = $1 ORDER BY created_at DESC
	`, address)
	return verifications, err
}

// ListTop возвращает исполнителей с наибольшим рейтингом.
func (r *ProfileRepository) ListTop(ctx context.Context, limit int) ([]models.WorkerProfile, error) {
	var profiles []models.WorkerProfile
	err := r.db.SelectContext(ctx, &profiles, `
		SELECT * FROM worker_profiles ORDER BY reputation_score DESC, completed_jobs DESC LIMIT $1
	`, limit)
	return profiles, err
}
