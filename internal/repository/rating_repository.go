package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/workchain-backend/internal/models"
	"github.com/ignatzorin/workchain-backend/internal/pkg/apperror"
)

var ErrRatingNotFound = errors.New("rating not found")

type RatingRepository struct {
	db *sqlx.DB
}

func NewRatingRepository(db *sqlx.DB) *RatingRepository {
	return &RatingRepository{db: db}
}

// Create сохраняет отзыв. Повтор по паре (заказ, направление) отсекает
// уникальный индекс.
func (r *RatingRepository) Create(ctx context.Context, rating *models.JobRating) error {
	err := r.db.GetContext(ctx, rating, `
		INSERT INTO job_ratings (job_id, rater_address, rated_address, direction,
			overall, quality, communication, timeliness, review, delivered_on_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING *
	`, rating.JobID, rating.RaterAddress, rating.RatedAddress, rating.Direction,
		rating.Overall, rating.Quality, rating.Communication, rating.Timeliness,
		rating.Review, rating.DeliveredOnTime)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.ErrDuplicateRating
		}
		return fmt.Errorf("rating repository: create %w", err)
	}
	return nil
}

// GetByJobAndDirection возвращает отзыв по заказу в заданном направлении.
func (r *RatingRepository) GetByJobAndDirection(ctx context.Context, jobID uuid.UUID, direction string) (*models.JobRating, error) {
	var rating models.JobRating
	err := r.db.GetContext(ctx, &rating, `
		SELECT * FROM job_ratings WHERE job_id = $1 AND direction = $2
	`, jobID, direction)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRatingNotFound
		}
		return nil, err
	}
	return &rating, nil
}

// ListByRated возвращает отзывы об участнике, новые первыми.
func (r *RatingRepository) ListByRated(ctx context.Context, address string, limit, offset int) ([]models.JobRating, error) {
	var ratings []models.JobRating
	err := r.db.SelectContext(ctx, &ratings, `
		SELECT * FROM job_ratings WHERE rated_address = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, address, limit, offset)
	return ratings, err
}

// Aggregates возвращает сводку по отзывам об исполнителе для пересчёта
// средних в профиле.
func (r *RatingRepository) Aggregates(ctx context.Context, address string) (*models.RatingAggregates, error) {
	var agg models.RatingAggregates
	err := r.db.GetContext(ctx, &agg, `
		SELECT
			COUNT(*)                                              AS total,
			COALESCE(AVG(quality), 0)                             AS avg_quality,
			COALESCE(AVG(communication), 0)                       AS avg_communication,
			COALESCE(AVG(CASE WHEN delivered_on_time THEN 1.0 ELSE 0.0 END), 0) AS on_time_rate
		FROM job_ratings
		WHERE rated_address = $1 AND direction = 'employer_to_worker'
	`, address)
	if err != nil {
		return nil, fmt.Errorf("rating repository: aggregates %w", err)
	}
	return &agg, nil
}
