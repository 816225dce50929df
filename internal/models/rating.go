package models

import (
	"time"

	"github.com/google/uuid"
)

// Направление отзыва.
const (
	RatingDirectionEmployerToWorker = "employer_to_worker"
	RatingDirectionWorkerToEmployer = "worker_to_employer"
)

// JobRating — отзыв по завершённому заказу. Создаётся один раз на пару
// (заказ, направление) и после создания не изменяется.
type JobRating struct {
	ID              uuid.UUID `db:"id" json:"id"`
	JobID           uuid.UUID `db:"job_id" json:"job_id"`
	RaterAddress    string    `db:"rater_address" json:"rater_address"`
	RatedAddress    string    `db:"rated_address" json:"rated_address"`
	Direction       string    `db:"direction" json:"direction"`
	Overall         int       `db:"overall" json:"overall"`
	Quality         int       `db:"quality" json:"quality"`
	Communication   int       `db:"communication" json:"communication"`
	Timeliness      int       `db:"timeliness" json:"timeliness"`
	Review          *string   `db:"review" json:"review,omitempty"`
	DeliveredOnTime bool      `db:"delivered_on_time" json:"delivered_on_time"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// RatingAggregates — сводка по отзывам об исполнителе.
type RatingAggregates struct {
	Total            int     `db:"total" json:"total"`
	AvgQuality       float64 `db:"avg_quality" json:"avg_quality"`
	AvgCommunication float64 `db:"avg_communication" json:"avg_communication"`
	OnTimeRate       float64 `db:"on_time_rate" json:"on_time_rate"`
}
