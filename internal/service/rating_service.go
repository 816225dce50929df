package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/workchain-backend/internal/logger"
	"github.com/ignatzorin/workchain-backend/internal/models"
	"github.com/ignatzorin/workchain-backend/internal/pkg/apperror"
)

type RatingRepository interface {
	Create(ctx context.Context, rating *models.JobRating) error
	GetByJobAndDirection(ctx context.Context, jobID uuid.UUID, direction string) (*models.JobRating, error)
	ListByRated(ctx context.Context, address string, limit, offset int) ([]models.JobRating, error)
	Aggregates(ctx context.Context, address string) (*models.RatingAggregates, error)
}

// JobRatingSetter переносит итоговую оценку на карточку заказа.
type JobRatingSetter interface {
	SetRating(ctx context.Context, jobID uuid.UUID, rating int) error
}

// RatingReputation передаёт полученный отзыв движку репутации.
type RatingReputation interface {
	OnRatingReceived(ctx context.Context, rating *models.JobRating) error
}

type CreateRatingInput struct {
	Overall         int
	Quality         int
	Communication   int
	Timeliness      int
	Review          *string
	DeliveredOnTime bool
}

// RatingService — отзывы по завершённым заказам: один на пару
// (заказ, направление), неизменяемый после создания.
type RatingService struct {
	repo       RatingRepository
	jobs       JobReader
	jobRating  JobRatingSetter
	reputation RatingReputation
	log        *logrus.Entry
}

func NewRatingService(repo RatingRepository, jobs JobReader, jobRating JobRatingSetter, reputation RatingReputation) *RatingService {
	return &RatingService{
		repo:       repo,
		jobs:       jobs,
		jobRating:  jobRating,
		reputation: reputation,
		log:        logger.WithModule("rating"),
	}
}

// Create сохраняет отзыв стороны сделки по оплаченному заказу.
// Направление выводится из роли автора; оценка заказчика дополнительно
// попадает на карточку заказа и в движок репутации.
func (s *RatingService) Create(ctx context.Context, jobID uuid.UUID, rater string, input CreateRatingInput) (*models.JobRating, error) {
	for _, score := range []int{input.Overall, input.Quality, input.Communication, input.Timeliness} {
		if score < 1 || score > 5 {
			return nil, apperror.New(apperror.ErrCodeValidation, "оценка должна быть от 1 до 5")
		}
	}

	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, mapJobRepoError(err)
	}
	if job.Status != models.JobStatusPaid {
		return nil, apperror.New(apperror.ErrCodeStateConflict, "отзыв можно оставить только по оплаченному заказу")
	}

	rater = models.NormalizeAddress(rater)
	var direction, rated string
	switch {
	case models.SameAddress(job.EmployerAddress, rater):
		direction = models.RatingDirectionEmployerToWorker
		rated = *job.WorkerAddress
	case job.WorkerAddress != nil && models.SameAddress(*job.WorkerAddress, rater):
		direction = models.RatingDirectionWorkerToEmployer
		rated = job.EmployerAddress
	default:
		return nil, apperror.ErrNotAuthorized
	}

	rating := &models.JobRating{
		JobID:           jobID,
		RaterAddress:    rater,
		RatedAddress:    rated,
		Direction:       direction,
		Overall:         input.Overall,
		Quality:         input.Quality,
		Communication:   input.Communication,
		Timeliness:      input.Timeliness,
		Review:          input.Review,
		DeliveredOnTime: input.DeliveredOnTime,
	}
	if err := s.repo.Create(ctx, rating); err != nil {
		return nil, err
	}

	if direction == models.RatingDirectionEmployerToWorker {
		if err := s.jobRating.SetRating(ctx, jobID, input.Overall); err != nil {
			s.log.WithError(err).WithField("job_id", jobID).Error("не удалось записать оценку на заказ")
		}
	}
	if err := s.reputation.OnRatingReceived(ctx, rating); err != nil {
		s.log.WithError(err).WithField("job_id", jobID).Error("не удалось применить репутацию за отзыв")
	}
	return rating, nil
}

// GetForJob возвращает отзыв по заказу в заданном направлении.
func (s *RatingService) GetForJob(ctx context.Context, jobID uuid.UUID, direction string) (*models.JobRating, error) {
	if direction != models.RatingDirectionEmployerToWorker && direction != models.RatingDirectionWorkerToEmployer {
		return nil, apperror.New(apperror.ErrCodeValidation, "неизвестное направление отзыва")
	}
	return s.repo.GetByJobAndDirection(ctx, jobID, direction)
}

// ListForAddress возвращает отзывы об участнике.
func (s *RatingService) ListForAddress(ctx context.Context, address string, limit, offset int) ([]models.JobRating, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ListByRated(ctx, models.NormalizeAddress(address), limit, offset)
}

// AggregatesFor возвращает сводку по отзывам об исполнителе.
func (s *RatingService) AggregatesFor(ctx context.Context, address string) (*models.RatingAggregates, error) {
	return s.repo.Aggregates(ctx, models.NormalizeAddress(address))
}
