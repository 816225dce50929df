package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/ignatzorin/workchain-backend/internal/models"
	"github.com/ignatzorin/workchain-backend/internal/pkg/apperror"
)

type mockRatingRepo struct {
	mock.Mock
}

func (m *mockRatingRepo) Create(ctx context.Context, rating *models.JobRating) error {
	args := m.Called(ctx, rating)
	return args.Error(0)
}

func (m *mockRatingRepo) GetByJobAndDirection(ctx context.Context, jobID uuid.UUID, direction string) (*models.JobRating, error) {
	args := m.Called(ctx, jobID, direction)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.JobRating), args.Error(1)
}

func (m *mockRatingRepo) ListByRated(ctx context.Context, address string, limit, offset int) ([]models.JobRating, error) {
	args := m.Called(ctx, address, limit, offset)
	return args.Get(0).([]models.JobRating), args.Error(1)
}

func (m *mockRatingRepo) Aggregates(ctx context.Context, address string) (*models.RatingAggregates, error) {
	args := m.Called(ctx, address)
	return args.Get(0).(*models.RatingAggregates), args.Error(1)
}

type mockJobRatingSetter struct {
	mock.Mock
}

func (m *mockJobRatingSetter) SetRating(ctx context.Context, jobID uuid.UUID, rating int) error {
	args := m.Called(ctx, jobID, rating)
	return args.Error(0)
}

type mockRatingReputation struct {
	mock.Mock
}

func (m *mockRatingReputation) OnRatingReceived(ctx context.Context, rating *models.JobRating) error {
	args := m.Called(ctx, rating.RatedAddress, rating.Overall)
	return args.Error(0)
}

func newRatingFixture() (*mockRatingRepo, *mockJobReader, *mockJobRatingSetter, *mockRatingReputation, *RatingService) {
	repo := new(mockRatingRepo)
	jobs := new(mockJobReader)
	setter := new(mockJobRatingSetter)
	reputation := new(mockRatingReputation)
	svc := NewRatingService(repo, jobs, setter, reputation)
	return repo, jobs, setter, reputation, svc
}

func validRating() CreateRatingInput {
	return CreateRatingInput{Overall: 5, Quality: 4, Communication: 5, Timeliness: 5, DeliveredOnTime: true}
}

func paidJob(employer, worker string) *models.Job {
	job := filledJob(employer, worker)
	job.Status = models.JobStatusPaid
	return job
}

func TestRatingService_Create_ScoreOutOfRange(t *testing.T) {
	_, _, _, _, svc := newRatingFixture()
	ctx := context.Background()

	input := validRating()
	input.Quality = 6
	_, err := svc.Create(ctx, uuid.New(), "0xemployer", input)
	assert.Error(t, err)
	assert.True(t, apperror.IsValidation(err))

	input = validRating()
	input.Overall = 0
	_, err = svc.Create(ctx, uuid.New(), "0xemployer", input)
	assert.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
}

func TestRatingService_Create_JobNotPaid(t *testing.T) {
	_, jobs, _, _, svc := newRatingFixture()
	ctx := context.Background()

	job := filledJob("0xemployer", "0xworker")
	jobs.On("GetByID", ctx, job.ID).Return(job, nil)

	_, err := svc.Create(ctx, job.ID, "0xemployer", validRating())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "оплаченному заказу")
}

func TestRatingService_Create_NotParticipant(t *testing.T) {
	_, jobs, _, _, svc := newRatingFixture()
	ctx := context.Background()

	job := paidJob("0xemployer", "0xworker")
	jobs.On("GetByID", ctx, job.ID).Return(job, nil)

	_, err := svc.Create(ctx, job.ID, "0xstranger", validRating())
	assert.ErrorIs(t, err, apperror.ErrNotAuthorized)
}

func TestRatingService_Create_EmployerRatesWorker(t *testing.T) {
	repo, jobs, setter, reputation, svc := newRatingFixture()
	ctx := context.Background()

	job := paidJob("0xemployer", "0xworker")
	jobs.On("GetByID", ctx, job.ID).Return(job, nil)
	repo.On("Create", ctx, mock.AnythingOfType("*models.JobRating")).Return(nil)
	setter.On("SetRating", ctx, job.ID, 5).Return(nil)
	reputation.On("OnRatingReceived", ctx, "0xworker", 5).Return(nil)

	rating, err := svc.Create(ctx, job.ID, "0xEmployer", validRating())
	assert.NoError(t, err)
	assert.Equal(t, models.RatingDirectionEmployerToWorker, rating.Direction)
	assert.Equal(t, "0xworker", rating.RatedAddress)
	setter.AssertExpectations(t)
	reputation.AssertExpectations(t)
}

func TestRatingService_Create_WorkerRatesEmployer(t *testing.T) {
	repo, jobs, setter, reputation, svc := newRatingFixture()
	ctx := context.Background()

	job := paidJob("0xemployer", "0xworker")
	jobs.On("GetByID", ctx, job.ID).Return(job, nil)
	repo.On("Create", ctx, mock.AnythingOfType("*models.JobRating")).Return(nil)
	reputation.On("OnRatingReceived", ctx, "0xemployer", 5).Return(nil)

	rating, err := svc.Create(ctx, job.ID, "0xworker", validRating())
	assert.NoError(t, err)
	assert.Equal(t, models.RatingDirectionWorkerToEmployer, rating.Direction)
	assert.Equal(t, "0xemployer", rating.RatedAddress)
	// Оценка исполнителя не попадает на карточку заказа.
	setter.AssertNotCalled(t, "SetRating", ctx, job.ID, 5)
}

func TestRatingService_Create_Duplicate(t *testing.T) {
	repo, jobs, _, _, svc := newRatingFixture()
	ctx := context.Background()

	job := paidJob("0xemployer", "0xworker")
	jobs.On("GetByID", ctx, job.ID).Return(job, nil)
	repo.On("Create", ctx, mock.AnythingOfType("*models.JobRating")).Return(apperror.ErrDuplicateRating)

	_, err := svc.Create(ctx, job.ID, "0xemployer", validRating())
	assert.ErrorIs(t, err, apperror.ErrDuplicateRating)
}

func TestRatingService_GetForJob_UnknownDirection(t *testing.T) {
	_, _, _, _, svc := newRatingFixture()

	_, err := svc.GetForJob(context.Background(), uuid.New(), "sideways")
	assert.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
}

func TestRatingService_ListForAddress_DefaultLimit(t *testing.T) {
	repo, _, _, _, svc := newRatingFixture()
	ctx := context.Background()

	repo.On("ListByRated", ctx, "0xworker", 20, 0).Return([]models.JobRating{}, nil)

	_, err := svc.ListForAddress(ctx, "0xWorker", 0, 0)
	assert.NoError(t, err)
	repo.AssertExpectations(t)
}
