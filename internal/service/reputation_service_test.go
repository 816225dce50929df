package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/ignatzorin/workchain-backend/internal/models"
)

type mockProfileRepo struct {
	mock.Mock
	profile *models.WorkerProfile
}

func (m *mockProfileRepo) GetByAddress(ctx context.Context, address string) (*models.WorkerProfile, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WorkerProfile), args.Error(1)
}

func (m *mockProfileRepo) GetOrCreate(ctx context.Context, address string) (*models.WorkerProfile, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WorkerProfile), args.Error(1)
}

func (m *mockProfileRepo) UpdateSkills(ctx context.Context, address string, skills []string) (*models.WorkerProfile, error) {
	args := m.Called(ctx, address, skills)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WorkerProfile), args.Error(1)
}

func (m *mockProfileRepo) ApplyDelta(ctx context.Context, address string, delta int, reason string, jobID *uuid.UUID, mutate func(profile *models.WorkerProfile) error) (*models.WorkerProfile, error) {
	args := m.Called(ctx, address, delta, reason)
	if args.Error(1) != nil {
		return nil, args.Error(1)
	}
	profile := m.profile
	if profile == nil {
		profile = &models.WorkerProfile{Address: address}
	}
	before := profile.ReputationScore
	after := before + delta
	if after < 0 {
		after = 0
	}
	profile.ReputationScore = after
	if mutate != nil {
		if err := mutate(profile); err != nil {
			return nil, err
		}
	}
	return profile, nil
}

func (m *mockProfileRepo) ListHistory(ctx context.Context, address string, limit, offset int) ([]models.ReputationHistory, error) {
	args := m.Called(ctx, address, limit, offset)
	return args.Get(0).([]models.ReputationHistory), args.Error(1)
}

func (m *mockProfileRepo) CreateSkillVerification(ctx context.Context, verification *models.SkillVerification) error {
	args := m.Called(ctx, verification)
	return args.Error(0)
}

func (m *mockProfileRepo) ListSkillVerifications(ctx context.Context, address string) ([]models.SkillVerification, error) {
	args := m.Called(ctx, address)
	return args.Get(0).([]models.SkillVerification), args.Error(1)
}

func (m *mockProfileRepo) ListTop(ctx context.Context, limit int) ([]models.WorkerProfile, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]models.WorkerProfile), args.Error(1)
}

func TestReputationService_OnJobCompleted_OnTime(t *testing.T) {
	repo := new(mockProfileRepo)
	repo.profile = &models.WorkerProfile{Address: "0xabc"}
	svc := NewReputationService(repo)
	ctx := context.Background()
	jobID := uuid.New()

	repo.On("ApplyDelta", ctx, "0xabc", 10, models.ReputationReasonJobCompleted).Return(nil, nil)
	repo.On("ApplyDelta", ctx, "0xabc", 5, models.ReputationReasonOnTimeBonus).Return(nil, nil)

	err := svc.OnJobCompleted(ctx, jobID, "0xABC", decimal.NewFromInt(500), true)
	assert.NoError(t, err)
	assert.Equal(t, 1, repo.profile.CompletedJobs)
	assert.True(t, repo.profile.TotalEarned.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, 15, repo.profile.ReputationScore)
	repo.AssertExpectations(t)
}

func TestReputationService_OnJobCompleted_Late(t *testing.T) {
	repo := new(mockProfileRepo)
	repo.profile = &models.WorkerProfile{Address: "0xabc"}
	svc := NewReputationService(repo)
	ctx := context.Background()

	repo.On("ApplyDelta", ctx, "0xabc", 10, models.ReputationReasonJobCompleted).Return(nil, nil)

	err := svc.OnJobCompleted(ctx, uuid.New(), "0xabc", decimal.NewFromInt(100), false)
	assert.NoError(t, err)
	assert.Equal(t, 10, repo.profile.ReputationScore)
	repo.AssertNotCalled(t, "ApplyDelta", ctx, "0xabc", 5, models.ReputationReasonOnTimeBonus)
}

func TestReputationService_OnRatingReceived_WeightedDelta(t *testing.T) {
	repo := new(mockProfileRepo)
	repo.profile = &models.WorkerProfile{Address: "0xrated"}
	svc := NewReputationService(repo)
	ctx := context.Background()

	// Репутация автора 50 — вес ровно 1.0, пятёрка даёт +2.
	rater := &models.WorkerProfile{Address: "0xrater", ReputationScore: 50}
	repo.On("GetOrCreate", ctx, "0xrater").Return(rater, nil)
	repo.On("ApplyDelta", ctx, "0xrated", 2, models.ReputationReasonRatingReceived).Return(nil, nil)

	err := svc.OnRatingReceived(ctx, &models.JobRating{
		JobID:           uuid.New(),
		RaterAddress:    "0xRater",
		RatedAddress:    "0xRated",
		Overall:         5,
		Quality:         4,
		Communication:   5,
		DeliveredOnTime: true,
	})
	assert.NoError(t, err)
	assert.Equal(t, 4.0, repo.profile.AvgQuality)
	assert.Equal(t, 5.0, repo.profile.AvgCommunication)
	assert.Equal(t, 1.0, repo.profile.OnTimeRate)
	repo.AssertExpectations(t)
}

func TestReputationService_OnRatingReceived_FreshRaterBarelyMoves(t *testing.T) {
	repo := new(mockProfileRepo)
	repo.profile = &models.WorkerProfile{Address: "0xrated"}
	svc := NewReputationService(repo)
	ctx := context.Background()

	// Свежий автор: вес 0.2, даже пятёрка округляется до нуля.
	rater := &models.WorkerProfile{Address: "0xrater", ReputationScore: 0}
	repo.On("GetOrCreate", ctx, "0xrater").Return(rater, nil)
	repo.On("ApplyDelta", ctx, "0xrated", 0, models.ReputationReasonRatingReceived).Return(nil, nil)

	err := svc.OnRatingReceived(ctx, &models.JobRating{
		JobID:        uuid.New(),
		RaterAddress: "0xrater",
		RatedAddress: "0xrated",
		Overall:      5,
	})
	assert.NoError(t, err)
}

func TestReputationService_ScoreFloorsAtZero(t *testing.T) {
	repo := new(mockProfileRepo)
	repo.profile = &models.WorkerProfile{Address: "0xworker", ReputationScore: 10}
	svc := NewReputationService(repo)
	ctx := context.Background()

	repo.On("ApplyDelta", ctx, "0xworker", -25, models.ReputationReasonDisputeResolved).Return(nil, nil)

	err := svc.OnDisputeResolved(ctx, uuid.New(), "0xworker", "", models.OutcomeFavorEmployer, decimal.Zero)
	assert.NoError(t, err)
	assert.Equal(t, 0, repo.profile.ReputationScore)
}

func TestReputationService_OnDisputeResolved_FavorWorker(t *testing.T) {
	repo := new(mockProfileRepo)
	svc := NewReputationService(repo)
	ctx := context.Background()
	jobID := uuid.New()

	repo.On("ApplyDelta", ctx, "0xworker", 20, models.ReputationReasonDisputeResolved).Return(nil, nil)
	repo.On("ApplyDelta", ctx, "0xemployer", -10, models.ReputationReasonDisputeResolved).Return(nil, nil)

	err := svc.OnDisputeResolved(ctx, jobID, "0xWorker", "0xEmployer", models.OutcomeFavorWorker, decimal.NewFromInt(1))
	assert.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestReputationService_OnDisputeResolved_PartialEvenSplit(t *testing.T) {
	repo := new(mockProfileRepo)
	svc := NewReputationService(repo)
	ctx := context.Background()

	// Ровный раздел: round(10*0.5 - 5) = 0, дельта заказчика тоже нулевая
	// и запись по нему не создаётся.
	repo.On("ApplyDelta", ctx, "0xworker", 0, models.ReputationReasonDisputeResolved).Return(nil, nil)

	ratio, _ := decimal.NewFromString("0.5")
	err := svc.OnDisputeResolved(ctx, uuid.New(), "0xworker", "0xemployer", models.OutcomePartial, ratio)
	assert.NoError(t, err)
	repo.AssertNotCalled(t, "ApplyDelta", ctx, "0xemployer", 0, models.ReputationReasonDisputeResolved)
}

func TestReputationService_OnSkillVerified_New(t *testing.T) {
	repo := new(mockProfileRepo)
	repo.profile = &models.WorkerProfile{Address: "0xworker"}
	svc := NewReputationService(repo)
	ctx := context.Background()

	repo.On("GetOrCreate", ctx, "0xworker").Return(repo.profile, nil)
	repo.On("CreateSkillVerification", ctx, mock.AnythingOfType("*models.SkillVerification")).Return(nil)
	repo.On("ApplyDelta", ctx, "0xworker", 15, models.ReputationReasonSkillVerified).Return(nil, nil)

	verification, err := svc.OnSkillVerified(ctx, "0xWorker", "  Golang ", "0xverifier", nil)
	assert.NoError(t, err)
	assert.True(t, verification.Applied)
	assert.Equal(t, "golang", verification.Skill)
	assert.Contains(t, []string(repo.profile.VerifiedSkills), "golang")
	assert.Equal(t, 15, repo.profile.ReputationScore)
}

func TestReputationService_OnSkillVerified_DuplicateZeroDelta(t *testing.T) {
	repo := new(mockProfileRepo)
	repo.profile = &models.WorkerProfile{
		Address:        "0xworker",
		VerifiedSkills: []string{"golang"},
	}
	svc := NewReputationService(repo)
	ctx := context.Background()

	repo.On("GetOrCreate", ctx, "0xworker").Return(repo.profile, nil)
	repo.On("CreateSkillVerification", ctx, mock.AnythingOfType("*models.SkillVerification")).Return(nil)

	verification, err := svc.OnSkillVerified(ctx, "0xworker", "golang", "0xverifier", nil)
	assert.NoError(t, err)
	assert.False(t, verification.Applied)
	repo.AssertNotCalled(t, "ApplyDelta", ctx, "0xworker", 15, models.ReputationReasonSkillVerified)
}

func TestReputationService_OnSkillVerified_SelfVerification(t *testing.T) {
	repo := new(mockProfileRepo)
	svc := NewReputationService(repo)

	_, err := svc.OnSkillVerified(context.Background(), "0xworker", "golang", "0xWORKER", nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "собственный навык")
}

func TestRatingWeight_Clamps(t *testing.T) {
	assert.Equal(t, 0.2, ratingWeight(0))
	assert.Equal(t, 0.2, ratingWeight(10))
	assert.Equal(t, 1.0, ratingWeight(50))
	assert.Equal(t, 2.0, ratingWeight(100))
	assert.Equal(t, 2.0, ratingWeight(1000))
}

func TestSmooth(t *testing.T) {
	// Первое значение принимается как есть, дальше — сглаживание 0.1.
	assert.Equal(t, 4.0, smooth(0, 4.0))
	assert.InDelta(t, 4.1, smooth(4.0, 5.0), 1e-9)
}

func TestReputationService_UpdateSkills_Normalizes(t *testing.T) {
	repo := new(mockProfileRepo)
	profile := &models.WorkerProfile{Address: "0xworker"}
	svc := NewReputationService(repo)
	ctx := context.Background()

	repo.On("GetOrCreate", ctx, "0xworker").Return(profile, nil)
	repo.On("UpdateSkills", ctx, "0xworker", []string{"go", "sql"}).Return(profile, nil)

	_, err := svc.UpdateSkills(ctx, "0xWorker", []string{" Go ", "SQL", "go", ""})
	assert.NoError(t, err)
	repo.AssertExpectations(t)
}
