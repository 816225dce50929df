package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	chainmock "github.com/ignatzorin/workchain-backend/internal/chain/mock"
	"github.com/ignatzorin/workchain-backend/internal/models"
	"github.com/ignatzorin/workchain-backend/internal/pkg/apperror"
	"github.com/ignatzorin/workchain-backend/internal/repository"
)

type mockDisputeRepo struct {
	mock.Mock
	job     *models.Job
	dispute *models.Dispute
}

func (m *mockDisputeRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) GetOpenByJobID(ctx context.Context, jobID uuid.UUID) (*models.Dispute, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) ListByStatus(ctx context.Context, status models.DisputeStatus, limit, offset int) ([]models.Dispute, error) {
	args := m.Called(ctx, status, limit, offset)
	return args.Get(0).([]models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) ListExpired(ctx context.Context, now time.Time) ([]models.Dispute, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) RaiseLocked(ctx context.Context, jobID uuid.UUID, raiser, reason string, disputeType models.DisputeType, stake decimal.Decimal, deadline time.Time, validate func(tx *sqlx.Tx, job *models.Job) error) (*models.Dispute, error) {
	args := m.Called(ctx, jobID, raiser)
	if validate != nil && m.job != nil {
		if err := validate(nil, m.job); err != nil {
			return nil, err
		}
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) CreateVote(ctx context.Context, vote *models.DisputeVote) error {
	args := m.Called(ctx, vote)
	return args.Error(0)
}

func (m *mockDisputeRepo) MarkVoting(ctx context.Context, disputeID uuid.UUID) error {
	args := m.Called(ctx, disputeID)
	return args.Error(0)
}

func (m *mockDisputeRepo) ListVotes(ctx context.Context, disputeID uuid.UUID) ([]models.DisputeVote, error) {
	args := m.Called(ctx, disputeID)
	return args.Get(0).([]models.DisputeVote), args.Error(1)
}

func (m *mockDisputeRepo) Tally(ctx context.Context, disputeID uuid.UUID) (*models.DisputeTally, error) {
	args := m.Called(ctx, disputeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DisputeTally), args.Error(1)
}

func (m *mockDisputeRepo) ExtendDeadline(ctx context.Context, disputeID uuid.UUID, newDeadline time.Time) (bool, error) {
	args := m.Called(ctx, disputeID)
	return args.Bool(0), args.Error(1)
}

func (m *mockDisputeRepo) ResolveLocked(ctx context.Context, disputeID uuid.UUID, outcome models.DisputeOutcome, apply func(tx *sqlx.Tx, dispute *models.Dispute, job *models.Job) error) (*models.Dispute, error) {
	args := m.Called(ctx, disputeID, outcome)
	if args.Error(1) != nil {
		return nil, args.Error(1)
	}
	if apply != nil {
		if err := apply(nil, m.dispute, m.job); err != nil {
			return nil, err
		}
	}
	resolved := *m.dispute
	resolved.Status = models.DisputeStatusResolved
	resolved.Outcome = &outcome
	return &resolved, nil
}

func (m *mockDisputeRepo) UpdateJobTx(ctx context.Context, tx *sqlx.Tx, job *models.Job, actor *string, action string, oldStatus, newStatus models.JobStatus) error {
	args := m.Called(ctx, job.ID, action, newStatus)
	return args.Error(0)
}

type mockJobReader struct {
	mock.Mock
}

func (m *mockJobReader) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Job), args.Error(1)
}

type mockDisputeEscrow struct {
	mock.Mock
	runApply bool
}

func (m *mockDisputeEscrow) SettleTx(ctx context.Context, tx *sqlx.Tx, jobID uuid.UUID, status models.EscrowStatus, confirm repository.ConfirmFunc, apply func(escrow *models.Escrow, txRef string) error) (*models.Escrow, error) {
	args := m.Called(ctx, jobID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	escrow := args.Get(0).(*models.Escrow)
	txRef := ""
	if confirm != nil {
		ref, err := confirm(escrow)
		if err != nil {
			return nil, err
		}
		txRef = ref
	}
	if m.runApply && apply != nil {
		if err := apply(escrow, txRef); err != nil {
			return nil, err
		}
	}
	escrow.SettleTxRef = &txRef
	escrow.Status = status
	return escrow, nil
}

func (m *mockDisputeEscrow) CreditTx(ctx context.Context, tx *sqlx.Tx, address string, amount decimal.Decimal, txType string, jobID *uuid.UUID, txRef *string, description string) error {
	args := m.Called(ctx, address, amount.String(), txType)
	return args.Error(0)
}

func (m *mockDisputeEscrow) DebitTx(ctx context.Context, tx *sqlx.Tx, address string, amount decimal.Decimal, txType string, jobID *uuid.UUID, txRef *string, description string) error {
	args := m.Called(ctx, address, amount.String(), txType)
	return args.Error(0)
}

type mockDisputeReputation struct {
	mock.Mock
}

func (m *mockDisputeReputation) OnDisputeResolved(ctx context.Context, jobID uuid.UUID, worker, employer string, outcome models.DisputeOutcome, workerRatio decimal.Decimal) error {
	args := m.Called(ctx, jobID, worker, employer, outcome)
	return args.Error(0)
}

func newDisputeFixture() (*mockDisputeRepo, *mockJobReader, *mockDisputeEscrow, *mockDisputeReputation, *DisputeService) {
	repo := new(mockDisputeRepo)
	jobs := new(mockJobReader)
	escrow := new(mockDisputeEscrow)
	reputation := new(mockDisputeReputation)
	svc := NewDisputeService(repo, jobs, escrow, chainmock.NewLedger(), reputation, nil,
		72*time.Hour, decimal.NewFromInt(100), decimal.NewFromInt(1))
	return repo, jobs, escrow, reputation, svc
}

func filledJob(employer, worker string) *models.Job {
	w := worker
	return &models.Job{
		ID:              uuid.New(),
		EmployerAddress: employer,
		WorkerAddress:   &w,
		Amount:          decimal.NewFromInt(1000),
		Status:          models.JobStatusFilled,
	}
}

func TestDisputeService_RaiseDispute_EmptyReason(t *testing.T) {
	_, _, _, _, svc := newDisputeFixture()

	_, err := svc.RaiseDispute(context.Background(), uuid.New(), "0xworker", "   ", models.DisputeTypeQuality, decimal.Zero)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "причину")
}

func TestDisputeService_RaiseDispute_UnknownType(t *testing.T) {
	_, _, _, _, svc := newDisputeFixture()

	_, err := svc.RaiseDispute(context.Background(), uuid.New(), "0xworker", "работа не принята", models.DisputeType("bogus"), decimal.Zero)
	assert.Error(t, err)
}

func TestDisputeService_RaiseDispute_StakeBelowMinimum(t *testing.T) {
	_, _, _, _, svc := newDisputeFixture()

	stake, _ := decimal.NewFromString("0.5")
	_, err := svc.RaiseDispute(context.Background(), uuid.New(), "0xworker", "работа не принята", models.DisputeTypeQuality, stake)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "минимальной")
}

func TestDisputeService_RaiseDispute_Success(t *testing.T) {
	repo, _, escrow, _, svc := newDisputeFixture()
	ctx := context.Background()

	job := filledJob("0xemployer", "0xworker")
	repo.job = job
	dispute := &models.Dispute{ID: uuid.New(), JobID: job.ID, RaiserAddress: "0xworker", Status: models.DisputeStatusOpen}

	repo.On("RaiseLocked", ctx, job.ID, "0xworker").Return(dispute, nil)
	escrow.On("DebitTx", ctx, "0xworker", "1", models.TransactionTypeDisputeStake).Return(nil)
	repo.On("MarkVoting", ctx, dispute.ID).Return(nil)

	created, err := svc.RaiseDispute(ctx, job.ID, "0xWorker", "работа не принята", models.DisputeTypeQuality, decimal.Zero)
	assert.NoError(t, err)
	assert.Equal(t, models.DisputeStatusVoting, created.Status)
	repo.AssertExpectations(t)
	escrow.AssertExpectations(t)
}

func TestDisputeService_RaiseDispute_NotParticipant(t *testing.T) {
	repo, _, _, _, svc := newDisputeFixture()
	ctx := context.Background()

	job := filledJob("0xemployer", "0xworker")
	repo.job = job
	repo.On("RaiseLocked", ctx, job.ID, "0xstranger").Return(nil, nil)

	_, err := svc.RaiseDispute(ctx, job.ID, "0xstranger", "работа не принята", models.DisputeTypeQuality, decimal.Zero)
	assert.ErrorIs(t, err, apperror.ErrNotAuthorized)
}

func TestDisputeService_RaiseDispute_JobNotDisputable(t *testing.T) {
	repo, _, _, _, svc := newDisputeFixture()
	ctx := context.Background()

	job := filledJob("0xemployer", "0xworker")
	job.Status = models.JobStatusOpen
	repo.job = job
	repo.On("RaiseLocked", ctx, job.ID, "0xworker").Return(nil, nil)

	_, err := svc.RaiseDispute(ctx, job.ID, "0xworker", "работа не принята", models.DisputeTypeQuality, decimal.Zero)
	assert.ErrorIs(t, err, apperror.ErrJobNotDisputable)
}

func TestDisputeService_RaiseDispute_AlreadyDisputed(t *testing.T) {
	repo, _, _, _, svc := newDisputeFixture()
	ctx := context.Background()

	job := filledJob("0xemployer", "0xworker")
	job.Status = models.JobStatusDisputed
	repo.job = job
	repo.On("RaiseLocked", ctx, job.ID, "0xworker").Return(nil, nil)

	_, err := svc.RaiseDispute(ctx, job.ID, "0xworker", "работа не принята", models.DisputeTypeQuality, decimal.Zero)
	assert.ErrorIs(t, err, apperror.ErrDuplicateDispute)
}

func TestDisputeService_CastVote_Participant(t *testing.T) {
	repo, jobs, _, _, svc := newDisputeFixture()
	ctx := context.Background()

	job := filledJob("0xemployer", "0xworker")
	dispute := &models.Dispute{
		ID:             uuid.New(),
		JobID:          job.ID,
		Status:         models.DisputeStatusVoting,
		VotingDeadline: time.Now().Add(time.Hour),
	}
	repo.On("GetByID", ctx, dispute.ID).Return(dispute, nil)
	jobs.On("GetByID", ctx, job.ID).Return(job, nil)

	_, err := svc.CastVote(ctx, dispute.ID, "0xEmployer", true, decimal.NewFromInt(10), nil)
	assert.ErrorIs(t, err, apperror.ErrConflictOfInterest)
}

func TestDisputeService_CastVote_AfterDeadline(t *testing.T) {
	repo, _, _, _, svc := newDisputeFixture()
	ctx := context.Background()

	dispute := &models.Dispute{
		ID:             uuid.New(),
		Status:         models.DisputeStatusVoting,
		VotingDeadline: time.Now().Add(-time.Minute),
	}
	repo.On("GetByID", ctx, dispute.ID).Return(dispute, nil)

	_, err := svc.CastVote(ctx, dispute.ID, "0xarbiter", true, decimal.NewFromInt(10), nil)
	assert.ErrorIs(t, err, apperror.ErrVotingClosed)
}

func TestDisputeService_CastVote_NonPositivePower(t *testing.T) {
	_, _, _, _, svc := newDisputeFixture()

	_, err := svc.CastVote(context.Background(), uuid.New(), "0xarbiter", true, decimal.Zero, nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "положительным")
}

func TestDisputeService_CastVote_Success(t *testing.T) {
	repo, jobs, _, _, svc := newDisputeFixture()
	ctx := context.Background()

	job := filledJob("0xemployer", "0xworker")
	dispute := &models.Dispute{
		ID:             uuid.New(),
		JobID:          job.ID,
		Status:         models.DisputeStatusVoting,
		VotingDeadline: time.Now().Add(time.Hour),
	}
	repo.On("GetByID", ctx, dispute.ID).Return(dispute, nil)
	jobs.On("GetByID", ctx, job.ID).Return(job, nil)
	repo.On("CreateVote", ctx, mock.AnythingOfType("*models.DisputeVote")).Return(nil)

	vote, err := svc.CastVote(ctx, dispute.ID, "0xArbiter", true, decimal.NewFromInt(40), nil)
	assert.NoError(t, err)
	assert.Equal(t, "0xarbiter", vote.VoterAddress)
	assert.True(t, vote.FavorPlaintiff)
}

func TestDisputeService_CastVote_TransientOpenAccepted(t *testing.T) {
	repo, jobs, _, _, svc := newDisputeFixture()
	ctx := context.Background()

	// Спор ещё не переведён в voting, но дедлайн выставлен при открытии.
	job := filledJob("0xemployer", "0xworker")
	dispute := &models.Dispute{
		ID:             uuid.New(),
		JobID:          job.ID,
		Status:         models.DisputeStatusOpen,
		VotingDeadline: time.Now().Add(time.Hour),
	}
	repo.On("GetByID", ctx, dispute.ID).Return(dispute, nil)
	jobs.On("GetByID", ctx, job.ID).Return(job, nil)
	repo.On("CreateVote", ctx, mock.AnythingOfType("*models.DisputeVote")).Return(nil)

	vote, err := svc.CastVote(ctx, dispute.ID, "0xarbiter", true, decimal.NewFromInt(30), nil)
	assert.NoError(t, err)
	assert.Equal(t, "0xarbiter", vote.VoterAddress)
}

func TestDisputeService_CastVote_ResolvedRejected(t *testing.T) {
	repo, _, _, _, svc := newDisputeFixture()
	ctx := context.Background()

	dispute := &models.Dispute{
		ID:             uuid.New(),
		Status:         models.DisputeStatusResolved,
		VotingDeadline: time.Now().Add(time.Hour),
	}
	repo.On("GetByID", ctx, dispute.ID).Return(dispute, nil)

	_, err := svc.CastVote(ctx, dispute.ID, "0xarbiter", true, decimal.NewFromInt(10), nil)
	assert.ErrorIs(t, err, apperror.ErrVotingClosed)
}

func TestDisputeService_CastVote_Duplicate(t *testing.T) {
	repo, jobs, _, _, svc := newDisputeFixture()
	ctx := context.Background()

	job := filledJob("0xemployer", "0xworker")
	dispute := &models.Dispute{
		ID:             uuid.New(),
		JobID:          job.ID,
		Status:         models.DisputeStatusVoting,
		VotingDeadline: time.Now().Add(time.Hour),
	}
	repo.On("GetByID", ctx, dispute.ID).Return(dispute, nil)
	jobs.On("GetByID", ctx, job.ID).Return(job, nil)
	repo.On("CreateVote", ctx, mock.AnythingOfType("*models.DisputeVote")).Return(apperror.ErrDuplicateVote)

	_, err := svc.CastVote(ctx, dispute.ID, "0xarbiter", false, decimal.NewFromInt(5), nil)
	assert.ErrorIs(t, err, apperror.ErrDuplicateVote)
}

func TestDisputeService_Resolve_AlreadyResolved(t *testing.T) {
	repo, _, _, _, svc := newDisputeFixture()
	ctx := context.Background()

	dispute := &models.Dispute{ID: uuid.New(), Status: models.DisputeStatusResolved}
	repo.On("GetByID", ctx, dispute.ID).Return(dispute, nil)

	_, err := svc.Resolve(ctx, dispute.ID)
	assert.ErrorIs(t, err, apperror.ErrAlreadyResolved)
}

func TestDisputeService_Resolve_BelowQuorum(t *testing.T) {
	repo, _, _, _, svc := newDisputeFixture()
	ctx := context.Background()

	dispute := &models.Dispute{ID: uuid.New(), Status: models.DisputeStatusVoting}
	repo.On("GetByID", ctx, dispute.ID).Return(dispute, nil)
	repo.On("Tally", ctx, dispute.ID).Return(&models.DisputeTally{
		FavorPlaintiff: decimal.NewFromInt(30),
		FavorDefendant: decimal.NewFromInt(20),
		VoteCount:      2,
	}, nil)

	_, err := svc.Resolve(ctx, dispute.ID)
	assert.ErrorIs(t, err, apperror.ErrBelowQuorum)
}

func TestDisputeService_Resolve_FavorWorker(t *testing.T) {
	repo, jobs, escrow, reputation, svc := newDisputeFixture()
	ctx := context.Background()

	job := filledJob("0xemployer", "0xworker")
	dispute := &models.Dispute{
		ID:            uuid.New(),
		JobID:         job.ID,
		RaiserAddress: "0xworker",
		Status:        models.DisputeStatusVoting,
		Stake:         decimal.NewFromInt(1),
	}
	repo.job = job
	repo.dispute = dispute
	escrow.runApply = true

	escrowRow := &models.Escrow{
		ID:              uuid.New(),
		JobID:           job.ID,
		EmployerAddress: "0xemployer",
		WorkerAddress:   "0xworker",
		Amount:          decimal.NewFromInt(1000),
		Status:          models.EscrowStatusLocked,
	}

	repo.On("GetByID", ctx, dispute.ID).Return(dispute, nil)
	repo.On("Tally", ctx, dispute.ID).Return(&models.DisputeTally{
		FavorPlaintiff: decimal.NewFromInt(60),
		FavorDefendant: decimal.NewFromInt(40),
		VoteCount:      2,
	}, nil)
	jobs.On("GetByID", ctx, job.ID).Return(job, nil)
	repo.On("ResolveLocked", ctx, dispute.ID, models.OutcomeFavorWorker).Return(nil, nil)
	escrow.On("SettleTx", ctx, job.ID, models.EscrowStatusReleased).Return(escrowRow, nil)
	escrow.On("CreditTx", ctx, "0xworker", "1000", models.TransactionTypeEscrowRelease).Return(nil)
	// Инициатор выиграл — ставка возвращается.
	escrow.On("CreditTx", ctx, "0xworker", "1", models.TransactionTypeDisputeStake).Return(nil)
	repo.On("UpdateJobTx", ctx, job.ID, "dispute_resolved", models.JobStatusPaid).Return(nil)
	reputation.On("OnDisputeResolved", ctx, job.ID, "0xworker", "0xemployer", models.OutcomeFavorWorker).Return(nil)

	resolved, err := svc.Resolve(ctx, dispute.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.DisputeStatusResolved, resolved.Status)
	assert.Equal(t, models.OutcomeFavorWorker, *resolved.Outcome)
	escrow.AssertExpectations(t)
	reputation.AssertExpectations(t)
}

func TestDisputeService_Resolve_RaiserLostForfeitsStake(t *testing.T) {
	repo, jobs, escrow, reputation, svc := newDisputeFixture()
	ctx := context.Background()

	job := filledJob("0xemployer", "0xworker")
	dispute := &models.Dispute{
		ID:            uuid.New(),
		JobID:         job.ID,
		RaiserAddress: "0xemployer",
		Status:        models.DisputeStatusVoting,
		Stake:         decimal.NewFromInt(1),
	}
	repo.job = job
	repo.dispute = dispute
	escrow.runApply = true

	escrowRow := &models.Escrow{
		ID:              uuid.New(),
		JobID:           job.ID,
		EmployerAddress: "0xemployer",
		WorkerAddress:   "0xworker",
		Amount:          decimal.NewFromInt(1000),
		Status:          models.EscrowStatusLocked,
	}

	// Истец — заказчик, но голоса против него: исход в пользу исполнителя.
	repo.On("GetByID", ctx, dispute.ID).Return(dispute, nil)
	repo.On("Tally", ctx, dispute.ID).Return(&models.DisputeTally{
		FavorPlaintiff: decimal.NewFromInt(40),
		FavorDefendant: decimal.NewFromInt(60),
		VoteCount:      2,
	}, nil)
	jobs.On("GetByID", ctx, job.ID).Return(job, nil)
	repo.On("ResolveLocked", ctx, dispute.ID, models.OutcomeFavorWorker).Return(nil, nil)
	escrow.On("SettleTx", ctx, job.ID, models.EscrowStatusReleased).Return(escrowRow, nil)
	escrow.On("CreditTx", ctx, "0xworker", "1000", models.TransactionTypeEscrowRelease).Return(nil)
	repo.On("UpdateJobTx", ctx, job.ID, "dispute_resolved", models.JobStatusPaid).Return(nil)
	reputation.On("OnDisputeResolved", ctx, job.ID, "0xworker", "0xemployer", models.OutcomeFavorWorker).Return(nil)

	_, err := svc.Resolve(ctx, dispute.ID)
	assert.NoError(t, err)
	escrow.AssertNotCalled(t, "CreditTx", ctx, "0xemployer", "1", models.TransactionTypeDisputeStake)
}

func TestDisputeService_Resolve_TieYieldsPartial(t *testing.T) {
	repo, jobs, escrow, reputation, svc := newDisputeFixture()
	ctx := context.Background()

	job := filledJob("0xemployer", "0xworker")
	dispute := &models.Dispute{
		ID:            uuid.New(),
		JobID:         job.ID,
		RaiserAddress: "0xworker",
		Status:        models.DisputeStatusVoting,
		Stake:         decimal.NewFromInt(1),
	}
	repo.job = job
	repo.dispute = dispute

	escrowRow := &models.Escrow{
		ID:              uuid.New(),
		JobID:           job.ID,
		EmployerAddress: "0xemployer",
		WorkerAddress:   "0xworker",
		Amount:          decimal.NewFromInt(1000),
		Status:          models.EscrowStatusLocked,
	}

	repo.On("GetByID", ctx, dispute.ID).Return(dispute, nil)
	repo.On("Tally", ctx, dispute.ID).Return(&models.DisputeTally{
		FavorPlaintiff: decimal.NewFromInt(50),
		FavorDefendant: decimal.NewFromInt(50),
		VoteCount:      2,
	}, nil)
	jobs.On("GetByID", ctx, job.ID).Return(job, nil)
	repo.On("ResolveLocked", ctx, dispute.ID, models.OutcomePartial).Return(nil, nil)
	escrow.On("SettleTx", ctx, job.ID, models.EscrowStatusSplit).Return(escrowRow, nil)
	escrow.On("CreditTx", ctx, "0xworker", "1", models.TransactionTypeDisputeStake).Return(nil)
	repo.On("UpdateJobTx", ctx, job.ID, "dispute_resolved", models.JobStatusPaid).Return(nil)
	reputation.On("OnDisputeResolved", ctx, job.ID, "0xworker", "0xemployer", models.OutcomePartial).Return(nil)

	resolved, err := svc.Resolve(ctx, dispute.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.OutcomePartial, *resolved.Outcome)
}

func TestDisputeService_Resolve_LedgerFailureLeavesDisputeOpen(t *testing.T) {
	repo := new(mockDisputeRepo)
	jobs := new(mockJobReader)
	escrow := new(mockDisputeEscrow)
	reputation := new(mockDisputeReputation)
	ledger := chainmock.NewFailingLedger(errors.New("узел недоступен"))
	svc := NewDisputeService(repo, jobs, escrow, ledger, reputation, nil,
		72*time.Hour, decimal.NewFromInt(100), decimal.NewFromInt(1))
	ctx := context.Background()

	job := filledJob("0xemployer", "0xworker")
	dispute := &models.Dispute{
		ID:            uuid.New(),
		JobID:         job.ID,
		RaiserAddress: "0xworker",
		Status:        models.DisputeStatusVoting,
		Stake:         decimal.NewFromInt(1),
	}
	repo.job = job
	repo.dispute = dispute

	escrowRow := &models.Escrow{
		JobID:           job.ID,
		EmployerAddress: "0xemployer",
		WorkerAddress:   "0xworker",
		Amount:          decimal.NewFromInt(1000),
		Status:          models.EscrowStatusLocked,
	}

	repo.On("GetByID", ctx, dispute.ID).Return(dispute, nil)
	repo.On("Tally", ctx, dispute.ID).Return(&models.DisputeTally{
		FavorPlaintiff: decimal.NewFromInt(120),
		FavorDefendant: decimal.Zero,
		VoteCount:      3,
	}, nil)
	jobs.On("GetByID", ctx, job.ID).Return(job, nil)
	repo.On("ResolveLocked", ctx, dispute.ID, models.OutcomeFavorWorker).Return(nil, nil)
	escrow.On("SettleTx", ctx, job.ID, models.EscrowStatusReleased).Return(escrowRow, nil)

	_, err := svc.Resolve(ctx, dispute.ID)
	assert.Error(t, err)
	assert.True(t, apperror.IsEscrow(err))
	reputation.AssertNotCalled(t, "OnDisputeResolved", ctx, job.ID, "0xworker", "0xemployer", models.OutcomeFavorWorker)
}

func TestDisputeService_ResolveExpired_ExtendsOnce(t *testing.T) {
	repo, _, _, _, svc := newDisputeFixture()
	ctx := context.Background()

	dispute := models.Dispute{
		ID:       uuid.New(),
		Status:   models.DisputeStatusVoting,
		Extended: false,
	}
	repo.On("ListExpired", ctx).Return([]models.Dispute{dispute}, nil)
	repo.On("Tally", ctx, dispute.ID).Return(&models.DisputeTally{}, nil)
	repo.On("ExtendDeadline", ctx, dispute.ID).Return(true, nil)

	resolved, err := svc.ResolveExpired(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 0, resolved)
	repo.AssertExpectations(t)
}

func TestDisputeService_ResolveExpired_StatusQuoAfterExtension(t *testing.T) {
	repo, _, escrow, reputation, svc := newDisputeFixture()
	ctx := context.Background()

	job := filledJob("0xemployer", "0xworker")
	job.Status = models.JobStatusDisputed
	dispute := models.Dispute{
		ID:             uuid.New(),
		JobID:          job.ID,
		RaiserAddress:  "0xemployer",
		Status:         models.DisputeStatusVoting,
		Extended:       true,
		Stake:          decimal.NewFromInt(1),
		PriorJobStatus: models.JobStatusCompleted,
	}
	repo.job = job
	repo.dispute = &dispute

	escrowRow := &models.Escrow{
		JobID:           job.ID,
		EmployerAddress: "0xemployer",
		WorkerAddress:   "0xworker",
		Amount:          decimal.NewFromInt(1000),
		Status:          models.EscrowStatusLocked,
	}

	// Работа была сдана до спора — статус-кво отдаёт деньги исполнителю.
	repo.On("ListExpired", ctx).Return([]models.Dispute{dispute}, nil)
	repo.On("Tally", ctx, dispute.ID).Return(&models.DisputeTally{}, nil)
	repo.On("ResolveLocked", ctx, dispute.ID, models.OutcomeFavorWorker).Return(nil, nil)
	escrow.On("SettleTx", ctx, job.ID, models.EscrowStatusReleased).Return(escrowRow, nil)
	repo.On("UpdateJobTx", ctx, job.ID, "dispute_resolved", models.JobStatusPaid).Return(nil)
	reputation.On("OnDisputeResolved", ctx, job.ID, "0xworker", "0xemployer", models.OutcomeFavorWorker).Return(nil)

	resolved, err := svc.ResolveExpired(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 1, resolved)
}
