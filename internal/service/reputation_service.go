package service

import (
	"context"
	"math"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/workchain-backend/internal/logger"
	"github.com/ignatzorin/workchain-backend/internal/models"
	"github.com/ignatzorin/workchain-backend/internal/pkg/apperror"
	"github.com/ignatzorin/workchain-backend/internal/repository"
)

// Баллы за события жизненного цикла.
const (
	pointsJobCompleted  = 10
	pointsOnTimeBonus   = 5
	pointsSkillVerified = 15
	pointsDisputeWon    = 20
	pointsDisputeLost   = -25
	pointsCounterparty  = -10
)

// Коэффициент экспоненциального сглаживания скользящих средних.
const smoothing = 0.1

type ProfileRepository interface {
	GetByAddress(ctx context.Context, address string) (*models.WorkerProfile, error)
	GetOrCreate(ctx context.Context, address string) (*models.WorkerProfile, error)
	UpdateSkills(ctx context.Context, address string, skills []string) (*models.WorkerProfile, error)
	ApplyDelta(ctx context.Context, address string, delta int, reason string, jobID *uuid.UUID, mutate func(profile *models.WorkerProfile) error) (*models.WorkerProfile, error)
	ListHistory(ctx context.Context, address string, limit, offset int) ([]models.ReputationHistory, error)
	CreateSkillVerification(ctx context.Context, verification *models.SkillVerification) error
	ListSkillVerifications(ctx context.Context, address string) ([]models.SkillVerification, error)
	ListTop(ctx context.Context, limit int) ([]models.WorkerProfile, error)
}

// ReputationService — единственный писатель профилей. Записи по одному
// участнику сериализуются мьютексом на адрес: дельты ложатся в историю
// в порядке принятия событий, даже когда ввод-вывод завершается вразнобой.
type ReputationService struct {
	repo ProfileRepository
	log  *logrus.Entry

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewReputationService(repo ProfileRepository) *ReputationService {
	return &ReputationService{
		repo:  repo,
		log:   logger.WithModule("reputation"),
		locks: make(map[string]*sync.Mutex),
	}
}

// workerLock возвращает мьютекс записи для адреса.
func (s *ReputationService) workerLock(address string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[address]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[address] = lock
	}
	return lock
}

// OnJobCompleted начисляет баллы исполнителю за оплаченный заказ:
// +10 за завершение и +5 за сдачу в срок, плюс счётчики профиля.
func (s *ReputationService) OnJobCompleted(ctx context.Context, jobID uuid.UUID, worker string, earned decimal.Decimal, onTime bool) error {
	worker = models.NormalizeAddress(worker)
	lock := s.workerLock(worker)
	lock.Lock()
	defer lock.Unlock()

	_, err := s.repo.ApplyDelta(ctx, worker, pointsJobCompleted, models.ReputationReasonJobCompleted, &jobID, func(p *models.WorkerProfile) error {
		p.CompletedJobs++
		p.TotalEarned = p.TotalEarned.Add(earned)
		return nil
	})
	if err != nil {
		return err
	}

	if onTime {
		if _, err := s.repo.ApplyDelta(ctx, worker, pointsOnTimeBonus, models.ReputationReasonOnTimeBonus, &jobID, nil); err != nil {
			return err
		}
	}

	s.log.WithFields(logrus.Fields{"worker": worker, "job_id": jobID, "on_time": onTime}).Info("репутация за завершённый заказ применена")
	return nil
}

// OnRatingReceived применяет дельту за полученный отзыв. Вес отзыва
// зависит от репутации его автора, поэтому свежий аккаунт почти не
// двигает чужой рейтинг; скользящие средние профиля сглаживаются
// экспоненциально.
func (s *ReputationService) OnRatingReceived(ctx context.Context, rating *models.JobRating) error {
	rater, err := s.repo.GetOrCreate(ctx, models.NormalizeAddress(rating.RaterAddress))
	if err != nil {
		return err
	}
	weight := ratingWeight(rater.ReputationScore)
	delta := int(math.Round(float64(rating.Overall-3) * weight))

	rated := models.NormalizeAddress(rating.RatedAddress)
	lock := s.workerLock(rated)
	lock.Lock()
	defer lock.Unlock()

	_, err = s.repo.ApplyDelta(ctx, rated, delta, models.ReputationReasonRatingReceived, &rating.JobID, func(p *models.WorkerProfile) error {
		p.AvgQuality = smooth(p.AvgQuality, float64(rating.Quality))
		p.AvgCommunication = smooth(p.AvgCommunication, float64(rating.Communication))
		onTime := 0.0
		if rating.DeliveredOnTime {
			onTime = 1.0
		}
		p.OnTimeRate = smooth(p.OnTimeRate, onTime)
		return nil
	})
	return err
}

// OnSkillVerified подтверждает навык: +15 однократно на пару
// (исполнитель, навык); повтор пишется в журнал с нулевой дельтой.
func (s *ReputationService) OnSkillVerified(ctx context.Context, worker, skill, verifier string, jobID *uuid.UUID) (*models.SkillVerification, error) {
	skill = strings.ToLower(strings.TrimSpace(skill))
	if skill == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "необходимо указать навык")
	}
	worker = models.NormalizeAddress(worker)
	verifier = models.NormalizeAddress(verifier)
	if models.SameAddress(worker, verifier) {
		return nil, apperror.New(apperror.ErrCodeValidation, "нельзя подтвердить собственный навык")
	}

	lock := s.workerLock(worker)
	lock.Lock()
	defer lock.Unlock()

	profile, err := s.repo.GetOrCreate(ctx, worker)
	if err != nil {
		return nil, err
	}
	alreadyVerified := containsString(profile.VerifiedSkills, skill)

	verification := &models.SkillVerification{
		Address:         worker,
		Skill:           skill,
		VerifierAddress: verifier,
		JobID:           jobID,
		Applied:         !alreadyVerified,
	}
	if err := s.repo.CreateSkillVerification(ctx, verification); err != nil {
		return nil, err
	}
	if alreadyVerified {
		return verification, nil
	}

	_, err = s.repo.ApplyDelta(ctx, worker, pointsSkillVerified, models.ReputationReasonSkillVerified, jobID, func(p *models.WorkerProfile) error {
		if !containsString(p.VerifiedSkills, skill) {
			p.VerifiedSkills = append(p.VerifiedSkills, skill)
		}
		if !containsString(p.Skills, skill) {
			p.Skills = append(p.Skills, skill)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return verification, nil
}

// OnDisputeResolved применяет репутационные последствия решения спора.
// Провал качества наказывается сильнее, чем вознаграждается обычное
// завершение.
func (s *ReputationService) OnDisputeResolved(ctx context.Context, jobID uuid.UUID, worker, employer string, outcome models.DisputeOutcome, workerRatio decimal.Decimal) error {
	worker = models.NormalizeAddress(worker)
	employer = models.NormalizeAddress(employer)

	var workerDelta, employerDelta int
	switch outcome {
	case models.OutcomeFavorWorker:
		workerDelta = pointsDisputeWon
		employerDelta = pointsCounterparty
	case models.OutcomeFavorEmployer:
		workerDelta = pointsDisputeLost
	case models.OutcomePartial:
		workerDelta = int(math.Round(workerRatio.InexactFloat64()*10 - 5))
		employerDelta = -workerDelta
	}

	if worker != "" {
		if err := s.applyDisputeDelta(ctx, worker, workerDelta, jobID); err != nil {
			return err
		}
	}
	if employer != "" && employerDelta != 0 {
		if err := s.applyDisputeDelta(ctx, employer, employerDelta, jobID); err != nil {
			return err
		}
	}
	return nil
}

func (s *ReputationService) applyDisputeDelta(ctx context.Context, address string, delta int, jobID uuid.UUID) error {
	lock := s.workerLock(address)
	lock.Lock()
	defer lock.Unlock()
	_, err := s.repo.ApplyDelta(ctx, address, delta, models.ReputationReasonDisputeResolved, &jobID, nil)
	return err
}

// GetProfile возвращает профиль участника.
func (s *ReputationService) GetProfile(ctx context.Context, address string) (*models.WorkerProfile, error) {
	profile, err := s.repo.GetByAddress(ctx, models.NormalizeAddress(address))
	if err != nil {
		if err == repository.ErrProfileNotFound {
			return nil, apperror.ErrProfileNotFound
		}
		return nil, err
	}
	return profile, nil
}

// UpdateSkills заменяет заявленные навыки участника.
func (s *ReputationService) UpdateSkills(ctx context.Context, address string, skills []string) (*models.WorkerProfile, error) {
	normalized := make([]string, 0, len(skills))
	for _, skill := range skills {
		skill = strings.ToLower(strings.TrimSpace(skill))
		if skill != "" && !containsString(normalized, skill) {
			normalized = append(normalized, skill)
		}
	}
	address = models.NormalizeAddress(address)
	if _, err := s.repo.GetOrCreate(ctx, address); err != nil {
		return nil, err
	}
	return s.repo.UpdateSkills(ctx, address, normalized)
}

// GetHistory возвращает журнал изменений репутации.
func (s *ReputationService) GetHistory(ctx context.Context, address string, limit, offset int) ([]models.ReputationHistory, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.repo.ListHistory(ctx, models.NormalizeAddress(address), limit, offset)
}

// ListSkillVerifications возвращает журнал подтверждений навыков.
func (s *ReputationService) ListSkillVerifications(ctx context.Context, address string) ([]models.SkillVerification, error) {
	return s.repo.ListSkillVerifications(ctx, models.NormalizeAddress(address))
}

// ListTop возвращает исполнителей с наибольшим рейтингом.
func (s *ReputationService) ListTop(ctx context.Context, limit int) ([]models.WorkerProfile, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	return s.repo.ListTop(ctx, limit)
}

// ratingWeight возвращает вес отзыва по репутации автора: 0.2 для
// свежего аккаунта, 2.0 для прокачанного.
func ratingWeight(raterScore int) float64 {
	clamped := raterScore
	if clamped < 10 {
		clamped = 10
	}
	if clamped > 100 {
		clamped = 100
	}
	return float64(clamped) / 50.0
}

// smooth ведёт скользящее среднее рейтинга. Первый отзыв задаёт
// среднее напрямую: сглаживание от нуля занижало бы рейтинг
// исполнителя на порядок до накопления истории.
func smooth(old, value float64) float64 {
	if old == 0 {
		return value
	}
	return old*(1-smoothing) + value*smoothing
}

func containsString(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
