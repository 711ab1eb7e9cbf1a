package reward

import (
	"context"
	"errors"
	"time"

	"rewardsplane/pkg/config"
	"rewardsplane/pkg/errutil"
	"rewardsplane/services/ledger"
	"rewardsplane/services/tournament"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const dayFormat = "2006-01-02"

type Service struct {
	db       *gorm.DB
	node     *snowflake.Node
	ledger   *ledger.Service
	limiter  DailyCapLimiter
	schedule *HappyHourSchedule
	notifier tournament.Notifier

	baseReward int64
	dailyCap   int64
	adWeight   int64

	now func() time.Time
}

type ServiceParams struct {
	fx.In
	DB       *gorm.DB
	Node     *snowflake.Node
	Cfg      *config.Config
	Ledger   *ledger.Service
	Limiter  DailyCapLimiter
	Schedule *HappyHourSchedule
	Notifier tournament.Notifier `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:         p.DB,
		node:       p.Node,
		ledger:     p.Ledger,
		limiter:    p.Limiter,
		schedule:   p.Schedule,
		notifier:   p.Notifier,
		baseReward: p.Cfg.Rewards.AdBaseReward,
		dailyCap:   p.Cfg.Rewards.AdDailyCap,
		adWeight:   p.Cfg.Rewards.TournamentWeight["ads"],
		now:        time.Now,
	}
}

type StartAdResult struct {
	AdViewID        string `json:"adViewId"`
	AdsWatchedToday int64  `json:"adsWatchedToday"`
	RemainingAds    int64  `json:"remainingAds"`
	RewardPoints    int64  `json:"rewardPoints"`
}

// StartAd opens an ad session. The response previews today's counts and the
// reward the user would earn right now; nothing is credited yet.
func (s *Service) StartAd(ctx context.Context, userID string) (*StartAdResult, error) {
	if userID == "" {
		return nil, errutil.ValidationFailed("userId is required", nil)
	}

	now := s.now()
	view := &AdView{
		ID:        s.node.Generate().String(),
		UserID:    userID,
		Status:    AdViewStarted,
		Date:      now.UTC().Format(dayFormat),
		StartedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(view).Error; err != nil {
		return nil, err
	}

	watched, err := s.limiter.Count(ctx, userID, view.Date)
	if err != nil {
		return nil, err
	}

	remaining := s.dailyCap - watched
	if remaining < 0 {
		remaining = 0
	}

	streak := s.currentStreak(ctx, userID)
	preview := ComputeReward(s.baseReward, streak, s.schedule.Multiplier(now))

	return &StartAdResult{
		AdViewID:        view.ID,
		AdsWatchedToday: watched,
		RemainingAds:    remaining,
		RewardPoints:    preview.Points,
	}, nil
}

type CompleteAdResult struct {
	PointsAwarded           int64   `json:"pointsAwarded"`
	BasePoints              int64   `json:"basePoints"`
	Multiplier              float64 `json:"multiplier"`
	HappyHourBonus          float64 `json:"happyHourBonus"`
	StreakDays              int     `json:"streakDays"`
	TournamentPointsAwarded int64   `json:"tournamentPointsAwarded"`
	NewTotal                int64   `json:"newTotal"`
	AdsWatchedToday         int64   `json:"adsWatchedToday"`
	RemainingAds            int64   `json:"remainingAds"`
}

// CompleteAd finishes an ad session and credits the multiplied reward. The
// daily cap is enforced atomically before any multiplier computation or
// ledger write; a capped attempt is rejected with a rate-limit error and
// awards nothing.
func (s *Service) CompleteAd(ctx context.Context, adViewID, userID string) (*CompleteAdResult, error) {
	var view AdView
	err := s.db.WithContext(ctx).Where("id = ?", adViewID).First(&view).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errutil.NotFound("ad view not found", err)
	}
	if err != nil {
		return nil, err
	}

	if view.UserID != userID {
		return nil, errutil.Forbidden("ad view belongs to another user", nil)
	}
	if view.Status == AdViewCompleted {
		return nil, errutil.Conflict("ad view already completed", nil)
	}

	now := s.now()
	day := now.UTC().Format(dayFormat)

	watched, ok, err := s.limiter.Acquire(ctx, userID, day, s.dailyCap)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errutil.TooManyRequest("daily ad limit reached", nil)
	}

	streak := s.touchStreak(ctx, userID, day)
	happyHour := s.schedule.Multiplier(now)
	breakdown := ComputeReward(s.baseReward, streak, happyHour)

	credit, err := s.ledger.AddAdCredit(ctx, ledger.AdCreditInput{
		UserID:   userID,
		Points:   breakdown.Points,
		AdViewID: view.ID,
		Metadata: map[string]any{
			"base":       breakdown.Base,
			"multiplier": breakdown.Combined,
			"streakDays": breakdown.StreakDays,
			"happyHour":  breakdown.HappyHourMultiplier,
		},
	})
	if err != nil {
		return nil, err
	}

	completedAt := now
	if err := s.db.WithContext(ctx).Model(&AdView{}).
		Where("id = ?", view.ID).
		Updates(map[string]any{
			"status":       AdViewCompleted,
			"completed_at": completedAt,
		}).Error; err != nil {
		return nil, err
	}

	var tournamentPoints int64
	if s.notifier != nil {
		if err := s.notifier.NotifyPoints(ctx, userID, "ads"); err != nil {
			zap.L().Error("failed to enqueue tournament points", zap.Error(err))
		} else {
			tournamentPoints = s.adWeight
		}
	}

	remaining := s.dailyCap - watched
	if remaining < 0 {
		remaining = 0
	}

	return &CompleteAdResult{
		PointsAwarded:           breakdown.Points,
		BasePoints:              breakdown.Base,
		Multiplier:              breakdown.Combined,
		HappyHourBonus:          breakdown.HappyHourMultiplier,
		StreakDays:              breakdown.StreakDays,
		TournamentPointsAwarded: tournamentPoints,
		NewTotal:                credit.NewPoints,
		AdsWatchedToday:         watched,
		RemainingAds:            remaining,
	}, nil
}

func (s *Service) currentStreak(ctx context.Context, userID string) int {
	var stats UserStats
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&stats).Error; err != nil {
		return 0
	}
	return stats.StreakDays
}

// touchStreak applies the consecutive-day rule: active yesterday extends
// the streak, active earlier today keeps it, anything older resets to 1.
func (s *Service) touchStreak(ctx context.Context, userID, day string) int {
	today, err := time.Parse(dayFormat, day)
	if err != nil {
		return 0
	}
	yesterday := today.AddDate(0, 0, -1).Format(dayFormat)

	var stats UserStats
	err = s.db.WithContext(ctx).Where("user_id = ?", userID).First(&stats).Error

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		stats = UserStats{UserID: userID, StreakDays: 1, LastActiveDate: day, UpdatedAt: s.now()}
		if createErr := s.db.WithContext(ctx).Create(&stats).Error; createErr != nil {
			zap.L().Error("failed to create user stats", zap.Error(createErr))
			return 1
		}
		return 1
	case err != nil:
		zap.L().Error("failed to load user stats", zap.Error(err))
		return 0
	}

	switch stats.LastActiveDate {
	case day:
		return stats.StreakDays
	case yesterday:
		stats.StreakDays++
	default:
		stats.StreakDays = 1
	}
	stats.LastActiveDate = day
	stats.UpdatedAt = s.now()

	if err := s.db.WithContext(ctx).Model(&UserStats{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"streak_days":      stats.StreakDays,
			"last_active_date": stats.LastActiveDate,
			"updated_at":       stats.UpdatedAt,
		}).Error; err != nil {
		zap.L().Error("failed to update user stats", zap.Error(err))
	}

	return stats.StreakDays
}
