package tournament

import (
	"context"
	"errors"
	"time"

	"rewardsplane/pkg/config"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Service struct {
	db      *gorm.DB
	node    *snowflake.Node
	weights map[string]int64
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
	Cfg  *config.Config
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:      p.DB,
		node:    p.Node,
		weights: p.Cfg.Rewards.TournamentWeight,
	}
}

// AddPoints increments the caller's entry for the current ISO week by the
// fixed weight configured for sourceKind ("ads", "offerwall"). Unknown
// source kinds are dropped with a warning rather than scored at a guessed
// weight.
func (s *Service) AddPoints(ctx context.Context, userID, sourceKind string) error {
	weight, ok := s.weights[sourceKind]
	if !ok || weight <= 0 {
		zap.L().Warn("no tournament weight for source, skipping", zap.String("source", sourceKind))
		return nil
	}

	weekKey := WeekKey(time.Now())
	now := time.Now()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entry Entry
		err := tx.Where("week_key = ? AND user_id = ?", weekKey, userID).First(&entry).Error

		if errors.Is(err, gorm.ErrRecordNotFound) {
			entry = Entry{
				ID:        s.node.Generate().String(),
				WeekKey:   weekKey,
				UserID:    userID,
				Points:    weight,
				CreatedAt: now,
				UpdatedAt: now,
			}
			// Two first-actions can race on the unique key; the loser
			// falls through to the atomic increment.
			if createErr := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "week_key"}, {Name: "user_id"}},
				DoUpdates: clause.Assignments(map[string]any{
					"points":     gorm.Expr("points + ?", weight),
					"updated_at": now,
				}),
			}).Create(&entry).Error; createErr != nil {
				return createErr
			}
			return nil
		}
		if err != nil {
			return err
		}

		return tx.Model(&Entry{}).
			Where("id = ?", entry.ID).
			Updates(map[string]any{
				"points":     gorm.Expr("points + ?", weight),
				"updated_at": now,
			}).Error
	})
}

// Leaderboard returns the top entries for a week, current week when weekKey
// is empty.
func (s *Service) Leaderboard(ctx context.Context, weekKey string, limit int) ([]Entry, error) {
	if weekKey == "" {
		weekKey = WeekKey(time.Now())
	}
	if limit <= 0 || limit > 100 {
		limit = 25
	}

	var entries []Entry
	if err := s.db.WithContext(ctx).
		Where("week_key = ?", weekKey).
		Order("points DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// Prune deletes entries older than the retention window, keyed by week.
func (s *Service) Prune(ctx context.Context, keepWeeks int) (int64, error) {
	if keepWeeks <= 0 {
		keepWeeks = 12
	}

	cutoff := time.Now().AddDate(0, 0, -7*keepWeeks)
	res := s.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&Entry{})
	return res.RowsAffected, res.Error
}
