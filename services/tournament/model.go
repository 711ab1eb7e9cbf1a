package tournament

import (
	"fmt"
	"time"
)

// Entry is a user's week-scoped competitive score. Tournament points are a
// flat per-action increment, entirely separate from the redeemable balance:
// streak and happy-hour multipliers never apply here.
type Entry struct {
	ID        string    `gorm:"column:id;primaryKey"`
	WeekKey   string    `gorm:"column:week_key;uniqueIndex:uq_tournament_week_user"`
	UserID    string    `gorm:"column:user_id;uniqueIndex:uq_tournament_week_user"`
	Points    int64     `gorm:"column:points"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (Entry) TableName() string { return "tournament_entries" }

// WeekKey renders the ISO week of t, e.g. "2026-W35".
func WeekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}
