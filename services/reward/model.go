package reward

import "time"

type AdViewStatus string

const (
	AdViewStarted   AdViewStatus = "started"
	AdViewCompleted AdViewStatus = "completed"
)

// AdView is an ephemeral ad session record. Its only correctness job is to
// stop the same session from being completed twice; the daily cap itself
// lives in the limiter.
type AdView struct {
	ID          string       `gorm:"column:id;primaryKey"`
	UserID      string       `gorm:"column:user_id;index"`
	Status      AdViewStatus `gorm:"column:status"`
	Date        string       `gorm:"column:date"` // "2006-01-02", UTC
	StartedAt   time.Time    `gorm:"column:started_at"`
	CompletedAt *time.Time   `gorm:"column:completed_at"`
}

func (AdView) TableName() string { return "ad_views" }

// UserStats carries the consecutive-day activity streak that drives the
// reward tier.
type UserStats struct {
	UserID         string    `gorm:"column:user_id;primaryKey"`
	StreakDays     int       `gorm:"column:streak_days"`
	LastActiveDate string    `gorm:"column:last_active_date"` // "2006-01-02", UTC
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (UserStats) TableName() string { return "user_stats" }
