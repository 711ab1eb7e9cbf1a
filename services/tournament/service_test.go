package tournament

import (
	"context"
	"testing"
	"time"

	"rewardsplane/pkg/config"
	"rewardsplane/services/testutil"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	db := testutil.NewTestDB(t, &Entry{})

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := &config.Config{
		Rewards: config.Rewards{
			TournamentWeight: map[string]int64{"offerwall": 30, "ads": 10},
		},
	}

	return NewService(ServiceParams{DB: db, Node: node, Cfg: cfg}), db
}

func currentEntry(t *testing.T, db *gorm.DB, userID string) Entry {
	t.Helper()

	var entry Entry
	require.NoError(t, db.Where("week_key = ? AND user_id = ?", WeekKey(time.Now()), userID).First(&entry).Error)
	return entry
}

func TestAddPointsFlatWeights(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.AddPoints(ctx, "u1", "offerwall"))
	require.Equal(t, int64(30), currentEntry(t, db, "u1").Points)

	require.NoError(t, svc.AddPoints(ctx, "u1", "offerwall"))
	require.Equal(t, int64(60), currentEntry(t, db, "u1").Points)

	// The per-source weight is flat regardless of the credited payout, and
	// sources share one weekly entry.
	require.NoError(t, svc.AddPoints(ctx, "u1", "ads"))
	require.Equal(t, int64(70), currentEntry(t, db, "u1").Points)
}

func TestAddPointsUnknownSourceSkipped(t *testing.T) {
	svc, db := newTestService(t)

	require.NoError(t, svc.AddPoints(context.Background(), "u1", "quiz"))

	var count int64
	require.NoError(t, db.Model(&Entry{}).Count(&count).Error)
	require.Equal(t, int64(0), count)
}

func TestWeekKey(t *testing.T) {
	require.Equal(t, "2026-W35", WeekKey(time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)))

	// ISO weeks can belong to the neighbouring year.
	require.Equal(t, "2025-W01", WeekKey(time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC)))
}

func TestLeaderboard(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	week := WeekKey(time.Now())
	now := time.Now()

	entries := []Entry{
		{ID: "1", WeekKey: week, UserID: "u1", Points: 40, CreatedAt: now, UpdatedAt: now},
		{ID: "2", WeekKey: week, UserID: "u2", Points: 90, CreatedAt: now, UpdatedAt: now},
		{ID: "3", WeekKey: week, UserID: "u3", Points: 10, CreatedAt: now, UpdatedAt: now},
		{ID: "4", WeekKey: "2020-W01", UserID: "u4", Points: 999, CreatedAt: now, UpdatedAt: now},
	}
	for i := range entries {
		require.NoError(t, db.Create(&entries[i]).Error)
	}

	top, err := svc.Leaderboard(ctx, "", 0)
	require.NoError(t, err)

	require.Len(t, top, 3)
	require.Equal(t, "u2", top[0].UserID)
	require.Equal(t, "u1", top[1].UserID)
	require.Equal(t, "u3", top[2].UserID)

	top, err = svc.Leaderboard(ctx, week, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)

	old, err := svc.Leaderboard(ctx, "2020-W01", 0)
	require.NoError(t, err)
	require.Len(t, old, 1)
	require.Equal(t, "u4", old[0].UserID)
}

func TestPrune(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, db.Create(&Entry{
		ID: "old", WeekKey: "2026-W01", UserID: "u1", Points: 10,
		CreatedAt: now.AddDate(0, 0, -7*14), UpdatedAt: now,
	}).Error)
	require.NoError(t, db.Create(&Entry{
		ID: "fresh", WeekKey: WeekKey(now), UserID: "u1", Points: 10,
		CreatedAt: now, UpdatedAt: now,
	}).Error)

	deleted, err := svc.Prune(ctx, 12)
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)

	var remaining []Entry
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	require.Equal(t, "fresh", remaining[0].ID)
}
