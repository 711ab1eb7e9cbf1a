package reward

import (
	"testing"
	"time"

	"rewardsplane/pkg/config"

	"github.com/stretchr/testify/require"
)

func scheduleWith(windows ...config.HappyHourWindow) *HappyHourSchedule {
	return NewHappyHourSchedule(&config.Config{
		Rewards: config.Rewards{HappyHours: windows},
	})
}

func at(hour, minute int) time.Time {
	return time.Date(2026, 8, 27, hour, minute, 0, 0, time.UTC)
}

func TestHappyHourWindow(t *testing.T) {
	s := scheduleWith(config.HappyHourWindow{Start: "18:00", End: "20:00", Multiplier: 2.0})

	require.Equal(t, 1.0, s.Multiplier(at(17, 59)))
	require.Equal(t, 2.0, s.Multiplier(at(18, 0)))
	require.Equal(t, 2.0, s.Multiplier(at(19, 30)))
	// End is exclusive.
	require.Equal(t, 1.0, s.Multiplier(at(20, 0)))
}

func TestHappyHourMidnightWrap(t *testing.T) {
	s := scheduleWith(config.HappyHourWindow{Start: "23:00", End: "01:00", Multiplier: 1.5})

	require.Equal(t, 1.5, s.Multiplier(at(23, 30)))
	require.Equal(t, 1.5, s.Multiplier(at(0, 30)))
	require.Equal(t, 1.0, s.Multiplier(at(12, 0)))
}

func TestHappyHourOverlapTakesHighest(t *testing.T) {
	s := scheduleWith(
		config.HappyHourWindow{Start: "18:00", End: "20:00", Multiplier: 1.5},
		config.HappyHourWindow{Start: "19:00", End: "21:00", Multiplier: 3.0},
	)

	require.Equal(t, 1.5, s.Multiplier(at(18, 30)))
	require.Equal(t, 3.0, s.Multiplier(at(19, 30)))
	require.Equal(t, 3.0, s.Multiplier(at(20, 30)))
}

func TestHappyHourIgnoresMalformedWindows(t *testing.T) {
	s := scheduleWith(
		config.HappyHourWindow{Start: "6pm", End: "20:00", Multiplier: 2.0},
		config.HappyHourWindow{Start: "18:00", End: "20:00", Multiplier: 0},
	)

	require.Equal(t, 1.0, s.Multiplier(at(19, 0)))
}

func TestHappyHourEmptySchedule(t *testing.T) {
	s := scheduleWith()
	require.Equal(t, 1.0, s.Multiplier(at(12, 0)))
}
