package reward

import "math"

// Breakdown explains how an ad reward was computed, echoed back to the
// client so the math is auditable.
type Breakdown struct {
	Base                int64   `json:"basePoints"`
	StreakDays          int     `json:"streakDays"`
	StreakMultiplier    float64 `json:"streakMultiplier"`
	HappyHourMultiplier float64 `json:"happyHourMultiplier"`
	Combined            float64 `json:"multiplier"`
	Points              int64   `json:"pointsAwarded"`
}

// StreakMultiplier is the authoritative streak tier table.
func StreakMultiplier(streakDays int) float64 {
	switch {
	case streakDays >= 30:
		return 1.5
	case streakDays >= 14:
		return 1.3
	case streakDays >= 7:
		return 1.2
	case streakDays >= 3:
		return 1.1
	default:
		return 1.0
	}
}

// ComputeReward combines the streak tier with the happy-hour multiplier
// (1.0 outside a window) and floors the result. Pure function.
func ComputeReward(base int64, streakDays int, happyHour float64) Breakdown {
	if happyHour <= 0 {
		happyHour = 1.0
	}

	streak := StreakMultiplier(streakDays)
	combined := streak * happyHour
	points := int64(math.Floor(float64(base) * combined))

	return Breakdown{
		Base:                base,
		StreakDays:          streakDays,
		StreakMultiplier:    streak,
		HappyHourMultiplier: happyHour,
		Combined:            combined,
		Points:              points,
	}
}
