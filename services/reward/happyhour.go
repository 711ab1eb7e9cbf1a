package reward

import (
	"time"

	"rewardsplane/pkg/config"

	"go.uber.org/zap"
)

// HappyHourSchedule resolves the bonus multiplier for a point in time from
// the configured daily windows. Windows are wall-clock "HH:MM" ranges; a
// window spanning midnight (start > end) wraps.
type HappyHourSchedule struct {
	windows []happyHourWindow
}

type happyHourWindow struct {
	start      int // minutes since midnight
	end        int
	multiplier float64
}

func NewHappyHourSchedule(cfg *config.Config) *HappyHourSchedule {
	schedule := &HappyHourSchedule{}

	for _, w := range cfg.Rewards.HappyHours {
		start, okStart := parseClock(w.Start)
		end, okEnd := parseClock(w.End)
		if !okStart || !okEnd || w.Multiplier <= 0 {
			zap.L().Warn("ignoring malformed happy hour window",
				zap.String("start", w.Start), zap.String("end", w.End))
			continue
		}
		schedule.windows = append(schedule.windows, happyHourWindow{
			start:      start,
			end:        end,
			multiplier: w.Multiplier,
		})
	}

	return schedule
}

// Multiplier returns the active window's multiplier, or 1.0 outside all
// windows. Overlapping windows resolve to the highest multiplier.
func (s *HappyHourSchedule) Multiplier(now time.Time) float64 {
	minutes := now.Hour()*60 + now.Minute()

	best := 1.0
	for _, w := range s.windows {
		var active bool
		if w.start <= w.end {
			active = minutes >= w.start && minutes < w.end
		} else {
			active = minutes >= w.start || minutes < w.end
		}
		if active && w.multiplier > best {
			best = w.multiplier
		}
	}

	return best
}

func parseClock(raw string) (int, bool) {
	t, err := time.Parse("15:04", raw)
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}
